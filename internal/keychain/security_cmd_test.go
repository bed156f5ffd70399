package keychain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityAddCommand(t *testing.T) {
	line, err := securityAddCommand(ServiceName, "work:credential", "eyJ.payload.sig")
	require.NoError(t, err)
	assert.Equal(t, `add-generic-password -U -a "tokenkeeper" -s "work:credential" -w "eyJ.payload.sig"`+"\n", line)
}

func TestSecurityAddCommand_QuotesValue(t *testing.T) {
	line, err := securityAddCommand(ServiceName, "tokenkeeper:credential", `a "b" \c`)
	require.NoError(t, err)
	assert.Contains(t, line, `-w "a \"b\" \\c"`)
}

func TestSecurityAddCommand_RejectsLineBreaks(t *testing.T) {
	_, err := securityAddCommand(ServiceName, "tokenkeeper:credential", "tok\n delete-keychain")
	assert.ErrorIs(t, err, errMultilineValue)
}
