package httperrors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"tokenkeeper/cli/internal/identity"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{name: "wrong password", err: &identity.ProviderError{Status: 400, Message: "INVALID_PASSWORD"}, want: CategoryCredentials},
		{name: "weak password with detail", err: &identity.ProviderError{Status: 400, Message: "WEAK_PASSWORD : Password should be at least 6 characters"}, want: CategoryProvider},
		{name: "provider outage", err: &identity.ProviderError{Status: 503, Message: "Authentication Failed"}, want: CategoryServer},
		{name: "deadline", err: fmt.Errorf("post: %w", context.DeadlineExceeded), want: CategoryTimeout},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "idp.invalid"}, want: CategoryDNS},
		{name: "refused", err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, want: CategoryRefused},
		{name: "certificate", err: errors.New("x509: certificate signed by unknown authority"), want: CategoryTLS},
		{name: "anything else", err: errors.New("unexpected EOF"), want: CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
	assert.Equal(t, Category(""), Classify(nil))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "The password is incorrect.",
		Describe(fmt.Errorf("sign in: %w", &identity.ProviderError{Status: 400, Message: "INVALID_PASSWORD"})))
	assert.Equal(t, "OPERATION_NOT_ALLOWED",
		Describe(&identity.ProviderError{Status: 400, Message: "OPERATION_NOT_ALLOWED"}))
	assert.Equal(t, "POST ?key=*** failed", Describe(errors.New("POST ?key=abc failed")))
}

func TestPresent_WrapsError(t *testing.T) {
	base := &identity.ProviderError{Status: 400, Message: "EMAIL_NOT_FOUND"}
	err := Present(base, "signing in", "https://identitytoolkit.googleapis.com")

	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "signing in")
	assert.NoError(t, Present(nil, "signing in", ""))
}

func TestExtractHostFromURL(t *testing.T) {
	assert.Equal(t, "identitytoolkit.googleapis.com", ExtractHostFromURL("https://identitytoolkit.googleapis.com/v1"))
	assert.Equal(t, "the identity provider", ExtractHostFromURL(""))
}
