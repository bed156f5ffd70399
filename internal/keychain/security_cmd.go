// Copyright (c) 2025 The tokenkeeper Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package keychain

import (
	"errors"
	"strings"
)

var errMultilineValue = errors.New("keychain values cannot contain line breaks")

// securityAddCommand renders the add-generic-password line fed to
// `security -i` on stdin. The value never reaches the process arguments.
func securityAddCommand(account, service, value string) (string, error) {
	for _, s := range []string{account, service, value} {
		if strings.ContainsAny(s, "\r\n") {
			return "", errMultilineValue
		}
	}
	return "add-generic-password -U -a " + securityQuote(account) +
		" -s " + securityQuote(service) +
		" -w " + securityQuote(value) + "\n", nil
}

// securityQuote wraps s in double quotes for the security shell.
func securityQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
