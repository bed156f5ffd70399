// Copyright (c) 2025 The tokenkeeper Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package httperrors turns identity provider and network failures into
// user-friendly terminal messages.
package httperrors

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/pterm/pterm"

	"tokenkeeper/cli/internal/identity"
	"tokenkeeper/cli/internal/logging"
)

// Category classifies a failed provider call.
type Category string

const (
	CategoryTimeout     Category = "timeout"
	CategoryDNS         Category = "dns"
	CategoryRefused     Category = "connection_refused"
	CategoryTLS         Category = "tls"
	CategoryServer      Category = "server"
	CategoryCredentials Category = "credentials"
	CategoryProvider    Category = "provider"
	CategoryOther       Category = "other"
)

// providerMessages maps provider error codes to sentences for the user.
var providerMessages = map[string]string{
	"EMAIL_NOT_FOUND":             "No account exists for this email.",
	"INVALID_PASSWORD":            "The password is incorrect.",
	"INVALID_LOGIN_CREDENTIALS":   "The email or password is incorrect.",
	"USER_DISABLED":               "This account has been disabled.",
	"EMAIL_EXISTS":                "An account with this email already exists.",
	"TOKEN_EXPIRED":               "Your session is no longer valid. Log in again.",
	"INVALID_ID_TOKEN":            "Your session is no longer valid. Log in again.",
	"TOO_MANY_ATTEMPTS_TRY_LATER": "Too many attempts. Wait a moment and try again.",
}

// Classify returns the category of err.
func Classify(err error) Category {
	if err == nil {
		return ""
	}

	var perr *identity.ProviderError
	if errors.As(err, &perr) {
		if perr.Status >= 500 {
			return CategoryServer
		}
		if _, ok := providerMessages[providerCode(perr.Message)]; ok {
			return CategoryCredentials
		}
		return CategoryProvider
	}

	switch {
	case isTimeoutError(err):
		return CategoryTimeout
	case isDNSError(err):
		return CategoryDNS
	case isConnectionRefusedError(err):
		return CategoryRefused
	case isSSLError(err):
		return CategoryTLS
	}
	return CategoryOther
}

// Describe returns a one-line explanation for err suitable for the terminal.
func Describe(err error) string {
	var perr *identity.ProviderError
	if errors.As(err, &perr) {
		if msg, ok := providerMessages[providerCode(perr.Message)]; ok {
			return msg
		}
		return perr.Message
	}
	switch Classify(err) {
	case CategoryTimeout:
		return "The identity provider took too long to respond."
	case CategoryDNS:
		return "The identity provider address could not be resolved."
	case CategoryRefused:
		return "The identity provider refused the connection."
	case CategoryTLS:
		return "A secure connection to the identity provider could not be established."
	}
	return logging.Mask(err.Error())
}

// Present prints a formatted message for err while doing action and returns
// an error for the command to exit with.
func Present(err error, action, baseURL string) error {
	if err == nil {
		return nil
	}
	host := ExtractHostFromURL(baseURL)
	cat := Classify(err)

	pterm.Error.Printf("Failed while %s: %s\n", action, Describe(err))
	switch cat {
	case CategoryTimeout, CategoryDNS, CategoryRefused:
		pterm.Println()
		pterm.Println("Please check:")
		pterm.Println("  • Your internet connection")
		pterm.Printf("  • Whether %s is reachable from your network\n", host)
		pterm.Println("  • Proxy or firewall settings that might block HTTPS requests")
		pterm.Println()
	case CategoryTLS:
		pterm.Println()
		pterm.Println("Try:")
		pterm.Println("  • Check your system date and time")
		pterm.Println("  • Verify network proxy settings")
		pterm.Println()
	case CategoryServer:
		pterm.Printf("%s reported an internal error. Please try again in a few minutes.\n", host)
	case CategoryOther:
		logging.WithError(err).Debug("identity provider call failed", "action", action, "host", host)
	}
	return fmt.Errorf("%s: %w", action, err)
}

// providerCode strips the detail some providers append, e.g.
// "WEAK_PASSWORD : Password should be at least 6 characters".
func providerCode(msg string) string {
	code, _, _ := strings.Cut(msg, " ")
	return strings.TrimSpace(code)
}

// isTimeoutError checks if the error is a timeout error.
func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}

// isDNSError checks if the error is a DNS resolution error.
func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// isConnectionRefusedError checks if the error is a connection refused error.
func isConnectionRefusedError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

// isSSLError checks if the error is an SSL/TLS error.
func isSSLError(err error) bool {
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "tls") ||
		strings.Contains(errStr, "x509") ||
		strings.Contains(errStr, "certificate")
}

// ExtractHostFromURL extracts the hostname from a URL for error messages.
func ExtractHostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return "the identity provider"
	}
	return u.Host
}
