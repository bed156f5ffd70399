// Copyright (c) 2025 The tokenkeeper Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package logging sets up the structured logger and keeps secrets out of
// anything printed. Mask redacts bearer tokens, passwords and API keys in
// free-form strings such as provider error bodies and request URLs.
package logging

import "regexp"

var (
	rePassword = regexp.MustCompile(`(?i)(password=|"password"\s*:\s*")([^\s;&"]+)`)
	reToken    = regexp.MustCompile(`(?i)(token=|bearer\s+|"idToken"\s*:\s*")([A-Za-z0-9._-]+)`)
	reAPIKey   = regexp.MustCompile(`(?i)([?&]key=|apikey=|api_key=)([^\s;&]+)`)
)

// Mask replaces sensitive values in the input string with "***".
func Mask(s string) string {
	out := s
	out = rePassword.ReplaceAllString(out, "$1***")
	out = reToken.ReplaceAllString(out, "$1***")
	out = reAPIKey.ReplaceAllString(out, "$1***")
	return out
}
