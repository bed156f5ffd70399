// Package main is the entry point for the tokenkeeper CLI.
// It signs in against an identity provider and keeps the resulting
// session credential until it expires.
package main

import (
	"tokenkeeper/cli/cmd"
)

func main() {
	cmd.Execute()
}
