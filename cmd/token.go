// Copyright (c) 2025 The tokenkeeper Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	apperrors "tokenkeeper/cli/internal/errors"
)

// tokenCmd prints the raw credential for use in scripts, e.g.
//
//	curl -H "Authorization: Bearer $(tokenkeeper token)" ...
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print the current credential",
	Long: `The token command prints the stored bearer credential to stdout and nothing
else. It fails when no session is active or when the session is within the
expiry margin of its end.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, closeStore, err := openSession(cmd.Context(), cfg)
		defer closeStore()
		if err != nil {
			return err
		}
		cred := mgr.Credential()
		if cred == "" {
			return apperrors.New(apperrors.NotLoggedIn, "not logged in; run 'tokenkeeper login'")
		}
		fmt.Fprintln(cmd.OutOrStdout(), cred)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}
