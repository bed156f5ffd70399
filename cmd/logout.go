// Copyright (c) 2025 The tokenkeeper Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// logoutCmd represents the logout command for clearing the stored session.
// Logging out without a session is not an error.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored credential and its expiry",
	Long: `The logout command ends the current session. It removes the credential and
its expiry from the configured store and cancels any pending expiry.

The identity provider keeps no server-side session for ID tokens, so nothing
is revoked remotely.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, closeStore, err := openSession(cmd.Context(), cfg)
		defer closeStore()
		if err != nil {
			return err
		}
		if err := mgr.Logout(); err != nil {
			return err
		}
		fmt.Println("✅ Session credential has been removed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
