// Copyright (c) 2025 The tokenkeeper Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	apperrors "tokenkeeper/cli/internal/errors"
	"tokenkeeper/cli/internal/httperrors"
	"tokenkeeper/cli/internal/identity"
)

// passwdCmd changes the account password using the current session.
var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the account password",
	Long: `The passwd command sets a new password for the signed-in account. The
identity provider revokes the current credential when the password changes,
so the local session is ended and you need to log in again.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		mgr, closeStore, err := openSession(ctx, cfg)
		defer closeStore()
		if err != nil {
			return err
		}
		if !mgr.IsLoggedIn() {
			return apperrors.New(apperrors.NotLoggedIn, "not logged in; run 'tokenkeeper login'")
		}

		password, err := askNewPassword(newPrompter(), "New password: ")
		if err != nil {
			return err
		}
		if len(password) < identity.MinPasswordLength {
			return apperrors.Wrap(apperrors.MalformedInput, "change password", identity.ErrPasswordTooShort)
		}

		svc, idp := newAuthService(cfg, mgr)
		stop := startInlineSpinner(os.Stderr, "Changing password", spinnerFrames, 120*time.Millisecond)
		err = svc.ChangePassword(ctx, password)
		stop()
		if err != nil {
			if apperrors.IsKind(err, apperrors.AuthFailed) {
				return httperrors.Present(err, "changing the password", idp.BaseURL())
			}
			return err
		}
		pterm.Success.Println("Password changed. Log in again with the new password.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(passwdCmd)
}
