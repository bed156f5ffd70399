// Copyright (c) 2025 The tokenkeeper Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	apperrors "tokenkeeper/cli/internal/errors"
	"tokenkeeper/cli/internal/httperrors"
	"tokenkeeper/cli/internal/identity"
)

var signupEmail string

// signupCmd creates an account and logs into it.
var signupCmd = &cobra.Command{
	Use:     "signup",
	Aliases: []string{"register"},
	Short:   "Create an account and start a session",
	Long: fmt.Sprintf(`The signup command creates an account at the identity provider with an email
and a password of at least %d characters. The password is asked twice.
On success the new account is signed in and its session stored, replacing
any current session.`, identity.MinPasswordLength),

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		p := newPrompter()
		email := signupEmail
		if email == "" {
			var err error
			if email, err = p.Line("Email: "); err != nil {
				return fmt.Errorf("read email: %w", err)
			}
		}
		password, err := askNewPassword(p, "Choose a password: ")
		if err != nil {
			return err
		}
		if len(password) < identity.MinPasswordLength {
			return apperrors.Wrap(apperrors.MalformedInput, "sign up", identity.ErrPasswordTooShort)
		}

		mgr, closeStore, err := openSession(ctx, cfg)
		defer closeStore()
		if err != nil {
			return err
		}

		svc, idp := newAuthService(cfg, mgr)
		stop := startInlineSpinner(os.Stderr, "Creating account", spinnerFrames, 120*time.Millisecond)
		account, err := svc.SignUp(ctx, email, password)
		stop()
		if err != nil {
			if apperrors.IsKind(err, apperrors.AuthFailed) {
				return httperrors.Present(err, "creating the account", idp.BaseURL())
			}
			return err
		}
		showLoginGreeting(account)
		warnShortSession(mgr)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(signupCmd)
	signupCmd.Flags().StringVarP(&signupEmail, "email", "e", "", "Account email (prompted when empty)")
}
