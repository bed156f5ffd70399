// Copyright (c) 2025 The tokenkeeper Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"tokenkeeper/cli/internal/auth"
	"tokenkeeper/cli/internal/credential"
	apperrors "tokenkeeper/cli/internal/errors"
	"tokenkeeper/cli/internal/httperrors"
	"tokenkeeper/cli/internal/session"
)

var (
	loginEmail     string
	loginPassword  string
	loginToken     string
	loginExpiresAt string
	loginExpiresIn time.Duration
	loginForce     bool
)

// loginCmd signs in and stores the resulting session.
// With --token it stores an existing bearer credential instead of calling
// the identity provider.
var loginCmd = &cobra.Command{
	Use:     "login",
	Aliases: []string{"auth"},
	Short:   "Sign in and store the session credential",
	Long: `The login command signs in with email and password against the identity
provider and stores the returned credential together with its absolute expiry.
Missing values are prompted for; the password is read without echo.

With --token an existing bearer credential is stored instead. Its expiry comes
from --expires-at (ISO-8601), --expires-in, or the token's own exp claim.

If a session is already active the command does nothing unless --force is set.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		mgr, closeStore, err := openSession(ctx, cfg)
		defer closeStore()
		if err != nil {
			return err
		}

		if mgr.IsLoggedIn() && !loginForce {
			pterm.Info.Printf("Already logged in (session valid for %s). Use --force to sign in again.\n",
				formatRemaining(mgr.Remaining()))
			return nil
		}

		if loginToken != "" {
			return loginWithToken(mgr, loginToken, loginExpiresAt, loginExpiresIn, time.Now())
		}

		email, password, err := askCredentials(newPrompter(), loginEmail, loginPassword)
		if err != nil {
			return err
		}

		svc, idp := newAuthService(cfg, mgr)
		stop := startInlineSpinner(os.Stderr, "Signing in", spinnerFrames, 120*time.Millisecond)
		account, err := svc.SignIn(ctx, email, password)
		stop()
		if err != nil {
			if apperrors.IsKind(err, apperrors.AuthFailed) {
				return httperrors.Present(err, "signing in", idp.BaseURL())
			}
			return err
		}
		showLoginGreeting(account)
		warnShortSession(mgr)
		return nil
	},
}

// loginWithToken stores an existing credential. An explicit ISO-8601 expiry
// is passed through as given; other sources resolve to an absolute time.
func loginWithToken(mgr *session.Manager, token, expiresAt string, expiresIn time.Duration, now time.Time) error {
	if expiresAt != "" {
		if err := mgr.Login(token, expiresAt); err != nil {
			return err
		}
	} else {
		at, err := resolveTokenExpiry(token, expiresIn, now)
		if err != nil {
			return err
		}
		if err := mgr.LoginAt(token, at); err != nil {
			return err
		}
	}
	if !mgr.IsLoggedIn() {
		return apperrors.New(apperrors.MalformedInput, "the credential has already expired")
	}
	pterm.Success.Printf("Credential stored (%s), valid until %s\n",
		credential.Mask(token), mgr.ExpiresAt().Local().Format(time.RFC1123))
	warnShortSession(mgr)
	return nil
}

// resolveTokenExpiry picks the expiry for a bare token: now+expiresIn when
// given, otherwise the token's exp claim.
func resolveTokenExpiry(token string, expiresIn time.Duration, now time.Time) (time.Time, error) {
	if expiresIn > 0 {
		return now.Add(expiresIn), nil
	}
	at, err := credential.ExpiryFromJWT(token)
	if err != nil {
		if errors.Is(err, credential.ErrNoExpiry) {
			return time.Time{}, apperrors.New(apperrors.MalformedInput,
				"token carries no expiry; pass --expires-at or --expires-in")
		}
		return time.Time{}, apperrors.Wrap(apperrors.MalformedInput,
			"cannot read token expiry; pass --expires-at or --expires-in", err)
	}
	return at, nil
}

// showLoginGreeting displays a friendly greeting with the user's email after login.
func showLoginGreeting(account auth.Account) {
	who := account.Email
	if who == "" {
		who = account.LocalID
	}
	if who == "" {
		fmt.Println("✅ Login successful!")
		return
	}
	fmt.Println(getRandomLoginGreeting(who))
	pterm.Debug.Printf("Session valid until %s\n", account.ExpiresAt.Local().Format(time.RFC1123))
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "Account email (prompted when empty)")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (prompted without echo when empty)")
	loginCmd.Flags().StringVar(&loginToken, "token", "", "Store an existing bearer credential instead of signing in")
	loginCmd.Flags().StringVar(&loginExpiresAt, "expires-at", "", "ISO-8601 expiry for --token, e.g. 2026-01-02T15:04:05Z")
	loginCmd.Flags().DurationVar(&loginExpiresIn, "expires-in", 0, "Validity of --token from now, e.g. 2h")
	loginCmd.Flags().BoolVarP(&loginForce, "force", "f", false, "Sign in even when a session is active")
	loginCmd.MarkFlagsMutuallyExclusive("expires-at", "expires-in")
	loginCmd.MarkFlagsMutuallyExclusive("token", "email")
}
