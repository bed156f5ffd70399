// Copyright (c) 2025 The tokenkeeper Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package auth connects the identity provider to the session manager.
// It turns a successful sign-in into a session (credential plus absolute
// expiry) and runs account operations that need the current credential.
package auth

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	apperrors "tokenkeeper/cli/internal/errors"
	"tokenkeeper/cli/internal/identity"
	"tokenkeeper/cli/internal/session"
)

// Authenticator is the provider surface the service depends on.
// Implementations may call a real provider or provide fakes for tests.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (identity.Token, error)
	SignUp(ctx context.Context, email, password string) (identity.Token, error)
	ChangePassword(ctx context.Context, idToken, newPassword string) error
}

// Account identifies who a session belongs to.
type Account struct {
	Email     string
	LocalID   string
	ExpiresAt time.Time
}

// Service centralizes authentication operations against the provider and
// the local session.
type Service struct {
	idp      Authenticator
	sessions *session.Manager
	clock    clockwork.Clock
}

// NewService wires a provider to a session manager.
func NewService(idp Authenticator, sessions *session.Manager, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{idp: idp, sessions: sessions, clock: clock}
}

// Sessions returns the underlying session manager.
func (s *Service) Sessions() *session.Manager { return s.sessions }

// SignIn authenticates with email and password and establishes a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (Account, error) {
	tok, err := s.idp.SignIn(ctx, email, password)
	if err != nil {
		return Account{}, apperrors.Wrap(apperrors.AuthFailed, "sign in", err)
	}
	return s.establish(tok)
}

// SignUp creates an account and establishes a session for it.
func (s *Service) SignUp(ctx context.Context, email, password string) (Account, error) {
	tok, err := s.idp.SignUp(ctx, email, password)
	if err != nil {
		return Account{}, apperrors.Wrap(apperrors.AuthFailed, "sign up", err)
	}
	return s.establish(tok)
}

func (s *Service) establish(tok identity.Token) (Account, error) {
	expiresAt := tok.ExpiresAt(s.clock.Now())
	if err := s.sessions.LoginAt(tok.IDToken, expiresAt); err != nil {
		return Account{}, err
	}
	return Account{Email: tok.Email, LocalID: tok.LocalID, ExpiresAt: expiresAt}, nil
}

// ChangePassword sets a new password using the current credential. The
// provider revokes the credential, so the local session ends on success.
func (s *Service) ChangePassword(ctx context.Context, newPassword string) error {
	token := s.sessions.Credential()
	if token == "" {
		return apperrors.New(apperrors.NotLoggedIn, "log in before changing the password")
	}
	if err := s.idp.ChangePassword(ctx, token, newPassword); err != nil {
		return apperrors.Wrap(apperrors.AuthFailed, "change password", err)
	}
	return s.sessions.Logout()
}

// Logout clears the local session. The provider keeps no server-side
// session for ID tokens, so there is nothing remote to revoke.
func (s *Service) Logout() error {
	return s.sessions.Logout()
}
