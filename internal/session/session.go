// Package session owns the authentication session lifecycle: the in-memory
// credential and its absolute expiry, a durable mirror of both in a
// store.Store, and the single timer that ends the session when it expires.
//
// A Manager has two states. LoggedOut becomes LoggedIn through Login or a
// successful Recover; LoggedIn returns to LoggedOut through Logout or the
// expiry timer. A second Login replaces the session and its timer without
// passing through LoggedOut.
package session

import "time"

// DefaultExpiryMargin is how much validity a stored session must still have
// for Recover to adopt it.
const DefaultExpiryMargin = time.Hour

// Session pairs a bearer credential with the instant it stops being valid.
// The zero value is the logged-out session.
type Session struct {
	Credential string
	ExpiresAt  time.Time
}

// IsLoggedIn reports whether a credential is present.
func (s Session) IsLoggedIn() bool {
	return s.Credential != ""
}

// Remaining returns the validity left at now; zero when logged out.
func (s Session) Remaining(now time.Time) time.Duration {
	if !s.IsLoggedIn() {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}
