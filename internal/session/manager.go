package session

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"tokenkeeper/cli/internal/credential"
	apperrors "tokenkeeper/cli/internal/errors"
	"tokenkeeper/cli/internal/store"
)

// Manager holds the current session, mirrors it to a durable store and
// schedules its expiry. All methods are safe for concurrent use; the expiry
// callback is the only entry point that runs on its own goroutine.
type Manager struct {
	store     store.Store
	clock     clockwork.Clock
	scheduler Scheduler
	margin    time.Duration
	logger    *slog.Logger
	onExpire  func(Session)

	mu      sync.Mutex
	current Session
	id      string
	timer   Timer
	// gen changes on every schedule and cancel. A callback that already
	// left the scheduler when Stop was called sees a newer gen and does nothing.
	gen uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source. The default scheduler follows it.
func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithScheduler replaces the clock-based scheduler.
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) { m.scheduler = s }
}

// WithExpiryMargin sets the minimum validity Recover requires.
func WithExpiryMargin(d time.Duration) Option {
	return func(m *Manager) { m.margin = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithExpireHook registers fn to run after the expiry timer ended a session.
// fn receives the session that expired and runs outside the manager's lock.
func WithExpireHook(fn func(Session)) Option {
	return func(m *Manager) { m.onExpire = fn }
}

// New returns a logged-out Manager persisting to st. Call Recover to pick up
// a session left by a previous process.
func New(st store.Store, opts ...Option) *Manager {
	m := &Manager{
		store:  st,
		clock:  clockwork.NewRealClock(),
		margin: DefaultExpiryMargin,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.scheduler == nil {
		m.scheduler = ClockScheduler{Clock: m.clock}
	}
	return m
}

// Recover adopts the session found in the store and schedules its expiry.
// It reports false when there is nothing usable: no stored pair, an
// unreadable store, a corrupt pair, or a session with no more than the
// expiry margin left. Corrupt and nearly expired pairs are purged.
func (m *Manager) Recover() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, credErr := m.store.Get(store.KeyCredential)
	rawExp, expErr := m.store.Get(store.KeyExpiresAt)

	credMissing := errors.Is(credErr, store.ErrNotFound)
	expMissing := errors.Is(expErr, store.ErrNotFound)
	switch {
	case credMissing && expMissing:
		m.logger.Debug("no stored session")
		return Session{}, false
	case (credErr != nil && !credMissing) || (expErr != nil && !expMissing):
		m.logger.Warn("session store unreadable, starting logged out", "error", errors.Join(credErr, expErr))
		return Session{}, false
	case credMissing || expMissing:
		m.logger.Warn("stored session is incomplete, purging")
		m.purgeLocked()
		return Session{}, false
	}

	expiresAt, err := credential.ParseExpiry(rawExp)
	if err != nil || strings.TrimSpace(cred) == "" {
		m.logger.Warn("stored session is corrupt, purging", "error", err)
		m.purgeLocked()
		return Session{}, false
	}

	remaining := expiresAt.Sub(m.clock.Now())
	if remaining <= m.margin {
		m.logger.Info("stored session expired, purging", "expires_at", expiresAt, "remaining", remaining, "margin", m.margin)
		m.purgeLocked()
		return Session{}, false
	}

	m.cancelLocked()
	m.current = Session{Credential: cred, ExpiresAt: expiresAt}
	m.id = uuid.NewString()
	m.scheduleLocked(remaining)
	m.logger.Info("session recovered", "session_id", m.id, "expires_at", expiresAt, "remaining", remaining)
	return m.current, true
}

// Login establishes a session from an absolute ISO-8601 expiry such as
// "2024-05-01T12:00:00.000Z". An empty credential or unparseable expiry is
// a MalformedInput error and leaves the current session untouched.
func (m *Manager) Login(cred, expiresAt string) error {
	t, err := credential.ParseExpiry(expiresAt)
	if err != nil {
		return apperrors.Wrap(apperrors.MalformedInput, "invalid expiry", err)
	}
	return m.LoginAt(cred, t)
}

// LoginAt is Login for callers that already hold the expiry as a time.
//
// The previous timer is cancelled, both slots are written, and a new timer
// is scheduled for the remaining validity. An expiry at or before now ends
// the session before LoginAt returns. If the store rejects a write the
// manager ends up logged out with the store cleared as far as possible and
// a StorageFailed error is returned.
func (m *Manager) LoginAt(cred string, expiresAt time.Time) error {
	if strings.TrimSpace(cred) == "" {
		return apperrors.New(apperrors.MalformedInput, "credential is empty")
	}
	if expiresAt.IsZero() {
		return apperrors.New(apperrors.MalformedInput, "expiry is not set")
	}

	m.mu.Lock()
	m.cancelLocked()

	if err := m.persistLocked(cred, expiresAt); err != nil {
		m.current = Session{}
		m.id = ""
		m.purgeLocked()
		m.mu.Unlock()
		return apperrors.Wrap(apperrors.StorageFailed, "persist session", err)
	}

	m.current = Session{Credential: cred, ExpiresAt: expiresAt}
	m.id = uuid.NewString()
	remaining := expiresAt.Sub(m.clock.Now())
	m.logger.Info("session established", "session_id", m.id, "expires_at", expiresAt, "remaining", remaining)

	if remaining > 0 {
		m.scheduleLocked(remaining)
		m.mu.Unlock()
		return nil
	}

	gen := m.gen
	m.mu.Unlock()
	m.expire(gen)
	return nil
}

// Logout ends the session, cancels the expiry timer and clears the store.
// Logging out while logged out is a no-op apart from re-clearing the store.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endLocked("logout")
}

// IsLoggedIn reports whether a credential is held.
func (m *Manager) IsLoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.IsLoggedIn()
}

// Credential returns the bearer credential, or "" when logged out.
func (m *Manager) Credential() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Credential
}

// ExpiresAt returns the session expiry, or the zero time when logged out.
func (m *Manager) ExpiresAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.ExpiresAt
}

// Current returns a copy of the session.
func (m *Manager) Current() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Remaining returns the validity left according to the manager's clock.
func (m *Manager) Remaining() time.Duration {
	s := m.Current()
	return s.Remaining(m.clock.Now())
}

// ExpiryMargin returns the minimum validity Recover requires.
func (m *Manager) ExpiryMargin() time.Duration {
	return m.margin
}

// Recoverable reports whether a Recover in a new process would adopt the
// current session, i.e. whether more than the expiry margin is left.
func (m *Manager) Recoverable() bool {
	s := m.Current()
	return s.IsLoggedIn() && s.Remaining(m.clock.Now()) > m.margin
}

// ExpiryPending reports whether an expiry timer is scheduled.
func (m *Manager) ExpiryPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timer != nil
}

// expire is the timer callback. It must not call into the clock: fake
// clocks may run it while holding their own lock.
func (m *Manager) expire(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	ended := m.current
	err := m.endLocked("expired")
	hook := m.onExpire
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("failed to clear expired session", "error", err)
	}
	if hook != nil && ended.IsLoggedIn() {
		hook(ended)
	}
}

func (m *Manager) endLocked(reason string) error {
	m.cancelLocked()
	wasLoggedIn := m.current.IsLoggedIn()
	id := m.id
	m.current = Session{}
	m.id = ""

	if err := m.clearStoreLocked(); err != nil {
		return apperrors.Wrap(apperrors.StorageFailed, "clear stored session", err)
	}
	if wasLoggedIn {
		m.logger.Info("session ended", "session_id", id, "reason", reason)
	}
	return nil
}

func (m *Manager) scheduleLocked(d time.Duration) {
	m.gen++
	gen := m.gen
	m.timer = m.scheduler.AfterFunc(d, func() { m.expire(gen) })
}

func (m *Manager) cancelLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.gen++
}

func (m *Manager) persistLocked(cred string, expiresAt time.Time) error {
	if err := m.store.Set(store.KeyCredential, cred); err != nil {
		return err
	}
	return m.store.Set(store.KeyExpiresAt, credential.FormatExpiry(expiresAt))
}

func (m *Manager) clearStoreLocked() error {
	return errors.Join(
		m.store.Remove(store.KeyCredential),
		m.store.Remove(store.KeyExpiresAt),
	)
}

// purgeLocked clears the store when there is no caller to report to.
func (m *Manager) purgeLocked() {
	if err := m.clearStoreLocked(); err != nil {
		m.logger.Warn("failed to purge stored session", "error", err)
	}
}
