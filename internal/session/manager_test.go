package session

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenkeeper/cli/internal/credential"
	apperrors "tokenkeeper/cli/internal/errors"
	"tokenkeeper/cli/internal/store"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, st store.Store, opts ...Option) (*Manager, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	base := []Option{WithClock(clock), WithLogger(quietLogger())}
	return New(st, append(base, opts...)...), clock
}

func iso(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func requireStoreEmpty(t *testing.T, st store.Store) {
	t.Helper()
	_, err := st.Get(store.KeyCredential)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Get(store.KeyExpiresAt)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestLogin_EstablishesAndPersists(t *testing.T) {
	st := store.NewMemory()
	m, _ := newTestManager(t, st)

	require.NoError(t, m.Login("tok-A", iso(t0.Add(2*time.Hour))))

	assert.True(t, m.IsLoggedIn())
	assert.Equal(t, "tok-A", m.Credential())
	assert.True(t, t0.Add(2*time.Hour).Equal(m.ExpiresAt()))
	assert.Equal(t, 2*time.Hour, m.Remaining())
	assert.True(t, m.ExpiryPending())

	v, err := st.Get(store.KeyCredential)
	require.NoError(t, err)
	assert.Equal(t, "tok-A", v)

	v, err = st.Get(store.KeyExpiresAt)
	require.NoError(t, err)
	stored, err := credential.ParseExpiry(v)
	require.NoError(t, err)
	assert.True(t, t0.Add(2*time.Hour).Equal(stored))
}

func TestLogin_ExpiresAfterValidityWindow(t *testing.T) {
	st := store.NewMemory()
	m, clock := newTestManager(t, st)

	require.NoError(t, m.Login("tok-A", iso(t0.Add(2*time.Hour))))
	require.True(t, m.IsLoggedIn())

	clock.Advance(2*time.Hour + time.Second)

	require.Eventually(t, func() bool { return !m.IsLoggedIn() }, time.Second, time.Millisecond)
	assert.Equal(t, "", m.Credential())
	assert.False(t, m.ExpiryPending())
	requireStoreEmpty(t, st)
}

func TestLogin_DoesNotExpireEarly(t *testing.T) {
	m, clock := newTestManager(t, store.NewMemory())

	require.NoError(t, m.Login("tok-A", iso(t0.Add(2*time.Hour))))
	clock.Advance(2*time.Hour - time.Second)

	assert.Never(t, func() bool { return !m.IsLoggedIn() }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestLogin_PastExpiryEndsImmediately(t *testing.T) {
	st := store.NewMemory()
	m, _ := newTestManager(t, st)

	require.NoError(t, m.Login("tok-A", iso(t0.Add(-time.Minute))))

	assert.False(t, m.IsLoggedIn())
	assert.False(t, m.ExpiryPending())
	requireStoreEmpty(t, st)
}

func TestLogin_SupersedesPreviousTimer(t *testing.T) {
	st := store.NewMemory()
	m, clock := newTestManager(t, st)

	require.NoError(t, m.Login("tok-1", iso(t0.Add(1*time.Hour))))
	require.NoError(t, m.Login("tok-2", iso(t0.Add(3*time.Hour))))

	clock.Advance(time.Hour + time.Second)
	assert.Never(t, func() bool { return !m.IsLoggedIn() }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, "tok-2", m.Credential())

	clock.Advance(2 * time.Hour)
	require.Eventually(t, func() bool { return !m.IsLoggedIn() }, time.Second, time.Millisecond)
	requireStoreEmpty(t, st)
}

func TestLogin_RejectsMalformedInput(t *testing.T) {
	st := store.NewMemory()
	m, _ := newTestManager(t, st)
	require.NoError(t, m.Login("tok-A", iso(t0.Add(2*time.Hour))))

	tests := []struct {
		name      string
		cred      string
		expiresAt string
	}{
		{name: "unparseable expiry", cred: "tok-B", expiresAt: "next tuesday"},
		{name: "empty expiry", cred: "tok-B", expiresAt: ""},
		{name: "empty credential", cred: "", expiresAt: iso(t0.Add(time.Hour))},
		{name: "blank credential", cred: "   ", expiresAt: iso(t0.Add(time.Hour))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.Login(tt.cred, tt.expiresAt)
			require.Error(t, err)
			assert.True(t, apperrors.IsKind(err, apperrors.MalformedInput))
			assert.Equal(t, "tok-A", m.Credential(), "current session untouched")
		})
	}

	assert.ErrorIs(t, m.LoginAt("tok-B", time.Time{}), apperrors.New(apperrors.MalformedInput, ""))
}

func TestLogout_ClearsEverything(t *testing.T) {
	st := store.NewMemory()
	m, _ := newTestManager(t, st)
	require.NoError(t, m.Login("tok-A", iso(t0.Add(2*time.Hour))))

	require.NoError(t, m.Logout())

	assert.False(t, m.IsLoggedIn())
	assert.Equal(t, "", m.Credential())
	assert.True(t, m.ExpiresAt().IsZero())
	assert.False(t, m.ExpiryPending())
	assert.Zero(t, m.Remaining())
	requireStoreEmpty(t, st)
}

func TestLogout_Idempotent(t *testing.T) {
	st := store.NewMemory()
	m, _ := newTestManager(t, st)

	require.NoError(t, m.Logout(), "logout while logged out")

	require.NoError(t, m.Login("tok-A", iso(t0.Add(2*time.Hour))))
	require.NoError(t, m.Logout())
	require.NoError(t, m.Logout())

	assert.False(t, m.IsLoggedIn())
	assert.Equal(t, 0, st.Len())
}

func TestLogout_CancelsTimer(t *testing.T) {
	var expired int
	m, clock := newTestManager(t, store.NewMemory(), WithExpireHook(func(Session) { expired++ }))

	require.NoError(t, m.Login("tok-A", iso(t0.Add(time.Hour))))
	require.NoError(t, m.Logout())
	require.NoError(t, m.Login("tok-B", iso(t0.Add(5*time.Hour))))

	clock.Advance(2 * time.Hour)

	assert.Never(t, func() bool { return !m.IsLoggedIn() }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, 0, expired)
}

func TestRecover_EmptyStore(t *testing.T) {
	m, _ := newTestManager(t, store.NewMemory())

	s, ok := m.Recover()

	assert.False(t, ok)
	assert.False(t, s.IsLoggedIn())
	assert.False(t, m.IsLoggedIn())
	assert.False(t, m.ExpiryPending())
}

func TestRecover_RoundTripAcrossRestart(t *testing.T) {
	st := store.NewMemory()
	first, clock := newTestManager(t, st)
	require.NoError(t, first.Login("tok-A", iso(t0.Add(3*time.Hour))))

	// A new process: fresh manager over the same store, one hour later.
	clock.Advance(time.Hour)
	second := New(st, WithClock(clock), WithLogger(quietLogger()))

	s, ok := second.Recover()

	require.True(t, ok)
	assert.Equal(t, "tok-A", s.Credential)
	assert.True(t, second.IsLoggedIn())
	assert.Equal(t, "tok-A", second.Credential())
	assert.Equal(t, 2*time.Hour, second.Remaining())
	assert.True(t, second.ExpiryPending())
}

func TestRecover_SchedulesRemainingTime(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.Set(store.KeyCredential, "tok-A"))
	require.NoError(t, st.Set(store.KeyExpiresAt, iso(t0.Add(90*time.Minute))))
	m, clock := newTestManager(t, st)

	_, ok := m.Recover()
	require.True(t, ok)

	clock.Advance(89 * time.Minute)
	assert.True(t, m.IsLoggedIn())

	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return !m.IsLoggedIn() }, time.Second, time.Millisecond)
	requireStoreEmpty(t, st)
}

func TestRecover_ExpiryMargin(t *testing.T) {
	tests := []struct {
		name      string
		remaining time.Duration
		recovered bool
	}{
		{name: "well inside validity", remaining: 5 * time.Hour, recovered: true},
		{name: "just over margin", remaining: time.Hour + time.Second, recovered: true},
		{name: "exactly margin", remaining: time.Hour, recovered: false},
		{name: "inside margin", remaining: 30 * time.Minute, recovered: false},
		{name: "already expired", remaining: -24 * time.Hour, recovered: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemory()
			require.NoError(t, st.Set(store.KeyCredential, "tok-A"))
			require.NoError(t, st.Set(store.KeyExpiresAt, iso(t0.Add(tt.remaining))))
			m, _ := newTestManager(t, st)

			_, ok := m.Recover()

			assert.Equal(t, tt.recovered, ok)
			assert.Equal(t, tt.recovered, m.IsLoggedIn())
			assert.Equal(t, tt.recovered, m.ExpiryPending())
			if !tt.recovered {
				requireStoreEmpty(t, st)
			}
		})
	}
}

func TestRecover_CustomMargin(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.Set(store.KeyCredential, "tok-A"))
	require.NoError(t, st.Set(store.KeyExpiresAt, iso(t0.Add(10*time.Minute))))
	m, _ := newTestManager(t, st, WithExpiryMargin(time.Minute))

	_, ok := m.Recover()
	assert.True(t, ok)
}

func TestRecover_IncompletePairIsPurged(t *testing.T) {
	t.Run("credential only", func(t *testing.T) {
		st := store.NewMemory()
		require.NoError(t, st.Set(store.KeyCredential, "tok-A"))
		m, _ := newTestManager(t, st)

		_, ok := m.Recover()
		assert.False(t, ok)
		requireStoreEmpty(t, st)
	})

	t.Run("expiry only", func(t *testing.T) {
		st := store.NewMemory()
		require.NoError(t, st.Set(store.KeyExpiresAt, iso(t0.Add(5*time.Hour))))
		m, _ := newTestManager(t, st)

		_, ok := m.Recover()
		assert.False(t, ok)
		requireStoreEmpty(t, st)
	})
}

func TestRecover_CorruptExpiryIsPurged(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.Set(store.KeyCredential, "tok-A"))
	require.NoError(t, st.Set(store.KeyExpiresAt, "garbage"))
	m, _ := newTestManager(t, st)

	_, ok := m.Recover()

	assert.False(t, ok)
	requireStoreEmpty(t, st)
}

func TestRecover_UnreadableStoreFallsBackToLoggedOut(t *testing.T) {
	st := &faultyStore{Memory: store.NewMemory(), getErr: errors.New("keychain locked")}
	require.NoError(t, st.Memory.Set(store.KeyCredential, "tok-A"))
	require.NoError(t, st.Memory.Set(store.KeyExpiresAt, iso(t0.Add(5*time.Hour))))
	m, _ := newTestManager(t, st)

	_, ok := m.Recover()

	assert.False(t, ok)
	assert.False(t, m.IsLoggedIn())
	assert.Equal(t, 2, st.Memory.Len(), "an unreadable store is left alone")
}

func TestLogin_StorageFailureIsSurfaced(t *testing.T) {
	st := &faultyStore{Memory: store.NewMemory()}
	m, _ := newTestManager(t, st)
	require.NoError(t, m.Login("tok-A", iso(t0.Add(2*time.Hour))))

	st.setErr = errors.New("disk full")
	err := m.Login("tok-B", iso(t0.Add(3*time.Hour)))

	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.StorageFailed))
	assert.ErrorIs(t, err, st.setErr)
	assert.False(t, m.IsLoggedIn())
	assert.False(t, m.ExpiryPending())
	assert.Equal(t, 0, st.Memory.Len())
}

func TestLogout_StorageFailureIsSurfaced(t *testing.T) {
	st := &faultyStore{Memory: store.NewMemory()}
	m, _ := newTestManager(t, st)
	require.NoError(t, m.Login("tok-A", iso(t0.Add(2*time.Hour))))

	st.removeErr = errors.New("keychain locked")
	err := m.Logout()

	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.StorageFailed))
	assert.False(t, m.IsLoggedIn())
}

func TestExpireHook(t *testing.T) {
	var (
		mu    sync.Mutex
		ended []Session
	)
	m, clock := newTestManager(t, store.NewMemory(), WithExpireHook(func(s Session) {
		mu.Lock()
		ended = append(ended, s)
		mu.Unlock()
	}))

	require.NoError(t, m.Login("tok-A", iso(t0.Add(time.Hour))))
	clock.Advance(time.Hour)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ended) == 1
	}, time.Second, time.Millisecond)
	mu.Lock()
	assert.Equal(t, "tok-A", ended[0].Credential)
	mu.Unlock()
}

func TestIndependentManagers(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	a := New(store.NewMemory(), WithClock(clock), WithLogger(quietLogger()))
	b := New(store.NewMemory(), WithClock(clock), WithLogger(quietLogger()))

	require.NoError(t, a.Login("tok-A", iso(t0.Add(time.Hour))))
	require.NoError(t, b.Login("tok-B", iso(t0.Add(3*time.Hour))))

	clock.Advance(2 * time.Hour)

	require.Eventually(t, func() bool { return !a.IsLoggedIn() }, time.Second, time.Millisecond)
	assert.True(t, b.IsLoggedIn())
	assert.Equal(t, "tok-B", b.Credential())
}

func TestStaleCallbackIsIgnored(t *testing.T) {
	sched := &manualScheduler{}
	st := store.NewMemory()
	m, _ := newTestManager(t, st, WithScheduler(sched))

	require.NoError(t, m.Login("tok-1", iso(t0.Add(time.Hour))))
	require.NoError(t, m.Login("tok-2", iso(t0.Add(2*time.Hour))))

	require.Len(t, sched.timers, 2)
	assert.True(t, sched.timers[0].stopped, "first timer cancelled by second login")
	assert.False(t, sched.timers[1].stopped)

	// The first callback escaped cancellation and fires anyway.
	sched.timers[0].fn()
	assert.True(t, m.IsLoggedIn())
	assert.Equal(t, "tok-2", m.Credential())

	sched.timers[1].fn()
	assert.False(t, m.IsLoggedIn())
	requireStoreEmpty(t, st)
}

func TestAtMostOnePendingTimer(t *testing.T) {
	sched := &manualScheduler{}
	m, _ := newTestManager(t, store.NewMemory(), WithScheduler(sched))

	for i := 1; i <= 5; i++ {
		require.NoError(t, m.Login("tok", iso(t0.Add(time.Duration(i)*time.Hour))))
		assert.Equal(t, 1, sched.active())
	}
	require.NoError(t, m.Logout())
	assert.Equal(t, 0, sched.active())
}

func TestRecoverable_OneHourTokenDoesNotSurviveRestart(t *testing.T) {
	st := store.NewMemory()
	m, clock := newTestManager(t, st)
	assert.Equal(t, DefaultExpiryMargin, m.ExpiryMargin())
	assert.False(t, m.Recoverable(), "logged out")

	require.NoError(t, m.LoginAt("tok", t0.Add(3600*time.Second)))
	assert.True(t, m.IsLoggedIn())
	assert.False(t, m.Recoverable())

	clock.Advance(time.Second)
	next := New(st, WithClock(clock), WithLogger(quietLogger()))
	_, ok := next.Recover()
	assert.False(t, ok)
	requireStoreEmpty(t, st)
}

func TestRecoverable_LongSessionOrSmallerMargin(t *testing.T) {
	m, _ := newTestManager(t, store.NewMemory())
	require.NoError(t, m.LoginAt("tok", t0.Add(3*time.Hour)))
	assert.True(t, m.Recoverable())

	short, _ := newTestManager(t, store.NewMemory(), WithExpiryMargin(5*time.Minute))
	require.NoError(t, short.LoginAt("tok", t0.Add(3600*time.Second)))
	assert.Equal(t, 5*time.Minute, short.ExpiryMargin())
	assert.True(t, short.Recoverable())
}

func TestSessionRemaining(t *testing.T) {
	assert.Zero(t, Session{}.Remaining(t0))
	s := Session{Credential: "x", ExpiresAt: t0.Add(time.Minute)}
	assert.Equal(t, time.Minute, s.Remaining(t0))
	assert.Equal(t, -time.Minute, s.Remaining(t0.Add(2*time.Minute)))
}

// faultyStore wraps Memory and fails selected operations.
type faultyStore struct {
	*store.Memory
	getErr    error
	setErr    error
	removeErr error
}

func (f *faultyStore) Get(key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	return f.Memory.Get(key)
}

func (f *faultyStore) Set(key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.Memory.Set(key, value)
}

func (f *faultyStore) Remove(key string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	return f.Memory.Remove(key)
}

// manualScheduler records callbacks and never fires them on its own.
type manualScheduler struct {
	timers []*manualTimer
}

type manualTimer struct {
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (s *manualScheduler) AfterFunc(_ time.Duration, fn func()) Timer {
	t := &manualTimer{fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) active() int {
	n := 0
	for _, t := range s.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}
