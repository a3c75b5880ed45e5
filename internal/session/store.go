package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"

	"semaphore/dashboard/internal/logger"
	"semaphore/dashboard/internal/metrics"
	"semaphore/dashboard/internal/storage"
)

// RemoteLogout invalidates the session on the backend.
type RemoteLogout interface {
	Logout(ctx context.Context, refreshToken string) error
}

// Store is the session of one browser: who is logged in and with which
// tokens. Memory and persisted storage are always mutated together under mu.
type Store struct {
	kv     storage.KV
	remote RemoteLogout
	log    logger.Logger
	delay  time.Duration
	now    func() time.Time

	mu           sync.RWMutex
	state        State
	user         *User
	accessToken  string
	refreshToken string

	ready     chan struct{}
	readyOnce sync.Once
}

func NewStore(kv storage.KV, remote RemoteLogout, log logger.Logger, restoreDelay time.Duration) *Store {
	if log == nil {
		log = logger.Nop{}
	}
	return &Store{
		kv:     kv,
		remote: remote,
		log:    log,
		delay:  restoreDelay,
		now:    time.Now,
		state:  StateLoading,
		ready:  make(chan struct{}),
	}
}

// Login establishes the session for an identity the backend already
// authenticated. Only admins and teachers may hold a session; the check runs
// before anything is written.
func (s *Store) Login(ctx context.Context, user User, accessToken, refreshToken string) error {
	if !user.Role.CanSignIn() {
		metrics.Logins.WithLabelValues("role_rejected").Inc()
		return &RoleNotAllowedError{Role: user.Role}
	}
	if accessToken == "" || refreshToken == "" {
		metrics.Logins.WithLabelValues("missing_token").Inc()
		return ErrMissingToken
	}
	encoded, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "encoding user")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Set(ctx, map[string]string{
		KeyUser:         string(encoded),
		KeyToken:        accessToken,
		KeyRefreshToken: refreshToken,
	}); err != nil {
		rollbackCtx, cancel := detached(ctx)
		_ = s.kv.Remove(rollbackCtx, persistedKeys...)
		cancel()
		metrics.Logins.WithLabelValues("storage_error").Inc()
		return errors.Wrap(err, "persisting session")
	}

	u := user
	s.user = &u
	s.accessToken = accessToken
	s.refreshToken = refreshToken
	if s.state != StateLoading {
		s.state = StateAuthenticated
	}
	metrics.Logins.WithLabelValues("ok").Inc()
	return nil
}

// Logout asks the backend to invalidate the stored refresh token and then
// clears the local session whatever the backend answered.
func (s *Store) Logout(ctx context.Context) (err error) {
	defer func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		err = s.clearLocked(ctx)
	}()

	refreshToken, ok, getErr := s.kv.Get(ctx, KeyRefreshToken)
	if getErr != nil {
		s.log.Error("logout: reading refresh token", getErr)
		return nil
	}

	s.mu.RLock()
	remote := s.remote
	s.mu.RUnlock()

	if !ok || refreshToken == "" || remote == nil {
		metrics.Logouts.WithLabelValues("skipped").Inc()
		return nil
	}
	if remoteErr := remote.Logout(ctx, refreshToken); remoteErr != nil {
		metrics.Logouts.WithLabelValues("failed").Inc()
		s.log.Error("logout: remote session invalidation failed", remoteErr)
		return nil
	}
	metrics.Logouts.WithLabelValues("ok").Inc()
	return nil
}

// Invalidate drops the session without contacting the backend. Used when the
// backend rejected the token or the token expired.
func (s *Store) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(ctx)
}

// Restore waits the restore delay, then reloads the session from storage.
// If ctx ends before the delay fires nothing is touched and ctx.Err() is
// returned; the store then stays in StateLoading.
func (s *Store) Restore(ctx context.Context) error {
	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		metrics.Restores.WithLabelValues("cancelled").Inc()
		return ctx.Err()
	case <-timer.C:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.markReadyLocked()

	outcome, err := s.restoreLocked(ctx)
	metrics.Restores.WithLabelValues(outcome).Inc()
	return err
}

func (s *Store) restoreLocked(ctx context.Context) (string, error) {
	values := make(map[string]string, len(persistedKeys))
	for _, key := range persistedKeys {
		value, ok, err := s.kv.Get(ctx, key)
		if err != nil {
			return "error", errors.Wrapf(err, "reading %s", key)
		}
		if !ok || value == "" {
			return "empty", nil
		}
		values[key] = value
	}

	if Expired(values[KeyToken], s.now()) {
		return "expired", s.clearLocked(ctx)
	}

	var user User
	if err := json.Unmarshal([]byte(values[KeyUser]), &user); err != nil {
		s.log.Warn("restore: stored user is not valid JSON", err)
		return "expired", s.clearLocked(ctx)
	}

	s.user = &user
	s.accessToken = values[KeyToken]
	s.refreshToken = values[KeyRefreshToken]
	return "restored", nil
}

func (s *Store) clearLocked(ctx context.Context) error {
	s.user = nil
	s.accessToken = ""
	s.refreshToken = ""
	if s.state != StateLoading {
		s.state = StateUnauthenticated
	}
	ctx, cancel := detached(ctx)
	defer cancel()
	return errors.Wrap(s.kv.Remove(ctx, persistedKeys...), "clearing session storage")
}

// clearTimeout bounds a storage clear that outlives the caller's context.
const clearTimeout = 5 * time.Second

// detached keeps ctx values but not its cancellation, so a browser that goes
// away mid-logout still gets its persisted session removed.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), clearTimeout)
}

func (s *Store) markReadyLocked() {
	if s.user != nil {
		s.state = StateAuthenticated
	} else {
		s.state = StateUnauthenticated
	}
	s.readyOnce.Do(func() { close(s.ready) })
}

// WaitReady blocks until restoration has completed or ctx ends.
func (s *Store) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) CurrentUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{State: s.state}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}
