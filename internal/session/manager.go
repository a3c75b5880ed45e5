package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"semaphore/dashboard/internal/crypto"
	"semaphore/dashboard/internal/logger"
	"semaphore/dashboard/internal/metrics"
	"semaphore/dashboard/internal/storage"
)

// RemoteFactory builds the backend logout client for a store. The store is
// passed in so the client can authenticate with the store's own token.
type RemoteFactory func(*Store) RemoteLogout

type entry struct {
	store    *Store
	cancel   context.CancelFunc
	lastSeen time.Time
}

// Manager holds one Store per browser session id and runs their
// restoration.
type Manager struct {
	backend storage.Backend
	remote  RemoteFactory
	log     logger.Logger
	delay   time.Duration
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]*entry
	wg      sync.WaitGroup
}

func NewManager(backend storage.Backend, remote RemoteFactory, log logger.Logger, restoreDelay time.Duration) *Manager {
	if log == nil {
		log = logger.Nop{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		backend: backend,
		remote:  remote,
		log:     log,
		delay:   restoreDelay,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*entry),
	}
}

// Get returns the store for sid, creating it and starting its restoration
// on first use.
func (m *Manager) Get(sid string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[sid]; ok {
		e.lastSeen = m.now()
		return e.store
	}

	store := m.newStore(sid)
	ctx, cancel := context.WithCancel(m.ctx)
	m.entries[sid] = &entry{store: store, cancel: cancel, lastSeen: m.now()}
	metrics.ActiveStores.Inc()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := store.Restore(ctx); err != nil && ctx.Err() == nil {
			m.log.Error("session restore failed", err)
		}
	}()
	return store
}

// Lookup resolves a session id presented by a browser. Ids the registry does
// not hold are accepted only while storage still keeps a session under them
// (after a restart or an idle eviction); any other id is unknown.
func (m *Manager) Lookup(ctx context.Context, sid string) (*Store, bool, error) {
	if sid == "" {
		return nil, false, nil
	}
	m.mu.Lock()
	if e, ok := m.entries[sid]; ok {
		e.lastSeen = m.now()
		m.mu.Unlock()
		return e.store, true, nil
	}
	m.mu.Unlock()

	_, ok, err := m.backend.Get(ctx, crypto.HashToken(sid), KeyUser)
	if err != nil {
		return nil, false, errors.Wrap(err, "looking up session")
	}
	if !ok {
		return nil, false, nil
	}
	return m.Get(sid), true, nil
}

// Issue registers an empty, ready store under a fresh session id.
func (m *Manager) Issue() (string, *Store, error) {
	sid, err := crypto.NewSessionID()
	if err != nil {
		return "", nil, errors.Wrap(err, "issuing session id")
	}
	store := m.newStore(sid)
	store.mu.Lock()
	store.markReadyLocked()
	store.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[sid] = &entry{store: store, cancel: func() {}, lastSeen: m.now()}
	metrics.ActiveStores.Inc()
	return sid, store, nil
}

func (m *Manager) newStore(sid string) *Store {
	store := NewStore(storage.Scope(m.backend, crypto.HashToken(sid)), nil, m.log, m.delay)
	if m.remote != nil {
		store.remote = m.remote(store)
	}
	return store
}

// Release cancels a pending restoration for sid and forgets its store.
// Persisted values stay, so the next Get restores them again.
func (m *Manager) Release(sid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked(sid)
}

func (m *Manager) releaseLocked(sid string) {
	e, ok := m.entries[sid]
	if !ok {
		return
	}
	e.cancel()
	delete(m.entries, sid)
	metrics.ActiveStores.Dec()
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// ForEach calls fn for a snapshot of the registered stores.
func (m *Manager) ForEach(fn func(sid string, store *Store, lastSeen time.Time) error) error {
	m.mu.Lock()
	type item struct {
		sid      string
		store    *Store
		lastSeen time.Time
	}
	items := make([]item, 0, len(m.entries))
	for sid, e := range m.entries {
		items = append(items, item{sid: sid, store: e.store, lastSeen: e.lastSeen})
	}
	m.mu.Unlock()

	for _, it := range items {
		if err := fn(it.sid, it.store, it.lastSeen); err != nil {
			return err
		}
	}
	return nil
}

type SweepResult struct {
	Invalidated int
	Evicted     int
}

// Sweep invalidates sessions whose access token expired and evicts stores
// not seen for idleAfter. Stores still restoring are left alone.
func (m *Manager) Sweep(ctx context.Context, idleAfter time.Duration) SweepResult {
	var result SweepResult
	now := m.now()
	var idle []string

	_ = m.ForEach(func(sid string, store *Store, lastSeen time.Time) error {
		state := store.State()
		if state == StateLoading {
			return nil
		}
		if state == StateAuthenticated && Expired(store.Token(), now) {
			if err := store.Invalidate(ctx); err != nil {
				m.log.Warn("sweep: clearing expired session", err)
			}
			metrics.Invalidations.WithLabelValues("expired").Inc()
			result.Invalidated++
		}
		if idleAfter > 0 && now.Sub(lastSeen) > idleAfter {
			idle = append(idle, sid)
		}
		return nil
	})

	if len(idle) > 0 {
		m.mu.Lock()
		for _, sid := range idle {
			if e, ok := m.entries[sid]; ok && now.Sub(e.lastSeen) > idleAfter {
				m.releaseLocked(sid)
				result.Evicted++
			}
		}
		m.mu.Unlock()
	}
	return result
}

// Close cancels every pending restoration and waits for them to return.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	for sid := range m.entries {
		m.releaseLocked(sid)
	}
}
