package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/stemsi/assessment-session/internal/store"
)

// SessionManager hosts one session per test identifier.
type SessionManager struct {
	api   ShortlistingAPI
	store store.SessionStore
	log   zerolog.Logger
	opts  []SessionOption

	mu       sync.Mutex
	sessions map[string]*managedSession
	onCreate []func(*Session)
}

// managedSession is a hosted session plus a channel closed once its load
// finished and, on success, the creation hooks ran.
type managedSession struct {
	sess   *Session
	opened chan struct{}
}

// NewSessionManager creates a new SessionManager.
func NewSessionManager(api ShortlistingAPI, st store.SessionStore, log zerolog.Logger, opts ...SessionOption) *SessionManager {
	return &SessionManager{
		api:      api,
		store:    st,
		log:      log,
		opts:     opts,
		sessions: make(map[string]*managedSession),
	}
}

// OnCreate registers fn to run once for every session that loads successfully.
func (m *SessionManager) OnCreate(fn func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCreate = append(m.onCreate, fn)
}

// Open returns the loaded session for testID, creating and loading it if
// needed. Concurrent callers share one load. A session that fails to load is
// not retained, so the next Open retries with a fresh one.
func (m *SessionManager) Open(ctx context.Context, testID string) (*Session, error) {
	m.mu.Lock()
	if e, ok := m.sessions[testID]; ok {
		m.mu.Unlock()
		select {
		case <-e.opened:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if err := e.sess.LoadErr(); err != nil {
			return e.sess, err
		}
		return e.sess, nil
	}

	e := &managedSession{
		sess:   NewSession(testID, m.api, m.store, m.log, m.opts...),
		opened: make(chan struct{}),
	}
	m.sessions[testID] = e
	hooks := append([]func(*Session){}, m.onCreate...)
	m.mu.Unlock()
	defer close(e.opened)

	if err := e.sess.Load(ctx); err != nil {
		m.mu.Lock()
		if m.sessions[testID] == e {
			delete(m.sessions, testID)
		}
		m.mu.Unlock()
		m.log.Debug().Err(err).Str("component", "session_manager").Str("test_id", testID).Msg("Session load failed, not retained")
		return e.sess, err
	}

	for _, fn := range hooks {
		fn(e.sess)
	}
	return e.sess, nil
}

// Get returns the session for testID without creating one. Sessions still
// loading are reported too.
func (m *SessionManager) Get(testID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[testID]
	if !ok {
		return nil, false
	}
	return e.sess, true
}

// Len reports how many sessions are hosted.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
