package session

import (
	"encoding/hex"
	"sync"
	"time"

	"otelmobile/pkg/logger"

	"github.com/google/uuid"
)

// DefaultLifetime is how long a session lives before the next access rotates it.
const DefaultLifetime = 4 * time.Hour

// Manager is the single authority for the current session id. Asking for the
// id is the activity signal: each call may create or rotate the session.
type Manager struct {
	mu       sync.Mutex
	store    Store
	current  *Session
	lifetime time.Duration
	newID    func() string
	now      func() time.Time
	log      logger.Logger

	listeners broadcaster
}

type Option func(*Manager)

func WithLifetime(d time.Duration) Option {
	return func(m *Manager) { m.lifetime = d }
}

func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) { m.newID = fn }
}

func WithClock(fn func() time.Time) Option {
	return func(m *Manager) { m.now = fn }
}

func WithLogger(l logger.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// RandomID returns 32 lowercase hex characters from a random UUID.
func RandomID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// NewManager builds a manager over store. Any persisted record is cleared:
// a process never resumes a session from a previous run.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		lifetime: DefaultLifetime,
		newID:    RandomID,
		now:      time.Now,
		log:      logger.Nop{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = NewMemoryStore()
	}

	if err := m.store.Clear(); err != nil {
		m.log.Warn("session store clear failed", logger.Field{Key: "error", Value: err.Error()})
	}
	return m
}

func (m *Manager) Lifetime() time.Duration { return m.lifetime }

// SessionID returns the current session id, creating a session when none
// exists and rotating it once the lifetime has elapsed.
func (m *Manager) SessionID() string {
	m.mu.Lock()

	var events []any
	now := m.now()

	switch {
	case m.current == nil:
		m.log.Debug("no active session, creating session")
		next := Session{ID: m.newID(), StartTimestamp: now}
		events = append(events, StartedEvent{Session: next})
		m.current = &next
	case now.Sub(m.current.StartTimestamp) >= m.lifetime:
		m.log.Debug("session timeout elapsed, creating new session",
			logger.Field{Key: "lifetime", Value: m.lifetime.String()},
			logger.Field{Key: "previous_session_id", Value: m.current.ID},
		)
		prev := *m.current
		next := Session{ID: m.newID(), StartTimestamp: now}
		events = append(events,
			StartedEvent{Session: next, Previous: &prev},
			EndedEvent{Session: prev},
		)
		m.current = &next
	}

	cur := *m.current
	if err := m.store.Save(cur); err != nil {
		m.log.Warn("session store save failed",
			logger.Field{Key: "session_id", Value: cur.ID},
			logger.Field{Key: "error", Value: err.Error()},
		)
	}
	m.mu.Unlock()

	m.listeners.publish(events)
	return cur.ID
}

// Session returns a copy of the current session without advancing the
// lifecycle. It is nil until SessionID has been called once.
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	s := *m.current
	return &s
}

// Subscribe registers l for lifecycle notifications in registration order.
// The returned func removes it; calling it more than once is harmless.
func (m *Manager) Subscribe(l Listener) (unsubscribe func()) {
	return m.listeners.subscribe(l)
}
