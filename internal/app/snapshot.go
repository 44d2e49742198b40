package app

import (
	"sync"

	"otelmobile/pkg/session"
)

// SessionSnapshot tracks lifecycle events for the debug endpoint. Counts
// cover events seen since the server subscribed.
type SessionSnapshot struct {
	mu      sync.RWMutex
	current *session.Session
	lastEnd *session.Session
	started int
	ended   int
}

type SnapshotView struct {
	Current     *session.Session `json:"current,omitempty"`
	LastEnded   *session.Session `json:"last_ended,omitempty"`
	Started     int              `json:"started"`
	Ended       int              `json:"ended"`
	LifetimeSec float64          `json:"lifetime_seconds"`
}

func (s *SessionSnapshot) OnSessionStarted(e session.StartedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := e.Session
	s.current = &cur
	s.started++
}

func (s *SessionSnapshot) OnSessionEnded(e session.EndedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ended := e.Session
	s.lastEnd = &ended
	s.ended++
}

func (s *SessionSnapshot) view() SnapshotView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SnapshotView{
		Current:   s.current,
		LastEnded: s.lastEnd,
		Started:   s.started,
		Ended:     s.ended,
	}
}

// sessionView resolves the current session before reading the snapshot so an
// expired session rotates on access. Current always comes from the manager,
// since a session resolved before the server subscribed fires no event.
type sessionView struct {
	sessions *session.Manager
	snap     *SessionSnapshot
}

func (v sessionView) Snapshot() any {
	v.sessions.SessionID()
	out := v.snap.view()
	out.Current = v.sessions.Session()
	out.LifetimeSec = v.sessions.Lifetime().Seconds()
	return out
}
