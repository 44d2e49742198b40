package session

import "sync"

// Names of the two lifecycle notifications.
const (
	EventStarted = "io.honeycomb.app.session.started"
	EventEnded   = "io.honeycomb.app.session.ended"
)

// StartedEvent is published when a new session becomes current. Previous is
// nil for the first session of the process.
type StartedEvent struct {
	Session  Session
	Previous *Session
}

func (StartedEvent) Name() string { return EventStarted }

// EndedEvent is published for a session that was replaced after expiring.
type EndedEvent struct {
	Session Session
}

func (EndedEvent) Name() string { return EventEnded }

// Listener receives session lifecycle notifications. Calls are made after the
// manager state has changed and before SessionID returns.
type Listener interface {
	OnSessionStarted(StartedEvent)
	OnSessionEnded(EndedEvent)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Started func(StartedEvent)
	Ended   func(EndedEvent)
}

func (f ListenerFuncs) OnSessionStarted(e StartedEvent) {
	if f.Started != nil {
		f.Started(e)
	}
}

func (f ListenerFuncs) OnSessionEnded(e EndedEvent) {
	if f.Ended != nil {
		f.Ended(e)
	}
}

type subscription struct {
	id       uint64
	listener Listener
}

// broadcaster is an ordered observer list.
type broadcaster struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

func (b *broadcaster) subscribe(l Listener) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, listener: l})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *broadcaster) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

func (b *broadcaster) snapshot() []Listener {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Listener, len(b.subs))
	for i, s := range b.subs {
		out[i] = s.listener
	}
	return out
}

func (b *broadcaster) publish(events []any) {
	if len(events) == 0 {
		return
	}
	listeners := b.snapshot()
	for _, e := range events {
		for _, l := range listeners {
			switch ev := e.(type) {
			case StartedEvent:
				l.OnSessionStarted(ev)
			case EndedEvent:
				l.OnSessionEnded(ev)
			}
		}
	}
}
