package session

import (
	"time"
)

const (
	// IDKey and StartTimeKey name the two persisted values of the current session.
	IDKey        = "session.id"
	StartTimeKey = "session.startTime"
)

// Session is an immutable session value. Two sessions are equal when both
// the id and the start timestamp match.
type Session struct {
	ID             string    `json:"id"`
	StartTimestamp time.Time `json:"start_timestamp"`
}

func (s Session) Equal(other Session) bool {
	return s.ID == other.ID && s.StartTimestamp.Equal(other.StartTimestamp)
}

// Store persists exactly one session record. Read returns nil, nil when no
// complete record is present.
type Store interface {
	Read() (*Session, error)
	Save(session Session) error
	Clear() error
}

func formatStart(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseStart(v string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
