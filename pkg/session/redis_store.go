package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"otelmobile/pkg/cache"

	"github.com/avast/retry-go/v4"
)

const (
	saveAttempts = 3
	saveDelay    = 20 * time.Millisecond

	// DefaultRedisOpTimeout bounds one store call, retries included.
	DefaultRedisOpTimeout = 250 * time.Millisecond
	// DefaultRedisCooldown is how long the store skips Redis after a failure.
	DefaultRedisCooldown = 5 * time.Second
)

// ErrStoreUnavailable is returned while the store is cooling down after a
// failed call.
var ErrStoreUnavailable = errors.New("session store unavailable")

// RedisStore implements Store using Redis cache
type RedisStore struct {
	cache    cache.Cache
	ctx      context.Context
	idKey    string
	startKey string
	timeout  time.Duration
	cooldown time.Duration
	now      func() time.Time

	mu        sync.Mutex
	downUntil time.Time
}

type RedisOption func(*RedisStore)

// WithOpTimeout bounds each Read, Save and Clear.
func WithOpTimeout(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.timeout = d }
}

// WithCooldown sets how long calls fail fast after Redis stops answering.
func WithCooldown(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.cooldown = d }
}

func withStoreClock(fn func() time.Time) RedisOption {
	return func(s *RedisStore) { s.now = fn }
}

// NewRedisStore creates a new Redis-backed session store. prefix namespaces
// the two keys so several apps can share one Redis.
func NewRedisStore(c cache.Cache, prefix string, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		cache:    c,
		ctx:      context.Background(),
		idKey:    prefix + IDKey,
		startKey: prefix + StartTimeKey,
		timeout:  DefaultRedisOpTimeout,
		cooldown: DefaultRedisCooldown,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Read() (*Session, error) {
	ctx, cancel, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer cancel()

	id, err := s.cache.Get(ctx, s.idKey)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.fail(err)
	}

	raw, err := s.cache.Get(ctx, s.startKey)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.fail(err)
	}

	start, ok := parseStart(raw)
	if !ok {
		return nil, nil
	}
	return &Session{ID: id, StartTimestamp: start}, nil
}

// Save writes both keys in one transaction, retrying transient failures
// until the operation deadline.
func (s *RedisStore) Save(session Session) error {
	ctx, cancel, err := s.begin()
	if err != nil {
		return err
	}
	defer cancel()

	values := map[string]string{
		s.idKey:    session.ID,
		s.startKey: formatStart(session.StartTimestamp),
	}
	return s.fail(retry.Do(
		func() error { return s.cache.SetMany(ctx, values, 0) },
		retry.Attempts(saveAttempts),
		retry.Delay(saveDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	))
}

func (s *RedisStore) Clear() error {
	ctx, cancel, err := s.begin()
	if err != nil {
		return err
	}
	defer cancel()
	return s.fail(s.cache.Del(ctx, s.idKey, s.startKey))
}

// Ping always reaches Redis so readiness reflects the live server.
func (s *RedisStore) Ping(ctx context.Context) error {
	err := s.cache.Ping(ctx)
	if err == nil {
		s.mu.Lock()
		s.downUntil = time.Time{}
		s.mu.Unlock()
	}
	return err
}

func (s *RedisStore) begin() (context.Context, context.CancelFunc, error) {
	s.mu.Lock()
	down := s.now().Before(s.downUntil)
	s.mu.Unlock()
	if down {
		return nil, nil, ErrStoreUnavailable
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	return ctx, cancel, nil
}

func (s *RedisStore) fail(err error) error {
	if err != nil {
		s.mu.Lock()
		s.downUntil = s.now().Add(s.cooldown)
		s.mu.Unlock()
	}
	return err
}
