package session

import (
	"context"
	"testing"
	"time"

	"otelmobile/pkg/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSession = Session{
	ID:             "5f0c2ab1e4d94b0c8d1f3a6b7c8d9e0f",
	StartTimestamp: time.Date(2024, 5, 1, 9, 30, 15, 123456789, time.UTC),
}

// storeContract runs the behaviour every Store must share.
func storeContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("read empty store", func(t *testing.T) {
		s := newStore(t)
		got, err := s.Read()
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("save then read", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(testSession))

		got, err := s.Read()
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, testSession.ID, got.ID)
		assert.True(t, testSession.StartTimestamp.Equal(got.StartTimestamp))
	})

	t.Run("save overwrites", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(testSession))
		next := Session{ID: "next", StartTimestamp: testSession.StartTimestamp.Add(time.Hour)}
		require.NoError(t, s.Save(next))

		got, err := s.Read()
		require.NoError(t, err)
		assert.Equal(t, "next", got.ID)
	})

	t.Run("clear removes record", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(testSession))
		require.NoError(t, s.Clear())

		got, err := s.Read()
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("clear empty store", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Clear())
	})

	t.Run("no id validation", func(t *testing.T) {
		s := newStore(t)
		odd := Session{ID: "not hex at all ✓", StartTimestamp: testSession.StartTimestamp}
		require.NoError(t, s.Save(odd))

		got, err := s.Read()
		require.NoError(t, err)
		assert.Equal(t, odd.ID, got.ID)
	})
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store { return NewMemoryStore() })

	t.Run("partial record reads as absent", func(t *testing.T) {
		s := NewMemoryStore()
		s.Set(IDKey, "only-id")

		got, err := s.Read()
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("wrongly typed start reads as absent", func(t *testing.T) {
		s := NewMemoryStore()
		s.Set(IDKey, "abc")
		s.Set(StartTimeKey, "yesterday")

		got, err := s.Read()
		assert.NoError(t, err)
		assert.Nil(t, got)
	})
}

func setupTestRedisStore(t *testing.T, prefix string) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	redisCache := cache.NewRedisCache(mr.Addr(), "")
	return mr, NewRedisStore(redisCache, prefix)
}

func TestRedisStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store {
		_, s := setupTestRedisStore(t, "")
		return s
	})

	t.Run("persisted layout", func(t *testing.T) {
		mr, s := setupTestRedisStore(t, "app:")
		require.NoError(t, s.Save(testSession))

		id, err := mr.Get("app:session.id")
		require.NoError(t, err)
		assert.Equal(t, testSession.ID, id)

		start, err := mr.Get("app:session.startTime")
		require.NoError(t, err)
		assert.Equal(t, "2024-05-01T09:30:15.123456789Z", start)
	})

	t.Run("missing start reads as absent", func(t *testing.T) {
		mr, s := setupTestRedisStore(t, "")
		require.NoError(t, mr.Set(IDKey, "abc"))

		got, err := s.Read()
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("malformed start reads as absent", func(t *testing.T) {
		mr, s := setupTestRedisStore(t, "")
		require.NoError(t, mr.Set(IDKey, "abc"))
		require.NoError(t, mr.Set(StartTimeKey, "not-a-time"))

		got, err := s.Read()
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("unreachable redis surfaces errors", func(t *testing.T) {
		mr, s := setupTestRedisStore(t, "")
		mr.Close()

		_, err := s.Read()
		assert.Error(t, err)
		assert.Error(t, s.Save(testSession))
		assert.Error(t, s.Ping(context.Background()))
	})
}

func TestRedisStore_Cooldown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	now := time.Unix(1_700_000_000, 0)
	s := NewRedisStore(cache.NewRedisCache(mr.Addr(), ""), "",
		WithCooldown(time.Minute),
		withStoreClock(func() time.Time { return now }),
	)

	mr.SetError("LOADING")
	assert.Error(t, s.Save(testSession))

	mr.SetError("")
	assert.ErrorIs(t, s.Save(testSession), ErrStoreUnavailable)
	_, err = s.Read()
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	now = now.Add(time.Minute)
	require.NoError(t, s.Save(testSession))

	got, err := s.Read()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, testSession.ID, got.ID)
}

func TestRedisStore_PingClearsCooldown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	s := NewRedisStore(cache.NewRedisCache(mr.Addr(), ""), "", WithCooldown(time.Hour))

	mr.SetError("LOADING")
	assert.Error(t, s.Clear())
	mr.SetError("")

	require.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, s.Save(testSession))
}

func TestManager_UnreachableRedisStaysFast(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	c := cache.NewRedisCache(addr, "")
	t.Cleanup(func() { _ = c.Close() })
	m := NewManager(NewRedisStore(c, ""))

	start := time.Now()
	first := m.SessionID()
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, m.SessionID())
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestBadgerStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store {
		s, err := OpenBadgerStore("", nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})

	t.Run("survives reopen", func(t *testing.T) {
		dir := t.TempDir()

		s, err := OpenBadgerStore(dir, nil)
		require.NoError(t, err)
		require.NoError(t, s.Save(testSession))
		require.NoError(t, s.Close())

		reopened, err := OpenBadgerStore(dir, nil)
		require.NoError(t, err)
		defer reopened.Close()

		got, err := reopened.Read()
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, testSession.ID, got.ID)
		assert.NoError(t, reopened.Ping(context.Background()))
	})
}
