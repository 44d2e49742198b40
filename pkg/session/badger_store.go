package session

import (
	"context"
	"errors"
	"fmt"

	"otelmobile/pkg/logger"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore persists the session record in an on-device badger database.
// Both keys are written in a single transaction.
type BadgerStore struct {
	db       *badger.DB
	owned    bool
	idKey    []byte
	startKey []byte
}

// OpenBadgerStore opens (or creates) a badger database at dir. An empty dir
// keeps the database in memory.
func OpenBadgerStore(dir string, log logger.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(logger.Printf{Log: log, Source: "badger"})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	s := NewBadgerStore(db)
	s.owned = true
	return s, nil
}

// NewBadgerStore wraps a database owned by the caller.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{
		db:       db,
		idKey:    []byte(IDKey),
		startKey: []byte(StartTimeKey),
	}
}

func (s *BadgerStore) Read() (*Session, error) {
	var out *Session
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := getString(txn, s.idKey)
		if err != nil || id == nil {
			return err
		}
		raw, err := getString(txn, s.startKey)
		if err != nil || raw == nil {
			return err
		}
		start, ok := parseStart(*raw)
		if !ok {
			return nil
		}
		out = &Session{ID: *id, StartTimestamp: start}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func getString(txn *badger.Txn, key []byte) (*string, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	str := string(v)
	return &str, nil
}

func (s *BadgerStore) Save(session Session) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(s.idKey, []byte(session.ID)); err != nil {
			return err
		}
		return txn.Set(s.startKey, []byte(formatStart(session.StartTimestamp)))
	})
}

func (s *BadgerStore) Clear() error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(s.idKey); err != nil {
			return err
		}
		return txn.Delete(s.startKey)
	})
}

func (s *BadgerStore) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger: database closed")
	}
	return nil
}

// Close closes the database when the store opened it.
func (s *BadgerStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
