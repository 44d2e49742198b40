// Package offline keeps trace batches that could not be exported and
// replays them once the backend is reachable again.
package offline

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"otelmobile/pkg/logger"

	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/proto"
)

const (
	DefaultMaxAge = 18 * time.Hour
	keyPrefix     = "span-cache/"
)

type Option func(*Client)

// WithMaxAge bounds how long a stored batch is kept.
func WithMaxAge(d time.Duration) Option {
	return func(c *Client) { c.maxAge = d }
}

func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// Client decorates an otlptrace.Client. A batch whose upload fails is
// stored; after the next successful upload stored batches are replayed
// oldest first until one fails again.
type Client struct {
	next   otlptrace.Client
	db     *badger.DB
	owned  bool
	maxAge time.Duration
	log    logger.Logger

	seq      atomic.Uint64
	replayMu sync.Mutex
}

var _ otlptrace.Client = (*Client)(nil)

// Open creates a client backed by a badger database at dir. An empty dir
// keeps batches in memory only.
func Open(next otlptrace.Client, dir string, opts ...Option) (*Client, error) {
	c := newClient(next, opts)
	bopts := badger.DefaultOptions(dir).WithLogger(logger.Printf{Log: c.log, Source: "badger"})
	if dir == "" {
		bopts = bopts.WithInMemory(true)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open span cache: %w", err)
	}
	c.db = db
	c.owned = true
	return c, nil
}

// New uses a database owned by the caller.
func New(next otlptrace.Client, db *badger.DB, opts ...Option) *Client {
	c := newClient(next, opts)
	c.db = db
	return c
}

func newClient(next otlptrace.Client, opts []Option) *Client {
	c := &Client{next: next, maxAge: DefaultMaxAge, log: logger.Nop{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Start(ctx context.Context) error {
	return c.next.Start(ctx)
}

func (c *Client) Stop(ctx context.Context) error {
	err := c.next.Stop(ctx)
	if c.owned {
		err = errors.Join(err, c.db.Close())
	}
	return err
}

func (c *Client) UploadTraces(ctx context.Context, spans []*tracepb.ResourceSpans) error {
	if err := c.next.UploadTraces(ctx, spans); err != nil {
		if serr := c.store(spans); serr != nil {
			c.log.Error("offline: failed to cache spans", logger.Field{Key: "error", Value: serr.Error()})
		}
		return err
	}
	c.Replay(ctx)
	return nil
}

// Pending returns the number of stored batches.
func (c *Client) Pending() (int, error) {
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(keyPrefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Replay uploads stored batches in order, deleting each one once sent. It
// stops at the first failure.
func (c *Client) Replay(ctx context.Context) {
	if !c.replayMu.TryLock() {
		return
	}
	defer c.replayMu.Unlock()

	keys, err := c.keys()
	if err != nil {
		c.log.Error("offline: failed to list cached spans", logger.Field{Key: "error", Value: err.Error()})
		return
	}
	for _, key := range keys {
		if ctx.Err() != nil {
			return
		}
		batch, err := c.load(key)
		if err != nil {
			c.log.Warn("offline: dropping unreadable batch", logger.Field{Key: "error", Value: err.Error()})
			_ = c.delete(key)
			continue
		}
		if batch == nil {
			continue
		}
		if err := c.next.UploadTraces(ctx, batch.GetResourceSpans()); err != nil {
			c.log.Debug("offline: replay deferred", logger.Field{Key: "error", Value: err.Error()})
			return
		}
		if err := c.delete(key); err != nil {
			c.log.Error("offline: failed to remove replayed batch", logger.Field{Key: "error", Value: err.Error()})
		}
	}
}

func (c *Client) store(spans []*tracepb.ResourceSpans) error {
	data, err := proto.Marshal(&tracepb.TracesData{ResourceSpans: spans})
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(c.nextKey(), data)
		if c.maxAge > 0 {
			e = e.WithTTL(c.maxAge)
		}
		return txn.SetEntry(e)
	})
}

// nextKey orders batches by store time, with a sequence number to break ties.
func (c *Client) nextKey() []byte {
	key := make([]byte, 0, len(keyPrefix)+16)
	key = append(key, keyPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(time.Now().UnixNano()))
	return binary.BigEndian.AppendUint64(key, c.seq.Add(1))
}

func (c *Client) keys() ([][]byte, error) {
	var keys [][]byte
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(keyPrefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

func (c *Client) load(key []byte) (*tracepb.TracesData, error) {
	var out *tracepb.TracesData
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			td := &tracepb.TracesData{}
			if err := proto.Unmarshal(val, td); err != nil {
				return err
			}
			out = td
			return nil
		})
	})
	return out, err
}

func (c *Client) delete(key []byte) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}
