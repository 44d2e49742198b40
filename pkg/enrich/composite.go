package enrich

import (
	"context"
	"errors"
	"sync"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Composite fans every span event out to its processors in the order they
// were added.
type Composite struct {
	mu         sync.RWMutex
	processors []sdktrace.SpanProcessor
}

var _ sdktrace.SpanProcessor = (*Composite)(nil)

func NewComposite(processors ...sdktrace.SpanProcessor) *Composite {
	c := &Composite{}
	for _, p := range processors {
		c.Add(p)
	}
	return c
}

func (c *Composite) Add(p sdktrace.SpanProcessor) {
	if p == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processors = append(c.processors, p)
}

func (c *Composite) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.processors)
}

func (c *Composite) snapshot() []sdktrace.SpanProcessor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]sdktrace.SpanProcessor(nil), c.processors...)
}

func (c *Composite) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	for _, p := range c.snapshot() {
		p.OnStart(parent, s)
	}
}

func (c *Composite) OnEnd(s sdktrace.ReadOnlySpan) {
	for _, p := range c.snapshot() {
		p.OnEnd(s)
	}
}

func (c *Composite) Shutdown(ctx context.Context) error {
	var errs []error
	for _, p := range c.snapshot() {
		if err := p.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Composite) ForceFlush(ctx context.Context) error {
	var errs []error
	for _, p := range c.snapshot() {
		if err := p.ForceFlush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// startOnly provides the no-op half of processors that only act on span start.
type startOnly struct{}

func (startOnly) OnEnd(sdktrace.ReadOnlySpan)      {}
func (startOnly) Shutdown(context.Context) error   { return nil }
func (startOnly) ForceFlush(context.Context) error { return nil }
