package enrich

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const SessionIDKey = "session.id"

// SessionIDSource yields the current session id. Reading it may rotate the
// session.
type SessionIDSource interface {
	SessionID() string
}

// SessionIDSpanProcessor stamps session.id on every span at start.
type SessionIDSpanProcessor struct {
	startOnly
	sessions SessionIDSource
}

var _ sdktrace.SpanProcessor = (*SessionIDSpanProcessor)(nil)

func NewSessionIDSpanProcessor(sessions SessionIDSource) *SessionIDSpanProcessor {
	return &SessionIDSpanProcessor{sessions: sessions}
}

func (p *SessionIDSpanProcessor) OnStart(_ context.Context, s sdktrace.ReadWriteSpan) {
	s.SetAttributes(attribute.String(SessionIDKey, p.sessions.SessionID()))
}

// SessionIDLogProcessor stamps session.id on every log record and hands it
// to next. With a nil next it only annotates, for use ahead of other
// processors registered on the same provider.
type SessionIDLogProcessor struct {
	sessions SessionIDSource
	next     sdklog.Processor
}

var _ sdklog.Processor = (*SessionIDLogProcessor)(nil)

func NewSessionIDLogProcessor(sessions SessionIDSource, next sdklog.Processor) *SessionIDLogProcessor {
	return &SessionIDLogProcessor{sessions: sessions, next: next}
}

func (p *SessionIDLogProcessor) OnEmit(ctx context.Context, r *sdklog.Record) error {
	r.AddAttributes(otellog.String(SessionIDKey, p.sessions.SessionID()))
	if p.next == nil {
		return nil
	}
	return p.next.OnEmit(ctx, r)
}

func (p *SessionIDLogProcessor) Shutdown(ctx context.Context) error {
	if p.next == nil {
		return nil
	}
	return p.next.Shutdown(ctx)
}

func (p *SessionIDLogProcessor) ForceFlush(ctx context.Context) error {
	if p.next == nil {
		return nil
	}
	return p.next.ForceFlush(ctx)
}
