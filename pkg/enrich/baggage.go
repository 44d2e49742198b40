package enrich

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// BaggageFilter selects which baggage members are copied onto spans.
type BaggageFilter func(baggage.Member) bool

// AllowAllBaggage copies every member.
func AllowAllBaggage(baggage.Member) bool { return true }

// BaggageSpanProcessor copies baggage from the parent context onto the span.
type BaggageSpanProcessor struct {
	startOnly
	filter BaggageFilter
}

var _ sdktrace.SpanProcessor = (*BaggageSpanProcessor)(nil)

func NewBaggageSpanProcessor(filter BaggageFilter) *BaggageSpanProcessor {
	if filter == nil {
		filter = AllowAllBaggage
	}
	return &BaggageSpanProcessor{filter: filter}
}

func (p *BaggageSpanProcessor) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	for _, m := range baggage.FromContext(parent).Members() {
		if p.filter(m) {
			s.SetAttributes(attribute.String(m.Key(), m.Value()))
		}
	}
}
