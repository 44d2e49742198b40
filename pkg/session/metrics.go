package session

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsListener records session lifecycle metrics.
type MetricsListener struct {
	started  metric.Int64Counter
	ended    metric.Int64Counter
	duration metric.Float64Histogram
	now      func() time.Time
}

var _ Listener = (*MetricsListener)(nil)

func NewMetricsListener(meter metric.Meter, now func() time.Time) (*MetricsListener, error) {
	if now == nil {
		now = time.Now
	}
	l := &MetricsListener{now: now}
	var errs []error

	var err error
	l.started, err = meter.Int64Counter(
		"session.started",
		metric.WithDescription("Number of sessions started"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		errs = append(errs, err)
	}

	l.ended, err = meter.Int64Counter(
		"session.ended",
		metric.WithDescription("Number of sessions ended by expiry"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		errs = append(errs, err)
	}

	l.duration, err = meter.Float64Histogram(
		"session.duration",
		metric.WithDescription("Time between session start and its replacement"),
		metric.WithUnit("s"),
	)
	if err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return l, nil
}

func (l *MetricsListener) OnSessionStarted(e StartedEvent) {
	l.started.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Bool("session.rotated", e.Previous != nil)))
}

func (l *MetricsListener) OnSessionEnded(e EndedEvent) {
	ctx := context.Background()
	l.ended.Add(ctx, 1)
	l.duration.Record(ctx, l.now().Sub(e.Session.StartTimestamp).Seconds())
}
