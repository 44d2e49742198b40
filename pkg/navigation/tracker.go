package navigation

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	InstrumentationName = "io.honeycomb.navigation"

	SpanNavigationTo   = "NavigationTo"
	SpanNavigationFrom = "NavigationFrom"

	UnencodablePath = "<unencodable path>"

	defaultReason = "navigation"
	rootScreen    = "/"
)

const (
	ScreenNameKey        = attribute.Key("screen.name")
	ScreenPathKey        = attribute.Key("screen.path")
	ScreenActiveTimeKey  = attribute.Key("screen.active.time")
	NavigationTriggerKey = attribute.Key("navigation.trigger")
)

// LifecycleEvent is an application foreground/background transition.
type LifecycleEvent int

const (
	BecameActive LifecycleEvent = iota
	WillResignActive
	EnteredBackground
	WillTerminate
)

func (e LifecycleEvent) String() string {
	switch e {
	case BecameActive:
		return "appDidBecomeActive"
	case WillResignActive:
		return "appWillResignActive"
	case EnteredBackground:
		return "appDidEnterBackground"
	case WillTerminate:
		return "appWillTerminate"
	default:
		return "unknown"
	}
}

// Report describes one navigation. Prefix, when set, is prepended to Path.
type Report struct {
	Prefix string
	Path   []string
	Reason string
}

// Tracker holds the current navigation path of the application and emits
// NavigationFrom/NavigationTo spans when it changes. One tracker is created
// by the SDK and shared with the processors that read the path.
type Tracker struct {
	tracer trace.Tracer
	now    func() time.Time

	// reportMu serializes whole navigations; mu only guards the fields so
	// span processors can read the path while a navigation emits spans.
	reportMu sync.Mutex
	mu       sync.RWMutex
	path     []string
	lastNav  time.Time
}

type Option func(*Tracker)

func WithClock(fn func() time.Time) Option {
	return func(t *Tracker) { t.now = fn }
}

func NewTracker(tracer trace.Tracer, opts ...Option) *Tracker {
	t := &Tracker{tracer: tracer, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Path returns a copy of the current navigation path.
func (t *Tracker) Path() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.path...)
}

// SetPath replaces the path without emitting spans.
func (t *Tracker) SetPath(path []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.path = append([]string(nil), path...)
}

func (t *Tracker) Report(ctx context.Context, r Report) {
	reason := r.Reason
	if reason == "" {
		reason = defaultReason
	}

	t.reportMu.Lock()
	defer t.reportMu.Unlock()

	t.navigationEnd(ctx, reason)

	next := make([]string, 0, len(r.Path)+1)
	if r.Prefix != "" {
		next = append(next, r.Prefix)
	}
	next = append(next, r.Path...)
	t.SetPath(next)

	t.navigationStart(ctx, reason)
}

// ReportValues JSON-encodes each path element. When any element cannot be
// encoded the whole path is reported as UnencodablePath.
func (t *Tracker) ReportValues(ctx context.Context, prefix string, path []any, reason string) {
	encoded := make([]string, 0, len(path))
	for _, v := range path {
		b, err := json.Marshal(v)
		if err != nil {
			encoded = []string{UnencodablePath}
			break
		}
		encoded = append(encoded, string(b))
	}
	t.Report(ctx, Report{Prefix: prefix, Path: encoded, Reason: reason})
}

func (t *Tracker) HandleLifecycle(ctx context.Context, ev LifecycleEvent) {
	t.reportMu.Lock()
	defer t.reportMu.Unlock()

	switch ev {
	case BecameActive:
		t.navigationStart(ctx, ev.String())
	case WillResignActive, EnteredBackground, WillTerminate:
		t.navigationEnd(ctx, ev.String())
	}
}

func (t *Tracker) navigationEnd(ctx context.Context, reason string) {
	t.mu.RLock()
	var screen string
	if n := len(t.path); n > 0 {
		screen = t.path[n-1]
	}
	last := t.lastNav
	t.mu.RUnlock()

	if screen == "" {
		return
	}

	attrs := []attribute.KeyValue{
		ScreenNameKey.String(screen),
		NavigationTriggerKey.String(reason),
	}
	if !last.IsZero() {
		attrs = append(attrs, ScreenActiveTimeKey.Float64(t.now().Sub(last).Seconds()))
	}
	_, span := t.tracer.Start(ctx, SpanNavigationFrom, trace.WithAttributes(attrs...))
	span.End()
}

func (t *Tracker) navigationStart(ctx context.Context, reason string) {
	screen := rootScreen
	if p := t.Path(); len(p) > 0 {
		screen = p[len(p)-1]
	}

	_, span := t.tracer.Start(ctx, SpanNavigationTo, trace.WithAttributes(
		ScreenNameKey.String(screen),
		NavigationTriggerKey.String(reason),
	))
	span.End()

	t.mu.Lock()
	t.lastNav = t.now()
	t.mu.Unlock()
}

// SerializePath renders a path as "/a/b", skipping elements that start with
// an underscore.
func SerializePath(path []string) string {
	kept := make([]string, 0, len(path))
	for _, p := range path {
		if strings.HasPrefix(p, "_") {
			continue
		}
		kept = append(kept, p)
	}
	return "/" + strings.Join(kept, "/")
}
