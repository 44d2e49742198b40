package enrich

import (
	"context"

	"otelmobile/pkg/navigation"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// PathSource yields the current navigation path.
type PathSource interface {
	Path() []string
}

// NavigationPathSpanProcessor stamps screen.name and screen.path on every span.
type NavigationPathSpanProcessor struct {
	startOnly
	paths PathSource
}

var _ sdktrace.SpanProcessor = (*NavigationPathSpanProcessor)(nil)

func NewNavigationPathSpanProcessor(paths PathSource) *NavigationPathSpanProcessor {
	return &NavigationPathSpanProcessor{paths: paths}
}

func (p *NavigationPathSpanProcessor) OnStart(_ context.Context, s sdktrace.ReadWriteSpan) {
	path := p.paths.Path()
	if len(path) > 0 {
		s.SetAttributes(navigation.ScreenNameKey.String(path[len(path)-1]))
	}
	s.SetAttributes(navigation.ScreenPathKey.String(navigation.SerializePath(path)))
}
