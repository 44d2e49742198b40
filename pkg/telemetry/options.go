package telemetry

import (
	"time"

	"otelmobile/pkg/enrich"
	"otelmobile/pkg/logger"
	"otelmobile/pkg/session"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Option func(*settings)

type settings struct {
	log            logger.Logger
	device         enrich.DeviceInfoProvider
	network        enrich.NetworkMonitor
	baggageFilter  enrich.BaggageFilter
	spanProcessors []sdktrace.SpanProcessor
	spanExporter   sdktrace.SpanExporter
	metricReader   sdkmetric.Reader
	logExporter    sdklog.Exporter
	store          session.Store
	clock          func() time.Time
	global         bool
}

func WithLogger(l logger.Logger) Option {
	return func(s *settings) { s.log = l }
}

// WithDeviceInfo replaces the host device description.
func WithDeviceInfo(p enrich.DeviceInfoProvider) Option {
	return func(s *settings) { s.device = p }
}

// WithNetworkMonitor enables network.* span attributes.
func WithNetworkMonitor(m enrich.NetworkMonitor) Option {
	return func(s *settings) { s.network = m }
}

func WithBaggageFilter(f enrich.BaggageFilter) Option {
	return func(s *settings) { s.baggageFilter = f }
}

// WithSpanProcessor appends a caller processor after the built-in ones.
func WithSpanProcessor(p sdktrace.SpanProcessor) Option {
	return func(s *settings) { s.spanProcessors = append(s.spanProcessors, p) }
}

// WithSpanExporter replaces the OTLP trace exporter.
func WithSpanExporter(e sdktrace.SpanExporter) Option {
	return func(s *settings) { s.spanExporter = e }
}

// WithMetricReader replaces the periodic OTLP metric reader. The
// prometheus reader is always installed.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(s *settings) { s.metricReader = r }
}

// WithLogExporter replaces the OTLP log exporter.
func WithLogExporter(e sdklog.Exporter) Option {
	return func(s *settings) { s.logExporter = e }
}

// WithSessionStore overrides the store selected by the options.
func WithSessionStore(store session.Store) Option {
	return func(s *settings) { s.store = store }
}

func WithClock(fn func() time.Time) Option {
	return func(s *settings) { s.clock = fn }
}

// WithoutGlobal leaves the otel global providers and propagator untouched.
func WithoutGlobal() Option {
	return func(s *settings) { s.global = false }
}
