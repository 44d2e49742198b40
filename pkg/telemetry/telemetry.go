// Package telemetry wires the tracer, meter and logger providers together
// with sampling, session tracking and span enrichment.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"otelmobile/cfg"
	"otelmobile/pkg/cache"
	"otelmobile/pkg/enrich"
	"otelmobile/pkg/logger"
	"otelmobile/pkg/navigation"
	"otelmobile/pkg/sampler"
	"otelmobile/pkg/session"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	InstrumentationName      = "io.honeycomb.session"
	ErrorInstrumentationName = "io.honeycomb.error"
	DefaultRedisAddr         = "localhost:6379"
)

// SDK is a configured telemetry pipeline.
type SDK struct {
	opts *cfg.Options
	log  logger.Logger

	resource       *resource.Resource
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	loggerProvider *sdklog.LoggerProvider
	registry       *prometheus.Registry

	sampler    *sampler.Deterministic
	store      session.Store
	sessions   *session.Manager
	navigation *navigation.Tracker
	errLogger  otellog.Logger

	closers      []func(context.Context) error
	shutdownOnce sync.Once
	shutdownErr  error
}

// Configure builds the pipeline described by opts. Unless WithoutGlobal is
// given the providers and propagator are also installed as otel globals.
func Configure(ctx context.Context, opts *cfg.Options, options ...Option) (*SDK, error) {
	if opts == nil {
		return nil, errors.New("telemetry: nil options")
	}
	s := &settings{global: true, clock: time.Now}
	for _, o := range options {
		o(s)
	}
	if s.log == nil {
		s.log = logger.NewZeroLog(opts.Debug).With(logger.Field{Key: "service.name", Value: opts.ServiceName})
	}
	if opts.Debug {
		s.log.Debug("configuring telemetry", opts.LogFields()...)
	}
	if err := checkProtocols(opts, s); err != nil {
		return nil, err
	}

	sdk := &SDK{opts: opts, log: s.log}
	ok := false
	defer func() {
		if !ok {
			_ = sdk.Shutdown(context.Background())
		}
	}()

	res, err := newResource(ctx, opts, s.log)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	sdk.resource = res

	if err := sdk.setupSessions(opts, s); err != nil {
		return nil, fmt.Errorf("setup sessions: %w", err)
	}
	if err := sdk.setupMetrics(ctx, opts, s); err != nil {
		return nil, fmt.Errorf("setup metrics: %w", err)
	}
	if err := sdk.setupTracing(ctx, opts, s); err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	if err := sdk.setupLogs(ctx, opts, s); err != nil {
		return nil, fmt.Errorf("setup logs: %w", err)
	}

	if s.global {
		otel.SetTracerProvider(sdk.tracerProvider)
		otel.SetMeterProvider(sdk.meterProvider)
		global.SetLoggerProvider(sdk.loggerProvider)
		otel.SetTextMapPropagator(newPropagator(opts.Propagators, s.log))
	}

	ok = true
	return sdk, nil
}

func (sdk *SDK) setupSessions(opts *cfg.Options, s *settings) error {
	store := s.store
	if store == nil {
		var err error
		if store, err = sdk.openStore(opts); err != nil {
			return err
		}
	}
	sdk.store = store
	sdk.sessions = session.NewManager(store,
		session.WithLifetime(opts.Session.Timeout),
		session.WithClock(s.clock),
		session.WithLogger(sdk.log),
	)
	return nil
}

func (sdk *SDK) openStore(opts *cfg.Options) (session.Store, error) {
	switch opts.Session.Store {
	case cfg.SessionStoreRedis:
		addr := opts.Session.RedisAddr
		if addr == "" {
			addr = DefaultRedisAddr
		}
		c := cache.NewRedisCache(addr, opts.Session.RedisPassword)
		sdk.closers = append(sdk.closers, func(context.Context) error { return c.Close() })
		return session.NewRedisStore(c, opts.Session.KeyPrefix), nil
	case cfg.SessionStoreBadger:
		st, err := session.OpenBadgerStore(opts.Session.BadgerDir, sdk.log)
		if err != nil {
			return nil, err
		}
		sdk.closers = append(sdk.closers, func(context.Context) error { return st.Close() })
		return st, nil
	default:
		return session.NewMemoryStore(), nil
	}
}

func (sdk *SDK) setupMetrics(ctx context.Context, opts *cfg.Options, s *settings) error {
	sdk.registry = prometheus.NewRegistry()
	promExporter, err := otelprom.New(otelprom.WithRegisterer(sdk.registry))
	if err != nil {
		return fmt.Errorf("create prometheus exporter: %w", err)
	}

	reader := s.metricReader
	if reader == nil {
		exp, err := newMetricExporter(ctx, opts.Metrics)
		if err != nil {
			return fmt.Errorf("create metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exp)
	}

	sdk.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithReader(promExporter),
		sdkmetric.WithResource(sdk.resource),
	)

	listener, err := session.NewMetricsListener(sdk.meterProvider.Meter(InstrumentationName), s.clock)
	if err != nil {
		return fmt.Errorf("create session metrics: %w", err)
	}
	sdk.sessions.Subscribe(listener)
	return nil
}

func (sdk *SDK) setupTracing(ctx context.Context, opts *cfg.Options, s *settings) error {
	exporter := s.spanExporter
	if exporter == nil {
		exp, err := newSpanExporter(ctx, opts, sdk.log)
		if err != nil {
			return err
		}
		exporter = exp
	}

	processors := enrich.NewComposite(
		enrich.NewSessionIDSpanProcessor(sdk.sessions),
		enrich.NewBaggageSpanProcessor(s.baggageFilter),
	)
	if opts.Instrumentation.Device {
		processors.Add(enrich.NewDeviceSpanProcessor(s.device))
	}
	if opts.Instrumentation.NetworkStatus && s.network != nil {
		processors.Add(enrich.NewNetworkStatusSpanProcessor(s.network))
	}

	if opts.TracesSampler != cfg.DefaultTracesSampler {
		sdk.log.Debug("traces sampler option ignored, deterministic sampler in use",
			logger.Field{Key: "traces_sampler", Value: opts.TracesSampler},
			logger.Field{Key: "traces_sampler_arg", Value: opts.TracesSamplerArg},
		)
	}
	sdk.sampler = sampler.New(opts.SampleRate, sdk.log)
	sdk.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(sdk.resource),
		sdktrace.WithSampler(sdk.sampler),
		sdktrace.WithSpanProcessor(processors),
	)

	// The tracker emits through the provider it enriches, so its path
	// processor is added once the provider exists and before any span starts.
	sdk.navigation = navigation.NewTracker(sdk.tracerProvider.Tracer(navigation.InstrumentationName))
	if opts.Instrumentation.Navigation {
		processors.Add(enrich.NewNavigationPathSpanProcessor(sdk.navigation))
	}
	for _, p := range s.spanProcessors {
		processors.Add(p)
	}
	processors.Add(sdktrace.NewBatchSpanProcessor(exporter))

	if opts.Debug {
		stdout, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("create stdout exporter: %w", err)
		}
		processors.Add(sdktrace.NewSimpleSpanProcessor(stdout))
	}
	return nil
}

func (sdk *SDK) setupLogs(ctx context.Context, opts *cfg.Options, s *settings) error {
	exporter := s.logExporter
	if exporter == nil {
		exp, err := newLogExporter(ctx, opts.Logs)
		if err != nil {
			return fmt.Errorf("create log exporter: %w", err)
		}
		exporter = exp
	}

	sdk.loggerProvider = sdklog.NewLoggerProvider(
		sdklog.WithResource(sdk.resource),
		sdklog.WithProcessor(enrich.NewSessionIDLogProcessor(sdk.sessions, sdklog.NewBatchProcessor(exporter))),
	)
	sdk.errLogger = sdk.loggerProvider.Logger(ErrorInstrumentationName)
	return nil
}

func (sdk *SDK) Options() *cfg.Options                    { return sdk.opts }
func (sdk *SDK) Resource() *resource.Resource             { return sdk.resource }
func (sdk *SDK) TracerProvider() *sdktrace.TracerProvider { return sdk.tracerProvider }
func (sdk *SDK) MeterProvider() *sdkmetric.MeterProvider  { return sdk.meterProvider }
func (sdk *SDK) LoggerProvider() *sdklog.LoggerProvider   { return sdk.loggerProvider }
func (sdk *SDK) Sampler() *sampler.Deterministic          { return sdk.sampler }
func (sdk *SDK) Sessions() *session.Manager               { return sdk.sessions }
func (sdk *SDK) Navigation() *navigation.Tracker          { return sdk.navigation }
func (sdk *SDK) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return sdk.tracerProvider.Tracer(name, opts...)
}

func (sdk *SDK) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	return sdk.meterProvider.Meter(name, opts...)
}

func (sdk *SDK) Logger(name string, opts ...otellog.LoggerOption) otellog.Logger {
	return sdk.loggerProvider.Logger(name, opts...)
}

// SessionID returns the current session id, rotating the session when it
// has expired.
func (sdk *SDK) SessionID() string {
	return sdk.sessions.SessionID()
}

// CurrentSession returns the current session without advancing it, or nil
// before the first SessionID call.
func (sdk *SDK) CurrentSession() *session.Session {
	return sdk.sessions.Session()
}

func (sdk *SDK) Subscribe(l session.Listener) (unsubscribe func()) {
	return sdk.sessions.Subscribe(l)
}

// MetricsHandler serves the SDK's metrics in prometheus text format.
func (sdk *SDK) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(sdk.registry, promhttp.HandlerOpts{})
}

// Ping checks the session store when it supports it.
func (sdk *SDK) Ping(ctx context.Context) error {
	if p, ok := sdk.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (sdk *SDK) ForceFlush(ctx context.Context) error {
	return errors.Join(
		sdk.tracerProvider.ForceFlush(ctx),
		sdk.meterProvider.ForceFlush(ctx),
		sdk.loggerProvider.ForceFlush(ctx),
	)
}

// Shutdown flushes and stops every provider, then releases the session
// store. Later calls return the first result.
func (sdk *SDK) Shutdown(ctx context.Context) error {
	sdk.shutdownOnce.Do(func() {
		var errs []error
		if sdk.loggerProvider != nil {
			if err := sdk.loggerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("logger provider: %w", err))
			}
		}
		if sdk.meterProvider != nil {
			if err := sdk.meterProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("meter provider: %w", err))
			}
		}
		if sdk.tracerProvider != nil {
			if err := sdk.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider: %w", err))
			}
		}
		for i := len(sdk.closers) - 1; i >= 0; i-- {
			if err := sdk.closers[i](ctx); err != nil {
				errs = append(errs, fmt.Errorf("session store: %w", err))
			}
		}
		sdk.shutdownErr = errors.Join(errs...)
	})
	return sdk.shutdownErr
}
