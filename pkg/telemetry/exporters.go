package telemetry

import (
	"context"
	"fmt"
	"strings"

	"otelmobile/cfg"
	"otelmobile/pkg/logger"
	"otelmobile/pkg/offline"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func unsupportedProtocol(p cfg.Protocol) error {
	return &cfg.OptionsError{Kind: cfg.KindUnsupportedProtocol, Detail: string(p)}
}

// checkProtocols rejects transports no exporter can speak before anything
// is started.
func checkProtocols(opts *cfg.Options, s *settings) error {
	var exporters []cfg.Exporter
	if s.spanExporter == nil {
		exporters = append(exporters, opts.Traces)
	}
	if s.metricReader == nil {
		exporters = append(exporters, opts.Metrics)
	}
	if s.logExporter == nil {
		exporters = append(exporters, opts.Logs)
	}
	for _, e := range exporters {
		switch e.Protocol {
		case cfg.ProtocolGRPC, cfg.ProtocolHTTPProtobuf:
		default:
			return unsupportedProtocol(e.Protocol)
		}
	}
	return nil
}

func newTraceClient(e cfg.Exporter) (otlptrace.Client, error) {
	switch e.Protocol {
	case cfg.ProtocolGRPC:
		return otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpointURL(e.Endpoint),
			otlptracegrpc.WithHeaders(e.Headers),
			otlptracegrpc.WithTimeout(e.Timeout),
		), nil
	case cfg.ProtocolHTTPProtobuf:
		return otlptracehttp.NewClient(
			otlptracehttp.WithEndpointURL(e.Endpoint),
			otlptracehttp.WithHeaders(e.Headers),
			otlptracehttp.WithTimeout(e.Timeout),
		), nil
	default:
		return nil, unsupportedProtocol(e.Protocol)
	}
}

// newSpanExporter builds the OTLP span exporter, routed through the offline
// cache when enabled. Failing to open the cache only disables caching.
func newSpanExporter(ctx context.Context, opts *cfg.Options, log logger.Logger) (*otlptrace.Exporter, error) {
	client, err := newTraceClient(opts.Traces)
	if err != nil {
		return nil, err
	}
	if opts.OfflineCaching {
		cached, err := offline.Open(client, opts.OfflineCacheDir, offline.WithLogger(log))
		if err != nil {
			log.Warn("offline caching disabled", logger.Field{Key: "error", Value: err.Error()})
		} else {
			client = cached
		}
	}
	exp, err := otlptrace.New(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	return exp, nil
}

func newMetricExporter(ctx context.Context, e cfg.Exporter) (sdkmetric.Exporter, error) {
	switch e.Protocol {
	case cfg.ProtocolGRPC:
		return otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpointURL(e.Endpoint),
			otlpmetricgrpc.WithHeaders(e.Headers),
			otlpmetricgrpc.WithTimeout(e.Timeout),
		)
	case cfg.ProtocolHTTPProtobuf:
		return otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpointURL(e.Endpoint),
			otlpmetrichttp.WithHeaders(e.Headers),
			otlpmetrichttp.WithTimeout(e.Timeout),
		)
	default:
		return nil, unsupportedProtocol(e.Protocol)
	}
}

func newLogExporter(ctx context.Context, e cfg.Exporter) (sdklog.Exporter, error) {
	switch e.Protocol {
	case cfg.ProtocolGRPC:
		return otlploggrpc.New(ctx,
			otlploggrpc.WithEndpointURL(e.Endpoint),
			otlploggrpc.WithHeaders(e.Headers),
			otlploggrpc.WithTimeout(e.Timeout),
		)
	case cfg.ProtocolHTTPProtobuf:
		return otlploghttp.New(ctx,
			otlploghttp.WithEndpointURL(e.Endpoint),
			otlploghttp.WithHeaders(e.Headers),
			otlploghttp.WithTimeout(e.Timeout),
		)
	default:
		return nil, unsupportedProtocol(e.Protocol)
	}
}

func newPropagator(names string, log logger.Logger) propagation.TextMapPropagator {
	var props []propagation.TextMapPropagator
	for _, name := range strings.Split(names, ",") {
		switch name = strings.TrimSpace(name); name {
		case "tracecontext":
			props = append(props, propagation.TraceContext{})
		case "baggage":
			props = append(props, propagation.Baggage{})
		case "", "none":
		default:
			log.Warn("unsupported propagator ignored", logger.Field{Key: "propagator", Value: name})
		}
	}
	return propagation.NewCompositeTextMapPropagator(props...)
}
