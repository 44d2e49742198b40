package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

const (
	keyAPIKey         = "HONEYCOMB_API_KEY"
	keyTracesAPIKey   = "HONEYCOMB_TRACES_APIKEY"
	keyMetricsAPIKey  = "HONEYCOMB_METRICS_APIKEY"
	keyLogsAPIKey     = "HONEYCOMB_LOGS_APIKEY"
	keyDataset        = "HONEYCOMB_DATASET"
	keyMetricsDataset = "HONEYCOMB_METRICS_DATASET"

	keyAPIEndpoint     = "HONEYCOMB_API_ENDPOINT"
	keyTracesEndpoint  = "HONEYCOMB_TRACES_ENDPOINT"
	keyMetricsEndpoint = "HONEYCOMB_METRICS_ENDPOINT"
	keyLogsEndpoint    = "HONEYCOMB_LOGS_ENDPOINT"

	keySampleRate = "SAMPLE_RATE"
	keyDebug      = "DEBUG"

	keyServiceName        = "OTEL_SERVICE_NAME"
	keyResourceAttributes = "OTEL_RESOURCE_ATTRIBUTES"
	keyTracesSampler      = "OTEL_TRACES_SAMPLER"
	keyTracesSamplerArg   = "OTEL_TRACES_SAMPLER_ARG"
	keyPropagators        = "OTEL_PROPAGATORS"

	keyTracesExporter  = "OTEL_TRACES_EXPORTER"
	keyMetricsExporter = "OTEL_METRICS_EXPORTER"
	keyLogsExporter    = "OTEL_LOGS_EXPORTER"

	keyHeaders        = "OTEL_EXPORTER_OTLP_HEADERS"
	keyTracesHeaders  = "OTEL_EXPORTER_OTLP_TRACES_HEADERS"
	keyMetricsHeaders = "OTEL_EXPORTER_OTLP_METRICS_HEADERS"
	keyLogsHeaders    = "OTEL_EXPORTER_OTLP_LOGS_HEADERS"

	keyTimeout        = "OTEL_EXPORTER_OTLP_TIMEOUT"
	keyTracesTimeout  = "OTEL_EXPORTER_OTLP_TRACES_TIMEOUT"
	keyMetricsTimeout = "OTEL_EXPORTER_OTLP_METRICS_TIMEOUT"
	keyLogsTimeout    = "OTEL_EXPORTER_OTLP_LOGS_TIMEOUT"

	keyProtocol        = "OTEL_EXPORTER_OTLP_PROTOCOL"
	keyTracesProtocol  = "OTEL_EXPORTER_OTLP_TRACES_PROTOCOL"
	keyMetricsProtocol = "OTEL_EXPORTER_OTLP_METRICS_PROTOCOL"
	keyLogsProtocol    = "OTEL_EXPORTER_OTLP_LOGS_PROTOCOL"

	keySessionTimeout   = "HONEYCOMB_SESSION_TIMEOUT"
	keySessionStore     = "HONEYCOMB_SESSION_STORE"
	keyRedisAddr        = "HONEYCOMB_REDIS_ADDR"
	keyRedisPassword    = "HONEYCOMB_REDIS_PASSWORD"
	keySessionKeyPrefix = "HONEYCOMB_SESSION_KEY_PREFIX"
	keyBadgerDir        = "HONEYCOMB_BADGER_DIR"

	keyOfflineCaching  = "HONEYCOMB_OFFLINE_CACHING_ENABLED"
	keyOfflineCacheDir = "HONEYCOMB_OFFLINE_CACHE_DIR"

	keyNavigationInstrumentation = "HONEYCOMB_NAVIGATION_INSTRUMENTATION_ENABLED"
	keyDeviceInstrumentation     = "HONEYCOMB_DEVICE_INSTRUMENTATION_ENABLED"
	keyNetworkInstrumentation    = "HONEYCOMB_NETWORK_INSTRUMENTATION_ENABLED"
	keyPanicInstrumentation      = "HONEYCOMB_PANIC_INSTRUMENTATION_ENABLED"
)

// Load reads options from the process environment, seeded from a .env file
// in the working directory when one exists.
func Load() (*Options, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	b, err := NewBuilderFromSource(EnvSource())
	if err != nil {
		return nil, err
	}
	return b.Build()
}

// LoadFile reads options from a YAML file whose top-level keys are the same
// names used in the environment.
func LoadFile(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read options file: %w", err)
	}
	values := map[string]any{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse options file %s: %w", path, err)
	}
	b, err := NewBuilderFromSource(NewSource(values))
	if err != nil {
		return nil, err
	}
	return b.Build()
}

// NewBuilderFromSource returns a builder pre-populated from src. All read
// errors are reported together.
func NewBuilderFromSource(src *Source) (*Builder, error) {
	l := &loader{src: src}
	b := NewBuilder()

	l.exporter(keyTracesExporter)
	l.exporter(keyMetricsExporter)
	l.exporter(keyLogsExporter)

	b.apiKey = l.optString(keyAPIKey)
	b.traces.apiKey = l.optString(keyTracesAPIKey)
	b.metrics.apiKey = l.optString(keyMetricsAPIKey)
	b.logs.apiKey = l.optString(keyLogsAPIKey)
	l.string(keyDataset, &b.dataset)
	l.string(keyMetricsDataset, &b.metricsDataset)

	l.string(keyAPIEndpoint, &b.apiEndpoint)
	b.traces.endpoint = l.optString(keyTracesEndpoint)
	b.metrics.endpoint = l.optString(keyMetricsEndpoint)
	b.logs.endpoint = l.optString(keyLogsEndpoint)

	if v, ok := l.int(keySampleRate); ok {
		b.sampleRate = v
	}
	if v, ok := l.bool(keyDebug); ok {
		b.debug = v
	}

	b.serviceName = l.optString(keyServiceName)
	b.resourceAttributes = l.keyValues(keyResourceAttributes)
	l.string(keyTracesSampler, &b.tracesSampler)
	l.string(keyTracesSamplerArg, &b.tracesSamplerArg)
	l.string(keyPropagators, &b.propagators)

	b.headers = l.keyValues(keyHeaders)
	b.traces.headers = l.keyValues(keyTracesHeaders)
	b.metrics.headers = l.keyValues(keyMetricsHeaders)
	b.logs.headers = l.keyValues(keyLogsHeaders)

	if v, ok := l.duration(keyTimeout); ok {
		b.timeout = v
	}
	b.traces.timeout = l.optDuration(keyTracesTimeout)
	b.metrics.timeout = l.optDuration(keyMetricsTimeout)
	b.logs.timeout = l.optDuration(keyLogsTimeout)

	if v, ok := l.protocol(keyProtocol); ok {
		b.protocol = v
	}
	b.traces.protocol = l.optProtocol(keyTracesProtocol)
	b.metrics.protocol = l.optProtocol(keyMetricsProtocol)
	b.logs.protocol = l.optProtocol(keyLogsProtocol)

	if v, ok := l.duration(keySessionTimeout); ok {
		b.session.Timeout = v
	}
	var store string
	l.string(keySessionStore, &store)
	if store != "" {
		b.session.Store = SessionStoreKind(strings.ToLower(store))
	}
	l.string(keyRedisAddr, &b.session.RedisAddr)
	l.string(keyRedisPassword, &b.session.RedisPassword)
	l.string(keySessionKeyPrefix, &b.session.KeyPrefix)
	l.string(keyBadgerDir, &b.session.BadgerDir)

	if v, ok := l.bool(keyOfflineCaching); ok {
		b.offlineCaching = v
	}
	l.string(keyOfflineCacheDir, &b.offlineCacheDir)

	for key, dst := range map[string]*bool{
		keyNavigationInstrumentation: &b.instrumentation.Navigation,
		keyDeviceInstrumentation:     &b.instrumentation.Device,
		keyNetworkInstrumentation:    &b.instrumentation.NetworkStatus,
		keyPanicInstrumentation:      &b.instrumentation.Panics,
	} {
		if v, ok := l.bool(key); ok {
			*dst = v
		}
	}

	if err := l.Error(); err != nil {
		return nil, err
	}
	return b, nil
}

// loader reads typed values from a Source and collects every failure.
type loader struct {
	src  *Source
	errs []error
}

func (l *loader) Error() error {
	return errors.Join(l.errs...)
}

func (l *loader) fail(err error) {
	l.errs = append(l.errs, err)
}

func (l *loader) string(key string, dst *string) {
	v, ok, err := l.src.String(key)
	if err != nil {
		l.fail(err)
		return
	}
	if ok {
		*dst = v
	}
}

func (l *loader) optString(key string) *string {
	v, ok, err := l.src.String(key)
	if err != nil {
		l.fail(err)
		return nil
	}
	if !ok {
		return nil
	}
	return &v
}

func (l *loader) int(key string) (int, bool) {
	v, ok, err := l.src.Int(key)
	if err != nil {
		l.fail(err)
	}
	return v, ok
}

func (l *loader) bool(key string) (bool, bool) {
	v, ok, err := l.src.Bool(key)
	if err != nil {
		l.fail(err)
	}
	return v, ok
}

func (l *loader) duration(key string) (time.Duration, bool) {
	v, ok, err := l.src.Duration(key)
	if err != nil {
		l.fail(err)
	}
	return v, ok
}

func (l *loader) optDuration(key string) *time.Duration {
	if v, ok := l.duration(key); ok {
		return &v
	}
	return nil
}

func (l *loader) keyValues(key string) map[string]string {
	v, err := l.src.KeyValueList(key)
	if err != nil {
		l.fail(err)
		return map[string]string{}
	}
	return v
}

func (l *loader) protocol(key string) (Protocol, bool) {
	v, ok, err := l.src.Protocol(key)
	if err != nil {
		l.fail(err)
	}
	return v, ok
}

func (l *loader) optProtocol(key string) *Protocol {
	if v, ok := l.protocol(key); ok {
		return &v
	}
	return nil
}

// exporter rejects any exporter other than otlp.
func (l *loader) exporter(key string) {
	var v string
	l.string(key, &v)
	if v == "" {
		return
	}
	if v = strings.ToLower(v); v != "otlp" {
		l.fail(newError(KindUnsupportedExporter, "unsupported exporter %s for %s", v, key))
	}
}
