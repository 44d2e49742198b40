package cfg

import (
	"maps"
	"net/url"
	"regexp"
	"runtime"
	"strings"
	"time"
)

// Version is reported as honeycomb.distro.version.
const Version = "0.3.0"

// OTLPVersion is sent as the x-otlp-version header.
const OTLPVersion = "1.10.1"

const (
	DefaultAPIEndpoint    = "https://api.honeycomb.io:443"
	DefaultServiceName    = "unknown_service"
	DefaultTracesSampler  = "parentbased_always_on"
	DefaultPropagators    = "tracecontext,baggage"
	DefaultTimeout        = 10 * time.Second
	DefaultSessionTimeout = 4 * time.Hour
	DefaultProtocol       = ProtocolHTTPProtobuf
)

// Protocol is the OTLP transport.
type Protocol string

const (
	ProtocolGRPC         Protocol = "grpc"
	ProtocolHTTPProtobuf Protocol = "http/protobuf"
	ProtocolHTTPJSON     Protocol = "http/json"
)

func ParseProtocol(s string) (Protocol, error) {
	switch p := Protocol(s); p {
	case ProtocolGRPC, ProtocolHTTPProtobuf, ProtocolHTTPJSON:
		return p, nil
	default:
		return "", newError(KindUnsupportedProtocol, "invalid protocol %s", s)
	}
}

// SessionStoreKind selects where the current session is persisted.
type SessionStoreKind string

const (
	SessionStoreMemory SessionStoreKind = "memory"
	SessionStoreRedis  SessionStoreKind = "redis"
	SessionStoreBadger SessionStoreKind = "badger"
)

// Exporter holds the resolved settings for one signal.
type Exporter struct {
	APIKey   string
	Endpoint string
	Headers  map[string]string
	Timeout  time.Duration
	Protocol Protocol
}

type SessionOptions struct {
	Timeout       time.Duration
	Store         SessionStoreKind
	RedisAddr     string
	RedisPassword string
	KeyPrefix     string
	BadgerDir     string
}

type Instrumentation struct {
	Navigation    bool
	Device        bool
	NetworkStatus bool
	Panics        bool
}

// DefaultInstrumentation enables everything.
func DefaultInstrumentation() Instrumentation {
	return Instrumentation{Navigation: true, Device: true, NetworkStatus: true, Panics: true}
}

// Options is the resolved SDK configuration. Build it with a Builder, Load
// or LoadFile and treat it as read-only.
type Options struct {
	Traces  Exporter
	Metrics Exporter
	Logs    Exporter

	Dataset        string
	MetricsDataset string

	SampleRate int
	Debug      bool

	ServiceName        string
	ResourceAttributes map[string]string
	TracesSampler      string
	TracesSamplerArg   string
	Propagators        string

	Session         SessionOptions
	OfflineCaching  bool
	OfflineCacheDir string
	Instrumentation Instrumentation
}

type signalBuilder struct {
	apiKey   *string
	endpoint *string
	headers  map[string]string
	timeout  *time.Duration
	protocol *Protocol
}

// Builder collects options. The zero value is not usable; call NewBuilder.
type Builder struct {
	apiKey         *string
	dataset        string
	metricsDataset string
	apiEndpoint    string

	traces, metrics, logs signalBuilder

	sampleRate int
	debug      bool

	serviceName        *string
	resourceAttributes map[string]string
	tracesSampler      string
	tracesSamplerArg   string
	propagators        string

	headers  map[string]string
	timeout  time.Duration
	protocol Protocol

	session         SessionOptions
	offlineCaching  bool
	offlineCacheDir string
	instrumentation Instrumentation
}

func NewBuilder() *Builder {
	return &Builder{
		apiEndpoint:        DefaultAPIEndpoint,
		sampleRate:         1,
		resourceAttributes: map[string]string{},
		tracesSampler:      DefaultTracesSampler,
		propagators:        DefaultPropagators,
		headers:            map[string]string{},
		timeout:            DefaultTimeout,
		protocol:           DefaultProtocol,
		session: SessionOptions{
			Timeout: DefaultSessionTimeout,
			Store:   SessionStoreMemory,
		},
		instrumentation: DefaultInstrumentation(),
	}
}

func (b *Builder) SetAPIKey(key string) *Builder {
	b.apiKey = &key
	return b
}

func (b *Builder) SetTracesAPIKey(key string) *Builder {
	b.traces.apiKey = &key
	return b
}

func (b *Builder) SetMetricsAPIKey(key string) *Builder {
	b.metrics.apiKey = &key
	return b
}

func (b *Builder) SetLogsAPIKey(key string) *Builder {
	b.logs.apiKey = &key
	return b
}

func (b *Builder) SetDataset(dataset string) *Builder {
	b.dataset = dataset
	return b
}

func (b *Builder) SetMetricsDataset(dataset string) *Builder {
	b.metricsDataset = dataset
	return b
}

func (b *Builder) SetAPIEndpoint(endpoint string) *Builder {
	b.apiEndpoint = endpoint
	return b
}

func (b *Builder) SetTracesEndpoint(endpoint string) *Builder {
	b.traces.endpoint = &endpoint
	return b
}

func (b *Builder) SetMetricsEndpoint(endpoint string) *Builder {
	b.metrics.endpoint = &endpoint
	return b
}

func (b *Builder) SetLogsEndpoint(endpoint string) *Builder {
	b.logs.endpoint = &endpoint
	return b
}

func (b *Builder) SetSampleRate(rate int) *Builder {
	b.sampleRate = rate
	return b
}

func (b *Builder) SetDebug(debug bool) *Builder {
	b.debug = debug
	return b
}

func (b *Builder) SetServiceName(name string) *Builder {
	b.serviceName = &name
	return b
}

func (b *Builder) SetResourceAttributes(attrs map[string]string) *Builder {
	b.resourceAttributes = maps.Clone(attrs)
	return b
}

func (b *Builder) SetTracesSampler(sampler string) *Builder {
	b.tracesSampler = sampler
	return b
}

func (b *Builder) SetTracesSamplerArg(arg string) *Builder {
	b.tracesSamplerArg = arg
	return b
}

func (b *Builder) SetPropagators(propagators string) *Builder {
	b.propagators = propagators
	return b
}

func (b *Builder) SetHeaders(h map[string]string) *Builder {
	b.headers = maps.Clone(h)
	return b
}

func (b *Builder) SetTracesHeaders(h map[string]string) *Builder {
	b.traces.headers = maps.Clone(h)
	return b
}

func (b *Builder) SetMetricsHeaders(h map[string]string) *Builder {
	b.metrics.headers = maps.Clone(h)
	return b
}

func (b *Builder) SetLogsHeaders(h map[string]string) *Builder {
	b.logs.headers = maps.Clone(h)
	return b
}

func (b *Builder) SetTimeout(d time.Duration) *Builder {
	b.timeout = d
	return b
}

func (b *Builder) SetTracesTimeout(d time.Duration) *Builder {
	b.traces.timeout = &d
	return b
}

func (b *Builder) SetMetricsTimeout(d time.Duration) *Builder {
	b.metrics.timeout = &d
	return b
}

func (b *Builder) SetLogsTimeout(d time.Duration) *Builder {
	b.logs.timeout = &d
	return b
}

func (b *Builder) SetProtocol(p Protocol) *Builder {
	b.protocol = p
	return b
}

func (b *Builder) SetTracesProtocol(p Protocol) *Builder {
	b.traces.protocol = &p
	return b
}

func (b *Builder) SetMetricsProtocol(p Protocol) *Builder {
	b.metrics.protocol = &p
	return b
}

func (b *Builder) SetLogsProtocol(p Protocol) *Builder {
	b.logs.protocol = &p
	return b
}

func (b *Builder) SetSessionTimeout(d time.Duration) *Builder {
	b.session.Timeout = d
	return b
}

func (b *Builder) SetSessionStore(kind SessionStoreKind) *Builder {
	b.session.Store = kind
	return b
}

func (b *Builder) SetRedis(addr, password string) *Builder {
	b.session.RedisAddr = addr
	b.session.RedisPassword = password
	return b
}

func (b *Builder) SetSessionKeyPrefix(prefix string) *Builder {
	b.session.KeyPrefix = prefix
	return b
}

// SetBadgerDir sets the badger session store directory. Empty keeps the
// store in memory.
func (b *Builder) SetBadgerDir(dir string) *Builder {
	b.session.BadgerDir = dir
	return b
}

// SetOfflineCaching keeps spans that failed to export in dir and retries
// them on the next successful export. An empty dir keeps them in memory.
func (b *Builder) SetOfflineCaching(enabled bool, dir string) *Builder {
	b.offlineCaching = enabled
	b.offlineCacheDir = dir
	return b
}

func (b *Builder) SetInstrumentation(i Instrumentation) *Builder {
	b.instrumentation = i
	return b
}

var (
	classicKey       = regexp.MustCompile(`^[a-f0-9]*$`)
	ingestClassicKey = regexp.MustCompile(`^hc[a-z]ic_[a-z0-9]*$`)
)

// IsClassicKey reports whether key is a classic (dataset scoped) API key.
func IsClassicKey(key string) bool {
	switch len(key) {
	case 32:
		return classicKey.MatchString(key)
	case 64:
		return ingestClassicKey.MatchString(key)
	default:
		return false
	}
}

// Build resolves defaults and derived values.
func (b *Builder) Build() (*Options, error) {
	session := b.session
	switch session.Store {
	case "":
		session.Store = SessionStoreMemory
	case SessionStoreMemory, SessionStoreRedis, SessionStoreBadger:
	default:
		return nil, newError(KindIncorrectType, "unknown session store %q", session.Store)
	}
	if session.Timeout <= 0 {
		session.Timeout = DefaultSessionTimeout
	}

	resource := maps.Clone(b.resourceAttributes)
	if resource == nil {
		resource = map[string]string{}
	}
	serviceName := DefaultServiceName
	if b.serviceName != nil {
		serviceName = *b.serviceName
	} else if name, ok := resource["service.name"]; ok {
		serviceName = name
	}
	putIfAbsent(resource, "service.name", serviceName)
	putIfAbsent(resource, "honeycomb.distro.version", Version)
	putIfAbsent(resource, "honeycomb.distro.runtime_version", runtime.Version())

	traces, err := b.exporter(b.traces, "v1/traces", func(key string) string {
		if IsClassicKey(key) {
			return b.dataset
		}
		return ""
	})
	if err != nil {
		return nil, err
	}
	metrics, err := b.exporter(b.metrics, "v1/metrics", func(string) string {
		return b.metricsDataset
	})
	if err != nil {
		return nil, err
	}
	logs, err := b.exporter(b.logs, "v1/logs", func(key string) string {
		if IsClassicKey(key) {
			return b.dataset
		}
		return ""
	})
	if err != nil {
		return nil, err
	}

	return &Options{
		Traces:             traces,
		Metrics:            metrics,
		Logs:               logs,
		Dataset:            b.dataset,
		MetricsDataset:     b.metricsDataset,
		SampleRate:         b.sampleRate,
		Debug:              b.debug,
		ServiceName:        serviceName,
		ResourceAttributes: resource,
		TracesSampler:      b.tracesSampler,
		TracesSamplerArg:   b.tracesSamplerArg,
		Propagators:        b.propagators,
		Session:            session,
		OfflineCaching:     b.offlineCaching,
		OfflineCacheDir:    b.offlineCacheDir,
		Instrumentation:    b.instrumentation,
	}, nil
}

func (b *Builder) exporter(s signalBuilder, suffix string, dataset func(key string) string) (Exporter, error) {
	var key string
	switch {
	case s.apiKey != nil:
		key = *s.apiKey
	case b.apiKey != nil:
		key = *b.apiKey
	default:
		return Exporter{}, newError(KindMissingAPIKey, "missing API key: call SetAPIKey")
	}

	proto := b.protocol
	if s.protocol != nil {
		proto = *s.protocol
	}
	timeout := b.timeout
	if s.timeout != nil {
		timeout = *s.timeout
	}

	endpoint := endpointFor(s.endpoint, b.apiEndpoint, proto, suffix)
	if err := validateURL(endpoint); err != nil {
		return Exporter{}, err
	}

	return Exporter{
		APIKey:   key,
		Endpoint: endpoint,
		Headers:  headersFor(key, dataset(key), b.headers, s.headers),
		Timeout:  timeout,
		Protocol: proto,
	}, nil
}

// endpointFor prefers an explicit signal endpoint, then the base endpoint
// as-is for grpc, then the base endpoint with the signal path appended.
func endpointFor(explicit *string, base string, proto Protocol, suffix string) string {
	if explicit != nil {
		return *explicit
	}
	if proto == ProtocolGRPC {
		return base
	}
	if strings.HasSuffix(base, "/") {
		return base + suffix
	}
	return base + "/" + suffix
}

// headersFor merges in order: otlp version, general headers, team, dataset,
// signal headers. Later entries win.
func headersFor(apiKey, dataset string, general, signal map[string]string) map[string]string {
	h := map[string]string{"x-otlp-version": OTLPVersion}
	maps.Copy(h, general)
	h["x-honeycomb-team"] = apiKey
	if dataset != "" {
		h["x-honeycomb-dataset"] = dataset
	}
	maps.Copy(h, signal)
	return h
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return newError(KindMalformedURL, "%s", raw)
	}
	return nil
}

func putIfAbsent(m map[string]string, k, v string) {
	if _, ok := m[k]; !ok {
		m[k] = v
	}
}
