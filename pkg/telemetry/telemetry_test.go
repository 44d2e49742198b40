package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"otelmobile/cfg"
	"otelmobile/pkg/enrich"
	"otelmobile/pkg/logger"
	"otelmobile/pkg/navigation"
	"otelmobile/pkg/sampler"
	"otelmobile/pkg/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type memoryLogExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *memoryLogExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *memoryLogExporter) Shutdown(context.Context) error   { return nil }
func (e *memoryLogExporter) ForceFlush(context.Context) error { return nil }

func (e *memoryLogExporter) all() []sdklog.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]sdklog.Record(nil), e.records...)
}

func recordAttrs(r sdklog.Record) map[string]string {
	out := map[string]string{}
	r.WalkAttributes(func(kv otellog.KeyValue) bool {
		out[kv.Key] = kv.Value.AsString()
		return true
	})
	return out
}

func spanAttrs(s tracetest.SpanStub) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes {
		out[kv.Key] = kv.Value
	}
	return out
}

type harness struct {
	sdk    *SDK
	spans  *tracetest.InMemoryExporter
	logs   *memoryLogExporter
	reader *sdkmetric.ManualReader
}

func newHarness(t *testing.T, b *cfg.Builder, extra ...Option) *harness {
	t.Helper()
	opts, err := b.Build()
	require.NoError(t, err)

	h := &harness{
		spans:  tracetest.NewInMemoryExporter(),
		logs:   &memoryLogExporter{},
		reader: sdkmetric.NewManualReader(),
	}
	options := append([]Option{
		WithLogger(logger.Nop{}),
		WithSpanExporter(h.spans),
		WithLogExporter(h.logs),
		WithMetricReader(h.reader),
		WithoutGlobal(),
		WithDeviceInfo(enrich.DeviceInfoFunc(func() enrich.DeviceInfo {
			return enrich.DeviceInfo{Manufacturer: "Acme", SystemName: "testOS"}
		})),
	}, extra...)

	h.sdk, err = Configure(context.Background(), opts, options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.sdk.Shutdown(context.Background()) })
	return h
}

func (h *harness) flush(t *testing.T) {
	t.Helper()
	require.NoError(t, h.sdk.ForceFlush(context.Background()))
}

func TestConfigure_SpansAreEnriched(t *testing.T) {
	h := newHarness(t, cfg.NewBuilder().SetAPIKey("key").SetSampleRate(1),
		WithNetworkMonitor(enrich.NetworkMonitorFunc(func() enrich.NetworkStatus {
			return enrich.NetworkStatus{ConnectionType: "wifi"}
		})),
	)
	ctx := context.Background()

	h.sdk.Navigation().Report(ctx, navigation.Report{Path: []string{"home", "settings"}, Reason: "tap"})

	_, span := h.sdk.Tracer("test").Start(ctx, "work")
	span.End()
	h.flush(t)

	var work *tracetest.SpanStub
	for _, s := range h.spans.GetSpans() {
		if s.Name == "work" {
			work = &s
		}
	}
	require.NotNil(t, work)

	attrs := spanAttrs(*work)
	assert.Equal(t, h.sdk.CurrentSession().ID, attrs[enrich.SessionIDKey].AsString())
	assert.Equal(t, int64(1), attrs[sampler.SampleRateKey].AsInt64())
	assert.Equal(t, "Acme", attrs["device.manufacturer"].AsString())
	assert.Equal(t, "wifi", attrs["network.connection.type"].AsString())
	assert.Equal(t, "settings", attrs[navigation.ScreenNameKey].AsString())
	assert.Equal(t, "/home/settings", attrs[navigation.ScreenPathKey].AsString())

	res := map[attribute.Key]string{}
	for _, kv := range work.Resource.Attributes() {
		res[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, "unknown_service", res["service.name"])
	assert.Equal(t, cfg.Version, res["honeycomb.distro.version"])
}

func TestConfigure_SampleRateZeroDropsEverything(t *testing.T) {
	h := newHarness(t, cfg.NewBuilder().SetAPIKey("key").SetSampleRate(0))

	for i := 0; i < 20; i++ {
		_, span := h.sdk.Tracer("test").Start(context.Background(), "dropped")
		span.End()
	}
	h.flush(t)

	assert.Empty(t, h.spans.GetSpans())
	assert.Equal(t, "DeterministicSampler{0}", h.sdk.Sampler().Description())
}

func TestConfigure_InstrumentationToggles(t *testing.T) {
	h := newHarness(t, cfg.NewBuilder().SetAPIKey("key").SetInstrumentation(cfg.Instrumentation{}))

	_, span := h.sdk.Tracer("test").Start(context.Background(), "work")
	span.End()
	h.flush(t)

	spans := h.spans.GetSpans()
	require.Len(t, spans, 1)
	attrs := spanAttrs(spans[0])
	_, hasDevice := attrs["device.manufacturer"]
	_, hasPath := attrs[navigation.ScreenPathKey]
	assert.False(t, hasDevice)
	assert.False(t, hasPath)
	assert.NotEmpty(t, attrs[enrich.SessionIDKey].AsString())
}

func TestConfigure_LogsCarrySessionID(t *testing.T) {
	h := newHarness(t, cfg.NewBuilder().SetAPIKey("key"))

	var rec otellog.Record
	rec.SetBody(otellog.StringValue("hello"))
	h.sdk.Logger("app").Emit(context.Background(), rec)
	h.flush(t)

	records := h.logs.all()
	require.Len(t, records, 1)
	assert.Equal(t, h.sdk.CurrentSession().ID, recordAttrs(records[0])[enrich.SessionIDKey])
}

type customError struct{}

func (customError) Error() string { return "custom failure" }

func TestSDK_LogError(t *testing.T) {
	h := newHarness(t, cfg.NewBuilder().SetAPIKey("key"))

	h.sdk.LogError(context.Background(), customError{}, otellog.String("user", "bob"))
	h.sdk.LogError(context.Background(), nil)
	h.flush(t)

	records := h.logs.all()
	require.Len(t, records, 1)
	assert.Equal(t, otellog.SeverityError, records[0].Severity())
	assert.Equal(t, ErrorInstrumentationName, records[0].InstrumentationScope().Name)

	attrs := recordAttrs(records[0])
	assert.Equal(t, "telemetry.customError", attrs["error.type"])
	assert.Equal(t, "custom failure", attrs["error.message"])
	assert.Equal(t, "bob", attrs["user"])
	assert.NotEmpty(t, attrs[enrich.SessionIDKey])
}

func TestSDK_RecoverPanic(t *testing.T) {
	h := newHarness(t, cfg.NewBuilder().SetAPIKey("key"))

	assert.PanicsWithError(t, "boom", func() {
		defer h.sdk.RecoverPanic(context.Background())
		panic(errors.New("boom"))
	})

	records := h.logs.all()
	require.Len(t, records, 1)
	assert.Equal(t, otellog.SeverityFatal, records[0].Severity())
	attrs := recordAttrs(records[0])
	assert.Equal(t, "*errors.errorString", attrs["exception.type"])
	assert.Equal(t, "boom", attrs["exception.message"])
	assert.Contains(t, attrs["exception.stacktrace"], "goroutine")
}

func TestSDK_RecoverPanicDisabled(t *testing.T) {
	instr := cfg.DefaultInstrumentation()
	instr.Panics = false
	h := newHarness(t, cfg.NewBuilder().SetAPIKey("key").SetInstrumentation(instr))

	assert.PanicsWithValue(t, "boom", func() {
		defer h.sdk.RecoverPanic(context.Background())
		panic("boom")
	})
	h.flush(t)
	assert.Empty(t, h.logs.all())
}

func TestSDK_RecoverPanicWithoutPanic(t *testing.T) {
	h := newHarness(t, cfg.NewBuilder().SetAPIKey("key"))

	assert.NotPanics(t, func() {
		defer h.sdk.RecoverPanic(context.Background())
	})
}

func TestSDK_SessionRotationAndMetrics(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}

	h := newHarness(t, cfg.NewBuilder().SetAPIKey("key").SetSessionTimeout(time.Minute), WithClock(clock))

	var started, ended []string
	unsubscribe := h.sdk.Subscribe(session.ListenerFuncs{
		Started: func(e session.StartedEvent) { started = append(started, e.Session.ID) },
		Ended:   func(e session.EndedEvent) { ended = append(ended, e.Session.ID) },
	})
	defer unsubscribe()

	assert.Nil(t, h.sdk.CurrentSession())
	first := h.sdk.SessionID()
	assert.Equal(t, first, h.sdk.SessionID())

	advance(time.Minute)
	second := h.sdk.SessionID()
	assert.NotEqual(t, first, second)
	assert.Equal(t, []string{first, second}, started)
	assert.Equal(t, []string{first}, ended)

	rec := httptest.NewRecorder()
	h.sdk.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "session_started")
	assert.Contains(t, rec.Body.String(), "session_ended")
}

func TestConfigure_RedisSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)

	opts, err := cfg.NewBuilder().
		SetAPIKey("key").
		SetSessionStore(cfg.SessionStoreRedis).
		SetRedis(mr.Addr(), "").
		SetSessionKeyPrefix("app:").
		Build()
	require.NoError(t, err)

	sdk, err := Configure(context.Background(), opts,
		WithLogger(logger.Nop{}),
		WithSpanExporter(tracetest.NewInMemoryExporter()),
		WithLogExporter(&memoryLogExporter{}),
		WithMetricReader(sdkmetric.NewManualReader()),
		WithoutGlobal(),
	)
	require.NoError(t, err)
	defer sdk.Shutdown(context.Background())

	id := sdk.SessionID()
	got, err := mr.Get("app:" + session.IDKey)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.NoError(t, sdk.Ping(context.Background()))
}

func TestConfigure_BadgerSessionStore(t *testing.T) {
	h := newHarness(t, cfg.NewBuilder().
		SetAPIKey("key").
		SetSessionStore(cfg.SessionStoreBadger).
		SetBadgerDir(t.TempDir()))

	id := h.sdk.SessionID()
	assert.NotEmpty(t, id)
	assert.NoError(t, h.sdk.Ping(context.Background()))

	require.NoError(t, h.sdk.Shutdown(context.Background()))
	assert.Error(t, h.sdk.Ping(context.Background()))
}

func TestConfigure_RejectsHTTPJSON(t *testing.T) {
	opts, err := cfg.NewBuilder().SetAPIKey("key").SetLogsProtocol(cfg.ProtocolHTTPJSON).Build()
	require.NoError(t, err)

	_, err = Configure(context.Background(), opts, WithLogger(logger.Nop{}), WithoutGlobal())
	assert.ErrorIs(t, err, cfg.ErrUnsupportedProtocol)
}

func TestConfigure_NilOptions(t *testing.T) {
	_, err := Configure(context.Background(), nil)
	assert.Error(t, err)
}

func TestSDK_ShutdownIsIdempotent(t *testing.T) {
	h := newHarness(t, cfg.NewBuilder().SetAPIKey("key"))
	require.NoError(t, h.sdk.Shutdown(context.Background()))
	assert.NoError(t, h.sdk.Shutdown(context.Background()))
}

// collector records OTLP/HTTP requests by path.
type collector struct {
	mu      sync.Mutex
	paths   map[string]int
	teamKey []string
}

func (c *collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	c.mu.Lock()
	c.paths[r.URL.Path]++
	c.teamKey = append(c.teamKey, r.Header.Get("x-honeycomb-team"))
	c.mu.Unlock()
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.WriteHeader(http.StatusOK)
}

func (c *collector) count(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paths[path]
}

func TestConfigure_ExportsOverOTLPHTTP(t *testing.T) {
	col := &collector{paths: map[string]int{}}
	srv := httptest.NewServer(col)
	defer srv.Close()

	opts, err := cfg.NewBuilder().
		SetAPIKey("team-key").
		SetAPIEndpoint(srv.URL).
		SetOfflineCaching(true, "").
		Build()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(opts.Traces.Endpoint, "/v1/traces"))

	sdk, err := Configure(context.Background(), opts, WithLogger(logger.Nop{}), WithoutGlobal())
	require.NoError(t, err)

	ctx := context.Background()
	_, span := sdk.Tracer("test").Start(ctx, "exported")
	span.End()
	sdk.LogError(ctx, errors.New("exported"))
	sdk.SessionID()

	require.NoError(t, sdk.Shutdown(ctx))

	assert.Equal(t, 1, col.count("/v1/traces"))
	assert.GreaterOrEqual(t, col.count("/v1/logs"), 1)
	assert.GreaterOrEqual(t, col.count("/v1/metrics"), 1)
	for _, key := range col.teamKey {
		assert.Equal(t, "team-key", key)
	}
}
