package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type fixedSession string

func (f fixedSession) SessionID() string { return string(f) }

type fixedPath []string

func (f fixedPath) Path() []string { return f }

// startSpan runs one span through processors followed by a recorder and
// returns the ended span's attributes.
func startSpan(t *testing.T, ctx context.Context, processors ...sdktrace.SpanProcessor) map[attribute.Key]attribute.Value {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	composite := NewComposite(processors...)
	composite.Add(rec)

	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(composite))
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(ctx, "op")
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range ended[0].Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

type orderProcessor struct {
	startOnly
	name  string
	calls *[]string
	err   error
}

func (o orderProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {
	*o.calls = append(*o.calls, o.name)
}

func (o orderProcessor) Shutdown(context.Context) error { return o.err }

func TestComposite_RegistrationOrder(t *testing.T) {
	var calls []string
	c := NewComposite(
		orderProcessor{name: "first", calls: &calls},
		orderProcessor{name: "second", calls: &calls},
	)
	c.Add(orderProcessor{name: "third", calls: &calls})
	c.Add(nil)
	assert.Equal(t, 3, c.Len())

	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(c))
	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.End()

	assert.Equal(t, []string{"first", "second", "third"}, calls)
	require.NoError(t, tp.Shutdown(context.Background()))
}

func TestComposite_ShutdownJoinsErrors(t *testing.T) {
	var calls []string
	errA, errB := errors.New("a"), errors.New("b")
	c := NewComposite(
		orderProcessor{name: "a", calls: &calls, err: errA},
		orderProcessor{name: "ok", calls: &calls},
		orderProcessor{name: "b", calls: &calls, err: errB},
	)

	err := c.Shutdown(context.Background())
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.NoError(t, c.ForceFlush(context.Background()))
}

func TestSessionIDSpanProcessor(t *testing.T) {
	attrs := startSpan(t, context.Background(), NewSessionIDSpanProcessor(fixedSession("abc123")))
	assert.Equal(t, "abc123", attrs[SessionIDKey].AsString())
}

type captureProcessor struct {
	mu       sync.Mutex
	records  []sdklog.Record
	shutdown bool
}

func (c *captureProcessor) OnEmit(_ context.Context, r *sdklog.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, r.Clone())
	return nil
}

func (c *captureProcessor) Shutdown(context.Context) error {
	c.shutdown = true
	return nil
}

func (c *captureProcessor) ForceFlush(context.Context) error { return nil }

func logAttrs(r sdklog.Record) map[string]otellog.Value {
	out := make(map[string]otellog.Value)
	r.WalkAttributes(func(kv otellog.KeyValue) bool {
		out[kv.Key] = kv.Value
		return true
	})
	return out
}

func TestSessionIDLogProcessor(t *testing.T) {
	capture := &captureProcessor{}
	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(NewSessionIDLogProcessor(fixedSession("abc123"), capture)),
	)

	var rec otellog.Record
	rec.SetBody(otellog.StringValue("hello"))
	rec.AddAttributes(otellog.String("user", "bob"))
	provider.Logger("test").Emit(context.Background(), rec)

	require.Len(t, capture.records, 1)
	attrs := logAttrs(capture.records[0])
	assert.Equal(t, "abc123", attrs[SessionIDKey].AsString())
	assert.Equal(t, "bob", attrs["user"].AsString())

	require.NoError(t, provider.Shutdown(context.Background()))
	assert.True(t, capture.shutdown)
}

func TestSessionIDLogProcessor_WithoutNext(t *testing.T) {
	capture := &captureProcessor{}
	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(NewSessionIDLogProcessor(fixedSession("xyz"), nil)),
		sdklog.WithProcessor(capture),
	)

	var rec otellog.Record
	provider.Logger("test").Emit(context.Background(), rec)

	require.Len(t, capture.records, 1)
	assert.Equal(t, "xyz", logAttrs(capture.records[0])[SessionIDKey].AsString())
	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestBaggageSpanProcessor(t *testing.T) {
	tenant, err := baggage.NewMember("tenant", "acme")
	require.NoError(t, err)
	secret, err := baggage.NewMember("secret", "hunter2")
	require.NoError(t, err)
	bag, err := baggage.New(tenant, secret)
	require.NoError(t, err)
	ctx := baggage.ContextWithBaggage(context.Background(), bag)

	t.Run("allow all", func(t *testing.T) {
		attrs := startSpan(t, ctx, NewBaggageSpanProcessor(nil))
		assert.Equal(t, "acme", attrs["tenant"].AsString())
		assert.Equal(t, "hunter2", attrs["secret"].AsString())
	})

	t.Run("filtered", func(t *testing.T) {
		attrs := startSpan(t, ctx, NewBaggageSpanProcessor(func(m baggage.Member) bool {
			return m.Key() != "secret"
		}))
		assert.Equal(t, "acme", attrs["tenant"].AsString())
		_, ok := attrs["secret"]
		assert.False(t, ok)
	})

	t.Run("no baggage", func(t *testing.T) {
		attrs := startSpan(t, context.Background(), NewBaggageSpanProcessor(nil))
		assert.Empty(t, attrs)
	})
}

func TestNavigationPathSpanProcessor(t *testing.T) {
	t.Run("with path", func(t *testing.T) {
		attrs := startSpan(t, context.Background(),
			NewNavigationPathSpanProcessor(fixedPath{"root", "_internal", "detail"}))
		assert.Equal(t, "detail", attrs["screen.name"].AsString())
		assert.Equal(t, "/root/detail", attrs["screen.path"].AsString())
	})

	t.Run("empty path", func(t *testing.T) {
		attrs := startSpan(t, context.Background(), NewNavigationPathSpanProcessor(fixedPath{}))
		_, ok := attrs["screen.name"]
		assert.False(t, ok)
		assert.Equal(t, "/", attrs["screen.path"].AsString())
	})
}

func TestDeviceSpanProcessor(t *testing.T) {
	t.Run("battery monitoring enabled", func(t *testing.T) {
		attrs := startSpan(t, context.Background(), NewDeviceSpanProcessor(DeviceInfoFunc(func() DeviceInfo {
			return DeviceInfo{
				Manufacturer:             "Apple",
				ModelName:                "iPhone",
				SystemName:               "iOS",
				SystemVersion:            "17.4",
				Orientation:              "portrait",
				BatteryMonitoringEnabled: true,
				BatteryLevel:             0.5,
				BatteryState:             "charging",
			}
		})))

		assert.Equal(t, "Apple", attrs["device.manufacturer"].AsString())
		assert.Equal(t, "iPhone", attrs["device.model.name"].AsString())
		assert.Equal(t, "iOS", attrs["device.systemName"].AsString())
		assert.Equal(t, "portrait", attrs["device.orientation"].AsString())
		assert.Equal(t, "0.5", attrs["device.batteryLevel"].AsString())
		assert.Equal(t, "charging", attrs["device.batteryState"].AsString())
		assert.True(t, attrs["device.isBatteryMonitoringEnabled"].AsBool())
		assert.False(t, attrs["device.isLowPowerModeEnabled"].AsBool())
	})

	t.Run("battery monitoring disabled", func(t *testing.T) {
		attrs := startSpan(t, context.Background(), NewDeviceSpanProcessor(DeviceInfoFunc(func() DeviceInfo {
			return DeviceInfo{BatteryLevel: 0.9, BatteryState: "full"}
		})))
		_, ok := attrs["device.batteryLevel"]
		assert.False(t, ok)
		_, ok = attrs["device.batteryState"]
		assert.False(t, ok)
	})

	t.Run("host defaults", func(t *testing.T) {
		attrs := startSpan(t, context.Background(), NewDeviceSpanProcessor(nil))
		assert.NotEmpty(t, attrs["device.systemName"].AsString())
	})
}

func TestNetworkStatusSpanProcessor(t *testing.T) {
	attrs := startSpan(t, context.Background(), NewNetworkStatusSpanProcessor(NetworkMonitorFunc(func() NetworkStatus {
		return NetworkStatus{ConnectionType: "cell", ConnectionSubtype: "LTE", CarrierName: "Carrier"}
	})))

	assert.Equal(t, "cell", attrs["network.connection.type"].AsString())
	assert.Equal(t, "LTE", attrs["network.connection.subtype"].AsString())
	assert.Equal(t, "Carrier", attrs["network.carrier.name"].AsString())
	_, ok := attrs["network.carrier.mcc"]
	assert.False(t, ok)
}
