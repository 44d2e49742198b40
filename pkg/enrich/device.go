package enrich

import (
	"context"
	"os"
	"runtime"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// DeviceInfo is a snapshot of the device the application runs on. Empty
// strings are not emitted.
type DeviceInfo struct {
	Manufacturer          string
	ModelName             string
	Name                  string
	SystemName            string
	SystemVersion         string
	Model                 string
	LocalizedModel        string
	UserInterfaceIdiom    string
	Orientation           string
	MultitaskingSupported bool
	LowPowerModeEnabled   bool

	BatteryMonitoringEnabled bool
	BatteryLevel             float64
	BatteryState             string
}

type DeviceInfoProvider interface {
	DeviceInfo() DeviceInfo
}

// DeviceInfoFunc adapts a function to DeviceInfoProvider.
type DeviceInfoFunc func() DeviceInfo

func (f DeviceInfoFunc) DeviceInfo() DeviceInfo { return f() }

// HostDeviceInfo describes the machine the process runs on.
func HostDeviceInfo() DeviceInfo {
	name, _ := os.Hostname()
	return DeviceInfo{
		ModelName:             runtime.GOARCH,
		Name:                  name,
		SystemName:            runtime.GOOS,
		SystemVersion:         runtime.Version(),
		Model:                 runtime.GOARCH,
		MultitaskingSupported: true,
	}
}

// DeviceSpanProcessor stamps device.* attributes on every span. The provider
// is queried on each span so battery and orientation stay current.
type DeviceSpanProcessor struct {
	startOnly
	provider DeviceInfoProvider
}

var _ sdktrace.SpanProcessor = (*DeviceSpanProcessor)(nil)

func NewDeviceSpanProcessor(provider DeviceInfoProvider) *DeviceSpanProcessor {
	if provider == nil {
		provider = DeviceInfoFunc(HostDeviceInfo)
	}
	return &DeviceSpanProcessor{provider: provider}
}

func (p *DeviceSpanProcessor) OnStart(_ context.Context, s sdktrace.ReadWriteSpan) {
	s.SetAttributes(deviceAttributes(p.provider.DeviceInfo())...)
}

func deviceAttributes(d DeviceInfo) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 14)
	str := func(key, v string) {
		if v != "" {
			attrs = append(attrs, attribute.String(key, v))
		}
	}

	str("device.manufacturer", d.Manufacturer)
	str("device.model.name", d.ModelName)
	str("device.name", d.Name)
	str("device.systemName", d.SystemName)
	str("device.systemVersion", d.SystemVersion)
	str("device.model", d.Model)
	str("device.localizedModel", d.LocalizedModel)
	str("device.userInterfaceIdiom", d.UserInterfaceIdiom)
	str("device.orientation", d.Orientation)
	attrs = append(attrs,
		attribute.Bool("device.isMultitaskingSupported", d.MultitaskingSupported),
		attribute.Bool("device.isBatteryMonitoringEnabled", d.BatteryMonitoringEnabled),
	)
	if d.BatteryMonitoringEnabled {
		attrs = append(attrs, attribute.String("device.batteryLevel", strconv.FormatFloat(d.BatteryLevel, 'g', -1, 64)))
		str("device.batteryState", d.BatteryState)
	}
	attrs = append(attrs, attribute.Bool("device.isLowPowerModeEnabled", d.LowPowerModeEnabled))
	return attrs
}
