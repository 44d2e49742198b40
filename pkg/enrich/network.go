package enrich

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NetworkStatus is the connectivity reported by the platform monitor.
type NetworkStatus struct {
	ConnectionType    string // wifi, cell, wired, unavailable
	ConnectionSubtype string // e.g. LTE
	CarrierName       string
	CarrierICC        string
	CarrierMCC        string
	CarrierMNC        string
}

// NetworkMonitor reports the current network status. Implementations must be
// safe for concurrent use.
type NetworkMonitor interface {
	NetworkStatus() NetworkStatus
}

type NetworkMonitorFunc func() NetworkStatus

func (f NetworkMonitorFunc) NetworkStatus() NetworkStatus { return f() }

type NetworkStatusSpanProcessor struct {
	startOnly
	monitor NetworkMonitor
}

var _ sdktrace.SpanProcessor = (*NetworkStatusSpanProcessor)(nil)

func NewNetworkStatusSpanProcessor(monitor NetworkMonitor) *NetworkStatusSpanProcessor {
	return &NetworkStatusSpanProcessor{monitor: monitor}
}

func (p *NetworkStatusSpanProcessor) OnStart(_ context.Context, s sdktrace.ReadWriteSpan) {
	st := p.monitor.NetworkStatus()
	for _, kv := range []struct{ key, value string }{
		{"network.connection.type", st.ConnectionType},
		{"network.connection.subtype", st.ConnectionSubtype},
		{"network.carrier.name", st.CarrierName},
		{"network.carrier.icc", st.CarrierICC},
		{"network.carrier.mcc", st.CarrierMCC},
		{"network.carrier.mnc", st.CarrierMNC},
	} {
		if kv.value != "" {
			s.SetAttributes(attribute.String(kv.key, kv.value))
		}
	}
}
