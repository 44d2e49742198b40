package cfg

import (
	"otelmobile/pkg/logger"
)

// LogFields describes the options for debug output. API keys are masked.
func (o *Options) LogFields() []logger.Field {
	return []logger.Field{
		{Key: "service_name", Value: o.ServiceName},
		{Key: "sample_rate", Value: o.SampleRate},
		{Key: "traces_endpoint", Value: o.Traces.Endpoint},
		{Key: "traces_protocol", Value: string(o.Traces.Protocol)},
		{Key: "traces_api_key", Value: mask(o.Traces.APIKey)},
		{Key: "metrics_endpoint", Value: o.Metrics.Endpoint},
		{Key: "metrics_protocol", Value: string(o.Metrics.Protocol)},
		{Key: "logs_endpoint", Value: o.Logs.Endpoint},
		{Key: "logs_protocol", Value: string(o.Logs.Protocol)},
		{Key: "dataset", Value: o.Dataset},
		{Key: "propagators", Value: o.Propagators},
		{Key: "session_timeout", Value: o.Session.Timeout.String()},
		{Key: "session_store", Value: string(o.Session.Store)},
		{Key: "offline_caching", Value: o.OfflineCaching},
	}
}

func mask(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "****"
}
