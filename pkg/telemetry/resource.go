package telemetry

import (
	"context"
	"errors"
	"sort"

	"otelmobile/cfg"
	"otelmobile/pkg/logger"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
)

func newResource(ctx context.Context, opts *cfg.Options, log logger.Logger) (*resource.Resource, error) {
	keys := make([]string, 0, len(opts.ResourceAttributes))
	for k := range opts.ResourceAttributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, opts.ResourceAttributes[k]))
	}

	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithOSType(),
		resource.WithProcessRuntimeVersion(),
		resource.WithAttributes(hostAppInfo()...),
		resource.WithAttributes(attrs...),
	)
	if errors.Is(err, resource.ErrPartialResource) {
		log.Warn("partial resource", logger.Field{Key: "error", Value: err.Error()})
		return res, nil
	}
	return res, err
}
