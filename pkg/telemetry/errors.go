package telemetry

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"otelmobile/pkg/logger"

	otellog "go.opentelemetry.io/otel/log"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// LogError emits err as a log record with error.type and error.message.
// Caller attributes are added last and win on key collisions.
func (sdk *SDK) LogError(ctx context.Context, err error, attrs ...otellog.KeyValue) {
	if err == nil {
		return
	}
	kvs := append([]otellog.KeyValue{
		otellog.String(string(semconv.ErrorTypeKey), fmt.Sprintf("%T", err)),
		otellog.String("error.message", err.Error()),
	}, attrs...)
	sdk.emitError(ctx, otellog.SeverityError, "ERROR", kvs)
}

// RecoverPanic logs a panic in flight and panics again with the same value.
// It must be deferred directly:
//
//	defer sdk.RecoverPanic(ctx)
func (sdk *SDK) RecoverPanic(ctx context.Context) {
	r := recover()
	if r == nil {
		return
	}
	if sdk.opts.Instrumentation.Panics {
		sdk.logPanic(ctx, r, debug.Stack())
	}
	panic(r)
}

func (sdk *SDK) logPanic(ctx context.Context, r any, stack []byte) {
	message := fmt.Sprint(r)
	if err, ok := r.(error); ok {
		message = err.Error()
	}
	sdk.emitError(ctx, otellog.SeverityFatal, "FATAL", []otellog.KeyValue{
		otellog.String(string(semconv.ExceptionTypeKey), fmt.Sprintf("%T", r)),
		otellog.String(string(semconv.ExceptionMessageKey), message),
		otellog.String(string(semconv.ExceptionStacktraceKey), string(stack)),
	})
	if err := sdk.loggerProvider.ForceFlush(ctx); err != nil {
		sdk.log.Error("flush after panic failed", logger.Field{Key: "error", Value: err.Error()})
	}
}

func (sdk *SDK) emitError(ctx context.Context, severity otellog.Severity, text string, attrs []otellog.KeyValue) {
	var rec otellog.Record
	now := time.Now()
	rec.SetTimestamp(now)
	rec.SetObservedTimestamp(now)
	rec.SetSeverity(severity)
	rec.SetSeverityText(text)
	rec.AddAttributes(attrs...)
	sdk.errLogger.Emit(ctx, rec)
}
