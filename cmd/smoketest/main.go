package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"otelmobile/cfg"
	"otelmobile/internal/app"
	"otelmobile/pkg/logger"
	"otelmobile/pkg/navigation"
	"otelmobile/pkg/telemetry"

	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
)

func main() {
	opts, err := cfg.Load()
	if err != nil {
		log.Fatal(err)
	}
	zlog := logger.NewZeroLog(opts.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sdk, err := telemetry.Configure(ctx, opts, telemetry.WithLogger(zlog))
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sdk.Shutdown(shutdownCtx); err != nil {
			zlog.Error("telemetry shutdown", logger.Field{Key: "error", Value: err.Error()})
		}
	}()
	defer sdk.RecoverPanic(ctx)

	addr := os.Getenv("HONEYCOMB_DEBUG_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := app.NewServer(sdk, addr, zlog)
	go func() {
		if err := srv.Run(); err != nil {
			zlog.Error("debug server", logger.Field{Key: "error", Value: err.Error()})
			stop()
		}
	}()

	simulate(ctx, sdk)
	zlog.Info("smoke test emitted", logger.Field{Key: "session.id", Value: sdk.SessionID()})

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("debug server shutdown", logger.Field{Key: "error", Value: err.Error()})
	}
}

// simulate walks a small screen flow and records one span and one error.
func simulate(ctx context.Context, sdk *telemetry.SDK) {
	nav := sdk.Navigation()
	nav.HandleLifecycle(ctx, navigation.BecameActive)
	nav.Report(ctx, navigation.Report{Path: []string{"home"}})
	nav.Report(ctx, navigation.Report{Path: []string{"home", "settings"}, Reason: "tap"})

	_, span := sdk.Tracer("smoketest").Start(ctx, "smoketest.work")
	span.SetAttributes(attribute.String("smoketest.step", "work"))
	span.End()

	sdk.LogError(ctx, errors.New("smoke test error"), otellog.String("smoketest.step", "error"))

	if err := sdk.ForceFlush(ctx); err != nil {
		log.Printf("flush: %v", err)
	}
}
