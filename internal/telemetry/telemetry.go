// Package telemetry installs the process-wide logger and, when an OTLP
// endpoint is configured, OpenTelemetry trace and log exporters.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/config"
)

// ShutdownFunc flushes and stops whatever Setup started.
type ShutdownFunc func(context.Context) error

// Setup sets slog's default logger and the global tracer provider.
func Setup(ctx context.Context, cfg config.TelemetryConfig) (ShutdownFunc, error) {
	return setup(ctx, cfg, os.Stderr)
}

func setup(ctx context.Context, cfg config.TelemetryConfig, w io.Writer) (ShutdownFunc, error) {
	level, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	text := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	handlers := []slog.Handler{text}
	var closers []func(context.Context) error

	if cfg.LogContainer != "" {
		sink, err := NewBlobSink(ctx, BlobSinkConfig{
			AccountName: cfg.LogAccountName,
			AccountKey:  cfg.LogAccountKey,
			Container:   cfg.LogContainer,
			Level:       level,
		})
		if err != nil {
			return nil, fmt.Errorf("create log blob sink: %w", err)
		}
		handlers = append(handlers, sink)
		closers = append(closers, func(context.Context) error { return sink.Close() })
	}

	shutdown := func(ctx context.Context) error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c(ctx))
		}
		return errors.Join(errs...)
	}

	if cfg.OTLPEndpoint == "" {
		slog.SetDefault(slog.New(newFanout(level, handlers...)))
		return shutdown, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", cfg.ServiceName)))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("build otel resource: %w", err), shutdown(ctx))
	}

	traceExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create otlp trace exporter: %w", err), shutdown(ctx))
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter), sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	closers = append(closers, tp.Shutdown)

	logExporter, err := otlploghttp.New(ctx, otlploghttp.WithEndpointURL(cfg.OTLPEndpoint))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create otlp log exporter: %w", err), shutdown(ctx))
	}
	lp := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)), sdklog.WithResource(res))
	global.SetLoggerProvider(lp)
	closers = append(closers, lp.Shutdown)

	handlers = append(handlers, otelslog.NewHandler(cfg.ServiceName, otelslog.WithLoggerProvider(lp)))
	slog.SetDefault(slog.New(newFanout(level, handlers...)))
	slog.InfoContext(ctx, "exporting telemetry", "endpoint", cfg.OTLPEndpoint, "service", cfg.ServiceName)

	return shutdown, nil
}

// ParseLevel accepts slog level names such as "debug" or "warn+2".
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// fanout sends each record to every handler at or above its level.
type fanout struct {
	level    slog.Leveler
	handlers []slog.Handler
}

func newFanout(level slog.Leveler, handlers ...slog.Handler) *fanout {
	return &fanout{level: level, handlers: handlers}
}

func (f *fanout) Enabled(ctx context.Context, l slog.Level) bool {
	if l < f.level.Level() {
		return false
	}
	for _, h := range f.handlers {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return newFanout(f.level, next...)
}

func (f *fanout) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithGroup(name)
	}
	return newFanout(f.level, next...)
}
