package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":       slog.LevelInfo,
		"debug":  slog.LevelDebug,
		"WARN":   slog.LevelWarn,
		"error":  slog.LevelError,
		"info+2": slog.LevelInfo + 2,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestSetupWithoutEndpointLogsText(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	shutdown, err := setup(context.Background(), config.TelemetryConfig{LogLevel: "warn", ServiceName: "mavshop"}, &buf)
	require.NoError(t, err)
	defer func() { assert.NoError(t, shutdown(context.Background())) }()

	slog.Info("hidden")
	slog.Warn("shown", "slug", "pokemon")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "slug=pokemon")
}

func TestSetupRejectsBadLevel(t *testing.T) {
	_, err := setup(context.Background(), config.TelemetryConfig{LogLevel: "chatty"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestFanoutWritesToEveryHandler(t *testing.T) {
	var a, b bytes.Buffer
	h := newFanout(slog.LevelInfo,
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	logger := slog.New(h).With("request_id", "r1").WithGroup("catalog")

	logger.Debug("dropped")
	logger.Info("page", "items", 3)
	logger.Error("failed", "slug", "tcg")

	assert.NotContains(t, a.String(), "dropped")
	assert.Contains(t, a.String(), "request_id=r1")
	assert.Contains(t, a.String(), "catalog.items=3")
	assert.NotContains(t, b.String(), `"page"`)
	assert.Contains(t, b.String(), `"catalog":{"slug":"tcg"}`)
}
