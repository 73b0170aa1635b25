package app

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogLevel(t *testing.T) {
	require.Equal(t, slog.LevelInfo, LogLevel(nil))
	require.Equal(t, slog.LevelDebug, LogLevel(&Config{LogLevel: "debug"}))
	require.Equal(t, slog.LevelWarn, LogLevel(&Config{LogLevel: "warn"}))
	require.Equal(t, slog.LevelError, LogLevel(&Config{LogLevel: "error"}))
	require.Equal(t, slog.LevelInfo, LogLevel(&Config{LogLevel: "verbose"}))
}

func TestNewLoggerHonorsLevel(t *testing.T) {
	logger := NewLogger(&Config{LogFormat: "json", LogLevel: "warn"})
	require.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	require.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
}
