package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/air-quality-etl/internal/config"
)

func TestNewLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	tests := []struct {
		level     string
		format    string
		debug     bool
		info      bool
		wantLevel slog.Level
	}{
		{"debug", "text", true, true, slog.LevelDebug},
		{"info", "json", false, true, slog.LevelInfo},
		{"warn", "json", false, false, slog.LevelWarn},
		{"verbose", "json", false, true, slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			logger := NewLogger(&config.Config{LogLevel: tt.level, LogFormat: tt.format})

			ctx := context.Background()
			assert.Equal(t, tt.debug, logger.Enabled(ctx, slog.LevelDebug))
			assert.Equal(t, tt.info, logger.Enabled(ctx, slog.LevelInfo))
			assert.True(t, logger.Enabled(ctx, tt.wantLevel))
			assert.Same(t, logger, slog.Default(), "logger becomes the slog default")
		})
	}
}
