package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("Should return logger from context when present", func(t *testing.T) {
		expectedLogger := NewLogger(TestConfig())
		ctx := ContextWithLogger(t.Context(), expectedLogger)

		actualLogger := FromContext(ctx)

		require.NotNil(t, actualLogger)
		assert.Equal(t, expectedLogger, actualLogger)
	})

	t.Run("Should return default logger when no logger in context", func(t *testing.T) {
		logger := FromContext(t.Context())

		require.NotNil(t, logger)
		logger.Info("test message from default logger")
	})

	t.Run("Should return default logger when wrong type in context", func(t *testing.T) {
		ctx := context.WithValue(t.Context(), LoggerCtxKey, "not a logger")

		logger := FromContext(ctx)

		require.NotNil(t, logger)
	})

	t.Run("Should return default logger when nil logger in context", func(t *testing.T) {
		ctx := context.WithValue(t.Context(), LoggerCtxKey, (Logger)(nil))

		logger := FromContext(ctx)

		require.NotNil(t, logger)
	})

	t.Run("Should return default logger for nil context", func(t *testing.T) {
		logger := FromContext(nil) //nolint:staticcheck // exercising the nil guard

		require.NotNil(t, logger)
	})
}

func TestSetupLogger(t *testing.T) {
	t.Run("Should map known level names", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error"} {
			require.NotNil(t, SetupLogger(level, false))
		}
	})

	t.Run("Should default unknown levels to info", func(t *testing.T) {
		require.NotNil(t, SetupLogger("loud", true))
	})
}

func TestWith(t *testing.T) {
	t.Run("Should return a derived logger", func(t *testing.T) {
		base := NewLogger(TestConfig())
		derived := base.With("component", "test")

		require.NotNil(t, derived)
		assert.NotEqual(t, base, derived)
	})
}
