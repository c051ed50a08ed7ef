package logging

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Unknown levels fall back to info.
func New(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// RequestLogger logs one line per completed request.
func RequestLogger(logger *zap.Logger) fiber.Handler {
	logger = OrNop(logger)
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status_code", status),
			zap.Duration("duration", time.Since(start)),
		}
		if status >= fiber.StatusInternalServerError {
			logger.Error("completed HTTP request", append(fields, zap.Error(err))...)
		} else {
			logger.Info("completed HTTP request", fields...)
		}
		return err
	}
}

// PanicHandler is plugged into fiber's recover middleware.
func PanicHandler(logger *zap.Logger) func(c *fiber.Ctx, e interface{}) {
	logger = OrNop(logger)
	return func(c *fiber.Ctx, e interface{}) {
		logger.Error("panic recovered",
			zap.Any("error", e),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
		)
	}
}
