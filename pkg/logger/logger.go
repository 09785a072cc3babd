package logger

import (
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger defines structured logging interface
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
	With(args ...any) Logger
}

// ZapLogger implements Logger on top of zap's sugared logger
type ZapLogger struct {
	logger *zap.SugaredLogger
}

// New creates a new structured logger with the specified level and format (json|console)
func New(level, format string) Logger {
	var cfg zap.Config
	if strings.EqualFold(format, "console") {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		z = zap.NewExample()
	}
	return &ZapLogger{logger: z.Sugar()}
}

// FromZap wraps an existing zap logger
func FromZap(z *zap.Logger) Logger {
	return &ZapLogger{logger: z.Sugar()}
}

// Info logs an informational message
func (l *ZapLogger) Info(msg string, args ...any) {
	l.logger.Infow(msg, args...)
}

// Error logs an error message
func (l *ZapLogger) Error(msg string, args ...any) {
	l.logger.Errorw(msg, args...)
}

// Warn logs a warning message
func (l *ZapLogger) Warn(msg string, args ...any) {
	l.logger.Warnw(msg, args...)
}

// Debug logs a debug message
func (l *ZapLogger) Debug(msg string, args ...any) {
	l.logger.Debugw(msg, args...)
}

// With returns a new logger with the specified attributes
func (l *ZapLogger) With(args ...any) Logger {
	return &ZapLogger{logger: l.logger.With(args...)}
}

// Sync flushes buffered log entries
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}

// Default returns a default logger instance
func Default() Logger {
	return New("info", "json")
}

// Nop returns a logger that discards everything
func Nop() Logger {
	return &ZapLogger{logger: zap.NewNop().Sugar()}
}

// OrNop returns l, or a no-op logger when l is nil
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}

const contextKey = "logger"

// Middleware stores a request-scoped logger (tagged with the request id) in the echo context
func Middleware(base Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = c.Request().Header.Get(echo.HeaderXRequestID)
			}
			c.Set(contextKey, base.With("request_id", requestID))
			return next(c)
		}
	}
}

// FromContext returns the request-scoped logger, falling back to fallback
func FromContext(c echo.Context, fallback Logger) Logger {
	if l, ok := c.Get(contextKey).(Logger); ok {
		return l
	}
	return OrNop(fallback)
}
