// Package logging provides structured logging using Zap and the OpenTelemetry bridge
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"margin_maker/internal/core"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is the instrumentation scope used for bridged log records
const ServiceName = "margin_maker"

// Output formats
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options configures New
type Options struct {
	Level  string    // DEBUG, INFO, WARN, ERROR or FATAL; empty means INFO
	Format string    // console or json; empty means console
	Output io.Writer // nil means stdout
}

// ZapLogger implements core.ILogger on top of zap.Logger
type ZapLogger struct {
	logger *zap.Logger
}

// New builds a logger that writes to opts.Output and mirrors every record to
// the global OTel logger provider.
func New(opts Options) (*ZapLogger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(opts.Format) {
	case "", FormatConsole:
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case FormatJSON:
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("invalid log format: %s", opts.Format)
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	local := zapcore.NewCore(enc, zapcore.AddSync(out), level)
	bridged := otelzap.NewCore(ServiceName, otelzap.WithLoggerProvider(global.GetLoggerProvider()))

	return &ZapLogger{
		logger: zap.New(zapcore.NewTee(local, bridged), zap.AddCaller(), zap.AddCallerSkip(1)),
	}, nil
}

// NewZapLogger creates a console logger on stdout at the given level.
func NewZapLogger(level string) (*ZapLogger, error) {
	return New(Options{Level: level})
}

// NewNopLogger discards everything
func NewNopLogger() *ZapLogger {
	return &ZapLogger{logger: zap.NewNop()}
}

// ParseLevel accepts the level names used in config files, case-insensitively.
func ParseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	l, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil || l == zapcore.DPanicLevel || l == zapcore.PanicLevel {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
	return l, nil
}

// toFields turns alternating key/value pairs into zap fields. Errors keep
// their type so encoders render them under the given key; a dangling key is
// logged with a "!MISSING" value instead of being dropped.
func toFields(kv []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		if i+1 >= len(kv) {
			fields = append(fields, zap.String(key, "!MISSING"))
			break
		}
		if err, ok := kv[i+1].(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, kv[i+1]))
	}
	return fields
}

func (l *ZapLogger) Debug(msg string, fields ...interface{}) {
	l.logger.Debug(msg, toFields(fields)...)
}

func (l *ZapLogger) Info(msg string, fields ...interface{}) {
	l.logger.Info(msg, toFields(fields)...)
}

func (l *ZapLogger) Warn(msg string, fields ...interface{}) {
	l.logger.Warn(msg, toFields(fields)...)
}

func (l *ZapLogger) Error(msg string, fields ...interface{}) {
	l.logger.Error(msg, toFields(fields)...)
}

func (l *ZapLogger) Fatal(msg string, fields ...interface{}) {
	l.logger.Fatal(msg, toFields(fields)...)
}

func (l *ZapLogger) WithField(key string, value interface{}) core.ILogger {
	return &ZapLogger{logger: l.logger.With(toFields([]interface{}{key, value})...)}
}

func (l *ZapLogger) WithFields(fields map[string]interface{}) core.ILogger {
	kv := make([]interface{}, 0, 2*len(fields))
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return &ZapLogger{logger: l.logger.With(toFields(kv)...)}
}

// Sync flushes any buffered log entries
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}
