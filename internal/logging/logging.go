// Package logging provides the structured audit log shared by all actions.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log = zap.NewNop()

// Init configures the global audit logger. A non-empty path appends JSON
// entries to that file; an empty path logs to stderr. Call once at startup.
func Init(path string) error {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	sink := zapcore.Lock(os.Stderr)
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		sink = zapcore.Lock(f)
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, zap.InfoLevel)
	log = zap.New(core)
	return nil
}

// Sync flushes buffered log entries. Safe to call on every exit path.
func Sync() {
	_ = log.Sync()
}

// Info logs an audit entry with structured fields.
func Info(msg string, fields ...zap.Field) { log.Info(msg, fields...) }

// Warn logs a tolerated failure with structured fields.
func Warn(msg string, fields ...zap.Field) { log.Warn(msg, fields...) }

// Error logs a fatal failure with structured fields.
func Error(msg string, fields ...zap.Field) { log.Error(msg, fields...) }
