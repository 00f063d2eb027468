// Package outlog provides the zap-backed Logger implementation that
// outputworker workers are constructed with. It is never a process-wide
// global: callers build one per output and scope it with the output's
// name and plugin before handing it to outputworker.WithLogger.
package outlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the underlying zap encoder and level. JSON is meant
// for production log shipping, console for local development.
type Config struct {
	Encoding string // "json" or "console"
	Level    zapcore.Level
}

// DefaultConfig returns console encoding at info level.
func DefaultConfig() Config {
	return Config{Encoding: "console", Level: zapcore.InfoLevel}
}

// Logger adapts a *zap.SugaredLogger to outputworker.Logger.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New builds a Logger scoped with the given static fields, typically
// the output name and plugin name.
func New(cfg Config, keyvals ...interface{}) (*Logger, error) {
	zcfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(cfg.Level),
		Encoding:         cfg.Encoding,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	base, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{sugar: base.Sugar().With(keyvals...)}, nil
}

// NewNop returns a Logger that discards everything, for tests that
// need a concrete *Logger rather than outputworker's internal no-op.
func NewNop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// Info implements outputworker.Logger.
func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.sugar.Infow(msg, keyvals...)
}

// Error implements outputworker.Logger.
func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.sugar.Errorw(msg, keyvals...)
}

// With returns a derived Logger carrying additional static fields,
// e.g. per-output name and plugin once both are known.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(keyvals...)}
}

// Sync flushes any buffered log entries. Callers should defer it from
// main after constructing the root Logger.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
