// Package pixelslog builds the single zap logger the daemon and every
// package it calls into shares, so log lines from a rebuild, a lookup
// miss, or a coordination failure all carry the same structured fields.
package pixelslog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-style zap logger, switching to a
// human-readable console encoder when debug is true.
func New(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// Nop returns a no-op logger, for tests that don't care about log output.
func Nop() *zap.Logger {
	return zap.NewNop()
}
