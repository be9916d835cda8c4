// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

// Package logging wraps zap behind a small, leveled, key-value call
// surface (Info/Warn/Error/Debug) rather than exposing zap's full API to
// callers.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the call surface used throughout the sync and query packages.
type Logger struct {
	z *zap.SugaredLogger
}

// New builds a Logger. verbose raises the level to debug, mirroring the
// `verbose` config option.
func New(verbose bool) *Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	z, err := cfg.Build()
	if err != nil {
		// Fall back to a no-op logger rather than panicking on a logging
		// misconfiguration; the sync engine must not fail to start because
		// of this.
		z = zap.NewNop()
	}
	return &Logger{z: z.Sugar()}
}

// Nop returns a Logger that discards everything, for tests.
func Nop() *Logger { return &Logger{z: zap.NewNop().Sugar()} }

func (l *Logger) Debug(msg string, kv ...any) { l.z.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...any)  { l.z.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.z.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...any) { l.z.Errorw(msg, kv...) }

// With returns a child Logger with the given key-values attached to every
// subsequent call, mirroring the "[prefix]" convention seen throughout
// snapshotsync.go's log.Info(fmt.Sprintf("[%s] ...", logPrefix)) call sites,
// but as structured fields instead of a formatted prefix string.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{z: l.z.With(kv...)}
}

func (l *Logger) Sync() error { return l.z.Sync() }
