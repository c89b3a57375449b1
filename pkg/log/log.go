// Copyright 2026 The Netqdisc Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log wraps zap behind a key-value logging API. Loggers take a
// message followed by alternating keys and values.
package log

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/netqdisc/netqdisc/pkg/private/serrors"
)

// Logger is the logging API exposed to the rest of the code base.
type Logger interface {
	New(ctx ...interface{}) Logger
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
}

// Config configures the process logger.
type Config struct {
	// Level is one of debug, info, error. Defaults to info.
	Level string
	// Format is human or json. Defaults to human.
	Format string
}

type logger struct {
	logger *zap.Logger
}

var root = newLogger(zap.NewNop())

func newLogger(z *zap.Logger) *logger {
	return &logger{logger: z}
}

// Setup initialises the root logger according to the config. It must be
// called before any logging happens; messages logged earlier go nowhere.
func Setup(cfg Config) error {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		var err error
		level, err = zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return serrors.Wrap("parsing log level", err, "level", cfg.Level)
		}
	}
	var zc zap.Config
	switch cfg.Format {
	case "", "human":
		zc = zap.NewDevelopmentConfig()
	case "json":
		zc = zap.NewProductionConfig()
	default:
		return serrors.New("unsupported log format", "format", cfg.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	z, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		return serrors.Wrap("creating logger", err)
	}
	root = newLogger(z)
	return nil
}

// Root returns the root logger.
func Root() Logger {
	return root
}

// New returns a logger with the given context attached.
func New(ctx ...interface{}) Logger {
	return root.New(ctx...)
}

// Debug logs at debug level on the root logger.
func Debug(msg string, ctx ...interface{}) {
	root.logger.Debug(msg, fields(ctx)...)
}

// Info logs at info level on the root logger.
func Info(msg string, ctx ...interface{}) {
	root.logger.Info(msg, fields(ctx)...)
}

// Error logs at error level on the root logger.
func Error(msg string, ctx ...interface{}) {
	root.logger.Error(msg, fields(ctx)...)
}

// HandlePanic recovers from a panic, logs it, and re-raises it. Defer it at
// the top of every goroutine.
func HandlePanic() {
	if msg := recover(); msg != nil {
		root.logger.Error("Panic", zap.Any("msg", msg), zap.Stack("stack"))
		_ = root.logger.Sync()
		panic(msg)
	}
}

// Flush writes out buffered log entries.
func Flush() {
	_ = root.logger.Sync()
}

func (l *logger) New(ctx ...interface{}) Logger {
	return newLogger(l.logger.With(fields(ctx)...))
}

func (l *logger) Debug(msg string, ctx ...interface{}) {
	l.logger.Debug(msg, fields(ctx)...)
}

func (l *logger) Info(msg string, ctx ...interface{}) {
	l.logger.Info(msg, fields(ctx)...)
}

func (l *logger) Error(msg string, ctx ...interface{}) {
	l.logger.Error(msg, fields(ctx)...)
}

func fields(ctx []interface{}) []zap.Field {
	fs := make([]zap.Field, 0, len(ctx)/2)
	for i := 0; i+1 < len(ctx); i += 2 {
		fs = append(fs, zap.Any(fmt.Sprint(ctx[i]), ctx[i+1]))
	}
	return fs
}
