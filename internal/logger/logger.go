// Copyright 2026 The Kvfs Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger wraps log/slog with the five severities kvfs operations log
// at (TRACE, DEBUG, INFO, WARNING, ERROR) plus OFF, a text or JSON output
// format, and optional file rotation through lumberjack.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity levels. TRACE sits below slog's DEBUG; OFF sits above ERROR so
// that no record at any standard severity is ever emitted.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(12)
)

// severityName renders a Level as the upper-case name logged under the
// "severity" attribute, in place of slog's default level rendering.
func severityName(level slog.Level) string {
	switch {
	case level < LevelDebug:
		return "TRACE"
	case level < LevelInfo:
		return "DEBUG"
	case level < LevelWarn:
		return "INFO"
	case level < LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

// ParseLevel maps a configured severity name (case-insensitive) to a Level.
func ParseLevel(name string) slog.Level {
	switch strings.ToUpper(name) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARNING", "WARN":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelOff
	}
}

// Config selects the destination, format, severity threshold, and (when
// FilePath is set) rotation policy for the default logger.
type Config struct {
	FilePath        string
	Format          string // "text" or "json"
	Severity        string
	MaxFileSizeMB   int
	BackupFileCount int
	Compress        bool
}

type factory struct {
	levelVar *slog.LevelVar
	format   string
	file     *lumberjack.Logger
}

var (
	defaultFactory = &factory{levelVar: levelVarAt(LevelInfo), format: "json"}
	defaultLogger  = slog.New(defaultFactory.handler(os.Stderr))
)

func levelVarAt(l slog.Level) *slog.LevelVar {
	v := new(slog.LevelVar)
	v.Set(l)
	return v
}

func (f *factory) handler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: f.levelVar,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				level, _ := a.Value.Any().(slog.Level)
				return slog.String("severity", severityName(level))
			}
			return a
		},
	}
	if f.format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// Init reconfigures the default logger: format, severity threshold, and
// (when cfg.FilePath is non-empty) a lumberjack-rotated file destination in
// place of stderr.
func Init(cfg Config) error {
	format := cfg.Format
	if format == "" {
		format = "json"
	}
	defaultFactory.format = format
	defaultFactory.levelVar.Set(ParseLevel(cfg.Severity))

	var w io.Writer = os.Stderr
	if cfg.FilePath != "" {
		defaultFactory.file = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    orDefault(cfg.MaxFileSizeMB, 512),
			MaxBackups: cfg.BackupFileCount,
			Compress:   cfg.Compress,
		}
		w = defaultFactory.file
	}
	defaultLogger = slog.New(defaultFactory.handler(w))
	return nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// SetFormat switches the default logger's output format without touching
// its destination or severity threshold.
func SetFormat(format string) {
	if format == "" {
		format = "json"
	}
	defaultFactory.format = format
	w := io.Writer(os.Stderr)
	if defaultFactory.file != nil {
		w = defaultFactory.file
	}
	defaultLogger = slog.New(defaultFactory.handler(w))
}

func log(ctx context.Context, level slog.Level, format string, args ...any) {
	if !defaultLogger.Enabled(ctx, level) {
		return
	}
	defaultLogger.Log(ctx, level, sprintf(format, args...))
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

func Tracef(format string, args ...any) { log(context.Background(), LevelTrace, format, args...) }
func Debugf(format string, args ...any) { log(context.Background(), LevelDebug, format, args...) }
func Infof(format string, args ...any)  { log(context.Background(), LevelInfo, format, args...) }
func Warnf(format string, args ...any)  { log(context.Background(), LevelWarn, format, args...) }
func Errorf(format string, args ...any) { log(context.Background(), LevelError, format, args...) }
