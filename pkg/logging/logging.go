// Package logging builds the process logger: human readable text on stderr
// and, optionally, JSON lines in a size-rotated file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/adomirror/adomirror/pkg/config"
)

// Logger bundles the slog logger with the level variable that controls it,
// so a config reload can change verbosity without rebuilding handlers.
type Logger struct {
	*slog.Logger
	Level *slog.LevelVar

	closer io.Closer
}

// New creates a Logger from cfg. Callers should Close it on shutdown to
// flush the rotating file.
func New(cfg config.LogConfig) (*Logger, error) {
	return newWithWriter(cfg, os.Stderr)
}

func newWithWriter(cfg config.LogConfig, stderr io.Writer) (*Logger, error) {
	level := new(slog.LevelVar)
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	level.Set(lvl)

	opts := &slog.HandlerOptions{Level: level}
	stderrHandler := slog.NewTextHandler(stderr, opts)

	if cfg.File == "" {
		return &Logger{Logger: slog.New(stderrHandler), Level: level}, nil
	}

	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	}
	fileHandler := slog.NewJSONHandler(file, opts)

	return &Logger{
		Logger: slog.New(slogmulti.Fanout(stderrHandler, fileHandler)),
		Level:  level,
		closer: file,
	}, nil
}

// SetLevel applies a textual level, leaving the current one in place when
// the text is not a known level.
func (l *Logger) SetLevel(text string) error {
	lvl, err := ParseLevel(text)
	if err != nil {
		return err
	}
	l.Level.Set(lvl)
	return nil
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// ParseLevel accepts debug, info, warn/warning and error (case-insensitive).
// Empty text means info.
func ParseLevel(text string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", text)
}
