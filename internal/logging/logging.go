package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log file modes.
const (
	FileModeTruncate = "truncate"
	FileModeAppend   = "append"
	FileModeRotate   = "rotate"
)

// Config describes logger runtime configuration.
type Config struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	TimeFormat  string `mapstructure:"time_format"`
	Caller      bool   `mapstructure:"caller"`
	PrettyPrint bool   `mapstructure:"pretty"`
	// Output is "stdout" or "stderr".
	Output string `mapstructure:"output"`
	// File mirrors every line into a log file when set.
	File       string `mapstructure:"file"`
	FileMode   string `mapstructure:"file_mode"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// NewLogger constructs a zerolog logger from config. The returned closer
// releases the log file and is never nil.
func NewLogger(cfg Config) (zerolog.Logger, io.Closer, error) {
	out := outputStream(cfg.Output)
	if cfg.File == "" {
		return NewLoggerTo(cfg, out), nopCloser{}, nil
	}

	file, err := OpenFile(cfg)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}
	return NewLoggerTo(cfg, io.MultiWriter(out, file)), file, nil
}

// NewLoggerTo is NewLogger with an explicit destination.
func NewLoggerTo(cfg Config, out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level)); err == nil && cfg.Level != "" {
		level = parsed
	}

	logger := zerolog.New(logWriter(cfg, out)).Level(level)
	builder := logger.With().Timestamp()
	if cfg.Caller {
		builder = builder.Caller()
	}

	return builder.Logger()
}

// OpenFile opens cfg.File according to cfg.FileMode. Truncate, the default,
// starts every process with an empty file.
func OpenFile(cfg Config) (io.WriteCloser, error) {
	if dir := filepath.Dir(cfg.File); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}

	switch strings.ToLower(cfg.FileMode) {
	case "", FileModeTruncate:
		return openLogFile(cfg.File, os.O_TRUNC)
	case FileModeAppend:
		return openLogFile(cfg.File, os.O_APPEND)
	case FileModeRotate:
		return &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}, nil
	default:
		return nil, fmt.Errorf("unknown log file mode %q", cfg.FileMode)
	}
}

func openLogFile(path string, flag int) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

func outputStream(name string) io.Writer {
	if strings.EqualFold(name, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

func logWriter(cfg Config, out io.Writer) io.Writer {
	if cfg.PrettyPrint || strings.EqualFold(cfg.Format, "console") {
		return zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: zerolog.TimeFieldFormat,
			NoColor:    cfg.File != "",
		}
	}
	return out
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
