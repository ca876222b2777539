package bundles

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/appkernel/domain/bundle"
	"github.com/artpar/appkernel/ports"
)

// ServiceLogger is the application zerolog.Logger.
const ServiceLogger = "logger"

// Monolog is MonologBundle: the application logger, configured separately
// from the kernel's bootstrap logger.
//
//	monolog:
//	  level: warning
//	  format: json
//	  output: '%kernel.project_dir%/var/log/app.log'   # or stdout, stderr
type Monolog struct {
	base
	Logger zerolog.Logger
	file   *os.File
}

// NewMonolog creates MonologBundle.
func NewMonolog(deps Deps) ports.Bundle {
	return &Monolog{base: newBase(bundle.Monolog, deps)}
}

// Boot builds the application logger.
func (b *Monolog) Boot(_ context.Context, c ports.Services) error {
	defaultLevel, defaultFormat := "info", "json"
	if b.deps.Debug {
		defaultLevel, defaultFormat = "debug", "console"
	}

	s := newSettings("monolog", c.Extension("monolog"))
	level := s.String("level", defaultLevel)
	format := s.String("format", defaultFormat)
	output := s.String("output", "stderr")
	if err := s.Err(); err != nil {
		return err
	}

	var w io.Writer
	switch output {
	case "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		p := projectPath(b.deps.ProjectDir, output)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		b.file = f
		w = f
	}

	logger, err := NewLogger(level, format, w)
	if err != nil {
		b.closeFile()
		return fmt.Errorf("monolog: %w", err)
	}
	b.Logger = logger.With().Str("app_env", b.deps.Env).Logger()

	c.Set(ServiceLogger, b.Logger)
	return nil
}

// Shutdown closes the log file, if any.
func (b *Monolog) Shutdown(context.Context) error {
	return b.closeFile()
}

func (b *Monolog) closeFile() error {
	if b.file == nil {
		return nil
	}
	err := b.file.Close()
	b.file = nil
	return err
}

// NewLogger builds a zerolog logger. "warning" and "critical" are accepted
// as aliases of warn and fatal.
func NewLogger(level, format string, w io.Writer) (zerolog.Logger, error) {
	switch level {
	case "warning":
		level = "warn"
	case "critical", "alert", "emergency":
		level = "fatal"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q", level)
	}

	switch format {
	case "json":
	case "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("log format must be 'json' or 'console', got %q", format)
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}
