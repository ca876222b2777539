package bootstrap

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/appkernel/config"
)

// NewLogger builds the bootstrap logger from the snapshot. The snapshot
// has already validated level and format.
func NewLogger(s config.Snapshot, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(s.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if s.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
