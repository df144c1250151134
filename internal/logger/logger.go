package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New builds the application logger and installs it as the global zerolog
// logger. Development gets a console writer, everything else JSON lines.
func New(level, env string) zerolog.Logger {
	return newWithWriter(level, env, os.Stdout)
}

func newWithWriter(level, env string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339

	out := w
	if env == "development" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	l := zerolog.New(out).Level(lvl).With().Timestamp().Str("service", "gigbid").Logger()
	log.Logger = l
	return l
}
