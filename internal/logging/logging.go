// Package logging configures the global zerolog logger
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the level and sinks of the global logger
type Options struct {
	Level      string
	File       string // optional rotating log file
	Production bool   // JSON to stderr instead of the console writer
}

// Setup installs the global logger. The returned closer flushes the log
// file, if any, and is safe to call when no file is configured.
func Setup(opts Options) io.Closer {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(ParseLevel(opts.Level))

	var console io.Writer = os.Stderr
	if !opts.Production {
		console = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	if opts.File == "" {
		log.Logger = zerolog.New(console).With().Timestamp().Logger()
		return nopCloser{}
	}

	if dir := filepath.Dir(opts.File); dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}
	file := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    15, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, file)).With().Timestamp().Logger()
	return file
}

// ParseLevel maps a level name to a zerolog level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return l
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
