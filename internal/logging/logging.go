// Package logging wires the process-wide structured logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	logFile   *os.File
	logDir    string
	isFileLog bool
)

// Options controls how Init configures the global logger.
type Options struct {
	// ToFile, when true, also appends to screensearch.log.YYYY-MM-DD
	// under GetLogDir(), dated when Init runs. The file is opened once
	// and is not switched to a new one when the date changes.
	ToFile bool
	// Pretty selects a human-readable console writer instead of JSON.
	// Typically true in dev builds, false in release builds.
	Pretty bool
	// Level overrides the default info level (e.g. from an env var).
	Level string
}

// Init configures the global zerolog logger per opts.
func Init(opts Options) error {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		if l, err := zerolog.ParseLevel(opts.Level); err == nil {
			level = l
		}
	}
	zerolog.SetGlobalLevel(level)

	var writers []io.Writer
	if opts.Pretty {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	} else {
		writers = append(writers, os.Stdout)
	}

	if opts.ToFile {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = "."
		}
		logDir = filepath.Join(homeDir, ".screensearch", "logs")
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		logPath := filepath.Join(logDir, fmt.Sprintf("screensearch.log.%s", time.Now().Format("2006-01-02")))
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		isFileLog = true
		writers = append(writers, f)
	}

	var out io.Writer
	if len(writers) == 1 {
		out = writers[0]
	} else {
		out = zerolog.MultiLevelWriter(writers...)
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	log.Info().Msg("screensearch session started")
	return nil
}

// Close flushes and closes the log file if one is open.
func Close() {
	if logFile != nil {
		log.Info().Msg("screensearch session ended")
		logFile.Close()
		logFile = nil
	}
}

// Discard silences all logging. Used by tests.
func Discard() {
	log.Logger = zerolog.New(io.Discard)
}

// GetLogDir returns the directory logs are written to, if file logging
// is enabled.
func GetLogDir() string { return logDir }

// IsFileLogging reports whether file logging is active.
func IsFileLogging() bool { return isFileLog }
