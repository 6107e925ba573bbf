package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger creates a dual-output logger: text to stderr, JSON
// to logFile. It returns the logger and a cleanup function that
// closes the file. When the file cannot be opened the logger
// writes to stderr only.
func SetupLogger(
	logFile string, level slog.Level,
) (*slog.Logger, func() error) {
	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})

	if err := os.MkdirAll(filepath.Dir(logFile), 0o700); err != nil {
		logger := slog.New(stderrHandler)
		logger.Warn("cannot create log directory, using stderr only",
			"error", err, "file", logFile)
		return logger, func() error { return nil }
	}
	file, err := os.OpenFile(
		logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600,
	)
	if err != nil {
		logger := slog.New(stderrHandler)
		logger.Warn("cannot open log file, using stderr only",
			"error", err, "file", logFile)
		return logger, func() error { return nil }
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(slogmulti.Fanout(stderrHandler, fileHandler))
	return logger, file.Close
}

// SetupLoggerWithWriters creates the same fan-out logger over
// arbitrary writers, for tests.
func SetupLoggerWithWriters(
	stderr, file io.Writer, level slog.Level,
) *slog.Logger {
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler))
}
