// Package logger provides the structured logging interface used by every
// chat component, backed by zerolog. Components receive a Logger at
// construction instead of reaching for a global, so tests can inject the
// no-op implementation and binaries can pick stderr or file output.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Field is a key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value any
}

// Logger is the structured logging interface. Implementations write entries
// at the usual levels and support deriving a child logger with fixed fields.
type Logger interface {
	// Debug logs a message at debug level with optional structured fields.
	Debug(msg string, fields ...Field)

	// Info logs a message at info level with optional structured fields.
	Info(msg string, fields ...Field)

	// Warn logs a message at warn level with optional structured fields.
	Warn(msg string, fields ...Field)

	// Error logs a message at error level with optional structured fields.
	Error(msg string, fields ...Field)

	// With returns a new Logger that includes the given fields in every
	// subsequent entry. The receiver is unchanged.
	With(fields ...Field) Logger

	// Close releases any resources held by the logger, such as an open log
	// file. Safe to call multiple times.
	Close() error
}

type zerologLogger struct {
	logger zerolog.Logger
	file   *os.File
}

// New builds a Logger writing to w, tagged with the component name and
// filtered to the given minimum level.
//
// Parameters:
//   - w: Destination for log output (e.g. os.Stderr)
//   - component: Name added as a field to every entry
//   - level: Minimum level to emit
//
// Returns:
//   - A zerolog-backed Logger
func New(w io.Writer, component string, level zerolog.Level) Logger {
	return &zerologLogger{
		logger: zerolog.New(w).With().Str("component", component).Timestamp().Logger().Level(level),
	}
}

// NewFile builds a Logger that writes to both w and the file at path,
// creating or appending as needed. Close releases the file handle.
//
// Parameters:
//   - w: Primary destination (e.g. os.Stderr)
//   - path: Log file to append to
//   - component: Name added as a field to every entry
//   - level: Minimum level to emit
//
// Returns:
//   - The Logger, or an error if the file cannot be opened
func NewFile(w io.Writer, path, component string, level zerolog.Level) (Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	multi := io.MultiWriter(w, f)
	return &zerologLogger{
		logger: zerolog.New(multi).With().Str("component", component).Timestamp().Logger().Level(level),
		file:   f,
	}, nil
}

// Debug implements Logger.
func (z *zerologLogger) Debug(msg string, fields ...Field) {
	z.logger.Debug().Fields(toMap(fields)).Msg(msg)
}

// Info implements Logger.
func (z *zerologLogger) Info(msg string, fields ...Field) {
	z.logger.Info().Fields(toMap(fields)).Msg(msg)
}

// Warn implements Logger.
func (z *zerologLogger) Warn(msg string, fields ...Field) {
	z.logger.Warn().Fields(toMap(fields)).Msg(msg)
}

// Error implements Logger.
func (z *zerologLogger) Error(msg string, fields ...Field) {
	z.logger.Error().Fields(toMap(fields)).Msg(msg)
}

// With implements Logger.
func (z *zerologLogger) With(fields ...Field) Logger {
	return &zerologLogger{
		logger: z.logger.With().Fields(toMap(fields)).Logger(),
	}
}

// Close implements Logger.
func (z *zerologLogger) Close() error {
	if z.file != nil {
		err := z.file.Close()
		z.file = nil
		return err
	}

	return nil
}

// toMap converts a slice of Field into a map for zerolog.
func toMap(fields []Field) map[string]any {
	if len(fields) == 0 {
		return nil
	}

	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}

	return m
}
