package logger

import (
	"fmt"
	"log/slog"
	"os"
)

// Logger is a small chainable wrapper around slog. Err/Error/ErrMsg both log
// and return an error so call sites can log and propagate in one statement.
type Logger struct {
	logger *slog.Logger
}

func init() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	slog.SetDefault(slog.New(handler))
}

func New(packageName string) Logger {
	return Logger{
		logger: slog.Default().With("package", packageName),
	}
}

func (l Logger) Function(functionName string) Logger {
	return Logger{logger: l.logger.With("function", functionName)}
}

func (l Logger) File(fileName string) Logger {
	return Logger{logger: l.logger.With("file", fileName)}
}

func (l Logger) With(args ...any) Logger {
	return Logger{logger: l.logger.With(args...)}
}

func (l Logger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

func (l Logger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

func (l Logger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

// Er logs an error without returning one. For paths that handle the error
// themselves but still want it on the record.
func (l Logger) Er(msg string, err error, args ...any) {
	l.logger.Error(msg, append([]any{"error", err}, args...)...)
}

// Err logs and returns msg wrapping err.
func (l Logger) Err(msg string, err error, args ...any) error {
	l.logger.Error(msg, append([]any{"error", err}, args...)...)
	return fmt.Errorf("%s: %w", msg, err)
}

// Error logs and returns a new error built from msg.
func (l Logger) Error(msg string, args ...any) error {
	l.logger.Error(msg, args...)
	return fmt.Errorf("%s", msg)
}

func (l Logger) ErrMsg(msg string) error {
	l.logger.Error(msg)
	return fmt.Errorf("%s", msg)
}
