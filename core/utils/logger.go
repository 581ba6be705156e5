package utils

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog with the printf-style surface the rest of the code uses.
// A nil Logger is safe to call.
type Logger struct {
	inner *slog.Logger
}

func NewLogger() *Logger {
	level := slog.LevelInfo
	if strings.EqualFold(os.Getenv("REQDESK_LOG_LEVEL"), "debug") {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	})
	return &Logger{inner: slog.New(h)}
}

func (l *Logger) Printf(format string, v ...any) {
	if l != nil && l.inner != nil {
		l.inner.Info(fmt.Sprintf(format, v...))
	}
}

func (l *Logger) Debugf(format string, v ...any) {
	if l != nil && l.inner != nil {
		l.inner.Debug(fmt.Sprintf(format, v...))
	}
}

func (l *Logger) Errorf(format string, v ...any) {
	if l != nil && l.inner != nil {
		l.inner.Error(fmt.Sprintf(format, v...))
	}
}

func (l *Logger) Fatalf(format string, v ...any) {
	if l != nil && l.inner != nil {
		l.inner.Error(fmt.Sprintf("FATAL: "+format, v...))
	}
	os.Exit(1)
}
