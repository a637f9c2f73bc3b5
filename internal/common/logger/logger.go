package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

var level = new(slog.LevelVar)

// SetDebug toggles DEBUG output for every logger.
func SetDebug(on bool) {
	if on {
		level.Set(slog.LevelDebug)
		return
	}
	level.Set(slog.LevelInfo)
}

type Logger struct {
	service string
	l       *slog.Logger
}

// New writes JSON lines to stdout.
func New(service string) *Logger { return NewWithWriter(service, os.Stdout) }

func NewWithWriter(service string, w io.Writer) *Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				a.Key = "timestamp"
				a.Value = slog.StringValue(a.Value.Time().UTC().Format("2006-01-02T15:04:05.000000000Z07:00"))
			case slog.MessageKey:
				a.Key = "message"
			}
			return a
		},
	})
	return &Logger{
		service: service,
		l:       slog.New(h).With("service", service, "hostname", hostname()),
	}
}

// With returns a logger for a sub-component of the same service.
func (l *Logger) With(service string) *Logger {
	return &Logger{service: service, l: l.l.With("component", service)}
}

func (l *Logger) log(lvl slog.Level, action string, fields map[string]any, err error) {
	attrs := make([]any, 0, 2*len(fields)+4)
	attrs = append(attrs, "action", action)
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}
	if err != nil {
		attrs = append(attrs, slog.Group("error", "msg", err.Error(), "type", errType(err)))
	}
	l.l.Log(context.Background(), lvl, action, attrs...)
}

func (l *Logger) Info(action string, fields map[string]any)  { l.log(slog.LevelInfo, action, fields, nil) }
func (l *Logger) Debug(action string, fields map[string]any) { l.log(slog.LevelDebug, action, fields, nil) }
func (l *Logger) Warn(action string, fields map[string]any)  { l.log(slog.LevelWarn, action, fields, nil) }
func (l *Logger) Error(action string, err error, fields map[string]any) {
	l.log(slog.LevelError, action, fields, err)
}

// Nop discards everything; handy for tests and optional wiring.
func Nop() *Logger { return NewWithWriter("nop", io.Discard) }

func errType(err error) string { return fmt.Sprintf("%T", err) }

var (
	hostOnce sync.Once
	host     string
)

func hostname() string {
	hostOnce.Do(func() { host, _ = os.Hostname() })
	return host
}
