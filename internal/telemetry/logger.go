package telemetry

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

// Logger is the application event log. With a path it writes JSON lines to
// that file; without one it writes human-readable lines to stderr at warn
// level, which is only safe while no full-screen UI is running.
type Logger struct {
	*log.Logger
	closer io.Closer
}

type Options struct {
	Path      string
	Debug     bool
	SessionID string
}

func NewLogger(opts Options) (*Logger, error) {
	if opts.Path == "" {
		l := log.NewWithOptions(os.Stderr, log.Options{
			Prefix:          "djladder",
			Level:           log.WarnLevel,
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
		})
		if opts.Debug {
			l.SetLevel(log.DebugLevel)
		}
		return &Logger{Logger: withSession(l, opts.SessionID)}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	l := log.NewWithOptions(f, log.Options{
		Level:           log.InfoLevel,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339Nano,
		Formatter:       log.JSONFormatter,
	})
	if opts.Debug {
		l.SetLevel(log.DebugLevel)
	}
	return &Logger{Logger: withSession(l, opts.SessionID), closer: f}, nil
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: log.New(io.Discard)}
}

func withSession(l *log.Logger, sessionID string) *log.Logger {
	if sessionID == "" {
		return l
	}
	return l.With("session", sessionID)
}

func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
