package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger writes one JSON object per event: service, action, hostname plus caller fields.
type Logger struct {
	service string
	zl      zerolog.Logger
}

type Options struct {
	Level  string // debug | info | warn | error
	JSON   bool
	Output io.Writer
}

var (
	mu   sync.RWMutex
	base = zerolog.New(os.Stdout).With().Timestamp().Str("hostname", hostname()).Logger()
)

// Init configures the process-wide sink; loggers created afterwards pick it up.
func Init(opts Options) {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if !opts.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	mu.Lock()
	base = zerolog.New(out).With().Timestamp().Str("hostname", hostname()).Logger()
	mu.Unlock()
}

func New(service string) *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return &Logger{service: service, zl: base.With().Str("service", service).Logger()}
}

// Nop discards everything; handy in tests.
func Nop() *Logger { return &Logger{zl: zerolog.Nop()} }

func (l *Logger) log(ev *zerolog.Event, action string, fields map[string]any) {
	ev.Str("action", action).Fields(fields).Msg(action)
}

func (l *Logger) Info(action string, fields map[string]any)  { l.log(l.zl.Info(), action, fields) }
func (l *Logger) Debug(action string, fields map[string]any) { l.log(l.zl.Debug(), action, fields) }
func (l *Logger) Warn(action string, fields map[string]any)  { l.log(l.zl.Warn(), action, fields) }
func (l *Logger) Error(action string, err error, fields map[string]any) {
	l.log(l.zl.Error().Err(err), action, fields)
}

// With returns a child logger carrying extra fields on every event.
func (l *Logger) With(fields map[string]any) *Logger {
	return &Logger{service: l.service, zl: l.zl.With().Fields(fields).Logger()}
}

func hostname() string { h, _ := os.Hostname(); return h }
