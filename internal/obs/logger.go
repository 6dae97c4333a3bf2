package obs

import (
	"log"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the logging hook used by the pool, the client and the sender.
type Logger interface {
	Logf(level Level, format string, args ...interface{})
}

// NopLogger discards all logs.
type NopLogger struct{}

func (NopLogger) Logf(level Level, format string, args ...interface{}) {}

// StdLogger adapts the standard library logger.
type StdLogger struct {
	L    *log.Logger
	Min  Level
	Pref string // e.g. "netpool: "
}

func (s StdLogger) Logf(level Level, format string, args ...interface{}) {
	if s.L == nil || level < s.Min {
		return
	}
	s.L.Printf("[%s] %s"+format, append([]interface{}{level.String(), s.Pref}, args...)...)
}

// With returns a logger that prefixes every line with pref.
func With(l Logger, pref string) Logger {
	if l == nil {
		return NopLogger{}
	}
	if s, ok := l.(StdLogger); ok {
		s.Pref += pref
		return s
	}
	return prefixed{l, pref}
}

type prefixed struct {
	Logger
	pref string
}

func (p prefixed) Logf(level Level, format string, args ...interface{}) {
	p.Logger.Logf(level, p.pref+format, args...)
}

// Default logs warnings and errors to log.Default().
func Default() Logger {
	return StdLogger{L: log.Default(), Min: Warn}
}
