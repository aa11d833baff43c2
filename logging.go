package voxroom

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/voxroom/logging"
)

// LogLevel is the severity of an engine log message.
type LogLevel int

const (
	LogVerbose LogLevel = iota + 1
	LogDebug
	LogInfo
	LogWarning
	LogError
)

// String returns the level name.
func (l LogLevel) String() string {
	switch l {
	case LogVerbose:
		return "verbose"
	case LogDebug:
		return "debug"
	case LogInfo:
		return "info"
	case LogWarning:
		return "warning"
	case LogError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

func (l LogLevel) logrus() logrus.Level {
	switch l {
	case LogVerbose:
		return logrus.TraceLevel
	case LogDebug:
		return logrus.DebugLevel
	case LogInfo:
		return logrus.InfoLevel
	case LogError:
		return logrus.ErrorLevel
	default:
		return logrus.WarnLevel
	}
}

func levelFromLogrus(l logrus.Level) LogLevel {
	switch l {
	case logrus.TraceLevel:
		return LogVerbose
	case logrus.DebugLevel:
		return LogDebug
	case logrus.InfoLevel:
		return LogInfo
	case logrus.WarnLevel:
		return LogWarning
	default:
		return LogError
	}
}

// LogSink receives every log message the library emits at or above the
// active level.
type LogSink interface {
	Handle(level LogLevel, message string)
}

// LogSinkFunc adapts a function to LogSink.
type LogSinkFunc func(level LogLevel, message string)

// Handle implements LogSink.
func (f LogSinkFunc) Handle(level LogLevel, message string) { f(level, message) }

// logControl switches a library's logger on and off without losing the
// configured level.
type logControl struct {
	mu      sync.Mutex
	logger  *logrus.Logger
	level   LogLevel
	enabled bool
}

func newLogControl(logger *logrus.Logger, sink LogSink, level LogLevel) *logControl {
	if sink != nil {
		logger.AddHook(logging.NewSinkHook(func(l logrus.Level, msg string) {
			sink.Handle(levelFromLogrus(l), msg)
		}))
	}
	lc := &logControl{logger: logger, level: level, enabled: true}
	lc.apply()
	return lc
}

// apply must run with mu held or before the control is shared.
func (lc *logControl) apply() {
	if lc.enabled {
		lc.logger.SetLevel(lc.level.logrus())
		return
	}
	lc.logger.SetLevel(logrus.PanicLevel)
}

func (lc *logControl) setEnabled(on bool) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.enabled = on
	lc.apply()
}

func (lc *logControl) setLevel(level LogLevel) error {
	if level < LogVerbose || level > LogError {
		return fmt.Errorf("log level %d: %w", int(level), ErrInvalidValue)
	}
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.level = level
	lc.apply()
	return nil
}

// EnableLogging turns the library's logging on or off. The level set with
// SetLogLevel is kept while logging is off.
func (l *Library) EnableLogging(on bool) error {
	if l == nil || l.logs == nil {
		return ErrNotInitialized
	}
	l.logs.setEnabled(on)
	return nil
}

// SetLogLevel sets the lowest level that is logged. The default is
// LogWarning.
func (l *Library) SetLogLevel(level LogLevel) error {
	if l == nil || l.logs == nil {
		return ErrNotInitialized
	}
	return l.logs.setLevel(level)
}
