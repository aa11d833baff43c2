// Package logging provides the structured logging helpers shared by the
// voxroom packages. Every component logs through a *logrus.Entry carrying a
// "component" field; a nil base entry falls back to the logrus standard
// logger so packages can be used on their own.
package logging

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// Component derives the entry a component logs through.
func Component(base *logrus.Entry, name string) *logrus.Entry {
	if base == nil {
		base = logrus.NewEntry(logrus.StandardLogger())
	}
	return base.WithField("component", name)
}

// Helper accumulates fields for one operation and logs them with a message.
type Helper struct {
	entry  *logrus.Entry
	fields logrus.Fields
}

// For starts a helper for the named function.
func For(entry *logrus.Entry, function string) *Helper {
	if entry == nil {
		entry = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Helper{
		entry:  entry,
		fields: logrus.Fields{"function": function},
	}
}

// WithCaller adds the file and line of the caller.
func (h *Helper) WithCaller() *Helper {
	if pc, file, line, ok := runtime.Caller(1); ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			name := fn.Name()
			if i := strings.LastIndex(name, "/"); i >= 0 {
				name = name[i+1:]
			}
			h.fields["caller"] = fmt.Sprintf("%s:%d", file, line)
			h.fields["caller_func"] = name
		}
	}
	return h
}

// WithField adds one field.
func (h *Helper) WithField(key string, value interface{}) *Helper {
	h.fields[key] = value
	return h
}

// WithFields adds several fields.
func (h *Helper) WithFields(fields logrus.Fields) *Helper {
	for k, v := range fields {
		h.fields[k] = v
	}
	return h
}

// WithError records err and the operation that produced it.
func (h *Helper) WithError(err error, operation string) *Helper {
	if err != nil {
		h.fields["error"] = err.Error()
	}
	h.fields["operation"] = operation
	return h
}

func (h *Helper) Debug(msg string) { h.entry.WithFields(h.fields).Debug(msg) }
func (h *Helper) Info(msg string)  { h.entry.WithFields(h.fields).Info(msg) }
func (h *Helper) Warn(msg string)  { h.entry.WithFields(h.fields).Warn(msg) }
func (h *Helper) Error(msg string) { h.entry.WithFields(h.fields).Error(msg) }

// SinkFunc receives a formatted log line and its level.
type SinkFunc func(level logrus.Level, message string)

// SinkHook forwards log entries to a SinkFunc. Fields are appended to the
// message as key=value pairs in sorted order.
type SinkHook struct {
	levels []logrus.Level
	sink   SinkFunc
}

// NewSinkHook returns a hook delivering every level to sink.
func NewSinkHook(sink SinkFunc) *SinkHook {
	return &SinkHook{levels: logrus.AllLevels, sink: sink}
}

// Levels implements logrus.Hook.
func (s *SinkHook) Levels() []logrus.Level {
	return s.levels
}

// Fire implements logrus.Hook.
func (s *SinkHook) Fire(e *logrus.Entry) error {
	if s.sink == nil {
		return nil
	}
	line, err := (&logrus.TextFormatter{
		DisableColors:    true,
		DisableTimestamp: true,
		DisableQuote:     true,
	}).Format(e)
	if err != nil {
		return err
	}
	s.sink(e.Level, strings.TrimRight(string(line), "\n"))
	return nil
}
