package logging

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() (*logrus.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := logrus.New()
	l.SetOutput(buf)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.JSONFormatter{})
	return l, buf
}

func TestComponentAddsField(t *testing.T) {
	l, buf := newTestLogger()
	Component(logrus.NewEntry(l), "mixer").Info("ready")
	assert.Contains(t, buf.String(), `"component":"mixer"`)

	assert.NotNil(t, Component(nil, "x"))
}

func TestHelperFields(t *testing.T) {
	l, buf := newTestLogger()
	For(logrus.NewEntry(l), "Room.Add").
		WithField("room_id", 7).
		WithFields(logrus.Fields{"participant_id": 3}).
		WithError(errors.New("boom"), "add").
		Error("failed")

	out := buf.String()
	assert.Contains(t, out, `"function":"Room.Add"`)
	assert.Contains(t, out, `"room_id":7`)
	assert.Contains(t, out, `"participant_id":3`)
	assert.Contains(t, out, `"error":"boom"`)
}

func TestHelperWithCaller(t *testing.T) {
	l, buf := newTestLogger()
	For(logrus.NewEntry(l), "Load").WithCaller().Error("failed")

	out := buf.String()
	assert.Contains(t, out, `logging_test.go:`)
	assert.Contains(t, out, `"caller_func":"logging.TestHelperWithCaller"`)
}

func TestSinkHook(t *testing.T) {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.DebugLevel)

	var got []string
	var levels []logrus.Level
	l.AddHook(NewSinkHook(func(level logrus.Level, msg string) {
		levels = append(levels, level)
		got = append(got, msg)
	}))

	l.WithField("room_id", 1).Warn("clipping")
	l.Debug("tick")

	require.Len(t, got, 2)
	assert.Equal(t, logrus.WarnLevel, levels[0])
	assert.Contains(t, got[0], "clipping")
	assert.Contains(t, got[0], "room_id=1")
	assert.NotContains(t, got[0], "\n")
}
