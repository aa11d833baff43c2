package controlplane

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/voxroom"
	"github.com/opd-ai/voxroom/control"
	"github.com/opd-ai/voxroom/geometry"
)

func quietEntry() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func newTestLibrary(t *testing.T) *voxroom.Library {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	lib, err := voxroom.Initialize(voxroom.DefaultConfig(), voxroom.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = lib.Destroy() })
	return lib
}

func TestDispatchCommands(t *testing.T) {
	lib := newTestLibrary(t)
	d := NewDispatcher(lib, quietEntry())

	tests := []struct {
		name      string
		cmd       Command
		expectErr voxroom.ErrorCode
	}{
		{name: "create room", cmd: Command{Type: TypeCreateRoom, RoomID: 1}},
		{name: "duplicate room", cmd: Command{Type: TypeCreateRoom, RoomID: 1}, expectErr: voxroom.CodeDuplicateRoomID},
		{name: "add participant", cmd: Command{Type: TypeAddParticipant, RoomID: 1, ParticipantID: 7, Name: "ana", InputSampleRate: 48000}},
		{name: "add listener", cmd: Command{Type: TypeAddParticipant, RoomID: 1, ParticipantID: 8, InputSampleRate: 16000, Kind: "listener_only"}},
		{name: "bad kind", cmd: Command{Type: TypeAddParticipant, RoomID: 1, ParticipantID: 9, InputSampleRate: 16000, Kind: "ghost"}, expectErr: voxroom.CodeInvalidParticipantType},
		{name: "bad rate", cmd: Command{Type: TypeAddParticipant, RoomID: 1, ParticipantID: 9, InputSampleRate: 1234}, expectErr: voxroom.CodeInvalidSampleRate},
		{name: "set numeric state", cmd: Command{Type: TypeSetState, RoomID: 1, ParticipantID: 7, Control: "master_gain", Value: json.RawMessage(`40`)}},
		{name: "set boolean state", cmd: Command{Type: TypeSetState, RoomID: 1, ParticipantID: 7, Control: "mixing_3d", Value: json.RawMessage(`true`)}},
		{name: "set named state", cmd: Command{Type: TypeSetState, RoomID: 1, ParticipantID: 7, Control: "device", Value: json.RawMessage(`"speaker"`)}},
		{name: "out of range", cmd: Command{Type: TypeSetState, RoomID: 1, ParticipantID: 7, Control: "master_gain", Value: json.RawMessage(`400`)}, expectErr: voxroom.CodeInvalidValue},
		{name: "missing value", cmd: Command{Type: TypeSetState, RoomID: 1, ParticipantID: 7, Control: "mute"}, expectErr: voxroom.CodeInvalidValue},
		{name: "unknown control", cmd: Command{Type: TypeSetState, RoomID: 1, ParticipantID: 7, Control: "volume", Value: json.RawMessage(`1`)}, expectErr: voxroom.CodeInvalidControl},
		{name: "set all", cmd: Command{Type: TypeSetAllState, RoomID: 1, Control: "mixing_3d_reverb", Value: json.RawMessage(`"off"`)}},
		{name: "set position", cmd: Command{Type: TypeSetPosition, RoomID: 1, ParticipantID: 7, Position: &geometry.Position{X: 50}, Heading: &geometry.Heading{Azimuth: 90}}},
		{name: "bad heading", cmd: Command{Type: TypeSetPosition, RoomID: 1, ParticipantID: 7, Heading: &geometry.Heading{Azimuth: 200}}, expectErr: voxroom.CodeInvalidHeading},
		{name: "seat in open space", cmd: Command{Type: TypeSetSeat, RoomID: 1, ParticipantID: 7, SeatID: 1}, expectErr: voxroom.CodeInvalidOperationForLayout},
		{name: "set layout", cmd: Command{Type: TypeSetLayout, RoomID: 1, LayoutID: 2}},
		{name: "set seat", cmd: Command{Type: TypeSetSeat, RoomID: 1, ParticipantID: 7, SeatID: 5}},
		{name: "unknown layout", cmd: Command{Type: TypeSetLayout, RoomID: 1, LayoutID: 42}, expectErr: voxroom.CodeInvalidValue},
		{name: "set name", cmd: Command{Type: TypeSetName, RoomID: 1, ParticipantID: 8, Name: "bo"}},
		{name: "remove participant", cmd: Command{Type: TypeRemoveParticipant, RoomID: 1, ParticipantID: 8}},
		{name: "remove again", cmd: Command{Type: TypeRemoveParticipant, RoomID: 1, ParticipantID: 8}, expectErr: voxroom.CodeInvalidParticipantID},
		{name: "unknown command", cmd: Command{Type: "reboot"}, expectErr: voxroom.CodeInvalidValue},
		{name: "destroy room", cmd: Command{Type: TypeDestroyRoom, RoomID: 1}},
		{name: "destroy missing room", cmd: Command{Type: TypeDestroyRoom, RoomID: 1}, expectErr: voxroom.CodeInvalidRoomID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cmd.ID = tt.name
			resp := d.Dispatch(tt.cmd)
			assert.Equal(t, TypeResult, resp.Type)
			assert.Equal(t, tt.name, resp.ID)
			if tt.expectErr != voxroom.CodeOK {
				assert.False(t, resp.OK)
				assert.Equal(t, tt.expectErr, resp.Error, resp.Detail)
				return
			}
			assert.True(t, resp.OK, resp.Detail)
			assert.Equal(t, voxroom.CodeOK, resp.Error)
		})
	}
}

func TestDispatchGetters(t *testing.T) {
	lib := newTestLibrary(t)
	d := NewDispatcher(lib, quietEntry())

	require.True(t, d.Dispatch(Command{Type: TypeCreateRoom, RoomID: 3}).OK)
	require.True(t, d.Dispatch(Command{Type: TypeAddParticipant, RoomID: 3, ParticipantID: 1, InputSampleRate: 48000}).OK)
	require.True(t, d.Dispatch(Command{Type: TypeSetState, RoomID: 3, ParticipantID: 1, Control: "half_span_angle", Value: json.RawMessage(`"30"`)}).OK)

	resp := d.Dispatch(Command{Type: TypeGetState, RoomID: 3, ParticipantID: 1, Control: "half_span_angle"})
	require.True(t, resp.OK)
	require.NotNil(t, resp.Value)
	assert.EqualValues(t, 30, *resp.Value)

	got, err := lib.ParticipantState(3, 1, control.HalfSpanAngle)
	require.NoError(t, err)
	assert.EqualValues(t, 30, got)

	resp = d.Dispatch(Command{Type: TypeGetLayouts})
	require.True(t, resp.OK)
	assert.Contains(t, string(resp.Layouts), "theater")

	data, err := json.Marshal(d.Dispatch(Command{Type: TypeGetState, RoomID: 3, ParticipantID: 2, Control: "mute"}))
	require.NoError(t, err)
	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, "result", wire["type"])
	assert.Equal(t, false, wire["ok"])
	assert.Equal(t, "invalid_participant_id", wire["error"])
	assert.NotContains(t, wire, "value")
}
