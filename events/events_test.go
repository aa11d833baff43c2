package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/voxroom/control"
	"github.com/opd-ai/voxroom/geometry"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{CreateRoom, "create_room"},
		{DestroyRoom, "destroy_room"},
		{AddParticipant, "add_participant"},
		{RemoveParticipant, "remove_participant"},
		{SetParticipantSeat, "set_participant_seat"},
		{SetParticipantPosition, "set_participant_position"},
		{SetParticipantState, "set_participant_state"},
		{SetAllParticipantsState, "set_all_participants_state"},
		{SetRoomLayout, "set_room_layout"},
		{SetName, "set_name"},
		{Kind(0), "event(0)"},
		{Kind(42), "event(42)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}
}

func TestEventJSON(t *testing.T) {
	e := Event{
		Kind:          SetParticipantPosition,
		RoomID:        3,
		ParticipantID: 7,
		Position:      &geometry.Position{X: 10, Y: 0, Z: -20},
		Heading:       &geometry.Heading{Azimuth: 90},
	}
	data, err := json.Marshal(e)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "set_participant_position", got["event"])
	assert.EqualValues(t, 3, got["room_id"])
	assert.EqualValues(t, 7, got["participant_id"])
	assert.Contains(t, got, "position")
	assert.NotContains(t, got, "layout_id")
}

func TestEventJSONKeepsZeroValues(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		want    map[string]any
		missing []string
	}{
		{
			name:  "unmute participant zero",
			event: Event{Kind: SetParticipantState, RoomID: 1, ParticipantID: 0, Control: control.Mute, Value: 0},
			want:  map[string]any{"event": "set_participant_state", "room_id": 1.0, "participant_id": 0.0, "control": "mute", "value": 0.0},
		},
		{
			name:    "disable for everyone",
			event:   Event{Kind: SetAllParticipantsState, RoomID: 2, Control: control.ANC, Value: 0},
			want:    map[string]any{"event": "set_all_participants_state", "room_id": 2.0, "control": "anc", "value": 0.0},
			missing: []string{"participant_id"},
		},
		{
			name:    "cleared name",
			event:   Event{Kind: SetName, RoomID: 1, ParticipantID: 0},
			want:    map[string]any{"event": "set_name", "room_id": 1.0, "participant_id": 0.0, "name": ""},
			missing: []string{"control", "value"},
		},
		{
			name:  "seat zero",
			event: Event{Kind: SetParticipantSeat, RoomID: 1, ParticipantID: 4, SeatID: 0},
			want:  map[string]any{"event": "set_participant_seat", "room_id": 1.0, "participant_id": 4.0, "seat_id": 0.0},
		},
		{
			name:    "room only",
			event:   Event{Kind: DestroyRoom, RoomID: 0},
			want:    map[string]any{"event": "destroy_room", "room_id": 0.0},
			missing: []string{"participant_id", "control", "value", "layout_id"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			require.NoError(t, err)

			var got map[string]any
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, tt.want, got)
			for _, key := range tt.missing {
				assert.NotContains(t, got, key)
			}
		})
	}
}

func TestControlName(t *testing.T) {
	assert.Equal(t, "mute", Event{Control: control.Mute}.ControlName())
	assert.Empty(t, Event{}.ControlName())
}

func TestMultiAndFunc(t *testing.T) {
	var rec Recorder
	var count int
	m := Multi{&rec, nil, Func(func(Event) { count++ })}

	m.HandleEvent(Event{Kind: CreateRoom, RoomID: 1})
	m.HandleEvent(Event{Kind: DestroyRoom, RoomID: 1})

	assert.Equal(t, 2, count)
	assert.Equal(t, []Kind{CreateRoom, DestroyRoom}, rec.Kinds())

	rec.Reset()
	assert.Empty(t, rec.Events)
}
