package controlplane

import (
	"encoding/json"

	"github.com/opd-ai/voxroom"
	"github.com/opd-ai/voxroom/events"
	"github.com/opd-ai/voxroom/geometry"
)

// Command types accepted on the websocket.
const (
	TypeCreateRoom        = "create_room"
	TypeDestroyRoom       = "destroy_room"
	TypeAddParticipant    = "add_participant"
	TypeRemoveParticipant = "remove_participant"
	TypeSetState          = "set_state"
	TypeSetAllState       = "set_all_state"
	TypeGetState          = "get_state"
	TypeSetPosition       = "set_position"
	TypeSetSeat           = "set_seat"
	TypeSetLayout         = "set_layout"
	TypeGetLayouts        = "get_layouts"
	TypeSetName           = "set_name"
)

// Message types sent to clients.
const (
	TypeResult = "result"
	TypeEvent  = "event"
	TypeCustom = "custom"
	TypeHello  = "hello"
)

// Command is one client request. Only the fields its type needs are read.
type Command struct {
	Type          string `json:"type"`
	ID            string `json:"id,omitempty"`
	RoomID        int    `json:"room_id,omitempty"`
	ParticipantID int    `json:"participant_id,omitempty"`
	Name          string `json:"name,omitempty"`

	// Control is a control name such as "mixing_3d".
	Control string `json:"control,omitempty"`
	// Value is a JSON number or a string understood by control.ParseValue.
	Value json.RawMessage `json:"value,omitempty"`

	SeatID   int                `json:"seat_id,omitempty"`
	LayoutID int                `json:"layout_id,omitempty"`
	Position *geometry.Position `json:"position,omitempty"`
	Heading  *geometry.Heading  `json:"heading,omitempty"`

	InputSampleRate int    `json:"input_sample_rate,omitempty"`
	InputChannels   int    `json:"input_channels,omitempty"`
	Kind            string `json:"kind,omitempty"`
}

// Response answers one Command. Error is "ok" on success.
type Response struct {
	Type    string            `json:"type"`
	ID      string            `json:"id,omitempty"`
	OK      bool              `json:"ok"`
	Error   voxroom.ErrorCode `json:"error"`
	Detail  string            `json:"detail,omitempty"`
	Value   *int32            `json:"value,omitempty"`
	Layouts json.RawMessage   `json:"layouts,omitempty"`
}

// Notification is pushed to every connected client.
type Notification struct {
	Type     string        `json:"type"`
	ClientID string        `json:"client_id,omitempty"`
	Event    *events.Event `json:"event,omitempty"`
	RoomID   int           `json:"room_id,omitempty"`
	Message  string        `json:"message,omitempty"`
}
