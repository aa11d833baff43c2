// Package events defines the notifications an engine emits when rooms,
// participants, layouts and controls change.
//
// Events are delivered synchronously on the goroutine that made the change,
// after the change is applied. A Listener must not call back into the engine
// that notified it for the same room.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/opd-ai/voxroom/control"
	"github.com/opd-ai/voxroom/geometry"
)

// Kind identifies the change an Event reports.
type Kind int

const (
	CreateRoom Kind = iota + 1
	DestroyRoom
	AddParticipant
	RemoveParticipant
	SetParticipantSeat
	SetParticipantPosition
	SetParticipantState
	SetAllParticipantsState
	SetRoomLayout
	SetName
)

var kindNames = map[Kind]string{
	CreateRoom:              "create_room",
	DestroyRoom:             "destroy_room",
	AddParticipant:          "add_participant",
	RemoveParticipant:       "remove_participant",
	SetParticipantSeat:      "set_participant_seat",
	SetParticipantPosition:  "set_participant_position",
	SetParticipantState:     "set_participant_state",
	SetAllParticipantsState: "set_all_participants_state",
	SetRoomLayout:           "set_room_layout",
	SetName:                 "set_name",
}

// String returns the wire name of k.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event is one tagged notification. Only the fields relevant to Kind are set,
// and only those are encoded.
type Event struct {
	Kind          Kind
	RoomID        int
	ParticipantID int
	Name          string
	Control       control.Control
	Value         int32
	SeatID        int
	LayoutID      int
	Position      *geometry.Position
	Heading       *geometry.Heading

	// InputSampleRate, InputChannels and ParticipantKind describe a newly
	// added participant.
	InputSampleRate int
	InputChannels   int
	ParticipantKind string
}

// wireEvent is the JSON shape of an Event. Pointer fields are set for every
// kind that defines them, so zero ids and values are still sent.
type wireEvent struct {
	Kind            Kind               `json:"event"`
	RoomID          int                `json:"room_id"`
	ParticipantID   *int               `json:"participant_id,omitempty"`
	Name            *string            `json:"name,omitempty"`
	Control         *control.Control   `json:"control,omitempty"`
	Value           *int32             `json:"value,omitempty"`
	SeatID          *int               `json:"seat_id,omitempty"`
	LayoutID        *int               `json:"layout_id,omitempty"`
	Position        *geometry.Position `json:"position,omitempty"`
	Heading         *geometry.Heading  `json:"heading,omitempty"`
	InputSampleRate *int               `json:"input_sample_rate,omitempty"`
	InputChannels   *int               `json:"input_channels,omitempty"`
	ParticipantKind *string            `json:"participant_kind,omitempty"`
}

// MarshalJSON encodes the fields that belong to e.Kind, zero or not.
func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		Kind:     e.Kind,
		RoomID:   e.RoomID,
		Position: e.Position,
		Heading:  e.Heading,
	}
	switch e.Kind {
	case CreateRoom, SetRoomLayout:
		w.LayoutID = &e.LayoutID
	case AddParticipant:
		w.ParticipantID = &e.ParticipantID
		w.Name = &e.Name
		w.SeatID = &e.SeatID
		w.InputSampleRate = &e.InputSampleRate
		w.InputChannels = &e.InputChannels
		w.ParticipantKind = &e.ParticipantKind
	case RemoveParticipant, SetParticipantPosition:
		w.ParticipantID = &e.ParticipantID
	case SetParticipantSeat:
		w.ParticipantID = &e.ParticipantID
		w.SeatID = &e.SeatID
	case SetParticipantState:
		w.ParticipantID = &e.ParticipantID
		w.Control = &e.Control
		w.Value = &e.Value
	case SetAllParticipantsState:
		w.Control = &e.Control
		w.Value = &e.Value
	case SetName:
		w.ParticipantID = &e.ParticipantID
		w.Name = &e.Name
	}
	return json.Marshal(w)
}

// ControlName returns the name of the control an event carries, or "" when
// the event has none.
func (e Event) ControlName() string {
	if !e.Control.Valid() {
		return ""
	}
	return e.Control.String()
}

// Listener receives engine events.
type Listener interface {
	HandleEvent(Event)
}

// Func adapts a function to the Listener interface.
type Func func(Event)

// HandleEvent implements Listener.
func (f Func) HandleEvent(e Event) { f(e) }

// Multi fans every event out to each listener in order.
type Multi []Listener

// HandleEvent implements Listener.
func (m Multi) HandleEvent(e Event) {
	for _, l := range m {
		if l != nil {
			l.HandleEvent(e)
		}
	}
}

// Recorder keeps every event it receives. It is intended for tests and
// diagnostics; it is not safe for concurrent use.
type Recorder struct {
	Events []Event
}

// HandleEvent implements Listener.
func (r *Recorder) HandleEvent(e Event) { r.Events = append(r.Events, e) }

// Kinds returns the kinds of the recorded events in order.
func (r *Recorder) Kinds() []Kind {
	kinds := make([]Kind, len(r.Events))
	for i, e := range r.Events {
		kinds[i] = e.Kind
	}
	return kinds
}

// Reset drops the recorded events.
func (r *Recorder) Reset() { r.Events = r.Events[:0] }
