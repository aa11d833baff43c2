package controlplane

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/voxroom"
	"github.com/opd-ai/voxroom/control"
	"github.com/opd-ai/voxroom/geometry"
)

// Dispatcher runs Commands against a library. It has no transport of its
// own; Server feeds it from websocket connections.
type Dispatcher struct {
	lib *voxroom.Library
	log *logrus.Entry
}

// NewDispatcher creates a Dispatcher for lib.
func NewDispatcher(lib *voxroom.Library, log *logrus.Entry) *Dispatcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{lib: lib, log: log.WithField("component", "dispatcher")}
}

// Dispatch executes cmd and reports the outcome.
func (d *Dispatcher) Dispatch(cmd Command) Response {
	resp := Response{Type: TypeResult, ID: cmd.ID}
	value, layouts, err := d.run(cmd)
	if err != nil {
		resp.Error = voxroom.CodeOf(err)
		resp.Detail = err.Error()
		d.log.WithFields(logrus.Fields{
			"function":       "Dispatch",
			"command":        cmd.Type,
			"room_id":        cmd.RoomID,
			"participant_id": cmd.ParticipantID,
			"error":          err.Error(),
		}).Debug("Command failed")
		return resp
	}
	resp.OK = true
	resp.Value = value
	resp.Layouts = layouts
	return resp
}

// ErrUnknownCommand is reported for an unsupported command type.
var ErrUnknownCommand = fmt.Errorf("unknown command: %w", voxroom.ErrInvalidValue)

func (d *Dispatcher) run(cmd Command) (*int32, json.RawMessage, error) {
	lib := d.lib
	switch cmd.Type {
	case TypeCreateRoom:
		return nil, nil, lib.CreateRoom(cmd.RoomID)

	case TypeDestroyRoom:
		return nil, nil, lib.DestroyRoom(cmd.RoomID)

	case TypeAddParticipant:
		kind := voxroom.Regular
		if cmd.Kind != "" {
			k, err := voxroom.ParseParticipantKind(cmd.Kind)
			if err != nil {
				return nil, nil, err
			}
			kind = k
		}
		channels := cmd.InputChannels
		if channels == 0 {
			channels = 1
		}
		return nil, nil, lib.AddParticipant(cmd.RoomID, cmd.ParticipantID, cmd.Name, voxroom.ParticipantConfig{
			InputSampleRate: cmd.InputSampleRate,
			InputChannels:   channels,
			Kind:            kind,
		})

	case TypeRemoveParticipant:
		return nil, nil, lib.RemoveParticipant(cmd.RoomID, cmd.ParticipantID)

	case TypeSetState, TypeSetAllState:
		c, err := control.Parse(cmd.Control)
		if err != nil {
			return nil, nil, err
		}
		v, err := parseValue(c, cmd.Value)
		if err != nil {
			return nil, nil, err
		}
		if cmd.Type == TypeSetAllState {
			return nil, nil, lib.SetAllParticipantsState(cmd.RoomID, c, v)
		}
		return nil, nil, lib.SetParticipantState(cmd.RoomID, cmd.ParticipantID, c, v)

	case TypeGetState:
		c, err := control.Parse(cmd.Control)
		if err != nil {
			return nil, nil, err
		}
		v, err := lib.ParticipantState(cmd.RoomID, cmd.ParticipantID, c)
		if err != nil {
			return nil, nil, err
		}
		return &v, nil, nil

	case TypeSetPosition:
		var pos geometry.Position
		var head geometry.Heading
		if cmd.Position != nil {
			pos = *cmd.Position
		}
		if cmd.Heading != nil {
			head = *cmd.Heading
		}
		return nil, nil, lib.SetParticipantPosition(cmd.RoomID, cmd.ParticipantID, pos, head)

	case TypeSetSeat:
		return nil, nil, lib.SetParticipantSeat(cmd.RoomID, cmd.ParticipantID, cmd.SeatID)

	case TypeSetLayout:
		return nil, nil, lib.SetRoomLayout(cmd.RoomID, cmd.LayoutID)

	case TypeGetLayouts:
		s, err := lib.LayoutsJSON()
		if err != nil {
			return nil, nil, err
		}
		return nil, json.RawMessage(s), nil

	case TypeSetName:
		return nil, nil, lib.SetParticipantName(cmd.RoomID, cmd.ParticipantID, cmd.Name)
	}
	return nil, nil, fmt.Errorf("%q: %w", cmd.Type, ErrUnknownCommand)
}

// parseValue accepts a JSON number, boolean or string.
func parseValue(c control.Control, raw json.RawMessage) (int32, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("%s: missing value: %w", c, control.ErrInvalidValue)
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, fmt.Errorf("%s: %w", c, control.ErrInvalidValue)
		}
	}
	return control.ParseValue(c, text)
}
