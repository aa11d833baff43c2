// Package control defines the per-participant audio controls of a voxroom
// conference: their identifiers, value domains, defaults and the atomic table
// that stores them.
package control

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Control identifies one audio setting of a participant.
type Control int

// Audio controls. Values start at 1 so the zero value is never a valid control.
const (
	// StereoBypass skips the effect chain and 3D rendering and mixes the
	// participant's original channels flat.
	StereoBypass Control = iota + 1
	// Mute removes the participant from every other listener's mix.
	Mute
	// ANC enables noise cancellation on the participant's input.
	ANC
	// AGC enables automatic gain control on the participant's input.
	AGC
	// AutoEQ enables automatic equalization on the participant's input.
	AutoEQ
	// Mixing3D enables spatial rendering of the participant's own mix.
	Mixing3D
	// Mixing3DAttenuation is the distance attenuation in dB per meter.
	Mixing3DAttenuation
	// Mixing3DMaxDistance is the distance in cm beyond which attenuation stops growing.
	Mixing3DMaxDistance
	// Mixing3DReverb enables the room reverb in the participant's mix.
	Mixing3DReverb
	// Device selects headphone or speaker rendering.
	Device
	// HalfSpanAngle is the speaker pan half-span in degrees.
	HalfSpanAngle
	// MasterGain scales the participant's output mix, in percent.
	MasterGain
	// WhisperRoom is the whisper room id, 0 being the main room.
	WhisperRoom
	// SidebarRoom is the sidebar room id, 0 being the main room.
	SidebarRoom
)

// Count is the number of defined controls.
const Count = int(SidebarRoom)

// Output device values for the Device control.
const (
	DeviceHeadphone int32 = 1
	DeviceSpeaker   int32 = 2
)

// Domain is the inclusive value range and default of a control.
type Domain struct {
	Min     int32
	Max     int32
	Default int32
}

// Contains reports whether v lies within the domain.
func (d Domain) Contains(v int32) bool {
	return v >= d.Min && v <= d.Max
}

var domains = [Count + 1]Domain{
	StereoBypass:        {0, 1, 0},
	Mute:                {0, 1, 0},
	ANC:                 {0, 1, 0},
	AGC:                 {0, 1, 0},
	AutoEQ:              {0, 1, 0},
	Mixing3D:            {0, 1, 0},
	Mixing3DAttenuation: {0, 40, 6},
	Mixing3DMaxDistance: {0, math.MaxInt32, 300},
	Mixing3DReverb:      {0, 1, 1},
	Device:              {DeviceHeadphone, DeviceSpeaker, DeviceHeadphone},
	HalfSpanAngle:       {1, 90, 15},
	MasterGain:          {0, 100, 100},
	WhisperRoom:         {0, 100, 0},
	SidebarRoom:         {0, 100, 0},
}

var names = [Count + 1]string{
	StereoBypass:        "stereo_bypass",
	Mute:                "mute",
	ANC:                 "anc",
	AGC:                 "agc",
	AutoEQ:              "auto_eq",
	Mixing3D:            "mixing_3d",
	Mixing3DAttenuation: "mixing_3d_attenuation",
	Mixing3DMaxDistance: "mixing_3d_max_distance",
	Mixing3DReverb:      "mixing_3d_reverb",
	Device:              "device",
	HalfSpanAngle:       "half_span_angle",
	MasterGain:          "master_gain",
	WhisperRoom:         "whisper_room",
	SidebarRoom:         "sidebar_room",
}

// Valid reports whether c is one of the defined controls.
func (c Control) Valid() bool {
	return c >= StereoBypass && c <= SidebarRoom
}

// Domain returns the value domain of c. The zero Domain is returned for an
// undefined control.
func (c Control) Domain() Domain {
	if !c.Valid() {
		return Domain{}
	}
	return domains[c]
}

// Default returns the value c takes when a participant joins.
func (c Control) Default() int32 {
	return c.Domain().Default
}

// Boolean reports whether c only takes the values 0 and 1.
func (c Control) Boolean() bool {
	d := c.Domain()
	return c.Valid() && d.Min == 0 && d.Max == 1
}

// String returns the stable snake_case name of c.
func (c Control) String() string {
	if !c.Valid() {
		return fmt.Sprintf("control(%d)", int(c))
	}
	return names[c]
}

// All returns every defined control in declaration order.
func All() []Control {
	out := make([]Control, 0, Count)
	for c := StereoBypass; c <= SidebarRoom; c++ {
		out = append(out, c)
	}
	return out
}

// Parse resolves a control by its name. Matching ignores case, and dashes
// and spaces are treated as underscores.
func Parse(name string) (Control, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	for c := StereoBypass; c <= SidebarRoom; c++ {
		if names[c] == key {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown control %q: %w", name, ErrInvalidControl)
}

// ParseValue converts the textual form of a value for c. Booleans accept
// true/false/on/off, Device accepts headphone/speaker, everything else must be
// an integer. The result is not range checked.
func ParseValue(c Control, s string) (int32, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case c == Device:
		switch s {
		case "headphone", "headphones":
			return DeviceHeadphone, nil
		case "speaker", "speakers":
			return DeviceSpeaker, nil
		}
	case c.Boolean():
		switch s {
		case "true", "on", "yes":
			return 1, nil
		case "false", "off", "no":
			return 0, nil
		}
	}

	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("value %q for %s: %w", s, c, ErrInvalidValue)
	}
	return int32(v), nil
}

// MarshalText implements encoding.TextMarshaler.
func (c Control) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Control) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// DeviceName returns the name of a Device control value.
func DeviceName(v int32) string {
	switch v {
	case DeviceHeadphone:
		return "headphone"
	case DeviceSpeaker:
		return "speaker"
	default:
		return "unknown"
	}
}
