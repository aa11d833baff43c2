package control

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	table := NewTable()

	expected := map[Control]int32{
		StereoBypass:        0,
		Mute:                0,
		ANC:                 0,
		AGC:                 0,
		AutoEQ:              0,
		Mixing3D:            0,
		Mixing3DAttenuation: 6,
		Mixing3DMaxDistance: 300,
		Mixing3DReverb:      1,
		Device:              DeviceHeadphone,
		HalfSpanAngle:       15,
		MasterGain:          100,
		WhisperRoom:         0,
		SidebarRoom:         0,
	}
	require.Len(t, expected, Count)

	for c, want := range expected {
		got, err := table.Get(c)
		require.NoError(t, err)
		assert.Equal(t, want, got, c.String())
	}
}

func TestSetGetEveryInDomainValue(t *testing.T) {
	table := NewTable()

	for _, c := range All() {
		d := c.Domain()
		hi := d.Max
		if hi-d.Min > 200 {
			hi = d.Min + 200
		}
		for v := d.Min; v <= hi; v++ {
			require.NoError(t, table.Set(c, v))
			got, err := table.Get(c)
			require.NoError(t, err)
			assert.Equal(t, v, got)
		}
	}

	require.NoError(t, table.Set(Mixing3DMaxDistance, math.MaxInt32))
	assert.Equal(t, int32(math.MaxInt32), table.Value(Mixing3DMaxDistance))
}

func TestSetOutOfDomainLeavesValue(t *testing.T) {
	tests := []struct {
		name    string
		control Control
		value   int32
	}{
		{"mute_two", Mute, 2},
		{"mute_negative", Mute, -1},
		{"attenuation_above", Mixing3DAttenuation, 41},
		{"max_distance_negative", Mixing3DMaxDistance, -1},
		{"device_zero", Device, 0},
		{"device_three", Device, 3},
		{"half_span_zero", HalfSpanAngle, 0},
		{"half_span_above", HalfSpanAngle, 91},
		{"master_gain_above", MasterGain, 101},
		{"whisper_above", WhisperRoom, 101},
		{"sidebar_negative", SidebarRoom, -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := NewTable()
			before := table.Value(tt.control)

			err := table.Set(tt.control, tt.value)
			assert.ErrorIs(t, err, ErrInvalidValue)
			assert.Equal(t, before, table.Value(tt.control))
		})
	}
}

func TestInvalidControl(t *testing.T) {
	table := NewTable()

	_, err := table.Get(0)
	assert.ErrorIs(t, err, ErrInvalidControl)
	assert.ErrorIs(t, table.Set(Control(Count+1), 0), ErrInvalidControl)
	assert.False(t, table.Enabled(Control(-3)))
	assert.Equal(t, int32(0), table.Value(Control(99)))
}

func TestParse(t *testing.T) {
	for _, c := range All() {
		got, err := Parse(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	got, err := Parse("Half-Span Angle")
	require.NoError(t, err)
	assert.Equal(t, HalfSpanAngle, got)

	_, err = Parse("volume")
	assert.ErrorIs(t, err, ErrInvalidControl)
	assert.Equal(t, "control(0)", Control(0).String())
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		control Control
		input   string
		want    int32
		wantErr bool
	}{
		{Mute, "true", 1, false},
		{Mute, "OFF", 0, false},
		{Mute, "1", 1, false},
		{Device, "speaker", DeviceSpeaker, false},
		{Device, "headphone", DeviceHeadphone, false},
		{Device, "2", DeviceSpeaker, false},
		{MasterGain, "75", 75, false},
		{MasterGain, "loud", 0, true},
		{HalfSpanAngle, "true", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseValue(tt.control, tt.input)
		if tt.wantErr {
			assert.Error(t, err, tt.input)
			continue
		}
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestSnapshotAndReset(t *testing.T) {
	table := NewTable()
	require.NoError(t, table.Set(MasterGain, 40))
	require.NoError(t, table.Set(Mute, 1))

	snap := table.Snapshot()
	assert.Len(t, snap, Count)
	assert.Equal(t, int32(40), snap[MasterGain])
	assert.True(t, table.Enabled(Mute))

	table.Reset()
	assert.Equal(t, int32(100), table.Value(MasterGain))
	assert.False(t, table.Enabled(Mute))
}
