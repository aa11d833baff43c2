package spatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/voxroom/control"
	"github.com/opd-ai/voxroom/geometry"
	"github.com/opd-ai/voxroom/pcm"
)

const (
	rate   = 48000
	frames = 480
)

func tone(amp float64) []float64 {
	out := make([]float64, frames)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*440*float64(i)/rate)
	}
	return out
}

func impulse(at int) []float64 {
	out := make([]float64, frames)
	out[at] = 1
	return out
}

func firstNonZero(x []float64) int {
	for i, v := range x {
		if math.Abs(v) > 1e-12 {
			return i
		}
	}
	return -1
}

func defaultListener() Listener {
	return ListenerFromControls(control.NewTable(), geometry.Position{}, geometry.Heading{})
}

func TestAttenuation(t *testing.T) {
	assert.Equal(t, 0.0, AttenuationDB(0, 300, 6))
	assert.InDelta(t, 18.0, AttenuationDB(300, 300, 6), 1e-12)
	assert.InDelta(t, 18.0, AttenuationDB(900, 300, 6), 1e-12)
	assert.InDelta(t, 6.0, AttenuationDB(100, 300, 6), 1e-12)
	assert.Equal(t, 1.0, AttenuationGain(0, 300, 6))
	assert.Equal(t, 1.0, AttenuationGain(250, 300, 0))
}

func TestAttenuationMonotonic(t *testing.T) {
	prev := math.Inf(1)
	for d := 0.0; d <= 600; d += 10 {
		g := AttenuationGain(d, 300, 6)
		assert.LessOrEqual(t, g, prev, "distance %.0f", d)
		if d >= 300 {
			assert.InDelta(t, AttenuationGain(300, 300, 6), g, 1e-15)
		}
		prev = g
	}
}

func TestPanGains(t *testing.T) {
	l, r := PanGains(0, 15)
	assert.InDelta(t, math.Sqrt2/2, l, 1e-12)
	assert.InDelta(t, math.Sqrt2/2, r, 1e-12)

	l, r = PanGains(15, 15)
	assert.InDelta(t, 0, l, 1e-12)
	assert.InDelta(t, 1, r, 1e-12)

	l, r = PanGains(-60, 15)
	assert.InDelta(t, 1, l, 1e-12)
	assert.InDelta(t, 0, r, 1e-12)

	// rear sources fold to the front
	l1, r1 := PanGains(170, 30)
	l2, r2 := PanGains(10, 30)
	assert.InDelta(t, l2, l1, 1e-12)
	assert.InDelta(t, r2, r1, 1e-12)

	for az := -180.0; az <= 180; az += 7.5 {
		l, r := PanGains(az, 45)
		assert.InDelta(t, 1, l*l+r*r, 1e-12)
	}
}

func TestBinauralInterauralDifferences(t *testing.T) {
	b := NewBinaural(rate, 2)
	dst := pcm.Alloc(2, frames)
	b.Render(dst, impulse(0), Placement{Spherical: geometry.Spherical{Azimuth: 90, Distance: 100}, Gain: 1}, &Voice{})

	wantDelay := int(math.Round(ITD(math.Pi/2) * rate))
	assert.Equal(t, 0, firstNonZero(dst[1]))
	assert.Equal(t, wantDelay, firstNonZero(dst[0]))
	assert.InDelta(t, 1, dst[1][0], 1e-12)
	assert.InDelta(t, math.Pow(10, -maxILDdB/20), dst[0][wantDelay], 1e-12)
}

func TestBinauralQualityOneHasNoDelay(t *testing.T) {
	b := NewBinaural(rate, 1)
	dst := pcm.Alloc(2, frames)
	b.Render(dst, impulse(0), Placement{Spherical: geometry.Spherical{Azimuth: -90}, Gain: 1}, &Voice{})

	assert.Equal(t, 0, firstNonZero(dst[0]))
	assert.Equal(t, 0, firstNonZero(dst[1]))
	assert.Greater(t, dst[0][0], dst[1][0])
}

func TestBinauralDelaySpillsIntoNextBlock(t *testing.T) {
	b := NewBinaural(rate, 3)
	v := &Voice{}
	p := Placement{Spherical: geometry.Spherical{Azimuth: 90}, Gain: 1}
	delay := int(math.Round(ITD(math.Pi/2) * rate))

	first := pcm.Alloc(2, frames)
	b.Render(first, impulse(frames-5), p, v)
	assert.Equal(t, -1, firstNonZero(first[0]))

	second := pcm.Alloc(2, frames)
	b.Render(second, make([]float64, frames), p, v)
	assert.Equal(t, delay-5, firstNonZero(second[0]))
	assert.Equal(t, -1, firstNonZero(second[1]))

	v.Reset()
	third := pcm.Alloc(2, frames)
	b.Render(third, make([]float64, frames), p, v)
	assert.Equal(t, -1, firstNonZero(third[0]))
}

func TestBinauralFrontIsSymmetric(t *testing.T) {
	for q := 1; q <= 5; q++ {
		b := NewBinaural(rate, q)
		dst := pcm.Alloc(2, frames)
		b.Render(dst, tone(0.5), Placement{Spherical: geometry.Spherical{Elevation: 20, Distance: 50}, Gain: 1}, &Voice{})
		assert.InDeltaSlice(t, dst[0], dst[1], 1e-12, "quality %d", q)
		assert.Greater(t, pcm.RMS(dst[0]), 0.0)
	}
}

func TestBinauralRearDarkensAtHighQuality(t *testing.T) {
	b := NewBinaural(rate, 4)
	hiss := make([]float64, frames)
	for i := range hiss {
		if i%2 == 0 {
			hiss[i] = 0.5
		} else {
			hiss[i] = -0.5
		}
	}

	front := pcm.Alloc(2, frames)
	b.Render(front, hiss, Placement{Spherical: geometry.Spherical{Azimuth: 0}, Gain: 1}, &Voice{})
	back := pcm.Alloc(2, frames)
	b.Render(back, hiss, Placement{Spherical: geometry.Spherical{Azimuth: 180}, Gain: 1}, &Voice{})

	assert.Less(t, pcm.RMS(back[0]), 0.5*pcm.RMS(front[0]))
}

func TestSchroederTail(t *testing.T) {
	r := NewSchroeder(rate, 5, 0)
	assert.Len(t, r.combs, 4)
	assert.Len(t, NewSchroeder(rate, 1, 0).combs, 2)
	assert.Len(t, NewSchroeder(rate, 3, 0).combs, 3)

	out := make([]float64, frames)
	r.Process(out, impulse(0))
	// the shortest comb is 30 ms long, so the tail starts a few blocks later
	energy := 0.0
	for range 5 {
		tail := make([]float64, frames)
		r.Process(tail, make([]float64, frames))
		energy += pcm.RMS(tail)
	}
	assert.Greater(t, energy, 0.0)

	r.Reset()
	silent := make([]float64, frames)
	r.Process(silent, make([]float64, frames))
	assert.True(t, pcm.Silent(silent))
}

func TestNewMixerValidation(t *testing.T) {
	bad := []MixerConfig{
		{SampleRate: 0, Frames: 480, Channels: 2, Quality: 3},
		{SampleRate: rate, Frames: 0, Channels: 2, Quality: 3},
		{SampleRate: rate, Frames: 480, Channels: 3, Quality: 3},
		{SampleRate: rate, Frames: 480, Channels: 2, Quality: 0},
		{SampleRate: rate, Frames: 480, Channels: 2, Quality: 6},
	}
	for _, cfg := range bad {
		_, err := NewMixer(cfg, nil)
		assert.ErrorIs(t, err, ErrInvalidMixerConfig)
	}
}

func TestFlatMixIgnoresPositions(t *testing.T) {
	m, err := NewMixer(MixerConfig{SampleRate: rate, Frames: frames, Channels: 2, Quality: 3}, nil)
	require.NoError(t, err)

	a, b := tone(0.3), tone(0.2)
	mix := func(pa, pb geometry.Position) [][]float64 {
		dst := pcm.Alloc(2, frames)
		require.NoError(t, m.Mix(dst, defaultListener(), m.NewListenerState(), []Contribution{
			{SourceID: 1, Position: pa, Mono: a},
			{SourceID: 2, Position: pb, Mono: b},
		}))
		return dst
	}

	near := mix(geometry.Position{}, geometry.Position{X: 10})
	far := mix(geometry.Position{Z: 900}, geometry.Position{X: -2000, Y: 50})
	assert.Equal(t, near, far)
	for i := range frames {
		assert.InDelta(t, a[i]+b[i], near[0][i], 1e-12)
		assert.InDelta(t, a[i]+b[i], near[1][i], 1e-12)
	}
}

func TestMasterGain(t *testing.T) {
	m, err := NewMixer(MixerConfig{SampleRate: rate, Frames: frames, Channels: 1, Quality: 1}, nil)
	require.NoError(t, err)

	l := defaultListener()
	l.MasterGain = 50
	src := tone(0.8)
	dst := pcm.Alloc(1, frames)
	require.NoError(t, m.Mix(dst, l, m.NewListenerState(), []Contribution{{SourceID: 1, Mono: src}}))
	for i := range frames {
		assert.InDelta(t, src[i]/2, dst[0][i], 1e-12)
	}
}

func TestBypassKeepsStereo(t *testing.T) {
	m, err := NewMixer(MixerConfig{SampleRate: rate, Frames: frames, Channels: 2, Quality: 3}, nil)
	require.NoError(t, err)

	left, right := tone(0.4), tone(-0.1)
	for _, mix3D := range []bool{false, true} {
		l := defaultListener()
		l.Mix3D = mix3D
		dst := pcm.Alloc(2, frames)
		require.NoError(t, m.Mix(dst, l, m.NewListenerState(), []Contribution{{
			SourceID: 4,
			Position: geometry.Position{X: 500},
			Mono:     tone(0.15),
			Original: [][]float64{left, right},
			Bypass:   true,
		}}))
		assert.InDeltaSlice(t, left, dst[0], 1e-12)
		assert.InDeltaSlice(t, right, dst[1], 1e-12)
	}

	mono, err := NewMixer(MixerConfig{SampleRate: rate, Frames: frames, Channels: 1, Quality: 3}, nil)
	require.NoError(t, err)
	dst := pcm.Alloc(1, frames)
	require.NoError(t, mono.Mix(dst, defaultListener(), mono.NewListenerState(), []Contribution{{
		SourceID: 4, Original: [][]float64{left, right}, Bypass: true,
	}}))
	for i := range frames {
		assert.InDelta(t, (left[i]+right[i])/2, dst[0][i], 1e-12)
	}
}

func TestSpatialRMSNeverGrowsWithDistance(t *testing.T) {
	for _, device := range []int32{control.DeviceHeadphone, control.DeviceSpeaker} {
		for _, channels := range []int{1, 2} {
			m, err := NewMixer(MixerConfig{SampleRate: rate, Frames: frames, Channels: channels, Quality: 5}, nil)
			require.NoError(t, err)

			l := defaultListener()
			l.Mix3D = true
			l.Device = device

			prev := math.Inf(1)
			var atMax float64
			for d := 0.0; d <= 500; d += 25 {
				dst := pcm.Alloc(channels, frames)
				require.NoError(t, m.Mix(dst, l, m.NewListenerState(), []Contribution{{
					SourceID: 2,
					Position: geometry.Position{X: d * 0.6, Z: d * 0.8},
					Mono:     tone(0.5),
				}}))
				level := pcm.RMS(dst[0])
				if channels == 2 {
					level = math.Hypot(level, pcm.RMS(dst[1]))
				}
				assert.LessOrEqual(t, level, prev+1e-12, "distance %.0f", d)
				if d == 300 {
					atMax = level
				}
				if d > 300 {
					assert.InDelta(t, atMax, level, 1e-12)
				}
				prev = level
			}
		}
	}
}

func TestSpeakerPansRight(t *testing.T) {
	m, err := NewMixer(MixerConfig{SampleRate: rate, Frames: frames, Channels: 2, Quality: 3}, nil)
	require.NoError(t, err)

	l := defaultListener()
	l.Mix3D = true
	l.Reverb = false
	l.Device = control.DeviceSpeaker
	dst := pcm.Alloc(2, frames)
	require.NoError(t, m.Mix(dst, l, m.NewListenerState(), []Contribution{{
		SourceID: 1, Position: geometry.Position{X: 100}, Mono: tone(0.5),
	}}))

	assert.InDelta(t, 0, pcm.RMS(dst[0]), 1e-12)
	assert.Greater(t, pcm.RMS(dst[1]), 0.0)
}

func TestMixRejectsWrongShape(t *testing.T) {
	m, err := NewMixer(MixerConfig{SampleRate: rate, Frames: frames, Channels: 2, Quality: 3}, nil)
	require.NoError(t, err)

	st := m.NewListenerState()
	assert.ErrorIs(t, m.Mix(pcm.Alloc(1, frames), defaultListener(), st, nil), ErrInvalidMixerConfig)
	assert.ErrorIs(t, m.Mix(pcm.Alloc(2, 100), defaultListener(), st, nil), ErrInvalidMixerConfig)

	st.voice(3)
	st.Forget(3)
	assert.Empty(t, st.voices)
}

func TestListenerStateStartsAtUnityMaster(t *testing.T) {
	m, err := NewMixer(MixerConfig{SampleRate: rate, Frames: frames, Channels: 1, Quality: 1}, nil)
	require.NoError(t, err)
	st := m.NewListenerState()
	require.NotNil(t, st.master)
	assert.Equal(t, 1.0, st.master.GetGain())
}
