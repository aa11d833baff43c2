package spatial

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/voxroom/control"
	"github.com/opd-ai/voxroom/dsp"
	"github.com/opd-ai/voxroom/geometry"
	"github.com/opd-ai/voxroom/logging"
	"github.com/opd-ai/voxroom/pcm"
)

// reverbSend is the wet level fed to the reverb relative to the attenuated
// dry signal.
const reverbSend = 0.25

// ErrInvalidMixerConfig indicates an unusable mixer configuration.
var ErrInvalidMixerConfig = errors.New("invalid mixer configuration")

// MixerConfig fixes the output format of a mixer.
type MixerConfig struct {
	SampleRate int
	Frames     int
	Channels   int // 1 or 2
	Quality    int // 1..5
}

// Mixer composes the personal mix of one listener from every audible source.
type Mixer struct {
	cfg       MixerConfig
	headphone Renderer
	speaker   Renderer
	log       *logrus.Entry
}

// MixerOption customizes a Mixer.
type MixerOption func(*Mixer)

// WithHeadphoneRenderer replaces the default binaural renderer.
func WithHeadphoneRenderer(r Renderer) MixerOption {
	return func(m *Mixer) { m.headphone = r }
}

// WithSpeakerRenderer replaces the default speaker panner.
func WithSpeakerRenderer(r Renderer) MixerOption {
	return func(m *Mixer) { m.speaker = r }
}

// NewMixer creates a mixer for cfg.
func NewMixer(cfg MixerConfig, log *logrus.Entry, opts ...MixerOption) (*Mixer, error) {
	if cfg.SampleRate <= 0 || cfg.Frames <= 0 {
		return nil, fmt.Errorf("%d Hz x %d frames: %w", cfg.SampleRate, cfg.Frames, ErrInvalidMixerConfig)
	}
	if cfg.Channels < 1 || cfg.Channels > 2 {
		return nil, fmt.Errorf("%d channels: %w", cfg.Channels, ErrInvalidMixerConfig)
	}
	if cfg.Quality < 1 || cfg.Quality > 5 {
		return nil, fmt.Errorf("quality %d: %w", cfg.Quality, ErrInvalidMixerConfig)
	}

	m := &Mixer{
		cfg:       cfg,
		headphone: NewBinaural(cfg.SampleRate, cfg.Quality),
		speaker:   Speaker{},
		log:       logging.Component(log, "mixer"),
	}
	for _, opt := range opts {
		opt(m)
	}

	logging.For(m.log, "NewMixer").WithFields(logrus.Fields{
		"sample_rate": cfg.SampleRate,
		"frames":      cfg.Frames,
		"channels":    cfg.Channels,
		"quality":     cfg.Quality,
		"headphone":   m.headphone.Name(),
		"speaker":     m.speaker.Name(),
	}).Debug("Spatial mixer created")
	return m, nil
}

// Config returns the mixer configuration.
func (m *Mixer) Config() MixerConfig { return m.cfg }

// Contribution is one source's audio for the current block.
type Contribution struct {
	SourceID int
	Position geometry.Position
	// Mono is the processed mono signal.
	Mono []float64
	// Original holds the resampled input channels, used in stereo bypass.
	Original [][]float64
	// Bypass mixes Original flat instead of rendering Mono in 3D.
	Bypass bool
}

// Listener carries the settings of the listener being mixed.
type Listener struct {
	Position    geometry.Position
	Heading     geometry.Heading
	Mix3D       bool
	Attenuation float64 // dB per meter
	MaxDistance float64 // cm
	Reverb      bool
	Device      int32
	HalfSpan    float64
	MasterGain  float64 // percent
}

// ListenerFromControls reads the mixing settings out of a control table.
func ListenerFromControls(t *control.Table, pos geometry.Position, head geometry.Heading) Listener {
	return Listener{
		Position:    pos,
		Heading:     head,
		Mix3D:       t.Enabled(control.Mixing3D),
		Attenuation: float64(t.Value(control.Mixing3DAttenuation)),
		MaxDistance: float64(t.Value(control.Mixing3DMaxDistance)),
		Reverb:      t.Enabled(control.Mixing3DReverb),
		Device:      t.Value(control.Device),
		HalfSpan:    float64(t.Value(control.HalfSpanAngle)),
		MasterGain:  float64(t.Value(control.MasterGain)),
	}
}

// ListenerState is the rendering state a listener keeps between blocks.
type ListenerState struct {
	voices map[int]*Voice
	reverb [2]Reverberator
	master *dsp.GainEffect
	bus    [][]float64
	send   []float64
	wet    []float64
}

// NewListenerState allocates state for one listener. At quality 3 and above
// the two ears get decorrelated reverbs.
func (m *Mixer) NewListenerState() *ListenerState {
	s := &ListenerState{
		voices: make(map[int]*Voice),
		master: dsp.NewUnityGain(),
		bus:    pcm.Alloc(2, m.cfg.Frames),
		send:   make([]float64, m.cfg.Frames),
		wet:    make([]float64, m.cfg.Frames),
	}
	s.reverb[0] = NewSchroeder(m.cfg.SampleRate, m.cfg.Quality, 0)
	if m.cfg.Quality >= 3 {
		s.reverb[1] = NewSchroeder(m.cfg.SampleRate, m.cfg.Quality, stereoSpread)
	}
	return s
}

// Forget drops the voice state kept for sourceID.
func (s *ListenerState) Forget(sourceID int) {
	delete(s.voices, sourceID)
}

// Reset clears every voice and the reverb tails.
func (s *ListenerState) Reset() {
	clear(s.voices)
	for _, r := range s.reverb {
		if r != nil {
			r.Reset()
		}
	}
}

func (s *ListenerState) voice(id int) *Voice {
	v, ok := s.voices[id]
	if !ok {
		v = &Voice{}
		s.voices[id] = v
	}
	return v
}

// Mix writes the listener's block into dst, one slice per output channel of
// cfg.Frames samples. Samples are not saturated here.
func (m *Mixer) Mix(dst [][]float64, l Listener, st *ListenerState, sources []Contribution) error {
	if len(dst) != m.cfg.Channels {
		return fmt.Errorf("mix into %d channels, want %d: %w", len(dst), m.cfg.Channels, ErrInvalidMixerConfig)
	}
	for _, ch := range dst {
		if len(ch) != m.cfg.Frames {
			return fmt.Errorf("mix into %d frames, want %d: %w", len(ch), m.cfg.Frames, ErrInvalidMixerConfig)
		}
	}
	pcm.Zero(dst)

	if !l.Mix3D {
		for _, src := range sources {
			addFlat(dst, src)
		}
		return m.applyMaster(dst, l, st)
	}

	stereo := m.cfg.Channels == 2
	renderer := m.headphone
	if l.Device == control.DeviceSpeaker {
		renderer = m.speaker
	}
	pcm.Zero(st.bus)
	clear(st.send)

	for _, src := range sources {
		if src.Bypass {
			addFlat(dst, src)
			continue
		}
		sph := geometry.Relative(l.Position, l.Heading, src.Position)
		gain := AttenuationGain(sph.Distance, l.MaxDistance, l.Attenuation)

		if stereo {
			renderer.Render(st.bus, src.Mono, Placement{Spherical: sph, Gain: gain, HalfSpan: l.HalfSpan}, st.voice(src.SourceID))
		} else {
			addScaled(st.bus[0], src.Mono, gain)
		}
		if l.Reverb {
			addScaled(st.send, src.Mono, gain*reverbSend)
		}
	}

	for c := range dst {
		addScaled(dst[c], st.bus[c], 1)
	}

	if l.Reverb {
		clear(st.wet)
		st.reverb[0].Process(st.wet, st.send)
		if stereo && st.reverb[1] != nil {
			addScaled(dst[0], st.wet, 1)
			st.reverb[1].Process(dst[1], st.send)
		} else {
			for c := range dst {
				addScaled(dst[c], st.wet, 1)
			}
		}
	}

	return m.applyMaster(dst, l, st)
}

func (m *Mixer) applyMaster(dst [][]float64, l Listener, st *ListenerState) error {
	if err := st.master.SetGain(l.MasterGain / 100); err != nil {
		return err
	}
	for _, ch := range dst {
		if _, err := st.master.Process(ch); err != nil {
			return err
		}
	}
	return nil
}

// addFlat sums a contribution at unity. A bypassed stereo source keeps its
// channels on a stereo output; everything else is mono copied to every
// output channel.
func addFlat(dst [][]float64, src Contribution) {
	if src.Bypass && len(src.Original) > 0 {
		switch {
		case len(dst) == len(src.Original):
			for c := range dst {
				addScaled(dst[c], src.Original[c], 1)
			}
			return
		case len(src.Original) == 1:
			for c := range dst {
				addScaled(dst[c], src.Original[0], 1)
			}
			return
		default:
			// stereo source into mono output
			inv := 1 / float64(len(src.Original))
			for c := range src.Original {
				addScaled(dst[0], src.Original[c], inv)
			}
			return
		}
	}
	for c := range dst {
		addScaled(dst[c], src.Mono, 1)
	}
}

func addScaled(dst, src []float64, g float64) {
	for i, v := range src {
		dst[i] += g * v
	}
}
