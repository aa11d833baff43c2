package voxroom

import (
	"fmt"

	"github.com/opd-ai/voxroom/dsp"
)

// Accepted output formats.
var (
	SupportedOutputRates  = []int{8000, 16000, 24000, 32000, 48000}
	SupportedOutputFrames = []int{480, 512, 960, 1024}
)

// Config is the output format shared by every room of a library.
type Config struct {
	// OutputSampleRate is the rate of every output block in Hz.
	OutputSampleRate int `json:"output_sample_rate"`
	// OutputFrames is the number of frames per output block.
	OutputFrames int `json:"output_frames"`
	// OutputChannels is 1 (mono) or 2 (stereo).
	OutputChannels int `json:"output_channels"`
	// Interleaved selects LRLR sample layout for multi-channel buffers;
	// false selects planar (LL..RR).
	Interleaved bool `json:"interleaved"`
	// SpatialQuality trades rendering detail for CPU, 1 to 5.
	SpatialQuality int `json:"spatial_quality"`
}

// DefaultConfig returns 48 kHz stereo in 10 ms interleaved blocks at spatial
// quality 3.
func DefaultConfig() Config {
	return Config{
		OutputSampleRate: 48000,
		OutputFrames:     480,
		OutputChannels:   2,
		Interleaved:      true,
		SpatialQuality:   3,
	}
}

// InvalidConfig is reported by a library that is not initialized.
func InvalidConfig() Config {
	return Config{
		OutputSampleRate: -1,
		OutputFrames:     -1,
		OutputChannels:   -1,
		SpatialQuality:   -1,
	}
}

// Validate checks every field against the supported formats.
func (c Config) Validate() error {
	if !contains(SupportedOutputRates, c.OutputSampleRate) {
		return fmt.Errorf("output rate %d Hz: %w", c.OutputSampleRate, ErrInvalidSampleRate)
	}
	if !contains(SupportedOutputFrames, c.OutputFrames) {
		return fmt.Errorf("output frames %d: %w", c.OutputFrames, ErrInvalidFrameCount)
	}
	if c.OutputChannels < 1 || c.OutputChannels > 2 {
		return fmt.Errorf("output channels %d: %w", c.OutputChannels, ErrInvalidNumChannels)
	}
	if c.SpatialQuality < 1 || c.SpatialQuality > 5 {
		return fmt.Errorf("spatial quality %d: %w", c.SpatialQuality, ErrInvalidSpatialQuality)
	}
	return nil
}

// BlockSamples returns the number of samples in one output block across all
// channels.
func (c Config) BlockSamples() int {
	return c.OutputFrames * c.OutputChannels
}

func contains(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// ParticipantKind says whether a participant sends audio, receives it, or
// both.
type ParticipantKind int

const (
	// Regular participants both speak and listen.
	Regular ParticipantKind = iota + 1
	// SourceOnly participants are heard but never request output.
	SourceOnly
	// ListenerOnly participants request output but never push input.
	ListenerOnly
)

// String returns the kind name.
func (k ParticipantKind) String() string {
	switch k {
	case Regular:
		return "regular"
	case SourceOnly:
		return "source_only"
	case ListenerOnly:
		return "listener_only"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseParticipantKind parses the names returned by ParticipantKind.String.
func ParseParticipantKind(s string) (ParticipantKind, error) {
	for k := Regular; k <= ListenerOnly; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("participant kind %q: %w", s, ErrInvalidParticipantType)
}

// Speaks reports whether participants of kind k contribute audio.
func (k ParticipantKind) Speaks() bool { return k == Regular || k == SourceOnly }

// Listens reports whether participants of kind k receive a mix.
func (k ParticipantKind) Listens() bool { return k == Regular || k == ListenerOnly }

// ParticipantConfig describes the input stream of a participant.
type ParticipantConfig struct {
	InputSampleRate int             `json:"input_sample_rate"`
	InputChannels   int             `json:"input_channels"`
	Kind            ParticipantKind `json:"kind"`
}

// validate checks pc against the library output format.
func (pc ParticipantConfig) validate(out Config) error {
	if pc.Kind < Regular || pc.Kind > ListenerOnly {
		return fmt.Errorf("kind %d: %w", int(pc.Kind), ErrInvalidParticipantType)
	}
	if pc.InputChannels < 1 || pc.InputChannels > 2 {
		return fmt.Errorf("input channels %d: %w", pc.InputChannels, ErrInvalidNumChannels)
	}
	if pc.InputSampleRate <= 0 || !dsp.SupportedRate(uint32(pc.InputSampleRate)) ||
		InputFrames(out, pc.InputSampleRate) < 1 {
		return fmt.Errorf("input rate %d Hz to %d Hz: %w", pc.InputSampleRate, out.OutputSampleRate, ErrInvalidSampleRate)
	}
	return nil
}

// InputFrames returns the frames a participant at inputRate must push per
// block: (output frames * input rate) / output rate.
func InputFrames(out Config, inputRate int) int {
	if inputRate <= 0 || out.OutputSampleRate <= 0 {
		return 0
	}
	return dsp.InputFrames(out.OutputFrames, uint32(inputRate), uint32(out.OutputSampleRate))
}
