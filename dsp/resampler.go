package dsp

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"github.com/tphakala/simd/f64"

	"github.com/opd-ai/voxroom/logging"
)

var (
	// ErrUnsupportedRate indicates an input rate that cannot be converted to
	// the output rate in whole blocks.
	ErrUnsupportedRate = errors.New("unsupported sample rate")

	// ErrInvalidChannels indicates a channel count other than 1 or 2.
	ErrInvalidChannels = errors.New("unsupported channel count")

	// ErrFrameMismatch indicates a block whose length differs from the
	// configured frame count.
	ErrFrameMismatch = errors.New("block length mismatch")
)

// SupportedInputRates lists the participant input rates the resampler accepts.
var SupportedInputRates = []uint32{8000, 11025, 12000, 16000, 22050, 24000, 32000, 44100, 48000, 88200, 96000}

// SupportedRate reports whether rate is an accepted input rate.
func SupportedRate(rate uint32) bool {
	for _, r := range SupportedInputRates {
		if r == rate {
			return true
		}
	}
	return false
}

// InputFrames returns the number of input frames that map onto outputFrames
// output frames: floor(outputFrames * inputRate / outputRate).
func InputFrames(outputFrames int, inputRate, outputRate uint32) int {
	if outputRate == 0 {
		return 0
	}
	return int(uint64(outputFrames) * uint64(inputRate) / uint64(outputRate))
}

const (
	// antiAliasCutoff is the low-pass corner as a fraction of the output
	// Nyquist frequency.
	antiAliasCutoff = 0.9
	// antiAliasTapsPerRatio sets the filter length per unit of decimation.
	antiAliasTapsPerRatio = 24
)

// Resampler converts fixed-size blocks between two sample rates.
//
// Each call maps exactly InputFrames() input frames onto OutputFrames()
// output frames using linear interpolation. When the output rate is lower,
// the input first passes a windowed-sinc low-pass below the output Nyquist
// frequency. The last input sample of every channel is kept so interpolation
// runs continuously across blocks.
type Resampler struct {
	inputRate   uint32
	outputRate  uint32
	channels    int
	inFrames    int
	outFrames   int
	step        float64   // input frames advanced per output frame
	lastSamples []float64 // previous block's final sample per channel

	// anti-aliasing state, nil when not downsampling
	kernel   []float64
	history  [][]float64 // last len(kernel)-1 input samples per channel
	ext      []float64
	filtered []float64

	log *logrus.Entry
}

// ResamplerConfig holds configuration for creating a resampler.
type ResamplerConfig struct {
	InputRate    uint32 // Input sample rate in Hz
	OutputRate   uint32 // Output sample rate in Hz
	Channels     int    // Number of audio channels (1=mono, 2=stereo)
	OutputFrames int    // Frames produced per block
}

// NewResampler creates a resampler for one participant stream.
func NewResampler(config ResamplerConfig, log *logrus.Entry) (*Resampler, error) {
	log = logging.Component(log, "resampler")
	h := logging.For(log, "NewResampler").WithFields(logrus.Fields{
		"input_rate":    config.InputRate,
		"output_rate":   config.OutputRate,
		"channels":      config.Channels,
		"output_frames": config.OutputFrames,
	})

	if config.Channels < 1 || config.Channels > 2 {
		h.Error("Channel count validation failed")
		return nil, fmt.Errorf("%d channels: %w", config.Channels, ErrInvalidChannels)
	}
	if config.OutputRate == 0 || config.OutputFrames <= 0 {
		h.Error("Output format validation failed")
		return nil, fmt.Errorf("output %d Hz x %d frames: %w", config.OutputRate, config.OutputFrames, ErrUnsupportedRate)
	}
	if !SupportedRate(config.InputRate) {
		h.Error("Input rate validation failed")
		return nil, fmt.Errorf("input %d Hz: %w", config.InputRate, ErrUnsupportedRate)
	}

	inFrames := InputFrames(config.OutputFrames, config.InputRate, config.OutputRate)
	if inFrames < 1 {
		h.Error("Input block would be empty")
		return nil, fmt.Errorf("input %d Hz yields no frames per block: %w", config.InputRate, ErrUnsupportedRate)
	}

	r := &Resampler{
		inputRate:   config.InputRate,
		outputRate:  config.OutputRate,
		channels:    config.Channels,
		inFrames:    inFrames,
		outFrames:   config.OutputFrames,
		step:        float64(inFrames) / float64(config.OutputFrames),
		lastSamples: make([]float64, config.Channels),
		log:         log,
	}
	if config.InputRate > config.OutputRate {
		r.kernel = lowPassKernel(config.InputRate, config.OutputRate)
		r.history = make([][]float64, config.Channels)
		for c := range r.history {
			r.history[c] = make([]float64, len(r.kernel)-1)
		}
		r.ext = make([]float64, len(r.kernel)-1+inFrames)
		r.filtered = make([]float64, inFrames)
	}

	h.WithFields(logrus.Fields{
		"input_frames":    inFrames,
		"anti_alias_taps": len(r.kernel),
	}).Debug("Resampler created")
	return r, nil
}

// InputFrames returns the frames expected per input block.
func (r *Resampler) InputFrames() int { return r.inFrames }

// OutputFrames returns the frames produced per block.
func (r *Resampler) OutputFrames() int { return r.outFrames }

// Channels returns the channel count.
func (r *Resampler) Channels() int { return r.channels }

// Passthrough reports whether input and output rates are identical.
func (r *Resampler) Passthrough() bool { return r.inputRate == r.outputRate }

// Process resamples src into dst. Both hold one slice per channel; each src
// slice must be InputFrames() long and each dst slice OutputFrames() long.
func (r *Resampler) Process(dst, src [][]float64) error {
	if len(src) != r.channels || len(dst) != r.channels {
		return fmt.Errorf("got %d in / %d out channels, want %d: %w", len(src), len(dst), r.channels, ErrInvalidChannels)
	}
	for c := range r.channels {
		if len(src[c]) != r.inFrames || len(dst[c]) != r.outFrames {
			return fmt.Errorf("channel %d: %d in / %d out frames, want %d / %d: %w",
				c, len(src[c]), len(dst[c]), r.inFrames, r.outFrames, ErrFrameMismatch)
		}
	}

	for c := range r.channels {
		in := src[c]
		if r.kernel != nil {
			in = r.lowPass(c, in)
		}
		if r.inFrames == r.outFrames {
			copy(dst[c], in)
		} else {
			r.interpolate(dst[c], in, r.lastSamples[c])
		}
		r.lastSamples[c] = in[r.inFrames-1]
	}
	return nil
}

// lowPass filters one channel block against its history. The returned slice
// is reused by the next call.
func (r *Resampler) lowPass(c int, src []float64) []float64 {
	hist := r.history[c]
	r.ext = append(append(r.ext[:0], hist...), src...)
	f64.ConvolveValid(r.filtered, r.ext, r.kernel)
	copy(hist, r.ext[len(r.ext)-len(hist):])
	return r.filtered
}

// lowPassKernel designs a Blackman-windowed sinc low-pass for decimating
// inputRate to outputRate, normalized to unity gain at DC. The kernel is
// symmetric, so it needs no reversal for ConvolveValid.
func lowPassKernel(inputRate, outputRate uint32) []float64 {
	ratio := float64(inputRate) / float64(outputRate)
	taps := antiAliasTapsPerRatio*int(math.Ceil(ratio)) + 1
	// cycles per input sample
	fc := antiAliasCutoff * 0.5 / ratio

	kernel := make([]float64, taps)
	center := float64(taps-1) / 2
	for n := range taps {
		x := float64(n) - center
		sinc := 2 * fc
		if x != 0 {
			sinc = math.Sin(2*math.Pi*fc*x) / (math.Pi * x)
		}
		w := 0.42 - 0.5*math.Cos(2*math.Pi*float64(n)/float64(taps-1)) +
			0.08*math.Cos(4*math.Pi*float64(n)/float64(taps-1))
		kernel[n] = sinc * w
	}
	f64.Scale(kernel, kernel, 1/f64.Sum(kernel))
	return kernel
}

// interpolate maps output frame i to input position (i+1)*step - 1, so the
// final output frame lands on the final input frame and the first ones blend
// with the previous block's tail.
func (r *Resampler) interpolate(dst, src []float64, last float64) {
	at := func(idx int) float64 {
		switch {
		case idx < 0:
			return last
		case idx >= len(src):
			return src[len(src)-1]
		default:
			return src[idx]
		}
	}

	for i := range dst {
		pos := float64(i+1)*r.step - 1
		idx := int(math.Floor(pos))
		frac := pos - float64(idx)
		if frac == 0 {
			dst[i] = at(idx)
			continue
		}
		dst[i] = at(idx)*(1-frac) + at(idx+1)*frac
	}
}

// Reset forgets the stored tail so the next block starts from silence.
func (r *Resampler) Reset() {
	clear(r.lastSamples)
	for _, h := range r.history {
		clear(h)
	}
}
