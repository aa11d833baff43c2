package dsp

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/sirupsen/logrus"
	"github.com/tphakala/simd/f64"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/opd-ai/voxroom/logging"
)

const (
	noiseLearnFrames = 10
	overSubtraction  = 2.0
	spectralFloor    = 0.1
	noiseTrackAlpha  = 0.98
)

// NoiseSuppressor removes stationary background noise by spectral
// subtraction.
//
// The stream is cut into 50% overlapping frames under a square-root Hann
// window, transformed, attenuated bin by bin against a running noise floor
// estimate, and overlap-added back. Output lags input by one frame.
// The noise floor is learned from the first frames and afterwards follows
// frames whose energy stays close to the floor.
type NoiseSuppressor struct {
	level     float64
	frameSize int
	hop       int
	window    []float64
	fft       *fourier.FFT

	inFifo  []float64
	outFifo []float64
	overlap []float64

	frame      []float64
	spectrum   []complex128
	magnitude  []float64
	noiseFloor []float64
	frameCount int

	log *logrus.Entry
}

// NewNoiseSuppressor creates a noise suppressor. level is the suppression
// strength in [0,1]; frameSize must be a power of two in [64,4096].
func NewNoiseSuppressor(level float64, frameSize int, log *logrus.Entry) (*NoiseSuppressor, error) {
	log = logging.Component(log, "anc")
	if level < 0 || level > 1 {
		return nil, fmt.Errorf("suppression level must be between 0.0 and 1.0: %f", level)
	}
	if frameSize < 64 || frameSize > 4096 || frameSize&(frameSize-1) != 0 {
		return nil, fmt.Errorf("frame size must be power of 2 between 64 and 4096: %d", frameSize)
	}

	window := make([]float64, frameSize)
	for i := range window {
		hann := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(frameSize)))
		window[i] = math.Sqrt(hann)
	}

	ns := &NoiseSuppressor{
		level:      level,
		frameSize:  frameSize,
		hop:        frameSize / 2,
		window:     window,
		fft:        fourier.NewFFT(frameSize),
		frame:      make([]float64, frameSize),
		spectrum:   make([]complex128, frameSize/2+1),
		magnitude:  make([]float64, frameSize/2+1),
		noiseFloor: make([]float64, frameSize/2+1),
		overlap:    make([]float64, frameSize),
		log:        log,
	}
	ns.Reset()

	logging.For(log, "NewNoiseSuppressor").WithFields(logrus.Fields{
		"level":      level,
		"frame_size": frameSize,
	}).Debug("Noise suppressor created")
	return ns, nil
}

// Process suppresses noise in samples. The block is replaced by the
// suppressed stream delayed by one frame.
func (ns *NoiseSuppressor) Process(samples []float64) ([]float64, error) {
	if len(samples) == 0 {
		return samples, nil
	}

	ns.inFifo = append(ns.inFifo, samples...)
	for len(ns.inFifo) >= ns.frameSize {
		ns.processFrame(ns.inFifo[:ns.frameSize])
		ns.outFifo = append(ns.outFifo, ns.overlap[:ns.hop]...)
		copy(ns.overlap, ns.overlap[ns.hop:])
		clear(ns.overlap[ns.frameSize-ns.hop:])
		ns.inFifo = append(ns.inFifo[:0], ns.inFifo[ns.hop:]...)
	}

	n := copy(samples, ns.outFifo)
	ns.outFifo = append(ns.outFifo[:0], ns.outFifo[n:]...)
	return samples, nil
}

func (ns *NoiseSuppressor) processFrame(in []float64) {
	for i, v := range in {
		ns.frame[i] = v * ns.window[i]
	}
	ns.spectrum = ns.fft.Coefficients(ns.spectrum, ns.frame)

	for i, c := range ns.spectrum {
		ns.magnitude[i] = cmplx.Abs(c)
	}
	ns.trackNoiseFloor()

	if ns.frameCount >= noiseLearnFrames {
		for i, mag := range ns.magnitude {
			if mag == 0 {
				continue
			}
			sub := mag - overSubtraction*ns.level*ns.noiseFloor[i]
			if limit := spectralFloor * mag; sub < limit {
				sub = limit
			}
			ns.spectrum[i] *= complex(sub/mag, 0)
		}
	}

	ns.frame = ns.fft.Sequence(ns.frame, ns.spectrum)
	scale := 1 / float64(ns.frameSize)
	for i, v := range ns.frame {
		ns.overlap[i] += v * scale * ns.window[i]
	}
}

// trackNoiseFloor learns the floor over the first frames, then keeps
// following it through frames that look like background only.
func (ns *NoiseSuppressor) trackNoiseFloor() {
	if ns.frameCount < noiseLearnFrames {
		for i, mag := range ns.magnitude {
			if ns.frameCount == 0 {
				ns.noiseFloor[i] = mag
			} else {
				ns.noiseFloor[i] = 0.8*ns.noiseFloor[i] + 0.2*mag
			}
		}
		ns.frameCount++
		if ns.frameCount == noiseLearnFrames {
			logging.For(ns.log, "NoiseSuppressor.trackNoiseFloor").Debug("Noise floor estimation completed")
		}
		return
	}

	frameEnergy := f64.DotProduct(ns.magnitude, ns.magnitude)
	floorEnergy := f64.DotProduct(ns.noiseFloor, ns.noiseFloor)
	if frameEnergy <= 2*floorEnergy {
		for i, mag := range ns.magnitude {
			ns.noiseFloor[i] = noiseTrackAlpha*ns.noiseFloor[i] + (1-noiseTrackAlpha)*mag
		}
	}
}

// GetName returns the effect name.
func (ns *NoiseSuppressor) GetName() string {
	return fmt.Sprintf("NoiseSuppressor(%.2f)", ns.level)
}

// Reset clears the stream buffers and the learned noise floor.
func (ns *NoiseSuppressor) Reset() {
	ns.inFifo = make([]float64, ns.frameSize-ns.hop, 4*ns.frameSize)
	ns.outFifo = make([]float64, ns.hop, 4*ns.frameSize)
	clear(ns.overlap)
	clear(ns.noiseFloor)
	ns.frameCount = 0
}

// Close is a no-op.
func (ns *NoiseSuppressor) Close() error { return nil }
