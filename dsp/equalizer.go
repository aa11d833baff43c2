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
	eqAnalysisSize   = 512
	eqCrossoverHz    = 2000.0
	eqTargetTilt     = 0.25 // high/low band energy ratio of balanced speech
	eqMaxShelfDB     = 6.0
	eqSmoothing      = 0.9
	eqMinBlockEnergy = 1e-8
)

// AutoEqualizer balances the spectral tilt of a voice.
//
// Each block is analysed with an FFT and the energy above the crossover is
// compared with the energy below it. The smoothed ratio drives a first order
// high shelf toward eqTargetTilt, so dull microphones are brightened and
// harsh ones are softened by at most eqMaxShelfDB.
type AutoEqualizer struct {
	sampleRate int
	fft        *fourier.FFT
	window     []float64
	frame      []float64
	spectrum   []complex128
	splitBin   int

	tilt      float64 // smoothed high/low energy ratio
	shelfGain float64 // linear gain of the high band
	lpAlpha   float64
	lpState   float64

	log *logrus.Entry
}

// NewAutoEqualizer creates an equalizer for the given sample rate.
func NewAutoEqualizer(sampleRate int, log *logrus.Entry) (*AutoEqualizer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid equalizer sample rate: %d", sampleRate)
	}
	log = logging.Component(log, "aeq")

	window := make([]float64, eqAnalysisSize)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(eqAnalysisSize-1)))
	}

	crossover := math.Min(eqCrossoverHz, float64(sampleRate)/4)
	split := int(crossover * eqAnalysisSize / float64(sampleRate))

	eq := &AutoEqualizer{
		sampleRate: sampleRate,
		fft:        fourier.NewFFT(eqAnalysisSize),
		window:     window,
		frame:      make([]float64, eqAnalysisSize),
		spectrum:   make([]complex128, eqAnalysisSize/2+1),
		splitBin:   max(split, 1),
		lpAlpha:    1 - math.Exp(-2*math.Pi*crossover/float64(sampleRate)),
		log:        log,
	}
	eq.Reset()

	logging.For(log, "NewAutoEqualizer").WithFields(logrus.Fields{
		"sample_rate":  sampleRate,
		"crossover_hz": crossover,
	}).Debug("Auto equalizer created")
	return eq, nil
}

// Process analyses the block and applies the current shelf.
func (eq *AutoEqualizer) Process(samples []float64) ([]float64, error) {
	if len(samples) == 0 {
		return samples, nil
	}
	eq.analyse(samples)

	for i, x := range samples {
		eq.lpState += eq.lpAlpha * (x - eq.lpState)
		samples[i] = eq.lpState + eq.shelfGain*(x-eq.lpState)
	}
	return samples, nil
}

func (eq *AutoEqualizer) analyse(samples []float64) {
	src := samples
	if len(src) > eqAnalysisSize {
		src = src[len(src)-eqAnalysisSize:]
	}
	dc := f64.Sum(src) / float64(len(src))
	clear(eq.frame)
	for i, v := range src {
		eq.frame[i] = (v - dc) * eq.window[i]
	}
	eq.spectrum = eq.fft.Coefficients(eq.spectrum, eq.frame)

	var low, high float64
	for i, c := range eq.spectrum {
		if i == 0 {
			continue
		}
		p := cmplx.Abs(c)
		p *= p
		if i < eq.splitBin {
			low += p
		} else {
			high += p
		}
	}
	if low+high < eqMinBlockEnergy || low == 0 {
		return
	}

	eq.tilt = eqSmoothing*eq.tilt + (1-eqSmoothing)*(high/low)

	// amplitude correction that would bring the tilt to target
	correctionDB := 10 * math.Log10(eqTargetTilt/math.Max(eq.tilt, 1e-6)) / 2
	correctionDB = math.Max(-eqMaxShelfDB, math.Min(eqMaxShelfDB, correctionDB))
	eq.shelfGain = math.Pow(10, correctionDB/20)
}

// ShelfGain returns the linear gain currently applied above the crossover.
func (eq *AutoEqualizer) ShelfGain() float64 { return eq.shelfGain }

// GetName returns the effect name.
func (eq *AutoEqualizer) GetName() string {
	return fmt.Sprintf("AutoEQ(%+.1fdB)", 20*math.Log10(eq.shelfGain))
}

// Reset returns to a flat response.
func (eq *AutoEqualizer) Reset() {
	eq.tilt = eqTargetTilt
	eq.shelfGain = 1
	eq.lpState = 0
}

// Close is a no-op.
func (eq *AutoEqualizer) Close() error { return nil }
