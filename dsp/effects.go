package dsp

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"github.com/tphakala/simd/f64"

	"github.com/opd-ai/voxroom/logging"
)

// AudioEffect defines the interface for audio processing effects.
//
// Effects process one block of normalized float64 samples in place and
// return the processed block. Effects may keep state between blocks.
type AudioEffect interface {
	// Process applies the effect to samples. The returned slice aliases
	// samples.
	Process(samples []float64) ([]float64, error)

	// GetName returns a short name for logging.
	GetName() string

	// Reset drops any state carried between blocks.
	Reset()

	// Close releases resources held by the effect.
	Close() error
}

// GainEffect applies a fixed linear gain.
type GainEffect struct {
	gain float64
}

// NewGainEffect creates a gain effect. Gain must be non-negative.
func NewGainEffect(gain float64) (*GainEffect, error) {
	if gain < 0 || math.IsNaN(gain) || math.IsInf(gain, 0) {
		return nil, fmt.Errorf("gain must be a finite non-negative number: %f", gain)
	}
	return &GainEffect{gain: gain}, nil
}

// NewUnityGain creates a gain effect that starts at 1.
func NewUnityGain() *GainEffect {
	return &GainEffect{gain: 1}
}

// Process scales samples by the configured gain.
func (g *GainEffect) Process(samples []float64) ([]float64, error) {
	if g.gain != 1 && len(samples) > 0 {
		f64.Scale(samples, samples, g.gain)
	}
	return samples, nil
}

// GetName returns the effect name.
func (g *GainEffect) GetName() string {
	return fmt.Sprintf("Gain(%.2f)", g.gain)
}

// SetGain updates the gain.
func (g *GainEffect) SetGain(gain float64) error {
	if gain < 0 || math.IsNaN(gain) || math.IsInf(gain, 0) {
		return fmt.Errorf("gain must be a finite non-negative number: %f", gain)
	}
	g.gain = gain
	return nil
}

// GetGain returns the current gain.
func (g *GainEffect) GetGain() float64 { return g.gain }

// Reset is a no-op; gain carries no state.
func (g *GainEffect) Reset() {}

// Close is a no-op.
func (g *GainEffect) Close() error { return nil }

// AutoGainEffect implements automatic gain control with a smoothed peak
// follower. The gain rises quickly toward targetLevel/peak and falls slowly,
// limited to [minGain, maxGain].
type AutoGainEffect struct {
	targetLevel float64 // target peak level (0.0 to 1.0)
	currentGain float64
	peakLevel   float64 // smoothed peak level
	attackRate  float64 // gain increase per sample
	releaseRate float64 // gain decrease per sample
	minGain     float64
	maxGain     float64
	log         *logrus.Entry
}

// NewAutoGainEffect creates an AGC stage tuned for speech: target peak 0.3,
// gain limited to -20 dB .. +12 dB.
func NewAutoGainEffect(log *logrus.Entry) *AutoGainEffect {
	a := &AutoGainEffect{
		targetLevel: 0.3,
		currentGain: 1.0,
		attackRate:  0.001,
		releaseRate: 0.0001,
		minGain:     0.1,
		maxGain:     4.0,
		log:         logging.Component(log, "agc"),
	}
	logging.For(a.log, "NewAutoGainEffect").WithFields(logrus.Fields{
		"target_level": a.targetLevel,
		"min_gain":     a.minGain,
		"max_gain":     a.maxGain,
	}).Debug("Auto gain control created")
	return a
}

// Process measures the block peak, moves the gain toward the desired value
// and applies it.
func (a *AutoGainEffect) Process(samples []float64) ([]float64, error) {
	if len(samples) == 0 {
		return samples, nil
	}

	peak := 0.0
	for _, s := range samples {
		if v := math.Abs(s); v > peak {
			peak = v
		}
	}
	if peak > a.peakLevel {
		a.peakLevel += (peak - a.peakLevel) * 0.1
	} else {
		a.peakLevel += (peak - a.peakLevel) * 0.01
	}

	desired := a.maxGain
	if a.peakLevel > 0.001 {
		desired = a.targetLevel / a.peakLevel
	}
	desired = math.Min(math.Max(desired, a.minGain), a.maxGain)

	n := float64(len(samples))
	if desired > a.currentGain {
		a.currentGain = math.Min(a.currentGain+a.attackRate*n, desired)
	} else {
		a.currentGain = math.Max(a.currentGain-a.releaseRate*n, desired)
	}

	f64.Scale(samples, samples, a.currentGain)
	return samples, nil
}

// GetName returns the effect name.
func (a *AutoGainEffect) GetName() string {
	return fmt.Sprintf("AutoGain(%.2f)", a.currentGain)
}

// GetCurrentGain returns the gain applied to the last block.
func (a *AutoGainEffect) GetCurrentGain() float64 { return a.currentGain }

// SetTargetLevel updates the target peak level.
func (a *AutoGainEffect) SetTargetLevel(level float64) error {
	if level < 0 || level > 1 {
		return fmt.Errorf("target level must be between 0.0 and 1.0: %f", level)
	}
	a.targetLevel = level
	return nil
}

// Reset returns to unity gain.
func (a *AutoGainEffect) Reset() {
	a.currentGain = 1
	a.peakLevel = 0
}

// Close is a no-op.
func (a *AutoGainEffect) Close() error { return nil }
