package dsp

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/voxroom/logging"
)

// Stage indexes the standard enhancement chain built by NewEnhancementChain.
type Stage int

// Enhancement stages in processing order.
const (
	StageANC Stage = iota
	StageAGC
	StageAEQ
)

// noiseFrameSize is the FFT size of the ANC stage.
const noiseFrameSize = 512

// EffectChain manages an ordered sequence of audio effects, each of which
// can be switched off. A disabled effect passes audio through untouched and
// keeps its state frozen.
type EffectChain struct {
	mu      sync.Mutex
	effects []AudioEffect
	enabled []bool
	log     *logrus.Entry
}

// NewEffectChain creates an empty chain.
func NewEffectChain(log *logrus.Entry) *EffectChain {
	return &EffectChain{log: logging.Component(log, "effect_chain")}
}

// NewEnhancementChain builds the ANC → AGC → AEQ chain for a stream at
// sampleRate with every stage disabled.
func NewEnhancementChain(sampleRate int, log *logrus.Entry) (*EffectChain, error) {
	anc, err := NewNoiseSuppressor(1.0, noiseFrameSize, log)
	if err != nil {
		return nil, fmt.Errorf("create noise suppressor: %w", err)
	}
	aeq, err := NewAutoEqualizer(sampleRate, log)
	if err != nil {
		return nil, fmt.Errorf("create equalizer: %w", err)
	}

	chain := NewEffectChain(log)
	chain.add(anc, false)
	chain.add(NewAutoGainEffect(log), false)
	chain.add(aeq, false)
	return chain, nil
}

// AddEffect appends an enabled effect to the end of the chain.
func (e *EffectChain) AddEffect(effect AudioEffect) {
	e.add(effect, true)
}

func (e *EffectChain) add(effect AudioEffect, enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.effects = append(e.effects, effect)
	e.enabled = append(e.enabled, enabled)
}

// SetEnabled switches the effect at stage on or off. Switching an effect on
// after it was off resets it so stale state does not leak into the stream.
func (e *EffectChain) SetEnabled(stage Stage, on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := int(stage)
	if i < 0 || i >= len(e.effects) {
		return
	}
	if on && !e.enabled[i] {
		e.effects[i].Reset()
	}
	e.enabled[i] = on
}

// Enabled reports whether the effect at stage is on.
func (e *EffectChain) Enabled(stage Stage) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := int(stage)
	return i >= 0 && i < len(e.enabled) && e.enabled[i]
}

// Process runs samples through every enabled effect in order. Processing
// stops at the first error.
func (e *EffectChain) Process(samples []float64) ([]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	for i, effect := range e.effects {
		if !e.enabled[i] {
			continue
		}
		samples, err = effect.Process(samples)
		if err != nil {
			logging.For(e.log, "EffectChain.Process").
				WithField("effect", effect.GetName()).
				WithError(err, "process").
				Error("Effect processing failed")
			return samples, fmt.Errorf("effect %s: %w", effect.GetName(), err)
		}
	}
	return samples, nil
}

// GetEffectCount returns the number of effects.
func (e *EffectChain) GetEffectCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.effects)
}

// GetEffectNames returns the names of the effects in order.
func (e *EffectChain) GetEffectNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, len(e.effects))
	for i, effect := range e.effects {
		names[i] = effect.GetName()
	}
	return names
}

// Reset resets every effect.
func (e *EffectChain) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, effect := range e.effects {
		effect.Reset()
	}
}

// Close closes every effect and empties the chain.
func (e *EffectChain) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	for _, effect := range e.effects {
		if err := effect.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.effects = nil
	e.enabled = nil
	return errors.Join(errs...)
}
