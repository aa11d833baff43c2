// Package dsp provides the per-participant signal processing of voxroom:
// sample rate conversion and the enhancement effect chain.
//
// # Architecture Overview
//
// Every participant input block flows through:
//
//	Input block → Resampler → NoiseSuppressor → AutoGain → AutoEqualizer → mix bus
//
// All processing works on normalized float64 blocks (1.0 is full scale).
//
// # Resampler
//
// Converts one block at the participant's input rate into exactly one block at
// the library output rate, interpolating linearly across block boundaries:
//
//	r, err := dsp.NewResampler(dsp.ResamplerConfig{
//	    InputRate:    16000,
//	    OutputRate:   48000,
//	    Channels:     1,
//	    OutputFrames: 480,
//	}, nil)
//	err = r.Process(out, in) // in: 160 frames, out: 480 frames
//
// # Effects
//
//   - GainEffect: fixed gain, used for the listener master gain
//   - NoiseSuppressor: spectral subtraction over a streaming overlap-add FFT
//   - AutoGainEffect: peak following automatic gain control
//   - AutoEqualizer: spectral tilt analysis driving a high shelf
//   - EffectChain: ordered stages that can each be switched off
//
// NewEnhancementChain builds the standard ANC → AGC → AEQ chain with every
// stage disabled:
//
//	chain, err := dsp.NewEnhancementChain(48000, nil)
//	chain.SetEnabled(dsp.StageAGC, true)
//	out, err := chain.Process(block)
//
// # Thread Safety
//
// Effects and resamplers hold streaming state and belong to one participant.
// EffectChain serializes its own Process calls.
package dsp
