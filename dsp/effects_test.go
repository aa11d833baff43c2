package dsp

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/voxroom/pcm"
)

func sine(n int, freq, amp float64, rate int, phase int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i+phase)/float64(rate))
	}
	return out
}

func peakOf(x []float64) float64 {
	p := 0.0
	for _, v := range x {
		p = math.Max(p, math.Abs(v))
	}
	return p
}

func TestGainEffect(t *testing.T) {
	g, err := NewGainEffect(0.5)
	require.NoError(t, err)

	out, err := g.Process([]float64{1, -0.5, 0.25})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, -0.25, 0.125}, out, 1e-12)

	require.NoError(t, g.SetGain(2))
	assert.Equal(t, 2.0, g.GetGain())
	assert.Error(t, g.SetGain(-1))
	assert.Error(t, g.SetGain(math.NaN()))

	_, err = NewGainEffect(-0.1)
	assert.Error(t, err)
	assert.Equal(t, "Gain(2.00)", g.GetName())
}

func TestUnityGain(t *testing.T) {
	g := NewUnityGain()
	assert.Equal(t, 1.0, g.GetGain())

	in := []float64{0.5, -0.25}
	out, err := g.Process(in)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -0.25}, out)
}

func TestAutoGainRaisesQuietSpeech(t *testing.T) {
	agc := NewAutoGainEffect(nil)

	var last []float64
	for b := range 60 {
		block := sine(480, 300, 0.05, 48000, b*480)
		out, err := agc.Process(block)
		require.NoError(t, err)
		last = out
	}

	assert.Greater(t, agc.GetCurrentGain(), 3.0)
	assert.Greater(t, peakOf(last), 0.15)
}

func TestAutoGainLowersLoudSpeech(t *testing.T) {
	agc := NewAutoGainEffect(nil)

	var last []float64
	for b := range 60 {
		out, err := agc.Process(sine(480, 300, 0.9, 48000, b*480))
		require.NoError(t, err)
		last = out
	}

	assert.Less(t, agc.GetCurrentGain(), 0.5)
	assert.Less(t, peakOf(last), 0.5)

	agc.Reset()
	assert.Equal(t, 1.0, agc.GetCurrentGain())
	assert.Error(t, agc.SetTargetLevel(1.5))
	assert.NoError(t, agc.SetTargetLevel(0.5))
}

func TestNoiseSuppressorValidation(t *testing.T) {
	_, err := NewNoiseSuppressor(1.5, 512, nil)
	assert.Error(t, err)
	_, err = NewNoiseSuppressor(0.5, 500, nil)
	assert.Error(t, err)
	_, err = NewNoiseSuppressor(0.5, 32, nil)
	assert.Error(t, err)
}

func TestNoiseSuppressorDelaysWhileLearning(t *testing.T) {
	ns, err := NewNoiseSuppressor(1.0, 512, nil)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(7, 11))
	var in, out []float64
	// 4 blocks stay inside the learning window, so audio passes unchanged
	for range 4 {
		block := make([]float64, 480)
		for i := range block {
			block[i] = rng.Float64()*2 - 1
		}
		in = append(in, block...)
		cp := append([]float64(nil), block...)
		processed, err := ns.Process(cp)
		require.NoError(t, err)
		out = append(out, processed...)
	}

	for m := 512; m < len(out); m++ {
		require.InDelta(t, in[m-512], out[m], 1e-9, "sample %d", m)
	}
	for m := range 512 {
		require.InDelta(t, 0, out[m], 1e-12)
	}
}

func TestNoiseSuppressorReducesStationaryNoise(t *testing.T) {
	ns, err := NewNoiseSuppressor(1.0, 512, nil)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 2))
	var inTail, outTail []float64
	for b := range 100 {
		block := make([]float64, 480)
		for i := range block {
			block[i] = (rng.Float64()*2 - 1) * 0.1
		}
		if b >= 80 {
			inTail = append(inTail, block...)
		}
		processed, err := ns.Process(block)
		require.NoError(t, err)
		if b >= 80 {
			outTail = append(outTail, processed...)
		}
	}

	assert.Less(t, pcm.RMS(outTail), 0.6*pcm.RMS(inTail))

	ns.Reset()
	assert.Equal(t, 0, ns.frameCount)
}

func TestAutoEqualizerBrightensDullVoice(t *testing.T) {
	eq, err := NewAutoEqualizer(48000, nil)
	require.NoError(t, err)

	for b := range 100 {
		low := sine(480, 200, 0.5, 48000, b*480)
		high := sine(480, 4000, 0.01, 48000, b*480)
		for i := range low {
			low[i] += high[i]
		}
		_, err := eq.Process(low)
		require.NoError(t, err)
	}
	assert.Greater(t, eq.ShelfGain(), 1.5)
}

func TestAutoEqualizerSoftensHarshVoice(t *testing.T) {
	eq, err := NewAutoEqualizer(48000, nil)
	require.NoError(t, err)

	for b := range 100 {
		high := sine(480, 6000, 0.5, 48000, b*480)
		low := sine(480, 200, 0.01, 48000, b*480)
		for i := range high {
			high[i] += low[i]
		}
		_, err := eq.Process(high)
		require.NoError(t, err)
	}
	assert.Less(t, eq.ShelfGain(), 0.7)

	eq.Reset()
	assert.Equal(t, 1.0, eq.ShelfGain())
}

func TestAutoEqualizerSilenceKeepsFlat(t *testing.T) {
	eq, err := NewAutoEqualizer(16000, nil)
	require.NoError(t, err)

	out, err := eq.Process(make([]float64, 480))
	require.NoError(t, err)
	assert.True(t, pcm.Silent(out))
	assert.Equal(t, 1.0, eq.ShelfGain())

	_, err = NewAutoEqualizer(0, nil)
	assert.Error(t, err)
}

type failingEffect struct{}

func (failingEffect) Process(s []float64) ([]float64, error) { return s, errors.New("broken") }
func (failingEffect) GetName() string                        { return "failing" }
func (failingEffect) Reset()                                 {}
func (failingEffect) Close() error                           { return nil }

func TestEnhancementChainStages(t *testing.T) {
	chain, err := NewEnhancementChain(48000, nil)
	require.NoError(t, err)
	require.Equal(t, 3, chain.GetEffectCount())

	names := chain.GetEffectNames()
	assert.Contains(t, names[0], "NoiseSuppressor")
	assert.Contains(t, names[1], "AutoGain")
	assert.Contains(t, names[2], "AutoEQ")

	in := sine(480, 300, 0.05, 48000, 0)
	block := append([]float64(nil), in...)
	out, err := chain.Process(block)
	require.NoError(t, err)
	assert.Equal(t, in, out, "disabled stages pass audio through")

	chain.SetEnabled(StageAGC, true)
	assert.True(t, chain.Enabled(StageAGC))
	assert.False(t, chain.Enabled(StageANC))
	for b := range 20 {
		out, err = chain.Process(sine(480, 300, 0.05, 48000, b*480))
		require.NoError(t, err)
	}
	assert.Greater(t, peakOf(out), 0.06)

	chain.SetEnabled(Stage(9), true)
	assert.False(t, chain.Enabled(Stage(9)))
	require.NoError(t, chain.Close())
	assert.Equal(t, 0, chain.GetEffectCount())
}

func TestEffectChainStopsOnError(t *testing.T) {
	chain := NewEffectChain(nil)
	g, err := NewGainEffect(2)
	require.NoError(t, err)
	chain.AddEffect(failingEffect{})
	chain.AddEffect(g)

	out, err := chain.Process([]float64{0.25})
	assert.Error(t, err)
	assert.Equal(t, []float64{0.25}, out)
}
