package codec

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"testing"
	"time"

	"github.com/pion/opus"
	"github.com/pion/opus/pkg/oggreader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/voxroom/dsp"
)

// audioPackets returns the Opus audio packets of an Ogg file, skipping the
// OpusTags page.
func audioPackets(t *testing.T, path string) [][]byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	ogg, _, err := oggreader.NewWith(bytes.NewReader(data))
	require.NoError(t, err)

	var packets [][]byte
	for {
		segments, _, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		if bytes.HasPrefix(segments[0], []byte("OpusTags")) {
			continue
		}
		packets = append(packets, segments...)
	}
	require.NotEmpty(t, packets)
	return packets
}

func TestParseTOC(t *testing.T) {
	tests := []struct {
		name      string
		packet    []byte
		mode      Mode
		stereo    bool
		frames    int
		duration  time.Duration
		expectErr error
	}{
		{name: "silk 20ms mono", packet: []byte{1 << 3}, mode: ModeSILK, frames: 1, duration: 20 * time.Millisecond},
		{name: "silk 60ms stereo", packet: []byte{3<<3 | 0x04}, mode: ModeSILK, stereo: true, frames: 1, duration: 60 * time.Millisecond},
		{name: "silk two frames", packet: []byte{9<<3 | 0x01}, mode: ModeSILK, frames: 2, duration: 40 * time.Millisecond},
		{name: "hybrid 10ms", packet: []byte{12 << 3}, mode: ModeHybrid, frames: 1, duration: 10 * time.Millisecond},
		{name: "celt 2.5ms", packet: []byte{16 << 3}, mode: ModeCELT, frames: 1, duration: 2500 * time.Microsecond},
		{name: "celt code 3", packet: []byte{31<<3 | 0x03, 3}, mode: ModeCELT, frames: 3, duration: 60 * time.Millisecond},
		{name: "empty", packet: nil, expectErr: ErrEmptyPacket},
		{name: "code 3 truncated", packet: []byte{0x03}, expectErr: ErrMalformedPacket},
		{name: "code 3 zero frames", packet: []byte{0x03, 0}, expectErr: ErrMalformedPacket},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toc, err := ParseTOC(tt.packet)
			if tt.expectErr != nil {
				assert.ErrorIs(t, err, tt.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.mode, toc.Mode())
			assert.Equal(t, tt.stereo, toc.Stereo)
			assert.Equal(t, tt.frames, toc.Frames)
			assert.Equal(t, tt.duration, toc.Duration())
		})
	}
}

func TestDecodeRejectsEmptyPacket(t *testing.T) {
	in := NewOpusIngress(nil)
	_, err := in.Decode(nil)
	assert.ErrorIs(t, err, ErrEmptyPacket)
}

func TestFrameRemix(t *testing.T) {
	stereo := Frame{Samples: []int16{100, 300, -200, -400}, Channels: 2, SampleRate: 16000}
	assert.Equal(t, 2, stereo.Frames())

	mono := stereo.Remix(1)
	assert.Equal(t, []int16{200, -300}, mono.Samples)
	assert.Equal(t, 1, mono.Channels)
	assert.Equal(t, 16000, mono.SampleRate)

	back := mono.Remix(2)
	assert.Equal(t, []int16{200, 200, -300, -300}, back.Samples)

	assert.Equal(t, stereo, stereo.Remix(2))
	assert.Equal(t, stereo, stereo.Remix(3))
	assert.Zero(t, Frame{}.Frames())
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "silk", ModeSILK.String())
	assert.Equal(t, "hybrid", ModeHybrid.String())
	assert.Equal(t, "celt", ModeCELT.String())
	assert.Equal(t, "mode(9)", Mode(9).String())
}

func TestDecodeWidebandPacket(t *testing.T) {
	packet := audioPackets(t, "testdata/tiny.ogg")[0]
	toc, err := ParseTOC(packet)
	require.NoError(t, err)
	require.Equal(t, ModeSILK, toc.Mode())
	require.Equal(t, 20*time.Millisecond, toc.Duration())

	f, err := NewOpusIngress(nil).Decode(packet)
	require.NoError(t, err)
	assert.Equal(t, 16000, f.SampleRate)
	assert.Equal(t, 1, f.Channels)
	assert.Equal(t, 320, f.Frames())

	// the raw decoder output is the same signal at 48 kHz, each sample
	// repeated three times
	raw := make([]byte, 960*2)
	ref := opus.NewDecoder()
	_, _, err = ref.Decode(packet, raw)
	require.NoError(t, err)
	nonZero := 0
	for i, s := range f.Samples {
		at := 6 * i
		want := int16(uint16(raw[at]) | uint16(raw[at+1])<<8)
		require.Equal(t, want, s, "sample %d", i)
		if s != 0 {
			nonZero++
		}
	}
	assert.Positive(t, nonZero)
}

func TestDecodeBlock(t *testing.T) {
	packet := audioPackets(t, "testdata/tiny.ogg")[0]
	native, err := NewOpusIngress(nil).Decode(packet)
	require.NoError(t, err)

	t.Run("native rate", func(t *testing.T) {
		dst := [][]float64{make([]float64, 320)}
		require.NoError(t, NewOpusIngress(nil).DecodeBlock(dst, packet, 16000))
		for i, s := range native.Samples {
			require.InDelta(t, float64(s)/32768, dst[0][i], 1e-9, "sample %d", i)
		}
	})

	t.Run("resampled to 48 kHz stereo", func(t *testing.T) {
		dst := [][]float64{make([]float64, 960), make([]float64, 960)}
		require.NoError(t, NewOpusIngress(nil).DecodeBlock(dst, packet, 48000))
		assert.Equal(t, dst[0], dst[1])

		// upsampling lands every third output frame on a coded sample
		for i := 1; i < 320; i++ {
			require.InDelta(t, float64(native.Samples[i-1])/32768, dst[0][3*i-1], 1e-9, "frame %d", i)
		}
	})

	t.Run("block too short", func(t *testing.T) {
		dst := [][]float64{make([]float64, 480)}
		err := NewOpusIngress(nil).DecodeBlock(dst, packet, 48000)
		assert.ErrorIs(t, err, ErrBlockMismatch)

		dst = [][]float64{make([]float64, 160)}
		err = NewOpusIngress(nil).DecodeBlock(dst, packet, 16000)
		assert.ErrorIs(t, err, ErrBlockMismatch)
	})

	t.Run("bad channel count", func(t *testing.T) {
		err := NewOpusIngress(nil).DecodeBlock(nil, packet, 16000)
		assert.ErrorIs(t, err, dsp.ErrInvalidChannels)
	})

	var sum float64
	for _, s := range native.Samples {
		sum += float64(s) * float64(s)
	}
	assert.Greater(t, math.Sqrt(sum/float64(len(native.Samples))), 1.0)
}
