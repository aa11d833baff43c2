// Package pcm converts between the caller-facing sample formats (int16,
// float32, float64, go-audio buffers; interleaved or planar) and the
// per-channel normalized float64 blocks the engine processes internally.
//
// Internally a sample of 1.0 is full scale. int16 input is divided by 32768
// and int16 output is multiplied by 32768, rounded and saturated, so an int16
// block survives a round trip unchanged.
package pcm

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-audio/audio"
	"github.com/tphakala/simd/f64"
)

// ErrUnsupportedBuffer indicates a go-audio buffer type the engine cannot read.
var ErrUnsupportedBuffer = errors.New("unsupported audio buffer")

// Sample is one of the caller-facing sample types.
type Sample interface {
	int16 | float32 | float64
}

const int16Scale = 32768.0

func isInt16[T Sample]() bool {
	var zero T
	_, ok := any(zero).(int16)
	return ok
}

// Decode splits src into per-channel float64 slices. dst supplies one slice
// per channel, each len(dst[c]) frames long; src must hold at least
// channels*frames samples laid out interleaved (LRLR) or planar (LL..RR).
func Decode[T Sample](dst [][]float64, src []T, interleaved bool) {
	channels := len(dst)
	if channels == 0 {
		return
	}
	frames := len(dst[0])
	scale := 1.0
	if isInt16[T]() {
		scale = 1 / int16Scale
	}

	for c := range channels {
		out := dst[c]
		if interleaved {
			for i := range frames {
				out[i] = float64(src[i*channels+c]) * scale
			}
			continue
		}
		plane := src[c*frames : (c+1)*frames]
		for i, v := range plane {
			out[i] = float64(v) * scale
		}
	}
}

// Encode writes per-channel blocks into dst, saturating every sample to the
// representable range of T. Float outputs are clamped to [-1, 1]. It returns
// the number of samples that had to be clipped, and scratch, grown if needed
// to interleave a stereo block, for reuse by the next call.
func Encode[T Sample](dst []T, src [][]float64, interleaved bool, scratch []float64) (int, []float64) {
	channels := len(src)
	if channels == 0 {
		return 0, scratch
	}
	frames := len(src[0])
	toInt := isInt16[T]()
	clipped := 0

	put := func(idx int, v float64) {
		if toInt {
			s := math.Round(v * int16Scale)
			if s > math.MaxInt16 {
				s = math.MaxInt16
				clipped++
			} else if s < math.MinInt16 {
				s = math.MinInt16
				clipped++
			}
			dst[idx] = T(s)
			return
		}
		if v > 1 {
			v = 1
			clipped++
		} else if v < -1 {
			v = -1
			clipped++
		}
		dst[idx] = T(v)
	}

	if !interleaved || channels == 1 {
		for c := range channels {
			for i, v := range src[c] {
				put(c*frames+i, v)
			}
		}
		return clipped, scratch
	}

	scratch = Interleave(scratch, src)
	for i, v := range scratch {
		put(i, v)
	}
	return clipped, scratch
}

// Interleave packs per-channel blocks into one LRLR slice, reusing dst when
// it is large enough.
func Interleave(dst []float64, src [][]float64) []float64 {
	channels := len(src)
	if channels == 0 {
		return dst[:0]
	}
	frames := len(src[0])
	n := channels * frames
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]

	if channels == 2 {
		f64.Interleave2(dst, src[0], src[1])
		return dst
	}
	for c := range channels {
		for i, v := range src[c] {
			dst[i*channels+c] = v
		}
	}
	return dst
}

// Alloc returns channels zeroed blocks of frames samples backed by one array.
func Alloc(channels, frames int) [][]float64 {
	backing := make([]float64, channels*frames)
	out := make([][]float64, channels)
	for c := range out {
		out[c] = backing[c*frames : (c+1)*frames : (c+1)*frames]
	}
	return out
}

// Zero clears every channel block.
func Zero(blocks [][]float64) {
	for _, b := range blocks {
		clear(b)
	}
}

// Downmix averages channels into dst.
func Downmix(dst []float64, src [][]float64) {
	switch len(src) {
	case 0:
		clear(dst)
	case 1:
		copy(dst, src[0])
	default:
		inv := 1 / float64(len(src))
		for i := range dst {
			var sum float64
			for c := range src {
				sum += src[c][i]
			}
			dst[i] = sum * inv
		}
	}
}

// RMS returns the root mean square level of x.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(f64.DotProduct(x, x) / float64(len(x)))
}

// Silent reports whether every sample of x is exactly zero.
func Silent(x []float64) bool {
	for _, v := range x {
		if v != 0 {
			return false
		}
	}
	return true
}

// FromBuffer extracts interleaved normalized samples from a go-audio buffer.
// Integer buffers are scaled by their source bit depth, 16 when unset.
func FromBuffer(buf audio.Buffer) (data []float64, channels, sampleRate int, err error) {
	if buf == nil {
		return nil, 0, 0, fmt.Errorf("nil buffer: %w", ErrUnsupportedBuffer)
	}
	format := buf.PCMFormat()
	if format == nil {
		return nil, 0, 0, fmt.Errorf("buffer without format: %w", ErrUnsupportedBuffer)
	}

	switch b := buf.(type) {
	case *audio.IntBuffer:
		depth := b.SourceBitDepth
		if depth <= 0 {
			depth = 16
		}
		scale := 1 / math.Ldexp(1, depth-1)
		data = make([]float64, len(b.Data))
		for i, v := range b.Data {
			data[i] = float64(v) * scale
		}
	case *audio.FloatBuffer:
		data = make([]float64, len(b.Data))
		copy(data, b.Data)
	case *audio.Float32Buffer:
		data = make([]float64, len(b.Data))
		for i, v := range b.Data {
			data[i] = float64(v)
		}
	default:
		return nil, 0, 0, fmt.Errorf("%T: %w", buf, ErrUnsupportedBuffer)
	}
	return data, format.NumChannels, format.SampleRate, nil
}

// ToIntBuffer packs per-channel blocks into an interleaved go-audio integer
// buffer at the given bit depth.
func ToIntBuffer(src [][]float64, sampleRate, bitDepth int) *audio.IntBuffer {
	flat := Interleave(nil, src)
	full := math.Ldexp(1, bitDepth-1)
	data := make([]int, len(flat))
	for i, v := range flat {
		s := math.Round(v * full)
		if s > full-1 {
			s = full - 1
		} else if s < -full {
			s = -full
		}
		data[i] = int(s)
	}
	return &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: len(src), SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
}
