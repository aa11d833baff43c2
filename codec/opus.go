// Package codec turns compressed participant audio into PCM blocks the
// engine can mix.
package codec

import (
	"errors"
	"fmt"
	"time"

	"github.com/pion/opus"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/voxroom/dsp"
	"github.com/opd-ai/voxroom/logging"
	"github.com/opd-ai/voxroom/pcm"
)

var (
	// ErrEmptyPacket indicates a nil or zero length packet.
	ErrEmptyPacket = errors.New("empty opus packet")

	// ErrMalformedPacket indicates a packet whose table of contents cannot
	// be parsed.
	ErrMalformedPacket = errors.New("malformed opus packet")

	// ErrBlockMismatch indicates a packet whose duration is not one block.
	ErrBlockMismatch = errors.New("packet does not fill one block")
)

const (
	// maxFrameSamples bounds one decoded packet: 120 ms of stereo audio at
	// 48 kHz.
	maxFrameSamples = 48000 * 120 / 1000 * 2

	// decoderUpsample is the factor by which the decoder repeats every coded
	// sample in its 48 kHz output.
	decoderUpsample = 3
)

// Frame is one decoded packet.
type Frame struct {
	// Samples are interleaved when Channels is 2.
	Samples    []int16
	Channels   int
	SampleRate int
}

// Frames returns the number of samples per channel.
func (f Frame) Frames() int {
	if f.Channels <= 0 {
		return 0
	}
	return len(f.Samples) / f.Channels
}

// Remix returns the frame converted to channels (1 or 2). Stereo becomes mono
// by averaging; mono becomes stereo by duplication.
func (f Frame) Remix(channels int) Frame {
	if channels == f.Channels || channels < 1 || channels > 2 {
		return f
	}
	n := f.Frames()
	out := Frame{Channels: channels, SampleRate: f.SampleRate}
	if channels == 1 {
		out.Samples = make([]int16, n)
		for i := range n {
			out.Samples[i] = int16((int32(f.Samples[2*i]) + int32(f.Samples[2*i+1])) / 2)
		}
		return out
	}
	out.Samples = make([]int16, 2*n)
	for i, s := range f.Samples[:n] {
		out.Samples[2*i] = s
		out.Samples[2*i+1] = s
	}
	return out
}

// OpusIngress decodes the Opus stream of one participant. It keeps decoder
// state between packets and must not be shared between streams.
type OpusIngress struct {
	decoder opus.Decoder
	buf     []byte
	rs      *dsp.Resampler
	rsKey   [4]int // coded rate, block rate, channels, block frames
	log     *logrus.Entry
}

// NewOpusIngress creates a decoder for one stream.
func NewOpusIngress(log *logrus.Entry) *OpusIngress {
	return &OpusIngress{
		decoder: opus.NewDecoder(),
		buf:     make([]byte, maxFrameSamples*2),
		log:     logging.Component(log, "opus"),
	}
}

// Decode decodes one packet into PCM at the rate implied by the packet's
// bandwidth.
func (o *OpusIngress) Decode(packet []byte) (Frame, error) {
	if len(packet) == 0 {
		return Frame{}, ErrEmptyPacket
	}
	toc, err := ParseTOC(packet)
	if err != nil {
		return Frame{}, err
	}

	bandwidth, stereo, err := o.decoder.Decode(packet, o.buf)
	if err != nil {
		logging.For(o.log, "Decode").WithError(err, "opus_decode").Debug("Opus decode failed")
		return Frame{}, fmt.Errorf("opus decode: %w", err)
	}

	channels := 1
	if stereo {
		channels = 2
	}
	rate := bandwidth.SampleRate()
	frames := int(int64(rate) * int64(toc.Duration()) / int64(time.Second))
	total := frames * channels
	if total*decoderUpsample*2 > len(o.buf) {
		return Frame{}, fmt.Errorf("%d samples at %d Hz: %w", total, rate, ErrMalformedPacket)
	}

	// keep one of every decoderUpsample repeats
	samples := make([]int16, total)
	for i := range samples {
		at := 2 * i * decoderUpsample
		samples[i] = int16(uint16(o.buf[at]) | uint16(o.buf[at+1])<<8)
	}

	logging.For(o.log, "Decode").WithFields(logrus.Fields{
		"packet_size": len(packet),
		"bandwidth":   bandwidth.String(),
		"sample_rate": rate,
		"stereo":      stereo,
		"frames":      frames,
	}).Debug("Opus packet decoded")

	return Frame{Samples: samples, Channels: channels, SampleRate: rate}, nil
}

// DecodeBlock decodes packet into dst, one slice per channel holding one
// block at rate. The packet is remixed to len(dst) channels and resampled
// from its coded rate when that differs from rate.
func (o *OpusIngress) DecodeBlock(dst [][]float64, packet []byte, rate int) error {
	if len(dst) < 1 || len(dst) > 2 {
		return fmt.Errorf("%d channels: %w", len(dst), dsp.ErrInvalidChannels)
	}
	f, err := o.Decode(packet)
	if err != nil {
		return err
	}
	f = f.Remix(len(dst))
	frames := len(dst[0])

	if f.SampleRate == rate {
		if f.Frames() != frames {
			return fmt.Errorf("packet holds %d frames, block %d: %w", f.Frames(), frames, ErrBlockMismatch)
		}
		pcm.Decode(dst, f.Samples, true)
		return nil
	}

	rs, err := o.resampler(f.SampleRate, rate, len(dst), frames)
	if err != nil {
		return err
	}
	if rs.InputFrames() != f.Frames() {
		return fmt.Errorf("packet holds %d frames at %d Hz, block needs %d: %w",
			f.Frames(), f.SampleRate, rs.InputFrames(), ErrBlockMismatch)
	}
	src := pcm.Alloc(len(dst), f.Frames())
	pcm.Decode(src, f.Samples, true)
	return rs.Process(dst, src)
}

// resampler returns the converter from the coded rate to the block rate,
// rebuilding it when the stream changes bandwidth.
func (o *OpusIngress) resampler(from, to, channels, frames int) (*dsp.Resampler, error) {
	key := [4]int{from, to, channels, frames}
	if o.rs != nil && o.rsKey == key {
		return o.rs, nil
	}
	rs, err := dsp.NewResampler(dsp.ResamplerConfig{
		InputRate:    uint32(from),
		OutputRate:   uint32(to),
		Channels:     channels,
		OutputFrames: frames,
	}, o.log)
	if err != nil {
		return nil, err
	}
	o.rs, o.rsKey = rs, key
	return rs, nil
}

// Mode is the Opus coding mode signalled by a packet.
type Mode int

const (
	ModeSILK Mode = iota
	ModeHybrid
	ModeCELT
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeSILK:
		return "silk"
	case ModeHybrid:
		return "hybrid"
	case ModeCELT:
		return "celt"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// TOC is the parsed table of contents byte of an Opus packet, plus the frame
// count of multi-frame packets.
type TOC struct {
	Config int
	Stereo bool
	Frames int
}

// ParseTOC reads the table of contents of packet.
func ParseTOC(packet []byte) (TOC, error) {
	if len(packet) == 0 {
		return TOC{}, ErrEmptyPacket
	}
	b := packet[0]
	t := TOC{Config: int(b >> 3), Stereo: b&0x04 != 0}
	switch b & 0x03 {
	case 0:
		t.Frames = 1
	case 1, 2:
		t.Frames = 2
	case 3:
		if len(packet) < 2 {
			return TOC{}, fmt.Errorf("code 3 packet without frame count: %w", ErrMalformedPacket)
		}
		t.Frames = int(packet[1] & 0x3f)
		if t.Frames == 0 {
			return TOC{}, fmt.Errorf("zero frame count: %w", ErrMalformedPacket)
		}
	}
	return t, nil
}

// Mode returns the coding mode of the configuration.
func (t TOC) Mode() Mode {
	switch {
	case t.Config < 12:
		return ModeSILK
	case t.Config < 16:
		return ModeHybrid
	default:
		return ModeCELT
	}
}

// FrameDuration returns the length of one frame.
func (t TOC) FrameDuration() time.Duration {
	switch t.Mode() {
	case ModeSILK:
		return [4]time.Duration{10, 20, 40, 60}[t.Config%4] * time.Millisecond
	case ModeHybrid:
		return [2]time.Duration{10, 20}[t.Config%2] * time.Millisecond
	default:
		return [4]time.Duration{2500, 5000, 10000, 20000}[t.Config%4] * time.Microsecond
	}
}

// Duration returns the audio length of the whole packet.
func (t TOC) Duration() time.Duration {
	return t.FrameDuration() * time.Duration(t.Frames)
}
