package voxroom

import (
	"errors"
	"fmt"

	"github.com/go-audio/audio"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/voxroom/codec"
	"github.com/opd-ai/voxroom/control"
	"github.com/opd-ai/voxroom/dsp"
	"github.com/opd-ai/voxroom/logging"
	"github.com/opd-ai/voxroom/pcm"
	"github.com/opd-ai/voxroom/spatial"
)

// InputAudioInt16 pushes one block of a participant's audio. frames must be
// (output frames * input rate) / output rate, and samples must hold frames
// samples per input channel in the library's layout.
func (l *Library) InputAudioInt16(roomID, participantID int, samples []int16, frames int) error {
	return pushSamples(l, roomID, participantID, samples, frames)
}

// InputAudioFloat32 is InputAudioInt16 for samples in [-1, 1].
func (l *Library) InputAudioFloat32(roomID, participantID int, samples []float32, frames int) error {
	return pushSamples(l, roomID, participantID, samples, frames)
}

// InputAudioFloat64 is InputAudioInt16 for samples in [-1, 1].
func (l *Library) InputAudioFloat64(roomID, participantID int, samples []float64, frames int) error {
	return pushSamples(l, roomID, participantID, samples, frames)
}

func pushSamples[T pcm.Sample](l *Library, roomID, participantID int, samples []T, frames int) error {
	if l == nil {
		return ErrNotInitialized
	}
	return l.push(roomID, participantID, "InputAudio", func(p *Participant) error {
		if samples == nil {
			return ErrDataNull
		}
		if frames != p.in.frames {
			return fmt.Errorf("%d frames, want %d: %w", frames, p.in.frames, ErrDataLength)
		}
		if need := frames * p.cfg.InputChannels; len(samples) < need {
			return fmt.Errorf("%d samples, want %d: %w", len(samples), need, ErrDataLength)
		}
		pcm.Decode(p.in.decoded, samples, l.cfg.Interleaved)
		return nil
	})
}

// InputAudioBuffer pushes one block held in a go-audio buffer. The buffer's
// format must match the participant configuration; its samples are always
// interleaved.
func (l *Library) InputAudioBuffer(roomID, participantID int, buf audio.Buffer) error {
	if l == nil {
		return ErrNotInitialized
	}
	return l.push(roomID, participantID, "InputAudioBuffer", func(p *Participant) error {
		if buf == nil {
			return ErrDataNull
		}
		data, channels, rate, err := pcm.FromBuffer(buf)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDataNull, err)
		}
		if rate != 0 && rate != p.cfg.InputSampleRate {
			return fmt.Errorf("buffer at %d Hz, participant at %d Hz: %w", rate, p.cfg.InputSampleRate, ErrInvalidSampleRate)
		}
		if channels != p.cfg.InputChannels {
			return fmt.Errorf("buffer has %d channels, participant %d: %w", channels, p.cfg.InputChannels, ErrInvalidNumChannels)
		}
		if len(data) != p.in.frames*channels {
			return fmt.Errorf("buffer holds %d samples, want %d: %w", len(data), p.in.frames*channels, ErrDataLength)
		}
		pcm.Decode(p.in.decoded, data, true)
		return nil
	})
}

// InputAudioOpus decodes one Opus packet and pushes it like InputAudioInt16.
// The packet is resampled from its coded rate to the participant's input
// rate and must then carry exactly one block; a channel count mismatch is
// remixed.
func (l *Library) InputAudioOpus(roomID, participantID int, packet []byte) error {
	if l == nil {
		return ErrNotInitialized
	}
	return l.push(roomID, participantID, "InputAudioOpus", func(p *Participant) error {
		if packet == nil {
			return ErrDataNull
		}
		if p.in.opus == nil {
			p.in.opus = codec.NewOpusIngress(p.in.log)
		}
		err := p.in.opus.DecodeBlock(p.in.decoded, packet, p.cfg.InputSampleRate)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, dsp.ErrUnsupportedRate):
			return fmt.Errorf("%w: %w", ErrInvalidSampleRate, err)
		default:
			return fmt.Errorf("%w: %w", ErrDataLength, err)
		}
	})
}

// push validates the participant, lets fill load p.in.decoded and runs the
// input pipeline: resample, then either keep the original channels (stereo
// bypass) or downmix and run ANC, AGC and AEQ.
func (l *Library) push(roomID, participantID int, function string, fill func(p *Participant) error) error {
	err := l.withParticipant(roomID, participantID, func(_ *Room, p *Participant) error {
		if !p.cfg.Kind.Speaks() {
			return fmt.Errorf("input to %s participant: %w", p.cfg.Kind, ErrParticipantType)
		}
		p.in.mu.Lock()
		defer p.in.mu.Unlock()
		if err := fill(p); err != nil {
			return err
		}
		return l.process(p)
	})
	if err != nil {
		l.stats.recordRejected()
		logging.For(l.log, function).WithFields(logrus.Fields{
			"room_id":        roomID,
			"participant_id": participantID,
		}).WithError(err, "push_input").Debug("Input block rejected")
		return err
	}
	l.stats.recordInput()
	return nil
}

// process turns p.in.decoded into the participant's contribution. p.in.mu
// must be held.
func (l *Library) process(p *Participant) error {
	in := &p.in
	if err := in.resampler.Process(in.resampled, in.decoded); err != nil {
		return fmt.Errorf("resample: %w", err)
	}

	in.bypass = p.controls.Enabled(control.StereoBypass)
	if in.bypass {
		in.silent = true
		for _, ch := range in.resampled {
			if !pcm.Silent(ch) {
				in.silent = false
				break
			}
		}
		in.seq++
		return nil
	}

	pcm.Downmix(in.mono, in.resampled)
	in.chain.SetEnabled(dsp.StageANC, l.licensed && p.controls.Enabled(control.ANC))
	in.chain.SetEnabled(dsp.StageAGC, l.licensed && p.controls.Enabled(control.AGC))
	in.chain.SetEnabled(dsp.StageAEQ, l.licensed && p.controls.Enabled(control.AutoEQ))
	out, err := in.chain.Process(in.mono)
	if err != nil {
		return err
	}
	copy(in.mono, out)
	in.silent = pcm.Silent(in.mono)
	in.seq++
	return nil
}

// OutputAudioInt16 renders one block of the participant's personal mix into
// out, which must hold output frames * output channels samples. When no
// audible source pushed audio since the last call, out is zero filled and
// ErrNoInputAudio is returned.
func (l *Library) OutputAudioInt16(roomID, participantID int, out []int16) error {
	return pullSamples(l, roomID, participantID, out)
}

// OutputAudioFloat32 is OutputAudioInt16 with samples clamped to [-1, 1].
func (l *Library) OutputAudioFloat32(roomID, participantID int, out []float32) error {
	return pullSamples(l, roomID, participantID, out)
}

// OutputAudioFloat64 is OutputAudioInt16 with samples clamped to [-1, 1].
func (l *Library) OutputAudioFloat64(roomID, participantID int, out []float64) error {
	return pullSamples(l, roomID, participantID, out)
}

func pullSamples[T pcm.Sample](l *Library, roomID, participantID int, out []T) error {
	if l == nil {
		return ErrNotInitialized
	}
	start := l.clock.Now()
	clipped := 0

	err := l.withParticipant(roomID, participantID, func(r *Room, p *Participant) error {
		if !p.cfg.Kind.Listens() {
			return fmt.Errorf("output for %s participant: %w", p.cfg.Kind, ErrParticipantType)
		}
		if out == nil {
			return ErrDataNull
		}
		need := l.cfg.BlockSamples()
		if len(out) < need {
			return fmt.Errorf("%d samples, want %d: %w", len(out), need, ErrDataLength)
		}

		p.out.mu.Lock()
		defer p.out.mu.Unlock()

		sources := gather(r, p)
		if len(sources) == 0 {
			clear(out[:need])
			return ErrNoInputAudio
		}

		listener := spatial.ListenerFromControls(p.controls, p.position, p.heading)
		if !l.licensed {
			listener.Mix3D = false
		}
		if err := l.mixer.Mix(p.out.mix, listener, p.out.render, sources); err != nil {
			return err
		}
		clipped, p.out.scratch = pcm.Encode(out[:need], p.out.mix, l.cfg.Interleaved, p.out.scratch)
		return nil
	})

	h := logging.For(l.log, "OutputAudio").WithFields(logrus.Fields{
		"room_id":        roomID,
		"participant_id": participantID,
	})
	switch {
	case errors.Is(err, ErrNoInputAudio):
		l.stats.recordNoInput()
	case err != nil:
		l.stats.recordRejected()
		h.WithError(err, "pull_output").Debug("Output request rejected")
	default:
		l.stats.recordOutput(l.clock.Since(start), clipped)
		if clipped > 0 {
			h.WithField("clipped", clipped).Debug("Output block clipped")
		}
	}
	return err
}

// gather collects the fresh contributions listener can hear. The room must be
// locked for reading and listener.out.mu held.
func gather(r *Room, listener *Participant) []spatial.Contribution {
	st := &listener.out
	st.contribs = st.contribs[:0]
	whisper := listener.controls.Value(control.WhisperRoom)
	sidebar := listener.controls.Value(control.SidebarRoom)

	for _, id := range sortedKeys(r.participants) {
		src := r.participants[id]
		if src == listener || !src.cfg.Kind.Speaks() {
			continue
		}
		if src.controls.Value(control.WhisperRoom) != whisper ||
			src.controls.Value(control.SidebarRoom) != sidebar {
			continue
		}
		if c, ok := st.take(src, src.controls.Enabled(control.Mute)); ok {
			st.contribs = append(st.contribs, c)
		}
	}
	return st.contribs
}

// take copies src's current block if the listener has not heard it yet. A
// muted or silent block is marked heard but not returned.
func (st *outputState) take(src *Participant, muted bool) (spatial.Contribution, bool) {
	src.in.mu.Lock()
	defer src.in.mu.Unlock()

	seq := src.in.seq
	if seq == 0 || seq <= st.lastHeard[src.id] {
		return spatial.Contribution{}, false
	}
	st.lastHeard[src.id] = seq
	if muted || src.in.silent {
		return spatial.Contribution{}, false
	}

	buf, ok := st.sources[src.id]
	if !ok {
		buf = &sourceCopy{}
		st.sources[src.id] = buf
	}
	c := spatial.Contribution{SourceID: src.id, Position: src.position, Bypass: src.in.bypass}
	if src.in.bypass {
		if len(buf.original) != len(src.in.resampled) {
			buf.original = pcm.Alloc(len(src.in.resampled), len(src.in.mono))
		}
		for ch := range src.in.resampled {
			copy(buf.original[ch], src.in.resampled[ch])
		}
		c.Original = buf.original
		return c, true
	}
	if len(buf.mono) != len(src.in.mono) {
		buf.mono = make([]float64, len(src.in.mono))
	}
	copy(buf.mono, src.in.mono)
	c.Mono = buf.mono
	return c, true
}
