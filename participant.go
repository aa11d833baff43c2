package voxroom

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/voxroom/codec"
	"github.com/opd-ai/voxroom/control"
	"github.com/opd-ai/voxroom/dsp"
	"github.com/opd-ai/voxroom/events"
	"github.com/opd-ai/voxroom/geometry"
	"github.com/opd-ai/voxroom/limits"
	"github.com/opd-ai/voxroom/logging"
	"github.com/opd-ai/voxroom/pcm"
	"github.com/opd-ai/voxroom/spatial"
)

// Participant is one member of a room.
//
// name, position, heading and seat are guarded by the room lock. Input
// processing and output mixing each have their own mutex; output takes a
// source's input mutex while copying its block, never the reverse.
type Participant struct {
	id       int
	cfg      ParticipantConfig
	controls *control.Table

	name     string
	position geometry.Position
	heading  geometry.Heading
	seat     int

	in  inputState
	out outputState
}

type inputState struct {
	mu        sync.Mutex
	frames    int
	resampler *dsp.Resampler
	chain     *dsp.EffectChain
	opus      *codec.OpusIngress
	decoded   [][]float64
	resampled [][]float64
	mono      []float64
	bypass    bool
	silent    bool
	seq       uint64
	log       *logrus.Entry
}

type outputState struct {
	mu        sync.Mutex
	render    *spatial.ListenerState
	lastHeard map[int]uint64
	sources   map[int]*sourceCopy
	contribs  []spatial.Contribution
	mix       [][]float64
	scratch   []float64
}

// sourceCopy holds a listener's private copy of one source block.
type sourceCopy struct {
	mono     []float64
	original [][]float64
}

func newParticipant(id int, name string, pc ParticipantConfig, l *Library) (*Participant, error) {
	p := &Participant{
		id:       id,
		cfg:      pc,
		controls: control.NewTable(),
		name:     name,
		seat:     geometry.Unseated,
	}
	log := l.log.WithFields(logrus.Fields{"participant_id": id})

	if pc.Kind.Speaks() {
		rs, err := dsp.NewResampler(dsp.ResamplerConfig{
			InputRate:    uint32(pc.InputSampleRate),
			OutputRate:   uint32(l.cfg.OutputSampleRate),
			Channels:     pc.InputChannels,
			OutputFrames: l.cfg.OutputFrames,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSampleRate, err)
		}
		chain, err := dsp.NewEnhancementChain(l.cfg.OutputSampleRate, log)
		if err != nil {
			return nil, err
		}
		in := &p.in
		in.frames = rs.InputFrames()
		in.resampler = rs
		in.chain = chain
		in.decoded = pcm.Alloc(pc.InputChannels, rs.InputFrames())
		in.resampled = pcm.Alloc(pc.InputChannels, l.cfg.OutputFrames)
		in.mono = make([]float64, l.cfg.OutputFrames)
		in.silent = true
		in.log = log
	}

	if pc.Kind.Listens() {
		out := &p.out
		out.render = l.mixer.NewListenerState()
		out.lastHeard = make(map[int]uint64)
		out.sources = make(map[int]*sourceCopy)
		out.mix = pcm.Alloc(l.cfg.OutputChannels, l.cfg.OutputFrames)
	}
	return p, nil
}

// sit puts p in seat s.
func (p *Participant) sit(s geometry.Seat) {
	p.seat = s.ID
	p.position = s.Position
	p.heading = s.Heading
}

// stand unseats p at pos.
func (p *Participant) stand(pos geometry.Position, head geometry.Heading) {
	p.seat = geometry.Unseated
	p.position = pos
	p.heading = head
}

func (p *Participant) close() {
	p.in.mu.Lock()
	if p.in.chain != nil {
		_ = p.in.chain.Close()
	}
	p.in.mu.Unlock()
}

// flushInput drops buffered audio and effect state.
func (p *Participant) flushInput() {
	p.in.mu.Lock()
	defer p.in.mu.Unlock()
	if p.in.resampler == nil {
		return
	}
	p.in.resampler.Reset()
	p.in.chain.Reset()
	p.in.opus = nil
	pcm.Zero(p.in.decoded)
	pcm.Zero(p.in.resampled)
	clear(p.in.mono)
	p.in.silent = true
}

// forget drops everything p as a listener keeps about source id.
func (p *Participant) forget(id int) {
	p.out.mu.Lock()
	defer p.out.mu.Unlock()
	if p.out.render == nil {
		return
	}
	p.out.render.Forget(id)
	delete(p.out.sources, id)
	delete(p.out.lastHeard, id)
}

// flushOutput clears the rendering state p keeps as a listener.
func (p *Participant) flushOutput() {
	p.out.mu.Lock()
	defer p.out.mu.Unlock()
	if p.out.render == nil {
		return
	}
	p.out.render.Reset()
	pcm.Zero(p.out.mix)
}

// withParticipant runs fn with the room locked for reading.
func (l *Library) withParticipant(roomID, participantID int, fn func(r *Room, p *Participant) error) error {
	return l.withRoom(roomID, func(r *Room) error {
		r.mu.RLock()
		defer r.mu.RUnlock()
		p, ok := r.participant(participantID)
		if !ok {
			return fmt.Errorf("participant %d in room %d: %w", participantID, roomID, ErrInvalidParticipantID)
		}
		return fn(r, p)
	})
}

// withParticipantLocked runs fn with the room locked for writing.
func (l *Library) withParticipantLocked(roomID, participantID int, fn func(r *Room, p *Participant) error) error {
	return l.withRoom(roomID, func(r *Room) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		p, ok := r.participant(participantID)
		if !ok {
			return fmt.Errorf("participant %d in room %d: %w", participantID, roomID, ErrInvalidParticipantID)
		}
		return fn(r, p)
	})
}

// AddParticipant adds a participant with every control at its default. In a
// seated layout it takes the first free seat; otherwise it starts at the
// origin facing forward.
func (l *Library) AddParticipant(roomID, participantID int, name string, pc ParticipantConfig) error {
	h := logging.For(l.logEntry(), "AddParticipant").WithFields(logrus.Fields{
		"room_id":        roomID,
		"participant_id": participantID,
		"input_rate":     pc.InputSampleRate,
		"input_channels": pc.InputChannels,
		"kind":           pc.Kind.String(),
	})

	var ev events.Event
	err := l.withRoom(roomID, func(r *Room) error {
		if err := pc.validate(l.cfg); err != nil {
			return err
		}
		if err := limits.ValidateName(name); err != nil {
			return fmt.Errorf("%w: %w", ErrDataLength, err)
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.participants[participantID]; ok {
			return fmt.Errorf("participant %d in room %d: %w", participantID, roomID, ErrDuplicateParticipantID)
		}
		p, err := newParticipant(participantID, name, pc, l)
		if err != nil {
			return err
		}
		r.place(p)
		r.participants[participantID] = p

		pos, head := p.position, p.heading
		ev = events.Event{
			Kind:            events.AddParticipant,
			RoomID:          roomID,
			ParticipantID:   participantID,
			Name:            name,
			SeatID:          p.seat,
			Position:        &pos,
			Heading:         &head,
			InputSampleRate: pc.InputSampleRate,
			InputChannels:   pc.InputChannels,
			ParticipantKind: pc.Kind.String(),
		}
		return nil
	})
	if err != nil {
		h.WithCaller().WithError(err, "add_participant").Error("Participant rejected")
		return err
	}
	h.WithField("seat_id", ev.SeatID).Info("Participant added")
	l.notify(ev)
	return nil
}

// RemoveParticipant removes a participant and drops it from every other
// listener's rendering state.
func (l *Library) RemoveParticipant(roomID, participantID int) error {
	err := l.withParticipantLocked(roomID, participantID, func(r *Room, p *Participant) error {
		delete(r.participants, participantID)
		p.close()
		for _, other := range r.participants {
			other.forget(participantID)
		}
		return nil
	})
	h := logging.For(l.logEntry(), "RemoveParticipant").WithFields(logrus.Fields{
		"room_id":        roomID,
		"participant_id": participantID,
	})
	if err != nil {
		h.WithCaller().WithError(err, "remove_participant").Error("Participant removal rejected")
		return err
	}
	h.Info("Participant removed")
	l.notify(events.Event{Kind: events.RemoveParticipant, RoomID: roomID, ParticipantID: participantID})
	return nil
}

// ParticipantConfiguration returns the configuration a participant was added
// with.
func (l *Library) ParticipantConfiguration(roomID, participantID int) (ParticipantConfig, error) {
	var pc ParticipantConfig
	err := l.withParticipant(roomID, participantID, func(_ *Room, p *Participant) error {
		pc = p.cfg
		return nil
	})
	return pc, err
}

// SetParticipantName renames a participant.
func (l *Library) SetParticipantName(roomID, participantID int, name string) error {
	if err := limits.ValidateName(name); err != nil {
		return fmt.Errorf("%w: %w", ErrDataLength, err)
	}
	err := l.withParticipantLocked(roomID, participantID, func(_ *Room, p *Participant) error {
		p.name = name
		return nil
	})
	if err != nil {
		return err
	}
	l.notify(events.Event{Kind: events.SetName, RoomID: roomID, ParticipantID: participantID, Name: name})
	return nil
}

// ParticipantName returns a participant's name.
func (l *Library) ParticipantName(roomID, participantID int) (string, error) {
	var name string
	err := l.withParticipant(roomID, participantID, func(_ *Room, p *Participant) error {
		name = p.name
		return nil
	})
	return name, err
}

// ParticipantNameInto copies a participant's name into dst and returns the
// number of bytes written. dst must hold the whole name.
func (l *Library) ParticipantNameInto(roomID, participantID int, dst []byte) (int, error) {
	name, err := l.ParticipantName(roomID, participantID)
	if err != nil {
		return 0, err
	}
	if len(dst) < len(name) {
		return 0, fmt.Errorf("name needs %d bytes, have %d: %w", len(name), len(dst), ErrBufferTooSmall)
	}
	return copy(dst, name), nil
}

// FlushData discards a participant's buffered audio and rendering state
// without removing it.
func (l *Library) FlushData(roomID, participantID int) error {
	return l.withParticipant(roomID, participantID, func(r *Room, p *Participant) error {
		p.flushInput()
		p.flushOutput()
		for _, other := range r.participants {
			if other != p {
				other.forget(participantID)
			}
		}
		logging.For(l.log, "FlushData").WithFields(logrus.Fields{
			"room_id":        roomID,
			"participant_id": participantID,
		}).Debug("Participant data flushed")
		return nil
	})
}

// SetParticipantState sets one control of a participant. It takes effect no
// later than the next output block.
func (l *Library) SetParticipantState(roomID, participantID int, c control.Control, value int32) error {
	err := l.withParticipant(roomID, participantID, func(_ *Room, p *Participant) error {
		return p.controls.Set(c, value)
	})
	if err != nil {
		logging.For(l.logEntry(), "SetParticipantState").WithFields(logrus.Fields{
			"room_id":        roomID,
			"participant_id": participantID,
			"control":        c.String(),
			"value":          value,
		}).WithCaller().WithError(err, "set_state").Error("Control change rejected")
		return err
	}
	l.notify(events.Event{
		Kind:          events.SetParticipantState,
		RoomID:        roomID,
		ParticipantID: participantID,
		Control:       c,
		Value:         value,
	})
	return nil
}

// ParticipantState returns the value of one control of a participant.
func (l *Library) ParticipantState(roomID, participantID int, c control.Control) (int32, error) {
	var v int32
	err := l.withParticipant(roomID, participantID, func(_ *Room, p *Participant) error {
		var err error
		v, err = p.controls.Get(c)
		return err
	})
	return v, err
}

// SetAllParticipantsState sets one control on every current participant of
// a room. Participants added later start at the default.
func (l *Library) SetAllParticipantsState(roomID int, c control.Control, value int32) error {
	err := l.withRoom(roomID, func(r *Room) error {
		if err := control.Validate(c, value); err != nil {
			return err
		}
		r.mu.RLock()
		defer r.mu.RUnlock()
		for _, p := range r.participants {
			if err := p.controls.Set(c, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	l.notify(events.Event{Kind: events.SetAllParticipantsState, RoomID: roomID, Control: c, Value: value})
	return nil
}

// SetParticipantPosition moves a participant in an open layout.
func (l *Library) SetParticipantPosition(roomID, participantID int, pos geometry.Position, head geometry.Heading) error {
	err := l.withParticipantLocked(roomID, participantID, func(r *Room, p *Participant) error {
		if !r.layout.Open() {
			return fmt.Errorf("position in seated layout %d: %w", r.layoutID, ErrInvalidOperationForLayout)
		}
		if err := head.Validate(); err != nil {
			return err
		}
		p.stand(pos, head)
		return nil
	})
	if err != nil {
		return err
	}
	l.notify(events.Event{
		Kind:          events.SetParticipantPosition,
		RoomID:        roomID,
		ParticipantID: participantID,
		Position:      &pos,
		Heading:       &head,
	})
	return nil
}

// ParticipantPosition returns where a participant is and where it faces.
func (l *Library) ParticipantPosition(roomID, participantID int) (geometry.Position, geometry.Heading, error) {
	var pos geometry.Position
	var head geometry.Heading
	err := l.withParticipant(roomID, participantID, func(_ *Room, p *Participant) error {
		pos, head = p.position, p.heading
		return nil
	})
	return pos, head, err
}

// SetParticipantSeat moves a participant to a seat of the room's seated
// layout. If the seat is taken the two participants swap.
func (l *Library) SetParticipantSeat(roomID, participantID, seatID int) error {
	var moved []events.Event
	err := l.withParticipantLocked(roomID, participantID, func(r *Room, p *Participant) error {
		if r.layout.Open() {
			return fmt.Errorf("seat in open layout %d: %w", r.layoutID, ErrInvalidOperationForLayout)
		}
		seat, ok := r.layout.Seat(seatID)
		if !ok {
			return fmt.Errorf("seat %d in layout %d: %w", seatID, r.layoutID, ErrInvalidValue)
		}
		other := r.occupant(seatID)
		r.setSeat(p, seat)
		moved = append(moved, seatEvent(roomID, p))
		if other != nil && other != p {
			moved = append(moved, seatEvent(roomID, other))
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, ev := range moved {
		l.notify(ev)
	}
	return nil
}

func seatEvent(roomID int, p *Participant) events.Event {
	pos, head := p.position, p.heading
	return events.Event{
		Kind:          events.SetParticipantSeat,
		RoomID:        roomID,
		ParticipantID: p.id,
		SeatID:        p.seat,
		Position:      &pos,
		Heading:       &head,
	}
}

// ParticipantSeat returns the seat a participant occupies. The seat id is
// geometry.Unseated in an open layout or when no seat was free.
func (l *Library) ParticipantSeat(roomID, participantID int) (geometry.Seat, error) {
	var s geometry.Seat
	err := l.withParticipant(roomID, participantID, func(_ *Room, p *Participant) error {
		s = geometry.Seat{ID: p.seat, Position: p.position, Heading: p.heading}
		return nil
	})
	return s, err
}

// ParticipantSpherical returns the azimuth, elevation and distance at which
// listener hears source.
func (l *Library) ParticipantSpherical(roomID, listenerID, sourceID int) (geometry.Spherical, error) {
	var sph geometry.Spherical
	err := l.withParticipant(roomID, listenerID, func(r *Room, listener *Participant) error {
		source, ok := r.participant(sourceID)
		if !ok {
			return fmt.Errorf("participant %d in room %d: %w", sourceID, roomID, ErrInvalidParticipantID)
		}
		sph = geometry.Relative(listener.position, listener.heading, source.position)
		return nil
	})
	return sph, err
}

// logEntry returns the library log entry, tolerating a nil library.
func (l *Library) logEntry() *logrus.Entry {
	if l == nil {
		return nil
	}
	return l.log
}
