package voxroom

import (
	"sync"

	"github.com/opd-ai/voxroom/geometry"
	"github.com/opd-ai/voxroom/layout"
)

// Room is a set of participants sharing one layout.
//
// mu guards the participant map, the layout and every participant's
// position, heading and seat. Audio calls hold it for reading so geometry
// stays fixed while a block is mixed.
type Room struct {
	id int

	mu           sync.RWMutex
	layoutID     int
	layout       layout.Layout
	participants map[int]*Participant
}

func newRoom(id, layoutID int, l layout.Layout) *Room {
	return &Room{
		id:           id,
		layoutID:     layoutID,
		layout:       l,
		participants: make(map[int]*Participant),
	}
}

// close releases every participant.
func (r *Room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.participants {
		p.close()
		delete(r.participants, id)
	}
}

func (r *Room) participant(id int) (*Participant, bool) {
	p, ok := r.participants[id]
	return p, ok
}

// occupant returns the participant in seat, if any.
func (r *Room) occupant(seat int) *Participant {
	for _, p := range r.participants {
		if p.seat == seat {
			return p
		}
	}
	return nil
}

// freeSeat returns the first seat of the layout nobody occupies.
func (r *Room) freeSeat() (geometry.Seat, bool) {
	for _, s := range r.layout.Seats {
		if r.occupant(s.ID) == nil {
			return s, true
		}
	}
	return geometry.Seat{}, false
}

// place puts p in its initial spot: the first free seat of a seated layout,
// or the origin.
func (r *Room) place(p *Participant) {
	if s, ok := r.freeSeat(); ok {
		p.sit(s)
		return
	}
	p.stand(geometry.Position{}, geometry.Heading{})
}

// setLayout switches layouts. A participant in seat k keeps seat k when the
// new layout has one; the rest take free seats in id order, and whoever finds
// none stays where they are, unseated.
func (r *Room) setLayout(id int, next layout.Layout) {
	r.layoutID = id
	r.layout = next

	ids := sortedKeys(r.participants)
	if next.Open() {
		for _, pid := range ids {
			p := r.participants[pid]
			p.stand(p.position, p.heading)
		}
		return
	}

	var pending []*Participant
	taken := make(map[int]bool)
	for _, pid := range ids {
		p := r.participants[pid]
		if s, ok := next.Seat(p.seat); ok && p.seat != geometry.Unseated && !taken[s.ID] {
			p.sit(s)
			taken[s.ID] = true
			continue
		}
		pending = append(pending, p)
	}
	for _, p := range pending {
		placed := false
		for _, s := range next.Seats {
			if !taken[s.ID] {
				p.sit(s)
				taken[s.ID] = true
				placed = true
				break
			}
		}
		if !placed {
			p.stand(p.position, p.heading)
		}
	}
}

// setSeat moves p to seat, swapping with the current occupant.
func (r *Room) setSeat(p *Participant, seat geometry.Seat) {
	if other := r.occupant(seat.ID); other != nil && other != p {
		if prev, ok := r.layout.Seat(p.seat); ok {
			other.sit(prev)
		} else {
			other.stand(other.position, other.heading)
		}
	}
	p.sit(seat)
}
