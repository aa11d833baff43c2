// Package layout defines room layouts: either open space, where participants
// position themselves freely, or a fixed list of seats.
//
// A Catalog is the read-only list of layouts a library offers. Layout ids are
// 1-based positions in the catalog; seat ids are 1-based within a layout.
package layout

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/opd-ai/voxroom/geometry"
	"github.com/opd-ai/voxroom/limits"
)

var (
	// ErrInvalidLayout indicates a layout id that is not in the catalog.
	ErrInvalidLayout = errors.New("invalid layout")

	// ErrInvalidSeat indicates a seat id that is not part of a layout.
	ErrInvalidSeat = errors.New("invalid seat")

	// ErrEmptyCatalog indicates a catalog without any layout.
	ErrEmptyCatalog = errors.New("layout catalog is empty")
)

// Layout is one arrangement of a room. A layout with no seats is open space.
type Layout struct {
	Name  string          `json:"name"`
	Seats []geometry.Seat `json:"seats,omitempty"`
}

// Open reports whether the layout lets participants move freely.
func (l Layout) Open() bool {
	return len(l.Seats) == 0
}

// Seat returns the seat with the given id.
func (l Layout) Seat(id int) (geometry.Seat, bool) {
	for _, s := range l.Seats {
		if s.ID == id {
			return s, true
		}
	}
	return geometry.Seat{}, false
}

// Catalog is an immutable list of layouts.
type Catalog struct {
	layouts []Layout
}

// NewCatalog validates layouts and builds a catalog from them. Seats without
// an id are numbered by their position in the list.
func NewCatalog(layouts []Layout) (*Catalog, error) {
	if len(layouts) == 0 {
		return nil, ErrEmptyCatalog
	}

	out := make([]Layout, len(layouts))
	for i, l := range layouts {
		seen := make(map[int]bool, len(l.Seats))
		seats := make([]geometry.Seat, len(l.Seats))
		for j, s := range l.Seats {
			if s.ID == 0 {
				s.ID = j + 1
			}
			if s.ID < 1 {
				return nil, fmt.Errorf("layout %d seat %d: %w", i+1, s.ID, ErrInvalidSeat)
			}
			if seen[s.ID] {
				return nil, fmt.Errorf("layout %d: duplicate seat %d: %w", i+1, s.ID, ErrInvalidSeat)
			}
			if err := s.Heading.Validate(); err != nil {
				return nil, fmt.Errorf("layout %d seat %d: %w", i+1, s.ID, err)
			}
			seen[s.ID] = true
			seats[j] = s
		}
		name := l.Name
		if name == "" {
			name = fmt.Sprintf("layout %d", i+1)
		}
		out[i] = Layout{Name: name, Seats: seats}
	}
	return &Catalog{layouts: out}, nil
}

// Len returns the number of layouts.
func (c *Catalog) Len() int {
	return len(c.layouts)
}

// Get returns the layout with the 1-based id.
func (c *Catalog) Get(id int) (Layout, error) {
	if id < 1 || id > len(c.layouts) {
		return Layout{}, fmt.Errorf("layout %d: %w", id, ErrInvalidLayout)
	}
	return c.layouts[id-1], nil
}

type catalogFile struct {
	Layouts []Layout `json:"layouts"`
}

// MarshalJSON exports the catalog with each layout's 1-based id.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	type entry struct {
		ID int `json:"id"`
		Layout
	}
	entries := make([]entry, len(c.layouts))
	for i, l := range c.layouts {
		entries[i] = entry{ID: i + 1, Layout: l}
	}
	return json.Marshal(struct {
		Layouts []entry `json:"layouts"`
	}{entries})
}

// Parse decodes a catalog from its JSON form:
//
//	{"layouts":[{"name":"open"},{"name":"pair","seats":[{"position":{"x":-50}},...]}]}
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode layout catalog: %w", err)
	}
	return NewCatalog(f.Layouts)
}

// LoadFile reads a JSON catalog from path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout catalog: %w", err)
	}
	if err := limits.ValidateSize(data, limits.MaxLayoutFile); err != nil {
		return nil, fmt.Errorf("layout catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the built-in catalog: 1 open space, 2 a round table of
// eight seats facing its center, 3 a theater of two rows of five seats facing
// the stage at the origin.
func Default() *Catalog {
	c, err := NewCatalog([]Layout{
		{Name: "open"},
		{Name: "round table", Seats: RoundTable(8, 150)},
		{Name: "theater", Seats: Theater(2, 5, 120, 100)},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// RoundTable places n seats evenly on a circle of radius cm around the
// origin, each facing the center. Seat 1 sits at the back of the circle.
func RoundTable(n int, radius float64) []geometry.Seat {
	seats := make([]geometry.Seat, n)
	for i := range n {
		angle := 2 * math.Pi * float64(i) / float64(n)
		p := geometry.Position{
			X: round2(radius * math.Sin(angle)),
			Z: round2(-radius * math.Cos(angle)),
		}
		seats[i] = geometry.Seat{ID: i + 1, Position: p, Heading: geometry.Facing(p, geometry.Position{})}
	}
	return seats
}

// Theater places rows*cols seats facing +z toward a stage at the origin.
// Row 1 is closest to the stage; seats within a row run left to right.
func Theater(rows, cols int, rowGap, seatGap float64) []geometry.Seat {
	seats := make([]geometry.Seat, 0, rows*cols)
	for r := range rows {
		for c := range cols {
			seats = append(seats, geometry.Seat{
				ID: len(seats) + 1,
				Position: geometry.Position{
					X: (float64(c) - float64(cols-1)/2) * seatGap,
					Z: -float64(r+1) * rowGap,
				},
			})
		}
	}
	return seats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
