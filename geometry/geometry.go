// Package geometry holds the positional model of a voxroom conference:
// participant positions and headings in a right-handed room frame, seats, and
// the listener-relative spherical transform used by the spatial mixer.
//
// The room frame has x pointing right, y up and z forward, measured in
// centimeters. A heading azimuth of 0 faces +z and positive azimuths rotate
// clockwise seen from above, so +90 faces +x. Positive elevation tilts up.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidHeading indicates a heading outside [-180,180] x [-90,90].
var ErrInvalidHeading = errors.New("invalid heading")

// Position is a point in the room, in centimeters.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns p - q.
func (p Position) Sub(q Position) Position {
	return Position{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// Norm returns the euclidean length of p.
func (p Position) Norm() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// DistanceTo returns the distance between p and q in centimeters.
func (p Position) DistanceTo(q Position) float64 {
	return p.Sub(q).Norm()
}

// Heading is the direction a participant faces, in degrees.
type Heading struct {
	Azimuth   float64 `json:"azimuth"`
	Elevation float64 `json:"elevation"`
}

// Validate checks the heading ranges.
func (h Heading) Validate() error {
	if math.IsNaN(h.Azimuth) || h.Azimuth < -180 || h.Azimuth > 180 {
		return fmt.Errorf("azimuth %.2f: %w", h.Azimuth, ErrInvalidHeading)
	}
	if math.IsNaN(h.Elevation) || h.Elevation < -90 || h.Elevation > 90 {
		return fmt.Errorf("elevation %.2f: %w", h.Elevation, ErrInvalidHeading)
	}
	return nil
}

// Unseated is the seat id of a participant that occupies no seat.
const Unseated = -1

// Seat is a numbered place in a layout with a fixed position and heading.
// Seat ids are 1-based.
type Seat struct {
	ID       int      `json:"id"`
	Position Position `json:"position"`
	Heading  Heading  `json:"heading"`
}

// Spherical is where a listener perceives a source: azimuth and elevation in
// degrees relative to the listener's heading, and distance in centimeters.
type Spherical struct {
	Azimuth   float64 `json:"azimuth"`
	Elevation float64 `json:"elevation"`
	Distance  float64 `json:"distance"`
}

// basis returns the right, up and forward unit vectors of heading h.
func basis(h Heading) (right, up, forward Position) {
	az := h.Azimuth * math.Pi / 180
	el := h.Elevation * math.Pi / 180
	sa, ca := math.Sin(az), math.Cos(az)
	se, ce := math.Sin(el), math.Cos(el)

	right = Position{X: ca, Y: 0, Z: -sa}
	up = Position{X: -sa * se, Y: ce, Z: -ca * se}
	forward = Position{X: sa * ce, Y: se, Z: ca * ce}
	return right, up, forward
}

func dot(a, b Position) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

// Relative computes the spherical coordinates of source as perceived by a
// listener standing at listener and facing heading. A source at the
// listener's own position reads as azimuth 0, elevation 0, distance 0.
func Relative(listener Position, heading Heading, source Position) Spherical {
	d := source.Sub(listener)
	dist := d.Norm()
	if dist == 0 {
		return Spherical{}
	}

	right, up, forward := basis(heading)
	x := dot(d, right)
	y := dot(d, up)
	z := dot(d, forward)

	return Spherical{
		Azimuth:   math.Atan2(x, z) * 180 / math.Pi,
		Elevation: math.Atan2(y, math.Hypot(x, z)) * 180 / math.Pi,
		Distance:  dist,
	}
}

// Facing returns the heading that looks from p toward target on the
// horizontal plane.
func Facing(p, target Position) Heading {
	d := target.Sub(p)
	if d.X == 0 && d.Z == 0 {
		return Heading{}
	}
	return Heading{Azimuth: math.Atan2(d.X, d.Z) * 180 / math.Pi}
}
