package control

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	// ErrInvalidControl indicates a control identifier outside the defined set.
	ErrInvalidControl = errors.New("invalid control")

	// ErrInvalidValue indicates a value outside the control's domain.
	ErrInvalidValue = errors.New("invalid control value")
)

// Table holds the current value of every control for one participant.
// Each slot is a single atomic word so output generation can read controls
// while another goroutine updates them.
type Table struct {
	values [Count + 1]atomic.Int32
}

// NewTable returns a table with every control at its default.
func NewTable() *Table {
	t := &Table{}
	t.Reset()
	return t
}

// Reset restores every control to its default.
func (t *Table) Reset() {
	for c := StereoBypass; c <= SidebarRoom; c++ {
		t.values[c].Store(domains[c].Default)
	}
}

// Get returns the current value of c.
func (t *Table) Get(c Control) (int32, error) {
	if !c.Valid() {
		return 0, fmt.Errorf("get %d: %w", int(c), ErrInvalidControl)
	}
	return t.values[c].Load(), nil
}

// Set validates v against the domain of c and stores it. An invalid control
// or out of domain value leaves the table untouched.
func (t *Table) Set(c Control, v int32) error {
	if err := Validate(c, v); err != nil {
		return err
	}
	t.values[c].Store(v)
	return nil
}

// Validate checks c and v without storing anything.
func Validate(c Control, v int32) error {
	if !c.Valid() {
		return fmt.Errorf("set %d: %w", int(c), ErrInvalidControl)
	}
	d := domains[c]
	if !d.Contains(v) {
		return fmt.Errorf("set %s=%d (allowed %d..%d): %w", c, v, d.Min, d.Max, ErrInvalidValue)
	}
	return nil
}

// Enabled reports whether a boolean control is on. Unknown controls read as off.
func (t *Table) Enabled(c Control) bool {
	if !c.Valid() {
		return false
	}
	return t.values[c].Load() != 0
}

// Value returns the value of c, or 0 for an unknown control.
func (t *Table) Value(c Control) int32 {
	if !c.Valid() {
		return 0
	}
	return t.values[c].Load()
}

// Snapshot copies every control into a map keyed by control.
func (t *Table) Snapshot() map[Control]int32 {
	out := make(map[Control]int32, Count)
	for c := StereoBypass; c <= SidebarRoom; c++ {
		out[c] = t.values[c].Load()
	}
	return out
}
