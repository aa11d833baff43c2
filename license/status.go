package license

import (
	"encoding/json"
	"time"
)

// Status is the outcome of a license check as reported to callers.
type Status struct {
	Valid        bool      `json:"valid"`
	Licensee     string    `json:"licensee,omitempty"`
	Product      string    `json:"product,omitempty"`
	MajorVersion int       `json:"major_version,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitzero"`
	Error        string    `json:"error,omitempty"`
}

// NewStatus builds the status for a verified payload and its error.
func NewStatus(info Info, err error) Status {
	s := Status{
		Valid:        err == nil,
		Licensee:     info.Licensee,
		Product:      info.Product,
		MajorVersion: info.MajorVersion,
		ExpiresAt:    info.ExpiresAt,
	}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// JSON returns the status as a JSON object.
func (s Status) JSON() string {
	data, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(data)
}
