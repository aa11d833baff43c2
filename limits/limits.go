package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxName is the longest participant name in bytes.
	MaxName = 255

	// MaxCustomMessage is the largest application message a control plane
	// broadcasts.
	MaxCustomMessage = 16 * 1024

	// MaxCommand is the largest control plane frame read from a client.
	MaxCommand = 64 * 1024

	// MaxLicenseFile is the largest signed license accepted.
	MaxLicenseFile = 64 * 1024

	// MaxLayoutFile is the largest layout catalog file accepted.
	MaxLayoutFile = 1024 * 1024
)

var (
	// ErrEmpty indicates empty data where some is required.
	ErrEmpty = errors.New("empty data")

	// ErrTooLarge indicates data over its size limit.
	ErrTooLarge = errors.New("data too large")
)

// ValidateSize checks that data is non-empty and at most maxSize bytes.
func ValidateSize(data []byte, maxSize int) error {
	if len(data) == 0 {
		return ErrEmpty
	}
	if len(data) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrTooLarge, len(data), maxSize)
	}
	return nil
}

// ValidateName checks a participant name. Names are optional, so an empty
// name passes.
func ValidateName(name string) error {
	if len(name) > MaxName {
		return fmt.Errorf("%w: name of %d bytes exceeds limit %d", ErrTooLarge, len(name), MaxName)
	}
	return nil
}

// ValidateCustomMessage checks an application message before broadcast.
func ValidateCustomMessage(message string) error {
	if message == "" {
		return ErrEmpty
	}
	if len(message) > MaxCustomMessage {
		return fmt.Errorf("%w: message of %d bytes exceeds limit %d", ErrTooLarge, len(message), MaxCustomMessage)
	}
	return nil
}
