// Package limits holds the size limits shared by the engine, its file
// loaders and the control plane.
//
//	if err := limits.ValidateName(name); err != nil {
//	    return fmt.Errorf("%w: %w", voxroom.ErrDataLength, err)
//	}
//
// ValidateSize rejects empty data with ErrEmpty and oversize data with
// ErrTooLarge; the error carries both sizes.
package limits
