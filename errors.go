package voxroom

import (
	"errors"

	"github.com/opd-ai/voxroom/control"
	"github.com/opd-ai/voxroom/geometry"
	"github.com/opd-ai/voxroom/layout"
	"github.com/opd-ai/voxroom/license"
)

// Sentinel errors returned by the engine. Call sites wrap them with context;
// test with errors.Is.

// Invalid reference errors.
var (
	// ErrInvalidRoomID indicates a room id that does not exist.
	ErrInvalidRoomID = errors.New("invalid room id")

	// ErrInvalidParticipantID indicates a participant id unknown to the room.
	ErrInvalidParticipantID = errors.New("invalid participant id")

	// ErrInvalidControl indicates a control outside the defined set.
	ErrInvalidControl = control.ErrInvalidControl

	// ErrInvalidValue indicates a control value, seat or layout outside its
	// domain.
	ErrInvalidValue = control.ErrInvalidValue

	// ErrInvalidHeading indicates an azimuth or elevation out of range.
	ErrInvalidHeading = geometry.ErrInvalidHeading
)

// Structural conflict errors.
var (
	// ErrDuplicateRoomID indicates a room id already in use.
	ErrDuplicateRoomID = errors.New("duplicate room id")

	// ErrDuplicateParticipantID indicates a participant id already in the room.
	ErrDuplicateParticipantID = errors.New("duplicate participant id")

	// ErrInvalidOperationForLayout indicates a position change in a seated
	// layout or a seat change in an open one.
	ErrInvalidOperationForLayout = errors.New("operation not valid for room layout")

	// ErrParticipantType indicates an audio call the participant's kind does
	// not allow.
	ErrParticipantType = errors.New("operation not valid for participant type")

	// ErrInvalidParticipantType indicates an unknown participant kind.
	ErrInvalidParticipantType = errors.New("invalid participant type")
)

// Data contract errors.
var (
	// ErrDataNull indicates a nil sample buffer.
	ErrDataNull = errors.New("audio buffer is nil")

	// ErrDataLength indicates a frame count or buffer length that does not
	// match the configured block.
	ErrDataLength = errors.New("audio buffer length mismatch")

	// ErrInvalidNumChannels indicates a channel count other than 1 or 2.
	ErrInvalidNumChannels = errors.New("invalid number of channels")

	// ErrInvalidSampleRate indicates an unsupported or unconvertible rate.
	ErrInvalidSampleRate = errors.New("invalid sample rate")

	// ErrInvalidFrameCount indicates an unsupported output block size.
	ErrInvalidFrameCount = errors.New("invalid frame count")

	// ErrInvalidSpatialQuality indicates a spatial quality outside 1..5.
	ErrInvalidSpatialQuality = errors.New("invalid spatial quality")

	// ErrBufferTooSmall indicates a destination too short for the result.
	ErrBufferTooSmall = errors.New("buffer too small")
)

// Transient and lifecycle errors.
var (
	// ErrNoInputAudio indicates that no source had fresh audio for the
	// listener. The output block is zero filled; this is not a failure.
	ErrNoInputAudio = errors.New("no input audio")

	// ErrNotInitialized indicates a nil or destroyed library.
	ErrNotInitialized = errors.New("library not initialized")
)

// ErrorCode is the stable numeric form of an engine error.
type ErrorCode int

const (
	CodeOK ErrorCode = iota
	CodeNotInitialized
	CodeInvalidRoomID
	CodeInvalidParticipantID
	CodeInvalidControl
	CodeInvalidValue
	CodeInvalidHeading
	CodeDuplicateRoomID
	CodeDuplicateParticipantID
	CodeInvalidOperationForLayout
	CodeParticipantType
	CodeInvalidParticipantType
	CodeDataNull
	CodeDataLength
	CodeInvalidNumChannels
	CodeInvalidSampleRate
	CodeInvalidFrameCount
	CodeInvalidSpatialQuality
	CodeBufferTooSmall
	CodeNoInputAudio
	CodeLicenseMissing
	CodeLicenseTampered
	CodeLicenseExpired
	CodeLicenseVersion
	CodeUnknown
)

var codeTable = []struct {
	err  error
	code ErrorCode
	name string
}{
	{ErrNotInitialized, CodeNotInitialized, "not_initialized"},
	{ErrInvalidRoomID, CodeInvalidRoomID, "invalid_room_id"},
	{ErrInvalidParticipantID, CodeInvalidParticipantID, "invalid_participant_id"},
	{ErrInvalidControl, CodeInvalidControl, "invalid_control"},
	{ErrInvalidValue, CodeInvalidValue, "invalid_value"},
	{ErrInvalidHeading, CodeInvalidHeading, "invalid_heading"},
	{ErrDuplicateRoomID, CodeDuplicateRoomID, "duplicate_room_id"},
	{ErrDuplicateParticipantID, CodeDuplicateParticipantID, "duplicate_participant_id"},
	{ErrInvalidOperationForLayout, CodeInvalidOperationForLayout, "invalid_operation_for_layout"},
	{ErrParticipantType, CodeParticipantType, "participant_type"},
	{ErrInvalidParticipantType, CodeInvalidParticipantType, "invalid_participant_type"},
	{ErrDataNull, CodeDataNull, "data_null"},
	{ErrDataLength, CodeDataLength, "data_length"},
	{ErrInvalidNumChannels, CodeInvalidNumChannels, "invalid_num_channels"},
	{ErrInvalidSampleRate, CodeInvalidSampleRate, "invalid_sample_rate"},
	{ErrInvalidFrameCount, CodeInvalidFrameCount, "invalid_frame_count"},
	{ErrInvalidSpatialQuality, CodeInvalidSpatialQuality, "invalid_spatial_quality"},
	{ErrBufferTooSmall, CodeBufferTooSmall, "buffer_too_small"},
	{ErrNoInputAudio, CodeNoInputAudio, "no_input_audio"},
	{license.ErrMissing, CodeLicenseMissing, "license_missing"},
	{license.ErrTampered, CodeLicenseTampered, "license_tampered"},
	{license.ErrExpired, CodeLicenseExpired, "license_expired"},
	{license.ErrVersionMismatch, CodeLicenseVersion, "license_version_mismatch"},
	{layout.ErrInvalidLayout, CodeInvalidValue, ""},
	{layout.ErrInvalidSeat, CodeInvalidValue, ""},
}

// CodeOf maps err to its ErrorCode. nil maps to CodeOK and unrecognized
// errors to CodeUnknown.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	for _, e := range codeTable {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return CodeUnknown
}

// String returns the stable snake_case name of c.
func (c ErrorCode) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeUnknown:
		return "unknown"
	}
	for _, e := range codeTable {
		if e.code == c && e.name != "" {
			return e.name
		}
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (c ErrorCode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
