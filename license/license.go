// Package license issues and verifies signed product licenses.
//
// A license is a JSON document describing the licensee, the product major
// version it covers and its expiry, signed with NaCl sign (Ed25519). The file
// format is the base64 encoding of the signed message.
package license

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/nacl/sign"

	"github.com/opd-ai/voxroom/limits"
)

var (
	// ErrMissing indicates that no license was supplied.
	ErrMissing = errors.New("license missing")

	// ErrTampered indicates a license whose signature does not verify or
	// whose payload cannot be decoded.
	ErrTampered = errors.New("license signature invalid")

	// ErrExpired indicates a license past its expiry time.
	ErrExpired = errors.New("license expired")

	// ErrVersionMismatch indicates a license issued for another major
	// version of the product.
	ErrVersionMismatch = errors.New("license does not cover this version")
)

// Info is the signed license payload.
type Info struct {
	Licensee     string    `json:"licensee"`
	Product      string    `json:"product"`
	MajorVersion int       `json:"major_version"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Covers reports whether the license applies to version (major.minor.patch,
// optional leading v).
func (i Info) Covers(version string) bool {
	major, err := majorOf(version)
	if err != nil {
		return false
	}
	return major == i.MajorVersion
}

func majorOf(version string) (int, error) {
	v := strings.TrimPrefix(version, "v")
	if idx := strings.IndexByte(v, '.'); idx >= 0 {
		v = v[:idx]
	}
	return strconv.Atoi(v)
}

// PublicKey verifies licenses.
type PublicKey [32]byte

// PrivateKey issues licenses.
type PrivateKey [64]byte

// GenerateKey creates a signing key pair. A nil random source uses
// crypto/rand.
func GenerateKey(random io.Reader) (*PublicKey, *PrivateKey, error) {
	if random == nil {
		random = rand.Reader
	}
	pub, priv, err := sign.GenerateKey(random)
	if err != nil {
		return nil, nil, fmt.Errorf("generate license key: %w", err)
	}
	return (*PublicKey)(pub), (*PrivateKey)(priv), nil
}

// ParsePublicKey decodes a hex encoded public key.
func ParsePublicKey(s string) (*PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("public key is %d bytes, want 32", len(raw))
	}
	var pk PublicKey
	copy(pk[:], raw)
	return &pk, nil
}

// String returns the hex encoding of the key.
func (pk *PublicKey) String() string { return hex.EncodeToString(pk[:]) }

// Issue signs info and returns the license file contents.
func Issue(info Info, key *PrivateKey) ([]byte, error) {
	if key == nil {
		return nil, errors.New("issue license: nil key")
	}
	payload, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("encode license: %w", err)
	}
	signed := sign.Sign(nil, payload, (*[64]byte)(key))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(signed)))
	base64.StdEncoding.Encode(out, signed)
	return out, nil
}

// Parse checks the signature of a license file and returns its payload. It
// does not check expiry or version; see Verify.
func Parse(data []byte, key *PublicKey) (Info, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Info{}, ErrMissing
	}
	if key == nil {
		return Info{}, fmt.Errorf("no verification key: %w", ErrTampered)
	}
	signed := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(signed, data)
	if err != nil {
		return Info{}, fmt.Errorf("decode license: %w", ErrTampered)
	}
	payload, ok := sign.Open(nil, signed[:n], (*[32]byte)(key))
	if !ok {
		return Info{}, ErrTampered
	}
	var info Info
	if err := json.Unmarshal(payload, &info); err != nil {
		return Info{}, fmt.Errorf("decode license payload: %w", ErrTampered)
	}
	return info, nil
}

// Verify parses a license file and checks that it covers version at now.
// The payload is returned alongside expiry and version errors so callers can
// report who the license belonged to.
func Verify(data []byte, key *PublicKey, version string, now time.Time) (Info, error) {
	info, err := Parse(data, key)
	if err != nil {
		return info, err
	}
	if !info.ExpiresAt.IsZero() && now.After(info.ExpiresAt) {
		return info, fmt.Errorf("expired %s: %w", info.ExpiresAt.Format(time.RFC3339), ErrExpired)
	}
	if !info.Covers(version) {
		return info, fmt.Errorf("issued for major version %d, running %s: %w", info.MajorVersion, version, ErrVersionMismatch)
	}
	return info, nil
}

// LoadFile reads and verifies a license file.
func LoadFile(path string, key *PublicKey, version string, now time.Time) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Info{}, fmt.Errorf("%s: %w", path, ErrMissing)
		}
		return Info{}, fmt.Errorf("read license: %w", err)
	}
	if err := limits.ValidateSize(data, limits.MaxLicenseFile); errors.Is(err, limits.ErrTooLarge) {
		return Info{}, fmt.Errorf("%s: %w: %w", path, ErrTampered, err)
	}
	return Verify(data, key, version, now)
}
