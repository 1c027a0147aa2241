// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-treasury.
//
// go-treasury is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package envelope implements the versioned authenticated encryption format
// used for secrets at rest.
//
// An envelope serializes as
//
//	version (1) || nonce (12) || tag (16) || ciphertext (variable)
//
// and as standard base64 of those bytes in text contexts. Version 1 is
// AES-256-GCM, version 2 is ChaCha20-Poly1305. Both use a 32-byte key, a
// random 96-bit nonce drawn for every encryption and a 128-bit tag.
package envelope

import (
	"encoding/base64"
	"fmt"

	"github.com/jeremyhahn/go-treasury/pkg/crypto/aead"
)

const (
	// VersionAESGCM marks AES-256-GCM envelopes.
	VersionAESGCM byte = 1

	// VersionChaCha20Poly1305 marks ChaCha20-Poly1305 envelopes.
	VersionChaCha20Poly1305 byte = 2

	// CurrentVersion is written by the package level Encrypt.
	CurrentVersion = VersionAESGCM

	KeySize   = aead.KeySize
	NonceSize = aead.NonceSize
	TagSize   = aead.TagSize

	// HeaderSize is the length of an envelope with an empty ciphertext.
	HeaderSize = 1 + NonceSize + TagSize
)

// Envelope is one authenticated ciphertext.
type Envelope struct {
	Version    byte
	Nonce      [NonceSize]byte
	Tag        [TagSize]byte
	Ciphertext []byte
}

// Algorithm returns the AEAD algorithm for v, or an error wrapping
// ErrUnsupportedVersion.
func Algorithm(v byte) (string, error) {
	switch v {
	case VersionAESGCM:
		return aead.AES256GCM, nil
	case VersionChaCha20Poly1305:
		return aead.ChaCha20Poly1305, nil
	default:
		return "", fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
}

// VersionFor returns the envelope version for an AEAD algorithm name.
func VersionFor(algorithm string) (byte, error) {
	alg, err := aead.Resolve(algorithm)
	if err != nil {
		return 0, err
	}
	if alg == aead.ChaCha20Poly1305 {
		return VersionChaCha20Poly1305, nil
	}
	return VersionAESGCM, nil
}

// MarshalBinary encodes e as version || nonce || tag || ciphertext.
func (e *Envelope) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, HeaderSize+len(e.Ciphertext))
	out = append(out, e.Version)
	out = append(out, e.Nonce[:]...)
	out = append(out, e.Tag[:]...)
	out = append(out, e.Ciphertext...)
	return out, nil
}

// UnmarshalBinary decodes data into e. The version byte is not checked
// here so that Decrypt can report ErrUnsupportedVersion.
func (e *Envelope) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedEnvelope, len(data), HeaderSize)
	}
	e.Version = data[0]
	copy(e.Nonce[:], data[1:1+NonceSize])
	copy(e.Tag[:], data[1+NonceSize:HeaderSize])
	e.Ciphertext = make([]byte, len(data)-HeaderSize)
	copy(e.Ciphertext, data[HeaderSize:])
	return nil
}

// Bytes is MarshalBinary without the error.
func (e *Envelope) Bytes() []byte {
	b, _ := e.MarshalBinary()
	return b
}

// String returns the base64 text form.
func (e *Envelope) String() string {
	return base64.StdEncoding.EncodeToString(e.Bytes())
}

// MarshalText implements encoding.TextMarshaler so envelopes embed in JSON
// and YAML documents as base64 strings.
func (e *Envelope) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Envelope) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*e = *parsed
	return nil
}

// FromBytes decodes the binary form.
func FromBytes(data []byte) (*Envelope, error) {
	e := &Envelope{}
	if err := e.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return e, nil
}

// Parse decodes the base64 text form.
func Parse(s string) (*Envelope, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrMalformedEnvelope, err)
	}
	return FromBytes(data)
}
