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

// Package kdf derives envelope keys from passphrases and process key files.
//
// Argon2id and PBKDF2 stretch low entropy passphrases; HKDF expands high
// entropy key material bound to a context string. Parameters serialize to a
// flat string map so they can be stored next to the ciphertext they protect.
package kdf

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// Algorithm names a key derivation function.
type Algorithm string

const (
	// Argon2id is the memory-hard default for passphrases.
	Argon2id Algorithm = "argon2id"

	// PBKDF2 is PBKDF2-HMAC-SHA256, for environments that require FIPS primitives.
	PBKDF2 Algorithm = "pbkdf2-sha256"

	// HKDF is HKDF-SHA256 (RFC 5869) for uniformly random input key material.
	HKDF Algorithm = "hkdf-sha256"
)

const (
	// MinSaltLength is the minimum salt length in bytes for password KDFs
	MinSaltLength = 16

	// MinArgon2Memory is the minimum memory cost in KiB
	MinArgon2Memory = 8 * 1024 // 8 MiB

	// MaxArgon2Memory caps the memory cost in KiB. Stored parameters are
	// read from disk and must not be able to force an arbitrary allocation.
	MaxArgon2Memory = 1024 * 1024 // 1 GiB

	// MaxArgon2Time caps the number of Argon2id passes
	MaxArgon2Time = 64

	// MaxArgon2Threads caps the number of Argon2id lanes
	MaxArgon2Threads = 64

	// MinPBKDF2Iterations follows the OWASP floor for PBKDF2-SHA256.
	MinPBKDF2Iterations = 100000

	// MaxPBKDF2Iterations caps the PBKDF2 work factor
	MaxPBKDF2Iterations = 10000000

	// MaxKeyLength caps the output of the password KDFs.
	MaxKeyLength = 1024

	// DefaultKeyLength matches the envelope key size.
	DefaultKeyLength = 32
)

var (
	// ErrInvalidSalt indicates the salt is invalid (nil, empty, or too short)
	ErrInvalidSalt = errors.New("kdf: invalid salt")

	// ErrInvalidKeyLength indicates the requested key length is invalid
	ErrInvalidKeyLength = errors.New("kdf: invalid key length")

	// ErrInvalidCost covers memory, time, thread and iteration parameters.
	ErrInvalidCost = errors.New("kdf: invalid cost parameter")

	// ErrInvalidIKM indicates the input key material is invalid
	ErrInvalidIKM = errors.New("kdf: invalid input key material")

	// ErrUnsupportedAlgorithm indicates the algorithm is not supported
	ErrUnsupportedAlgorithm = errors.New("kdf: unsupported algorithm")
)

// Params configures a derivation. Unused fields are ignored by each algorithm.
type Params struct {
	Algorithm  Algorithm
	Salt       []byte
	Info       []byte // HKDF only
	Time       uint32 // Argon2id passes
	Memory     uint32 // Argon2id memory in KiB
	Threads    uint8  // Argon2id lanes
	Iterations int    // PBKDF2 only
	KeyLength  int
}

// DefaultParams returns recommended parameters for algorithm, without a salt.
func DefaultParams(algorithm Algorithm) *Params {
	switch algorithm {
	case Argon2id:
		return &Params{
			Algorithm: Argon2id,
			Time:      3,
			Memory:    64 * 1024, // 64 MiB
			Threads:   4,
			KeyLength: DefaultKeyLength,
		}
	case PBKDF2:
		return &Params{
			Algorithm:  PBKDF2,
			Iterations: 600000, // OWASP recommendation for PBKDF2-SHA256 (2023)
			KeyLength:  DefaultKeyLength,
		}
	case HKDF:
		return &Params{
			Algorithm: HKDF,
			KeyLength: DefaultKeyLength,
		}
	default:
		return nil
	}
}

// WithRandomSalt fills a fresh MinSaltLength*2 byte salt and returns p.
func (p *Params) WithRandomSalt() (*Params, error) {
	salt := make([]byte, 2*MinSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("kdf: failed to generate salt: %w", err)
	}
	p.Salt = salt
	return p, nil
}

// Validate checks the parameters for p.Algorithm.
func (p *Params) Validate() error {
	if p == nil {
		return ErrUnsupportedAlgorithm
	}
	if p.KeyLength <= 0 {
		return ErrInvalidKeyLength
	}
	switch p.Algorithm {
	case Argon2id:
		if len(p.Salt) < MinSaltLength {
			return ErrInvalidSalt
		}
		if p.KeyLength > MaxKeyLength {
			return ErrInvalidKeyLength
		}
		if p.Memory < MinArgon2Memory || p.Memory > MaxArgon2Memory {
			return fmt.Errorf("%w: memory %d KiB outside %d..%d", ErrInvalidCost, p.Memory, MinArgon2Memory, MaxArgon2Memory)
		}
		if p.Time < 1 || p.Time > MaxArgon2Time || p.Threads < 1 || p.Threads > MaxArgon2Threads {
			return fmt.Errorf("%w: time %d, threads %d", ErrInvalidCost, p.Time, p.Threads)
		}
	case PBKDF2:
		if len(p.Salt) < MinSaltLength {
			return ErrInvalidSalt
		}
		if p.KeyLength > MaxKeyLength {
			return ErrInvalidKeyLength
		}
		if p.Iterations < MinPBKDF2Iterations || p.Iterations > MaxPBKDF2Iterations {
			return fmt.Errorf("%w: iterations %d outside %d..%d", ErrInvalidCost, p.Iterations, MinPBKDF2Iterations, MaxPBKDF2Iterations)
		}
	case HKDF:
		if p.KeyLength > 255*sha256.Size {
			return ErrInvalidKeyLength
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, p.Algorithm)
	}
	return nil
}

// DeriveKey derives p.KeyLength bytes from ikm.
func DeriveKey(ikm []byte, p *Params) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(ikm) == 0 {
		return nil, ErrInvalidIKM
	}

	switch p.Algorithm {
	case Argon2id:
		return argon2.IDKey(ikm, p.Salt, p.Time, p.Memory, p.Threads, uint32(p.KeyLength)), nil
	case PBKDF2:
		return pbkdf2.Key(ikm, p.Salt, p.Iterations, p.KeyLength, sha256.New), nil
	default:
		key := make([]byte, p.KeyLength)
		if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, p.Salt, p.Info), key); err != nil {
			return nil, fmt.Errorf("kdf: hkdf expand: %w", err)
		}
		return key, nil
	}
}

// Encode flattens p for storage. Info is omitted; callers rebind it.
func (p *Params) Encode() map[string]string {
	m := map[string]string{
		"kdf":        string(p.Algorithm),
		"salt":       base64.StdEncoding.EncodeToString(p.Salt),
		"key_length": strconv.Itoa(p.KeyLength),
	}
	switch p.Algorithm {
	case Argon2id:
		m["time"] = strconv.FormatUint(uint64(p.Time), 10)
		m["memory"] = strconv.FormatUint(uint64(p.Memory), 10)
		m["threads"] = strconv.FormatUint(uint64(p.Threads), 10)
	case PBKDF2:
		m["iterations"] = strconv.Itoa(p.Iterations)
	}
	return m
}

// DecodeParams is the inverse of Encode.
func DecodeParams(m map[string]string) (*Params, error) {
	p := &Params{Algorithm: Algorithm(m["kdf"])}

	var err error
	if p.Salt, err = base64.StdEncoding.DecodeString(m["salt"]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSalt, err)
	}
	if p.KeyLength, err = strconv.Atoi(m["key_length"]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyLength, err)
	}

	switch p.Algorithm {
	case Argon2id:
		t, err1 := strconv.ParseUint(m["time"], 10, 32)
		mem, err2 := strconv.ParseUint(m["memory"], 10, 32)
		th, err3 := strconv.ParseUint(m["threads"], 10, 8)
		if err := errors.Join(err1, err2, err3); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCost, err)
		}
		p.Time, p.Memory, p.Threads = uint32(t), uint32(mem), uint8(th)
	case PBKDF2:
		if p.Iterations, err = strconv.Atoi(m["iterations"]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCost, err)
		}
	}
	return p, p.Validate()
}
