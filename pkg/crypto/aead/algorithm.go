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

// Package aead selects and constructs the authenticated ciphers used by the
// envelope codec, and tracks per-key usage so a key is never asked to
// encrypt under a repeated nonce or past its safe message budget.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/sys/cpu"
)

const (
	// AES256GCM is AES-256 in Galois/Counter Mode.
	// Best performance on CPUs with AES-NI.
	AES256GCM = "aes256-gcm"

	// ChaCha20Poly1305 is the RFC 8439 AEAD.
	// Best performance on CPUs without AES-NI.
	ChaCha20Poly1305 = "chacha20-poly1305"

	// Auto picks one of the above from CPU capabilities.
	Auto = "auto"
)

const (
	// KeySize is the key length of both supported ciphers.
	KeySize = 32

	// NonceSize is the nonce length of both supported ciphers.
	NonceSize = 12

	// TagSize is the authentication tag length of both supported ciphers.
	TagSize = 16
)

// HasAESNI reports whether the CPU has hardware AES acceleration.
func HasAESNI() bool {
	switch runtime.GOARCH {
	case "amd64":
		return cpu.X86.HasAES
	case "arm64":
		return cpu.ARM64.HasAES
	default:
		return false
	}
}

// SelectOptimal returns the best algorithm for the current CPU.
// Hardware-backed keys always get AES-256-GCM.
func SelectOptimal(isHardwareBacked bool) string {
	if isHardwareBacked || HasAESNI() {
		return AES256GCM
	}
	// ChaCha20 is constant time in software and faster than AES without AES-NI
	return ChaCha20Poly1305
}

// Resolve normalizes an algorithm name, expanding Auto and the empty string.
func Resolve(algorithm string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", Auto:
		return SelectOptimal(false), nil
	case AES256GCM, "aes-256-gcm", "a256gcm":
		return AES256GCM, nil
	case ChaCha20Poly1305, "chacha20poly1305":
		return ChaCha20Poly1305, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
}

// New constructs the AEAD for algorithm keyed with key.
func New(algorithm string, key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeySize, len(key), KeySize)
	}
	switch algorithm {
	case AES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("aead: failed to create AES cipher: %w", err)
		}
		return cipher.NewGCM(block)
	case ChaCha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
}
