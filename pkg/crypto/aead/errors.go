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

package aead

import "errors"

var (
	// ErrNonceReuse is returned when a nonce is reused with the same key.
	// This is a critical security error for AEAD ciphers (AES-GCM, ChaCha20-Poly1305).
	//
	// Nonce reuse consequences:
	//   - AES-GCM: Breaks authentication and can leak the auth key
	//   - ChaCha20-Poly1305: Can leak keystream and compromise confidentiality
	ErrNonceReuse = errors.New("aead: catastrophic nonce reuse detected - encryption rejected for security")

	// ErrKeyExhausted is returned once a key has reached its message or
	// byte budget and must be rotated.
	ErrKeyExhausted = errors.New("aead: key usage limit exceeded")

	// ErrUnsupportedAlgorithm is returned for unknown algorithm names.
	ErrUnsupportedAlgorithm = errors.New("aead: unsupported algorithm")

	// ErrInvalidKeySize is returned when a key is not KeySize bytes.
	ErrInvalidKeySize = errors.New("aead: invalid key size")
)
