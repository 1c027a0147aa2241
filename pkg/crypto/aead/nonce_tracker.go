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

import (
	"fmt"
	"sync"
)

// NonceTracker remembers every nonce used with one key and refuses repeats.
// It is safe for concurrent use.
type NonceTracker struct {
	mu     sync.RWMutex
	nonces map[[NonceSize]byte]struct{}
}

// NewNonceTracker returns an empty tracker.
func NewNonceTracker() *NonceTracker {
	return &NonceTracker{
		nonces: make(map[[NonceSize]byte]struct{}),
	}
}

// CheckAndRecordNonce records nonce, or returns ErrNonceReuse if it has
// been seen before. Nonces of the wrong size are rejected outright.
func (nt *NonceTracker) CheckAndRecordNonce(nonce []byte) error {
	if len(nonce) != NonceSize {
		return fmt.Errorf("aead: nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}
	var k [NonceSize]byte
	copy(k[:], nonce)

	nt.mu.Lock()
	defer nt.mu.Unlock()

	if _, exists := nt.nonces[k]; exists {
		return ErrNonceReuse
	}
	nt.nonces[k] = struct{}{}
	return nil
}

// Contains reports whether nonce has been recorded.
func (nt *NonceTracker) Contains(nonce []byte) bool {
	if len(nonce) != NonceSize {
		return false
	}
	var k [NonceSize]byte
	copy(k[:], nonce)

	nt.mu.RLock()
	defer nt.mu.RUnlock()

	_, exists := nt.nonces[k]
	return exists
}

// Count returns the number of recorded nonces.
func (nt *NonceTracker) Count() int {
	nt.mu.RLock()
	defer nt.mu.RUnlock()
	return len(nt.nonces)
}

// Clear forgets all nonces. Only call this after rotating the key.
func (nt *NonceTracker) Clear() {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	nt.nonces = make(map[[NonceSize]byte]struct{})
}
