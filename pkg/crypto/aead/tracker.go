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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

const (
	// DefaultMessageLimit bounds the number of encryptions per key.
	// NIST SP 800-38D allows at most 2^32 invocations with random 96-bit nonces.
	DefaultMessageLimit int64 = 1 << 32

	// DefaultByteLimit is the default maximum bytes encrypted with a single key.
	DefaultByteLimit int64 = 64 * 1024 * 1024 * 1024
)

// Limits configures a Tracker. Zero values select the defaults.
type Limits struct {
	Messages int64
	Bytes    int64
}

// Usage is a snapshot of one key's consumption.
type Usage struct {
	Messages int64
	Bytes    int64
	Nonces   int
}

type keyState struct {
	nonces   *NonceTracker
	messages int64
	bytes    int64
}

// Tracker accounts for nonce uniqueness and usage limits per key. Keys are
// identified by fingerprint so the tracker never holds key material.
type Tracker struct {
	mu     sync.Mutex
	limits Limits
	keys   map[string]*keyState
}

// NewTracker returns a tracker enforcing limits.
func NewTracker(limits Limits) *Tracker {
	if limits.Messages <= 0 {
		limits.Messages = DefaultMessageLimit
	}
	if limits.Bytes <= 0 {
		limits.Bytes = DefaultByteLimit
	}
	return &Tracker{
		limits: limits,
		keys:   make(map[string]*keyState),
	}
}

// Fingerprint returns a stable, non-reversible identifier for key.
func Fingerprint(key []byte) string {
	sum := sha256.Sum256(append([]byte("go-treasury/aead/key-id\x00"), key...))
	return hex.EncodeToString(sum[:16])
}

// Record accounts for one encryption of n bytes under key with nonce. On
// error nothing is recorded.
func (t *Tracker) Record(key, nonce []byte, n int) error {
	id := Fingerprint(key)

	t.mu.Lock()
	defer t.mu.Unlock()

	ks, ok := t.keys[id]
	if !ok {
		ks = &keyState{nonces: NewNonceTracker()}
		t.keys[id] = ks
	}
	if ks.messages+1 > t.limits.Messages {
		return fmt.Errorf("%w: key %s reached %d messages", ErrKeyExhausted, id, t.limits.Messages)
	}
	if ks.bytes+int64(n) > t.limits.Bytes {
		return fmt.Errorf("%w: key %s would exceed %d bytes (encrypted %d)", ErrKeyExhausted, id, t.limits.Bytes, ks.bytes)
	}
	if err := ks.nonces.CheckAndRecordNonce(nonce); err != nil {
		return err
	}
	ks.messages++
	ks.bytes += int64(n)
	return nil
}

// Usage returns the consumption recorded for key.
func (t *Tracker) Usage(key []byte) Usage {
	id := Fingerprint(key)

	t.mu.Lock()
	defer t.mu.Unlock()

	ks, ok := t.keys[id]
	if !ok {
		return Usage{}
	}
	return Usage{Messages: ks.messages, Bytes: ks.bytes, Nonces: ks.nonces.Count()}
}

// Forget drops all state for key, typically after rotation.
func (t *Tracker) Forget(key []byte) {
	id := Fingerprint(key)

	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.keys, id)
}
