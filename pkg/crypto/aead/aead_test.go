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
	"crypto/rand"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/cpu"
)

func TestHasAESNI(t *testing.T) {
	hasAES := HasAESNI()

	switch runtime.GOARCH {
	case "amd64":
		assert.Equal(t, cpu.X86.HasAES, hasAES)
	case "arm64":
		assert.Equal(t, cpu.ARM64.HasAES, hasAES)
	default:
		assert.False(t, hasAES)
	}
	t.Logf("CPU architecture: %s, AES-NI support: %v", runtime.GOARCH, hasAES)
}

func TestSelectOptimal(t *testing.T) {
	assert.Equal(t, AES256GCM, SelectOptimal(true))
	if HasAESNI() {
		assert.Equal(t, AES256GCM, SelectOptimal(false))
	} else {
		assert.Equal(t, ChaCha20Poly1305, SelectOptimal(false))
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"aes256-gcm", AES256GCM, false},
		{"AES-256-GCM", AES256GCM, false},
		{"A256GCM", AES256GCM, false},
		{"chacha20-poly1305", ChaCha20Poly1305, false},
		{" ChaCha20Poly1305 ", ChaCha20Poly1305, false},
		{"auto", SelectOptimal(false), false},
		{"", SelectOptimal(false), false},
		{"des-cbc", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Resolve(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)

	for _, alg := range []string{AES256GCM, ChaCha20Poly1305} {
		t.Run(alg, func(t *testing.T) {
			c, err := New(alg, key)
			require.NoError(t, err)
			assert.Equal(t, NonceSize, c.NonceSize())
			assert.Equal(t, TagSize, c.Overhead())
		})
	}

	_, err = New(AES256GCM, key[:16])
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = New("rot13", key)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestNonceTracker(t *testing.T) {
	tracker := NewNonceTracker()
	assert.Equal(t, 0, tracker.Count())

	nonce := make([]byte, NonceSize)
	_, _ = rand.Read(nonce)

	require.NoError(t, tracker.CheckAndRecordNonce(nonce))
	assert.ErrorIs(t, tracker.CheckAndRecordNonce(nonce), ErrNonceReuse)
	assert.True(t, tracker.Contains(nonce))

	nonce2 := make([]byte, NonceSize)
	_, _ = rand.Read(nonce2)
	require.NoError(t, tracker.CheckAndRecordNonce(nonce2))
	assert.Equal(t, 2, tracker.Count())

	assert.Error(t, tracker.CheckAndRecordNonce([]byte{1, 2, 3}))
	assert.False(t, tracker.Contains([]byte{1, 2, 3}))

	tracker.Clear()
	assert.Equal(t, 0, tracker.Count())
	assert.False(t, tracker.Contains(nonce))
}

func TestNonceTracker_Concurrent(t *testing.T) {
	tracker := NewNonceTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			nonce := make([]byte, NonceSize)
			nonce[0] = byte(i)
			assert.NoError(t, tracker.CheckAndRecordNonce(nonce))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, tracker.Count())
}

func TestTracker_NonceReusePerKey(t *testing.T) {
	tr := NewTracker(Limits{})
	k1 := make([]byte, KeySize)
	k2 := make([]byte, KeySize)
	k2[0] = 1
	nonce := make([]byte, NonceSize)

	require.NoError(t, tr.Record(k1, nonce, 10))
	assert.ErrorIs(t, tr.Record(k1, nonce, 10), ErrNonceReuse)

	// The same nonce under a different key is fine.
	require.NoError(t, tr.Record(k2, nonce, 10))

	u := tr.Usage(k1)
	assert.Equal(t, Usage{Messages: 1, Bytes: 10, Nonces: 1}, u)

	tr.Forget(k1)
	assert.Equal(t, Usage{}, tr.Usage(k1))
	require.NoError(t, tr.Record(k1, nonce, 10))
}

func TestTracker_Limits(t *testing.T) {
	key := make([]byte, KeySize)

	t.Run("messages", func(t *testing.T) {
		tr := NewTracker(Limits{Messages: 2})
		require.NoError(t, tr.Record(key, []byte("nonce-000001"), 1))
		require.NoError(t, tr.Record(key, []byte("nonce-000002"), 1))
		assert.ErrorIs(t, tr.Record(key, []byte("nonce-000003"), 1), ErrKeyExhausted)
		assert.Equal(t, int64(2), tr.Usage(key).Messages)
	})

	t.Run("bytes", func(t *testing.T) {
		tr := NewTracker(Limits{Bytes: 100})
		require.NoError(t, tr.Record(key, []byte("nonce-000001"), 60))
		assert.ErrorIs(t, tr.Record(key, []byte("nonce-000002"), 41), ErrKeyExhausted)
		// A rejected call records nothing, including its nonce.
		require.NoError(t, tr.Record(key, []byte("nonce-000002"), 40))
		assert.Equal(t, int64(100), tr.Usage(key).Bytes)
	})
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("key-a"))
	assert.Len(t, a, 32)
	assert.Equal(t, a, Fingerprint([]byte("key-a")))
	assert.NotEqual(t, a, Fingerprint([]byte("key-b")))
}
