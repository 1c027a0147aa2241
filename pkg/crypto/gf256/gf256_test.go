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

package gf256

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiply_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		a, b byte
		want byte
	}{
		{"zero left", 0x00, 0x53, 0x00},
		{"zero right", 0x53, 0x00, 0x00},
		{"identity", 0x01, 0xAB, 0xAB},
		{"aes example", 0x57, 0x83, 0xC1},
		{"aes xtime", 0x57, 0x13, 0xFE},
		{"inverse pair", 0x53, 0xCA, 0x01},
		{"generator squared", 0x03, 0x03, 0x05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Multiply(tt.a, tt.b))
			assert.Equal(t, tt.want, Multiply(tt.b, tt.a))
		})
	}
}

func TestMultiply_MatchesPeasant(t *testing.T) {
	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b++ {
			if got, want := Multiply(byte(a), byte(b)), mulSlow(byte(a), byte(b)); got != want {
				t.Fatalf("Multiply(%#x, %#x) = %#x, want %#x", a, b, got, want)
			}
		}
	}
}

func TestInverse(t *testing.T) {
	_, err := Inverse(0)
	require.ErrorIs(t, err, ErrZeroInverse)

	for a := 1; a < 256; a++ {
		inv, err := Inverse(byte(a))
		require.NoError(t, err)
		assert.Equal(t, byte(1), Multiply(byte(a), inv), "a=%#x", a)
	}
}

func TestDivide(t *testing.T) {
	_, err := Divide(0x12, 0)
	require.ErrorIs(t, err, ErrZeroInverse)

	for a := 0; a < 256; a++ {
		for _, b := range []byte{1, 2, 3, 0x53, 0xFF} {
			q, err := Divide(byte(a), b)
			require.NoError(t, err)
			assert.Equal(t, byte(a), Multiply(q, b))
		}
	}
}

func TestPower(t *testing.T) {
	assert.Equal(t, byte(1), Power(0, 0))
	assert.Equal(t, byte(1), Power(0x42, 0))
	assert.Equal(t, byte(0), Power(0, 1))
	assert.Equal(t, byte(0), Power(0, 200))

	for a := 1; a < 256; a++ {
		acc := byte(1)
		for k := uint(0); k < 600; k++ {
			require.Equal(t, acc, Power(byte(a), k), "a=%#x k=%d", a, k)
			acc = Multiply(acc, byte(a))
		}
		// Fermat: a^255 = 1 for every non-zero element.
		assert.Equal(t, byte(1), Power(byte(a), Order))
	}
}

func TestTables_GeneratorIsPrimitive(t *testing.T) {
	seen := make(map[byte]bool)
	for e := 0; e < Order; e++ {
		seen[Exp(e)] = true
	}
	assert.Len(t, seen, Order)
	assert.False(t, seen[0])

	for a := 1; a < 256; a++ {
		l, err := Log(byte(a))
		require.NoError(t, err)
		assert.Equal(t, byte(a), Exp(l))
	}
	_, err := Log(0)
	assert.Error(t, err)
	assert.Equal(t, Exp(1), Exp(-254))
}

func TestAdd(t *testing.T) {
	assert.Equal(t, byte(0), Add(0x5A, 0x5A))
	assert.Equal(t, byte(0xFF), Add(0xF0, 0x0F))
}

func TestConcurrentFirstUse(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a := byte(i + 1)
			inv, err := Inverse(a)
			assert.NoError(t, err)
			assert.Equal(t, byte(1), Multiply(a, inv))
		}(i)
	}
	wg.Wait()
}

func BenchmarkMultiply(b *testing.B) {
	var x byte = 1
	for i := 0; i < b.N; i++ {
		x = Multiply(x|1, byte(i))
	}
	_ = x
}
