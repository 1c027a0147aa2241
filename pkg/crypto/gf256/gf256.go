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

// Package gf256 implements arithmetic in the finite field GF(2^8) using the
// AES representation: elements are bytes, addition is XOR and multiplication
// is reduced by the irreducible polynomial x^8 + x^4 + x^3 + x + 1.
//
// Multiplication, exponentiation and inversion are table driven. The
// logarithm and exponentiation tables are built once, on first use, from the
// generator 0x03 and are read-only afterwards, so every function in this
// package is safe for concurrent use.
package gf256

import (
	"errors"
	"fmt"
	"sync"
)

const (
	// Generator is the primitive element used to build the tables.
	Generator byte = 0x03

	// Polynomial is the low byte of the AES reduction polynomial 0x11B.
	Polynomial byte = 0x1B

	// Order is the size of the multiplicative group.
	Order = 255
)

// ErrZeroInverse is returned when the inverse of zero is requested.
var ErrZeroInverse = errors.New("gf256: zero has no multiplicative inverse")

var (
	tablesOnce sync.Once

	// expTable is mirrored to 2*Order entries so that
	// expTable[log[a]+log[b]] never needs a modulo.
	expTable [2 * Order]byte
	logTable [256]byte
)

func tables() {
	tablesOnce.Do(buildTables)
}

// buildTables walks the powers of the generator. If the generator does not
// visit every non-zero element the field is unusable and we panic; no
// caller can recover from broken arithmetic.
func buildTables() {
	var seen [256]bool
	var x byte = 1
	for i := 0; i < Order; i++ {
		if x == 0 || seen[x] {
			panic(fmt.Sprintf("gf256: generator 0x%02x is not primitive (cycle at power %d)", Generator, i))
		}
		seen[x] = true
		expTable[i] = x
		logTable[x] = byte(i)
		x = mulSlow(x, Generator)
	}
	if x != 1 {
		panic(fmt.Sprintf("gf256: generator 0x%02x does not return to 1 after %d powers", Generator, Order))
	}
	for i := Order; i < 2*Order; i++ {
		expTable[i] = expTable[i-Order]
	}
}

// mulSlow is carry-less "peasant" multiplication, only used to build tables.
func mulSlow(a, b byte) byte {
	var p byte
	for b != 0 {
		if b&1 != 0 {
			p ^= a
		}
		hi := a & 0x80
		a <<= 1
		if hi != 0 {
			a ^= Polynomial
		}
		b >>= 1
	}
	return p
}

// Add returns a + b, which is also a - b.
func Add(a, b byte) byte {
	return a ^ b
}

// Multiply returns a * b.
func Multiply(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	tables()
	return expTable[int(logTable[a])+int(logTable[b])]
}

// Power returns a raised to k. Power(a, 0) is 1 for every a, including 0.
func Power(a byte, k uint) byte {
	if k == 0 {
		return 1
	}
	if a == 0 {
		return 0
	}
	tables()
	e := (uint64(logTable[a]) * uint64(k%Order)) % Order
	return expTable[e]
}

// Inverse returns the multiplicative inverse of a.
func Inverse(a byte) (byte, error) {
	if a == 0 {
		return 0, ErrZeroInverse
	}
	tables()
	return expTable[Order-int(logTable[a])], nil
}

// Divide returns a / b.
func Divide(a, b byte) (byte, error) {
	inv, err := Inverse(b)
	if err != nil {
		return 0, err
	}
	return Multiply(a, inv), nil
}

// Exp returns the generator raised to e (mod 255).
func Exp(e int) byte {
	tables()
	e %= Order
	if e < 0 {
		e += Order
	}
	return expTable[e]
}

// Log returns the discrete logarithm of a to the base of the generator.
func Log(a byte) (int, error) {
	if a == 0 {
		return 0, errors.New("gf256: logarithm of zero is undefined")
	}
	tables()
	return int(logTable[a]), nil
}
