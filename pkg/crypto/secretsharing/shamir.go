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

package secretsharing

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/jeremyhahn/go-treasury/pkg/crypto/gf256"
)

const (
	// MinThreshold is the smallest meaningful threshold. A threshold of one
	// would hand the secret to every share holder.
	MinThreshold = 2

	// MaxShares is bounded by the non-zero elements of GF(256).
	MaxShares = 255
)

// ShareConfig configures secret sharing parameters.
type ShareConfig struct {
	Threshold   int // M - minimum shares needed to reconstruct
	TotalShares int // N - total shares to create
}

// Validate checks 2 <= M <= N <= 255.
func (c *ShareConfig) Validate() error {
	if c == nil {
		return invalidParameter("config cannot be nil")
	}
	if c.Threshold < MinThreshold {
		return invalidParameter("threshold must be at least %d, got %d", MinThreshold, c.Threshold)
	}
	if c.TotalShares < c.Threshold {
		return invalidParameter("total shares (%d) must be >= threshold (%d)", c.TotalShares, c.Threshold)
	}
	if c.TotalShares > MaxShares {
		return invalidParameter("total shares must be <= %d, got %d", MaxShares, c.TotalShares)
	}
	return nil
}

func (c *ShareConfig) String() string {
	return fmt.Sprintf("%d-of-%d", c.Threshold, c.TotalShares)
}

// Share is a single point of the sharing polynomials: Value[i] is the
// evaluation at x = ID of the polynomial hiding secret byte i.
type Share struct {
	ID    byte   // 1-255, 0 is the secret itself
	Value []byte // same length as the secret
}

// Clone returns a deep copy of the share.
func (s Share) Clone() Share {
	v := make([]byte, len(s.Value))
	copy(v, s.Value)
	return Share{ID: s.ID, Value: v}
}

// Shamir implements Shamir's Secret Sharing Scheme over GF(256).
type Shamir struct {
	config *ShareConfig
	rand   io.Reader
}

// NewShamir creates a new Shamir instance with the given configuration.
// Returns an error wrapping ErrInvalidParameter if the configuration is invalid.
func NewShamir(config *ShareConfig) (*Shamir, error) {
	return newShamir(config, rand.Reader)
}

func newShamir(config *ShareConfig, r io.Reader) (*Shamir, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Shamir{
		config: &ShareConfig{Threshold: config.Threshold, TotalShares: config.TotalShares},
		rand:   r,
	}, nil
}

// Config returns a copy of the instance configuration.
func (s *Shamir) Config() ShareConfig {
	return *s.config
}

// Split divides secret into TotalShares shares with ids 1..N, any Threshold
// of which reconstruct it.
func (s *Shamir) Split(secret []byte) ([]Share, error) {
	if len(secret) == 0 {
		return nil, invalidParameter("secret cannot be empty")
	}

	m, n := s.config.Threshold, s.config.TotalShares

	shares := make([]Share, n)
	for i := range shares {
		shares[i].ID = byte(i + 1)
		shares[i].Value = make([]byte, len(secret))
	}

	// p(x) = a0 + a1*x + ... + a(m-1)*x^(m-1), a0 is the secret byte.
	// Coefficients are drawn fresh for every byte position.
	coeffs := make([]byte, m)
	defer Zero(coeffs)

	for byteIdx, b := range secret {
		coeffs[0] = b
		if _, err := io.ReadFull(s.rand, coeffs[1:]); err != nil {
			for i := range shares {
				Zero(shares[i].Value)
			}
			return nil, fmt.Errorf("secretsharing: failed to generate random coefficients: %w", err)
		}
		for i := range shares {
			shares[i].Value[byteIdx] = evaluatePolynomial(coeffs, shares[i].ID)
		}
	}

	return shares, nil
}

// Combine reconstructs the secret from the first Threshold shares supplied.
// Every supplied share is checked for a valid id, equal value length and a
// unique id before interpolation.
func (s *Shamir) Combine(shares []Share) ([]byte, error) {
	m := s.config.Threshold
	if len(shares) < m {
		return nil, &InsufficientSharesError{Have: len(shares), Need: m}
	}
	if err := Verify(shares); err != nil {
		return nil, err
	}
	return interpolate(shares[:m])
}

// Split divides secret into n shares, any m of which reconstruct it.
func Split(secret []byte, m, n int) ([]Share, error) {
	if len(secret) == 0 {
		return nil, invalidParameter("secret cannot be empty")
	}
	s, err := NewShamir(&ShareConfig{Threshold: m, TotalShares: n})
	if err != nil {
		return nil, err
	}
	return s.Split(secret)
}

// Combine reconstructs a secret split with threshold m. Only the first m
// shares are used for interpolation.
func Combine(shares []Share, m int) ([]byte, error) {
	if m < MinThreshold || m > MaxShares {
		return nil, invalidParameter("threshold must be in [%d, %d], got %d", MinThreshold, MaxShares, m)
	}
	if len(shares) < m {
		return nil, &InsufficientSharesError{Have: len(shares), Need: m}
	}
	if err := Verify(shares); err != nil {
		return nil, err
	}
	return interpolate(shares[:m])
}

// Verify checks that shares are structurally consistent: non-zero ids,
// non-empty values of equal length and no repeated id.
func Verify(shares []Share) error {
	if len(shares) == 0 {
		return malformedShare("no shares")
	}
	want := len(shares[0].Value)
	var seen [256]bool
	for i, share := range shares {
		if share.ID == 0 {
			return malformedShare("share %d has invalid id 0", i)
		}
		if len(share.Value) == 0 {
			return malformedShare("share %d has empty value", share.ID)
		}
		if len(share.Value) != want {
			return malformedShare("share %d has length %d, expected %d", share.ID, len(share.Value), want)
		}
		if seen[share.ID] {
			return fmt.Errorf("%w: %d", ErrDuplicateShareID, share.ID)
		}
		seen[share.ID] = true
	}
	return nil
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// evaluatePolynomial evaluates a polynomial at point x in GF(256).
// Uses Horner's method: p(x) = a0 + x(a1 + x(a2 + ... + x*an))
func evaluatePolynomial(coeffs []byte, x byte) byte {
	if len(coeffs) == 0 {
		return 0
	}
	result := coeffs[len(coeffs)-1]
	for i := len(coeffs) - 2; i >= 0; i-- {
		result = gf256.Add(gf256.Multiply(result, x), coeffs[i])
	}
	return result
}

// lagrangeBasis returns l_j(0) = prod_{m != j} x_m / (x_j - x_m) for every
// share. The basis only depends on the ids, so it is shared by all bytes.
func lagrangeBasis(shares []Share) ([]byte, error) {
	basis := make([]byte, len(shares))
	for j := range shares {
		xj := shares[j].ID
		var num, den byte = 1, 1
		for m := range shares {
			if m == j {
				continue
			}
			xm := shares[m].ID
			num = gf256.Multiply(num, xm)
			den = gf256.Multiply(den, gf256.Add(xj, xm))
		}
		l, err := gf256.Divide(num, den)
		if err != nil {
			if errors.Is(err, gf256.ErrZeroInverse) {
				return nil, fmt.Errorf("%w: share %d: %v", ErrArithmetic, xj, err)
			}
			return nil, err
		}
		basis[j] = l
	}
	return basis, nil
}

func interpolate(shares []Share) ([]byte, error) {
	basis, err := lagrangeBasis(shares)
	if err != nil {
		return nil, err
	}
	secret := make([]byte, len(shares[0].Value))
	for byteIdx := range secret {
		var acc byte
		for j := range shares {
			acc = gf256.Add(acc, gf256.Multiply(shares[j].Value[byteIdx], basis[j]))
		}
		secret[byteIdx] = acc
	}
	return secret, nil
}
