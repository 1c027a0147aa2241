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

// Package mnemonic generates and validates BIP-39 mnemonics, the usual
// form of a treasury root secret. Validate doubles as the integrity check
// run on a reconstructed secret before it is trusted.
package mnemonic

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"

	"github.com/jeremyhahn/go-treasury/pkg/crypto/secretsharing"
)

const (
	MinEntropyBits = 128 // 12 words
	MaxEntropyBits = 256 // 24 words
)

var (
	// ErrInvalidMnemonic is returned for phrases with unknown words, a bad
	// word count or a failing checksum.
	ErrInvalidMnemonic = errors.New("mnemonic: invalid mnemonic")

	// ErrInvalidEntropySize is returned for entropy sizes BIP-39 does not define.
	ErrInvalidEntropySize = errors.New("mnemonic: entropy must be 128-256 bits in steps of 32")
)

// Generate returns a new English mnemonic carrying bits of entropy.
func Generate(bits int) (string, error) {
	if bits < MinEntropyBits || bits > MaxEntropyBits || bits%32 != 0 {
		return "", fmt.Errorf("%w, got %d", ErrInvalidEntropySize, bits)
	}
	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", fmt.Errorf("mnemonic: failed to generate entropy: %w", err)
	}
	defer secretsharing.Zero(entropy)

	m, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("mnemonic: %w", err)
	}
	return m, nil
}

// Normalize lower-cases the phrase, collapses runs of whitespace to one
// space and drops surrounding whitespace and trailing NUL padding.
func Normalize(s string) string {
	s = strings.TrimRight(s, "\x00")
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Validate reports whether secret holds a valid BIP-39 mnemonic after
// normalization.
func Validate(secret []byte) error {
	s := Normalize(string(secret))
	if s == "" {
		return fmt.Errorf("%w: empty", ErrInvalidMnemonic)
	}
	if n := WordCount(s); n < 12 || n > 24 || n%3 != 0 {
		return fmt.Errorf("%w: %d words", ErrInvalidMnemonic, n)
	}
	for i, w := range strings.Fields(s) {
		if _, ok := bip39.GetWordIndex(w); !ok {
			return fmt.Errorf("%w: word %d is not in the wordlist", ErrInvalidMnemonic, i+1)
		}
	}
	if !bip39.IsMnemonicValid(s) {
		return fmt.Errorf("%w: checksum mismatch", ErrInvalidMnemonic)
	}
	return nil
}

// WordCount returns the number of words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
