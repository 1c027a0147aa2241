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

package envelope

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/jeremyhahn/go-treasury/pkg/crypto/aead"
)

// Codec encrypts and decrypts envelopes. The zero value is not usable;
// construct one with NewCodec.
type Codec struct {
	version byte
	tracker *aead.Tracker
	rand    io.Reader
}

// Option configures a Codec.
type Option func(*Codec) error

// WithAlgorithm selects the cipher used for new envelopes by AEAD name
// ("aes256-gcm", "chacha20-poly1305" or "auto").
func WithAlgorithm(algorithm string) Option {
	return func(c *Codec) error {
		v, err := VersionFor(algorithm)
		if err != nil {
			return err
		}
		c.version = v
		return nil
	}
}

// WithTracker enables per-key nonce and usage accounting on Encrypt.
func WithTracker(t *aead.Tracker) Option {
	return func(c *Codec) error {
		c.tracker = t
		return nil
	}
}

// WithRandom replaces the nonce source.
func WithRandom(r io.Reader) Option {
	return func(c *Codec) error {
		if r == nil {
			return errors.New("envelope: nil random source")
		}
		c.rand = r
		return nil
	}
}

// NewCodec returns a codec writing CurrentVersion envelopes unless an
// option selects otherwise.
func NewCodec(opts ...Option) (*Codec, error) {
	c := &Codec{
		version: CurrentVersion,
		rand:    rand.Reader,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Version returns the version written by Encrypt.
func (c *Codec) Version() byte {
	return c.version
}

// Encrypt seals plaintext under key with no associated data.
func (c *Codec) Encrypt(plaintext, key []byte) (*Envelope, error) {
	return c.Seal(plaintext, key, nil)
}

// Decrypt opens env with key and no associated data.
func (c *Codec) Decrypt(env *Envelope, key []byte) ([]byte, error) {
	return c.Open(env, key, nil)
}

// Seal encrypts plaintext under key, authenticating ad alongside it.
func (c *Codec) Seal(plaintext, key, ad []byte) (*Envelope, error) {
	ae, err := newAEAD(c.version, key)
	if err != nil {
		return nil, err
	}

	env := &Envelope{Version: c.version}
	if _, err := io.ReadFull(c.rand, env.Nonce[:]); err != nil {
		return nil, fmt.Errorf("envelope: failed to generate nonce: %w", err)
	}
	if c.tracker != nil {
		if err := c.tracker.Record(key, env.Nonce[:], len(plaintext)); err != nil {
			return nil, err
		}
	}

	// Seal appends ciphertext || tag.
	sealed := ae.Seal(nil, env.Nonce[:], plaintext, ad)
	split := len(sealed) - TagSize
	env.Ciphertext = sealed[:split:split]
	copy(env.Tag[:], sealed[split:])
	return env, nil
}

// Open authenticates and decrypts env under key and ad.
func (c *Codec) Open(env *Envelope, key, ad []byte) ([]byte, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: nil envelope", ErrMalformedEnvelope)
	}
	ae, err := newAEAD(env.Version, key)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+TagSize)
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag[:]...)

	plaintext, err := ae.Open(sealed[:0], env.Nonce[:], sealed, ad)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

func newAEAD(version byte, key []byte) (cipher.AEAD, error) {
	alg, err := Algorithm(version)
	if err != nil {
		return nil, err
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(key), KeySize)
	}
	return aead.New(alg, key)
}

var defaultCodec = &Codec{version: CurrentVersion, rand: rand.Reader}

// Encrypt seals plaintext under a 32-byte key as a version 1 envelope.
func Encrypt(plaintext, key []byte) (*Envelope, error) {
	return defaultCodec.Encrypt(plaintext, key)
}

// Decrypt opens any supported envelope version.
func Decrypt(env *Envelope, key []byte) ([]byte, error) {
	return defaultCodec.Decrypt(env, key)
}

// EncryptString is Encrypt followed by the base64 text form.
func EncryptString(plaintext, key []byte) (string, error) {
	env, err := Encrypt(plaintext, key)
	if err != nil {
		return "", err
	}
	return env.String(), nil
}

// DecryptString parses the base64 text form and decrypts it.
func DecryptString(s string, key []byte) ([]byte, error) {
	env, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return Decrypt(env, key)
}
