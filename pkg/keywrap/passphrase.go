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

package keywrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-treasury/pkg/crypto/aead"
	"github.com/jeremyhahn/go-treasury/pkg/crypto/envelope"
	"github.com/jeremyhahn/go-treasury/pkg/crypto/kdf"
	"github.com/jeremyhahn/go-treasury/pkg/crypto/secretsharing"
)

var passphraseAD = []byte("go-treasury/keywrap/passphrase/v1")

// MinPassphraseLength is the shortest passphrase accepted for wrapping.
const MinPassphraseLength = 8

// Passphrase wraps keys under a key stretched from an operator passphrase.
// A fresh salt is drawn for every wrap and stored with the wrapped key.
type Passphrase struct {
	passphrase []byte
	params     kdf.Params
	tracker    *aead.Tracker
	codec      *envelope.Codec
}

// NewPassphrase returns a passphrase wrapper. A nil params selects
// kdf.DefaultParams(kdf.Argon2id); the salt in params is ignored.
func NewPassphrase(passphrase []byte, params *kdf.Params) (*Passphrase, error) {
	if len(passphrase) < MinPassphraseLength {
		return nil, fmt.Errorf("%w: passphrase must be at least %d bytes", ErrInvalidConfig, MinPassphraseLength)
	}
	if params == nil {
		params = kdf.DefaultParams(kdf.Argon2id)
	}
	if params.Algorithm == kdf.HKDF {
		return nil, fmt.Errorf("%w: %s is not a password KDF", ErrInvalidConfig, params.Algorithm)
	}
	tracker := aead.NewTracker(aead.Limits{})
	codec, err := envelope.NewCodec(envelope.WithTracker(tracker))
	if err != nil {
		return nil, err
	}
	p := &Passphrase{
		passphrase: append([]byte(nil), passphrase...),
		params:     *params,
		tracker:    tracker,
		codec:      codec,
	}
	p.params.Salt = nil
	p.params.KeyLength = envelope.KeySize
	return p, nil
}

func (p *Passphrase) Type() Type { return TypePassphrase }

func (p *Passphrase) KeyID() string { return "" }

// Wrap derives a key from the passphrase and a new salt and seals dek.
func (p *Passphrase) Wrap(_ context.Context, dek []byte) (*WrappedKey, error) {
	if err := checkDEK(dek); err != nil {
		return nil, err
	}
	params := p.params
	if _, err := params.WithRandomSalt(); err != nil {
		return nil, err
	}
	kek, err := kdf.DeriveKey(p.passphrase, &params)
	if err != nil {
		return nil, err
	}
	defer secretsharing.Zero(kek)

	env, err := p.codec.Seal(dek, kek, passphraseAD)
	if err != nil {
		return nil, err
	}
	return &WrappedKey{
		Type:       TypePassphrase,
		Ciphertext: env.Bytes(),
		Params:     params.Encode(),
	}, nil
}

// Unwrap re-derives the key from the stored parameters. The stored
// parameters are untrusted: the key length is pinned to the envelope key
// size and the KDF cost limits apply, and every rejection is reported as
// ErrUnwrapFailed.
func (p *Passphrase) Unwrap(_ context.Context, wk *WrappedKey) ([]byte, error) {
	if err := checkWrapped(p, wk); err != nil {
		return nil, err
	}
	params, err := kdf.DecodeParams(wk.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnwrapFailed, err)
	}
	if params.Algorithm == kdf.HKDF {
		return nil, fmt.Errorf("%w: %s is not a password KDF", ErrUnwrapFailed, params.Algorithm)
	}
	if params.KeyLength != envelope.KeySize {
		return nil, fmt.Errorf("%w: key_length %d, want %d", ErrUnwrapFailed, params.KeyLength, envelope.KeySize)
	}
	env, err := envelope.FromBytes(wk.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnwrapFailed, err)
	}
	kek, err := kdf.DeriveKey(p.passphrase, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnwrapFailed, err)
	}
	defer secretsharing.Zero(kek)

	dek, err := p.codec.Open(env, kek, passphraseAD)
	if err != nil {
		if errors.Is(err, envelope.ErrAuthenticationFailed) {
			return nil, fmt.Errorf("%w: wrong passphrase or corrupted key: %w", ErrUnwrapFailed, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnwrapFailed, err)
	}
	return dek, nil
}

// Destroy wipes the passphrase held by p.
func (p *Passphrase) Destroy() {
	secretsharing.Zero(p.passphrase)
}
