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
	"crypto/rand"
	"errors"
	"fmt"
	"os"

	"github.com/jeremyhahn/go-treasury/pkg/crypto/aead"
	"github.com/jeremyhahn/go-treasury/pkg/crypto/envelope"
	"github.com/jeremyhahn/go-treasury/pkg/crypto/kdf"
	"github.com/jeremyhahn/go-treasury/pkg/crypto/secretsharing"
)

var keyFileInfo = []byte("go-treasury/keywrap/keyfile/v1")

// MinKeyFileSize is the minimum amount of key material in a key file.
const MinKeyFileSize = 32

// KeyFile wraps keys under a process bound secret read from a file the
// service account owns. Per-wrap keys are expanded with HKDF and a random
// salt, so the file key itself never encrypts anything.
type KeyFile struct {
	material []byte
	keyID    string
	tracker  *aead.Tracker
	codec    *envelope.Codec
}

// NewKeyFile reads the key material at path.
func NewKeyFile(path string) (*KeyFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: key file: %v", ErrInvalidConfig, err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		return nil, fmt.Errorf("%w: key file %s must not be accessible by group or others (mode %04o)",
			ErrInvalidConfig, path, info.Mode().Perm())
	}
	material, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: key file: %v", ErrInvalidConfig, err)
	}
	return NewKeyFileFromBytes(material)
}

// NewKeyFileFromBytes builds a wrapper from in-memory key material.
func NewKeyFileFromBytes(material []byte) (*KeyFile, error) {
	if len(material) < MinKeyFileSize {
		return nil, fmt.Errorf("%w: key file holds %d bytes, need at least %d", ErrInvalidConfig, len(material), MinKeyFileSize)
	}
	tracker := aead.NewTracker(aead.Limits{})
	codec, err := envelope.NewCodec(envelope.WithTracker(tracker))
	if err != nil {
		return nil, err
	}
	return &KeyFile{
		material: append([]byte(nil), material...),
		keyID:    aead.Fingerprint(material),
		tracker:  tracker,
		codec:    codec,
	}, nil
}

// GenerateKeyFile writes 32 random bytes to path with mode 0600. It refuses
// to overwrite an existing file.
func GenerateKeyFile(path string) error {
	key := make([]byte, MinKeyFileSize)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("keywrap: failed to generate key file: %w", err)
	}
	defer secretsharing.Zero(key)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("keywrap: failed to create key file: %w", err)
	}
	if _, err := f.Write(key); err != nil {
		f.Close()
		return fmt.Errorf("keywrap: failed to write key file: %w", err)
	}
	return f.Close()
}

func (k *KeyFile) Type() Type { return TypeKeyFile }

// KeyID is a fingerprint of the key file contents.
func (k *KeyFile) KeyID() string { return k.keyID }

func (k *KeyFile) derive(salt []byte) ([]byte, error) {
	return kdf.DeriveKey(k.material, &kdf.Params{
		Algorithm: kdf.HKDF,
		Salt:      salt,
		Info:      keyFileInfo,
		KeyLength: envelope.KeySize,
	})
}

func (k *KeyFile) Wrap(_ context.Context, dek []byte) (*WrappedKey, error) {
	if err := checkDEK(dek); err != nil {
		return nil, err
	}
	params, err := kdf.DefaultParams(kdf.HKDF).WithRandomSalt()
	if err != nil {
		return nil, err
	}
	kek, err := k.derive(params.Salt)
	if err != nil {
		return nil, err
	}
	defer secretsharing.Zero(kek)

	env, err := k.codec.Seal(dek, kek, keyFileInfo)
	if err != nil {
		return nil, err
	}
	return &WrappedKey{
		Type:       TypeKeyFile,
		KeyID:      k.keyID,
		Ciphertext: env.Bytes(),
		Params:     params.Encode(),
	}, nil
}

func (k *KeyFile) Unwrap(_ context.Context, wk *WrappedKey) ([]byte, error) {
	if err := checkWrapped(k, wk); err != nil {
		return nil, err
	}
	if wk.KeyID != "" && wk.KeyID != k.keyID {
		return nil, fmt.Errorf("%w: wrapped under key file %s, loaded %s", ErrUnwrapFailed, wk.KeyID, k.keyID)
	}
	params, err := kdf.DecodeParams(wk.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnwrapFailed, err)
	}
	env, err := envelope.FromBytes(wk.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnwrapFailed, err)
	}
	kek, err := k.derive(params.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnwrapFailed, err)
	}
	defer secretsharing.Zero(kek)

	dek, err := k.codec.Open(env, kek, keyFileInfo)
	if err != nil {
		if errors.Is(err, envelope.ErrAuthenticationFailed) {
			return nil, fmt.Errorf("%w: %w", ErrUnwrapFailed, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnwrapFailed, err)
	}
	return dek, nil
}
