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

// Package keywrap protects data encryption keys with a key encryption key
// held by the operator (a passphrase), the host (a key file) or a managed
// service (AWS KMS, Google Cloud KMS, Azure Key Vault, HashiCorp Vault
// Transit). The wrapped form is self describing so the matching provider
// can be rebuilt from configuration at unwrap time.
package keywrap

import (
	"context"
	"errors"
	"fmt"
)

// Type identifies a key wrapping provider.
type Type string

const (
	TypePassphrase Type = "passphrase"
	TypeKeyFile    Type = "keyfile"
	TypeAWSKMS     Type = "awskms"
	TypeGCPKMS     Type = "gcpkms"
	TypeAzureKV    Type = "azurekv"
	TypeVault      Type = "vault"
)

// Types lists every supported provider.
var Types = []Type{TypePassphrase, TypeKeyFile, TypeAWSKMS, TypeGCPKMS, TypeAzureKV, TypeVault}

var (
	// ErrWrongProvider is returned when a key wrapped by one provider type
	// is handed to another.
	ErrWrongProvider = errors.New("keywrap: wrapped key belongs to a different provider")

	// ErrUnwrapFailed is returned when the key encryption key rejects the
	// wrapped key. A wrong passphrase surfaces this way.
	ErrUnwrapFailed = errors.New("keywrap: unwrap failed")

	// ErrInvalidConfig is returned for incomplete provider configuration.
	ErrInvalidConfig = errors.New("keywrap: invalid configuration")

	// ErrUnsupportedType is returned for unknown provider types.
	ErrUnsupportedType = errors.New("keywrap: unsupported provider type")

	// ErrEmptyKey is returned when asked to wrap an empty key.
	ErrEmptyKey = errors.New("keywrap: key cannot be empty")
)

// WrappedKey is a data key encrypted under a provider's key encryption key.
type WrappedKey struct {
	Type       Type              `json:"type" yaml:"type"`
	KeyID      string            `json:"keyId,omitempty" yaml:"keyId,omitempty"`
	Ciphertext []byte            `json:"ciphertext" yaml:"ciphertext"`
	Params     map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
}

// Wrapper wraps and unwraps data encryption keys.
type Wrapper interface {
	// Type returns the provider type recorded in wrapped keys.
	Type() Type

	// KeyID identifies the key encryption key, if the provider has one.
	KeyID() string

	// Wrap encrypts dek. The caller keeps ownership of dek.
	Wrap(ctx context.Context, dek []byte) (*WrappedKey, error)

	// Unwrap returns the plaintext data key.
	Unwrap(ctx context.Context, wk *WrappedKey) ([]byte, error)
}

func checkWrapped(w Wrapper, wk *WrappedKey) error {
	if wk == nil {
		return fmt.Errorf("%w: nil wrapped key", ErrUnwrapFailed)
	}
	if wk.Type != w.Type() {
		return fmt.Errorf("%w: wrapped by %q, provider is %q", ErrWrongProvider, wk.Type, w.Type())
	}
	if len(wk.Ciphertext) == 0 {
		return fmt.Errorf("%w: empty ciphertext", ErrUnwrapFailed)
	}
	return nil
}

func checkDEK(dek []byte) error {
	if len(dek) == 0 {
		return ErrEmptyKey
	}
	return nil
}
