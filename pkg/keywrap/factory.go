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
	"fmt"

	"github.com/jeremyhahn/go-treasury/pkg/crypto/kdf"
)

// Config selects and configures one provider.
type Config struct {
	Type Type

	// Passphrase is never read from configuration files; the CLI prompts
	// for it or reads it from the environment.
	Passphrase []byte
	KDF        *kdf.Params

	KeyFile string

	AWSKMS  *AWSKMSConfig
	GCPKMS  *GCPKMSConfig
	AzureKV *AzureKVConfig
	Vault   *VaultConfig
}

// New builds the provider named by config.Type.
func New(ctx context.Context, config *Config) (Wrapper, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	switch config.Type {
	case TypePassphrase:
		return NewPassphrase(config.Passphrase, config.KDF)
	case TypeKeyFile:
		if config.KeyFile == "" {
			return nil, fmt.Errorf("%w: key file path is required", ErrInvalidConfig)
		}
		return NewKeyFile(config.KeyFile)
	case TypeAWSKMS:
		return NewAWSKMS(ctx, config.AWSKMS)
	case TypeGCPKMS:
		return NewGCPKMS(ctx, config.GCPKMS)
	case TypeAzureKV:
		return NewAzureKV(config.AzureKV)
	case TypeVault:
		return NewVaultTransit(config.Vault)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, config.Type)
	}
}

// ParseType validates a provider name.
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedType, s)
}
