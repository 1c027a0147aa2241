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

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"
)

// AzureKVConfig configures the Azure Key Vault provider.
type AzureKVConfig struct {
	VaultURL   string `yaml:"vault_url" json:"vault_url"`
	KeyName    string `yaml:"key_name" json:"key_name"`
	KeyVersion string `yaml:"key_version,omitempty" json:"key_version,omitempty"`

	// Algorithm defaults to RSA-OAEP-256.
	Algorithm string `yaml:"algorithm,omitempty" json:"algorithm,omitempty"`

	// Service principal credentials. When empty DefaultAzureCredential is
	// used (managed identity, environment, Azure CLI).
	TenantID     string `yaml:"tenant_id,omitempty" json:"tenant_id,omitempty"`
	ClientID     string `yaml:"client_id,omitempty" json:"client_id,omitempty"`
	ClientSecret string `yaml:"client_secret,omitempty" json:"-"`
}

func (c *AzureKVConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: azurekv configuration missing", ErrInvalidConfig)
	}
	if c.VaultURL == "" {
		return fmt.Errorf("%w: azurekv vault_url is required", ErrInvalidConfig)
	}
	if c.KeyName == "" {
		return fmt.Errorf("%w: azurekv key_name is required", ErrInvalidConfig)
	}
	return nil
}

func (c *AzureKVConfig) algorithm() azkeys.EncryptionAlgorithm {
	if c.Algorithm == "" {
		return azkeys.EncryptionAlgorithmRSAOAEP256
	}
	return azkeys.EncryptionAlgorithm(c.Algorithm)
}

// AzureKVClient is the subset of the Key Vault keys API used for wrapping.
// *azkeys.Client satisfies it.
type AzureKVClient interface {
	WrapKey(ctx context.Context, keyName, keyVersion string, params azkeys.KeyOperationParameters, options *azkeys.WrapKeyOptions) (azkeys.WrapKeyResponse, error)
	UnwrapKey(ctx context.Context, keyName, keyVersion string, params azkeys.KeyOperationParameters, options *azkeys.UnwrapKeyOptions) (azkeys.UnwrapKeyResponse, error)
}

// AzureKV wraps keys with an RSA key held in Azure Key Vault.
type AzureKV struct {
	config *AzureKVConfig
	client AzureKVClient
}

// NewAzureKV authenticates and returns a provider.
func NewAzureKV(config *AzureKVConfig) (*AzureKV, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var cred azcore.TokenCredential
	if config.ClientID != "" && config.ClientSecret != "" && config.TenantID != "" {
		c, err := azidentity.NewClientSecretCredential(
			config.TenantID,
			config.ClientID,
			config.ClientSecret,
			&azidentity.ClientSecretCredentialOptions{},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create client secret credential: %w", err)
		}
		cred = c
	} else {
		c, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", err)
		}
		cred = c
	}

	client, err := azkeys.NewClient(config.VaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Key Vault client: %w", err)
	}
	return NewAzureKVWithClient(config, client)
}

// NewAzureKVWithClient returns a provider using client.
func NewAzureKVWithClient(config *AzureKVConfig, client AzureKVClient) (*AzureKV, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("%w: azurekv client is nil", ErrInvalidConfig)
	}
	return &AzureKV{config: config, client: client}, nil
}

func (a *AzureKV) Type() Type { return TypeAzureKV }

func (a *AzureKV) KeyID() string {
	if a.config.KeyVersion == "" {
		return a.config.KeyName
	}
	return a.config.KeyName + "/" + a.config.KeyVersion
}

func (a *AzureKV) Wrap(ctx context.Context, dek []byte) (*WrappedKey, error) {
	if err := checkDEK(dek); err != nil {
		return nil, err
	}
	alg := a.config.algorithm()
	resp, err := a.client.WrapKey(ctx, a.config.KeyName, a.config.KeyVersion, azkeys.KeyOperationParameters{
		Algorithm: &alg,
		Value:     dek,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("Azure Key Vault wrap operation failed: %w", err)
	}
	return &WrappedKey{
		Type:       TypeAzureKV,
		KeyID:      a.KeyID(),
		Ciphertext: resp.Result,
		Params: map[string]string{
			"algorithm":   string(alg),
			"key_version": a.config.KeyVersion,
		},
	}, nil
}

func (a *AzureKV) Unwrap(ctx context.Context, wk *WrappedKey) ([]byte, error) {
	if err := checkWrapped(a, wk); err != nil {
		return nil, err
	}
	alg := a.config.algorithm()
	if v := wk.Params["algorithm"]; v != "" {
		alg = azkeys.EncryptionAlgorithm(v)
	}
	// Unwrap with the version that wrapped, even after key rotation
	version := a.config.KeyVersion
	if v, ok := wk.Params["key_version"]; ok {
		version = v
	}
	resp, err := a.client.UnwrapKey(ctx, a.config.KeyName, version, azkeys.KeyOperationParameters{
		Algorithm: &alg,
		Value:     wk.Ciphertext,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: Azure Key Vault unwrap operation failed: %w", ErrUnwrapFailed, err)
	}
	return resp.Result, nil
}
