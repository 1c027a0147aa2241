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
	"encoding/base64"
	"fmt"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig configures the HashiCorp Vault Transit provider.
type VaultConfig struct {
	Address       string `yaml:"address" json:"address"`
	Token         string `yaml:"token,omitempty" json:"-"`
	Namespace     string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	TransitPath   string `yaml:"transit_path,omitempty" json:"transit_path,omitempty"`
	KeyName       string `yaml:"key_name" json:"key_name"`
	TLSSkipVerify bool   `yaml:"tls_skip_verify,omitempty" json:"tls_skip_verify,omitempty"`

	// Context is sent with every request. Vault requires it for keys
	// created with derived=true and rejects it otherwise.
	Context string `yaml:"context,omitempty" json:"context,omitempty"`
}

func (c *VaultConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: vault configuration missing", ErrInvalidConfig)
	}
	if c.Address == "" {
		return fmt.Errorf("%w: vault address is required", ErrInvalidConfig)
	}
	if c.KeyName == "" {
		return fmt.Errorf("%w: vault key_name is required", ErrInvalidConfig)
	}
	if c.TransitPath == "" {
		c.TransitPath = "transit"
	}
	return nil
}

// VaultLogical is the subset of the Vault logical API used for wrapping.
// *vault.Logical satisfies it.
type VaultLogical interface {
	WriteWithContext(ctx context.Context, path string, data map[string]interface{}) (*vault.Secret, error)
}

// VaultTransit wraps keys with a Vault Transit encryption key.
type VaultTransit struct {
	config  *VaultConfig
	logical VaultLogical
}

// NewVaultTransit connects to Vault. An empty token falls back to the
// VAULT_TOKEN environment handled by the Vault client.
func NewVaultTransit(config *VaultConfig) (*VaultTransit, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = config.Address
	if config.TLSSkipVerify {
		if err := vaultConfig.ConfigureTLS(&vault.TLSConfig{Insecure: true}); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if config.Token != "" {
		client.SetToken(config.Token)
	}
	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}
	return NewVaultTransitWithClient(config, client.Logical())
}

// NewVaultTransitWithClient returns a provider using logical.
func NewVaultTransitWithClient(config *VaultConfig, logical VaultLogical) (*VaultTransit, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logical == nil {
		return nil, fmt.Errorf("%w: vault client is nil", ErrInvalidConfig)
	}
	return &VaultTransit{config: config, logical: logical}, nil
}

func (v *VaultTransit) Type() Type { return TypeVault }

func (v *VaultTransit) KeyID() string { return v.config.KeyName }

func (v *VaultTransit) request() map[string]interface{} {
	data := map[string]interface{}{}
	if v.config.Context != "" {
		data["context"] = base64.StdEncoding.EncodeToString([]byte(v.config.Context))
	}
	return data
}

func (v *VaultTransit) Wrap(ctx context.Context, dek []byte) (*WrappedKey, error) {
	if err := checkDEK(dek); err != nil {
		return nil, err
	}
	path := fmt.Sprintf("%s/encrypt/%s", v.config.TransitPath, v.config.KeyName)
	data := v.request()
	// Vault Transit requires base64-encoded plaintext
	data["plaintext"] = base64.StdEncoding.EncodeToString(dek)

	secret, err := v.logical.WriteWithContext(ctx, path, data)
	if err != nil {
		return nil, fmt.Errorf("Vault Transit encryption failed: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("Vault Transit encryption failed: no ciphertext returned")
	}
	ciphertext, ok := secret.Data["ciphertext"].(string)
	if !ok || ciphertext == "" {
		return nil, fmt.Errorf("Vault Transit encryption failed: invalid ciphertext in response")
	}
	return &WrappedKey{
		Type:       TypeVault,
		KeyID:      v.config.KeyName,
		Ciphertext: []byte(ciphertext),
		Params:     map[string]string{"transit_path": v.config.TransitPath},
	}, nil
}

func (v *VaultTransit) Unwrap(ctx context.Context, wk *WrappedKey) ([]byte, error) {
	if err := checkWrapped(v, wk); err != nil {
		return nil, err
	}
	keyName := wk.KeyID
	if keyName == "" {
		keyName = v.config.KeyName
	}
	path := fmt.Sprintf("%s/decrypt/%s", v.config.TransitPath, keyName)
	data := v.request()
	data["ciphertext"] = string(wk.Ciphertext)

	secret, err := v.logical.WriteWithContext(ctx, path, data)
	if err != nil {
		return nil, fmt.Errorf("%w: Vault Transit decryption failed: %w", ErrUnwrapFailed, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: no plaintext returned", ErrUnwrapFailed)
	}
	encoded, ok := secret.Data["plaintext"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: invalid plaintext in response", ErrUnwrapFailed)
	}
	dek, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode plaintext: %v", ErrUnwrapFailed, err)
	}
	return dek, nil
}
