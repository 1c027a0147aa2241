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
	"hash/crc32"

	kms "cloud.google.com/go/kms/apiv1"
	"cloud.google.com/go/kms/apiv1/kmspb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// GCPKMSConfig configures the Google Cloud KMS provider.
type GCPKMSConfig struct {
	// KeyName is the full resource name:
	// projects/P/locations/L/keyRings/R/cryptoKeys/K
	KeyName         string `yaml:"key_name" json:"key_name"`
	CredentialsFile string `yaml:"credentials_file,omitempty" json:"credentials_file,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// AdditionalData is authenticated by KMS with every wrapped key.
	AdditionalData string `yaml:"additional_data,omitempty" json:"additional_data,omitempty"`
}

func (c *GCPKMSConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: gcpkms configuration missing", ErrInvalidConfig)
	}
	if c.KeyName == "" {
		return fmt.Errorf("%w: gcpkms key_name is required", ErrInvalidConfig)
	}
	return nil
}

// GCPKMSClient is the subset of the Cloud KMS API used for wrapping.
type GCPKMSClient interface {
	Encrypt(ctx context.Context, req *kmspb.EncryptRequest) (*kmspb.EncryptResponse, error)
	Decrypt(ctx context.Context, req *kmspb.DecryptRequest) (*kmspb.DecryptResponse, error)
	Close() error
}

// realGCPKMSClient adapts the generated client, whose methods take
// variadic gax call options.
type realGCPKMSClient struct {
	*kms.KeyManagementClient
}

func (r *realGCPKMSClient) Encrypt(ctx context.Context, req *kmspb.EncryptRequest) (*kmspb.EncryptResponse, error) {
	return r.KeyManagementClient.Encrypt(ctx, req)
}

func (r *realGCPKMSClient) Decrypt(ctx context.Context, req *kmspb.DecryptRequest) (*kmspb.DecryptResponse, error) {
	return r.KeyManagementClient.Decrypt(ctx, req)
}

// GCPKMS wraps keys with a symmetric Cloud KMS crypto key.
type GCPKMS struct {
	config *GCPKMSConfig
	client GCPKMSClient
}

// NewGCPKMS creates a Cloud KMS client from application default
// credentials or config.CredentialsFile.
func NewGCPKMS(ctx context.Context, config *GCPKMSConfig) (*GCPKMS, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}
	// Custom endpoint is used with the KMS emulator
	if config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(config.Endpoint))
	}

	client, err := kms.NewKeyManagementClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP KMS client: %w", err)
	}
	return NewGCPKMSWithClient(config, &realGCPKMSClient{KeyManagementClient: client})
}

// NewGCPKMSWithClient returns a provider using client.
func NewGCPKMSWithClient(config *GCPKMSConfig, client GCPKMSClient) (*GCPKMS, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("%w: gcpkms client is nil", ErrInvalidConfig)
	}
	return &GCPKMS{config: config, client: client}, nil
}

func (g *GCPKMS) Type() Type { return TypeGCPKMS }

func (g *GCPKMS) KeyID() string { return g.config.KeyName }

func (g *GCPKMS) additionalData() []byte {
	if g.config.AdditionalData == "" {
		return nil
	}
	return []byte(g.config.AdditionalData)
}

func (g *GCPKMS) Wrap(ctx context.Context, dek []byte) (*WrappedKey, error) {
	if err := checkDEK(dek); err != nil {
		return nil, err
	}
	aad := g.additionalData()
	req := &kmspb.EncryptRequest{
		Name:                        g.config.KeyName,
		Plaintext:                   dek,
		AdditionalAuthenticatedData: aad,
		PlaintextCrc32C:             wrapperspb.Int64(int64(crc32c(dek))),
	}
	if aad != nil {
		req.AdditionalAuthenticatedDataCrc32C = wrapperspb.Int64(int64(crc32c(aad)))
	}

	resp, err := g.client.Encrypt(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("GCP KMS encryption failed: %w", err)
	}
	if !resp.VerifiedPlaintextCrc32C {
		return nil, fmt.Errorf("GCP KMS encryption failed: plaintext checksum not verified")
	}
	if resp.CiphertextCrc32C != nil && resp.CiphertextCrc32C.Value != int64(crc32c(resp.Ciphertext)) {
		return nil, fmt.Errorf("GCP KMS encryption failed: ciphertext checksum mismatch")
	}

	keyID := resp.Name
	if keyID == "" {
		keyID = g.config.KeyName
	}
	return &WrappedKey{
		Type:       TypeGCPKMS,
		KeyID:      keyID,
		Ciphertext: resp.Ciphertext,
	}, nil
}

func (g *GCPKMS) Unwrap(ctx context.Context, wk *WrappedKey) ([]byte, error) {
	if err := checkWrapped(g, wk); err != nil {
		return nil, err
	}
	aad := g.additionalData()
	req := &kmspb.DecryptRequest{
		// Decrypt takes the crypto key, not the version that encrypted
		Name:                        g.config.KeyName,
		Ciphertext:                  wk.Ciphertext,
		AdditionalAuthenticatedData: aad,
		CiphertextCrc32C:            wrapperspb.Int64(int64(crc32c(wk.Ciphertext))),
	}
	if aad != nil {
		req.AdditionalAuthenticatedDataCrc32C = wrapperspb.Int64(int64(crc32c(aad)))
	}

	resp, err := g.client.Decrypt(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: GCP KMS decryption failed: %w", ErrUnwrapFailed, err)
	}
	if resp.PlaintextCrc32C != nil && resp.PlaintextCrc32C.Value != int64(crc32c(resp.Plaintext)) {
		return nil, fmt.Errorf("%w: plaintext checksum mismatch", ErrUnwrapFailed)
	}
	return resp.Plaintext, nil
}

// Close releases the underlying client connection.
func (g *GCPKMS) Close() error {
	return g.client.Close()
}

func crc32c(data []byte) uint32 {
	return crc32.Checksum(data, crc32.MakeTable(crc32.Castagnoli))
}
