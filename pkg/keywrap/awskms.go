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

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// AWSKMSConfig configures the AWS KMS provider.
type AWSKMSConfig struct {
	Region          string `yaml:"region" json:"region"`
	KeyID           string `yaml:"key_id" json:"key_id"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"-"`
	SessionToken    string `yaml:"session_token,omitempty" json:"-"`

	// EncryptionContext is bound to every wrapped key and must match on unwrap.
	EncryptionContext map[string]string `yaml:"encryption_context,omitempty" json:"encryption_context,omitempty"`
}

// Validate checks required fields.
func (c *AWSKMSConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: awskms configuration missing", ErrInvalidConfig)
	}
	if c.Region == "" {
		return fmt.Errorf("%w: awskms region is required", ErrInvalidConfig)
	}
	if c.KeyID == "" {
		return fmt.Errorf("%w: awskms key_id is required", ErrInvalidConfig)
	}
	return nil
}

// AWSKMSClient is the subset of the KMS API used for wrapping.
type AWSKMSClient interface {
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// AWSKMS wraps keys with a symmetric AWS KMS key.
type AWSKMS struct {
	config *AWSKMSConfig
	client AWSKMSClient
}

// NewAWSKMS loads the default AWS credential chain, or the static
// credentials in config, and returns a provider.
func NewAWSKMS(ctx context.Context, config *AWSKMSConfig) (*AWSKMS, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
	}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(
			config.AccessKeyID,
			config.SecretAccessKey,
			config.SessionToken,
		)
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOpts []func(*kms.Options)
	if config.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *kms.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
		})
	}

	return NewAWSKMSWithClient(config, kms.NewFromConfig(cfg, clientOpts...))
}

// NewAWSKMSWithClient returns a provider using client.
func NewAWSKMSWithClient(config *AWSKMSConfig, client AWSKMSClient) (*AWSKMS, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("%w: awskms client is nil", ErrInvalidConfig)
	}
	return &AWSKMS{config: config, client: client}, nil
}

func (a *AWSKMS) Type() Type { return TypeAWSKMS }

func (a *AWSKMS) KeyID() string { return a.config.KeyID }

func (a *AWSKMS) Wrap(ctx context.Context, dek []byte) (*WrappedKey, error) {
	if err := checkDEK(dek); err != nil {
		return nil, err
	}
	out, err := a.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:             aws.String(a.config.KeyID),
		Plaintext:         dek,
		EncryptionContext: a.config.EncryptionContext,
	})
	if err != nil {
		return nil, fmt.Errorf("AWS KMS encryption failed: %w", err)
	}
	keyID := a.config.KeyID
	if out.KeyId != nil {
		keyID = *out.KeyId
	}
	return &WrappedKey{
		Type:       TypeAWSKMS,
		KeyID:      keyID,
		Ciphertext: out.CiphertextBlob,
	}, nil
}

func (a *AWSKMS) Unwrap(ctx context.Context, wk *WrappedKey) ([]byte, error) {
	if err := checkWrapped(a, wk); err != nil {
		return nil, err
	}
	keyID := wk.KeyID
	if keyID == "" {
		keyID = a.config.KeyID
	}
	out, err := a.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob:    wk.Ciphertext,
		KeyId:             aws.String(keyID),
		EncryptionContext: a.config.EncryptionContext,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: AWS KMS decryption failed: %w", ErrUnwrapFailed, err)
	}
	return out.Plaintext, nil
}
