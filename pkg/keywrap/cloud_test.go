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
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"maps"
	"strings"
	"testing"

	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	vault "github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// xorKey stands in for a remote key encryption key.
func xorKey(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[i] = b[i] ^ 0x5C
	}
	return out
}

type fakeAWSKMS struct {
	lastEncrypt *kms.EncryptInput
	err         error
}

func (f *fakeAWSKMS) Encrypt(_ context.Context, in *kms.EncryptInput, _ ...func(*kms.Options)) (*kms.EncryptOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastEncrypt = in
	blob := append([]byte(aws.ToString(in.KeyId)+"|"), xorKey(in.Plaintext)...)
	return &kms.EncryptOutput{CiphertextBlob: blob, KeyId: aws.String("arn:aws:kms:us-east-1:111122223333:key/" + aws.ToString(in.KeyId))}, nil
}

func (f *fakeAWSKMS) Decrypt(_ context.Context, in *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.lastEncrypt != nil && !maps.Equal(f.lastEncrypt.EncryptionContext, in.EncryptionContext) {
		return nil, errors.New("InvalidCiphertextException")
	}
	i := bytes.IndexByte(in.CiphertextBlob, '|')
	if i < 0 {
		return nil, errors.New("InvalidCiphertextException")
	}
	return &kms.DecryptOutput{Plaintext: xorKey(in.CiphertextBlob[i+1:])}, nil
}

func TestAWSKMS(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAWSKMS{}
	cfg := &AWSKMSConfig{
		Region:            "us-east-1",
		KeyID:             "1234abcd",
		EncryptionContext: map[string]string{"purpose": "treasury"},
	}
	w, err := NewAWSKMSWithClient(cfg, fake)
	require.NoError(t, err)
	assert.Equal(t, TypeAWSKMS, w.Type())
	assert.Equal(t, "1234abcd", w.KeyID())

	dek := testDEK(t)
	wk, err := w.Wrap(ctx, dek)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(wk.KeyID, "arn:aws:kms:"))
	assert.Equal(t, "treasury", fake.lastEncrypt.EncryptionContext["purpose"])

	got, err := w.Unwrap(ctx, wk)
	require.NoError(t, err)
	assert.Equal(t, dek, got)

	// Mismatched encryption context is rejected by KMS.
	cfg.EncryptionContext = map[string]string{"purpose": "other"}
	_, err = w.Unwrap(ctx, wk)
	assert.ErrorIs(t, err, ErrUnwrapFailed)

	fake.err = errors.New("AccessDeniedException")
	_, err = w.Wrap(ctx, dek)
	assert.ErrorContains(t, err, "AccessDeniedException")

	_, err = NewAWSKMSWithClient(&AWSKMSConfig{Region: "us-east-1"}, fake)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewAWSKMSWithClient(&AWSKMSConfig{KeyID: "k"}, fake)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewAWSKMSWithClient(cfg, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

type fakeGCPKMS struct {
	badCiphertextCRC bool
	closed           bool
}

func (f *fakeGCPKMS) Encrypt(_ context.Context, req *kmspb.EncryptRequest) (*kmspb.EncryptResponse, error) {
	if req.PlaintextCrc32C.GetValue() != int64(crc32c(req.Plaintext)) {
		return nil, errors.New("checksum mismatch")
	}
	ct := append(xorKey(req.Plaintext), req.AdditionalAuthenticatedData...)
	crc := int64(crc32c(ct))
	if f.badCiphertextCRC {
		crc++
	}
	return &kmspb.EncryptResponse{
		Name:                    req.Name + "/cryptoKeyVersions/1",
		Ciphertext:              ct,
		CiphertextCrc32C:        wrapperspb.Int64(crc),
		VerifiedPlaintextCrc32C: true,
	}, nil
}

func (f *fakeGCPKMS) Decrypt(_ context.Context, req *kmspb.DecryptRequest) (*kmspb.DecryptResponse, error) {
	aad := req.AdditionalAuthenticatedData
	if !bytes.HasSuffix(req.Ciphertext, aad) {
		return nil, errors.New("decryption failed")
	}
	pt := xorKey(req.Ciphertext[:len(req.Ciphertext)-len(aad)])
	return &kmspb.DecryptResponse{Plaintext: pt, PlaintextCrc32C: wrapperspb.Int64(int64(crc32c(pt)))}, nil
}

func (f *fakeGCPKMS) Close() error {
	f.closed = true
	return nil
}

func TestGCPKMS(t *testing.T) {
	ctx := context.Background()
	fake := &fakeGCPKMS{}
	name := "projects/p/locations/global/keyRings/treasury/cryptoKeys/kek"
	w, err := NewGCPKMSWithClient(&GCPKMSConfig{KeyName: name, AdditionalData: "treasury"}, fake)
	require.NoError(t, err)
	assert.Equal(t, name, w.KeyID())

	dek := testDEK(t)
	wk, err := w.Wrap(ctx, dek)
	require.NoError(t, err)
	assert.Equal(t, name+"/cryptoKeyVersions/1", wk.KeyID)

	got, err := w.Unwrap(ctx, wk)
	require.NoError(t, err)
	assert.Equal(t, dek, got)

	other, err := NewGCPKMSWithClient(&GCPKMSConfig{KeyName: name, AdditionalData: "elsewhere"}, fake)
	require.NoError(t, err)
	_, err = other.Unwrap(ctx, wk)
	assert.ErrorIs(t, err, ErrUnwrapFailed)

	fake.badCiphertextCRC = true
	_, err = w.Wrap(ctx, dek)
	assert.ErrorContains(t, err, "checksum mismatch")

	require.NoError(t, w.Close())
	assert.True(t, fake.closed)
}

type fakeAzureKV struct {
	lastVersion string
}

func (f *fakeAzureKV) WrapKey(_ context.Context, name, version string, params azkeys.KeyOperationParameters, _ *azkeys.WrapKeyOptions) (azkeys.WrapKeyResponse, error) {
	if *params.Algorithm != azkeys.EncryptionAlgorithmRSAOAEP256 {
		return azkeys.WrapKeyResponse{}, fmt.Errorf("unexpected algorithm %s", *params.Algorithm)
	}
	var resp azkeys.WrapKeyResponse
	resp.Result = xorKey(params.Value)
	return resp, nil
}

func (f *fakeAzureKV) UnwrapKey(_ context.Context, name, version string, params azkeys.KeyOperationParameters, _ *azkeys.UnwrapKeyOptions) (azkeys.UnwrapKeyResponse, error) {
	f.lastVersion = version
	var resp azkeys.UnwrapKeyResponse
	resp.Result = xorKey(params.Value)
	return resp, nil
}

func TestAzureKV(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAzureKV{}
	cfg := &AzureKVConfig{VaultURL: "https://treasury.vault.azure.net", KeyName: "kek", KeyVersion: "v1"}
	w, err := NewAzureKVWithClient(cfg, fake)
	require.NoError(t, err)
	assert.Equal(t, "kek/v1", w.KeyID())

	dek := testDEK(t)
	wk, err := w.Wrap(ctx, dek)
	require.NoError(t, err)
	assert.Equal(t, string(azkeys.EncryptionAlgorithmRSAOAEP256), wk.Params["algorithm"])

	// The key rotated since wrapping; unwrap still targets v1.
	cfg.KeyVersion = "v2"
	got, err := w.Unwrap(ctx, wk)
	require.NoError(t, err)
	assert.Equal(t, dek, got)
	assert.Equal(t, "v1", fake.lastVersion)
}

type fakeVault struct {
	paths []string
	data  []map[string]interface{}
	fail  bool
}

func (f *fakeVault) WriteWithContext(_ context.Context, path string, data map[string]interface{}) (*vault.Secret, error) {
	f.paths = append(f.paths, path)
	f.data = append(f.data, data)
	if f.fail {
		return nil, errors.New("permission denied")
	}
	switch {
	case strings.Contains(path, "/encrypt/"):
		pt, _ := base64.StdEncoding.DecodeString(data["plaintext"].(string))
		return &vault.Secret{Data: map[string]interface{}{
			"ciphertext": "vault:v1:" + base64.StdEncoding.EncodeToString(xorKey(pt)),
		}}, nil
	case strings.Contains(path, "/decrypt/"):
		ct, _ := base64.StdEncoding.DecodeString(strings.TrimPrefix(data["ciphertext"].(string), "vault:v1:"))
		return &vault.Secret{Data: map[string]interface{}{
			"plaintext": base64.StdEncoding.EncodeToString(xorKey(ct)),
		}}, nil
	}
	return nil, nil
}

func TestVaultTransit(t *testing.T) {
	ctx := context.Background()
	fake := &fakeVault{}
	w, err := NewVaultTransitWithClient(&VaultConfig{Address: "http://127.0.0.1:8200", KeyName: "treasury", Context: "root"}, fake)
	require.NoError(t, err)
	assert.Equal(t, "treasury", w.KeyID())

	dek := testDEK(t)
	wk, err := w.Wrap(ctx, dek)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(wk.Ciphertext), "vault:v1:"))
	assert.Equal(t, "transit/encrypt/treasury", fake.paths[0])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("root")), fake.data[0]["context"])

	got, err := w.Unwrap(ctx, wk)
	require.NoError(t, err)
	assert.Equal(t, dek, got)
	assert.Equal(t, "transit/decrypt/treasury", fake.paths[1])

	fake.fail = true
	_, err = w.Unwrap(ctx, wk)
	assert.ErrorIs(t, err, ErrUnwrapFailed)
}
