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

package sealedsecret

import (
	"context"
	"crypto/rand"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-treasury/pkg/crypto/aead"
	"github.com/jeremyhahn/go-treasury/pkg/crypto/envelope"
	"github.com/jeremyhahn/go-treasury/pkg/crypto/kdf"
	"github.com/jeremyhahn/go-treasury/pkg/keywrap"
	"github.com/jeremyhahn/go-treasury/pkg/metrics"
)

const mnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func keyFileWrapper(t *testing.T) *keywrap.KeyFile {
	t.Helper()
	material := make([]byte, 32)
	_, err := rand.Read(material)
	require.NoError(t, err)
	w, err := keywrap.NewKeyFileFromBytes(material)
	require.NoError(t, err)
	return w
}

func TestSealOpen(t *testing.T) {
	ctx := context.Background()
	w := keyFileWrapper(t)
	fixed := time.Date(2025, 3, 14, 15, 9, 26, 535, time.FixedZone("EST", -5*3600))

	doc, err := Seal(ctx, []byte(mnemonic), w, "treasury/mainnet", WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, doc.Version)
	assert.Equal(t, "treasury/mainnet", doc.Context)
	assert.Equal(t, time.UTC, doc.CreatedAt.Location())
	assert.Equal(t, "2025-03-14T20:09:26Z", doc.CreatedAt.Format(time.RFC3339))
	assert.Equal(t, keywrap.TypeKeyFile, doc.WrappedKey.Type)
	assert.Equal(t, byte(envelope.VersionAESGCM), doc.Payload.Version)

	got, err := Open(ctx, doc, w)
	require.NoError(t, err)
	assert.Equal(t, mnemonic, string(got))
}

func TestSealOpen_JSON(t *testing.T) {
	ctx := context.Background()
	w := keyFileWrapper(t)

	doc, err := Seal(ctx, []byte(mnemonic), w, "treasury/testnet")
	require.NoError(t, err)

	data, err := doc.Marshal()
	require.NoError(t, err)
	for _, field := range []string{`"version"`, `"createdAtUtc"`, `"context"`, `"wrappedKey"`, `"payload"`} {
		assert.Contains(t, string(data), field)
	}
	assert.NotContains(t, string(data), "abandon")

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, doc.Payload.Bytes(), parsed.Payload.Bytes())

	got, err := Open(ctx, parsed, w)
	require.NoError(t, err)
	assert.Equal(t, mnemonic, string(got))
}

func TestOpen_ContextBound(t *testing.T) {
	ctx := context.Background()
	w := keyFileWrapper(t)

	doc, err := Seal(ctx, []byte(mnemonic), w, "treasury/mainnet")
	require.NoError(t, err)

	doc.Context = "treasury/testnet"
	_, err = Open(ctx, doc, w)
	assert.ErrorIs(t, err, envelope.ErrAuthenticationFailed)
}

func TestOpen_Tampered(t *testing.T) {
	ctx := context.Background()
	w := keyFileWrapper(t)

	doc, err := Seal(ctx, []byte(mnemonic), w, "ctx")
	require.NoError(t, err)

	doc.Payload.Ciphertext[0] ^= 0x01
	_, err = Open(ctx, doc, w)
	assert.ErrorIs(t, err, envelope.ErrAuthenticationFailed)
}

func TestOpen_WrongKey(t *testing.T) {
	ctx := context.Background()

	doc, err := Seal(ctx, []byte(mnemonic), keyFileWrapper(t), "ctx")
	require.NoError(t, err)

	// Key id check fails first.
	_, err = Open(ctx, doc, keyFileWrapper(t))
	assert.ErrorIs(t, err, envelope.ErrAuthenticationFailed)
	assert.ErrorIs(t, err, keywrap.ErrUnwrapFailed)

	// Same for a passphrase under the wrong passphrase.
	params := &kdf.Params{Algorithm: kdf.Argon2id, Time: 1, Memory: kdf.MinArgon2Memory, Threads: 1}
	pp, err := keywrap.NewPassphrase([]byte("right passphrase"), params)
	require.NoError(t, err)
	doc, err = Seal(ctx, []byte(mnemonic), pp, "ctx")
	require.NoError(t, err)

	wrong, err := keywrap.NewPassphrase([]byte("wrong passphrase"), params)
	require.NoError(t, err)
	_, err = Open(ctx, doc, wrong)
	assert.ErrorIs(t, err, envelope.ErrAuthenticationFailed)

	got, err := Open(ctx, doc, pp)
	require.NoError(t, err)
	assert.Equal(t, mnemonic, string(got))
}

func TestOpen_TamperedKDFParams(t *testing.T) {
	ctx := context.Background()
	params := &kdf.Params{Algorithm: kdf.Argon2id, Time: 1, Memory: kdf.MinArgon2Memory, Threads: 1}
	pp, err := keywrap.NewPassphrase([]byte("right passphrase"), params)
	require.NoError(t, err)
	doc, err := Seal(ctx, []byte(mnemonic), pp, "ctx")
	require.NoError(t, err)

	for key, value := range map[string]string{"key_length": "16", "memory": "4194304"} {
		orig := doc.WrappedKey.Params[key]
		doc.WrappedKey.Params[key] = value
		_, err = Open(ctx, doc, pp)
		assert.ErrorIs(t, err, envelope.ErrAuthenticationFailed, key)
		doc.WrappedKey.Params[key] = orig
	}

	got, err := Open(ctx, doc, pp)
	require.NoError(t, err)
	assert.Equal(t, mnemonic, string(got))
}

func TestSeal_ChaCha20(t *testing.T) {
	ctx := context.Background()
	w := keyFileWrapper(t)
	codec, err := envelope.NewCodec(envelope.WithAlgorithm(aead.ChaCha20Poly1305))
	require.NoError(t, err)

	doc, err := Seal(ctx, []byte(mnemonic), w, "ctx", WithCodec(codec))
	require.NoError(t, err)
	assert.Equal(t, byte(envelope.VersionChaCha20Poly1305), doc.Payload.Version)

	// The payload version selects the cipher on open.
	got, err := Open(ctx, doc, w)
	require.NoError(t, err)
	assert.Equal(t, mnemonic, string(got))
}

func TestSeal_Invalid(t *testing.T) {
	ctx := context.Background()
	_, err := Seal(ctx, nil, keyFileWrapper(t), "ctx")
	assert.ErrorIs(t, err, ErrEmptySecret)

	_, err = Seal(ctx, []byte("x"), nil, "ctx")
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("{"))
	assert.ErrorIs(t, err, ErrMalformedDocument)

	_, err = Parse([]byte(`{"version": 7}`))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = Parse([]byte(`{"version": 1, "payload": "AQ=="}`))
	assert.ErrorIs(t, err, ErrMalformedDocument)

	doc := `{"version": 1, "wrappedKey": {"type": "keyfile", "ciphertext": "AA=="}}`
	_, err = Parse([]byte(doc))
	assert.ErrorIs(t, err, ErrMalformedDocument)
	assert.True(t, strings.Contains(err.Error(), "payload"))
}

func TestSealOpen_WrapMetrics(t *testing.T) {
	metrics.Enable()
	ctx := context.Background()
	count := func(op, status string) float64 {
		return testutil.ToFloat64(metrics.OperationsTotal.WithLabelValues(op, status))
	}
	wraps := count(metrics.OpWrap, metrics.StatusSuccess)
	unwraps := count(metrics.OpUnwrap, metrics.StatusSuccess)
	unwrapErrors := count(metrics.OpUnwrap, metrics.StatusError)

	w := keyFileWrapper(t)
	doc, err := Seal(ctx, []byte(mnemonic), w, "ctx")
	require.NoError(t, err)
	_, err = Open(ctx, doc, w)
	require.NoError(t, err)
	_, err = Open(ctx, doc, keyFileWrapper(t))
	require.Error(t, err)

	assert.Equal(t, wraps+1, count(metrics.OpWrap, metrics.StatusSuccess))
	assert.Equal(t, unwraps+1, count(metrics.OpUnwrap, metrics.StatusSuccess))
	assert.Equal(t, unwrapErrors+1, count(metrics.OpUnwrap, metrics.StatusError))
}
