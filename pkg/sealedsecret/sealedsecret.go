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

// Package sealedsecret stores the retained copy of the master secret.
//
// A sealed document holds the secret encrypted under a random data
// encryption key (DEK) with the envelope codec, and the DEK wrapped by a
// keywrap provider. The document context is bound to the ciphertext as
// associated data, so a payload cannot be moved between documents with
// different contexts.
package sealedsecret

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-treasury/pkg/crypto/envelope"
	"github.com/jeremyhahn/go-treasury/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-treasury/pkg/keywrap"
	"github.com/jeremyhahn/go-treasury/pkg/metrics"
)

// CurrentVersion is the document format version written by Seal.
const CurrentVersion = 1

var (
	// ErrMalformedDocument is returned when a sealed document cannot be decoded.
	ErrMalformedDocument = errors.New("sealedsecret: malformed document")

	// ErrUnsupportedVersion is returned for unknown document versions.
	ErrUnsupportedVersion = errors.New("sealedsecret: unsupported document version")

	// ErrEmptySecret is returned when asked to seal nothing.
	ErrEmptySecret = errors.New("sealedsecret: secret cannot be empty")
)

// Document is the on-disk form of a sealed secret.
type Document struct {
	Version    int                 `json:"version"`
	CreatedAt  time.Time           `json:"createdAtUtc"`
	Context    string              `json:"context"`
	WrappedKey *keywrap.WrappedKey `json:"wrappedKey"`
	Payload    *envelope.Envelope  `json:"payload"`
}

type options struct {
	codec *envelope.Codec
	now   func() time.Time
}

// Option configures Seal and Open.
type Option func(*options)

// WithCodec selects the envelope codec, for example one using
// ChaCha20-Poly1305 or a usage tracker.
func WithCodec(codec *envelope.Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Option) (*options, error) {
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	if o.codec == nil {
		codec, err := envelope.NewCodec()
		if err != nil {
			return nil, err
		}
		o.codec = codec
	}
	return o, nil
}

// Seal encrypts secret under a fresh DEK and wraps the DEK with wrapper.
// The DEK is zeroed before Seal returns.
func Seal(ctx context.Context, secret []byte, wrapper keywrap.Wrapper, sealContext string, opts ...Option) (doc *Document, err error) {
	defer observe(metrics.OpSeal, time.Now(), &err)

	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if wrapper == nil {
		return nil, fmt.Errorf("sealedsecret: wrapper is nil")
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	dek := make([]byte, envelope.KeySize)
	defer secretsharing.Zero(dek)
	if _, err := rand.Read(dek); err != nil {
		return nil, fmt.Errorf("sealedsecret: failed to generate data key: %w", err)
	}

	payload, err := o.codec.Seal(secret, dek, []byte(sealContext))
	if err != nil {
		return nil, fmt.Errorf("sealedsecret: failed to encrypt secret: %w", err)
	}
	wrapStart := time.Now()
	wk, err := wrapper.Wrap(ctx, dek)
	metrics.ObserveSince(metrics.OpWrap, wrapStart, err)
	if err != nil {
		return nil, fmt.Errorf("sealedsecret: failed to wrap data key: %w", err)
	}

	return &Document{
		Version:    CurrentVersion,
		CreatedAt:  o.now().UTC().Truncate(time.Second),
		Context:    sealContext,
		WrappedKey: wk,
		Payload:    payload,
	}, nil
}

// Open unwraps the DEK and decrypts the payload. Any failure to
// authenticate, whether of the wrapped key or of the payload, matches
// envelope.ErrAuthenticationFailed.
func Open(ctx context.Context, doc *Document, wrapper keywrap.Wrapper, opts ...Option) (secret []byte, err error) {
	defer observe(metrics.OpUnseal, time.Now(), &err)

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if wrapper == nil {
		return nil, fmt.Errorf("sealedsecret: wrapper is nil")
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	unwrapStart := time.Now()
	dek, err := wrapper.Unwrap(ctx, doc.WrappedKey)
	metrics.ObserveSince(metrics.OpUnwrap, unwrapStart, err)
	if err != nil {
		if errors.Is(err, keywrap.ErrUnwrapFailed) && !errors.Is(err, envelope.ErrAuthenticationFailed) {
			return nil, fmt.Errorf("%w: %w", envelope.ErrAuthenticationFailed, err)
		}
		return nil, err
	}
	defer secretsharing.Zero(dek)

	secret, err = o.codec.Open(doc.Payload, dek, []byte(doc.Context))
	if err != nil {
		return nil, fmt.Errorf("sealedsecret: %w", err)
	}
	return secret, nil
}

func observe(operation string, start time.Time, errp *error) {
	err := *errp
	metrics.ObserveSince(operation, start, err)
	switch {
	case err == nil:
	case errors.Is(err, envelope.ErrAuthenticationFailed):
		metrics.RecordError(operation, "authentication_failed")
	case errors.Is(err, ErrMalformedDocument), errors.Is(err, ErrUnsupportedVersion):
		metrics.RecordError(operation, "malformed_document")
	default:
		metrics.RecordError(operation, "other")
	}
}

// Validate checks that the document is complete and of a known version.
func (d *Document) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil document", ErrMalformedDocument)
	}
	if d.Version != CurrentVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, d.Version)
	}
	if d.WrappedKey == nil {
		return fmt.Errorf("%w: missing wrappedKey", ErrMalformedDocument)
	}
	if d.Payload == nil {
		return fmt.Errorf("%w: missing payload", ErrMalformedDocument)
	}
	return nil
}

// Marshal encodes the document as indented JSON.
func (d *Document) Marshal() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Parse decodes and validates a sealed document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}
