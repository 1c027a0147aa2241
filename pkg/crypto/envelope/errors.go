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

package envelope

import "errors"

var (
	// ErrAuthenticationFailed covers every tag verification failure: a wrong
	// key, tampered bytes and mismatched associated data look the same.
	ErrAuthenticationFailed = errors.New("envelope: authentication failed")

	// ErrUnsupportedVersion is returned for unknown version bytes.
	ErrUnsupportedVersion = errors.New("envelope: unsupported version")

	// ErrMalformedEnvelope is returned when the encoded form cannot be decoded.
	ErrMalformedEnvelope = errors.New("envelope: malformed envelope")

	// ErrInvalidKey is returned for keys that are not KeySize bytes.
	ErrInvalidKey = errors.New("envelope: invalid key")
)
