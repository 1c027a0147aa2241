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

package recovery

import (
	"errors"

	"github.com/jeremyhahn/go-treasury/pkg/crypto/envelope"
	"github.com/jeremyhahn/go-treasury/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-treasury/pkg/sharerecord"
)

var (
	// ErrReconstructionInvalid is returned when the caller's predicate
	// rejects the reconstructed secret.
	ErrReconstructionInvalid = errors.New("recovery: reconstructed secret failed validation")

	// ErrSessionClosed is returned when a session that already finished is
	// used again.
	ErrSessionClosed = errors.New("recovery: session closed")

	// ErrNilRecord is returned by Add for nil records.
	ErrNilRecord = errors.New("recovery: nil record")
)

// ErrorType maps an error to the short identifier used in metrics labels.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, sharerecord.ErrSchemeMismatch):
		return "scheme_mismatch"
	case errors.Is(err, sharerecord.ErrMalformedShareRecord):
		return "malformed_share_record"
	case errors.Is(err, secretsharing.ErrDuplicateShareID):
		return "duplicate_share_id"
	case errors.Is(err, secretsharing.ErrInsufficientShares):
		return "insufficient_shares"
	case errors.Is(err, secretsharing.ErrMalformedShare):
		return "malformed_share"
	case errors.Is(err, secretsharing.ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, secretsharing.ErrArithmetic):
		return "arithmetic"
	case errors.Is(err, ErrReconstructionInvalid):
		return "reconstruction_invalid"
	case errors.Is(err, envelope.ErrAuthenticationFailed):
		return "authentication_failed"
	case errors.Is(err, envelope.ErrUnsupportedVersion):
		return "unsupported_version"
	case errors.Is(err, ErrSessionClosed):
		return "session_closed"
	default:
		return "other"
	}
}
