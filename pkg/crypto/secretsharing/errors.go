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

package secretsharing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter is returned when split parameters are out of range.
	ErrInvalidParameter = errors.New("secretsharing: invalid parameter")

	// ErrInsufficientShares is returned when fewer than threshold shares are supplied.
	ErrInsufficientShares = errors.New("secretsharing: insufficient shares")

	// ErrMalformedShare is returned for shares with a zero id or inconsistent values.
	ErrMalformedShare = errors.New("secretsharing: malformed share")

	// ErrDuplicateShareID is returned when two shares carry the same id.
	ErrDuplicateShareID = errors.New("secretsharing: duplicate share id")

	// ErrArithmetic is returned when interpolation hits a zero denominator.
	ErrArithmetic = errors.New("secretsharing: arithmetic error")
)

// InsufficientSharesError reports how many shares were supplied and how
// many the scheme needs.
type InsufficientSharesError struct {
	Have int
	Need int
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("%s: have %d, need %d (%d more required)",
		ErrInsufficientShares, e.Have, e.Need, e.Missing())
}

// Missing returns the number of additional shares required.
func (e *InsufficientSharesError) Missing() int {
	if e.Need <= e.Have {
		return 0
	}
	return e.Need - e.Have
}

// Is lets errors.Is match ErrInsufficientShares.
func (e *InsufficientSharesError) Is(target error) bool {
	return target == ErrInsufficientShares
}

func invalidParameter(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

func malformedShare(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedShare, fmt.Sprintf(format, args...))
}
