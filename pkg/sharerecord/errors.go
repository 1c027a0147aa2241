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

package sharerecord

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedShareRecord is returned when a record cannot be decoded
	// or fails structural validation.
	ErrMalformedShareRecord = errors.New("sharerecord: malformed share record")

	// ErrSchemeMismatch is returned when records disagree on the scheme
	// they were split under.
	ErrSchemeMismatch = errors.New("sharerecord: scheme mismatch")

	// ErrNoRecords is returned when a compatibility check is asked to
	// compare nothing.
	ErrNoRecords = errors.New("sharerecord: no records")
)

// SchemeMismatchError names the record and field that disagree with the
// first record of a set.
type SchemeMismatchError struct {
	Source string
	Field  string
	Want   string
	Got    string
}

func (e *SchemeMismatchError) Error() string {
	return fmt.Sprintf("%s: %s: %s is %s, expected %s", ErrSchemeMismatch, e.Source, e.Field, e.Got, e.Want)
}

// Is lets errors.Is match ErrSchemeMismatch.
func (e *SchemeMismatchError) Is(target error) bool {
	return target == ErrSchemeMismatch
}

func malformed(source, format string, args ...any) error {
	if source == "" {
		source = "<unnamed>"
	}
	return fmt.Errorf("%w: %s: %s", ErrMalformedShareRecord, source, fmt.Sprintf(format, args...))
}
