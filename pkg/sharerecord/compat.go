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
	"strconv"
	"time"
)

// CheckCompatible verifies that every record was produced by the same
// split as the first one. The first difference found is returned as a
// *SchemeMismatchError naming the offending record.
//
// The split id and creation time are only compared when both records carry
// them, so records from older exports without a split id still combine.
func CheckCompatible(records []*Record) error {
	if len(records) == 0 {
		return ErrNoRecords
	}
	first := records[0]
	for _, r := range records[1:] {
		if err := compare(first, r); err != nil {
			return err
		}
	}
	return nil
}

func compare(want, got *Record) error {
	mismatch := func(field, w, g string) error {
		return &SchemeMismatchError{Source: got.Source, Field: field, Want: w, Got: g}
	}
	if got.TotalShares != want.TotalShares {
		return mismatch("totalShares", strconv.Itoa(want.TotalShares), strconv.Itoa(got.TotalShares))
	}
	if got.Threshold != want.Threshold {
		return mismatch("threshold", strconv.Itoa(want.Threshold), strconv.Itoa(got.Threshold))
	}
	if got.Network != want.Network {
		return mismatch("network", strconv.Quote(want.Network), strconv.Quote(got.Network))
	}
	if len(got.ShareValue) != len(want.ShareValue) {
		return mismatch("shareValue length", strconv.Itoa(len(want.ShareValue)), strconv.Itoa(len(got.ShareValue)))
	}
	if want.SplitID != "" && got.SplitID != "" && got.SplitID != want.SplitID {
		return mismatch("splitId", want.SplitID, got.SplitID)
	}
	if !want.CreatedAt.IsZero() && !got.CreatedAt.IsZero() && !got.CreatedAt.Equal(want.CreatedAt) {
		return mismatch("createdAtUtc", want.CreatedAt.Format(time.RFC3339), got.CreatedAt.Format(time.RFC3339))
	}
	return nil
}
