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
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-treasury/pkg/crypto/secretsharing"
)

var created = time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

func splitRecords(t *testing.T, m, n int) []*Record {
	t.Helper()
	shares, err := secretsharing.Split([]byte("correct horse battery staple"), m, n)
	require.NoError(t, err)
	records, err := FromShares(shares, secretsharing.ShareConfig{Threshold: m, TotalShares: n}, Metadata{
		Network:    "mainnet",
		RoleCounts: map[string]int{"signers": 5, "approvers": 3},
		CreatedAt:  created,
	})
	require.NoError(t, err)
	return records
}

func TestFromShares(t *testing.T) {
	records := splitRecords(t, 3, 8)
	require.Len(t, records, 8)

	splitID := records[0].SplitID
	assert.NotEmpty(t, splitID)
	for i, r := range records {
		assert.Equal(t, CurrentVersion, r.Version)
		assert.Equal(t, i+1, r.ShareID)
		assert.Equal(t, splitID, r.SplitID)
		assert.Equal(t, created, r.CreatedAt)
		assert.Equal(t, 3, r.Threshold)
		assert.Equal(t, 8, r.TotalShares)
		assert.Len(t, r.Checksum, 64)
		require.NoError(t, r.Validate())
	}
	require.NoError(t, CheckCompatible(records))

	other := splitRecords(t, 3, 8)
	assert.NotEqual(t, splitID, other[0].SplitID)
}

func TestFromShares_Invalid(t *testing.T) {
	shares, err := secretsharing.Split([]byte("secret"), 2, 3)
	require.NoError(t, err)

	_, err = FromShares(shares[:2], secretsharing.ShareConfig{Threshold: 2, TotalShares: 3}, Metadata{})
	assert.ErrorIs(t, err, ErrMalformedShareRecord)

	_, err = FromShares(shares, secretsharing.ShareConfig{Threshold: 1, TotalShares: 3}, Metadata{})
	assert.ErrorIs(t, err, secretsharing.ErrInvalidParameter)
}

func TestMarshalParse(t *testing.T) {
	for _, r := range splitRecords(t, 2, 4) {
		data, err := r.Marshal()
		require.NoError(t, err)

		parsed, err := Parse(data, "share.json")
		require.NoError(t, err)
		assert.Equal(t, "share.json", parsed.Source)

		if diff := cmp.Diff(r, parsed, cmpopts.IgnoreFields(Record{}, "Source")); diff != "" {
			t.Errorf("record mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, r.Share(), parsed.Share())
	}
}

func TestParse_WireFormat(t *testing.T) {
	data, err := splitRecords(t, 2, 3)[1].Marshal()
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"version", "createdAtUtc", "splitId", "network", "totalShares",
		"threshold", "roleCounts", "shareId", "shareValue", "checksum"} {
		assert.Contains(t, fields, key)
	}
	assert.NotContains(t, fields, "Source")
	assert.Equal(t, "2025-06-01T12:30:00Z", fields["createdAtUtc"])
}

func TestParse_SchemeContextAlias(t *testing.T) {
	data := `{
		"version": 1,
		"createdAtUtc": "2024-11-05T08:00:00Z",
		"schemeContext": "testnet",
		"totalShares": 5,
		"threshold": 3,
		"shareId": 2,
		"shareValue": "AQID"
	}`
	r, err := Parse([]byte(data), "legacy.json")
	require.NoError(t, err)
	assert.Equal(t, "testnet", r.Network)
	assert.Empty(t, r.SplitID)
	assert.Equal(t, []byte{1, 2, 3}, r.ShareValue)
}

func TestParse_LegacyExportRecord(t *testing.T) {
	data := `{
		"createdAtUtc": "2024-11-05T08:00:00.1234567",
		"schemeContext": "mainnet",
		"totalShares": 8,
		"threshold": 3,
		"roleCounts": {"signers": 5, "approvers": 3},
		"shareId": 4,
		"shareValue": "AQID"
	}`
	r, err := Parse([]byte(data), "custodian.json")
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, r.Version)
	assert.Equal(t, "mainnet", r.Network)
	assert.Empty(t, r.SplitID)
	assert.Equal(t, time.Date(2024, 11, 5, 8, 0, 0, 123456700, time.UTC), r.CreatedAt)
	assert.Equal(t, map[string]int{"signers": 5, "approvers": 3}, r.RoleCounts)

	// Two legacy records of the same split stay compatible.
	other, err := Parse([]byte(strings.Replace(data, `"shareId": 4`, `"shareId": 7`, 1)), "other.json")
	require.NoError(t, err)
	require.NoError(t, CheckCompatible([]*Record{r, other}))
}

func TestParse_CreatedAt(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{`"2024-11-05T08:00:00Z"`, time.Date(2024, 11, 5, 8, 0, 0, 0, time.UTC)},
		{`"2024-11-05T10:00:00+02:00"`, time.Date(2024, 11, 5, 8, 0, 0, 0, time.UTC)},
		{`"2024-11-05T08:00:00"`, time.Date(2024, 11, 5, 8, 0, 0, 0, time.UTC)},
		{`"2024-11-05T08:00:00.5"`, time.Date(2024, 11, 5, 8, 0, 0, 500000000, time.UTC)},
		{`null`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			data := `{"createdAtUtc": ` + tt.in + `, "network": "mainnet", "totalShares": 3,
				"threshold": 2, "shareId": 1, "shareValue": "AQID"}`
			r, err := Parse([]byte(data), "share-001.json")
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(r.CreatedAt), "got %v", r.CreatedAt)
		})
	}

	_, err := Parse([]byte(`{"createdAtUtc": "yesterday", "network": "mainnet", "totalShares": 3,
		"threshold": 2, "shareId": 1, "shareValue": "AQID"}`), "share-001.json")
	assert.ErrorIs(t, err, ErrMalformedShareRecord)
	assert.Contains(t, err.Error(), "createdAtUtc")
}

func TestParse_Malformed(t *testing.T) {
	valid := map[string]any{
		"version":     1,
		"network":     "mainnet",
		"totalShares": 5,
		"threshold":   3,
		"shareId":     2,
		"shareValue":  "AQID",
	}
	tests := []struct {
		name   string
		mutate func(map[string]any)
		reason string
	}{
		{"unknown version", func(m map[string]any) { m["version"] = 9 }, "unsupported version"},
		{"next version", func(m map[string]any) { m["version"] = 2 }, "unsupported version 2"},
		{"negative version", func(m map[string]any) { m["version"] = -1 }, "unsupported version -1"},
		{"threshold one", func(m map[string]any) { m["threshold"] = 1 }, "threshold must be at least 2"},
		{"total below threshold", func(m map[string]any) { m["totalShares"] = 2 }, "totalShares (2)"},
		{"total too large", func(m map[string]any) { m["totalShares"] = 300 }, "<= 255"},
		{"share id zero", func(m map[string]any) { m["shareId"] = 0 }, "shareId 0"},
		{"share id beyond total", func(m map[string]any) { m["shareId"] = 6 }, "shareId 6"},
		{"empty value", func(m map[string]any) { m["shareValue"] = "" }, "shareValue is empty"},
		{"bad base64", func(m map[string]any) { m["shareValue"] = "not base64!" }, "illegal base64"},
		{"bad split id", func(m map[string]any) { m["splitId"] = "nope" }, "splitId"},
		{"bad checksum", func(m map[string]any) { m["checksum"] = strings.Repeat("00", 32) }, "checksum does not match"},
		{"checksum not hex", func(m map[string]any) { m["checksum"] = "zz" }, "not hex"},
		{"wrong type", func(m map[string]any) { m["shareId"] = "two" }, "cannot unmarshal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := make(map[string]any, len(valid))
			for k, v := range valid {
				m[k] = v
			}
			tt.mutate(m)
			data, err := json.Marshal(m)
			require.NoError(t, err)

			_, err = Parse(data, "share-002.json")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedShareRecord)
			assert.Contains(t, err.Error(), "share-002.json")
			assert.Contains(t, err.Error(), tt.reason)
		})
	}

	_, err := Parse([]byte("not json"), "stdin")
	assert.ErrorIs(t, err, ErrMalformedShareRecord)
}

func TestCheckCompatible(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Record)
		field  string
	}{
		{"total shares", func(r *Record) { r.TotalShares = 9 }, "totalShares"},
		{"threshold", func(r *Record) { r.Threshold = 4 }, "threshold"},
		{"network", func(r *Record) { r.Network = "testnet" }, "network"},
		{"value length", func(r *Record) { r.ShareValue = r.ShareValue[:4] }, "shareValue length"},
		{"split id", func(r *Record) { r.SplitID = "1b4e28ba-2fa1-11d2-883f-0016d3cca427" }, "splitId"},
		{"created", func(r *Record) { r.CreatedAt = r.CreatedAt.Add(time.Hour) }, "createdAtUtc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := splitRecords(t, 3, 8)
			records[2].Source = "/mnt/usb/share-003.json"
			tt.mutate(records[2])

			err := CheckCompatible(records)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSchemeMismatch)

			var mismatch *SchemeMismatchError
			require.True(t, errors.As(err, &mismatch))
			assert.Equal(t, "/mnt/usb/share-003.json", mismatch.Source)
			assert.Equal(t, tt.field, mismatch.Field)
			assert.NotEqual(t, mismatch.Want, mismatch.Got)
		})
	}
}

func TestCheckCompatible_Legacy(t *testing.T) {
	records := splitRecords(t, 2, 3)
	records[1].SplitID = ""
	records[2].CreatedAt = time.Time{}
	assert.NoError(t, CheckCompatible(records))

	assert.ErrorIs(t, CheckCompatible(nil), ErrNoRecords)
	assert.NoError(t, CheckCompatible(records[:1]))
}
