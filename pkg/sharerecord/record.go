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

// Package sharerecord encodes Shamir shares for export and checks that a
// set of records belongs to one split before reconstruction.
//
// A record is a JSON object:
//
//	{
//	  "version": 1,
//	  "createdAtUtc": "2025-01-02T03:04:05Z",
//	  "splitId": "5b0c...",
//	  "network": "mainnet",
//	  "totalShares": 8,
//	  "threshold": 3,
//	  "roleCounts": {"signers": 5, "approvers": 3},
//	  "shareId": 4,
//	  "shareValue": "base64...",
//	  "checksum": "hex sha-256"
//	}
//
// "schemeContext" is accepted in place of "network" when reading, and
// records without "version" are read as version 1. Records
// of one split carry identical values in every field except shareId,
// shareValue and checksum.
package sharerecord

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-treasury/pkg/crypto/secretsharing"
)

// CurrentVersion is the record format written by this package.
const CurrentVersion = 1

// Record is the persisted form of one share.
type Record struct {
	Version     int            `json:"version"`
	CreatedAt   time.Time      `json:"createdAtUtc"`
	SplitID     string         `json:"splitId,omitempty"`
	Network     string         `json:"network"`
	TotalShares int            `json:"totalShares"`
	Threshold   int            `json:"threshold"`
	RoleCounts  map[string]int `json:"roleCounts,omitempty"`
	ShareID     int            `json:"shareId"`
	ShareValue  []byte         `json:"shareValue"`
	Checksum    string         `json:"checksum,omitempty"`

	// Source names where the record was read from, e.g. a file path. It
	// is not serialized.
	Source string `json:"-"`
}

// Metadata is the split-wide part of a record set.
type Metadata struct {
	SplitID    string
	Network    string
	RoleCounts map[string]int
	CreatedAt  time.Time
}

// New builds a record for one share. The share value is copied.
func New(share secretsharing.Share, config secretsharing.ShareConfig, meta Metadata) *Record {
	r := &Record{
		Version:     CurrentVersion,
		CreatedAt:   meta.CreatedAt.UTC(),
		SplitID:     meta.SplitID,
		Network:     meta.Network,
		TotalShares: config.TotalShares,
		Threshold:   config.Threshold,
		ShareID:     int(share.ID),
		ShareValue:  append([]byte(nil), share.Value...),
	}
	if len(meta.RoleCounts) > 0 {
		r.RoleCounts = make(map[string]int, len(meta.RoleCounts))
		for k, v := range meta.RoleCounts {
			r.RoleCounts[k] = v
		}
	}
	r.Checksum = checksum(share.ID, share.Value)
	r.Source = "share " + strconv.Itoa(r.ShareID)
	return r
}

// FromShares builds one record per share. A missing split id is replaced
// by a fresh UUID and a zero timestamp by the current time, so every
// record of the set shares both.
func FromShares(shares []secretsharing.Share, config secretsharing.ShareConfig, meta Metadata) ([]*Record, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if len(shares) != config.TotalShares {
		return nil, malformed("", "have %d shares for a %s scheme", len(shares), config.String())
	}
	if err := secretsharing.Verify(shares); err != nil {
		return nil, err
	}
	if meta.SplitID == "" {
		meta.SplitID = uuid.NewString()
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}
	meta.CreatedAt = meta.CreatedAt.UTC().Truncate(time.Second)

	records := make([]*Record, len(shares))
	for i, share := range shares {
		records[i] = New(share, config, meta)
	}
	return records, nil
}

// Share returns a copy of the share carried by the record.
func (r *Record) Share() secretsharing.Share {
	return secretsharing.Share{
		ID:    byte(r.ShareID),
		Value: append([]byte(nil), r.ShareValue...),
	}
}

// Config returns the scheme the record declares.
func (r *Record) Config() secretsharing.ShareConfig {
	return secretsharing.ShareConfig{Threshold: r.Threshold, TotalShares: r.TotalShares}
}

// Marshal encodes the record as indented JSON.
func (r *Record) Marshal() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Layouts tried, in order, for createdAtUtc. Timestamps without a zone
// offset are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// UnmarshalJSON accepts "schemeContext" as an alias of "network". A
// missing or zero version is read as version 1, the format written
// before the field existed.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var aux struct {
		plain
		CreatedAt     *string `json:"createdAtUtc"`
		SchemeContext string  `json:"schemeContext"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	source := r.Source
	*r = Record(aux.plain)
	r.Source = source
	if r.Network == "" {
		r.Network = aux.SchemeContext
	}
	if r.Version == 0 {
		r.Version = CurrentVersion
	}
	if aux.CreatedAt != nil && *aux.CreatedAt != "" {
		t, err := parseTime(*aux.CreatedAt)
		if err != nil {
			return err
		}
		r.CreatedAt = t
	}
	return nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("createdAtUtc %q is not an ISO-8601 timestamp", s)
}

// Parse decodes and validates a record. source names the record in
// errors and is kept on the returned record.
func Parse(data []byte, source string) (*Record, error) {
	r := &Record{Source: source}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, malformed(source, "%v", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks a single record in isolation.
func (r *Record) Validate() error {
	if r.Version != CurrentVersion {
		return malformed(r.Source, "unsupported version %d", r.Version)
	}
	if r.Threshold < secretsharing.MinThreshold {
		return malformed(r.Source, "threshold must be at least %d, got %d", secretsharing.MinThreshold, r.Threshold)
	}
	if r.TotalShares < r.Threshold {
		return malformed(r.Source, "totalShares (%d) must be >= threshold (%d)", r.TotalShares, r.Threshold)
	}
	if r.TotalShares > secretsharing.MaxShares {
		return malformed(r.Source, "totalShares must be <= %d, got %d", secretsharing.MaxShares, r.TotalShares)
	}
	if r.ShareID < 1 || r.ShareID > r.TotalShares {
		return malformed(r.Source, "shareId %d outside 1..%d", r.ShareID, r.TotalShares)
	}
	if len(r.ShareValue) == 0 {
		return malformed(r.Source, "shareValue is empty")
	}
	if r.SplitID != "" {
		if _, err := uuid.Parse(r.SplitID); err != nil {
			return malformed(r.Source, "splitId: %v", err)
		}
	}
	if r.Checksum != "" {
		want, err := hex.DecodeString(r.Checksum)
		if err != nil {
			return malformed(r.Source, "checksum is not hex")
		}
		got := sum(byte(r.ShareID), r.ShareValue)
		if subtle.ConstantTimeCompare(want, got[:]) != 1 {
			return malformed(r.Source, "checksum does not match share %d", r.ShareID)
		}
	}
	return nil
}

func sum(id byte, value []byte) [sha256.Size]byte {
	h := sha256.New()
	h.Write([]byte{id})
	h.Write(value)
	var out [sha256.Size]byte
	h.Sum(out[:0])
	return out
}

func checksum(id byte, value []byte) string {
	s := sum(id, value)
	return hex.EncodeToString(s[:])
}
