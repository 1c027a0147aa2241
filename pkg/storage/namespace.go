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

package storage

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

const (
	SharesPrefix = "shares/"
	SealedPrefix = "sealed/"
)

// SharePath returns the storage key for one share of a split:
// shares/{splitID}/share-{NNN}.json
func SharePath(splitID string, shareID int) string {
	return fmt.Sprintf("%s%s/share-%03d.json", SharesPrefix, splitID, shareID)
}

// SplitPrefix returns the key prefix holding every share of a split.
func SplitPrefix(splitID string) string {
	return SharesPrefix + splitID + "/"
}

// SealedPath returns the storage key for a sealed secret document:
// sealed/{name}.json
func SealedPath(name string) string {
	return SealedPrefix + name + ".json"
}

// ListSplits returns the ids of all splits that have at least one share.
func ListSplits(backend Backend) ([]string, error) {
	keys, err := backend.List(SharesPrefix)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, k := range keys {
		rest := strings.TrimPrefix(k, SharesPrefix)
		id, _, ok := strings.Cut(rest, "/")
		if ok && id != "" {
			seen[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ListSealed returns the names of all sealed secret documents.
func ListSealed(backend Backend) ([]string, error) {
	keys, err := backend.List(SealedPrefix)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		if path.Ext(k) != ".json" {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(k, SealedPrefix), ".json")
		if name != "" && !strings.Contains(name, "/") {
			names = append(names, name)
		}
	}
	return names, nil
}

// ValidateKey rejects keys that are empty, absolute, contain NUL bytes or
// escape the storage root.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	if strings.Contains(key, "\x00") {
		return fmt.Errorf("%w: key contains null byte", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || strings.HasPrefix(key, "\\") {
		return fmt.Errorf("%w: key cannot be an absolute path", ErrInvalidKey)
	}
	for _, part := range strings.FieldsFunc(key, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return fmt.Errorf("%w: key contains path traversal attempt", ErrInvalidKey)
		}
	}
	return nil
}
