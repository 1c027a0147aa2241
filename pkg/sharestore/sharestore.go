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

// Package sharestore persists share records and sealed documents on a
// storage.Backend. Each share is its own object under
// shares/{splitId}/share-{NNN}.json so shares can be handed to custodians
// one file at a time.
package sharestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jeremyhahn/go-treasury/pkg/logging"
	"github.com/jeremyhahn/go-treasury/pkg/sealedsecret"
	"github.com/jeremyhahn/go-treasury/pkg/sharerecord"
	"github.com/jeremyhahn/go-treasury/pkg/storage"
	"github.com/jeremyhahn/go-treasury/pkg/validation"
)

var (
	// ErrSplitNotFound is returned by Load when no share of a split exists.
	ErrSplitNotFound = errors.New("sharestore: split not found")

	// ErrMissingSplitID is returned when saving records without a split id.
	ErrMissingSplitID = errors.New("sharestore: record has no split id")
)

// Store reads and writes share records.
type Store struct {
	backend storage.Backend
	logger  *logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New returns a store on backend.
func New(backend storage.Backend, opts ...Option) *Store {
	s := &Store{backend: backend, logger: logging.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save writes every record of one split. Records that already exist are
// never overwritten. It returns the keys written, in record order. When a
// write fails the records written by this call are removed again, so a
// failed Save leaves no partial split behind.
func (s *Store) Save(records []*sharerecord.Record) ([]string, error) {
	if err := sharerecord.CheckCompatible(records); err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.SplitID == "" {
			return nil, fmt.Errorf("%w: share %d", ErrMissingSplitID, r.ShareID)
		}
		if err := validation.ValidateName(r.SplitID); err != nil {
			return nil, fmt.Errorf("sharestore: split id: %w", err)
		}
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}

	opts := &storage.Options{Permissions: 0600, Exclusive: true}
	keys := make([]string, 0, len(records))
	for _, r := range records {
		data, err := r.Marshal()
		if err != nil {
			s.rollback(keys)
			return nil, fmt.Errorf("sharestore: encode share %d: %w", r.ShareID, err)
		}
		key := storage.SharePath(r.SplitID, r.ShareID)
		if err := s.backend.Put(key, data, opts); err != nil {
			s.rollback(keys)
			return nil, fmt.Errorf("sharestore: write %s: %w", key, err)
		}
		keys = append(keys, key)
	}
	s.logger.Info("shares saved", "split_id", records[0].SplitID, "count", len(keys))
	return keys, nil
}

// rollback removes keys written by a failed Save.
func (s *Store) rollback(keys []string) {
	for _, key := range keys {
		if err := s.backend.Delete(key); err != nil {
			s.logger.Warn("failed to remove partially saved share", "key", key, "error", err.Error())
		}
	}
}

// Load reads every stored share of a split, ordered by share id. Each
// record's Source is its storage key.
func (s *Store) Load(splitID string) ([]*sharerecord.Record, error) {
	if splitID == "" {
		return nil, fmt.Errorf("%w: empty split id", ErrSplitNotFound)
	}
	if err := validation.ValidateName(splitID); err != nil {
		return nil, fmt.Errorf("sharestore: split id: %w", err)
	}
	keys, err := s.backend.List(storage.SplitPrefix(splitID))
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSplitNotFound, splitID)
	}
	records := make([]*sharerecord.Record, 0, len(keys))
	for _, key := range keys {
		data, err := s.backend.Get(key)
		if err != nil {
			return nil, fmt.Errorf("sharestore: read %s: %w", key, err)
		}
		r, err := sharerecord.Parse(data, key)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	s.logger.Debug("shares loaded", "split_id", splitID, "count", len(records))
	return records, nil
}

// List returns the ids of all stored splits.
func (s *Store) List() ([]string, error) {
	return storage.ListSplits(s.backend)
}

// Delete removes every stored share of a split.
func (s *Store) Delete(splitID string) error {
	if err := validation.ValidateName(splitID); err != nil {
		return fmt.Errorf("sharestore: split id: %w", err)
	}
	keys, err := s.backend.List(storage.SplitPrefix(splitID))
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: %s", ErrSplitNotFound, splitID)
	}
	for _, key := range keys {
		if err := s.backend.Delete(key); err != nil {
			return fmt.Errorf("sharestore: delete %s: %w", key, err)
		}
	}
	s.logger.Info("shares deleted", "split_id", splitID, "count", len(keys))
	return nil
}

// SaveSealed stores a sealed document under sealed/{name}.json. An
// existing document of the same name is not replaced.
func (s *Store) SaveSealed(name string, doc *sealedsecret.Document) error {
	if err := validation.ValidateName(name); err != nil {
		return fmt.Errorf("sharestore: sealed name: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return err
	}
	data, err := doc.Marshal()
	if err != nil {
		return err
	}
	key := storage.SealedPath(name)
	if err := s.backend.Put(key, data, &storage.Options{Permissions: 0600, Exclusive: true}); err != nil {
		return fmt.Errorf("sharestore: write %s: %w", key, err)
	}
	s.logger.Info("sealed secret saved", "name", name, "context", doc.Context)
	return nil
}

// LoadSealed reads a sealed document by name.
func (s *Store) LoadSealed(name string) (*sealedsecret.Document, error) {
	if err := validation.ValidateName(name); err != nil {
		return nil, fmt.Errorf("sharestore: sealed name: %w", err)
	}
	key := storage.SealedPath(name)
	data, err := s.backend.Get(key)
	if err != nil {
		return nil, fmt.Errorf("sharestore: read %s: %w", key, err)
	}
	return sealedsecret.Parse(data)
}

// ListSealed returns the names of all stored sealed documents.
func (s *Store) ListSealed() ([]string, error) {
	return storage.ListSealed(s.backend)
}

// ReadFiles parses share records from arbitrary files, such as shares
// returned by custodians. Each record's Source is its file name.
func ReadFiles(paths ...string) ([]*sharerecord.Record, error) {
	records := make([]*sharerecord.Record, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("sharestore: %w", err)
		}
		r, err := sharerecord.Parse(data, filepath.Base(p))
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// WriteFile writes one record to path with owner-only permissions,
// refusing to replace an existing file.
func WriteFile(path string, record *sharerecord.Record) error {
	data, err := record.Marshal()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("sharestore: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("sharestore: %w", err)
	}
	return f.Close()
}
