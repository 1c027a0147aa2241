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

// Package recovery reconstructs a split secret from share records.
//
// A Session moves through
//
//	collecting -> validating -> reconstructing -> done
//
// and ends in failed on the first error. Records are only combined after
// they were shown to belong to one split, carry distinct share ids and
// reach the threshold. Combination uses the lowest threshold share ids so
// the same set of records always selects the same subset. The secret is
// handed to the caller once; the session keeps no copy.
package recovery

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jeremyhahn/go-treasury/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-treasury/pkg/logging"
	"github.com/jeremyhahn/go-treasury/pkg/metrics"
	"github.com/jeremyhahn/go-treasury/pkg/sharerecord"
)

// State is a recovery session state.
type State string

const (
	StateCollecting     State = "collecting"
	StateValidating     State = "validating"
	StateReconstructing State = "reconstructing"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// Predicate checks a reconstructed secret. A non-nil error rejects it.
type Predicate func(secret []byte) error

// Session collects records and reconstructs the secret once.
type Session struct {
	mu        sync.Mutex
	state     State
	records   []*sharerecord.Record
	used      []int
	err       error
	predicate Predicate
	logger    *logging.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger for state transitions. Secret material is
// never logged.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPredicate sets the validity check run on the reconstructed secret.
func WithPredicate(p Predicate) Option {
	return func(s *Session) {
		s.predicate = p
	}
}

// NewSession returns a session in the collecting state.
func NewSession(opts ...Option) *Session {
	s := &Session{
		state:  StateCollecting,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	metrics.RecordStateTransition(string(StateCollecting))
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that failed the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Used returns the share ids combined by a successful Recover.
func (s *Session) Used() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.used)
}

// Len returns the number of records collected so far.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Add collects records. It may be called any number of times before
// Recover.
func (s *Session) Add(records ...*sharerecord.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCollecting {
		return fmt.Errorf("%w: state is %s", ErrSessionClosed, s.state)
	}
	for i, r := range records {
		if r == nil {
			return fmt.Errorf("%w at position %d", ErrNilRecord, i)
		}
	}
	s.records = append(s.records, records...)
	s.logger.Debug("share records collected", "added", len(records), "total", len(s.records))
	return nil
}

// Recover validates the collected records and reconstructs the secret.
func (s *Session) Recover() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCollecting {
		return nil, fmt.Errorf("%w: state is %s", ErrSessionClosed, s.state)
	}

	start := time.Now()
	secret, err := s.recover()
	metrics.ObserveSince(metrics.OpRecover, start, err)
	if err != nil {
		metrics.RecordError(metrics.OpRecover, ErrorType(err))
		s.err = err
		s.transition(StateFailed)
		s.logger.Warn("recovery failed", "error", err.Error())
		return nil, err
	}
	s.transition(StateDone)
	s.logger.Info("secret reconstructed", "shares", s.used, "secret_len", len(secret))
	return secret, nil
}

func (s *Session) recover() ([]byte, error) {
	records := s.records
	// Records are not needed after this call whatever the outcome.
	s.records = nil

	s.transition(StateValidating)
	threshold, err := validate(records)
	if err != nil {
		return nil, err
	}

	s.transition(StateReconstructing)
	ordered := slices.Clone(records)
	slices.SortFunc(ordered, func(a, b *sharerecord.Record) int {
		return a.ShareID - b.ShareID
	})
	ordered = ordered[:threshold]

	shares := make([]secretsharing.Share, threshold)
	used := make([]int, threshold)
	for i, r := range ordered {
		shares[i] = r.Share()
		used[i] = r.ShareID
	}
	defer func() {
		for i := range shares {
			secretsharing.Zero(shares[i].Value)
		}
	}()

	start := time.Now()
	secret, err := secretsharing.Combine(shares, threshold)
	metrics.ObserveSince(metrics.OpCombine, start, err)
	if err != nil {
		return nil, err
	}
	if s.predicate != nil {
		if err := s.predicate(secret); err != nil {
			secretsharing.Zero(secret)
			return nil, fmt.Errorf("%w: %w", ErrReconstructionInvalid, err)
		}
	}
	s.used = used
	return secret, nil
}

// validate runs every check that does not need the share values and
// returns the threshold the records declare.
func validate(records []*sharerecord.Record) (int, error) {
	if len(records) == 0 {
		return 0, &secretsharing.InsufficientSharesError{Have: 0, Need: secretsharing.MinThreshold}
	}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return 0, err
		}
	}
	if err := sharerecord.CheckCompatible(records); err != nil {
		return 0, err
	}

	seen := make(map[int]string, len(records))
	for _, r := range records {
		if prev, ok := seen[r.ShareID]; ok {
			return 0, fmt.Errorf("%w: %d in %s and %s", secretsharing.ErrDuplicateShareID, r.ShareID, prev, r.Source)
		}
		seen[r.ShareID] = r.Source
	}

	threshold := records[0].Threshold
	if len(records) < threshold {
		return 0, &secretsharing.InsufficientSharesError{Have: len(records), Need: threshold}
	}
	return threshold, nil
}

func (s *Session) transition(to State) {
	s.logger.Debug("recovery state", "from", string(s.state), "to", string(to))
	s.state = to
	metrics.RecordStateTransition(string(to))
}

// Recover reconstructs a secret from records in a single call. predicate
// may be nil.
func Recover(records []*sharerecord.Record, predicate Predicate, opts ...Option) ([]byte, error) {
	s := NewSession(append(opts, WithPredicate(predicate))...)
	if err := s.Add(records...); err != nil {
		return nil, err
	}
	return s.Recover()
}
