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

package health

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/jeremyhahn/go-treasury/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-treasury/pkg/keywrap"
	"github.com/jeremyhahn/go-treasury/pkg/sharerecord"
	"github.com/jeremyhahn/go-treasury/pkg/storage"
)

// ProbeKey is written and removed again by StorageCheck.
const ProbeKey = ".health/probe"

// StorageCheck verifies that backend accepts writes and returns what was
// written.
func StorageCheck(backend storage.Backend) CheckFunc {
	return func(ctx context.Context) CheckResult {
		const name = "storage"
		probe := []byte("treasury health probe")
		if err := backend.Put(ProbeKey, probe, storage.DefaultOptions()); err != nil {
			return unhealthy(name, err, "storage is not writable")
		}
		defer backend.Delete(ProbeKey) //nolint:errcheck
		got, err := backend.Get(ProbeKey)
		if err != nil {
			return unhealthy(name, err, "storage is not readable")
		}
		if !bytes.Equal(got, probe) {
			return CheckResult{Name: name, Status: StatusUnhealthy, Message: "storage returned different data"}
		}
		return CheckResult{Name: name, Status: StatusHealthy, Message: "storage is readable and writable"}
	}
}

// KeyWrapCheck wraps and unwraps a random data key with w. Remote
// providers are contacted, so credentials and permissions are exercised.
func KeyWrapCheck(w keywrap.Wrapper) CheckFunc {
	return func(ctx context.Context) CheckResult {
		const name = "keywrap"
		dek := make([]byte, 32)
		if _, err := rand.Read(dek); err != nil {
			return unhealthy(name, err, "failed to generate probe key")
		}
		defer secretsharing.Zero(dek)

		wk, err := w.Wrap(ctx, dek)
		if err != nil {
			return unhealthy(name, err, fmt.Sprintf("%s provider cannot wrap", w.Type()))
		}
		got, err := w.Unwrap(ctx, wk)
		if err != nil {
			return unhealthy(name, err, fmt.Sprintf("%s provider cannot unwrap", w.Type()))
		}
		defer secretsharing.Zero(got)
		if !bytes.Equal(got, dek) {
			return CheckResult{Name: name, Status: StatusUnhealthy, Message: "unwrapped key differs"}
		}
		msg := fmt.Sprintf("%s provider round trip ok", w.Type())
		if id := w.KeyID(); id != "" {
			msg += " (key " + id + ")"
		}
		return CheckResult{Name: name, Status: StatusHealthy, Message: msg}
	}
}

// SplitSource lists and loads stored splits. *sharestore.Store satisfies
// it.
type SplitSource interface {
	List() ([]string, error)
	Load(splitID string) ([]*sharerecord.Record, error)
}

// SplitsCheck loads every stored split and reports it degraded when its
// records disagree or fewer than the threshold remain.
func SplitsCheck(src SplitSource) CheckFunc {
	return func(ctx context.Context) CheckResult {
		const name = "splits"
		ids, err := src.List()
		if err != nil {
			return unhealthy(name, err, "failed to list splits")
		}
		if len(ids) == 0 {
			return CheckResult{Name: name, Status: StatusHealthy, Message: "no stored splits"}
		}

		var problems []string
		for _, id := range ids {
			records, err := src.Load(id)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", id, err))
				continue
			}
			if err := sharerecord.CheckCompatible(records); err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", id, err))
				continue
			}
			if need := records[0].Threshold; len(records) < need {
				problems = append(problems, fmt.Sprintf("%s: %d of %d needed shares stored", id, len(records), need))
			}
		}
		if len(problems) > 0 {
			return CheckResult{
				Name:    name,
				Status:  StatusDegraded,
				Message: fmt.Sprintf("%d of %d splits need attention", len(problems), len(ids)),
				Error:   strings.Join(problems, "; "),
			}
		}
		return CheckResult{Name: name, Status: StatusHealthy, Message: fmt.Sprintf("%d splits recoverable", len(ids))}
	}
}
