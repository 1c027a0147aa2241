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
	"time"

	"github.com/jeremyhahn/go-treasury/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-treasury/pkg/metrics"
	"github.com/jeremyhahn/go-treasury/pkg/sharerecord"
)

// Export splits secret under config and returns one record per share. All
// records carry the same split id and timestamp; a split id is generated
// when meta has none.
func Export(secret []byte, config secretsharing.ShareConfig, meta sharerecord.Metadata) (records []*sharerecord.Record, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveSince(metrics.OpExport, start, err)
		if err != nil {
			metrics.RecordError(metrics.OpExport, ErrorType(err))
		}
	}()

	splitStart := time.Now()
	shares, err := secretsharing.Split(secret, config.Threshold, config.TotalShares)
	metrics.ObserveSince(metrics.OpSplit, splitStart, err)
	if err != nil {
		return nil, err
	}
	defer func() {
		for i := range shares {
			secretsharing.Zero(shares[i].Value)
		}
	}()

	records, err = sharerecord.FromShares(shares, config, meta)
	if err != nil {
		return nil, err
	}
	metrics.AddSharesExported(len(records))
	return records, nil
}
