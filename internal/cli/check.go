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

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-treasury/pkg/health"
)

// ErrCheckFailed is returned by the check command when any check is
// unhealthy.
var ErrCheckFailed = errors.New("preflight check failed")

func newCheckCmd(cfg *Config) *cobra.Command {
	var skipKeyWrap bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run preflight checks before a ceremony",
		Long: `Check that the storage backend is writable, that the key wrapping
provider can wrap and unwrap a data key, and that every stored split
still holds enough consistent shares to be recovered.

Degraded splits are reported but do not fail the command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			checker := health.NewChecker()

			backend, err := cfg.CreateStorage()
			if err != nil {
				return err
			}
			checker.RegisterCheck("storage", health.StorageCheck(backend))

			store, err := cfg.CreateShareStore()
			if err != nil {
				return err
			}
			checker.RegisterCheck("splits", health.SplitsCheck(store))

			if !skipKeyWrap {
				wrapper, err := cfg.CreateWrapper(cmd.Context())
				if err != nil {
					checker.RegisterCheck("keywrap", func(_ context.Context) health.CheckResult {
						return health.CheckResult{Status: health.StatusUnhealthy, Message: "provider unavailable", Error: err.Error()}
					})
				} else {
					checker.RegisterCheck("keywrap", health.KeyWrapCheck(wrapper))
				}
			}

			results := checker.Run(cmd.Context())
			status := health.AggregateStatus(results)
			for _, r := range results {
				cfg.logger.Debug("check finished", "check", r.Name, "status", r.Status, "latency", r.Latency)
			}
			if err := cfg.printer().PrintChecks(status, results); err != nil {
				return err
			}
			if status == health.StatusUnhealthy {
				return fmt.Errorf("%w: %s", ErrCheckFailed, status)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipKeyWrap, "skip-keywrap", false, "do not contact the key wrapping provider")
	return cmd
}
