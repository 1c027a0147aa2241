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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-treasury/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-treasury/pkg/mnemonic"
	"github.com/jeremyhahn/go-treasury/pkg/recovery"
	"github.com/jeremyhahn/go-treasury/pkg/sharerecord"
	"github.com/jeremyhahn/go-treasury/pkg/sharestore"
	"github.com/jeremyhahn/go-treasury/pkg/validation"
)

// readSecret reads a secret from path or stdin. Trailing line endings are
// dropped. Mnemonics are normalized and validated.
func (c *Config) readSecret(path string, isMnemonic bool) ([]byte, error) {
	data, err := c.readInput(path)
	if err != nil {
		return nil, err
	}
	secret := []byte(strings.TrimRight(string(data), "\r\n"))
	secretsharing.Zero(data)
	if isMnemonic {
		normalized := []byte(mnemonic.Normalize(string(secret)))
		secretsharing.Zero(secret)
		secret = normalized
		if err := mnemonic.Validate(secret); err != nil {
			return nil, err
		}
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("secret is empty")
	}
	return secret, nil
}

func newSplitCmd(cfg *Config) *cobra.Command {
	var (
		secretFile  string
		threshold   int
		totalShares int
		network     string
		isMnemonic  bool
		outDir      string
		roles       map[string]int
	)

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split a secret into share records",
		Long: `Split a secret read from --secret-file or stdin into share records.
Any threshold of them recovers the secret; fewer reveal nothing about it.

Records are written to the data directory under shares/<split-id>/, or
one file per share to --out-dir for distribution to custodians.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := cfg.Settings()
			scheme := settings.ShareConfig()
			if cmd.Flags().Changed("threshold") {
				scheme.Threshold = threshold
			}
			if cmd.Flags().Changed("shares") {
				scheme.TotalShares = totalShares
			}
			if !cmd.Flags().Changed("network") {
				network = settings.Scheme.Network
			}
			if err := validation.ValidateLabel(network); err != nil {
				return fmt.Errorf("network: %w", err)
			}
			if err := validation.ValidateRoleCounts(roles, scheme.TotalShares); err != nil {
				return err
			}

			secret, err := cfg.readSecret(secretFile, isMnemonic)
			if err != nil {
				return err
			}
			defer secretsharing.Zero(secret)

			cfg.printVerbose("Splitting %d byte secret into %s", len(secret), scheme.String())
			records, err := recovery.Export(secret, scheme, sharerecord.Metadata{
				Network:    network,
				RoleCounts: roles,
			})
			if err != nil {
				return err
			}

			var locations []string
			if outDir != "" {
				locations, err = writeShareFiles(outDir, records)
			} else {
				var store *sharestore.Store
				store, err = cfg.CreateShareStore()
				if err == nil {
					locations, err = store.Save(records)
				}
			}
			if err != nil {
				return err
			}
			cfg.logger.Info("secret split", "split_id", records[0].SplitID,
				"threshold", scheme.Threshold, "total_shares", scheme.TotalShares, "network", network)
			return cfg.printer().PrintSplit(records, locations)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&secretFile, "secret-file", "", "read the secret from this file instead of stdin")
	flags.IntVarP(&threshold, "threshold", "m", 0, "shares needed to recover (default from config)")
	flags.IntVarP(&totalShares, "shares", "n", 0, "shares to create (default from config)")
	flags.StringVar(&network, "network", "", "scheme context recorded in every share (default from config)")
	flags.BoolVar(&isMnemonic, "mnemonic", false, "treat the secret as a BIP-39 mnemonic and validate it")
	flags.StringVar(&outDir, "out-dir", "", "write one share file per custodian to this directory")
	flags.StringToIntVar(&roles, "role", nil, "custodian role counts, e.g. --role board=3,officers=2")
	return cmd
}

func writeShareFiles(dir string, records []*sharerecord.Record) ([]string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	paths := make([]string, 0, len(records))
	for _, r := range records {
		p := filepath.Join(dir, fmt.Sprintf("share-%03d.json", r.ShareID))
		if err := sharestore.WriteFile(p, r); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}
