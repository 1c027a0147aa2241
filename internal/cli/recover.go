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

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-treasury/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-treasury/pkg/mnemonic"
	"github.com/jeremyhahn/go-treasury/pkg/recovery"
	"github.com/jeremyhahn/go-treasury/pkg/sharerecord"
	"github.com/jeremyhahn/go-treasury/pkg/sharestore"
)

// loadRecords reads records from share files, or from the store when
// splitID is set.
func (c *Config) loadRecords(paths []string, splitID string) ([]*sharerecord.Record, error) {
	switch {
	case splitID != "" && len(paths) > 0:
		return nil, fmt.Errorf("give either share files or --split, not both")
	case splitID != "":
		store, err := c.CreateShareStore()
		if err != nil {
			return nil, err
		}
		return store.Load(splitID)
	case len(paths) > 0:
		return sharestore.ReadFiles(paths...)
	default:
		return nil, fmt.Errorf("no shares given: pass share files or --split")
	}
}

func newRecoverCmd(cfg *Config) *cobra.Command {
	var (
		splitID    string
		isMnemonic bool
		outFile    string
	)

	cmd := &cobra.Command{
		Use:   "recover [share-file...]",
		Short: "Reconstruct a secret from share records",
		Long: `Reconstruct a secret from share files or from the shares of a stored
split. The records are checked against each other before any share value
is used; the lowest share ids up to the threshold are combined.

With --mnemonic the result must be a valid BIP-39 phrase, which catches
shares from different splits that happen to look compatible.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := cfg.loadRecords(args, splitID)
			if err != nil {
				return err
			}

			opts := []recovery.Option{recovery.WithLogger(cfg.logger)}
			if isMnemonic {
				opts = append(opts, recovery.WithPredicate(mnemonic.Validate))
			}
			session := recovery.NewSession(opts...)
			if err := session.Add(records...); err != nil {
				return err
			}
			secret, err := session.Recover()
			if err != nil {
				return err
			}
			defer secretsharing.Zero(secret)

			if outFile != "" {
				if err := writeSecretFile(outFile, secret); err != nil {
					return err
				}
				return cfg.printer().PrintSuccess(fmt.Sprintf("Secret written to %s using shares %v", outFile, session.Used()))
			}
			return cfg.printer().PrintSecret(secret, session.Used())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&splitID, "split", "", "recover from the stored shares of this split")
	flags.BoolVar(&isMnemonic, "mnemonic", false, "require the result to be a valid BIP-39 mnemonic")
	flags.StringVar(&outFile, "out", "", "write the secret to this file (0600) instead of stdout")
	return cmd
}

// writeSecretFile writes secret to a new owner-only file.
func writeSecretFile(path string, secret []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := f.Write(secret); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func newInspectCmd(cfg *Config) *cobra.Command {
	var splitID string

	cmd := &cobra.Command{
		Use:   "inspect [share-file...]",
		Short: "Show share record metadata and compatibility",
		Long: `Show the metadata of share files or of a stored split, and whether the
records belong to the same split. Share values are never printed.

Without arguments, list the stored splits and sealed secrets.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && splitID == "" {
				store, err := cfg.CreateShareStore()
				if err != nil {
					return err
				}
				splits, err := store.List()
				if err != nil {
					return err
				}
				sealed, err := store.ListSealed()
				if err != nil {
					return err
				}
				return cfg.printer().PrintInventory(splits, sealed)
			}

			records, err := cfg.loadRecords(args, splitID)
			if err != nil {
				return err
			}
			return cfg.printer().PrintRecords(records, sharerecord.CheckCompatible(records))
		},
	}
	cmd.Flags().StringVar(&splitID, "split", "", "inspect the stored shares of this split")
	return cmd
}
