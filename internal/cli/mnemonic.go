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
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-treasury/pkg/metrics"
	"github.com/jeremyhahn/go-treasury/pkg/mnemonic"
)

func newMnemonicCmd(cfg *Config) *cobra.Command {
	mnemonicCmd := &cobra.Command{
		Use:   "mnemonic",
		Short: "Generate and validate BIP-39 mnemonics",
	}

	var bits int
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new English mnemonic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer func(start time.Time) {
				metrics.ObserveSince(metrics.OpMnemonic, start, err)
			}(time.Now())
			phrase, err := mnemonic.Generate(bits)
			if err != nil {
				return err
			}
			cfg.logger.Debug("mnemonic generated", "bits", bits, "words", mnemonic.WordCount(phrase))
			return cfg.printer().PrintMnemonic(phrase)
		},
	}
	generateCmd.Flags().IntVar(&bits, "bits", mnemonic.MaxEntropyBits, "entropy bits (128, 160, 192, 224 or 256)")

	var file string
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that a mnemonic is a valid BIP-39 phrase",
		Long:  `Read a mnemonic from --file or stdin and check its words and checksum.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := cfg.readInput(file)
			if err != nil {
				return err
			}
			if err := mnemonic.Validate(data); err != nil {
				return err
			}
			words := mnemonic.WordCount(mnemonic.Normalize(string(data)))
			return cfg.printer().PrintSuccess(fmt.Sprintf("Valid mnemonic (%d words)", words))
		},
	}
	validateCmd.Flags().StringVar(&file, "file", "", "read the mnemonic from this file instead of stdin")

	mnemonicCmd.AddCommand(generateCmd, validateCmd)
	return mnemonicCmd
}
