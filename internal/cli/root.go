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
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-treasury/pkg/correlation"
)

// NewRootCommand builds the treasury command tree around cfg.
func NewRootCommand(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TREASURY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "treasury",
		Short: "treasury - split, seal and recover master secrets",
		Long: `treasury protects a master secret, such as a wallet mnemonic, by
splitting it into Shamir shares held by separate custodians and by
sealing a retained copy under a key wrapping provider.

Key wrapping providers:
  - passphrase: Argon2id or PBKDF2 derived key
  - keyfile:    local key file
  - awskms:     AWS Key Management Service
  - gcpkms:     Google Cloud KMS
  - azurekv:    Azure Key Vault
  - vault:      HashiCorp Vault Transit`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg.bindFlags(v)
			if err := cfg.load(); err != nil {
				return err
			}
			ctx, logger := correlation.Start(cmd.Context(), cfg.logger)
			cfg.logger = logger
			cmd.SetContext(ctx)
			return nil
		},
	}
	rootCmd.SetIn(cfg.stdin)
	rootCmd.SetOut(cfg.stdout)
	rootCmd.SetErr(cfg.stderr)

	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is <data-dir>/treasury.yaml)")
	flags.String("data-dir", "", "directory for shares and sealed secrets")
	flags.StringP("output", "o", "text", "output format (text, json)")
	flags.BoolP("verbose", "v", false, "verbose output")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("metrics-textfile", "", "write Prometheus metrics to this file on exit")
	flags.String("passphrase-file", "", "file holding the passphrase for the passphrase provider")
	_ = v.BindPFlags(flags)

	rootCmd.AddCommand(
		newVersionCmd(cfg),
		newConfigCmd(cfg),
		newMnemonicCmd(cfg),
		newSplitCmd(cfg),
		newRecoverCmd(cfg),
		newInspectCmd(cfg),
		newSealCmd(cfg),
		newUnsealCmd(cfg),
		newEnvelopeCmd(cfg),
		newCheckCmd(cfg),
	)
	return rootCmd
}

// Execute runs the root command with process stdio and writes the
// metrics textfile, if one is configured, whatever the outcome.
func Execute() error {
	cfg := NewConfig()
	err := NewRootCommand(cfg).Execute()
	if merr := cfg.writeMetrics(); merr != nil && err == nil {
		err = merr
	}
	if err != nil {
		printer := NewPrinter(cfg.OutputFormat, os.Stderr)
		_ = printer.PrintError(err) // Error printing to stderr is best-effort
	}
	return err
}

// printVerbose prints a message if verbose mode is enabled
func (c *Config) printVerbose(format string, args ...interface{}) {
	if c.Verbose {
		fmt.Fprintf(c.stderr, "[VERBOSE] "+format+"\n", args...)
	}
}

func (c *Config) printer() *Printer {
	return NewPrinter(c.OutputFormat, c.stdout)
}

// readInput returns the contents of path, or of stdin when path is empty
// or "-".
func (c *Config) readInput(path string) ([]byte, error) {
	var r io.Reader = c.stdin
	if path != "" && path != "-" {
		// #nosec G304 - Input path is provided by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return data, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	return data, nil
}
