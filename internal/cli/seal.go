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
	"github.com/jeremyhahn/go-treasury/pkg/sealedsecret"
)

func newSealCmd(cfg *Config) *cobra.Command {
	var (
		name        string
		sealContext string
		secretFile  string
		isMnemonic  bool
	)

	cmd := &cobra.Command{
		Use:   "seal",
		Short: "Seal a retained copy of a secret",
		Long: `Encrypt a secret read from --secret-file or stdin under a random data
key and wrap that key with the configured key wrapping provider. The
document is stored as sealed/<name>.json in the data directory and is
never overwritten.

The context is authenticated with the ciphertext; unseal fails if it is
changed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("context") {
				sealContext = cfg.Settings().Scheme.Network
			}
			secret, err := cfg.readSecret(secretFile, isMnemonic)
			if err != nil {
				return err
			}
			defer secretsharing.Zero(secret)

			wrapper, err := cfg.CreateWrapper(cmd.Context())
			if err != nil {
				return err
			}
			codec, err := cfg.CreateCodec("")
			if err != nil {
				return err
			}
			doc, err := sealedsecret.Seal(cmd.Context(), secret, wrapper, sealContext, sealedsecret.WithCodec(codec))
			if err != nil {
				return err
			}

			store, err := cfg.CreateShareStore()
			if err != nil {
				return err
			}
			if err := store.SaveSealed(name, doc); err != nil {
				return err
			}
			return cfg.printer().PrintSealed(name, doc)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&name, "name", "root", "name of the sealed document")
	flags.StringVar(&sealContext, "context", "", "context bound to the ciphertext (default is the configured network)")
	flags.StringVar(&secretFile, "secret-file", "", "read the secret from this file instead of stdin")
	flags.BoolVar(&isMnemonic, "mnemonic", false, "treat the secret as a BIP-39 mnemonic and validate it")
	return cmd
}

func newUnsealCmd(cfg *Config) *cobra.Command {
	var (
		name    string
		docFile string
		outFile string
	)

	cmd := &cobra.Command{
		Use:   "unseal",
		Short: "Open a sealed secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				doc *sealedsecret.Document
				err error
			)
			if docFile != "" {
				// #nosec G304 - Document path is provided by the operator
				data, rerr := os.ReadFile(docFile)
				if rerr != nil {
					return fmt.Errorf("failed to read %s: %w", docFile, rerr)
				}
				doc, err = sealedsecret.Parse(data)
			} else {
				store, serr := cfg.CreateShareStore()
				if serr != nil {
					return serr
				}
				doc, err = store.LoadSealed(name)
			}
			if err != nil {
				return err
			}

			wrapper, err := cfg.CreateWrapper(cmd.Context())
			if err != nil {
				return err
			}
			secret, err := sealedsecret.Open(cmd.Context(), doc, wrapper)
			if err != nil {
				return err
			}
			defer secretsharing.Zero(secret)
			cfg.logger.Info("secret unsealed", "name", name, "context", doc.Context)

			if outFile != "" {
				if err := writeSecretFile(outFile, secret); err != nil {
					return err
				}
				return cfg.printer().PrintSuccess(fmt.Sprintf("Secret written to %s", outFile))
			}
			return cfg.printer().PrintSecret(secret, nil)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&name, "name", "root", "name of the stored sealed document")
	flags.StringVar(&docFile, "file", "", "read the sealed document from this file instead of storage")
	flags.StringVar(&outFile, "out", "", "write the secret to this file (0600) instead of stdout")
	return cmd
}
