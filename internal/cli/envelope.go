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
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-treasury/pkg/crypto/envelope"
	"github.com/jeremyhahn/go-treasury/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-treasury/pkg/keywrap"
	"github.com/jeremyhahn/go-treasury/pkg/metrics"
)

// readEnvelopeKey reads a raw 32 byte key file.
func readEnvelopeKey(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("--key-file is required")
	}
	// #nosec G304 - Key path is provided by the operator
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	if len(key) != envelope.KeySize {
		secretsharing.Zero(key)
		return nil, fmt.Errorf("key file holds %d bytes, expected %d", len(key), envelope.KeySize)
	}
	return key, nil
}

func newEnvelopeCmd(cfg *Config) *cobra.Command {
	envelopeCmd := &cobra.Command{
		Use:   "envelope",
		Short: "Encrypt and decrypt data with a raw key",
		Long: `Encrypt and decrypt data as base64 envelopes
(version || nonce || tag || ciphertext) under a 32 byte key file.`,
	}

	var (
		keyFile   string
		inFile    string
		algorithm string
		outFile   string
	)

	encryptCmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt data from --in or stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer func(start time.Time) {
				metrics.ObserveSince(metrics.OpEncrypt, start, err)
			}(time.Now())

			key, err := readEnvelopeKey(keyFile)
			if err != nil {
				return err
			}
			defer secretsharing.Zero(key)

			plaintext, err := cfg.readInput(inFile)
			if err != nil {
				return err
			}
			defer secretsharing.Zero(plaintext)

			codec, err := cfg.CreateCodec(algorithm)
			if err != nil {
				return err
			}
			env, err := codec.Encrypt(plaintext, key)
			if err != nil {
				return err
			}
			return cfg.printer().PrintEnvelope(env.String())
		},
	}
	encryptCmd.Flags().StringVar(&algorithm, "algorithm", "", "aes256-gcm, chacha20-poly1305 or auto (default from config)")

	decryptCmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt a base64 envelope from --in or stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer func(start time.Time) {
				metrics.ObserveSince(metrics.OpDecrypt, start, err)
				if err != nil {
					metrics.RecordError(metrics.OpDecrypt, "decrypt_failed")
				}
			}(time.Now())

			key, err := readEnvelopeKey(keyFile)
			if err != nil {
				return err
			}
			defer secretsharing.Zero(key)

			data, err := cfg.readInput(inFile)
			if err != nil {
				return err
			}
			env, err := envelope.Parse(strings.TrimSpace(string(data)))
			if err != nil {
				return err
			}
			plaintext, err := envelope.Decrypt(env, key)
			if err != nil {
				return err
			}
			defer secretsharing.Zero(plaintext)

			if outFile != "" {
				if err := writeSecretFile(outFile, plaintext); err != nil {
					return err
				}
				return cfg.printer().PrintSuccess(fmt.Sprintf("Plaintext written to %s", outFile))
			}
			return cfg.printer().PrintSecret(plaintext, nil)
		},
	}
	decryptCmd.Flags().StringVar(&outFile, "out", "", "write the plaintext to this file (0600) instead of stdout")

	var keyOut string
	keygenCmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create a new random 32 byte key file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyOut == "" {
				return fmt.Errorf("--out is required")
			}
			if err := keywrap.GenerateKeyFile(keyOut); err != nil {
				return err
			}
			return cfg.printer().PrintSuccess(fmt.Sprintf("Key written to %s", keyOut))
		},
	}
	keygenCmd.Flags().StringVar(&keyOut, "out", "", "path of the new key file")

	for _, c := range []*cobra.Command{encryptCmd, decryptCmd} {
		c.Flags().StringVar(&keyFile, "key-file", "", "file holding the 32 byte key")
		c.Flags().StringVar(&inFile, "in", "", "read input from this file instead of stdin")
	}

	envelopeCmd.AddCommand(encryptCmd, decryptCmd, keygenCmd)
	return envelopeCmd
}
