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

package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-treasury/pkg/crypto/aead"
	"github.com/jeremyhahn/go-treasury/pkg/crypto/kdf"
	"github.com/jeremyhahn/go-treasury/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-treasury/pkg/keywrap"
	"github.com/jeremyhahn/go-treasury/pkg/logging"
	"github.com/jeremyhahn/go-treasury/pkg/validation"
)

// DefaultFileName is the config file looked up in the data directory.
const DefaultFileName = "treasury.yaml"

// Config represents the complete treasury configuration
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Storage  StorageConfig  `yaml:"storage"`
	Scheme   SchemeConfig   `yaml:"scheme"`
	Envelope EnvelopeConfig `yaml:"envelope"`
	KDF      KDFConfig      `yaml:"kdf"`
	KeyWrap  KeyWrapConfig  `yaml:"keywrap"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StorageConfig selects where shares and sealed documents are kept
type StorageConfig struct {
	Backend string `yaml:"backend"` // file, memory
	Path    string `yaml:"path"`
}

// SchemeConfig holds the defaults for new splits
type SchemeConfig struct {
	Threshold   int    `yaml:"threshold"`
	TotalShares int    `yaml:"total_shares"`
	Network     string `yaml:"network"`
}

// EnvelopeConfig selects the AEAD for new envelopes
type EnvelopeConfig struct {
	Algorithm string `yaml:"algorithm"` // aes256-gcm, chacha20-poly1305, auto
}

// KDFConfig sets the passphrase key derivation cost
type KDFConfig struct {
	Algorithm  string `yaml:"algorithm"`            // argon2id, pbkdf2-sha256
	Time       uint32 `yaml:"time,omitempty"`       // argon2id passes
	MemoryKiB  uint32 `yaml:"memory_kib,omitempty"` // argon2id memory
	Threads    uint8  `yaml:"threads,omitempty"`    // argon2id lanes
	Iterations int    `yaml:"iterations,omitempty"` // pbkdf2 only
}

// KeyWrapConfig configures the provider that protects sealed secrets.
// Passphrases are never stored here.
type KeyWrapConfig struct {
	Type    string                 `yaml:"type"`
	KeyFile string                 `yaml:"key_file,omitempty"`
	AWSKMS  *keywrap.AWSKMSConfig  `yaml:"awskms,omitempty"`
	GCPKMS  *keywrap.GCPKMSConfig  `yaml:"gcpkms,omitempty"`
	AzureKV *keywrap.AzureKVConfig `yaml:"azurekv,omitempty"`
	Vault   *keywrap.VaultConfig   `yaml:"vault,omitempty"`
}

// MetricsConfig controls the node exporter textfile written after each command
type MetricsConfig struct {
	Enabled      bool   `yaml:"enabled"`
	TextfilePath string `yaml:"textfile_path,omitempty"`
}

// DefaultDataDir returns ~/.treasury, or .treasury when the home directory
// is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".treasury"
	}
	return filepath.Join(home, ".treasury")
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	dataDir := DefaultDataDir()
	argon := kdf.DefaultParams(kdf.Argon2id)
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: logging.FormatText},
		Storage: StorageConfig{Backend: "file", Path: dataDir},
		Scheme: SchemeConfig{
			Threshold:   3,
			TotalShares: 5,
			Network:     "mainnet",
		},
		Envelope: EnvelopeConfig{Algorithm: aead.AES256GCM},
		KDF: KDFConfig{
			Algorithm: string(kdf.Argon2id),
			Time:      argon.Time,
			MemoryKiB: argon.Memory,
			Threads:   argon.Threads,
		},
		KeyWrap: KeyWrapConfig{
			Type:    string(keywrap.TypeKeyFile),
			KeyFile: filepath.Join(dataDir, "treasury.key"),
		},
	}
}

// Load reads configuration from a YAML file on top of Default and applies
// environment variable overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304 - Config file path is provided by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML with owner-only permissions.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	// Logging
	if level := os.Getenv("TREASURY_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("TREASURY_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	// Storage
	if dataDir := os.Getenv("TREASURY_DATA_DIR"); dataDir != "" {
		cfg.Storage.Path = dataDir
		// A relative key file follows the data dir
		if cfg.KeyWrap.KeyFile != "" && !filepath.IsAbs(cfg.KeyWrap.KeyFile) {
			cfg.KeyWrap.KeyFile = filepath.Join(dataDir, cfg.KeyWrap.KeyFile)
		}
	}

	// Scheme defaults
	if threshold := os.Getenv("TREASURY_THRESHOLD"); threshold != "" {
		n, err := strconv.Atoi(threshold)
		if err != nil {
			log.Printf("Warning: invalid TREASURY_THRESHOLD value %q, using %d: %v",
				threshold, cfg.Scheme.Threshold, err)
		} else {
			cfg.Scheme.Threshold = n
		}
	}
	if total := os.Getenv("TREASURY_TOTAL_SHARES"); total != "" {
		n, err := strconv.Atoi(total)
		if err != nil {
			log.Printf("Warning: invalid TREASURY_TOTAL_SHARES value %q, using %d: %v",
				total, cfg.Scheme.TotalShares, err)
		} else {
			cfg.Scheme.TotalShares = n
		}
	}
	if network := os.Getenv("TREASURY_NETWORK"); network != "" {
		cfg.Scheme.Network = network
	}

	// Key wrapping
	if typ := os.Getenv("TREASURY_KEYWRAP_TYPE"); typ != "" {
		cfg.KeyWrap.Type = typ
	}
	if keyFile := os.Getenv("TREASURY_KEY_FILE"); keyFile != "" {
		cfg.KeyWrap.KeyFile = keyFile
	}
	if path := os.Getenv("TREASURY_METRICS_TEXTFILE"); path != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.TextfilePath = path
	}

	// AWS KMS settings
	if cfg.KeyWrap.AWSKMS != nil {
		if region := os.Getenv("AWS_REGION"); region != "" {
			cfg.KeyWrap.AWSKMS.Region = region
		}
		if endpoint := os.Getenv("AWS_ENDPOINT"); endpoint != "" {
			cfg.KeyWrap.AWSKMS.Endpoint = endpoint
		}
	}

	// GCP KMS settings
	if cfg.KeyWrap.GCPKMS != nil {
		if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
			cfg.KeyWrap.GCPKMS.CredentialsFile = credsFile
		}
	}

	// Azure Key Vault settings
	if cfg.KeyWrap.AzureKV != nil {
		if vaultURL := os.Getenv("AZURE_KEYVAULT_URL"); vaultURL != "" {
			cfg.KeyWrap.AzureKV.VaultURL = vaultURL
		}
		if tenantID := os.Getenv("AZURE_TENANT_ID"); tenantID != "" {
			cfg.KeyWrap.AzureKV.TenantID = tenantID
		}
		if clientID := os.Getenv("AZURE_CLIENT_ID"); clientID != "" {
			cfg.KeyWrap.AzureKV.ClientID = clientID
		}
		if clientSecret := os.Getenv("AZURE_CLIENT_SECRET"); clientSecret != "" {
			cfg.KeyWrap.AzureKV.ClientSecret = clientSecret
		}
	}

	// Vault settings
	if cfg.KeyWrap.Vault != nil {
		if addr := os.Getenv("VAULT_ADDR"); addr != "" {
			cfg.KeyWrap.Vault.Address = addr
		}
		if token := os.Getenv("VAULT_TOKEN"); token != "" {
			cfg.KeyWrap.Vault.Token = token
		}
		if namespace := os.Getenv("VAULT_NAMESPACE"); namespace != "" {
			cfg.KeyWrap.Vault.Namespace = namespace
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	switch c.Storage.Backend {
	case "file":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path must be specified")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid storage backend: %q (must be file or memory)", c.Storage.Backend)
	}

	scheme := c.ShareConfig()
	if err := scheme.Validate(); err != nil {
		return fmt.Errorf("invalid scheme: %w", err)
	}
	if err := validation.ValidateLabel(c.Scheme.Network); err != nil {
		return fmt.Errorf("invalid scheme network: %w", err)
	}

	if _, err := aead.Resolve(c.Envelope.Algorithm); err != nil {
		return fmt.Errorf("invalid envelope algorithm: %w", err)
	}

	switch kdf.Algorithm(c.KDF.Algorithm) {
	case kdf.Argon2id:
		if c.KDF.Time < 1 {
			return fmt.Errorf("kdf time must be at least 1")
		}
		if c.KDF.MemoryKiB < kdf.MinArgon2Memory {
			return fmt.Errorf("kdf memory_kib must be at least %d", kdf.MinArgon2Memory)
		}
		if c.KDF.Threads < 1 {
			return fmt.Errorf("kdf threads must be at least 1")
		}
	case kdf.PBKDF2:
		if c.KDF.Iterations < kdf.MinPBKDF2Iterations {
			return fmt.Errorf("kdf iterations must be at least %d", kdf.MinPBKDF2Iterations)
		}
	default:
		return fmt.Errorf("invalid kdf algorithm: %q (must be argon2id or pbkdf2-sha256)", c.KDF.Algorithm)
	}

	typ, err := keywrap.ParseType(c.KeyWrap.Type)
	if err != nil {
		return err
	}
	switch typ {
	case keywrap.TypeKeyFile:
		if c.KeyWrap.KeyFile == "" {
			return fmt.Errorf("keywrap key_file is required for type %s", typ)
		}
	case keywrap.TypeAWSKMS:
		err = c.KeyWrap.AWSKMS.Validate()
	case keywrap.TypeGCPKMS:
		err = c.KeyWrap.GCPKMS.Validate()
	case keywrap.TypeAzureKV:
		err = c.KeyWrap.AzureKV.Validate()
	case keywrap.TypeVault:
		err = c.KeyWrap.Vault.Validate()
	}
	if err != nil {
		return err
	}

	if c.Metrics.Enabled && c.Metrics.TextfilePath == "" {
		return fmt.Errorf("metrics textfile_path is required when metrics are enabled")
	}
	return nil
}

// ShareConfig returns the default scheme for new splits.
func (c *Config) ShareConfig() secretsharing.ShareConfig {
	return secretsharing.ShareConfig{
		Threshold:   c.Scheme.Threshold,
		TotalShares: c.Scheme.TotalShares,
	}
}

// KDFParams returns the passphrase KDF parameters, without a salt.
func (c *Config) KDFParams() *kdf.Params {
	return &kdf.Params{
		Algorithm:  kdf.Algorithm(c.KDF.Algorithm),
		Time:       c.KDF.Time,
		Memory:     c.KDF.MemoryKiB,
		Threads:    c.KDF.Threads,
		Iterations: c.KDF.Iterations,
		KeyLength:  kdf.DefaultKeyLength,
	}
}

// KeyWrapConfig builds the provider configuration. passphrase is only
// used by the passphrase provider.
func (c *Config) KeyWrapConfig(passphrase []byte) *keywrap.Config {
	return &keywrap.Config{
		Type:       keywrap.Type(c.KeyWrap.Type),
		Passphrase: passphrase,
		KDF:        c.KDFParams(),
		KeyFile:    c.KeyWrap.KeyFile,
		AWSKMS:     c.KeyWrap.AWSKMS,
		GCPKMS:     c.KeyWrap.GCPKMS,
		AzureKV:    c.KeyWrap.AzureKV,
		Vault:      c.KeyWrap.Vault,
	}
}

// LoggerConfig returns the logging configuration.
func (c *Config) LoggerConfig() *logging.Config {
	return &logging.Config{Level: c.Logging.Level, Format: c.Logging.Format}
}
