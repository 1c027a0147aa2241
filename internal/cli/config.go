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
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-treasury/internal/config"
	"github.com/jeremyhahn/go-treasury/pkg/crypto/envelope"
	"github.com/jeremyhahn/go-treasury/pkg/keywrap"
	"github.com/jeremyhahn/go-treasury/pkg/logging"
	"github.com/jeremyhahn/go-treasury/pkg/metrics"
	"github.com/jeremyhahn/go-treasury/pkg/sharestore"
	"github.com/jeremyhahn/go-treasury/pkg/storage"
	"github.com/jeremyhahn/go-treasury/pkg/storage/file"
	"github.com/jeremyhahn/go-treasury/pkg/storage/memory"
)

// Config holds global CLI configuration
type Config struct {
	// ConfigFile is the path to the configuration file
	ConfigFile string

	// DataDir overrides storage.path from the configuration file
	DataDir string

	// OutputFormat controls output formatting (json, text)
	OutputFormat string

	// Verbose enables verbose output and debug logging
	Verbose bool

	// LogLevel overrides logging.level
	LogLevel string

	// MetricsTextfile overrides metrics.textfile_path
	MetricsTextfile string

	// PassphraseFile is read by the passphrase provider. When empty the
	// TREASURY_PASSPHRASE environment variable is used.
	PassphraseFile string

	settings *config.Config
	logger   *logging.Logger
	backend  storage.Backend

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewConfig creates a new Config with default values on process stdio
func NewConfig() *Config {
	return &Config{
		OutputFormat: "text",
		stdin:        os.Stdin,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
	}
}

// SetIO replaces the streams commands read from and write to.
func (c *Config) SetIO(in io.Reader, out, errOut io.Writer) {
	c.stdin, c.stdout, c.stderr = in, out, errOut
}

func (c *Config) bindFlags(v *viper.Viper) {
	c.ConfigFile = v.GetString("config")
	c.DataDir = v.GetString("data-dir")
	c.OutputFormat = v.GetString("output")
	c.Verbose = v.GetBool("verbose")
	c.LogLevel = v.GetString("log-level")
	c.MetricsTextfile = v.GetString("metrics-textfile")
	c.PassphraseFile = v.GetString("passphrase-file")
}

// load reads the configuration file and applies flag overrides.
func (c *Config) load() error {
	switch OutputFormat(c.OutputFormat) {
	case OutputFormatText, OutputFormatJSON:
	default:
		return fmt.Errorf("unknown output format: %s", c.OutputFormat)
	}

	path := c.ConfigFile
	if path == "" {
		candidate := filepath.Join(c.dataDir(), config.DefaultFileName)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	settings, err := config.Load(path)
	if err != nil {
		return err
	}

	if c.DataDir != "" {
		defaultKey := filepath.Join(config.DefaultDataDir(), "treasury.key")
		if settings.KeyWrap.KeyFile == defaultKey {
			settings.KeyWrap.KeyFile = filepath.Join(c.DataDir, "treasury.key")
		}
		settings.Storage.Backend = "file"
		settings.Storage.Path = c.DataDir
	}
	if c.LogLevel != "" {
		settings.Logging.Level = c.LogLevel
	}
	if c.Verbose {
		settings.Logging.Level = "debug"
	}
	if c.MetricsTextfile != "" {
		settings.Metrics.Enabled = true
		settings.Metrics.TextfilePath = c.MetricsTextfile
	}

	logConfig := settings.LoggerConfig()
	logConfig.Writer = c.stderr
	logger, err := logging.New(logConfig)
	if err != nil {
		return err
	}
	c.settings = settings
	c.logger = logger
	if settings.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}
	c.printVerbose("Using config %q, storage %s", path, settings.Storage.Path)
	return nil
}

func (c *Config) dataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	if dir := os.Getenv("TREASURY_DATA_DIR"); dir != "" {
		return dir
	}
	return config.DefaultDataDir()
}

// Settings returns the effective configuration. It is nil before a
// command has run.
func (c *Config) Settings() *config.Config {
	return c.settings
}

// CreateStorage opens the configured storage backend once per run.
func (c *Config) CreateStorage() (storage.Backend, error) {
	if c.backend != nil {
		return c.backend, nil
	}
	var (
		backend storage.Backend
		err     error
	)
	switch c.settings.Storage.Backend {
	case "memory":
		backend = memory.New()
	default:
		backend, err = file.New(c.settings.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage backend: %w", err)
		}
	}
	c.backend = backend
	return backend, nil
}

// CreateShareStore returns a share store on the configured backend.
func (c *Config) CreateShareStore() (*sharestore.Store, error) {
	backend, err := c.CreateStorage()
	if err != nil {
		return nil, err
	}
	return sharestore.New(backend, sharestore.WithLogger(c.logger)), nil
}

// CreateWrapper builds the configured key wrapping provider.
func (c *Config) CreateWrapper(ctx context.Context) (keywrap.Wrapper, error) {
	var passphrase []byte
	if keywrap.Type(c.settings.KeyWrap.Type) == keywrap.TypePassphrase {
		p, err := c.passphrase()
		if err != nil {
			return nil, err
		}
		passphrase = p
	}
	w, err := keywrap.New(ctx, c.settings.KeyWrapConfig(passphrase))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s wrapper: %w", c.settings.KeyWrap.Type, err)
	}
	return w, nil
}

func (c *Config) passphrase() ([]byte, error) {
	if c.PassphraseFile != "" {
		// #nosec G304 - Passphrase path is provided by the operator
		data, err := os.ReadFile(c.PassphraseFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read passphrase file: %w", err)
		}
		return []byte(strings.TrimRight(string(data), "\r\n")), nil
	}
	if p := os.Getenv("TREASURY_PASSPHRASE"); p != "" {
		return []byte(p), nil
	}
	return nil, fmt.Errorf("passphrase provider needs --passphrase-file or TREASURY_PASSPHRASE")
}

// CreateCodec returns an envelope codec for algorithm, or for the
// configured algorithm when algorithm is empty.
func (c *Config) CreateCodec(algorithm string) (*envelope.Codec, error) {
	if algorithm == "" {
		algorithm = c.settings.Envelope.Algorithm
	}
	return envelope.NewCodec(envelope.WithAlgorithm(algorithm))
}

func (c *Config) writeMetrics() error {
	if c.settings == nil || !c.settings.Metrics.Enabled {
		return nil
	}
	if err := metrics.WriteTextfile(c.settings.Metrics.TextfilePath); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

func newConfigCmd(cfg *Config) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the treasury configuration",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration and key file",
		Long: `Write <data-dir>/treasury.yaml with default settings. When the keyfile
provider is selected and the key file does not exist, a new random key
file is created with 0600 permissions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfg.ConfigFile
			if path == "" {
				path = filepath.Join(cfg.dataDir(), config.DefaultFileName)
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			settings := cfg.settings
			if err := settings.Save(path); err != nil {
				return err
			}
			cfg.logger.Info("configuration written", "path", path)

			if keywrap.Type(settings.KeyWrap.Type) == keywrap.TypeKeyFile {
				err := keywrap.GenerateKeyFile(settings.KeyWrap.KeyFile)
				switch {
				case err == nil:
					cfg.logger.Info("key file created", "path", settings.KeyWrap.KeyFile)
				case errors.Is(err, fs.ErrExist):
					cfg.printVerbose("Keeping existing key file %s", settings.KeyWrap.KeyFile)
				default:
					return err
				}
			}
			return cfg.printer().PrintSuccess(fmt.Sprintf("Configuration written to %s", path))
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if OutputFormat(cfg.OutputFormat) == OutputFormatJSON {
				return cfg.printer().printJSON(cfg.settings)
			}
			data, err := yaml.Marshal(cfg.settings)
			if err != nil {
				return err
			}
			_, err = cfg.stdout.Write(data)
			return err
		},
	}

	configCmd.AddCommand(initCmd, showCmd)
	return configCmd
}
