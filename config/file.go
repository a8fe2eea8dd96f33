package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadFile overlays the YAML file at path onto cfg. A missing file leaves
// cfg unchanged. Unknown keys are rejected.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// WriteFile writes cfg as YAML, creating parent directories.
func WriteFile(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	header := []byte("# guild-cli configuration\n")
	if err := os.WriteFile(path, append(header, data...), 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load resolves the configuration for network in dataDir: defaults, then
// the data directory's config file, or explicitPath when non-empty.
// A missing default config file is written out for the operator to edit.
// The written file always holds the mainnet defaults, so the network of a
// first run does not become the standing default.
func Load(network NetworkType, dataDir, explicitPath string) (*Config, error) {
	cfg := Default(network)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	path := explicitPath
	if path == "" {
		path = cfg.ConfigFile()
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := WriteFile(Default(Mainnet), path); err != nil {
				return nil, err
			}
			return cfg, nil
		}
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}

	if err := LoadFile(cfg, path); err != nil {
		return nil, err
	}
	Normalize(cfg)
	return cfg, nil
}

// Normalize reconciles the testnet magic with the selected network after
// the network was switched by the file or a flag.
func Normalize(cfg *Config) {
	switch cfg.Network {
	case Mainnet:
		cfg.TestnetMagic = 0
	case Testnet:
		if cfg.TestnetMagic == 0 {
			cfg.TestnetMagic = DefaultTestnetMagic
		}
	}
}

// EnsureDirs creates the data directories with owner-only permissions.
func EnsureDirs(cfg *Config) error {
	for _, dir := range []string{cfg.DataDir, cfg.NetworkDir(), cfg.ScratchDir(), cfg.KeystoreDir()} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
