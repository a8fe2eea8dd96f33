// Package config handles guild-cli configuration.
//
// Settings are resolved in three layers: per-network defaults, the YAML
// file in the data directory, then command-line flags.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// FileName is the config file name inside the data directory.
const FileName = "guild.yaml"

// Config holds runtime settings.
type Config struct {
	Network      NetworkType `yaml:"network"`
	TestnetMagic uint32      `yaml:"testnet_magic,omitempty"`

	// Ledger client
	CardanoCLI string `yaml:"cardano_cli"`
	SocketPath string `yaml:"socket_path"`

	// DataDir is chosen before the file is read, so it is never persisted.
	DataDir string `yaml:"-"`
	// Optional overrides of the directories derived from DataDir.
	Scratch  string `yaml:"scratch_dir,omitempty"`
	Keystore string `yaml:"keystore_dir,omitempty"`

	// Transactions
	TTLMargin uint64 `yaml:"ttl_margin"`

	// Block waiting
	SlotLength time.Duration `yaml:"slot_length"`
	WaitSlots  uint64        `yaml:"wait_slots"`

	// Display
	DisplayMaxUTxOs int `yaml:"display_max_utxos"`

	Log LogConfig `yaml:"log"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
	JSON  bool   `yaml:"json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.guild
//	macOS:   ~/Library/Application Support/Guild
//	Windows: %APPDATA%\Guild
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".guild"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Guild")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Guild")
		}
		return filepath.Join(home, "AppData", "Roaming", "Guild")
	default:
		return filepath.Join(home, ".guild")
	}
}

// NetworkDir returns the network-specific data directory.
func (c *Config) NetworkDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// ScratchDir returns the directory for per-call transaction artifacts.
func (c *Config) ScratchDir() string {
	if c.Scratch != "" {
		return c.Scratch
	}
	return filepath.Join(c.NetworkDir(), "scratch")
}

// KeystoreDir returns the directory for decrypted signing keys.
func (c *Config) KeystoreDir() string {
	if c.Keystore != "" {
		return c.Keystore
	}
	return filepath.Join(c.NetworkDir(), "keystore")
}

// JournalDir returns the submission journal database directory.
func (c *Config) JournalDir() string {
	return filepath.Join(c.NetworkDir(), "journal")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, FileName)
}

// IsMainnet reports whether the mainnet is selected.
func (c *Config) IsMainnet() bool {
	return c.Network == Mainnet
}
