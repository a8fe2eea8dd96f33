package config

import (
	"fmt"

	"github.com/mondonet/guild-operators/internal/log"
)

// Validate checks the configuration for operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	switch cfg.Network {
	case Mainnet:
		if cfg.TestnetMagic != 0 {
			return fmt.Errorf("testnet_magic must not be set on %s", Mainnet)
		}
	case Testnet:
		if cfg.TestnetMagic == 0 {
			return fmt.Errorf("testnet_magic is required on %s", Testnet)
		}
	default:
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.CardanoCLI == "" {
		return fmt.Errorf("cardano_cli must name the ledger client binary")
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir is required")
	}
	if cfg.TTLMargin == 0 {
		return fmt.Errorf("ttl_margin must be positive")
	}
	if cfg.SlotLength <= 0 {
		return fmt.Errorf("slot_length must be positive")
	}
	if cfg.WaitSlots == 0 {
		return fmt.Errorf("wait_slots must be positive")
	}
	if cfg.DisplayMaxUTxOs < 0 {
		return fmt.Errorf("display_max_utxos must not be negative")
	}
	if !log.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level)
	}
	return nil
}
