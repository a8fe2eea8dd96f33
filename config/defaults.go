package config

import "time"

// DefaultTestnetMagic is the network magic of the pre-production testnet.
const DefaultTestnetMagic = 1

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network:         Mainnet,
		CardanoCLI:      "cardano-cli",
		DataDir:         DefaultDataDir(),
		TTLMargin:       1000,
		SlotLength:      time.Second,
		WaitSlots:       60,
		DisplayMaxUTxOs: 10,
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.TestnetMagic = DefaultTestnetMagic
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
