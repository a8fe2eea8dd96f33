// Command guild-cli is an operator wallet: balances, payments and stake key
// registration through a local cardano-cli and node socket.
//
// Usage:
//
//	guild-cli [global flags] <command> [flags]
//
// Run "guild-cli help" for the command list.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mondonet/guild-operators/config"
	"github.com/mondonet/guild-operators/internal/journal"
	"github.com/mondonet/guild-operators/internal/keystore"
	"github.com/mondonet/guild-operators/internal/ledger/cardanocli"
	"github.com/mondonet/guild-operators/internal/log"
	"github.com/mondonet/guild-operators/internal/wallet"
)

var version = "dev"

// globalFlags mirror the config file keys they override.
type globalFlags struct {
	configPath   string
	network      string
	testnetMagic uint32
	cardanoCLI   string
	socket       string
	dataDir      string
	logLevel     string
	logJSON      bool
}

// app carries the resolved configuration to the subcommands.
type app struct {
	flags globalFlags
	cfg   *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fatal("%v", err)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "guild-cli",
		Short:         "Operator wallet for a cardano-cli managed node",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.configure(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "config file (default <datadir>/"+config.FileName+")")
	pf.StringVar(&a.flags.network, "network", string(config.Mainnet), "network: mainnet or testnet")
	pf.Uint32Var(&a.flags.testnetMagic, "testnet-magic", 0, "testnet network magic")
	pf.StringVar(&a.flags.cardanoCLI, "cardano-cli", "", "path to the cardano-cli binary")
	pf.StringVar(&a.flags.socket, "socket", "", "node socket path (CARDANO_NODE_SOCKET_PATH)")
	pf.StringVar(&a.flags.dataDir, "datadir", config.DefaultDataDir(), "data directory")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&a.flags.logJSON, "log-json", false, "log as JSON")

	root.AddCommand(
		a.tipCmd(),
		a.waitBlockCmd(),
		a.balanceCmd(),
		a.sendCmd(),
		a.stakeCmd(),
		a.keyCmd(),
		a.historyCmd(),
	)
	return root
}

// configure resolves defaults, the config file and explicit flags, in that
// order, then initializes logging and the data directories.
func (a *app) configure(cmd *cobra.Command) error {
	flags := cmd.Flags()
	network := config.NetworkType(a.flags.network)

	cfg, err := config.Load(network, a.flags.dataDir, a.flags.configPath)
	if err != nil {
		return err
	}
	if flags.Changed("network") {
		cfg.Network = network
		config.Normalize(cfg)
	}
	if flags.Changed("testnet-magic") {
		cfg.TestnetMagic = a.flags.testnetMagic
	}
	if flags.Changed("cardano-cli") {
		cfg.CardanoCLI = a.flags.cardanoCLI
	}
	if flags.Changed("socket") {
		cfg.SocketPath = a.flags.socket
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.flags.logLevel
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON = a.flags.logJSON
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = os.Getenv("CARDANO_NODE_SOCKET_PATH")
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	if err := config.EnsureDirs(cfg); err != nil {
		return err
	}

	log.CLI.Debug().
		Str("network", string(cfg.Network)).
		Str("datadir", cfg.DataDir).
		Str("cardano_cli", cfg.CardanoCLI).
		Msg("configuration loaded")
	a.cfg = cfg
	return nil
}

func (a *app) ledgerClient() (*cardanocli.Client, error) {
	return cardanocli.New(cardanocli.Config{
		Binary:       a.cfg.CardanoCLI,
		SocketPath:   a.cfg.SocketPath,
		Mainnet:      a.cfg.IsMainnet(),
		TestnetMagic: a.cfg.TestnetMagic,
		ScratchDir:   a.cfg.ScratchDir(),
	})
}

func (a *app) keystore() (*keystore.Keystore, error) {
	return keystore.New(keystore.Config{
		ScratchDir: a.cfg.KeystoreDir(),
		Password: func(path string) ([]byte, error) {
			return readPassword(fmt.Sprintf("Password for %s: ", filepath.Base(path)))
		},
	})
}

// assembler wires the ledger client, key store and journal. The returned
// close func releases the journal.
func (a *app) assembler() (*wallet.Assembler, func(), error) {
	client, err := a.ledgerClient()
	if err != nil {
		return nil, nil, err
	}
	ks, err := a.keystore()
	if err != nil {
		return nil, nil, err
	}
	asm := wallet.NewAssembler(client, ks, wallet.Config{TTLMargin: a.cfg.TTLMargin})

	j, err := journal.Open(a.cfg.JournalDir())
	if err != nil {
		// The journal is a convenience; a locked or broken one must not
		// block a payment.
		log.CLI.Warn().Err(err).Msg("submission journal unavailable")
		return asm, func() {}, nil
	}
	asm.SetRecorder(j)
	return asm, func() {
		if err := j.Close(); err != nil {
			log.CLI.Warn().Err(err).Msg("close journal")
		}
	}, nil
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	return password, nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
