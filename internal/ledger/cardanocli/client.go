// Package cardanocli implements ledger.Client on top of the cardano-cli binary.
package cardanocli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/mondonet/guild-operators/internal/ledger"
	"github.com/mondonet/guild-operators/internal/log"
)

// Scratch file names. Each call overwrites the previous artifact.
const (
	paramsFile   = "protocol-params.json"
	feeDraftFile = "tx.fee-draft"
	rawFile      = "tx.raw"
	signedFile   = "tx.signed"
)

// Config selects the binary, node socket, network and scratch directory.
type Config struct {
	Binary       string
	SocketPath   string
	Mainnet      bool
	TestnetMagic uint32
	ScratchDir   string
}

// Runner executes the cli with the given arguments.
type Runner interface {
	Run(ctx context.Context, args ...string) (stdout, stderr []byte, err error)
}

// execRunner runs the real binary.
type execRunner struct {
	binary string
	env    []string
}

func (r *execRunner) Run(ctx context.Context, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Env = r.env
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Client is a ledger.Client backed by cardano-cli.
type Client struct {
	cfg Config
	run Runner
}

var _ ledger.Client = (*Client)(nil)

// New creates a client that executes cfg.Binary.
func New(cfg Config) (*Client, error) {
	env := os.Environ()
	if cfg.SocketPath != "" {
		env = append(env, "CARDANO_NODE_SOCKET_PATH="+cfg.SocketPath)
	}
	return NewWithRunner(cfg, &execRunner{binary: cfg.Binary, env: env})
}

// NewWithRunner creates a client with a custom Runner.
func NewWithRunner(cfg Config, run Runner) (*Client, error) {
	if cfg.ScratchDir == "" {
		return nil, fmt.Errorf("scratch dir is required")
	}
	if err := os.MkdirAll(cfg.ScratchDir, 0700); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Client{cfg: cfg, run: run}, nil
}

func (c *Client) networkArgs() []string {
	if c.cfg.Mainnet {
		return []string{"--mainnet"}
	}
	return []string{"--testnet-magic", strconv.FormatUint(uint64(c.cfg.TestnetMagic), 10)}
}

func (c *Client) scratch(name string) string {
	return filepath.Join(c.cfg.ScratchDir, name)
}

// query runs a read-only command. Diagnostics on a successful exit are
// logged, not treated as failure.
func (c *Client) query(ctx context.Context, op string, args ...string) ([]byte, error) {
	stdout, stderr, err := c.run.Run(ctx, args...)
	if err != nil {
		return nil, failure(ctx, op, stdout, stderr, err)
	}
	if len(bytes.TrimSpace(stderr)) > 0 {
		log.Ledger.Warn().Str("op", op).Str("stderr", string(stderr)).Msg("cli reported diagnostics")
	}
	return stdout, nil
}

// execute runs a state-producing command. Any diagnostic output fails it.
func (c *Client) execute(ctx context.Context, op string, args ...string) ([]byte, error) {
	stdout, stderr, err := c.run.Run(ctx, args...)
	if err != nil {
		return nil, failure(ctx, op, stdout, stderr, err)
	}
	if len(bytes.TrimSpace(stderr)) > 0 {
		return nil, &ledger.DiagnosticError{Op: op, Output: string(stderr)}
	}
	return stdout, nil
}

// produce runs a command that writes outFile. The file is removed when the
// command fails, including when it was written before the diagnostic.
func (c *Client) produce(ctx context.Context, op, outFile string, args ...string) error {
	if _, err := c.execute(ctx, op, args...); err != nil {
		os.Remove(outFile)
		return err
	}
	return nil
}

func failure(ctx context.Context, op string, stdout, stderr []byte, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
	msg := bytes.TrimSpace(stderr)
	if len(msg) == 0 {
		msg = bytes.TrimSpace(stdout)
	}
	if len(msg) == 0 {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &ledger.DiagnosticError{Op: op, Output: string(msg)}
}

// QueryTip returns the node's current tip.
func (c *Client) QueryTip(ctx context.Context) (ledger.Tip, error) {
	args := append([]string{"query", "tip"}, c.networkArgs()...)
	out, err := c.query(ctx, "query tip", args...)
	if err != nil {
		return ledger.Tip{}, err
	}
	return parseTip(out)
}

// QueryUTxOs returns the unspent outputs at address.
func (c *Client) QueryUTxOs(ctx context.Context, address string) ([]ledger.UTxO, error) {
	args := append([]string{"query", "utxo", "--address", address}, c.networkArgs()...)
	out, err := c.query(ctx, "query utxo", args...)
	if err != nil {
		return nil, err
	}
	return parseUTxOs(address, out)
}

// QueryProtocolParams writes the current parameters to scratch and parses
// the key deposit from them.
func (c *Client) QueryProtocolParams(ctx context.Context) (*ledger.ProtocolParams, error) {
	path := c.scratch(paramsFile)
	args := append([]string{"query", "protocol-parameters"}, c.networkArgs()...)
	args = append(args, "--out-file", path)
	if _, err := c.query(ctx, "query protocol-parameters", args...); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read protocol parameters: %w", err)
	}
	deposit, err := parseProtocolParams(data)
	if err != nil {
		return nil, err
	}
	return &ledger.ProtocolParams{KeyDeposit: deposit, Path: path}, nil
}

// CalculateMinFee builds a zero-fee draft of the requested shape and asks
// the cli for its minimum fee.
func (c *Client) CalculateMinFee(ctx context.Context, req ledger.FeeRequest) (uint64, error) {
	if req.Params == nil || req.Params.Path == "" {
		return 0, fmt.Errorf("calculate-min-fee: protocol parameters file required")
	}

	body := req.Body
	body.Fee = 0
	draft := c.scratch(feeDraftFile)
	if err := c.produce(ctx, "build fee draft", draft, c.buildArgs(body, draft)...); err != nil {
		return 0, err
	}
	defer os.Remove(draft)

	args := []string{
		"transaction", "calculate-min-fee",
		"--tx-body-file", draft,
		"--tx-in-count", strconv.Itoa(len(body.Inputs)),
		"--tx-out-count", strconv.Itoa(len(body.Outputs)),
		"--witness-count", strconv.Itoa(req.WitnessCount),
		"--byron-witness-count", "0",
		"--protocol-params-file", req.Params.Path,
	}
	args = append(args, c.networkArgs()...)
	out, err := c.query(ctx, "calculate-min-fee", args...)
	if err != nil {
		return 0, err
	}
	return parseMinFee(out)
}

func (c *Client) buildArgs(body ledger.Body, outFile string) []string {
	args := []string{"transaction", "build-raw"}
	for _, in := range body.Inputs {
		args = append(args, "--tx-in", in.Ref())
	}
	for _, out := range body.Outputs {
		args = append(args, "--tx-out", out.Address+"+"+strconv.FormatUint(out.Value, 10))
	}
	args = append(args,
		"--invalid-hereafter", strconv.FormatUint(body.TTL, 10),
		"--fee", strconv.FormatUint(body.Fee, 10),
	)
	for _, cert := range body.Certificates {
		args = append(args, "--certificate-file", cert)
	}
	return append(args, "--out-file", outFile)
}

// BuildRaw writes the unsigned transaction body.
func (c *Client) BuildRaw(ctx context.Context, body ledger.Body) (ledger.Artifact, error) {
	path := c.scratch(rawFile)
	if err := c.produce(ctx, "build-raw", path, c.buildArgs(body, path)...); err != nil {
		return ledger.Artifact{}, err
	}
	return ledger.Artifact{Path: path}, nil
}

// Sign witnesses the draft with every signing key file.
func (c *Client) Sign(ctx context.Context, draft ledger.Artifact, signingKeys []string) (ledger.Artifact, error) {
	path := c.scratch(signedFile)
	args := []string{"transaction", "sign", "--tx-body-file", draft.Path}
	for _, key := range signingKeys {
		args = append(args, "--signing-key-file", key)
	}
	args = append(args, c.networkArgs()...)
	args = append(args, "--out-file", path)
	if err := c.produce(ctx, "sign", path, args...); err != nil {
		return ledger.Artifact{}, err
	}
	return ledger.Artifact{Path: path}, nil
}

// Submit sends the signed transaction to the node.
func (c *Client) Submit(ctx context.Context, signed ledger.Artifact) error {
	args := append([]string{"transaction", "submit", "--tx-file", signed.Path}, c.networkArgs()...)
	_, err := c.execute(ctx, "submit", args...)
	return err
}

// TxID returns the id of a signed transaction.
func (c *Client) TxID(ctx context.Context, signed ledger.Artifact) (string, error) {
	out, err := c.query(ctx, "txid", "transaction", "txid", "--tx-file", signed.Path)
	if err != nil {
		return "", err
	}
	return parseTxID(out)
}
