// Package ledger defines the typed boundary between the wallet engine and the
// node-facing ledger client. Adapters (see cardanocli) own every detail of
// how requests reach the node and how responses are parsed.
package ledger

import (
	"context"
	"fmt"
	"strings"
)

// Tip is the current chain tip.
type Tip struct {
	Block uint64 `json:"block"`
	Slot  uint64 `json:"slot"`
	Epoch uint64 `json:"epoch,omitempty"`
	Hash  string `json:"hash,omitempty"`
}

// UTxO is an unspent output observed at an address.
type UTxO struct {
	TxHash  string `json:"tx_hash"`
	TxIx    uint32 `json:"tx_ix"`
	Address string `json:"address"`
	Value   uint64 `json:"value"` // lovelace
}

// Ref returns the "hash#ix" form used to reference the output as an input.
func (u UTxO) Ref() string {
	return fmt.Sprintf("%s#%d", u.TxHash, u.TxIx)
}

// Output is an (address, value) pair of a transaction body.
type Output struct {
	Address string `json:"address"`
	Value   uint64 `json:"value"`
}

// ProtocolParams is a read-only snapshot of the current protocol parameters.
type ProtocolParams struct {
	KeyDeposit uint64 // stake key registration deposit, lovelace
	// Path is the on-disk parameters document, required by fee calculation.
	Path string
}

// Artifact is a transaction body or signed transaction written to scratch
// storage by the client. It is only valid for the operation that produced it.
type Artifact struct {
	Path string
}

// Body describes a transaction body to be built.
type Body struct {
	Inputs       []UTxO
	Outputs      []Output
	TTL          uint64
	Fee          uint64
	Certificates []string // certificate file paths
}

// FeeRequest describes the shape of a draft for minimum fee calculation.
type FeeRequest struct {
	Body         Body
	WitnessCount int
	Params       *ProtocolParams
}

// Client is the ledger capability used by the wallet engine.
type Client interface {
	QueryTip(ctx context.Context) (Tip, error)
	QueryUTxOs(ctx context.Context, address string) ([]UTxO, error)
	QueryProtocolParams(ctx context.Context) (*ProtocolParams, error)
	CalculateMinFee(ctx context.Context, req FeeRequest) (uint64, error)
	BuildRaw(ctx context.Context, body Body) (Artifact, error)
	Sign(ctx context.Context, draft Artifact, signingKeys []string) (Artifact, error)
	Submit(ctx context.Context, signed Artifact) error
	TxID(ctx context.Context, signed Artifact) (string, error)
}

// TipQuerier is the subset of Client needed to follow the chain tip.
type TipQuerier interface {
	QueryTip(ctx context.Context) (Tip, error)
}

// DiagnosticError is returned when the ledger client reports diagnostic
// output for an operation. Any non-empty diagnostic is a failure.
type DiagnosticError struct {
	Op     string
	Output string
}

func (e *DiagnosticError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, strings.TrimSpace(e.Output))
}
