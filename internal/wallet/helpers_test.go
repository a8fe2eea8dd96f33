package wallet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/mondonet/guild-operators/internal/ledger"
	"github.com/mondonet/guild-operators/internal/log"
)

const (
	srcAddr = "addr_test1source"
	dstAddr = "addr_test1destination"
	ada     = LovelacePerADA
)

func init() {
	log.Disable()
}

func makeUTxOs(address string, values ...uint64) []ledger.UTxO {
	utxos := make([]ledger.UTxO, len(values))
	for i, v := range values {
		utxos[i] = ledger.UTxO{
			TxHash:  fmt.Sprintf("%064x", i+1),
			TxIx:    uint32(i),
			Address: address,
			Value:   v,
		}
	}
	return utxos
}

// fakeLedger is an in-memory ledger.Client. Build and sign write real
// scratch files so tests can check they are discarded.
type fakeLedger struct {
	scratch string
	tip     ledger.Tip
	utxos   map[string][]ledger.UTxO
	deposit uint64
	fee     func(req ledger.FeeRequest) uint64

	utxoErr   error
	buildErr  error
	signErr   error
	submitErr error

	feeRequests []ledger.FeeRequest
	built       []ledger.Body
	signedWith  [][]string
	submitted   []ledger.Artifact
}

func newFakeLedger(t *testing.T) *fakeLedger {
	t.Helper()
	return &fakeLedger{
		scratch: t.TempDir(),
		tip:     ledger.Tip{Block: 100, Slot: 50_000},
		utxos:   make(map[string][]ledger.UTxO),
		deposit: 2 * ada,
		fee:     func(ledger.FeeRequest) uint64 { return 200_000 },
	}
}

func (f *fakeLedger) QueryTip(context.Context) (ledger.Tip, error) { return f.tip, nil }

func (f *fakeLedger) QueryUTxOs(_ context.Context, address string) ([]ledger.UTxO, error) {
	if f.utxoErr != nil {
		return nil, f.utxoErr
	}
	return f.utxos[address], nil
}

func (f *fakeLedger) QueryProtocolParams(context.Context) (*ledger.ProtocolParams, error) {
	return &ledger.ProtocolParams{KeyDeposit: f.deposit, Path: filepath.Join(f.scratch, "params.json")}, nil
}

func (f *fakeLedger) CalculateMinFee(_ context.Context, req ledger.FeeRequest) (uint64, error) {
	f.feeRequests = append(f.feeRequests, req)
	return f.fee(req), nil
}

func (f *fakeLedger) BuildRaw(_ context.Context, body ledger.Body) (ledger.Artifact, error) {
	if f.buildErr != nil {
		return ledger.Artifact{}, f.buildErr
	}
	f.built = append(f.built, body)
	return f.write("tx.raw")
}

func (f *fakeLedger) Sign(_ context.Context, _ ledger.Artifact, keys []string) (ledger.Artifact, error) {
	if f.signErr != nil {
		return ledger.Artifact{}, f.signErr
	}
	f.signedWith = append(f.signedWith, keys)
	return f.write("tx.signed")
}

func (f *fakeLedger) Submit(_ context.Context, signed ledger.Artifact) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, signed)
	return nil
}

func (f *fakeLedger) TxID(context.Context, ledger.Artifact) (string, error) {
	return "deadbeef", nil
}

func (f *fakeLedger) write(name string) (ledger.Artifact, error) {
	path := filepath.Join(f.scratch, name)
	if err := os.WriteFile(path, []byte(name), 0600); err != nil {
		return ledger.Artifact{}, err
	}
	return ledger.Artifact{Path: path}, nil
}

func (f *fakeLedger) scratchEmpty(t *testing.T) {
	t.Helper()
	for _, name := range []string{"tx.raw", "tx.signed"} {
		if _, err := os.Stat(filepath.Join(f.scratch, name)); err == nil {
			t.Errorf("scratch artifact %s was not discarded", name)
		}
	}
}

// passKeys hands key paths through unchanged and remembers the calls.
type passKeys struct {
	calls [][]string
}

func (p *passKeys) WithKeys(_ context.Context, keys []string, fn func([]string) error) error {
	p.calls = append(p.calls, keys)
	return fn(keys)
}

type memRecorder struct {
	receipts []*Receipt
}

func (m *memRecorder) Record(r *Receipt) error {
	m.receipts = append(m.receipts, r)
	return nil
}

func newTestAssembler(fl *fakeLedger) (*Assembler, *passKeys) {
	keys := &passKeys{}
	return NewAssembler(fl, keys, Config{}), keys
}

func outputValue(outputs []ledger.Output, address string) (uint64, bool) {
	for _, out := range outputs {
		if out.Address == address {
			return out.Value, true
		}
	}
	return 0, false
}
