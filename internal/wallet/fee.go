package wallet

import (
	"context"
	"fmt"

	"github.com/mondonet/guild-operators/internal/ledger"
)

// FeeCalculator is the ledger's deterministic fee function.
type FeeCalculator interface {
	CalculateMinFee(ctx context.Context, req ledger.FeeRequest) (uint64, error)
}

// FeeEstimator obtains the minimum fee for a draft shape. Results are never
// cached: any change in inputs, outputs or witnesses needs a fresh call.
type FeeEstimator struct {
	calc FeeCalculator
}

// NewFeeEstimator wraps the ledger fee function.
func NewFeeEstimator(calc FeeCalculator) *FeeEstimator {
	return &FeeEstimator{calc: calc}
}

// Shape is the fee-relevant shape of a draft. Output values are ignored by
// the fee function and may be zero.
type Shape struct {
	Inputs       []ledger.UTxO
	Outputs      []string // output addresses
	TTL          uint64
	Signers      int
	Certificates []string
}

// EstimateFee returns the minimum fee for a transaction of the given shape.
func (f *FeeEstimator) EstimateFee(ctx context.Context, shape Shape, params *ledger.ProtocolParams) (uint64, error) {
	outputs := make([]ledger.Output, len(shape.Outputs))
	for i, addr := range shape.Outputs {
		outputs[i] = ledger.Output{Address: addr}
	}

	fee, err := f.calc.CalculateMinFee(ctx, ledger.FeeRequest{
		Body: ledger.Body{
			Inputs:       shape.Inputs,
			Outputs:      outputs,
			TTL:          shape.TTL,
			Certificates: shape.Certificates,
		},
		WitnessCount: shape.Signers,
		Params:       params,
	})
	if err != nil {
		return 0, fmt.Errorf("estimate fee (%d in, %d out): %w", len(shape.Inputs), len(shape.Outputs), err)
	}
	return fee, nil
}
