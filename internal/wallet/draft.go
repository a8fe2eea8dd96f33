package wallet

import (
	"github.com/mondonet/guild-operators/internal/ledger"
)

// Draft is a transaction assembled in memory, before it is handed to the
// ledger client. A valid draft satisfies
//
//	sum(inputs) == sum(outputs) + fee + deposit
//
// where deposit is non-zero only for key registrations.
type Draft struct {
	Inputs       []ledger.UTxO
	Outputs      []ledger.Output
	Fee          uint64
	Deposit      uint64
	TTL          uint64
	Certificates []string
}

// InputTotal returns the sum of input values.
func (d *Draft) InputTotal() uint64 {
	return totalValue(d.Inputs)
}

// OutputTotal returns the sum of output values.
func (d *Draft) OutputTotal() uint64 {
	var total uint64
	for _, out := range d.Outputs {
		total += out.Value
	}
	return total
}

// CheckBalanced verifies that no value is created or destroyed.
func (d *Draft) CheckBalanced() error {
	in, out := d.InputTotal(), d.OutputTotal()
	// Compare without summing the right-hand side, which could wrap.
	if in < out || in-out < d.Fee || in-out-d.Fee != d.Deposit {
		return &InvariantError{Inputs: in, Outputs: out, Fee: d.Fee, Deposit: d.Deposit}
	}
	return nil
}

// Body returns the ledger body for the draft.
func (d *Draft) Body() ledger.Body {
	return ledger.Body{
		Inputs:       d.Inputs,
		Outputs:      d.Outputs,
		TTL:          d.TTL,
		Fee:          d.Fee,
		Certificates: d.Certificates,
	}
}
