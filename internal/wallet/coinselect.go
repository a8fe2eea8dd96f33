package wallet

import (
	"fmt"

	"github.com/mondonet/guild-operators/internal/ledger"
)

// FeePolicy selects who absorbs the transaction fee.
type FeePolicy int

const (
	// SenderPays adds the fee on top of the payment.
	SenderPays FeePolicy = iota
	// RecipientPays deducts the fee from the payment.
	RecipientPays
)

func (p FeePolicy) String() string {
	if p == RecipientPays {
		return "recipient-pays"
	}
	return "sender-pays"
}

// CoinSelection holds the result of coin selection.
type CoinSelection struct {
	Inputs  []ledger.UTxO // Selected prefix of the descending snapshot.
	Total   uint64        // Sum of selected input values.
	Payment uint64        // Requested payment, resolved for the "all" sentinel.
	Policy  FeePolicy     // Effective policy; "all" forces RecipientPays.
	// OutputCount is 1 when Total equals Payment exactly (no change), else 2.
	OutputCount int
	// Remaining is the number of snapshot UTxOs left unselected.
	Remaining int
}

// HasChange reports whether the selection returns change to the source.
func (c *CoinSelection) HasChange() bool { return c.OutputCount == 2 }

// SelectCoins chooses the shortest prefix of the snapshot (sorted by
// descending value) whose cumulative value reaches amount. When no prefix
// reaches it, every UTxO is returned and the solvency check reports the
// shortfall.
//
// The "all" sentinel selects every UTxO and forces RecipientPays: spending
// the entire balance leaves nothing from which a sender could add a fee.
func SelectCoins(snap *Snapshot, amount Amount, policy FeePolicy) (*CoinSelection, error) {
	if snap == nil || snap.Empty() {
		return nil, ErrEmptyWallet
	}

	if amount.All {
		return &CoinSelection{
			Inputs:      snap.UTxOs,
			Total:       snap.Total,
			Payment:     snap.Total,
			Policy:      RecipientPays,
			OutputCount: 1,
		}, nil
	}

	if amount.Lovelace == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	return selectPrefix(snap, amount.Lovelace, amount.Lovelace, policy), nil
}

// selectPrefix accumulates UTxOs until target is reached. payment decides
// whether a change output is needed.
func selectPrefix(snap *Snapshot, target, payment uint64, policy FeePolicy) *CoinSelection {
	var total uint64
	n := 0
	for n < len(snap.UTxOs) && total < target {
		total += snap.UTxOs[n].Value
		n++
	}

	outputs := 2
	if total == payment {
		outputs = 1
	}
	return &CoinSelection{
		Inputs:      snap.UTxOs[:n:n],
		Total:       total,
		Payment:     payment,
		Policy:      policy,
		OutputCount: outputs,
		Remaining:   len(snap.UTxOs) - n,
	}
}
