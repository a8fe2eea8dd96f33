package wallet

import (
	"errors"
	"fmt"
)

// Wallet errors.
var (
	ErrEmptyWallet       = errors.New("empty wallet: no UTxOs at source address")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
)

// InsufficientFundsError reports a failed solvency comparison. Have and Need
// are the two sides of the comparison, in lovelace. With a deposit, Have is
// the single largest UTxO, not the address balance.
type InsufficientFundsError struct {
	Policy FeePolicy
	Have   uint64
	Need   uint64
	// Fee and Deposit are the components of Need beyond the payment.
	Fee     uint64
	Deposit uint64
	// FeeExceedsAmount is set when a recipient-pays amount cannot cover its
	// own fee.
	FeeExceedsAmount bool
}

func (e *InsufficientFundsError) Error() string {
	switch {
	case e.Deposit > 0:
		return fmt.Sprintf("insufficient funds: largest UTxO %s ADA < fee %s ADA + deposit %s ADA (%s ADA)",
			FormatADA(e.Have), FormatADA(e.Fee), FormatADA(e.Deposit), FormatADA(e.Need))
	case e.FeeExceedsAmount:
		return fmt.Sprintf("insufficient funds: amount %s ADA cannot cover its own fee of %s ADA",
			FormatADA(e.Have), FormatADA(e.Need))
	case e.Policy == RecipientPays:
		return fmt.Sprintf("insufficient funds: balance %s ADA < amount %s ADA (fee %s ADA deducted from amount)",
			FormatADA(e.Have), FormatADA(e.Need), FormatADA(e.Fee))
	default:
		return fmt.Sprintf("insufficient funds: balance %s ADA < amount + fee %s ADA (fee %s ADA)",
			FormatADA(e.Have), FormatADA(e.Need), FormatADA(e.Fee))
	}
}

// Is makes errors.Is(err, ErrInsufficientFunds) hold.
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// StepError reports a ledger client failure during build (1), sign (2) or
// submit (3). Err carries the client's diagnostic text.
type StepError struct {
	Step int
	Op   string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) failed: %v", e.Step, e.Op, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// InvariantError reports a draft whose inputs do not equal outputs plus fee
// plus deposit. It is never user-correctable.
type InvariantError struct {
	Inputs  uint64
	Outputs uint64
	Fee     uint64
	Deposit uint64
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("internal consistency failure: inputs %d != outputs %d + fee %d + deposit %d",
		e.Inputs, e.Outputs, e.Fee, e.Deposit)
}
