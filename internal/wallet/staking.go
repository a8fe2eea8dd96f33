package wallet

import (
	"context"

	"github.com/mondonet/guild-operators/internal/ledger"
	"github.com/mondonet/guild-operators/internal/log"
)

// StakeRegistration describes a stake key registration.
type StakeRegistration struct {
	PaymentAddress string
	PaymentKey     string
	StakeKey       string
	Certificate    string // registration certificate file
}

// RegisterStaking submits a one-input, one-output transaction that pays the
// key deposit and carries the registration certificate. The input is always
// the single largest UTxO at the payment address; its remainder returns to
// that address.
func (a *Assembler) RegisterStaking(ctx context.Context, req StakeRegistration) (*Receipt, error) {
	params, ttl, err := a.chainState(ctx)
	if err != nil {
		return nil, err
	}

	snap, err := a.balances.GetBalance(ctx, req.PaymentAddress)
	if err != nil {
		return nil, err
	}
	if snap.Empty() {
		return nil, ErrEmptyWallet
	}
	input := snap.UTxOs[0]
	certs := []string{req.Certificate}

	fee, err := a.fees.EstimateFee(ctx, Shape{
		Inputs:       []ledger.UTxO{input},
		Outputs:      []string{req.PaymentAddress},
		TTL:          ttl,
		Signers:      2,
		Certificates: certs,
	}, params)
	if err != nil {
		return nil, err
	}

	deposit := params.KeyDeposit
	need := saturatingAdd(fee, deposit)
	if input.Value < need {
		return nil, &InsufficientFundsError{
			Policy:  SenderPays,
			Have:    input.Value,
			Need:    need,
			Fee:     fee,
			Deposit: deposit,
		}
	}

	draft := &Draft{
		Inputs:       []ledger.UTxO{input},
		Outputs:      []ledger.Output{{Address: req.PaymentAddress, Value: input.Value - need}},
		Fee:          fee,
		Deposit:      deposit,
		TTL:          ttl,
		Certificates: certs,
	}
	if err := draft.CheckBalanced(); err != nil {
		return nil, err
	}

	log.Wallet.Info().
		Str("address", req.PaymentAddress).
		Str("input", input.Ref()).
		Str("fee_ada", FormatADA(fee)).
		Str("deposit_ada", FormatADA(deposit)).
		Uint64("ttl", ttl).
		Msg("stake registration draft balanced")

	return a.execute(ctx, draft, []string{req.PaymentKey, req.StakeKey}, &Receipt{
		Kind:        KindStakeRegistration,
		Source:      req.PaymentAddress,
		Destination: req.PaymentAddress,
		Policy:      SenderPays,
	})
}
