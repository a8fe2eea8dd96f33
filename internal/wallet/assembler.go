package wallet

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/mondonet/guild-operators/internal/ledger"
	"github.com/mondonet/guild-operators/internal/log"
)

// DefaultTTLMargin is the number of slots past the tip a transaction stays
// valid.
const DefaultTTLMargin = 1000

// KeyStore hands out signing key files for the duration of fn only.
type KeyStore interface {
	WithKeys(ctx context.Context, keys []string, fn func(paths []string) error) error
}

// Recorder persists receipts of submitted transactions.
type Recorder interface {
	Record(r *Receipt) error
}

// Kind labels a submitted transaction.
type Kind string

const (
	KindPayment           Kind = "payment"
	KindStakeRegistration Kind = "stake-registration"
)

// Receipt describes a submitted transaction.
type Receipt struct {
	Kind        Kind
	TxID        string
	Source      string
	Destination string
	Policy      FeePolicy
	Draft       *Draft
	Signed      []byte // signed transaction as written by the ledger client
	SubmittedAt time.Time
}

// Config holds assembler settings.
type Config struct {
	TTLMargin uint64
}

// Assembler builds, signs and submits balanced transactions.
type Assembler struct {
	client   ledger.Client
	balances *Aggregator
	fees     *FeeEstimator
	keys     KeyStore
	recorder Recorder
	cfg      Config
}

// NewAssembler creates an assembler. A zero TTLMargin uses DefaultTTLMargin.
func NewAssembler(client ledger.Client, keys KeyStore, cfg Config) *Assembler {
	if cfg.TTLMargin == 0 {
		cfg.TTLMargin = DefaultTTLMargin
	}
	return &Assembler{
		client:   client,
		balances: NewAggregator(client),
		fees:     NewFeeEstimator(client),
		keys:     keys,
		cfg:      cfg,
	}
}

// SetRecorder attaches a receipt recorder. Recording failures are logged and
// never fail an already-submitted transaction.
func (a *Assembler) SetRecorder(r Recorder) {
	a.recorder = r
}

// PaymentRequest describes a payment.
type PaymentRequest struct {
	Source      string
	Destination string
	Amount      Amount
	SigningKey  string
	Policy      FeePolicy
}

// SendPayment pays req.Amount from req.Source to req.Destination.
func (a *Assembler) SendPayment(ctx context.Context, req PaymentRequest) (*Receipt, error) {
	params, ttl, err := a.chainState(ctx)
	if err != nil {
		return nil, err
	}

	dst, err := a.balances.GetBalance(ctx, req.Destination)
	if err != nil {
		return nil, err
	}
	log.Wallet.Info().
		Str("address", dst.Address).
		Int("utxos", dst.Count()).
		Str("balance_ada", FormatADA(dst.Total)).
		Msg("destination balance")

	src, err := a.balances.GetBalance(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	if src.Empty() {
		return nil, ErrEmptyWallet
	}

	sel, err := SelectCoins(src, req.Amount, req.Policy)
	if err != nil {
		return nil, err
	}
	sel, fee, err := a.settleFee(ctx, src, sel, req, ttl, params)
	if err != nil {
		return nil, err
	}
	if err := checkSolvency(sel, fee); err != nil {
		return nil, err
	}

	draft := paymentDraft(sel, fee, ttl, req)
	if err := draft.CheckBalanced(); err != nil {
		return nil, err
	}

	log.Wallet.Info().
		Str("from", req.Source).
		Str("to", req.Destination).
		Str("policy", sel.Policy.String()).
		Int("inputs", len(draft.Inputs)).
		Int("outputs", len(draft.Outputs)).
		Str("fee_ada", FormatADA(fee)).
		Uint64("ttl", ttl).
		Msg("payment draft balanced")

	return a.execute(ctx, draft, []string{req.SigningKey}, &Receipt{
		Kind:        KindPayment,
		Source:      req.Source,
		Destination: req.Destination,
		Policy:      sel.Policy,
	})
}

// chainState fetches fresh protocol parameters and derives the ttl from the
// current tip.
func (a *Assembler) chainState(ctx context.Context) (*ledger.ProtocolParams, uint64, error) {
	params, err := a.client.QueryProtocolParams(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("query protocol parameters: %w", err)
	}
	tip, err := a.client.QueryTip(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("query tip: %w", err)
	}
	return params, tip.Slot + a.cfg.TTLMargin, nil
}

// settleFee estimates the fee for the selection. Under SenderPays, when the
// selection covers the payment but not payment plus fee and UTxOs remain,
// selection is repeated against payment plus fee and the fee re-estimated
// for the new shape.
func (a *Assembler) settleFee(
	ctx context.Context,
	src *Snapshot,
	sel *CoinSelection,
	req PaymentRequest,
	ttl uint64,
	params *ledger.ProtocolParams,
) (*CoinSelection, uint64, error) {
	for {
		outputs := []string{req.Destination}
		if sel.HasChange() {
			outputs = append(outputs, req.Source)
		}
		fee, err := a.fees.EstimateFee(ctx, Shape{
			Inputs:  sel.Inputs,
			Outputs: outputs,
			TTL:     ttl,
			Signers: 1,
		}, params)
		if err != nil {
			return nil, 0, err
		}

		if sel.Policy != SenderPays || sel.Remaining == 0 || sel.Total >= saturatingAdd(sel.Payment, fee) {
			return sel, fee, nil
		}
		next := selectPrefix(src, saturatingAdd(sel.Payment, fee), sel.Payment, sel.Policy)
		if len(next.Inputs) <= len(sel.Inputs) {
			return sel, fee, nil
		}
		log.Wallet.Debug().
			Int("inputs", len(next.Inputs)).
			Str("fee_ada", FormatADA(fee)).
			Msg("selection extended to cover fee")
		sel = next
	}
}

func checkSolvency(sel *CoinSelection, fee uint64) error {
	if sel.Policy == RecipientPays {
		if sel.Payment < fee {
			return &InsufficientFundsError{Policy: RecipientPays, Have: sel.Payment, Need: fee, Fee: fee, FeeExceedsAmount: true}
		}
		if sel.Total < sel.Payment {
			return &InsufficientFundsError{Policy: RecipientPays, Have: sel.Total, Need: sel.Payment, Fee: fee}
		}
		return nil
	}

	if fee > math.MaxUint64-sel.Payment || sel.Total < sel.Payment+fee {
		return &InsufficientFundsError{Policy: SenderPays, Have: sel.Total, Need: saturatingAdd(sel.Payment, fee), Fee: fee}
	}
	return nil
}

// paymentDraft builds the outputs for a solvent selection. A two-output
// shape that would leave zero change drops the change output and keeps the
// estimated fee.
func paymentDraft(sel *CoinSelection, fee, ttl uint64, req PaymentRequest) *Draft {
	payment := sel.Payment
	change := sel.Total - sel.Payment
	if sel.Policy == RecipientPays {
		payment -= fee
	} else {
		change -= fee
	}

	outputs := []ledger.Output{{Address: req.Destination, Value: payment}}
	if sel.HasChange() && change > 0 {
		outputs = append(outputs, ledger.Output{Address: req.Source, Value: change})
	}
	return &Draft{
		Inputs:  sel.Inputs,
		Outputs: outputs,
		Fee:     fee,
		TTL:     ttl,
	}
}

// execute runs build (1), sign (2) and submit (3), each gated on the
// previous one. Scratch artifacts are discarded on every path.
func (a *Assembler) execute(ctx context.Context, draft *Draft, keys []string, r *Receipt) (*Receipt, error) {
	raw, err := a.client.BuildRaw(ctx, draft.Body())
	if err != nil {
		return nil, &StepError{Step: 1, Op: "build", Err: err}
	}
	defer discard(raw)

	var signed ledger.Artifact
	err = a.keys.WithKeys(ctx, keys, func(paths []string) error {
		var signErr error
		signed, signErr = a.client.Sign(ctx, raw, paths)
		return signErr
	})
	if err != nil {
		return nil, &StepError{Step: 2, Op: "sign", Err: err}
	}
	defer discard(signed)

	r.Draft = draft
	r.TxID, err = a.client.TxID(ctx, signed)
	if err != nil {
		log.Wallet.Warn().Err(err).Msg("could not compute transaction id")
	}
	if r.Signed, err = os.ReadFile(signed.Path); err != nil {
		log.Wallet.Debug().Err(err).Msg("signed artifact not readable")
	}

	if err := a.client.Submit(ctx, signed); err != nil {
		return nil, &StepError{Step: 3, Op: "submit", Err: err}
	}
	r.SubmittedAt = time.Now().UTC()

	log.Wallet.Info().
		Str("kind", string(r.Kind)).
		Str("txid", r.TxID).
		Msg("transaction submitted")

	if a.recorder != nil {
		if err := a.recorder.Record(r); err != nil {
			log.Wallet.Warn().Err(err).Str("txid", r.TxID).Msg("failed to record submission")
		}
	}
	return r, nil
}

func discard(art ledger.Artifact) {
	if art.Path == "" {
		return
	}
	if err := os.Remove(art.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Wallet.Debug().Err(err).Str("path", art.Path).Msg("failed to discard scratch artifact")
	}
}

func saturatingAdd(a, b uint64) uint64 {
	if b > math.MaxUint64-a {
		return math.MaxUint64
	}
	return a + b
}
