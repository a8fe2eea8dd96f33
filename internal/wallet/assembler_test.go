package wallet

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mondonet/guild-operators/internal/ledger"
)

func TestSendPayment_SenderPaysWithChange(t *testing.T) {
	fl := newFakeLedger(t)
	fl.utxos[srcAddr] = makeUTxOs(srcAddr, 150*ada)
	asm, keys := newTestAssembler(fl)

	r, err := asm.SendPayment(context.Background(), PaymentRequest{
		Source:      srcAddr,
		Destination: dstAddr,
		Amount:      Lovelace(100 * ada),
		SigningKey:  "payment.skey",
		Policy:      SenderPays,
	})
	if err != nil {
		t.Fatalf("SendPayment: %v", err)
	}

	if len(fl.built) != 1 {
		t.Fatalf("built %d bodies, want 1", len(fl.built))
	}
	body := fl.built[0]
	if len(body.Inputs) != 1 || len(body.Outputs) != 2 {
		t.Fatalf("shape = %d in / %d out, want 1/2", len(body.Inputs), len(body.Outputs))
	}
	if v, _ := outputValue(body.Outputs, dstAddr); v != 100*ada {
		t.Errorf("destination = %d, want %d", v, 100*ada)
	}
	if v, _ := outputValue(body.Outputs, srcAddr); v != 49_800_000 {
		t.Errorf("change = %d, want 49800000", v)
	}
	if body.Fee != 200_000 {
		t.Errorf("fee = %d, want 200000", body.Fee)
	}
	if body.TTL != fl.tip.Slot+DefaultTTLMargin {
		t.Errorf("ttl = %d, want %d", body.TTL, fl.tip.Slot+DefaultTTLMargin)
	}

	if len(keys.calls) != 1 || keys.calls[0][0] != "payment.skey" {
		t.Errorf("signing keys = %v, want [payment.skey]", keys.calls)
	}
	if len(fl.submitted) != 1 {
		t.Errorf("submitted %d, want 1", len(fl.submitted))
	}
	if r.TxID != "deadbeef" || r.Kind != KindPayment || r.Policy != SenderPays {
		t.Errorf("receipt = %+v", r)
	}
	if !bytes.Equal(r.Signed, []byte("tx.signed")) {
		t.Errorf("receipt signed bytes = %q", r.Signed)
	}
	if r.SubmittedAt.IsZero() {
		t.Error("receipt has no submission time")
	}
	fl.scratchEmpty(t)
}

func TestSendPayment_InsufficientNeverBuilds(t *testing.T) {
	fl := newFakeLedger(t)
	fl.utxos[srcAddr] = makeUTxOs(srcAddr, 50*ada)
	asm, keys := newTestAssembler(fl)

	_, err := asm.SendPayment(context.Background(), PaymentRequest{
		Source: srcAddr, Destination: dstAddr, Amount: Lovelace(60 * ada), Policy: SenderPays,
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	var ife *InsufficientFundsError
	if !errors.As(err, &ife) {
		t.Fatalf("err is %T, want *InsufficientFundsError", err)
	}
	if ife.Have != 50*ada || ife.Need != 60*ada+200_000 {
		t.Errorf("have = %d need = %d", ife.Have, ife.Need)
	}
	if len(fl.built) != 0 || len(keys.calls) != 0 || len(fl.submitted) != 0 {
		t.Error("insufficient funds must not reach the ledger client")
	}
}

func TestSendPayment_FeeTipsSenderOver(t *testing.T) {
	fl := newFakeLedger(t)
	fl.utxos[srcAddr] = makeUTxOs(srcAddr, 100*ada)
	asm, _ := newTestAssembler(fl)

	_, err := asm.SendPayment(context.Background(), PaymentRequest{
		Source: srcAddr, Destination: dstAddr, Amount: Lovelace(100 * ada), Policy: SenderPays,
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if len(fl.built) != 0 {
		t.Error("nothing should be built")
	}
}

func TestSendPayment_EmptyWallet(t *testing.T) {
	fl := newFakeLedger(t)
	asm, _ := newTestAssembler(fl)

	_, err := asm.SendPayment(context.Background(), PaymentRequest{
		Source: srcAddr, Destination: dstAddr, Amount: Lovelace(ada),
	})
	if !errors.Is(err, ErrEmptyWallet) {
		t.Fatalf("err = %v, want ErrEmptyWallet", err)
	}
	if len(fl.feeRequests) != 0 || len(fl.built) != 0 {
		t.Error("empty wallet must fail before any fee or build call")
	}
}

func TestSendPayment_AllIsRecipientPays(t *testing.T) {
	fl := newFakeLedger(t)
	fl.utxos[srcAddr] = makeUTxOs(srcAddr, 3*ada, 2*ada, 1*ada)
	fl.fee = func(ledger.FeeRequest) uint64 { return 170_000 }
	asm, _ := newTestAssembler(fl)

	r, err := asm.SendPayment(context.Background(), PaymentRequest{
		Source: srcAddr, Destination: dstAddr, Amount: EntireBalance(), Policy: SenderPays,
	})
	if err != nil {
		t.Fatalf("SendPayment: %v", err)
	}
	if r.Policy != RecipientPays {
		t.Errorf("policy = %v, want recipient-pays", r.Policy)
	}
	body := fl.built[0]
	if len(body.Inputs) != 3 || len(body.Outputs) != 1 {
		t.Fatalf("shape = %d in / %d out, want 3/1", len(body.Inputs), len(body.Outputs))
	}
	if body.Outputs[0].Address != dstAddr || body.Outputs[0].Value != 6*ada-170_000 {
		t.Errorf("output = %+v, want %d to destination", body.Outputs[0], 6*ada-170_000)
	}
	if n := len(fl.feeRequests[0].Body.Outputs); n != 1 {
		t.Errorf("fee estimated for %d outputs, want 1", n)
	}
}

func TestSendPayment_RecipientPays(t *testing.T) {
	fl := newFakeLedger(t)
	fl.utxos[srcAddr] = makeUTxOs(srcAddr, 10*ada)
	asm, _ := newTestAssembler(fl)

	_, err := asm.SendPayment(context.Background(), PaymentRequest{
		Source: srcAddr, Destination: dstAddr, Amount: Lovelace(4 * ada), Policy: RecipientPays,
	})
	if err != nil {
		t.Fatalf("SendPayment: %v", err)
	}
	body := fl.built[0]
	if v, _ := outputValue(body.Outputs, dstAddr); v != 3_800_000 {
		t.Errorf("destination = %d, want 3800000", v)
	}
	if v, _ := outputValue(body.Outputs, srcAddr); v != 6*ada {
		t.Errorf("change = %d, want %d", v, 6*ada)
	}
}

func TestSendPayment_RecipientPaysExactSingleOutput(t *testing.T) {
	fl := newFakeLedger(t)
	fl.utxos[srcAddr] = makeUTxOs(srcAddr, 5*ada, 7*ada)
	asm, _ := newTestAssembler(fl)

	_, err := asm.SendPayment(context.Background(), PaymentRequest{
		Source: srcAddr, Destination: dstAddr, Amount: Lovelace(7 * ada), Policy: RecipientPays,
	})
	if err != nil {
		t.Fatalf("SendPayment: %v", err)
	}
	body := fl.built[0]
	if len(body.Inputs) != 1 || len(body.Outputs) != 1 {
		t.Fatalf("shape = %d in / %d out, want 1/1", len(body.Inputs), len(body.Outputs))
	}
	if body.Outputs[0].Value != 7*ada-200_000 {
		t.Errorf("destination = %d, want %d", body.Outputs[0].Value, 7*ada-200_000)
	}
}

func TestSendPayment_RecipientPaysAmountBelowFee(t *testing.T) {
	fl := newFakeLedger(t)
	fl.utxos[srcAddr] = makeUTxOs(srcAddr, 10*ada)
	asm, _ := newTestAssembler(fl)

	_, err := asm.SendPayment(context.Background(), PaymentRequest{
		Source: srcAddr, Destination: dstAddr, Amount: Lovelace(100_000), Policy: RecipientPays,
	})
	var ife *InsufficientFundsError
	if !errors.As(err, &ife) || !ife.FeeExceedsAmount {
		t.Fatalf("err = %v, want fee-exceeds-amount", err)
	}
	if len(fl.built) != 0 {
		t.Error("nothing should be built")
	}
}

func TestSendPayment_SelectionExtendedForFee(t *testing.T) {
	fl := newFakeLedger(t)
	fl.utxos[srcAddr] = makeUTxOs(srcAddr, 5*ada, 100*ada)
	asm, _ := newTestAssembler(fl)

	_, err := asm.SendPayment(context.Background(), PaymentRequest{
		Source: srcAddr, Destination: dstAddr, Amount: Lovelace(100 * ada), Policy: SenderPays,
	})
	if err != nil {
		t.Fatalf("SendPayment: %v", err)
	}

	if len(fl.feeRequests) != 2 {
		t.Fatalf("fee estimated %d times, want 2", len(fl.feeRequests))
	}
	first, second := fl.feeRequests[0].Body, fl.feeRequests[1].Body
	if len(first.Inputs) != 1 || len(first.Outputs) != 1 {
		t.Errorf("first estimate shape = %d/%d, want 1/1", len(first.Inputs), len(first.Outputs))
	}
	if len(second.Inputs) != 2 || len(second.Outputs) != 2 {
		t.Errorf("second estimate shape = %d/%d, want 2/2", len(second.Inputs), len(second.Outputs))
	}

	body := fl.built[0]
	if v, _ := outputValue(body.Outputs, srcAddr); v != 4_800_000 {
		t.Errorf("change = %d, want 4800000", v)
	}
}

func TestSendPayment_ZeroChangeDropsOutput(t *testing.T) {
	fl := newFakeLedger(t)
	fl.utxos[srcAddr] = makeUTxOs(srcAddr, 100*ada, 200_000)
	asm, _ := newTestAssembler(fl)

	r, err := asm.SendPayment(context.Background(), PaymentRequest{
		Source: srcAddr, Destination: dstAddr, Amount: Lovelace(100 * ada), Policy: SenderPays,
	})
	if err != nil {
		t.Fatalf("SendPayment: %v", err)
	}
	body := fl.built[0]
	if len(body.Inputs) != 2 || len(body.Outputs) != 1 {
		t.Fatalf("shape = %d in / %d out, want 2/1", len(body.Inputs), len(body.Outputs))
	}
	if err := r.Draft.CheckBalanced(); err != nil {
		t.Errorf("draft not balanced: %v", err)
	}
}

func TestSendPayment_DraftsAreBalanced(t *testing.T) {
	sets := [][]uint64{
		{150 * ada},
		{3 * ada, 2 * ada, 1 * ada},
		{40 * ada, 40 * ada, 40 * ada, 500_000},
		{1_234_567, 7_654_321, 99 * ada},
	}
	amounts := []Amount{Lovelace(ada), Lovelace(5 * ada), Lovelace(42 * ada), Lovelace(1_000_001), EntireBalance()}

	for _, values := range sets {
		for _, amount := range amounts {
			for _, policy := range []FeePolicy{SenderPays, RecipientPays} {
				fl := newFakeLedger(t)
				fl.utxos[srcAddr] = makeUTxOs(srcAddr, values...)
				fl.fee = func(req ledger.FeeRequest) uint64 {
					return 155_381 + uint64(len(req.Body.Inputs))*1_100 + uint64(len(req.Body.Outputs))*4_400
				}
				asm, _ := newTestAssembler(fl)

				r, err := asm.SendPayment(context.Background(), PaymentRequest{
					Source: srcAddr, Destination: dstAddr, Amount: amount, Policy: policy,
				})
				if errors.Is(err, ErrInsufficientFunds) {
					continue
				}
				if err != nil {
					t.Fatalf("%v %s %v: %v", values, amount, policy, err)
				}
				if err := r.Draft.CheckBalanced(); err != nil {
					t.Errorf("%v %s %v: %v", values, amount, policy, err)
				}
				body := fl.built[0]
				if got := totalValue(body.Inputs); got != r.Draft.OutputTotal()+body.Fee {
					t.Errorf("%v %s %v: inputs %d != outputs %d + fee %d",
						values, amount, policy, got, r.Draft.OutputTotal(), body.Fee)
				}
			}
		}
	}
}

func TestSendPayment_CustomTTLMargin(t *testing.T) {
	fl := newFakeLedger(t)
	fl.utxos[srcAddr] = makeUTxOs(srcAddr, 10*ada)
	asm := NewAssembler(fl, &passKeys{}, Config{TTLMargin: 250})

	if _, err := asm.SendPayment(context.Background(), PaymentRequest{
		Source: srcAddr, Destination: dstAddr, Amount: Lovelace(ada),
	}); err != nil {
		t.Fatalf("SendPayment: %v", err)
	}
	if got := fl.built[0].TTL; got != fl.tip.Slot+250 {
		t.Errorf("ttl = %d, want %d", got, fl.tip.Slot+250)
	}
}

func TestSendPayment_StepFailures(t *testing.T) {
	diag := &ledger.DiagnosticError{Op: "transaction submit", Output: "BadInputsUTxO"}
	tests := []struct {
		name     string
		setup    func(*fakeLedger)
		step     int
		signed   bool
		contains string
	}{
		{"build", func(f *fakeLedger) { f.buildErr = errors.New("bad tx-out") }, 1, false, "bad tx-out"},
		{"sign", func(f *fakeLedger) { f.signErr = errors.New("key mismatch") }, 2, false, "key mismatch"},
		{"submit", func(f *fakeLedger) { f.submitErr = diag }, 3, true, "BadInputsUTxO"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fl := newFakeLedger(t)
			fl.utxos[srcAddr] = makeUTxOs(srcAddr, 10*ada)
			tt.setup(fl)
			asm, _ := newTestAssembler(fl)
			rec := &memRecorder{}
			asm.SetRecorder(rec)

			_, err := asm.SendPayment(context.Background(), PaymentRequest{
				Source: srcAddr, Destination: dstAddr, Amount: Lovelace(ada),
			})
			var se *StepError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want *StepError", err)
			}
			if se.Step != tt.step {
				t.Errorf("step = %d, want %d", se.Step, tt.step)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q does not carry %q", err, tt.contains)
			}
			if (len(fl.signedWith) > 0) != tt.signed {
				t.Errorf("signed = %v, want %v", len(fl.signedWith) > 0, tt.signed)
			}
			if len(fl.submitted) != 0 || len(rec.receipts) != 0 {
				t.Error("failed run must not be submitted or recorded")
			}
			fl.scratchEmpty(t)
		})
	}
}

func TestSendPayment_SubmitDiagnosticUnwraps(t *testing.T) {
	fl := newFakeLedger(t)
	fl.utxos[srcAddr] = makeUTxOs(srcAddr, 10*ada)
	fl.submitErr = &ledger.DiagnosticError{Op: "transaction submit", Output: "ValueNotConserved"}
	asm, _ := newTestAssembler(fl)

	_, err := asm.SendPayment(context.Background(), PaymentRequest{
		Source: srcAddr, Destination: dstAddr, Amount: Lovelace(ada),
	})
	var diag *ledger.DiagnosticError
	if !errors.As(err, &diag) || diag.Output != "ValueNotConserved" {
		t.Fatalf("err = %v, want wrapped diagnostic", err)
	}
}

func TestSendPayment_Recorded(t *testing.T) {
	fl := newFakeLedger(t)
	fl.utxos[srcAddr] = makeUTxOs(srcAddr, 10*ada)
	asm, _ := newTestAssembler(fl)
	rec := &memRecorder{}
	asm.SetRecorder(rec)

	r, err := asm.SendPayment(context.Background(), PaymentRequest{
		Source: srcAddr, Destination: dstAddr, Amount: Lovelace(ada),
	})
	if err != nil {
		t.Fatalf("SendPayment: %v", err)
	}
	if len(rec.receipts) != 1 || rec.receipts[0] != r {
		t.Fatalf("recorded %d receipts, want the returned one", len(rec.receipts))
	}
}
