package cardanocli

import (
	"testing"

	"github.com/mondonet/guild-operators/internal/ledger"
)

const addr = "addr_test1vz3ppzmmzuz0nlsjeyrqjm4pvdxl3cyfe8x06eg6htj2gwgv02qjt"

func TestParseTip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want ledger.Tip
	}{
		{
			name: "current",
			in:   `{"block": 812345, "epoch": 420, "era": "Babbage", "hash": "ab12", "slot": 95000000, "syncProgress": "100.00"}`,
			want: ledger.Tip{Block: 812345, Slot: 95000000, Epoch: 420, Hash: "ab12"},
		},
		{
			name: "legacy",
			in:   `{"blockNo": 10, "headerHash": "ff00", "slotNo": 2000}`,
			want: ledger.Tip{Block: 10, Slot: 2000, Hash: "ff00"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tip, err := parseTip([]byte(tt.in))
			if err != nil {
				t.Fatalf("parseTip: %v", err)
			}
			if tip != tt.want {
				t.Errorf("tip = %+v, want %+v", tip, tt.want)
			}
		})
	}

	if _, err := parseTip([]byte(`{"epoch": 3}`)); err == nil {
		t.Error("expected error for tip without block and slot")
	}
}

func TestParseUTxOTable(t *testing.T) {
	out := `                           TxHash                                 TxIx        Amount
--------------------------------------------------------------------------------------
4e3a6e7fdcb0d0efa17bf79c13aed2b4cb9baf37fb1aa2e39553d5bd720c5c99     0        1000000 lovelace + TxOutDatumNone
9b5c2e1f0d8a7b6c5d4e3f2a1b0c9d8e7f6a5b4c3d2e1f0a9b8c7d6e5f4a3b2c     3        25500000 lovelace
`
	utxos, err := parseUTxOs(addr, []byte(out))
	if err != nil {
		t.Fatalf("parseUTxOs: %v", err)
	}
	if len(utxos) != 2 {
		t.Fatalf("got %d utxos, want 2", len(utxos))
	}

	want := []ledger.UTxO{
		{TxHash: "4e3a6e7fdcb0d0efa17bf79c13aed2b4cb9baf37fb1aa2e39553d5bd720c5c99", TxIx: 0, Address: addr, Value: 1000000},
		{TxHash: "9b5c2e1f0d8a7b6c5d4e3f2a1b0c9d8e7f6a5b4c3d2e1f0a9b8c7d6e5f4a3b2c", TxIx: 3, Address: addr, Value: 25500000},
	}
	for i := range want {
		if utxos[i] != want[i] {
			t.Errorf("utxo[%d] = %+v, want %+v", i, utxos[i], want[i])
		}
	}
}

func TestParseUTxOTable_Empty(t *testing.T) {
	out := `                           TxHash                                 TxIx        Amount
--------------------------------------------------------------------------------------
`
	utxos, err := parseUTxOs(addr, []byte(out))
	if err != nil {
		t.Fatalf("parseUTxOs: %v", err)
	}
	if len(utxos) != 0 {
		t.Errorf("got %d utxos, want 0", len(utxos))
	}
}

func TestParseUTxOTable_Malformed(t *testing.T) {
	for _, in := range []string{"abcd x 100 lovelace", "abcd 0 100 tokens"} {
		if _, err := parseUTxOs(addr, []byte(in)); err == nil {
			t.Errorf("parseUTxOs(%q): expected error", in)
		}
	}
}

func TestParseUTxOJSON(t *testing.T) {
	out := `{
  "ff00#1": {"address": "addr1", "value": {"lovelace": 2000000, "abc123": {"746f6b": 5}}},
  "aa11#0": {"address": "addr1", "value": {"lovelace": 7000000}}
}`
	utxos, err := parseUTxOs(addr, []byte(out))
	if err != nil {
		t.Fatalf("parseUTxOs: %v", err)
	}
	if len(utxos) != 2 {
		t.Fatalf("got %d utxos, want 2", len(utxos))
	}

	want := []ledger.UTxO{
		{TxHash: "aa11", TxIx: 0, Address: "addr1", Value: 7000000},
		{TxHash: "ff00", TxIx: 1, Address: "addr1", Value: 2000000},
	}
	for i := range want {
		if utxos[i] != want[i] {
			t.Errorf("utxo[%d] = %+v, want %+v", i, utxos[i], want[i])
		}
	}
}

func TestParseProtocolParams(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{`{"stakeAddressDeposit": 2000000, "txFeeFixed": 155381}`, 2000000},
		{`{"keyDeposit": 400000}`, 400000},
	}
	for _, tt := range tests {
		deposit, err := parseProtocolParams([]byte(tt.in))
		if err != nil {
			t.Fatalf("parseProtocolParams(%s): %v", tt.in, err)
		}
		if deposit != tt.want {
			t.Errorf("deposit = %d, want %d", deposit, tt.want)
		}
	}

	if _, err := parseProtocolParams([]byte(`{"txFeeFixed": 155381}`)); err == nil {
		t.Error("expected error without a deposit field")
	}
}

func TestParseMinFee(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{"176281 Lovelace\n", 176281},
		{`{"fee": 180000}`, 180000},
	}
	for _, tt := range tests {
		fee, err := parseMinFee([]byte(tt.in))
		if err != nil {
			t.Fatalf("parseMinFee(%q): %v", tt.in, err)
		}
		if fee != tt.want {
			t.Errorf("fee = %d, want %d", fee, tt.want)
		}
	}

	for _, in := range []string{"", "lots Lovelace"} {
		if _, err := parseMinFee([]byte(in)); err == nil {
			t.Errorf("parseMinFee(%q): expected error", in)
		}
	}
}

func TestParseTxID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"c0ffee\n", "c0ffee"},
		{`{"txhash": "beef"}`, "beef"},
	}
	for _, tt := range tests {
		id, err := parseTxID([]byte(tt.in))
		if err != nil {
			t.Fatalf("parseTxID(%q): %v", tt.in, err)
		}
		if id != tt.want {
			t.Errorf("id = %q, want %q", id, tt.want)
		}
	}

	if _, err := parseTxID(nil); err == nil {
		t.Error("expected error for empty output")
	}
}
