package cardanocli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mondonet/guild-operators/internal/ledger"
)

// tipJSON covers both the current and the legacy `query tip` layouts.
type tipJSON struct {
	Block      *uint64 `json:"block"`
	Slot       *uint64 `json:"slot"`
	Epoch      uint64  `json:"epoch"`
	Hash       string  `json:"hash"`
	BlockNo    *uint64 `json:"blockNo"`
	SlotNo     *uint64 `json:"slotNo"`
	HeaderHash string  `json:"headerHash"`
}

func parseTip(out []byte) (ledger.Tip, error) {
	var raw tipJSON
	if err := json.Unmarshal(out, &raw); err != nil {
		return ledger.Tip{}, fmt.Errorf("decode tip: %w", err)
	}

	tip := ledger.Tip{Epoch: raw.Epoch, Hash: raw.Hash}
	switch {
	case raw.Block != nil && raw.Slot != nil:
		tip.Block, tip.Slot = *raw.Block, *raw.Slot
	case raw.BlockNo != nil && raw.SlotNo != nil:
		tip.Block, tip.Slot = *raw.BlockNo, *raw.SlotNo
		tip.Hash = raw.HeaderHash
	default:
		return ledger.Tip{}, fmt.Errorf("decode tip: missing block or slot")
	}
	return tip, nil
}

// parseUTxOs accepts the JSON map emitted by recent cli versions as well as
// the legacy text table:
//
//	                           TxHash                                 TxIx        Amount
//	--------------------------------------------------------------------------------------
//	4e3a6e7fdcb0d0efa17bf79c13aed2b4cb9baf37fb1aa2e39553d5bd720c5c99     0        1000000 lovelace + TxOutDatumNone
func parseUTxOs(address string, out []byte) ([]ledger.UTxO, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return parseUTxOJSON(address, trimmed)
	}
	return parseUTxOTable(address, trimmed)
}

func parseUTxOTable(address string, out []byte) ([]ledger.UTxO, error) {
	var utxos []ledger.UTxO
	scanner := bufio.NewScanner(bytes.NewReader(out))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "-") {
			continue
		}
		fields := strings.Fields(line)
		if fields[0] == "TxHash" {
			continue
		}
		if len(fields) < 3 {
			return nil, fmt.Errorf("utxo line %d: expected at least 3 columns, got %d", lineNum, len(fields))
		}
		if len(fields) > 3 && !strings.EqualFold(fields[3], "lovelace") {
			return nil, fmt.Errorf("utxo line %d: unexpected unit %q", lineNum, fields[3])
		}

		ix, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("utxo line %d: invalid index: %w", lineNum, err)
		}
		value, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("utxo line %d: invalid amount: %w", lineNum, err)
		}
		utxos = append(utxos, ledger.UTxO{
			TxHash:  fields[0],
			TxIx:    uint32(ix),
			Address: address,
			Value:   value,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read utxo table: %w", err)
	}
	return utxos, nil
}

type utxoJSON struct {
	Address string                     `json:"address"`
	Value   map[string]json.RawMessage `json:"value"`
}

func parseUTxOJSON(address string, out []byte) ([]ledger.UTxO, error) {
	var raw map[string]utxoJSON
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("decode utxo json: %w", err)
	}

	utxos := make([]ledger.UTxO, 0, len(raw))
	for ref, entry := range raw {
		hash, ixStr, ok := strings.Cut(ref, "#")
		if !ok {
			return nil, fmt.Errorf("utxo %q: malformed reference", ref)
		}
		ix, err := strconv.ParseUint(ixStr, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("utxo %q: invalid index: %w", ref, err)
		}
		// Native assets are carried under policy-id keys; only lovelace counts.
		var value uint64
		if lv, ok := entry.Value["lovelace"]; ok {
			if err := json.Unmarshal(lv, &value); err != nil {
				return nil, fmt.Errorf("utxo %q: invalid lovelace: %w", ref, err)
			}
		}
		addr := entry.Address
		if addr == "" {
			addr = address
		}
		utxos = append(utxos, ledger.UTxO{TxHash: hash, TxIx: uint32(ix), Address: addr, Value: value})
	}

	// Map order is random; keep query results reproducible.
	sort.Slice(utxos, func(i, j int) bool {
		if utxos[i].TxHash != utxos[j].TxHash {
			return utxos[i].TxHash < utxos[j].TxHash
		}
		return utxos[i].TxIx < utxos[j].TxIx
	})
	return utxos, nil
}

type protocolParamsJSON struct {
	StakeAddressDeposit *uint64 `json:"stakeAddressDeposit"`
	KeyDeposit          *uint64 `json:"keyDeposit"`
}

func parseProtocolParams(data []byte) (uint64, error) {
	var raw protocolParamsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, fmt.Errorf("decode protocol parameters: %w", err)
	}
	switch {
	case raw.StakeAddressDeposit != nil:
		return *raw.StakeAddressDeposit, nil
	case raw.KeyDeposit != nil:
		return *raw.KeyDeposit, nil
	}
	return 0, fmt.Errorf("protocol parameters: no key deposit field")
}

// parseMinFee reads "176281 Lovelace" (optionally followed by more text) or
// {"fee": 176281}.
func parseMinFee(out []byte) (uint64, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var raw struct {
			Fee *uint64 `json:"fee"`
		}
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return 0, fmt.Errorf("decode fee: %w", err)
		}
		if raw.Fee == nil {
			return 0, fmt.Errorf("decode fee: missing fee field")
		}
		return *raw.Fee, nil
	}

	fields := strings.Fields(string(trimmed))
	if len(fields) == 0 {
		return 0, fmt.Errorf("decode fee: empty output")
	}
	fee, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode fee %q: %w", fields[0], err)
	}
	return fee, nil
}

// parseTxID reads a bare hex id or {"txhash": "..."}.
func parseTxID(out []byte) (string, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var raw struct {
			TxHash string `json:"txhash"`
		}
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return "", fmt.Errorf("decode txid: %w", err)
		}
		trimmed = []byte(raw.TxHash)
	}
	if len(trimmed) == 0 {
		return "", fmt.Errorf("decode txid: empty output")
	}
	return string(trimmed), nil
}
