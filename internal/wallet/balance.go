package wallet

import (
	"context"
	"fmt"
	"sort"

	"github.com/mondonet/guild-operators/internal/ledger"
)

// UTxOQuerier fetches the unspent outputs at an address.
type UTxOQuerier interface {
	QueryUTxOs(ctx context.Context, address string) ([]ledger.UTxO, error)
}

// Snapshot is a point-in-time view of an address's UTxOs, sorted by
// descending value. Total is the sum of every UTxO value.
type Snapshot struct {
	Address string
	UTxOs   []ledger.UTxO
	Total   uint64
}

// NewSnapshot sorts utxos by descending value (stable, so ties keep query
// order) and totals them.
func NewSnapshot(address string, utxos []ledger.UTxO) *Snapshot {
	sorted := make([]ledger.UTxO, len(utxos))
	copy(sorted, utxos)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value > sorted[j].Value
	})
	return &Snapshot{
		Address: address,
		UTxOs:   sorted,
		Total:   totalValue(sorted),
	}
}

// Empty reports whether the snapshot holds no UTxOs.
func (s *Snapshot) Empty() bool { return len(s.UTxOs) == 0 }

// Count returns the number of UTxOs.
func (s *Snapshot) Count() int { return len(s.UTxOs) }

// Top returns at most n of the highest-value UTxOs.
func (s *Snapshot) Top(n int) []ledger.UTxO {
	if n < 0 || n >= len(s.UTxOs) {
		return s.UTxOs
	}
	return s.UTxOs[:n]
}

// Aggregator computes balance snapshots.
type Aggregator struct {
	client UTxOQuerier
}

// NewAggregator creates an aggregator over the given UTxO source.
func NewAggregator(client UTxOQuerier) *Aggregator {
	return &Aggregator{client: client}
}

// GetBalance queries address and returns a fresh snapshot. An address
// without UTxOs yields an empty snapshot, not an error.
func (a *Aggregator) GetBalance(ctx context.Context, address string) (*Snapshot, error) {
	utxos, err := a.client.QueryUTxOs(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("query utxos for %s: %w", address, err)
	}
	return NewSnapshot(address, utxos), nil
}

func totalValue(utxos []ledger.UTxO) uint64 {
	var total uint64
	for _, u := range utxos {
		total += u.Value
	}
	return total
}
