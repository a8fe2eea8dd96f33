// Package journal keeps a local record of submitted transactions.
package journal

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/mondonet/guild-operators/internal/log"
	"github.com/mondonet/guild-operators/internal/storage"
	"github.com/mondonet/guild-operators/internal/wallet"
)

const (
	namespace = "journal/"
	txPrefix  = "tx/"
	idPrefix  = "id/"
	// Fixed-width so lexical key order is chronological.
	keyTime = "20060102T150405.000000000Z"
)

// ErrNotFound is returned by Find for an unrecorded transaction id.
var ErrNotFound = errors.New("journal: transaction not recorded")

// Entry is one recorded submission. Values are lovelace.
type Entry struct {
	Kind        string    `json:"kind"`
	TxID        string    `json:"txid"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Policy      string    `json:"policy"`
	Amount      uint64    `json:"amount"` // value delivered to the destination
	Fee         uint64    `json:"fee"`
	Deposit     uint64    `json:"deposit,omitempty"`
	TTL         uint64    `json:"ttl"`
	Inputs      []string  `json:"inputs"`
	Digest      string    `json:"signed_blake3,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Journal records receipts in a key-value store. It implements
// wallet.Recorder.
type Journal struct {
	db    storage.DB
	owned storage.DB // closed by Close when the journal opened it
}

// New creates a journal over db. The caller keeps ownership of db.
func New(db storage.DB) *Journal {
	return &Journal{db: storage.NewPrefixDB(db, []byte(namespace))}
}

// Open opens the on-disk journal in dir.
func Open(dir string) (*Journal, error) {
	db, err := storage.NewBadger(dir)
	if err != nil {
		return nil, err
	}
	j := New(db)
	j.owned = db
	return j, nil
}

// Close releases the underlying store if the journal opened it.
func (j *Journal) Close() error {
	if j.owned == nil {
		return nil
	}
	return j.owned.Close()
}

// Record stores a receipt. Recording a transaction id again replaces the
// earlier entry.
func (j *Journal) Record(r *wallet.Receipt) error {
	if r == nil || r.Draft == nil {
		return errors.New("journal: receipt without draft")
	}
	e := entryFromReceipt(r)
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}
	key := entryKey(e)
	if e.TxID != "" {
		if err := j.dropPrevious(e.TxID, key); err != nil {
			return err
		}
	}
	if err := j.db.Put(key, data); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	if e.TxID != "" {
		if err := j.db.Put(indexKey(e.TxID), key); err != nil {
			return fmt.Errorf("write journal index: %w", err)
		}
	}
	log.Journal.Debug().Str("txid", e.TxID).Str("kind", e.Kind).Msg("submission recorded")
	return nil
}

func (j *Journal) dropPrevious(txid string, key []byte) error {
	idx := indexKey(txid)
	ok, err := j.db.Has(idx)
	if err != nil || !ok {
		return err
	}
	prev, err := j.db.Get(idx)
	if err != nil {
		return fmt.Errorf("read journal index: %w", err)
	}
	if bytes.Equal(prev, key) {
		return nil
	}
	if err := j.db.Delete(prev); err != nil {
		return fmt.Errorf("drop journal entry: %w", err)
	}
	return nil
}

// Find returns the entry recorded for txid.
func (j *Journal) Find(txid string) (*Entry, error) {
	key, err := j.db.Get(indexKey(txid))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	data, err := j.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode journal entry %s: %w", key, err)
	}
	return &e, nil
}

// List returns every entry, oldest first.
func (j *Journal) List() ([]Entry, error) {
	var entries []Entry
	err := j.db.ForEach([]byte(txPrefix), func(key, value []byte) error {
		var e Entry
		if err := json.Unmarshal(value, &e); err != nil {
			return fmt.Errorf("decode journal entry %s: %w", key, err)
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Latest returns at most n of the newest entries, newest first. n <= 0
// returns every entry.
func (j *Journal) Latest(n int) ([]Entry, error) {
	all, err := j.List()
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = len(all)
	}
	out := make([]Entry, 0, min(n, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// Digest returns the hex BLAKE3-256 digest of a signed transaction.
func Digest(signed []byte) string {
	if len(signed) == 0 {
		return ""
	}
	sum := blake3.Sum256(signed)
	return hex.EncodeToString(sum[:])
}

func entryKey(e *Entry) []byte {
	return []byte(txPrefix + e.SubmittedAt.UTC().Format(keyTime) + "/" + e.TxID)
}

func indexKey(txid string) []byte {
	return []byte(idPrefix + txid)
}

func entryFromReceipt(r *wallet.Receipt) *Entry {
	d := r.Draft
	inputs := make([]string, len(d.Inputs))
	for i, in := range d.Inputs {
		inputs[i] = in.Ref()
	}
	var amount uint64
	if r.Kind == wallet.KindPayment {
		for _, out := range d.Outputs {
			if out.Address == r.Destination {
				amount += out.Value
			}
		}
	}
	submitted := r.SubmittedAt
	if submitted.IsZero() {
		submitted = time.Now().UTC()
	}
	return &Entry{
		Kind:        string(r.Kind),
		TxID:        r.TxID,
		Source:      r.Source,
		Destination: r.Destination,
		Policy:      r.Policy.String(),
		Amount:      amount,
		Fee:         d.Fee,
		Deposit:     d.Deposit,
		TTL:         d.TTL,
		Inputs:      inputs,
		Digest:      Digest(r.Signed),
		SubmittedAt: submitted,
	}
}
