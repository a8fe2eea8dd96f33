// Package chainwait waits for the chain tip to advance.
package chainwait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mondonet/guild-operators/internal/ledger"
	"github.com/mondonet/guild-operators/internal/log"
)

// Default polling settings: one slot between polls, bounded by a minute.
const (
	DefaultInterval = time.Second
	DefaultMaxPolls = 60
)

// ErrTimeout is returned when no new block appears within the poll budget.
var ErrTimeout = errors.New("timed out waiting for a new block")

var errSameBlock = errors.New("tip has not advanced")

// Waiter blocks until the chain produces a block after the call started.
type Waiter interface {
	WaitForNewBlock(ctx context.Context) (ledger.Tip, error)
}

// Config bounds the polling loop.
type Config struct {
	Interval time.Duration
	MaxPolls uint64
}

// PollWaiter implements Waiter by polling the ledger tip at a fixed interval.
type PollWaiter struct {
	tips ledger.TipQuerier
	cfg  Config
}

// NewPollWaiter creates a waiter. Zero config fields take the defaults.
func NewPollWaiter(tips ledger.TipQuerier, cfg Config) *PollWaiter {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxPolls == 0 {
		cfg.MaxPolls = DefaultMaxPolls
	}
	return &PollWaiter{tips: tips, cfg: cfg}
}

// WaitForNewBlock records the current tip, then polls until the block number
// grows. Tip query failures end the wait immediately; cancellation returns
// ctx.Err().
func (w *PollWaiter) WaitForNewBlock(ctx context.Context) (ledger.Tip, error) {
	var start, latest *ledger.Tip
	poll := func() error {
		tip, err := w.tips.QueryTip(ctx)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("query tip: %w", err))
		}
		if start == nil {
			start = &tip
			return errSameBlock
		}
		if tip.Block > start.Block {
			latest = &tip
			return nil
		}
		return errSameBlock
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(w.cfg.Interval), w.cfg.MaxPolls),
		ctx,
	)
	err := backoff.RetryNotify(poll, b, func(_ error, next time.Duration) {
		if start != nil {
			log.Ledger.Debug().
				Uint64("block", start.Block).
				Dur("next", next).
				Msg("waiting for next block")
		}
	})
	switch {
	case err == nil:
		return *latest, nil
	case errors.Is(err, errSameBlock):
		return ledger.Tip{}, fmt.Errorf("%w after %d polls", ErrTimeout, w.cfg.MaxPolls)
	default:
		return ledger.Tip{}, err
	}
}
