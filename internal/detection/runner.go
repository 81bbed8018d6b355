package detection

import (
	"context"
	"time"

	"whalewatch/internal/chain/evm"
)

// DefaultPollInterval paces the block poll loop.
const DefaultPollInterval = 5 * time.Second

// RunStream consumes WebSocket feeds: new-head notifications drive
// block processing and pending hashes are screened through the batch
// processor. Returns when the context is cancelled.
func (e *Engine) RunStream(ctx context.Context, ws *evm.WSClient) error {
	heads, err := ws.SubscribeNewHeads(ctx)
	if err != nil {
		return err
	}
	pending, err := ws.SubscribePendingTxs(ctx)
	if err != nil {
		return err
	}
	e.cfg.Logger.Printf("streaming heads and pending txs")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case head, ok := <-heads:
			if !ok {
				return nil
			}
			e.handleHead(ctx, head.Number)
		case hash, ok := <-pending:
			if !ok {
				return nil
			}
			e.batch.Submit(func() error {
				e.ProcessPendingHash(ctx, hash)
				return nil
			})
		}
	}
}

func (e *Engine) handleHead(ctx context.Context, number int64) {
	if !e.brk.Allow() {
		return
	}
	block, err := e.cfg.Client.GetBlock(ctx, number)
	if err != nil {
		e.noteRPCError(err)
		return
	}
	e.brk.RecordSuccess()
	if block == nil {
		return
	}
	e.OnBlock(ctx, block)
}

// RunPoll advances through blocks by polling the chain head. Blocks the
// provider reports as unavailable are skipped permanently; on Solana
// that is normal for skipped slots.
func (e *Engine) RunPoll(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last int64
	e.cfg.Logger.Printf("polling every %s", interval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if !e.brk.Allow() {
			continue
		}
		head, err := e.cfg.Client.BlockNumber(ctx)
		if err != nil {
			e.noteRPCError(err)
			continue
		}
		e.brk.RecordSuccess()

		if last == 0 {
			// First observation: start at the head, do not backfill
			last = head
			continue
		}

		for n := last + 1; n <= head; n++ {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !e.brk.Allow() {
				break
			}
			block, err := e.cfg.Client.GetBlock(ctx, n)
			if err != nil {
				e.noteRPCError(err)
				break
			}
			e.brk.RecordSuccess()
			last = n
			if block == nil {
				continue
			}
			e.OnBlock(ctx, block)
		}
	}
}
