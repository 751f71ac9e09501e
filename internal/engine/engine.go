// Package engine reconciles the two timing domains of crate telemetry:
// fast polling into an in-memory buffer, and slower all-or-nothing
// commits of that buffer to durable storage.
package engine

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/renedaq/hvmond/internal/crate"
	"codeberg.org/renedaq/hvmond/internal/errors"
	"codeberg.org/renedaq/hvmond/internal/logger"
	"codeberg.org/renedaq/hvmond/internal/store"
)

type Engine struct {
	cfg    Config
	poller Poller
	repo   store.Repository
	buffer *Buffer
	log    logger.Logger

	snapshots *Feed[*crate.Snapshot]
	events    *Feed[Event]

	pollBusy   atomic.Bool
	commitBusy atomic.Bool
}

// New validates the configuration and assembles the engine.
func New(cfg Config, p Poller, repo store.Repository, log logger.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		cfg:       cfg,
		poller:    p,
		repo:      repo,
		buffer:    NewBuffer(),
		log:       log,
		snapshots: NewFeed[*crate.Snapshot](),
		events:    NewFeed[Event](),
	}, nil
}

// Snapshots subscribes to completed crate snapshots. Subscribers must
// treat received snapshots as immutable.
func (e *Engine) Snapshots(depth int) (<-chan *crate.Snapshot, func()) {
	return e.snapshots.Subscribe(depth)
}

// Events subscribes to structured runtime errors.
func (e *Engine) Events(depth int) (<-chan Event, func()) {
	return e.events.Subscribe(depth)
}

// Buffered returns the number of snapshots awaiting commit.
func (e *Engine) Buffered() int {
	return e.buffer.Len()
}

// Run drives the poll and commit timers until ctx is cancelled, then
// stops both, waits for in-flight work, and attempts one synchronous
// final flush under a bounded timeout. The flush failing is reported,
// never waited out.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info().
		Dur("poll_interval", e.cfg.PollInterval).
		Dur("commit_interval", e.cfg.CommitInterval).
		Msg("Telemetry engine started")

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()

		ticker := time.NewTicker(e.cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.pollOnce(ctx)
			}
		}
	}()

	go func() {
		defer wg.Done()

		ticker := time.NewTicker(e.cfg.CommitInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.commitOnce(ctx)
			}
		}
	}()

	wg.Wait()

	defer e.snapshots.Close()
	defer e.events.Close()

	// Final best-effort flush of whatever is still buffered.
	flushCtx, cancel := context.WithTimeout(context.Background(), e.cfg.shutdownTimeout())
	defer cancel()

	if err := e.commitOnce(flushCtx); err != nil {
		e.log.Error().Err(err).Int("buffered", e.buffer.Len()).Msg("Final flush failed")
		return errors.New().Wrap(ErrFinalFlush, err)
	}

	e.log.Info().Msg("Telemetry engine stopped")

	return nil
}

// pollOnce runs a single poll tick. A tick that finds the previous
// poll still in flight is skipped, not queued.
func (e *Engine) pollOnce(ctx context.Context) {
	if !e.pollBusy.CompareAndSwap(false, true) {
		e.log.Warn().Msg("Previous poll still running, skipping tick")
		return
	}
	defer e.pollBusy.Store(false)

	snap, err := e.poller.Poll(ctx)
	if err != nil {
		e.log.Error().Err(err).Msg("Poll tick failed")
		e.events.Publish(Event{
			Category: DeviceCommunication,
			Message:  err.Error(),
			Time:     time.Now(),
		})
		return
	}

	// The buffer owns its reference; subscribers get the same
	// immutable snapshot.
	e.buffer.Append(snap)
	e.snapshots.Publish(snap)

	e.log.Debug().
		Time("taken", snap.Taken).
		Int("buffered", e.buffer.Len()).
		Msg("Snapshot captured")
}

// commitOnce drains the buffer and writes everything drained in one
// transaction. On failure the drained entries go back to the front of
// the buffer so the next tick retries them; the idempotent insert
// makes that safe even after an ambiguous failure. At most one commit
// is ever in flight.
func (e *Engine) commitOnce(ctx context.Context) error {
	if !e.commitBusy.CompareAndSwap(false, true) {
		e.log.Warn().Msg("Previous commit still running, skipping tick")
		return nil
	}
	defer e.commitBusy.Store(false)

	entries := e.buffer.Drain()
	if len(entries) == 0 {
		return nil
	}

	rows := flatten(entries)

	if err := e.repo.InsertBatch(ctx, rows); err != nil {
		e.buffer.Requeue(entries)
		e.log.Error().
			Err(err).
			Int("snapshots", len(entries)).
			Msg("Commit failed, batch requeued")
		e.events.Publish(Event{
			Category: PersistenceCommit,
			Message:  err.Error(),
			Time:     time.Now(),
		})
		return errors.New().Wrap(ErrCommitFailed, err)
	}

	e.log.Info().
		Int("snapshots", len(entries)).
		Int("rows", len(rows)).
		Msg("Committed buffered snapshots")

	return nil
}

// flatten turns drained entries into per-channel rows, one per
// (timestamp, slot, channel), in stable order.
func flatten(entries []Entry) []store.Row {
	var rows []store.Row

	for _, entry := range entries {
		ts := entry.Taken.Unix()

		slots := make([]int, 0, len(entry.Snapshot.Slots))
		for slot := range entry.Snapshot.Slots {
			slots = append(slots, slot)
		}
		sort.Ints(slots)

		for _, slot := range slots {
			slotSnap := entry.Snapshot.Slots[slot]

			channels := make([]int, 0, len(slotSnap))
			for ch := range slotSnap {
				channels = append(channels, ch)
			}
			sort.Ints(channels)

			for _, ch := range channels {
				chSnap := slotSnap[ch]
				rows = append(rows, store.Row{
					Timestamp: ts,
					Slot:      slot,
					Channel:   ch,
					Power:     chSnap[crate.ParamPower].AsInt(),
					PowerOn:   chSnap[crate.ParamPowerOn].AsInt(),
					PowerDown: chSnap[crate.ParamPowerDown].AsInt(),
					VMon:      chSnap[crate.ParamVMon].AsFloat(),
					IMon:      chSnap[crate.ParamIMon].AsFloat(),
					V0Set:     chSnap[crate.ParamV0Set].AsFloat(),
					I0Set:     chSnap[crate.ParamI0Set].AsFloat(),
				})
			}
		}
	}

	return rows
}
