package engine

import (
	"context"
	"testing"
	"time"

	"codeberg.org/renedaq/hvmond/internal/crate"
	"codeberg.org/renedaq/hvmond/internal/logger"
	"codeberg.org/renedaq/hvmond/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.Init(false, false, true)
}

// stubPoller returns a fresh complete snapshot per call, or fails.
type stubPoller struct {
	topo   *crate.Topology
	params crate.ParameterSet
	calls  int
	err    error
}

func (p *stubPoller) Poll(context.Context) (*crate.Snapshot, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}

	snap := crate.NewSnapshot(time.Date(2026, 8, 24, 12, 0, p.calls, 0, time.UTC))
	for _, slot := range p.topo.Slots() {
		count, _ := p.topo.Channels(slot)
		slotSnap := make(crate.SlotSnapshot, count)
		for ch := 0; ch < count; ch++ {
			chSnap := make(crate.ChannelSnapshot, len(p.params))
			for _, param := range p.params {
				if param.Kind == crate.KindFloat {
					chSnap[param.Name] = crate.Float(1500)
				} else {
					chSnap[param.Name] = crate.Int(1)
				}
			}
			slotSnap[ch] = chSnap
		}
		snap.Slots[slot] = slotSnap
	}

	return snap, nil
}

// stubRepo records batches; failures can be armed per call with an
// optional hook that runs mid-commit.
type stubRepo struct {
	batches  [][]store.Row
	failures int
	onInsert func()
}

func (r *stubRepo) InsertBatch(_ context.Context, rows []store.Row) error {
	if r.onInsert != nil {
		r.onInsert()
	}
	if r.failures > 0 {
		r.failures--
		return context.DeadlineExceeded
	}

	r.batches = append(r.batches, rows)

	return nil
}

func (r *stubRepo) Close() error { return nil }

func (r *stubRepo) totalRows() int {
	total := 0
	for _, batch := range r.batches {
		total += len(batch)
	}

	return total
}

func testFixture(t *testing.T, channels int, paramNames []string) (*stubPoller, *stubRepo, *Engine) {
	t.Helper()

	topo, err := crate.NewTopology([]crate.SlotDef{
		{Slot: 1, Model: "A7030P", Channels: channels},
	})
	require.NoError(t, err)

	params, err := crate.NewParameterSet(paramNames)
	require.NoError(t, err)

	p := &stubPoller{topo: topo, params: params}
	repo := &stubRepo{}

	eng, err := New(Config{
		PollInterval:   time.Second,
		CommitInterval: 10 * time.Second,
	}, p, repo, logger.Default())
	require.NoError(t, err)

	return p, repo, eng
}

func TestNewRejectsBadIntervals(t *testing.T) {
	_, err := New(Config{PollInterval: 0, CommitInterval: time.Second}, nil, nil, logger.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine_invalid_poll_interval")

	_, err = New(Config{PollInterval: time.Second, CommitInterval: -1}, nil, nil, logger.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine_invalid_commit_interval")
}

func TestPollTickBuffersAndNotifies(t *testing.T) {
	_, _, eng := testFixture(t, 4, crate.DefaultParameterNames())

	snapshots, cancel := eng.Snapshots(4)
	defer cancel()

	eng.pollOnce(context.Background())

	assert.Equal(t, 1, eng.Buffered())

	select {
	case snap := <-snapshots:
		assert.Len(t, snap.Slots[1], 4)
	default:
		t.Fatal("expected a snapshot notification")
	}
}

func TestPollTickFailureProducesNothing(t *testing.T) {
	p, _, eng := testFixture(t, 4, crate.DefaultParameterNames())
	p.err = context.DeadlineExceeded

	snapshots, cancelSnaps := eng.Snapshots(4)
	defer cancelSnaps()
	events, cancelEvents := eng.Events(4)
	defer cancelEvents()

	eng.pollOnce(context.Background())

	assert.Equal(t, 0, eng.Buffered(), "failed tick must not buffer")
	assert.Empty(t, snapshots, "failed tick must not notify consumers")

	select {
	case ev := <-events:
		assert.Equal(t, DeviceCommunication, ev.Category)
		assert.NotEmpty(t, ev.Message)
		assert.False(t, ev.Time.IsZero())
	default:
		t.Fatal("expected a device-communication event")
	}
}

func TestCommitDrainsBufferToStore(t *testing.T) {
	// 1 slot x 4 channels, 3 polls, one commit: 12 rows, empty buffer.
	_, repo, eng := testFixture(t, 4, []string{crate.ParamPower, crate.ParamVMon})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		eng.pollOnce(ctx)
	}
	require.Equal(t, 3, eng.Buffered())

	require.NoError(t, eng.commitOnce(ctx))

	assert.Equal(t, 0, eng.Buffered())
	require.Len(t, repo.batches, 1, "whole buffer in a single batch")
	assert.Equal(t, 12, repo.totalRows())
}

func TestCommitEmptyBufferSkipsStore(t *testing.T) {
	_, repo, eng := testFixture(t, 4, crate.DefaultParameterNames())

	require.NoError(t, eng.commitOnce(context.Background()))
	assert.Empty(t, repo.batches)
}

func TestCommitFailureRequeuesInOrder(t *testing.T) {
	_, repo, eng := testFixture(t, 2, crate.DefaultParameterNames())

	ctx := context.Background()
	eng.pollOnce(ctx)
	eng.pollOnce(ctx)

	// The failing commit races with a fresh poll: the requeued batch
	// must land ahead of the entry appended since the drain began.
	repo.failures = 1
	repo.onInsert = func() { eng.pollOnce(ctx) }

	events, cancelEvents := eng.Events(4)
	defer cancelEvents()

	require.Error(t, eng.commitOnce(ctx))
	assert.Equal(t, 3, eng.Buffered())

	select {
	case ev := <-events:
		assert.Equal(t, PersistenceCommit, ev.Category)
	default:
		t.Fatal("expected a persistence-commit event")
	}

	// Retry succeeds and preserves original capture order.
	repo.onInsert = nil
	require.NoError(t, eng.commitOnce(ctx))
	assert.Equal(t, 0, eng.Buffered())

	require.Len(t, repo.batches, 1)
	rows := repo.batches[0]
	require.Len(t, rows, 6)
	assert.LessOrEqual(t, rows[0].Timestamp, rows[2].Timestamp)
	assert.LessOrEqual(t, rows[2].Timestamp, rows[4].Timestamp)
}

func TestCommitTickSkippedWhileInFlight(t *testing.T) {
	_, repo, eng := testFixture(t, 1, crate.DefaultParameterNames())

	ctx := context.Background()
	eng.pollOnce(ctx)

	// A commit tick arriving while another is running must be skipped.
	repo.onInsert = func() {
		require.NoError(t, eng.commitOnce(ctx))
	}

	require.NoError(t, eng.commitOnce(ctx))
	assert.Len(t, repo.batches, 1, "nested tick skipped, only one batch written")
}

func TestFlattenUsesSecondResolutionTimestamps(t *testing.T) {
	_, repo, eng := testFixture(t, 1, crate.DefaultParameterNames())

	ctx := context.Background()
	eng.pollOnce(ctx)
	require.NoError(t, eng.commitOnce(ctx))

	require.Len(t, repo.batches, 1)
	row := repo.batches[0][0]
	assert.Equal(t, int64(1), row.Power)
	assert.InDelta(t, 1500.0, row.VMon, 1e-9)
	assert.Equal(t, 1, row.Slot)
	assert.Equal(t, 0, row.Channel)
}

func TestRunShutdownFlushesBuffer(t *testing.T) {
	topo, err := crate.NewTopology([]crate.SlotDef{
		{Slot: 1, Model: "A7030P", Channels: 4},
	})
	require.NoError(t, err)
	params, err := crate.NewParameterSet(crate.DefaultParameterNames())
	require.NoError(t, err)

	p := &stubPoller{topo: topo, params: params}
	repo := &stubRepo{}

	// Commit interval far beyond the test runtime: every snapshot must
	// reach the store via the final shutdown flush alone.
	eng, err := New(Config{
		PollInterval:    5 * time.Millisecond,
		CommitInterval:  time.Hour,
		ShutdownTimeout: time.Second,
	}, p, repo, logger.Default())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	time.Sleep(60 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not shut down in time")
	}

	assert.Equal(t, 0, eng.Buffered(), "final flush drains the buffer")
	assert.Positive(t, repo.totalRows(), "polled snapshots were persisted")
}

func TestRunShutdownReportsFailedFlush(t *testing.T) {
	topo, err := crate.NewTopology([]crate.SlotDef{
		{Slot: 1, Model: "A7030P", Channels: 1},
	})
	require.NoError(t, err)
	params, err := crate.NewParameterSet(crate.DefaultParameterNames())
	require.NoError(t, err)

	p := &stubPoller{topo: topo, params: params}
	repo := &stubRepo{failures: 1 << 20}

	eng, err := New(Config{
		PollInterval:    5 * time.Millisecond,
		CommitInterval:  time.Hour,
		ShutdownTimeout: 50 * time.Millisecond,
	}, p, repo, logger.Default())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err, "unreachable store is reported, not waited out")
		assert.Contains(t, err.Error(), "engine_final_flush_failed")
	case <-time.After(2 * time.Second):
		t.Fatal("engine hung on failed final flush")
	}

	assert.Positive(t, eng.Buffered(), "unflushed entries remain buffered at exit")
}
