package poller_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/renedaq/hvmond/internal/crate"
	"codeberg.org/renedaq/hvmond/internal/poller"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway serves canned per-parameter values and counts bulk reads.
type fakeGateway struct {
	calls int
	// values returned per parameter name; nil falls back to zeroes
	values map[string][]any
	err    error
	// failOn, when set, fails only reads of that parameter
	failOn string
}

func (g *fakeGateway) Read(_ context.Context, _ int, channels []int, param crate.Parameter) ([]any, error) {
	g.calls++

	if g.err != nil && (g.failOn == "" || g.failOn == param.Name) {
		return nil, g.err
	}

	if vals, ok := g.values[param.Name]; ok {
		return vals, nil
	}

	out := make([]any, len(channels))
	for i := range out {
		if param.Kind == crate.KindFloat {
			out[i] = 0.0
		} else {
			out[i] = int64(0)
		}
	}

	return out, nil
}

func (g *fakeGateway) Close() error { return nil }

func fixture(t *testing.T, slots []crate.SlotDef, names []string) (*crate.Topology, crate.ParameterSet) {
	t.Helper()

	topo, err := crate.NewTopology(slots)
	require.NoError(t, err)

	params, err := crate.NewParameterSet(names)
	require.NoError(t, err)

	return topo, params
}

func TestPollBoundsGatewayCalls(t *testing.T) {
	// Channel counts vary wildly; the call count must not.
	topo, params := fixture(t, []crate.SlotDef{
		{Slot: 1, Model: "A7030P", Channels: 48},
		{Slot: 4, Model: "A7435SN", Channels: 24},
		{Slot: 8, Model: "A7435SN", Channels: 24},
	}, crate.DefaultParameterNames())

	gw := &fakeGateway{}
	p := poller.New(gw, topo, params)

	snap, err := p.Poll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3*7, gw.calls, "one bulk read per (slot, parameter)")
	assert.True(t, snap.Complete(topo, params))
}

func TestPollPopulatesSnapshot(t *testing.T) {
	topo, params := fixture(t, []crate.SlotDef{
		{Slot: 1, Model: "A7030P", Channels: 2},
	}, []string{crate.ParamPower, crate.ParamVMon})

	gw := &fakeGateway{values: map[string][]any{
		crate.ParamPower: {int64(1), int64(0)},
		crate.ParamVMon:  {1499.5, 0.0},
	}}
	p := poller.New(gw, topo, params)

	snap, err := p.Poll(context.Background())
	require.NoError(t, err)

	ch0, ok := snap.Channel(1, 0)
	require.True(t, ok)
	assert.Equal(t, int64(1), ch0[crate.ParamPower].AsInt())
	assert.InDelta(t, 1499.5, ch0[crate.ParamVMon].AsFloat(), 1e-9)

	ch1, ok := snap.Channel(1, 1)
	require.True(t, ok)
	assert.Equal(t, int64(0), ch1[crate.ParamPower].AsInt())
}

func TestPollSnapshotTimestampSecondResolution(t *testing.T) {
	topo, params := fixture(t, []crate.SlotDef{
		{Slot: 1, Model: "A7030P", Channels: 1},
	}, []string{crate.ParamPower})

	p := poller.New(&fakeGateway{}, topo, params)

	snap, err := p.Poll(context.Background())
	require.NoError(t, err)

	assert.Zero(t, snap.Taken.Nanosecond())
	assert.WithinDuration(t, time.Now(), snap.Taken, 2*time.Second)
}

func TestPollGatewayErrorFailsTick(t *testing.T) {
	topo, params := fixture(t, []crate.SlotDef{
		{Slot: 1, Model: "A7030P", Channels: 4},
	}, crate.DefaultParameterNames())

	gw := &fakeGateway{err: context.DeadlineExceeded}
	p := poller.New(gw, topo, params)

	snap, err := p.Poll(context.Background())
	require.Error(t, err)
	assert.Nil(t, snap, "no partial snapshot on gateway failure")
	assert.Contains(t, err.Error(), "Device communication failed")
}

func TestPollLateParameterErrorFailsTick(t *testing.T) {
	// The failure hits the last parameter; earlier successful reads
	// must still not yield a snapshot.
	topo, params := fixture(t, []crate.SlotDef{
		{Slot: 1, Model: "A7030P", Channels: 4},
	}, crate.DefaultParameterNames())

	gw := &fakeGateway{err: context.DeadlineExceeded, failOn: crate.ParamI0Set}
	p := poller.New(gw, topo, params)

	snap, err := p.Poll(context.Background())
	require.Error(t, err)
	assert.Nil(t, snap)
}

func TestPollCoercionFailureFailsTick(t *testing.T) {
	topo, params := fixture(t, []crate.SlotDef{
		{Slot: 1, Model: "A7030P", Channels: 2},
	}, []string{crate.ParamVMon})

	gw := &fakeGateway{values: map[string][]any{
		crate.ParamVMon: {1500.0, "garbled"},
	}}
	p := poller.New(gw, topo, params)

	snap, err := p.Poll(context.Background())
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.Contains(t, err.Error(), "poller_value_coercion_failed")
}

func TestPollNumericStringsCoerce(t *testing.T) {
	topo, params := fixture(t, []crate.SlotDef{
		{Slot: 1, Model: "A7030P", Channels: 1},
	}, []string{crate.ParamPower, crate.ParamVMon})

	gw := &fakeGateway{values: map[string][]any{
		crate.ParamPower: {"1"},
		crate.ParamVMon:  {"1480.25"},
	}}
	p := poller.New(gw, topo, params)

	snap, err := p.Poll(context.Background())
	require.NoError(t, err)

	ch, ok := snap.Channel(1, 0)
	require.True(t, ok)
	assert.Equal(t, int64(1), ch[crate.ParamPower].AsInt())
	assert.InDelta(t, 1480.25, ch[crate.ParamVMon].AsFloat(), 1e-9)
}

func TestPollShortResponseFailsTick(t *testing.T) {
	topo, params := fixture(t, []crate.SlotDef{
		{Slot: 1, Model: "A7030P", Channels: 4},
	}, []string{crate.ParamVMon})

	gw := &fakeGateway{values: map[string][]any{
		crate.ParamVMon: {1500.0, 1500.0},
	}}
	p := poller.New(gw, topo, params)

	snap, err := p.Poll(context.Background())
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.Contains(t, err.Error(), "poller_misaligned_response")
}
