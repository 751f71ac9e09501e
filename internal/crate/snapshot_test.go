package crate_test

import (
	"testing"
	"time"

	"codeberg.org/renedaq/hvmond/internal/crate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueAccessors(t *testing.T) {
	f := crate.Float(1499.5)
	assert.Equal(t, crate.KindFloat, f.Kind())
	assert.InDelta(t, 1499.5, f.AsFloat(), 1e-9)
	assert.Equal(t, int64(1499), f.AsInt())

	i := crate.Int(1)
	assert.Equal(t, crate.KindInt, i.Kind())
	assert.Equal(t, int64(1), i.AsInt())
	assert.InDelta(t, 1.0, i.AsFloat(), 1e-9)
}

func TestNewSnapshotTruncatesToSeconds(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 3, 712_000_000, time.UTC)
	snap := crate.NewSnapshot(now)
	assert.Equal(t, time.Date(2026, 8, 24, 12, 0, 3, 0, time.UTC), snap.Taken)
}

func TestSnapshotChannelLookup(t *testing.T) {
	snap := crate.NewSnapshot(time.Now())
	snap.Slots[1] = crate.SlotSnapshot{
		0: crate.ChannelSnapshot{crate.ParamVMon: crate.Float(1500)},
	}

	ch, ok := snap.Channel(1, 0)
	require.True(t, ok)
	assert.InDelta(t, 1500.0, ch[crate.ParamVMon].AsFloat(), 1e-9)

	_, ok = snap.Channel(1, 5)
	assert.False(t, ok)
	_, ok = snap.Channel(9, 0)
	assert.False(t, ok)
}

func TestSnapshotComplete(t *testing.T) {
	topo, err := crate.NewTopology([]crate.SlotDef{
		{Slot: 1, Model: "A7030P", Channels: 2},
	})
	require.NoError(t, err)

	params, err := crate.NewParameterSet([]string{crate.ParamPower, crate.ParamVMon})
	require.NoError(t, err)

	snap := crate.NewSnapshot(time.Now())
	snap.Slots[1] = crate.SlotSnapshot{
		0: crate.ChannelSnapshot{
			crate.ParamPower: crate.Int(1),
			crate.ParamVMon:  crate.Float(1500),
		},
		1: crate.ChannelSnapshot{
			crate.ParamPower: crate.Int(0),
			crate.ParamVMon:  crate.Float(0),
		},
	}

	assert.True(t, snap.Complete(topo, params))

	// Dropping one parameter from one channel makes the snapshot partial.
	delete(snap.Slots[1][1], crate.ParamVMon)
	assert.False(t, snap.Complete(topo, params))

	// So does a missing channel.
	snap.Slots[1][1] = crate.ChannelSnapshot{
		crate.ParamPower: crate.Int(0),
		crate.ParamVMon:  crate.Float(0),
	}
	delete(snap.Slots[1], 0)
	assert.False(t, snap.Complete(topo, params))

	// And a missing slot.
	delete(snap.Slots, 1)
	assert.False(t, snap.Complete(topo, params))
}
