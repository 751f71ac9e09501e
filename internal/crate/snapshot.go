package crate

import "time"

// Value is a normalized parameter reading: either an integer flag or a
// floating-point measurement, tagged with its kind.
type Value struct {
	kind Kind
	f    float64
	i    int64
}

// Float wraps a floating-point reading.
func Float(v float64) Value {
	return Value{kind: KindFloat, f: v}
}

// Int wraps an integer flag reading.
func Int(v int64) Value {
	return Value{kind: KindInt, i: v}
}

// Kind returns the value's kind tag.
func (v Value) Kind() Kind {
	return v.kind
}

// AsFloat returns the reading as float64. Integer values are widened.
func (v Value) AsFloat() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}

	return v.f
}

// AsInt returns the reading as int64. Float values are truncated.
func (v Value) AsInt() int64 {
	if v.kind == KindFloat {
		return int64(v.f)
	}

	return v.i
}

// ChannelSnapshot holds one channel's readings keyed by parameter name.
type ChannelSnapshot map[string]Value

// SlotSnapshot maps channel id to its snapshot within one slot.
type SlotSnapshot map[int]ChannelSnapshot

// Snapshot is the complete per-channel state of the crate captured at
// one instant. Immutable once constructed: the persistence buffer and
// any notified consumer share the same instance and must not write to
// it. Taken is truncated to whole seconds; faster polls alias to the
// same stored row, which is the intended storage granularity.
type Snapshot struct {
	Taken time.Time
	Slots map[int]SlotSnapshot
}

// NewSnapshot allocates an empty snapshot stamped with now, truncated
// to second resolution.
func NewSnapshot(now time.Time) *Snapshot {
	return &Snapshot{
		Taken: now.Truncate(time.Second),
		Slots: make(map[int]SlotSnapshot),
	}
}

// Channel returns the snapshot of one (slot, channel) pair.
func (s *Snapshot) Channel(slot, channel int) (ChannelSnapshot, bool) {
	slotSnap, ok := s.Slots[slot]
	if !ok {
		return nil, false
	}

	ch, ok := slotSnap[channel]

	return ch, ok
}

// Complete reports whether every channel of every slot in the topology
// carries every tracked parameter. A snapshot failing this check is
// partial and must not be buffered or delivered.
func (s *Snapshot) Complete(topo *Topology, params ParameterSet) bool {
	for _, slot := range topo.Slots() {
		count, _ := topo.Channels(slot)
		slotSnap, ok := s.Slots[slot]
		if !ok || len(slotSnap) != count {
			return false
		}

		for ch := 0; ch < count; ch++ {
			chSnap, ok := slotSnap[ch]
			if !ok {
				return false
			}
			for _, p := range params {
				if _, ok := chSnap[p.Name]; !ok {
					return false
				}
			}
		}
	}

	return true
}
