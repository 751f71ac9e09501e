package crate

import (
	"sort"

	"codeberg.org/renedaq/hvmond/internal/errors"
)

// Board describes the module occupying one crate slot.
type Board struct {
	Model    string
	Channels int
}

// SlotDef is one slot entry as supplied by configuration.
type SlotDef struct {
	Slot     int
	Model    string
	Channels int
}

// Topology is the static description of the crate: which slots are
// populated and how many channels each board exposes. Immutable after
// construction; channel identifiers are zero-based and contiguous.
type Topology struct {
	boards   map[int]Board
	slots    []int
	channels map[int][]int
}

// NewTopology validates the slot definitions and builds the registry.
// A malformed topology fails here, at startup, never at poll time.
func NewTopology(defs []SlotDef) (*Topology, error) {
	errFactory := errors.New()

	if len(defs) == 0 {
		return nil, errFactory.New(ErrEmptyTopology)
	}

	t := &Topology{
		boards:   make(map[int]Board, len(defs)),
		channels: make(map[int][]int, len(defs)),
	}

	for _, def := range defs {
		if def.Channels <= 0 {
			return nil, errFactory.WithData(ErrInvalidChannels, struct {
				Slot     int
				Channels int
			}{
				Slot:     def.Slot,
				Channels: def.Channels,
			})
		}

		if _, exists := t.boards[def.Slot]; exists {
			return nil, errFactory.WithData(ErrDuplicateSlot, def.Slot)
		}

		t.boards[def.Slot] = Board{
			Model:    def.Model,
			Channels: def.Channels,
		}

		// The [0, n) index list is built once and reused by every
		// bulk read against this slot.
		index := make([]int, def.Channels)
		for i := range index {
			index[i] = i
		}
		t.channels[def.Slot] = index

		t.slots = append(t.slots, def.Slot)
	}

	sort.Ints(t.slots)

	return t, nil
}

// Slots returns the populated slot identifiers in ascending order.
func (t *Topology) Slots() []int {
	slots := make([]int, len(t.slots))
	copy(slots, t.slots)

	return slots
}

// Board returns the board description for a slot.
func (t *Topology) Board(slot int) (Board, bool) {
	board, ok := t.boards[slot]
	return board, ok
}

// Channels returns the channel count of a slot.
func (t *Topology) Channels(slot int) (int, bool) {
	board, ok := t.boards[slot]
	return board.Channels, ok
}

// ChannelIndex returns the shared [0, channel count) index list for a
// slot. Callers must not mutate the returned slice.
func (t *Topology) ChannelIndex(slot int) ([]int, bool) {
	index, ok := t.channels[slot]
	return index, ok
}

// TotalChannels returns the channel count summed over all slots.
func (t *Topology) TotalChannels() int {
	total := 0
	for _, board := range t.boards {
		total += board.Channels
	}

	return total
}
