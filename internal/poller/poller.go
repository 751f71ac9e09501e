// Package poller performs slot-level bulk reads against the device
// gateway and assembles complete crate snapshots. Device round-trips
// per tick are bounded by #slots x #parameters, independent of how
// many channels each board carries.
package poller

import (
	"context"
	"strconv"
	"time"

	"codeberg.org/renedaq/hvmond/internal/crate"
	"codeberg.org/renedaq/hvmond/internal/errors"
	"codeberg.org/renedaq/hvmond/internal/gateway"
)

// BulkPoller reads every tracked parameter for every populated slot.
type BulkPoller struct {
	gw     gateway.Gateway
	topo   *crate.Topology
	params crate.ParameterSet
	now    func() time.Time
}

// New builds a poller over the given gateway, topology and parameter set.
func New(gw gateway.Gateway, topo *crate.Topology, params crate.ParameterSet) *BulkPoller {
	return &BulkPoller{
		gw:     gw,
		topo:   topo,
		params: params,
		now:    time.Now,
	}
}

// Poll captures one crate snapshot. Any gateway failure or uncoercible
// value fails the whole tick: a malformed reading points at a
// communication fault, not a single bad channel, so no partial
// snapshot ever escapes. Poll has no side effects; routing the
// snapshot is the caller's job.
func (p *BulkPoller) Poll(ctx context.Context) (*crate.Snapshot, error) {
	errFactory := errors.New()

	snap := crate.NewSnapshot(p.now())

	for _, slot := range p.topo.Slots() {
		index, _ := p.topo.ChannelIndex(slot)

		slotSnap := make(crate.SlotSnapshot, len(index))
		for _, ch := range index {
			slotSnap[ch] = make(crate.ChannelSnapshot, len(p.params))
		}

		for _, param := range p.params {
			values, err := p.gw.Read(ctx, slot, index, param)
			if err != nil {
				return nil, errFactory.Wrap(ErrBulkReadFailed, err)
			}

			if len(values) != len(index) {
				return nil, errFactory.WithData(ErrMisalignedResponse, struct {
					Slot      int
					Parameter string
					Got       int
					Want      int
				}{
					Slot:      slot,
					Parameter: param.Name,
					Got:       len(values),
					Want:      len(index),
				})
			}

			for i, raw := range values {
				value, err := coerce(param, raw)
				if err != nil {
					return nil, errFactory.WithData(ErrCoercionFailed, struct {
						Slot      int
						Channel   int
						Parameter string
						Raw       any
					}{
						Slot:      slot,
						Channel:   index[i],
						Parameter: param.Name,
						Raw:       raw,
					})
				}
				slotSnap[index[i]][param.Name] = value
			}
		}

		snap.Slots[slot] = slotSnap
	}

	return snap, nil
}

// coerce normalizes a raw gateway value at the boundary: measurements
// to float64, power flags to int64.
func coerce(param crate.Parameter, raw any) (crate.Value, error) {
	errFactory := errors.New()

	if param.Kind == crate.KindFloat {
		f, ok := toFloat(raw)
		if !ok {
			return crate.Value{}, errFactory.WithData(ErrCoercionFailed, raw)
		}

		return crate.Float(f), nil
	}

	i, ok := toInt(raw)
	if !ok {
		return crate.Value{}, errFactory.WithData(ErrCoercionFailed, raw)
	}

	return crate.Int(i), nil
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toInt(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}
