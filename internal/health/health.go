// Package health derives a discrete severity band from a channel's
// monitored-vs-setpoint voltage deviation. Bands are always recomputed
// at consumption time and never persisted, so threshold changes do not
// require migrating historical data.
package health

import (
	"math"

	"codeberg.org/renedaq/hvmond/internal/crate"
)

// Band is the severity classification of a powered channel.
type Band int

const (
	Nominal Band = iota
	Elevated
	High
	Critical
)

// Deviation thresholds on |VMon - V0Set|, in volts.
const (
	nominalMaxDelta  = 10.0
	elevatedMaxDelta = 30.0
	highMaxDelta     = 50.0
)

func (b Band) String() string {
	switch b {
	case Nominal:
		return "nominal"
	case Elevated:
		return "elevated"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Classify maps the monitored/setpoint voltage pair to a severity band.
// Pure and total; imon plays no role in severity.
func Classify(vmon, v0set float64) Band {
	delta := math.Abs(vmon - v0set)

	switch {
	case delta <= nominalMaxDelta:
		return Nominal
	case delta <= elevatedMaxDelta:
		return Elevated
	case delta <= highMaxDelta:
		return High
	default:
		return Critical
	}
}

// Polarity is the sign of the monitored current, used by presentation
// layers for text contrast only.
type Polarity int

const (
	NonNegative Polarity = iota
	Negative
)

func (p Polarity) String() string {
	if p == Negative {
		return "negative"
	}

	return "non-negative"
}

// PolarityOf returns the presentation polarity of a monitored current.
func PolarityOf(imon float64) Polarity {
	if imon < 0 {
		return Negative
	}

	return NonNegative
}

// State is a channel's displayable condition: powered off, or powered
// with a severity band.
type State struct {
	PoweredOff bool
	Band       Band
	Polarity   Polarity
}

// Evaluate applies the power-state gate on top of Classify: channels
// reporting Pw == 0 bypass voltage classification entirely. This is
// presentation policy layered over the pure classifier, matching what
// any dashboard consumer needs.
func Evaluate(ch crate.ChannelSnapshot) State {
	imon := ch[crate.ParamIMon].AsFloat()

	if ch[crate.ParamPower].AsInt() == 0 {
		return State{PoweredOff: true, Polarity: PolarityOf(imon)}
	}

	return State{
		Band:     Classify(ch[crate.ParamVMon].AsFloat(), ch[crate.ParamV0Set].AsFloat()),
		Polarity: PolarityOf(imon),
	}
}
