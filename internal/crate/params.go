package crate

import "codeberg.org/renedaq/hvmond/internal/errors"

// Kind determines how raw device values for a parameter are normalized.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
)

// Parameter is one named quantity tracked per channel.
type Parameter struct {
	Name string
	Kind Kind
}

// Canonical board parameter names.
const (
	ParamPower     = "Pw"
	ParamPowerOn   = "POn"
	ParamPowerDown = "PDwn"
	ParamVMon      = "VMon"
	ParamIMon      = "IMon"
	ParamV0Set     = "V0Set"
	ParamI0Set     = "I0Set"
)

// registry maps every known parameter name to its kind. Tracking a new
// quantity is a registry and configuration change only; the poller is
// driven entirely by the configured ParameterSet.
var registry = map[string]Kind{
	ParamPower:     KindInt,
	ParamPowerOn:   KindInt,
	ParamPowerDown: KindInt,
	ParamVMon:      KindFloat,
	ParamIMon:      KindFloat,
	ParamV0Set:     KindFloat,
	ParamI0Set:     KindFloat,
}

// ParameterSet is an ordered set of tracked parameters.
type ParameterSet []Parameter

// DefaultParameterNames lists the canonical tracked parameters in wire order.
func DefaultParameterNames() []string {
	return []string{
		ParamPower, ParamPowerOn, ParamPowerDown,
		ParamVMon, ParamIMon, ParamV0Set, ParamI0Set,
	}
}

// NewParameterSet resolves the configured names against the registry,
// preserving order. Unknown names are a startup error.
func NewParameterSet(names []string) (ParameterSet, error) {
	errFactory := errors.New()

	if len(names) == 0 {
		return nil, errFactory.New(ErrEmptyParameters)
	}

	set := make(ParameterSet, 0, len(names))
	seen := make(map[string]bool, len(names))

	for _, name := range names {
		kind, ok := registry[name]
		if !ok {
			return nil, errFactory.WithData(ErrUnknownParameter, name)
		}
		if seen[name] {
			continue
		}
		seen[name] = true

		set = append(set, Parameter{Name: name, Kind: kind})
	}

	return set, nil
}

// Names returns the parameter names in set order.
func (s ParameterSet) Names() []string {
	names := make([]string, len(s))
	for i, p := range s {
		names[i] = p.Name
	}

	return names
}

// Contains reports whether the set tracks the named parameter.
func (s ParameterSet) Contains(name string) bool {
	for _, p := range s {
		if p.Name == name {
			return true
		}
	}

	return false
}
