package crate

import "codeberg.org/renedaq/hvmond/internal/errors"

const (
	// Topology Errors
	ErrEmptyTopology   = errors.ErrorCode("crate_empty_topology")
	ErrDuplicateSlot   = errors.ErrorCode("crate_duplicate_slot")
	ErrInvalidChannels = errors.ErrorCode("crate_invalid_channel_count")
	ErrUnknownSlot     = errors.ErrorCode("crate_unknown_slot")

	// Parameter Errors
	ErrEmptyParameters  = errors.ErrorCode("crate_empty_parameter_set")
	ErrUnknownParameter = errors.ErrorCode("crate_unknown_parameter")

	// Snapshot Errors
	ErrPartialSnapshot = errors.ErrorCode("crate_partial_snapshot")
)
