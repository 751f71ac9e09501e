package poller

import "codeberg.org/renedaq/hvmond/internal/errors"

const (
	// Read Errors
	ErrBulkReadFailed = errors.ErrDeviceComm

	// Normalization Errors
	ErrCoercionFailed     = errors.ErrorCode("poller_value_coercion_failed")
	ErrMisalignedResponse = errors.ErrorCode("poller_misaligned_response")
)
