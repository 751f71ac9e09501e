package gateway

import "codeberg.org/renedaq/hvmond/internal/errors"

const (
	// Connection Errors
	ErrConnectFailed = errors.ErrorCode("gateway_connect_failed")
	ErrCloseFailed   = errors.ErrorCode("gateway_close_failed")

	// Read Errors
	ErrReadFailed       = errors.ErrorCode("gateway_read_failed")
	ErrShortResponse    = errors.ErrorCode("gateway_short_response")
	ErrUnknownParameter = errors.ErrorCode("gateway_unknown_parameter")
	ErrInvalidSlot      = errors.ErrorCode("gateway_invalid_slot")

	// Configuration Errors
	ErrInvalidAddress = errors.ErrorCode("gateway_invalid_address")
)
