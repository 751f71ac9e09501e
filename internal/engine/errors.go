package engine

import "codeberg.org/renedaq/hvmond/internal/errors"

const (
	// Configuration Errors
	ErrInvalidPollInterval   = errors.ErrorCode("engine_invalid_poll_interval")
	ErrInvalidCommitInterval = errors.ErrorCode("engine_invalid_commit_interval")

	// Cycle Errors
	ErrPollFailed   = errors.ErrDeviceComm
	ErrCommitFailed = errors.ErrCommitFailed
	ErrFinalFlush   = errors.ErrorCode("engine_final_flush_failed")
)
