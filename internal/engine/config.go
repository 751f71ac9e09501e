package engine

import (
	"time"

	"codeberg.org/renedaq/hvmond/internal/errors"
)

const defaultShutdownTimeout = 5 * time.Second

type Config struct {
	PollInterval    time.Duration
	CommitInterval  time.Duration
	ShutdownTimeout time.Duration
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.PollInterval <= 0 {
		return errFactory.WithData(ErrInvalidPollInterval, c.PollInterval)
	}
	if c.CommitInterval <= 0 {
		return errFactory.WithData(ErrInvalidCommitInterval, c.CommitInterval)
	}

	return nil
}

func (c Config) shutdownTimeout() time.Duration {
	if c.ShutdownTimeout <= 0 {
		return defaultShutdownTimeout
	}

	return c.ShutdownTimeout
}
