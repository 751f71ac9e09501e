package engine

import (
	"context"
	"time"

	"codeberg.org/renedaq/hvmond/internal/crate"
)

// Poller captures one complete crate snapshot per call.
type Poller interface {
	Poll(ctx context.Context) (*crate.Snapshot, error)
}

// Category classifies a runtime error event for subscribers.
type Category string

const (
	DeviceCommunication Category = "device_communication"
	PersistenceCommit   Category = "persistence_commit"
)

// Event is a structured runtime error pushed to error-feed subscribers.
type Event struct {
	Category Category
	Message  string
	Time     time.Time
}
