package gateway

import (
	"context"

	"codeberg.org/renedaq/hvmond/internal/crate"
)

// Gateway is the sole I/O boundary to the crate hardware. Read is a
// slot-level bulk read: one request returns the named parameter for
// every listed channel, aligned index-for-index with channels. Raw
// values are returned untyped; normalization happens at the poller
// boundary.
type Gateway interface {
	Read(ctx context.Context, slot int, channels []int, param crate.Parameter) ([]any, error)
	Close() error
}
