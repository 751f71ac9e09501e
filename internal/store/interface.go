package store

import "context"

// Row is one flattened per-channel record. The composite primary key
// (timestamp, slot, channel) makes resubmission after an ambiguous
// failure idempotent.
type Row struct {
	Timestamp int64 // unix seconds
	Slot      int
	Channel   int
	Power     int64
	PowerOn   int64
	PowerDown int64
	VMon      float64
	IMon      float64
	V0Set     float64
	I0Set     float64
}

// Repository is the durable sink for crate telemetry.
type Repository interface {
	// InsertBatch writes all rows in a single transaction with a
	// single commit. Either every row is durably applied (rows whose
	// key already exists are ignored) or none are.
	InsertBatch(ctx context.Context, rows []Row) error
	Close() error
}
