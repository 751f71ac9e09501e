package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"codeberg.org/renedaq/hvmond/internal/errors"
	"codeberg.org/renedaq/hvmond/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

type repository struct {
	db  *sql.DB
	log logger.Logger
	mu  sync.Mutex
}

// Open opens (creating if needed) the telemetry database and validates
// its schema. The returned repository is safe for use from the commit
// worker and the shutdown path concurrently.
func Open(cfg Config, log logger.Logger) (Repository, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	// Open database with specific pragmas for better performance and safety
	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	// Validate if schema is current, with backup if needed
	if err := ValidateAndUpdateSchema(db, cfg.DBPath, log); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Msg("Telemetry store opened")

	return &repository{
		db:  db,
		log: log,
	}, nil
}

// InsertBatch writes the whole batch inside one transaction: one
// prepared statement, one exec per row, one commit. A failure anywhere
// rolls the transaction back so the store never holds part of a
// snapshot for a given timestamp.
func (r *repository) InsertBatch(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to begin transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	stmt, err := tx.PrepareContext(ctx, GetInsertRowSQL())
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to prepare statement")
		if err := tx.Rollback(); err != nil {
			r.log.Error().Err(err).Msg("Failed to roll back transaction")
		}
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx,
			row.Timestamp, row.Slot, row.Channel,
			row.Power, row.PowerOn, row.PowerDown,
			row.VMon, row.IMon, row.V0Set, row.I0Set,
		); err != nil {
			r.log.Error().Err(err).Msg("Failed to execute insert")
			if err := tx.Rollback(); err != nil {
				r.log.Error().Err(err).Msg("Failed to roll back transaction")
			}
			return errFactory.Wrap(ErrTransactionFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		r.log.Error().Err(err).Msg("Failed to commit transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	r.log.Debug().Int("rows", len(rows)).Msg("Committed telemetry batch")

	return nil
}

func (r *repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	errFactory := errors.New()

	// Checkpoint WAL and cleanup on close
	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errFactory.WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := r.db.Close(); err != nil {
		return errFactory.WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	return nil
}
