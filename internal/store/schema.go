package store

import (
	"database/sql"

	"codeberg.org/renedaq/hvmond/internal/errors"
	"codeberg.org/renedaq/hvmond/internal/logger"
)

const (
	SchemaVersion = 1

	// SQL statements derived from schema
	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS hv_data (
	       timestamp  INTEGER NOT NULL,
	       slot       INTEGER NOT NULL,
	       channel    INTEGER NOT NULL,
	       power      INTEGER NOT NULL,
	       poweron    INTEGER NOT NULL,
	       powerdown  INTEGER NOT NULL,
	       vmon       REAL NOT NULL,
	       imon       REAL NOT NULL,
	       v0set      REAL NOT NULL,
	       i0set      REAL NOT NULL,
	       PRIMARY KEY (timestamp, slot, channel)
	   );`

	// OR IGNORE gives insert-if-absent semantics on the composite key,
	// so a retried batch never raises duplicate-key errors.
	insertRowSQL = `
    INSERT OR IGNORE INTO hv_data (
        timestamp, slot, channel,
        power, poweron, powerdown,
        vmon, imon, v0set, i0set
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// InitSchema creates a new database schema with the current version
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	log.Debug().Msg("Creating database...")

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	// Track transaction state
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				if !errors.Is(err, sql.ErrTxDone) {
					log.Debug().Err(err).Msg("Failed to rollback transaction")
				}
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			SQL   string
		}{
			Error: err.Error(),
			SQL:   createTablesSQL,
		})
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			Phase string
		}{
			Error: err.Error(),
			Phase: "record_version",
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Info().
		Int("version", SchemaVersion).
		Msg("Schema initialized successfully")

	return nil
}

// GetSchemaVersion returns the current schema version
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "get_version",
			Error: err.Error(),
		})
	}

	return version, nil
}

// TableExists checks if a table exists
func TableExists(db *sql.DB, tableName string) (bool, error) {
	errFactory := errors.New()
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}
	return exists, nil
}

// GetInsertRowSQL returns the SQL to insert one telemetry row
func GetInsertRowSQL() string {
	return insertRowSQL
}
