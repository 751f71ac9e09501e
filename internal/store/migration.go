package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"codeberg.org/renedaq/hvmond/internal/errors"
	"codeberg.org/renedaq/hvmond/internal/logger"
)

func backupDatabase(db *sql.DB, dbPath string, version int, log logger.Logger) (string, error) {
	errFactory := errors.New()

	backupDir := filepath.Join(filepath.Dir(dbPath), "backups")
	if err := os.MkdirAll(backupDir, defaultDirPerm); err != nil {
		return "", errFactory.WithData(ErrSchemaMigrationFailed, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_backup_dir",
			Path:  backupDir,
			Error: err.Error(),
		})
	}

	timestamp := time.Now().UTC().Format("20060102T150405Z")
	backupPath := filepath.Join(backupDir,
		fmt.Sprintf("hv_v%d_%s.db", version, timestamp))

	// VACUUM INTO requires no active transaction
	_, err := db.Exec(fmt.Sprintf("VACUUM INTO '%s'", backupPath))
	if err != nil {
		return "", errFactory.WithData(ErrSchemaMigrationFailed, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_backup",
			Path:  backupPath,
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", backupPath).
		Int("version", version).
		Msg("Database backup created")

	return backupPath, nil
}

// ValidateAndUpdateSchema checks the schema version and recreates it if
// needed. An existing schema with a stale version is backed up before
// being dropped and recreated.
func ValidateAndUpdateSchema(db *sql.DB, dbPath string, log logger.Logger) error {
	errFactory := errors.New()

	version, err := GetSchemaVersion(db)
	if err != nil {
		return errFactory.Wrap(ErrSchemaValidationFailed, err)
	}

	log.Debug().
		Int("version", version).
		Bool("init_db", version == 0).
		Msg("Current schema version")

	if version == 0 || version != SchemaVersion {
		if version != 0 {
			if _, err := backupDatabase(db, dbPath, version, log); err != nil {
				return err
			}
		}

		if err := dropTables(db, log); err != nil {
			return err
		}
		return InitSchema(db, log)
	}

	return nil
}

func dropTables(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaMigrationFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				if !errors.Is(err, sql.ErrTxDone) {
					log.Debug().Err(err).Msg("Failed to rollback drop tables")
				}
			}
		}
	}()

	tables := []string{"hv_data", "schema_versions"}
	for _, table := range tables {
		if _, err := tx.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return errFactory.WithData(ErrSchemaMigrationFailed, struct {
				Phase string
				Table string
				Error string
			}{
				Phase: "drop_table",
				Table: table,
				Error: err.Error(),
			})
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.WithData(ErrSchemaMigrationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "commit_changes",
			Error: err.Error(),
		})
	}
	committed = true

	return nil
}
