package commands

import (
	"database/sql"

	"github.com/teranos/dirjobs/am"
	"github.com/teranos/dirjobs/db"
	"github.com/teranos/dirjobs/errors"
	"github.com/teranos/dirjobs/logger"
)

// openDatabase opens and migrates the history database.
// If dbPath is empty, database.path from am config is used.
func openDatabase(cfg *am.Config, dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		dbPath = cfg.Database.Path
	}
	if dbPath == "" {
		dbPath = "dirjobs.db"
	}

	database, err := db.OpenWithMigrations(dbPath, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open history database at %s", dbPath)
	}
	return database, nil
}
