package sqlite

import (
	"context"
	"path/filepath"

	"github.com/Lora-Technologies/LoraGuard/resources"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	migrate "github.com/rubenv/sql-migrate"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteClient struct {
	db *sqlx.DB
}

func NewSQLiteClient(ctx context.Context, dir, dbPath string) (*sqliteClient, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		// Concurrent writers queue on the file lock instead of failing
		// with SQLITE_BUSY.
		dsn = filepath.Join(dir, dbPath) + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	}
	dbx, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "cant open db")
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		dbx.SetMaxOpenConns(1)
	} else {
		dbx.SetMaxOpenConns(42)
	}
	if err := dbx.PingContext(ctx); err != nil {
		return nil, errors.Wrap(err, "cant ping db")
	}

	migrationsSource := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: resources.FS,
		Root:       "migrations",
	}
	if _, _, err := migrate.PlanMigration(dbx.DB, "sqlite3", migrationsSource, migrate.Up, 0); err != nil {
		return nil, errors.Wrap(err, "migrate plan failed")
	}

	n, err := migrate.Exec(dbx.DB, "sqlite3", migrationsSource, migrate.Up)
	if err != nil {
		return nil, errors.Wrap(err, "migrate up failed")
	}
	if n > 0 {
		log.Infof("applied %d migrations!", n)
	}

	return &sqliteClient{db: dbx}, nil
}

func (c *sqliteClient) Close() error {
	return c.db.Close()
}
