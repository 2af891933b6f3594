package sqlite

import (
	"context"
	"database/sql"
	"embed"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Storage owns the SQLite connection shared by the user and session
// repositories. Use ":memory:" as the path for tests.
type Storage struct {
	db *sql.DB
}

// New opens the database, applies the pragmas, and runs pending migrations.
func New(ctx context.Context, dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "[sqlite.New] sql.Open")
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "[sqlite.New] ping")
	}

	// WAL mode allows concurrent readers but only one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "[sqlite.New] pragma")
		}
	}

	storage := &Storage{db: db}
	if err := storage.runMigrations(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "[sqlite.New] migrations")
	}
	return storage, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Users returns the user repository backed by this database.
func (s *Storage) Users() *UserRepo {
	return &UserRepo{db: s.db}
}

// Sessions returns the session repository backed by this database.
func (s *Storage) Sessions() *SessionRepo {
	return &SessionRepo{db: s.db}
}

func (s *Storage) runMigrations() error {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return errors.Wrap(err, "goose.SetDialect")
	}
	goose.SetBaseFS(embedMigrations)
	if err := goose.Up(s.db, "migrations"); err != nil {
		return errors.Wrap(err, "goose.Up")
	}
	return nil
}
