package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver
	"github.com/jinzhu/gorm"
	"github.com/rs/zerolog"
	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	_ "modernc.org/sqlite"                               // Local SQLite driver
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 10
	connMaxLifetime = 30 * time.Minute
	sqliteBusyMS    = 5000
)

// Store is the persistence layer for users and links.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open connects to databaseURL. The driver is chosen from the scheme:
// postgres:// and postgresql:// use pgx, libsql://, wss:// and https:// use
// the Turso client, anything else is treated as a local SQLite path.
func Open(databaseURL string, log zerolog.Logger, debug bool) (*Store, error) {
	driver, dialect, dsn := driverFor(databaseURL)

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == "sqlite" {
		// An in-memory database lives and dies with its connection, and a
		// file database only takes one writer anyway.
		sqlDB.SetMaxOpenConns(1)
		if _, err := sqlDB.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", sqliteBusyMS)); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
	} else {
		sqlDB.SetMaxOpenConns(maxOpenConns)
		sqlDB.SetMaxIdleConns(maxIdleConns)
		sqlDB.SetConnMaxLifetime(connMaxLifetime)
	}

	gdb, err := gorm.Open(dialect, sqlDB)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	gdb.SetLogger(gormLogger{log: log})
	gdb.LogMode(debug)

	log.Info().Str("driver", driver).Msg("database connected")
	return &Store{db: gdb, log: log}, nil
}

func driverFor(databaseURL string) (driver, dialect, dsn string) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return "pgx", "postgres", databaseURL
	case strings.HasPrefix(databaseURL, "libsql://"),
		strings.HasPrefix(databaseURL, "wss://"),
		strings.HasPrefix(databaseURL, "https://"):
		return "libsql", "sqlite3", databaseURL
	default:
		return "sqlite", "sqlite3", strings.TrimPrefix(databaseURL, "sqlite://")
	}
}

// Migrate creates or updates the schema.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&User{}, &Link{}).Error; err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// Codes of retired links may be handed out again, so uniqueness only
	// covers active rows.
	const activeKeywordIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_links_active_keyword
		ON links (keyword) WHERE retired = false`
	if err := s.db.Exec(activeKeywordIndex).Error; err != nil {
		return fmt.Errorf("create keyword index: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.DB().PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
