package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"portfolio-tracker/internal/config"
)

func init() {
	// sqlx only knows the cgo driver name "sqlite3".
	sqlx.BindDriver(config.DriverSQLite, sqlx.QUESTION)
}

// Open connects to the history store and verifies the connection.
// For sqlite, url is a file path; foreign keys are enabled on every connection
// so child rows follow their parent on delete.
func Open(ctx context.Context, driver, url string, maxOpenConns int) (*sqlx.DB, error) {
	dsn := url
	if driver == config.DriverSQLite {
		if err := ensureDir(url); err != nil {
			return nil, err
		}
		dsn = sqliteDSN(url)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns / 2)
	}
	return db, nil
}

// ensureDir creates the parent directory of a sqlite file path.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	return nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}
