package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gocraft/dbr/v2"
	"github.com/gocraft/dbr/v2/dialect"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB wraps the sql.DB for connection management and exposes a dbr session
// whose dialect matches the driver.
type DB struct {
	conn   *sql.DB
	sess   *dbr.Session
	driver string
	logger *slog.Logger
}

// New opens and pings a database for driver ("sqlite" or "postgres").
func New(ctx context.Context, driver, dsn string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var d dbr.Dialect
	switch driver {
	case DriverSQLite:
		d = dialect.SQLite3
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
		d = dialect.PostgreSQL
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if driver == DriverSQLite {
		// sqlite has a single writer; one connection avoids SQLITE_BUSY between pooled conns
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	c := &dbr.Connection{DB: conn, Dialect: d, EventReceiver: &dbr.NullEventReceiver{}}
	logger.Info("database connected", slog.String("driver", driver))

	return &DB{conn: conn, sess: c.NewSession(nil), driver: driver, logger: logger}, nil
}

// sqliteDSN turns a plain path into a file: URI with the pragmas the store relies on.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// Close closes the DB connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Driver returns the driver name the DB was opened with.
func (db *DB) Driver() string {
	return db.driver
}

// Session returns the dbr session used by repositories.
func (db *DB) Session() *dbr.Session {
	return db.sess
}

// Exec executes a statement without placeholders, such as a migration script.
func (db *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if len(args) == 0 {
		return db.conn.ExecContext(ctx, query)
	}
	return db.sess.UpdateBySql(query, args...).ExecContext(ctx)
}

// Ping checks the connection is still usable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// GetConn returns the underlying sql.DB
func (db *DB) GetConn() *sql.DB {
	return db.conn
}

// ErrUnsupported is returned by operations only the SQLite driver offers.
var ErrUnsupported = errors.New("operation not supported for this driver")

// Backup writes a consistent copy of a SQLite database to dst using
// VACUUM INTO. dst must not exist yet.
func (db *DB) Backup(ctx context.Context, dst string) error {
	if db.driver != DriverSQLite {
		return fmt.Errorf("backup %s: %w", db.driver, ErrUnsupported)
	}
	if _, err := db.Exec(ctx, `VACUUM INTO ?`, dst); err != nil {
		return fmt.Errorf("vacuum into %s: %w", dst, err)
	}
	return nil
}

// SQLitePath extracts the file path from a plain path or file: URI DSN.
func SQLitePath(dsn string) string {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return p
}
