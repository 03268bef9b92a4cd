// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of the SQLite C code: no CGo, no C compiler,
// cross-compiles everywhere Go does.
//
// SCHEMA MIGRATIONS:
// The schema lives in migrations/*.sql, embedded into the binary and applied
// with goose on every New(). goose records applied versions in its own
// goose_db_version table, so re-running is a no-op.
//
// CONNECTIONS AND TRANSACTIONS:
// SQLite allows one writer at a time, so the pool is limited to a single
// connection. Every query issued inside WithinTx MUST go through the
// transactional Store handed to the callback, otherwise it would wait for
// the connection the transaction is holding.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/flashcards/internal/repository"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Repositories are written against it so the same code runs inside and
// outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a sql.DB connection pool and hands out repositories.
//
// A DB created by New talks to the pool directly. The DB passed to a
// WithinTx callback is bound to a *sql.Tx instead.
type DB struct {
	conn *sql.DB
	q    querier
	inTx bool
}

// compile-time check that *DB implements repository.Store
var _ repository.Store = (*DB)(nil)

// New opens the SQLite database at dbPath and applies pending migrations.
//
// dbPath examples:
//   - "data/flashcards.db" → file-based database (persistent)
//   - ":memory:"           → in-memory database (tests; lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection: SQLite serialises writers anyway, and an in-memory
	// database only exists inside the connection that created it.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if err := migrate(context.Background(), conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return &DB{conn: conn, q: conn}, nil
}

// dsn appends the connection pragmas to the path.
//
//   - foreign_keys(1): SQLite ships with FK enforcement OFF; cascades
//     (collection → cards, favorites) depend on it.
//   - busy_timeout(5000): wait up to 5s for a lock instead of failing.
//   - journal_mode(WAL): readers don't block the writer.
//   - _time_format=sqlite: store time.Time in a sortable, parseable layout.
func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep +
		"_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_time_format=sqlite"
}

// migrate applies every embedded migration that has not run yet.
func migrate(ctx context.Context, conn *sql.DB) error {
	fsys, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("opening embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, conn, fsys)
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) Users() repository.UserRepository { return &UserDB{q: db.q} }

func (db *DB) Collections() repository.CollectionRepository { return &CollectionDB{q: db.q} }

func (db *DB) Cards() repository.CardRepository { return &CardDB{q: db.q} }

func (db *DB) Favorites() repository.FavoriteRepository { return &FavoriteDB{q: db.q} }

func (db *DB) Tokens() repository.TokenBlacklist { return &TokenDB{q: db.q} }

// WithinTx begins a transaction, runs fn with a transactional Store, and
// commits on success or rolls back on error/panic. Panics are rethrown.
//
// Nested calls reuse the outer transaction.
func (db *DB) WithinTx(ctx context.Context, fn func(tx repository.Store) error) (err error) {
	if db.inTx {
		return fn(db)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("sqlite: committing transaction: %w", cerr)
		}
	}()

	return fn(&DB{conn: db.conn, q: tx, inTx: true})
}

// isConstraint reports whether err is the given SQLite extended constraint
// error, e.g. sqlite3.SQLITE_CONSTRAINT_UNIQUE.
func isConstraint(err error, code int) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == code
}

func isUniqueViolation(err error) bool {
	return isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE) ||
		isConstraint(err, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY)
}

func isForeignKeyViolation(err error) bool {
	return isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY)
}

// limitOffset converts ListOptions into SQLite LIMIT/OFFSET arguments.
// LIMIT -1 means "no limit" in SQLite.
func limitOffset(opts repository.ListOptions) (int, int) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
