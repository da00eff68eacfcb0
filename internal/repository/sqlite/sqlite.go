package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/msomdec/workville/internal/domain"
	"github.com/msomdec/workville/internal/repository/sqlite/migrations"

	_ "modernc.org/sqlite"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps the SQLite connection pool and hands out repositories bound to it.
type DB struct {
	SqlDB *sql.DB
}

var (
	_ domain.Database   = (*DB)(nil)
	_ domain.UnitOfWork = (*DB)(nil)
)

// New opens a SQLite database at the given path and configures it for use.
// It enables WAL mode, foreign keys and a busy timeout.
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection serializes writers; WAL keeps readers cheap.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(context.Background(), p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{SqlDB: db}, nil
}

// Migrate applies all pending schema migrations.
func (d *DB) Migrate(ctx context.Context) error {
	return migrations.Run(ctx, d.SqlDB)
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	return d.SqlDB.Close()
}

func (d *DB) Users() domain.UserRepository { return &userRepo{db: d.SqlDB} }
func (d *DB) Sessions() domain.WorkSessionRepository { return &workSessionRepo{db: d.SqlDB} }
func (d *DB) Statuses() domain.StatusRepository { return &statusRepo{db: d.SqlDB} }
func (d *DB) Profiles() domain.ProfileRepository { return &profileRepo{db: d.SqlDB} }
func (d *DB) WorkLogs() domain.WorkLogRepository { return &workLogRepo{db: d.SqlDB} }
func (d *DB) WorkLogTemplate() domain.WorkLogTemplateRepository {
	return &workLogTemplateRepo{db: d.SqlDB}
}

// Repositories returns the non-transactional repository set.
func (d *DB) Repositories() domain.Repositories {
	return domain.Repositories{
		Sessions: d.Sessions(),
		Statuses: d.Statuses(),
		Profiles: d.Profiles(),
	}
}

// WithinTx runs fn in a transaction. The transaction commits when fn returns
// nil and rolls back otherwise.
func (d *DB) WithinTx(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	tx, err := d.SqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	repos := domain.Repositories{
		Sessions: &workSessionRepo{db: tx},
		Statuses: &statusRepo{db: tx},
		Profiles: &profileRepo{db: tx},
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// timeLayout is fixed width so stored instants sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Rows written by SQLite defaults use CURRENT_TIMESTAMP.
		if t2, err2 := time.Parse(time.DateTime, s); err2 == nil {
			return t2.UTC(), nil
		}
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// isUniqueConstraintError checks if the error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
