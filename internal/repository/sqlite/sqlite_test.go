package sqlite_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/msomdec/workville/internal/domain"
	"github.com/msomdec/workville/internal/repository/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, db *sqlite.DB, email string) *domain.User {
	t.Helper()
	user := &domain.User{Email: email, DisplayName: email, PasswordHash: "hash"}
	if err := db.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return user
}

func TestNew(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file was not created")
	}

	var fkEnabled int
	if err := db.SqlDB.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Fatalf("check foreign_keys: %v", err)
	}
	if fkEnabled != 1 {
		t.Fatalf("expected foreign_keys=1, got %d", fkEnabled)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate (idempotent): %v", err)
	}

	var count int
	if err := db.SqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count schema_migrations: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected 4 migration records, got %d", count)
	}
}

func TestWithinTx_CommitsOnSuccess(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "commit@example.com")
	ctx := context.Background()

	err := db.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		return repos.Statuses.Upsert(ctx, &domain.StatusRecord{
			UserID: user.ID, Status: domain.StatusWorking, LastUpdated: testTime(9, 0),
		})
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}

	rec, err := db.Statuses().Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != domain.StatusWorking {
		t.Fatalf("expected working, got %s", rec.Status)
	}
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "rollback@example.com")
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		session := &domain.WorkSession{UserID: user.ID, Date: "2025-01-06", CheckInTime: testTime(9, 0)}
		if err := repos.Sessions.Create(ctx, session); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	_, err = db.Sessions().GetOpenByUser(ctx, user.ID)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected session insert to be rolled back, got %v", err)
	}
}
