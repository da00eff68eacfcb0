package migrations_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/msomdec/workville/internal/repository/sqlite/migrations"

	_ "modernc.org/sqlite"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	return db
}

func TestRun_CreatesSchema(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	if err := migrations.Run(ctx, db); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, table := range []string{"users", "work_sessions", "user_status", "profiles", "work_logs", "work_log_template"} {
		var n int
		err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&n)
		if err != nil {
			t.Fatalf("lookup %s: %v", table, err)
		}
		if n != 1 {
			t.Fatalf("expected table %s to exist", table)
		}
	}
}

func TestRun_Idempotent(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	if err := migrations.Run(ctx, db); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := migrations.Run(ctx, db); err != nil {
		t.Fatalf("second run (idempotent): %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count schema_migrations: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected 4 migration records, got %d", count)
	}
}

func TestPending(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	pending, err := migrations.Pending(ctx, db)
	if err != nil {
		t.Fatalf("Pending before run: %v", err)
	}
	if len(pending) != 5 {
		t.Fatalf("expected 5 pending migrations, got %v", pending)
	}

	if err := migrations.Run(ctx, db); err != nil {
		t.Fatalf("Run: %v", err)
	}

	pending, err = migrations.Pending(ctx, db)
	if err != nil {
		t.Fatalf("Pending after run: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending migrations, got %v", pending)
	}
}

func TestOneOpenSessionIndex(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()
	if err := migrations.Run(ctx, db); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := db.ExecContext(ctx,
		"INSERT INTO users (email, display_name, password_hash) VALUES ('a@example.com', 'A', 'x')",
	); err != nil {
		t.Fatalf("insert user: %v", err)
	}

	insert := "INSERT INTO work_sessions (user_id, date, check_in_time) VALUES (1, '2025-01-06', ?)"
	if _, err := db.ExecContext(ctx, insert, "2025-01-06T00:00:00.000000000Z"); err != nil {
		t.Fatalf("insert first open session: %v", err)
	}
	if _, err := db.ExecContext(ctx, insert, "2025-01-06T01:00:00.000000000Z"); err == nil {
		t.Fatal("expected second open session to violate the unique index")
	}
}
