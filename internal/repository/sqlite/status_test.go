package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/msomdec/workville/internal/domain"
)

func TestStatusRepository_UpsertAndGet(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "status@example.com")
	repo := db.Statuses()
	ctx := context.Background()

	if _, err := repo.Get(ctx, user.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before first upsert, got %v", err)
	}

	if err := repo.Upsert(ctx, &domain.StatusRecord{UserID: user.ID, Status: domain.StatusWorking, LastUpdated: testTime(9, 0)}); err != nil {
		t.Fatalf("Upsert insert: %v", err)
	}
	if err := repo.Upsert(ctx, &domain.StatusRecord{UserID: user.ID, Status: domain.StatusBreak, LastUpdated: testTime(12, 0)}); err != nil {
		t.Fatalf("Upsert update: %v", err)
	}

	rec, err := repo.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != domain.StatusBreak {
		t.Fatalf("expected break, got %s", rec.Status)
	}
	if !rec.LastUpdated.Equal(testTime(12, 0)) {
		t.Fatalf("expected last_updated 12:00, got %v", rec.LastUpdated)
	}

	var rows int
	if err := db.SqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM user_status").Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected exactly one status row, got %d", rows)
	}
}

func TestStatusRepository_Upsert_InvalidStatus(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "invalid@example.com")

	err := db.Statuses().Upsert(context.Background(), &domain.StatusRecord{UserID: user.ID, Status: "sleeping", LastUpdated: testTime(9, 0)})
	if !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestStatusRepository_ListMembers(t *testing.T) {
	db := newTestDB(t)
	alice := createUser(t, db, "alice@example.com")
	bob := createUser(t, db, "bob@example.com")
	ctx := context.Background()

	if err := db.Statuses().Upsert(ctx, &domain.StatusRecord{UserID: bob.ID, Status: domain.StatusWorking, LastUpdated: testTime(9, 0)}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	members, err := db.Statuses().ListMembers(ctx)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[0].UserID != alice.ID || members[0].Status != domain.StatusHome || members[0].LastUpdated != nil {
		t.Fatalf("expected alice at home without record, got %+v", members[0])
	}
	if members[1].UserID != bob.ID || members[1].Status != domain.StatusWorking || members[1].LastUpdated == nil {
		t.Fatalf("expected bob working, got %+v", members[1])
	}
}
