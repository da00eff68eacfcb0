package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/msomdec/workville/internal/domain"
)

// statusRepo implements domain.StatusRepository using SQLite.
type statusRepo struct {
	db dbtx
}

func (r *statusRepo) Get(ctx context.Context, userID int64) (*domain.StatusRecord, error) {
	rec := &domain.StatusRecord{UserID: userID}
	var status, lastUpdated string
	err := r.db.QueryRowContext(ctx,
		`SELECT status, last_updated FROM user_status WHERE user_id = ?`, userID,
	).Scan(&status, &lastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get user status: %w", err)
	}

	rec.Status = domain.Status(status)
	if rec.LastUpdated, err = parseTime(lastUpdated); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *statusRepo) Upsert(ctx context.Context, record *domain.StatusRecord) error {
	if !record.Status.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, record.Status)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_status (user_id, status, last_updated) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET status = excluded.status, last_updated = excluded.last_updated`,
		record.UserID, string(record.Status), formatTime(record.LastUpdated),
	)
	if err != nil {
		return fmt.Errorf("upsert user status: %w", err)
	}
	return nil
}

// ListMembers returns every user with their current status. Users without a
// status record are reported as home.
func (r *statusRepo) ListMembers(ctx context.Context) ([]domain.MemberPresence, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.display_name, s.status, s.last_updated
		 FROM users u
		 LEFT JOIN user_status s ON s.user_id = u.id
		 ORDER BY u.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list member presence: %w", err)
	}
	defer rows.Close()

	var members []domain.MemberPresence
	for rows.Next() {
		var (
			m           domain.MemberPresence
			status      sql.NullString
			lastUpdated sql.NullString
		)
		if err := rows.Scan(&m.UserID, &m.DisplayName, &status, &lastUpdated); err != nil {
			return nil, fmt.Errorf("scan member presence: %w", err)
		}
		m.Status = domain.StatusHome
		if status.Valid && domain.Status(status.String).Valid() {
			m.Status = domain.Status(status.String)
		}
		if m.LastUpdated, err = parseNullTime(lastUpdated); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
