package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/msomdec/workville/internal/domain"
)

// workSessionRepo implements domain.WorkSessionRepository using SQLite.
type workSessionRepo struct {
	db dbtx
}

const workSessionColumns = `id, user_id, date, check_in_time, check_out_time, duration_minutes`

func (r *workSessionRepo) Create(ctx context.Context, session *domain.WorkSession) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO work_sessions (user_id, date, check_in_time) VALUES (?, ?, ?)`,
		session.UserID, session.Date, formatTime(session.CheckInTime),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.ErrOpenSessionExists
		}
		return fmt.Errorf("insert work session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get work session id: %w", err)
	}
	session.ID = id
	session.CheckOutTime = nil
	session.DurationMinutes = nil
	return nil
}

func (r *workSessionRepo) Close(ctx context.Context, session *domain.WorkSession) error {
	if session.CheckOutTime == nil || session.DurationMinutes == nil {
		return fmt.Errorf("%w: session %d has no check-out", domain.ErrInvalidInput, session.ID)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE work_sessions SET check_out_time = ?, duration_minutes = ?
		 WHERE id = ? AND check_out_time IS NULL`,
		formatTime(*session.CheckOutTime), *session.DurationMinutes, session.ID,
	)
	if err != nil {
		return fmt.Errorf("close work session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *workSessionRepo) GetOpenByUser(ctx context.Context, userID int64) (*domain.WorkSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+workSessionColumns+` FROM work_sessions
		 WHERE user_id = ? AND check_out_time IS NULL
		 ORDER BY check_in_time DESC, id DESC LIMIT 1`, userID)
	s, err := scanWorkSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get open work session: %w", err)
	}
	return s, nil
}

func (r *workSessionRepo) GetLatestByUser(ctx context.Context, userID int64) (*domain.WorkSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+workSessionColumns+` FROM work_sessions
		 WHERE user_id = ?
		 ORDER BY check_in_time DESC, id DESC LIMIT 1`, userID)
	s, err := scanWorkSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get latest work session: %w", err)
	}
	return s, nil
}

func (r *workSessionRepo) ListByUserAndDate(ctx context.Context, userID int64, date string) ([]domain.WorkSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+workSessionColumns+` FROM work_sessions
		 WHERE user_id = ? AND date = ?
		 ORDER BY check_in_time ASC, id ASC`, userID, date)
	if err != nil {
		return nil, fmt.Errorf("list work sessions by date: %w", err)
	}
	return collectWorkSessions(rows)
}

func (r *workSessionRepo) ListInRange(ctx context.Context, userID int64, from, to string) ([]domain.WorkSession, error) {
	query := `SELECT ` + workSessionColumns + ` FROM work_sessions WHERE date >= ? AND date <= ?`
	args := []any{from, to}
	if userID != 0 {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY user_id ASC, date ASC, check_in_time ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list work sessions in range: %w", err)
	}
	return collectWorkSessions(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkSession(row rowScanner) (*domain.WorkSession, error) {
	var (
		s        domain.WorkSession
		checkIn  string
		checkOut sql.NullString
		duration sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.Date, &checkIn, &checkOut, &duration); err != nil {
		return nil, err
	}

	var err error
	if s.CheckInTime, err = parseTime(checkIn); err != nil {
		return nil, err
	}
	if s.CheckOutTime, err = parseNullTime(checkOut); err != nil {
		return nil, err
	}
	if duration.Valid {
		d := int(duration.Int64)
		s.DurationMinutes = &d
	}
	return &s, nil
}

func collectWorkSessions(rows *sql.Rows) ([]domain.WorkSession, error) {
	defer rows.Close()

	var sessions []domain.WorkSession
	for rows.Next() {
		s, err := scanWorkSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan work session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}
