package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/msomdec/workville/internal/domain"
)

// profileRepo implements domain.ProfileRepository using SQLite. Users without
// a profiles row are reported with an empty accumulator at level 1.
type profileRepo struct {
	db dbtx
}

const profileSelect = `SELECT u.id, u.display_name, COALESCE(p.total_work_hours, 0), COALESCE(p.level, 1)
	FROM users u LEFT JOIN profiles p ON p.user_id = u.id`

func (r *profileRepo) Get(ctx context.Context, userID int64) (*domain.Profile, error) {
	p := &domain.Profile{}
	err := r.db.QueryRowContext(ctx, profileSelect+` WHERE u.id = ?`, userID).
		Scan(&p.UserID, &p.DisplayName, &p.TotalWorkHours, &p.Level)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Save upserts the accumulator. The stored total never decreases.
func (r *profileRepo) Save(ctx context.Context, profile *domain.Profile) error {
	level := domain.LevelForHours(profile.TotalWorkHours)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, total_work_hours, level) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   total_work_hours = MAX(profiles.total_work_hours, excluded.total_work_hours),
		   level = MAX(profiles.level, excluded.level)`,
		profile.UserID, profile.TotalWorkHours, level,
	)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	profile.Level = level
	return nil
}

func (r *profileRepo) List(ctx context.Context) ([]domain.Profile, error) {
	rows, err := r.db.QueryContext(ctx, profileSelect+` ORDER BY u.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.UserID, &p.DisplayName, &p.TotalWorkHours, &p.Level); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
