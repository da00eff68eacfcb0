package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/msomdec/workville/internal/domain"
)

// workLogRepo implements domain.WorkLogRepository using SQLite. List fields
// are stored as JSON arrays.
type workLogRepo struct {
	db dbtx
}

const workLogColumns = `w.id, w.user_id, w.date, w.content, w.todos, w.completed_todos,
	w.roi_high, w.roi_low, w.tomorrow_priority, w.feedback, w.created_at, w.updated_at`

func (r *workLogRepo) Create(ctx context.Context, log *domain.WorkLog) error {
	now := time.Now()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now
	}
	if log.UpdatedAt.IsZero() {
		log.UpdatedAt = log.CreatedAt
	}
	todos, completed, err := encodeTodos(log)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO work_logs (user_id, date, content, todos, completed_todos,
		   roi_high, roi_low, tomorrow_priority, feedback, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.UserID, log.Date, log.Content, todos, completed,
		log.ROIHigh, log.ROILow, log.TomorrowPriority, log.Feedback,
		formatTime(log.CreatedAt), formatTime(log.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.ErrDuplicateWorkLog
		}
		return fmt.Errorf("insert work log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get work log id: %w", err)
	}
	log.ID = id
	return nil
}

func (r *workLogRepo) Update(ctx context.Context, log *domain.WorkLog) error {
	if log.UpdatedAt.IsZero() {
		log.UpdatedAt = time.Now()
	}
	todos, completed, err := encodeTodos(log)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE work_logs SET content = ?, todos = ?, completed_todos = ?,
		   roi_high = ?, roi_low = ?, tomorrow_priority = ?, feedback = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		log.Content, todos, completed,
		log.ROIHigh, log.ROILow, log.TomorrowPriority, log.Feedback, formatTime(log.UpdatedAt),
		log.ID, log.UserID,
	)
	if err != nil {
		return fmt.Errorf("update work log: %w", err)
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

func (r *workLogRepo) GetByID(ctx context.Context, id int64) (*domain.WorkLog, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+workLogColumns+` FROM work_logs w WHERE w.id = ?`, id)
	return r.getOne(row)
}

func (r *workLogRepo) GetByUserAndDate(ctx context.Context, userID int64, date string) (*domain.WorkLog, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+workLogColumns+` FROM work_logs w WHERE w.user_id = ? AND w.date = ?`, userID, date)
	return r.getOne(row)
}

func (r *workLogRepo) getOne(row *sql.Row) (*domain.WorkLog, error) {
	log, err := scanWorkLog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get work log: %w", err)
	}
	return log, nil
}

func (r *workLogRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]domain.WorkLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+workLogColumns+` FROM work_logs w
		 WHERE w.user_id = ?
		 ORDER BY w.date DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list work logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.WorkLog
	for rows.Next() {
		log, err := scanWorkLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan work log: %w", err)
		}
		logs = append(logs, *log)
	}
	return logs, rows.Err()
}

func (r *workLogRepo) ListTeam(ctx context.Context, filter domain.WorkLogFilter) ([]domain.TeamLog, int, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != 0 {
		where = append(where, "w.user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.StartDate != "" {
		where = append(where, "w.date >= ?")
		args = append(args, filter.StartDate)
	}
	if filter.EndDate != "" {
		where = append(where, "w.date <= ?")
		args = append(args, filter.EndDate)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM work_logs w`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count team logs: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+workLogColumns+`, u.display_name
		 FROM work_logs w JOIN users u ON u.id = w.user_id`+clause+`
		 ORDER BY w.date DESC, w.created_at DESC, w.id DESC
		 LIMIT ? OFFSET ?`,
		append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list team logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.TeamLog
	for rows.Next() {
		var (
			tl   domain.TeamLog
			name string
		)
		log, err := scanWorkLog(rows, &name)
		if err != nil {
			return nil, 0, fmt.Errorf("scan team log: %w", err)
		}
		tl.WorkLog = *log
		tl.DisplayName = name
		logs = append(logs, tl)
	}
	return logs, total, rows.Err()
}

func encodeTodos(log *domain.WorkLog) (todos, completed string, err error) {
	t, err := json.Marshal(nonNil(log.Todos))
	if err != nil {
		return "", "", fmt.Errorf("encode todos: %w", err)
	}
	c, err := json.Marshal(nonNil(log.CompletedTodos))
	if err != nil {
		return "", "", fmt.Errorf("encode completed todos: %w", err)
	}
	return string(t), string(c), nil
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// scanWorkLog reads workLogColumns followed by any extra destinations.
func scanWorkLog(row rowScanner, extra ...any) (*domain.WorkLog, error) {
	var (
		l                domain.WorkLog
		todos, completed string
		created, updated string
	)
	dest := append([]any{&l.ID, &l.UserID, &l.Date, &l.Content, &todos, &completed,
		&l.ROIHigh, &l.ROILow, &l.TomorrowPriority, &l.Feedback, &created, &updated}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(todos), &l.Todos); err != nil {
		return nil, fmt.Errorf("decode todos: %w", err)
	}
	if err := json.Unmarshal([]byte(completed), &l.CompletedTodos); err != nil {
		return nil, fmt.Errorf("decode completed todos: %w", err)
	}
	var err error
	if l.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if l.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &l, nil
}

// workLogTemplateRepo implements domain.WorkLogTemplateRepository.
type workLogTemplateRepo struct {
	db dbtx
}

func (r *workLogTemplateRepo) Get(ctx context.Context) (*domain.WorkLogTemplate, error) {
	var (
		tmpl      domain.WorkLogTemplate
		updatedBy sql.NullInt64
		updatedAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT content, updated_by, updated_at FROM work_log_template WHERE id = 1`,
	).Scan(&tmpl.Content, &updatedBy, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get work log template: %w", err)
	}
	if updatedBy.Valid {
		tmpl.UpdatedBy = &updatedBy.Int64
	}
	if tmpl.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

func (r *workLogTemplateRepo) Save(ctx context.Context, tmpl *domain.WorkLogTemplate) error {
	if tmpl.UpdatedAt.IsZero() {
		tmpl.UpdatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO work_log_template (id, content, updated_by, updated_at) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET content = excluded.content,
		   updated_by = excluded.updated_by, updated_at = excluded.updated_at`,
		tmpl.Content, tmpl.UpdatedBy, formatTime(tmpl.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save work log template: %w", err)
	}
	return nil
}
