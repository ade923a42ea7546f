package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"pressroom/internal/domain"
)

const taskColumns = `id,press_release,photo,deadline,status,created_by,created_at`

func scanTask(row scanner) (domain.Task, error) {
	var t domain.Task
	var photo sql.NullString
	var deadline, createdAt, status string
	if err := row.Scan(&t.ID, &t.PressRelease, &photo, &deadline, &status, &t.CreatedBy, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return t, ErrNotFound
		}
		return t, errors.WithStack(err)
	}
	t.Photo = photo.String
	t.Status = domain.TaskStatus(status)
	var err error
	if t.Deadline, err = parseTime(deadline); err != nil {
		return t, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return t, err
	}
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, t domain.Task) (int64, error) {
	res, err := r.q().ExecContext(ctx, `INSERT INTO tasks(press_release,photo,deadline,status,created_by,created_at) VALUES (?,?,?,?,?,?)`,
		t.PressRelease, nullable(t.Photo), formatTime(t.Deadline), string(t.Status), t.CreatedBy, formatTime(t.CreatedAt))
	if err != nil {
		return 0, errors.Wrap(err, "insert task")
	}
	id, err := res.LastInsertId()
	return id, errors.WithStack(err)
}

// GetTask returns the task with its stored status.
func (r Repo) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	return scanTask(r.q().QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

type TaskFilters struct {
	// OpenAt keeps tasks whose deadline is after it and whose stored status
	// is not terminal.
	OpenAt time.Time
	Limit  int
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	clauses := []string{"1=1"}
	var args []any
	if !f.OpenAt.IsZero() {
		clauses = append(clauses, "deadline > ?", "status NOT IN (?,?)")
		args = append(args, formatTime(f.OpenAt), string(domain.TaskCancelled), string(domain.TaskCompleted))
	}
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE %s ORDER BY created_at DESC, id DESC`, taskColumns, strings.Join(clauses, " AND "))
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.q().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list tasks")
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, errors.WithStack(rows.Err())
}

// UpdateTaskStatus sets the stored status. When from is non-empty the update
// only applies to rows currently in one of those statuses.
func (r Repo) UpdateTaskStatus(ctx context.Context, id int64, status domain.TaskStatus, from ...domain.TaskStatus) (bool, error) {
	query := `UPDATE tasks SET status=? WHERE id=?`
	args := []any{string(status), id}
	if len(from) > 0 {
		query += ` AND status IN (` + placeholders(len(from)) + `)`
		for _, s := range from {
			args = append(args, string(s))
		}
	}
	res, err := r.q().ExecContext(ctx, query, args...)
	if err != nil {
		return false, errors.Wrap(err, "update task status")
	}
	n, err := affected(res)
	return n > 0, err
}

func (r Repo) DeleteTask(ctx context.Context, id int64) error {
	res, err := r.q().ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return errors.Wrap(err, "delete task")
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
