package repo

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"pressroom/internal/domain"
)

const assignmentColumns = `id,task_id,outlet,assigned_at,status`

func scanAssignment(row scanner) (domain.Assignment, error) {
	var a domain.Assignment
	var assignedAt, status string
	if err := row.Scan(&a.ID, &a.TaskID, &a.Outlet, &assignedAt, &status); err != nil {
		if err == sql.ErrNoRows {
			return a, ErrNotFound
		}
		return a, errors.WithStack(err)
	}
	a.Status = domain.AssignmentStatus(status)
	var err error
	a.AssignedAt, err = parseTime(assignedAt)
	return a, err
}

// InsertAssignment relies on UNIQUE(task_id, outlet); callers check
// IsUniqueViolation on the returned error.
func (r Repo) InsertAssignment(ctx context.Context, a domain.Assignment) (int64, error) {
	res, err := r.q().ExecContext(ctx, `INSERT INTO task_assignments(task_id,outlet,assigned_at,status) VALUES (?,?,?,?)`,
		a.TaskID, a.Outlet, formatTime(a.AssignedAt), string(a.Status))
	if err != nil {
		return 0, errors.Wrap(err, "insert assignment")
	}
	id, err := res.LastInsertId()
	return id, errors.WithStack(err)
}

func (r Repo) GetAssignment(ctx context.Context, taskID int64, outlet string) (domain.Assignment, error) {
	return scanAssignment(r.q().QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM task_assignments WHERE task_id=? AND outlet=?`, taskID, outlet))
}

func (r Repo) ListAssignments(ctx context.Context, taskID int64) ([]domain.Assignment, error) {
	rows, err := r.q().QueryContext(ctx, `SELECT `+assignmentColumns+` FROM task_assignments WHERE task_id=? ORDER BY assigned_at, id`, taskID)
	if err != nil {
		return nil, errors.Wrap(err, "list assignments")
	}
	defer rows.Close()
	var res []domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, errors.WithStack(rows.Err())
}

// AssignmentsByTask loads the assignments of several tasks in one query.
func (r Repo) AssignmentsByTask(ctx context.Context, taskIDs []int64) (map[int64][]domain.Assignment, error) {
	res := make(map[int64][]domain.Assignment, len(taskIDs))
	if len(taskIDs) == 0 {
		return res, nil
	}
	args := make([]any, 0, len(taskIDs))
	for _, id := range taskIDs {
		args = append(args, id)
	}
	rows, err := r.q().QueryContext(ctx, `SELECT `+assignmentColumns+` FROM task_assignments WHERE task_id IN (`+placeholders(len(taskIDs))+`) ORDER BY assigned_at, id`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list assignments by task")
	}
	defer rows.Close()
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		res[a.TaskID] = append(res[a.TaskID], a)
	}
	return res, errors.WithStack(rows.Err())
}

func (r Repo) CompleteAssignment(ctx context.Context, taskID int64, outlet string) (bool, error) {
	res, err := r.q().ExecContext(ctx, `UPDATE task_assignments SET status=? WHERE task_id=? AND outlet=? AND status<>?`,
		string(domain.AssignmentCompleted), taskID, outlet, string(domain.AssignmentCompleted))
	if err != nil {
		return false, errors.Wrap(err, "complete assignment")
	}
	n, err := affected(res)
	return n > 0, err
}

func (r Repo) DeleteAssignments(ctx context.Context, taskID int64) (int64, error) {
	res, err := r.q().ExecContext(ctx, `DELETE FROM task_assignments WHERE task_id=?`, taskID)
	if err != nil {
		return 0, errors.Wrap(err, "delete assignments")
	}
	return affected(res)
}
