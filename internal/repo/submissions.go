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

const submissionColumns = `id,task_id,author_id,outlet,content,photo,submitted_at,updated_at,status,revision_target,revision_comment,published_link,version`

func scanSubmission(row scanner) (domain.Submission, error) {
	var s domain.Submission
	var photo, target, comment, link sql.NullString
	var submittedAt, updatedAt, status string
	err := row.Scan(&s.ID, &s.TaskID, &s.AuthorID, &s.Outlet, &s.Content, &photo, &submittedAt, &updatedAt,
		&status, &target, &comment, &link, &s.Version)
	if err != nil {
		if err == sql.ErrNoRows {
			return s, ErrNotFound
		}
		return s, errors.WithStack(err)
	}
	s.Photo = photo.String
	s.Status = domain.SubmissionStatus(status)
	s.RevisionTarget = domain.RevisionTarget(target.String)
	s.RevisionComment = comment.String
	s.PublishedLink = link.String
	if s.SubmittedAt, err = parseTime(submittedAt); err != nil {
		return s, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return s, err
	}
	return s, nil
}

// InsertSubmission relies on the partial unique index over open submissions;
// callers check IsUniqueViolation on the returned error.
func (r Repo) InsertSubmission(ctx context.Context, s domain.Submission) (int64, error) {
	res, err := r.q().ExecContext(ctx, `INSERT INTO submissions(task_id,author_id,outlet,content,photo,submitted_at,updated_at,status,version) VALUES (?,?,?,?,?,?,?,?,0)`,
		s.TaskID, s.AuthorID, s.Outlet, s.Content, nullable(s.Photo), formatTime(s.SubmittedAt), formatTime(s.UpdatedAt), string(s.Status))
	if err != nil {
		return 0, errors.Wrap(err, "insert submission")
	}
	id, err := res.LastInsertId()
	return id, errors.WithStack(err)
}

func (r Repo) GetSubmission(ctx context.Context, id int64) (domain.Submission, error) {
	return scanSubmission(r.q().QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id=?`, id))
}

// FindOpenSubmission returns the author's non-completed submission for a task.
func (r Repo) FindOpenSubmission(ctx context.Context, taskID, authorID int64) (domain.Submission, error) {
	return scanSubmission(r.q().QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE task_id=? AND author_id=? AND status<>? LIMIT 1`,
		taskID, authorID, string(domain.SubmissionCompleted)))
}

// OutletFulfilled reports whether the outlet already delivered the task, i.e.
// holds an approved or completed submission for it.
func (r Repo) OutletFulfilled(ctx context.Context, taskID int64, outlet string) (bool, error) {
	var n int
	err := r.q().QueryRowContext(ctx, `SELECT 1 FROM submissions WHERE task_id=? AND outlet=? AND status IN (?,?) LIMIT 1`,
		taskID, outlet, string(domain.SubmissionApproved), string(domain.SubmissionCompleted)).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "check outlet fulfilled")
	}
	return true, nil
}

// UpdateSubmission writes the mutable fields of s, guarded by the status and
// version the caller read. It reports false when another writer got there
// first.
func (r Repo) UpdateSubmission(ctx context.Context, s domain.Submission, expectStatus domain.SubmissionStatus, expectVersion int64) (bool, error) {
	res, err := r.q().ExecContext(ctx, `UPDATE submissions
SET content=?, photo=?, status=?, revision_target=?, revision_comment=?, published_link=?, updated_at=?, version=version+1
WHERE id=? AND status=? AND version=?`,
		s.Content, nullable(s.Photo), string(s.Status), nullable(string(s.RevisionTarget)), nullable(s.RevisionComment),
		nullable(s.PublishedLink), formatTime(s.UpdatedAt), s.ID, string(expectStatus), expectVersion)
	if err != nil {
		return false, errors.Wrap(err, "update submission")
	}
	n, err := affected(res)
	return n == 1, err
}

type SubmissionFilters struct {
	TaskID   int64
	AuthorID int64
	Statuses []domain.SubmissionStatus
	// ActiveSince keeps open submissions plus completed ones submitted at or
	// after this instant.
	ActiveSince time.Time
	Limit       int
}

func (r Repo) ListSubmissions(ctx context.Context, f SubmissionFilters) ([]domain.Submission, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.TaskID != 0 {
		clauses = append(clauses, "task_id=?")
		args = append(args, f.TaskID)
	}
	if f.AuthorID != 0 {
		clauses = append(clauses, "author_id=?")
		args = append(args, f.AuthorID)
	}
	if len(f.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	if !f.ActiveSince.IsZero() {
		clauses = append(clauses, "(status<>? OR submitted_at>=?)")
		args = append(args, string(domain.SubmissionCompleted), formatTime(f.ActiveSince))
	}
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE %s ORDER BY submitted_at DESC, id DESC`, submissionColumns, strings.Join(clauses, " AND "))
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.q().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list submissions")
	}
	defer rows.Close()
	var res []domain.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, errors.WithStack(rows.Err())
}

func (r Repo) DeleteSubmissions(ctx context.Context, taskID int64) (int64, error) {
	res, err := r.q().ExecContext(ctx, `DELETE FROM submissions WHERE task_id=?`, taskID)
	if err != nil {
		return 0, errors.Wrap(err, "delete submissions")
	}
	return affected(res)
}
