package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"pressroom/internal/domain"
	"pressroom/internal/events"
	"pressroom/internal/notify"
	"pressroom/internal/repo"
)

// CreateSubmission opens a submission for the author's outlet. An author has
// at most one open submission per task; the partial unique index on
// (task_id, author_id) backs up the pre-check.
func (e Engine) CreateSubmission(ctx context.Context, taskID int64, author domain.Principal, content string) (domain.Submission, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Submission{}, ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if author.UserID == 0 {
		return domain.Submission{}, ValidationError{Field: "author", Reason: "unknown user"}
	}
	if author.Outlet == "" {
		return domain.Submission{}, ValidationError{Field: "author", Reason: "not affiliated with an outlet"}
	}
	now := e.now()
	s := domain.Submission{
		TaskID:      taskID,
		AuthorID:    author.UserID,
		Outlet:      author.Outlet,
		Content:     content,
		SubmittedAt: now,
		UpdatedAt:   now,
		Status:      domain.SubmissionPending,
	}
	err := e.inTx(ctx, func(tx *sql.Tx, r repo.Repo) error {
		t, err := r.GetTask(ctx, taskID)
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError{Kind: "task", ID: taskID}
		}
		if err != nil {
			return err
		}
		if t.Status == domain.TaskCancelled {
			return InvalidStateError{Kind: "task", ID: taskID, Status: string(t.Status), Action: "submit to", Reason: "task was cancelled"}
		}
		existing, err := r.FindOpenSubmission(ctx, taskID, author.UserID)
		if err == nil {
			return DuplicateSubmissionError{TaskID: taskID, AuthorID: author.UserID, ExistingID: existing.ID}
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		id, err := r.InsertSubmission(ctx, s)
		if repo.IsUniqueViolation(err) {
			return DuplicateSubmissionError{TaskID: taskID, AuthorID: author.UserID}
		}
		if err != nil {
			return err
		}
		s.ID = id
		return e.appendEvent(ctx, tx, events.Entry{
			Type:       events.SubmissionCreated,
			EntityKind: "submission",
			EntityID:   id,
			ActorID:    author.CallerID,
			Payload:    events.EventPayload{"task_id": taskID, "outlet": author.Outlet},
		})
	})
	if err != nil {
		return domain.Submission{}, err
	}
	e.emit(ctx, submissionEvent(notify.SubmissionCreated, s))
	return s, nil
}

func (e Engine) GetSubmission(ctx context.Context, id int64) (domain.Submission, error) {
	s, err := e.Repo.GetSubmission(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Submission{}, NotFoundError{Kind: "submission", ID: id}
	}
	return s, err
}

// ListReviewQueue returns the submissions waiting for an editor, newest first.
func (e Engine) ListReviewQueue(ctx context.Context) ([]domain.Submission, error) {
	return e.Repo.ListSubmissions(ctx, repo.SubmissionFilters{
		Statuses: []domain.SubmissionStatus{domain.SubmissionPending, domain.SubmissionPhotoPending},
	})
}

// ListAuthorSubmissions returns the author's submissions. With activeOnly set
// completed submissions older than the recent window are left out.
func (e Engine) ListAuthorSubmissions(ctx context.Context, authorID int64, activeOnly bool) ([]domain.Submission, error) {
	f := repo.SubmissionFilters{AuthorID: authorID}
	if activeOnly {
		f.ActiveSince = e.now().Add(-e.recentWindow())
	}
	return e.Repo.ListSubmissions(ctx, f)
}

// ListArchive returns completed submissions, all of them when authorID is 0.
func (e Engine) ListArchive(ctx context.Context, authorID int64) ([]domain.Submission, error) {
	return e.Repo.ListSubmissions(ctx, repo.SubmissionFilters{
		AuthorID: authorID,
		Statuses: []domain.SubmissionStatus{domain.SubmissionCompleted},
	})
}

func (e Engine) ListSubmissionsForTask(ctx context.Context, taskID int64) ([]domain.Submission, error) {
	if _, err := e.Repo.GetTask(ctx, taskID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NotFoundError{Kind: "task", ID: taskID}
		}
		return nil, err
	}
	return e.Repo.ListSubmissions(ctx, repo.SubmissionFilters{TaskID: taskID})
}
