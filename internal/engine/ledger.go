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

// ClaimTask gives outlet its claim on the task. The existence check and the
// insert share one transaction, and UNIQUE(task_id, outlet) backs them up: a
// constraint violation on insert is reported as AlreadyClaimedError.
func (e Engine) ClaimTask(ctx context.Context, taskID int64, outlet string) (domain.Assignment, error) {
	outlet = strings.TrimSpace(outlet)
	if outlet == "" {
		return domain.Assignment{}, ValidationError{Field: "outlet", Reason: "must not be empty"}
	}
	now := e.now()
	a := domain.Assignment{
		TaskID:     taskID,
		Outlet:     outlet,
		AssignedAt: now,
		Status:     domain.AssignmentInProgress,
	}
	err := e.inTx(ctx, func(tx *sql.Tx, r repo.Repo) error {
		t, err := r.GetTask(ctx, taskID)
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError{Kind: "task", ID: taskID}
		}
		if err != nil {
			return err
		}
		if _, err := r.GetAssignment(ctx, taskID, outlet); err == nil {
			return AlreadyClaimedError{TaskID: taskID, Outlet: outlet}
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		fulfilled, err := r.OutletFulfilled(ctx, taskID, outlet)
		if err != nil {
			return err
		}
		if fulfilled {
			return AlreadyFulfilledError{TaskID: taskID, Outlet: outlet}
		}
		assignments, err := r.ListAssignments(ctx, taskID)
		if err != nil {
			return err
		}
		switch status := DeriveTaskStatus(t.Status, assignments, t.Deadline, now); status {
		case domain.TaskCancelled, domain.TaskCompleted, domain.TaskExpired:
			return InvalidStateError{Kind: "task", ID: taskID, Status: string(status), Action: "claim", Reason: "task is closed"}
		}
		id, err := r.InsertAssignment(ctx, a)
		if repo.IsUniqueViolation(err) {
			return AlreadyClaimedError{TaskID: taskID, Outlet: outlet}
		}
		if err != nil {
			return err
		}
		a.ID = id
		if _, err := r.UpdateTaskStatus(ctx, taskID, domain.TaskInProgress, domain.TaskNew); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.Entry{
			Type:       events.AssignmentClaimed,
			EntityKind: "task",
			EntityID:   taskID,
			ActorID:    outlet,
			Payload:    events.EventPayload{"outlet": outlet, "assignment_id": id},
		})
	})
	if err != nil {
		return domain.Assignment{}, err
	}
	e.emit(ctx, notify.Event{Kind: notify.TaskClaimed, TaskID: taskID, Outlet: outlet, Status: string(a.Status)})
	return a, nil
}

// GetAssignment returns nil when the outlet holds no claim on the task.
func (e Engine) GetAssignment(ctx context.Context, taskID int64, outlet string) (*domain.Assignment, error) {
	a, err := e.Repo.GetAssignment(ctx, taskID, strings.TrimSpace(outlet))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CheckSubmittable reports whether outlet may open a submission for the task:
// it needs an assignment that is still in progress.
func (e Engine) CheckSubmittable(ctx context.Context, taskID int64, outlet string) error {
	outlet = strings.TrimSpace(outlet)
	a, err := e.GetAssignment(ctx, taskID, outlet)
	if err != nil {
		return err
	}
	if a == nil {
		return NotClaimedError{TaskID: taskID, Outlet: outlet}
	}
	if a.Status == domain.AssignmentCompleted {
		return AlreadyFulfilledError{TaskID: taskID, Outlet: outlet}
	}
	return nil
}

func (e Engine) ListAssignments(ctx context.Context, taskID int64) ([]domain.Assignment, error) {
	if _, err := e.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return e.Repo.ListAssignments(ctx, taskID)
}
