package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"pressroom/internal/domain"
	"pressroom/internal/events"
	"pressroom/internal/notify"
	"pressroom/internal/repo"
)

// CreateTaskOptions are parameters for creating a task.
type CreateTaskOptions struct {
	PressRelease string
	Deadline     time.Time
	Photo        string
	CreatedBy    string
}

func (e Engine) CreateTask(ctx context.Context, opts CreateTaskOptions) (domain.Task, error) {
	pressRelease := strings.TrimSpace(opts.PressRelease)
	if pressRelease == "" {
		return domain.Task{}, ValidationError{Field: "press_release", Reason: "must not be empty"}
	}
	now := e.now()
	deadline := opts.Deadline.UTC().Truncate(time.Second)
	if !deadline.After(now) {
		return domain.Task{}, ValidationError{Field: "deadline", Reason: "must be in the future"}
	}
	t := domain.Task{
		PressRelease: pressRelease,
		Photo:        strings.TrimSpace(opts.Photo),
		Deadline:     deadline,
		Status:       domain.TaskNew,
		CreatedBy:    opts.CreatedBy,
		CreatedAt:    now.Truncate(time.Second),
	}
	err := e.inTx(ctx, func(tx *sql.Tx, r repo.Repo) error {
		id, err := r.InsertTask(ctx, t)
		if err != nil {
			return err
		}
		t.ID = id
		return e.appendEvent(ctx, tx, events.Entry{
			Type:       events.TaskCreated,
			EntityKind: "task",
			EntityID:   id,
			ActorID:    opts.CreatedBy,
			Payload:    events.EventPayload{"deadline": t.Deadline.Format(time.RFC3339)},
		})
	})
	if err != nil {
		return domain.Task{}, err
	}
	e.emit(ctx, notify.Event{Kind: notify.TaskCreated, TaskID: t.ID, Status: string(t.Status)})
	return t, nil
}

// GetTask returns the task with its derived status.
func (e Engine) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Task{}, NotFoundError{Kind: "task", ID: id}
	}
	if err != nil {
		return domain.Task{}, err
	}
	assignments, err := e.Repo.ListAssignments(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	return e.derive(t, assignments), nil
}

// GetActiveTasks lists tasks with a deadline still ahead. Without an outlet it
// returns the unclaimed ones. With an outlet it adds the tasks that outlet
// claimed and is still working on, and hides tasks it finished or that only
// competitors hold.
func (e Engine) GetActiveTasks(ctx context.Context, outlet string) ([]domain.Task, error) {
	outlet = strings.TrimSpace(outlet)
	now := e.now()
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{OpenAt: now})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	byTask, err := e.Repo.AssignmentsByTask(ctx, ids)
	if err != nil {
		return nil, err
	}
	res := []domain.Task{}
	for _, t := range tasks {
		assignments := byTask[t.ID]
		t = e.derive(t, assignments)
		if !t.Deadline.After(now) {
			continue
		}
		if outlet == "" {
			if t.Status == domain.TaskNew {
				res = append(res, t)
			}
			continue
		}
		own, claimed := findAssignment(assignments, outlet)
		switch {
		case claimed && own.Status == domain.AssignmentCompleted:
		case claimed:
			res = append(res, t)
		case t.Status == domain.TaskNew:
			res = append(res, t)
		}
	}
	return res, nil
}

// ListAllTasks returns every task with its derived status, newest first.
func (e Engine) ListAllTasks(ctx context.Context) ([]domain.Task, error) {
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	byTask, err := e.Repo.AssignmentsByTask(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i] = e.derive(tasks[i], byTask[tasks[i].ID])
	}
	return tasks, nil
}

// CancelTask stores CANCELLED. Open submissions stay as they are but the task
// can no longer be claimed.
func (e Engine) CancelTask(ctx context.Context, id int64, actorID string) (domain.Task, error) {
	var out domain.Task
	err := e.inTx(ctx, func(tx *sql.Tx, r repo.Repo) error {
		t, err := r.GetTask(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError{Kind: "task", ID: id}
		}
		if err != nil {
			return err
		}
		assignments, err := r.ListAssignments(ctx, id)
		if err != nil {
			return err
		}
		current := e.derive(t, assignments)
		if current.Status.Terminal() {
			return InvalidStateError{Kind: "task", ID: id, Status: string(current.Status), Action: "cancel", Reason: "task is already closed"}
		}
		if _, err := r.UpdateTaskStatus(ctx, id, domain.TaskCancelled); err != nil {
			return err
		}
		current.Status = domain.TaskCancelled
		out = current
		return e.appendEvent(ctx, tx, events.Entry{
			Type:       events.TaskCancelled,
			EntityKind: "task",
			EntityID:   id,
			ActorID:    actorID,
			Payload:    events.EventPayload{"previous_status": string(t.Status)},
		})
	})
	return out, err
}

// DeleteTaskCascade removes the task with its submissions and assignments in
// one transaction.
func (e Engine) DeleteTaskCascade(ctx context.Context, id int64, actorID string) error {
	return e.inTx(ctx, func(tx *sql.Tx, r repo.Repo) error {
		if _, err := r.GetTask(ctx, id); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NotFoundError{Kind: "task", ID: id}
			}
			return err
		}
		submissions, err := r.DeleteSubmissions(ctx, id)
		if err != nil {
			return err
		}
		assignments, err := r.DeleteAssignments(ctx, id)
		if err != nil {
			return err
		}
		if err := r.DeleteTask(ctx, id); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.Entry{
			Type:       events.TaskDeleted,
			EntityKind: "task",
			EntityID:   id,
			ActorID:    actorID,
			Payload:    events.EventPayload{"submissions": submissions, "assignments": assignments},
		})
	})
}

func findAssignment(assignments []domain.Assignment, outlet string) (domain.Assignment, bool) {
	for _, a := range assignments {
		if a.Outlet == outlet {
			return a, true
		}
	}
	return domain.Assignment{}, false
}
