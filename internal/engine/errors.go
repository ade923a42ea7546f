package engine

import (
	"fmt"

	"pressroom/internal/repo"
)

// ValidationError reports bad input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing task or submission.
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e NotFoundError) Unwrap() error { return repo.ErrNotFound }

// AlreadyClaimedError means the outlet already holds a claim on the task.
type AlreadyClaimedError struct {
	TaskID int64
	Outlet string
}

func (e AlreadyClaimedError) Error() string {
	return fmt.Sprintf("task %d already claimed by outlet %s", e.TaskID, e.Outlet)
}

// NotClaimedError means the outlet holds no claim on the task.
type NotClaimedError struct {
	TaskID int64
	Outlet string
}

func (e NotClaimedError) Error() string {
	return fmt.Sprintf("outlet %s has not claimed task %d", e.Outlet, e.TaskID)
}

// AlreadyFulfilledError means the outlet already delivered the task.
type AlreadyFulfilledError struct {
	TaskID int64
	Outlet string
}

func (e AlreadyFulfilledError) Error() string {
	return fmt.Sprintf("outlet %s already fulfilled task %d", e.Outlet, e.TaskID)
}

// DuplicateSubmissionError means the author must revise the open submission
// instead of creating another one.
type DuplicateSubmissionError struct {
	TaskID     int64
	AuthorID   int64
	ExistingID int64
}

func (e DuplicateSubmissionError) Error() string {
	if e.ExistingID != 0 {
		return fmt.Sprintf("author %d already has open submission %d for task %d", e.AuthorID, e.ExistingID, e.TaskID)
	}
	return fmt.Sprintf("author %d already has an open submission for task %d", e.AuthorID, e.TaskID)
}

// InvalidStateError reports an action the current state does not allow.
type InvalidStateError struct {
	Kind   string
	ID     int64
	Status string
	Action string
	Reason string
}

func (e InvalidStateError) Error() string {
	msg := fmt.Sprintf("cannot %s %s %d in status %s", e.Action, e.Kind, e.ID, e.Status)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// AlreadyCompletedError reports a second published link.
type AlreadyCompletedError struct {
	SubmissionID int64
	Link         string
}

func (e AlreadyCompletedError) Error() string {
	return fmt.Sprintf("submission %d already has published link %s", e.SubmissionID, e.Link)
}
