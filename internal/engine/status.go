package engine

import (
	"time"

	"pressroom/internal/domain"
)

// DeriveTaskStatus computes a task's status at read time. Only CANCELLED and
// COMPLETED are taken from storage; everything else follows from the
// assignments and the deadline.
func DeriveTaskStatus(stored domain.TaskStatus, assignments []domain.Assignment, deadline, now time.Time) domain.TaskStatus {
	if stored.Terminal() {
		return stored
	}
	if now.After(deadline) {
		for _, a := range assignments {
			if a.Status == domain.AssignmentCompleted {
				return domain.TaskCompleted
			}
		}
		return domain.TaskExpired
	}
	if len(assignments) > 0 {
		return domain.TaskInProgress
	}
	return domain.TaskNew
}

func (e Engine) derive(t domain.Task, assignments []domain.Assignment) domain.Task {
	t.Status = DeriveTaskStatus(t.Status, assignments, t.Deadline, e.now())
	return t
}
