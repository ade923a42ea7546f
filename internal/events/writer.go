package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Audit event types.
const (
	TaskCreated         = "task.created"
	TaskCancelled       = "task.cancelled"
	TaskDeleted         = "task.deleted"
	AssignmentClaimed   = "assignment.claimed"
	AssignmentCompleted = "assignment.completed"
	SubmissionCreated   = "submission.created"
	SubmissionApproved  = "submission.approved"
	SubmissionRevision  = "submission.revision_requested"
	SubmissionResubmit  = "submission.resubmitted"
	SubmissionPhoto     = "submission.photo_attached"
	SubmissionCompleted = "submission.completed"
	RosterUpdated       = "roster.updated"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Entry is one audit record. EntityID is numeric for tasks and submissions.
type Entry struct {
	Type       string
	EntityKind string
	EntityID   int64
	ActorID    string
	Payload    EventPayload
}

// Append writes the entry inside the caller's transaction so the audit trail
// commits or rolls back together with the change it describes.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, e Entry) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if e.Payload == nil {
		e.Payload = EventPayload{}
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	actor := e.ActorID
	if actor == "" {
		actor = "system"
	}
	var entityID any
	if e.EntityID != 0 {
		entityID = strconv.FormatInt(e.EntityID, 10)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		now().UTC().Format(time.RFC3339), e.Type, e.EntityKind, entityID, actor, string(data))
	if err != nil {
		return fmt.Errorf("append event %s: %w", e.Type, err)
	}
	return nil
}
