package domain

import "time"

type TaskStatus string

const (
	TaskNew        TaskStatus = "new"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskExpired    TaskStatus = "expired"
	TaskCancelled  TaskStatus = "cancelled"
)

// Terminal reports whether no further status change can happen.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskCancelled
}

type AssignmentStatus string

const (
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentCompleted  AssignmentStatus = "completed"
)

type SubmissionStatus string

const (
	SubmissionPending      SubmissionStatus = "pending"
	SubmissionTextApproved SubmissionStatus = "text_approved"
	SubmissionPhotoPending SubmissionStatus = "photo_pending"
	SubmissionApproved     SubmissionStatus = "approved"
	SubmissionRevision     SubmissionStatus = "revision"
	SubmissionCompleted    SubmissionStatus = "completed"
)

// RevisionTarget says what a REVISION round asks the author to fix. It is
// empty outside of REVISION.
type RevisionTarget string

const (
	RevisionNone  RevisionTarget = ""
	RevisionText  RevisionTarget = "text"
	RevisionPhoto RevisionTarget = "photo"
)

// Restores returns the status a resubmission goes back to.
func (t RevisionTarget) Restores() SubmissionStatus {
	switch t {
	case RevisionText:
		return SubmissionPending
	case RevisionPhoto:
		return SubmissionTextApproved
	default:
		return ""
	}
}

type Task struct {
	ID           int64      `json:"id"`
	PressRelease string     `json:"press_release"`
	Photo        string     `json:"photo,omitempty"`
	Deadline     time.Time  `json:"deadline" format:"date-time"`
	Status       TaskStatus `json:"status" enum:"new,in_progress,completed,expired,cancelled"`
	CreatedBy    string     `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at" format:"date-time"`
}

type Assignment struct {
	ID         int64            `json:"id"`
	TaskID     int64            `json:"task_id"`
	Outlet     string           `json:"outlet"`
	AssignedAt time.Time        `json:"assigned_at" format:"date-time"`
	Status     AssignmentStatus `json:"status" enum:"in_progress,completed"`
}

type Submission struct {
	ID              int64            `json:"id"`
	TaskID          int64            `json:"task_id"`
	AuthorID        int64            `json:"author_id"`
	Outlet          string           `json:"outlet"`
	Content         string           `json:"content"`
	Photo           string           `json:"photo,omitempty"`
	SubmittedAt     time.Time        `json:"submitted_at" format:"date-time"`
	UpdatedAt       time.Time        `json:"updated_at" format:"date-time"`
	Status          SubmissionStatus `json:"status" enum:"pending,text_approved,photo_pending,approved,revision,completed"`
	RevisionTarget  RevisionTarget   `json:"revision_target,omitempty" enum:"text,photo"`
	RevisionComment string           `json:"revision_comment,omitempty"`
	PublishedLink   string           `json:"published_link,omitempty"`
	Version         int64            `json:"version"`
}

// Open reports whether the submission still counts against the one open
// submission per author and task.
func (s Submission) Open() bool {
	return s.Status != SubmissionCompleted
}

type User struct {
	ID            int64     `json:"id"`
	CallerID      string    `json:"caller_id"`
	Username      string    `json:"username,omitempty"`
	Outlet        string    `json:"outlet,omitempty"`
	IsEditor      bool      `json:"is_editor"`
	IsSuperEditor bool      `json:"is_super_editor"`
	CreatedAt     time.Time `json:"created_at" format:"date-time"`
}

// Principal is a resolved caller.
type Principal struct {
	UserID        int64  `json:"user_id"`
	CallerID      string `json:"caller_id"`
	Username      string `json:"username,omitempty"`
	Outlet        string `json:"outlet,omitempty"`
	IsEditor      bool   `json:"is_editor"`
	IsSuperEditor bool   `json:"is_super_editor"`
}

func (u User) Principal() Principal {
	return Principal{
		UserID:        u.ID,
		CallerID:      u.CallerID,
		Username:      u.Username,
		Outlet:        u.Outlet,
		IsEditor:      u.IsEditor,
		IsSuperEditor: u.IsSuperEditor,
	}
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
