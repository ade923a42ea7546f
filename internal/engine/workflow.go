package engine

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"sort"
	"strings"

	"pressroom/internal/domain"
	"pressroom/internal/events"
	"pressroom/internal/notify"
	"pressroom/internal/repo"
)

// Action is an event of the submission state machine.
type Action string

const (
	ActionApprove         Action = "approve"
	ActionAttachPhoto     Action = "attach_photo"
	ActionAttachLink      Action = "attach_link"
	ActionRequestRevision Action = "request_revision"
	ActionResubmit        Action = "resubmit_content"
)

// transitions is the complete table of legal moves. The target of
// ActionResubmit is left empty: it comes from the submission's RevisionTarget.
var transitions = map[domain.SubmissionStatus]map[Action]domain.SubmissionStatus{
	domain.SubmissionPending: {
		ActionApprove:         domain.SubmissionTextApproved,
		ActionRequestRevision: domain.SubmissionRevision,
	},
	domain.SubmissionTextApproved: {
		ActionAttachPhoto:     domain.SubmissionPhotoPending,
		ActionRequestRevision: domain.SubmissionRevision,
	},
	domain.SubmissionPhotoPending: {
		ActionApprove:         domain.SubmissionApproved,
		ActionRequestRevision: domain.SubmissionRevision,
	},
	domain.SubmissionApproved: {
		ActionAttachLink: domain.SubmissionCompleted,
	},
	domain.SubmissionRevision: {
		ActionResubmit: "",
	},
}

// AllowedActions lists the actions the state machine accepts from status.
func AllowedActions(status domain.SubmissionStatus) []Action {
	var res []Action
	for a := range transitions[status] {
		res = append(res, a)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

func next(s domain.Submission, action Action) (domain.SubmissionStatus, error) {
	to, ok := transitions[s.Status][action]
	if !ok {
		return "", invalidTransition(s, action, rejectReason(s.Status, action))
	}
	if action == ActionResubmit {
		to = s.RevisionTarget.Restores()
	}
	return to, nil
}

func invalidTransition(s domain.Submission, action Action, reason string) InvalidStateError {
	return InvalidStateError{Kind: "submission", ID: s.ID, Status: string(s.Status), Action: string(action), Reason: reason}
}

func rejectReason(status domain.SubmissionStatus, action Action) string {
	switch {
	case status == domain.SubmissionCompleted:
		return "submission is completed"
	case status == domain.SubmissionRevision:
		if action == ActionRequestRevision {
			return "a revision is already pending"
		}
		return "waiting for the author to resubmit"
	case action == ActionAttachPhoto:
		if status == domain.SubmissionPending {
			return "cannot attach photo before text is approved"
		}
		return "photo stage is over"
	case action == ActionApprove && status == domain.SubmissionTextApproved:
		return "a photo must be attached before final approval"
	case action == ActionApprove || action == ActionRequestRevision:
		return "submission is already fully approved"
	case action == ActionAttachLink:
		return "submission is not fully approved yet"
	case action == ActionResubmit:
		return "no revision was requested"
	}
	return ""
}

type change struct {
	action Action
	audit  string
	apply  func(s *domain.Submission) error
	// after runs inside the transaction once the submission row is written.
	after func(ctx context.Context, tx *sql.Tx, r repo.Repo, s domain.Submission) error
}

// transition reads the submission, applies the change and writes it back with
// a compare-and-swap on status and version, all in one transaction.
func (e Engine) transition(ctx context.Context, id int64, actorID string, c change) (before, after domain.Submission, err error) {
	now := e.now()
	err = e.inTx(ctx, func(tx *sql.Tx, r repo.Repo) error {
		s, err := r.GetSubmission(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError{Kind: "submission", ID: id}
		}
		if err != nil {
			return err
		}
		before = s
		if err := c.apply(&s); err != nil {
			return err
		}
		s.UpdatedAt = now
		ok, err := r.UpdateSubmission(ctx, s, before.Status, before.Version)
		if err != nil {
			return err
		}
		if !ok {
			current, err := r.GetSubmission(ctx, id)
			if err != nil {
				return err
			}
			return invalidTransition(current, c.action, "submission changed concurrently")
		}
		s.Version = before.Version + 1
		if c.after != nil {
			if err := c.after(ctx, tx, r, s); err != nil {
				return err
			}
		}
		after = s
		payload := events.EventPayload{"task_id": s.TaskID, "from": string(before.Status), "to": string(s.Status)}
		if s.RevisionTarget != domain.RevisionNone {
			payload["revision_target"] = string(s.RevisionTarget)
		}
		return e.appendEvent(ctx, tx, events.Entry{
			Type:       c.audit,
			EntityKind: "submission",
			EntityID:   id,
			ActorID:    actorID,
			Payload:    payload,
		})
	})
	return before, after, err
}

func submissionEvent(kind notify.Kind, s domain.Submission) notify.Event {
	return notify.Event{
		Kind:           kind,
		TaskID:         s.TaskID,
		SubmissionID:   s.ID,
		AuthorID:       s.AuthorID,
		Outlet:         s.Outlet,
		Status:         string(s.Status),
		RevisionTarget: string(s.RevisionTarget),
		Comment:        s.RevisionComment,
		Link:           s.PublishedLink,
	}
}

// Approve moves PENDING to TEXT_APPROVED and PHOTO_PENDING to APPROVED.
func (e Engine) Approve(ctx context.Context, id int64, actorID string) (domain.Submission, error) {
	before, s, err := e.transition(ctx, id, actorID, change{
		action: ActionApprove,
		audit:  events.SubmissionApproved,
		apply: func(s *domain.Submission) error {
			to, err := next(*s, ActionApprove)
			if err != nil {
				return err
			}
			s.Status = to
			return nil
		},
	})
	if err != nil {
		return domain.Submission{}, err
	}
	switch before.Status {
	case domain.SubmissionPending:
		e.emit(ctx, submissionEvent(notify.TextApproved, s), submissionEvent(notify.PhotoRequested, s))
	case domain.SubmissionPhotoPending:
		e.emit(ctx, submissionEvent(notify.FullyApproved, s))
	}
	return s, nil
}

// RequestRevision sends the submission back to its author. From PENDING the
// text is revised; once the text is approved only the photo can be.
func (e Engine) RequestRevision(ctx context.Context, id int64, comment string, targetsPhoto bool, actorID string) (domain.Submission, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return domain.Submission{}, ValidationError{Field: "comment", Reason: "must not be empty"}
	}
	_, s, err := e.transition(ctx, id, actorID, change{
		action: ActionRequestRevision,
		audit:  events.SubmissionRevision,
		apply: func(s *domain.Submission) error {
			to, err := next(*s, ActionRequestRevision)
			if err != nil {
				return err
			}
			target := domain.RevisionPhoto
			if s.Status == domain.SubmissionPending {
				if targetsPhoto {
					return invalidTransition(*s, ActionRequestRevision, "text is not approved yet, there is no photo to revise")
				}
				target = domain.RevisionText
			}
			s.Status = to
			s.RevisionTarget = target
			s.RevisionComment = comment
			return nil
		},
	})
	if err != nil {
		return domain.Submission{}, err
	}
	e.emit(ctx, submissionEvent(notify.RevisionRequested, s))
	return s, nil
}

// ResubmitOptions carry the author's fixes. Empty fields are left unchanged.
type ResubmitOptions struct {
	Content string
	Photo   string
}

// ResubmitContent closes a revision round and restores the status the
// revision target points at. A photo is only accepted once the text was
// approved, that is for a photo revision.
func (e Engine) ResubmitContent(ctx context.Context, id int64, opts ResubmitOptions, actorID string) (domain.Submission, error) {
	content := strings.TrimSpace(opts.Content)
	photo := strings.TrimSpace(opts.Photo)
	_, s, err := e.transition(ctx, id, actorID, change{
		action: ActionResubmit,
		audit:  events.SubmissionResubmit,
		apply: func(s *domain.Submission) error {
			to, err := next(*s, ActionResubmit)
			if err != nil {
				return err
			}
			if photo != "" && s.RevisionTarget == domain.RevisionText {
				return invalidTransition(*s, ActionResubmit, "photo attachment is only legal once text is approved")
			}
			if content != "" {
				s.Content = content
			}
			if photo != "" {
				s.Photo = photo
			}
			s.Status = to
			s.RevisionTarget = domain.RevisionNone
			s.RevisionComment = ""
			return nil
		},
	})
	if err != nil {
		return domain.Submission{}, err
	}
	e.emit(ctx, submissionEvent(notify.Resubmitted, s))
	return s, nil
}

// AttachPhoto is legal only once the text is approved.
func (e Engine) AttachPhoto(ctx context.Context, id int64, photo, actorID string) (domain.Submission, error) {
	photo = strings.TrimSpace(photo)
	if photo == "" {
		return domain.Submission{}, ValidationError{Field: "photo", Reason: "must not be empty"}
	}
	_, s, err := e.transition(ctx, id, actorID, change{
		action: ActionAttachPhoto,
		audit:  events.SubmissionPhoto,
		apply: func(s *domain.Submission) error {
			to, err := next(*s, ActionAttachPhoto)
			if err != nil {
				return err
			}
			s.Status = to
			s.Photo = photo
			return nil
		},
	})
	if err != nil {
		return domain.Submission{}, err
	}
	e.emit(ctx, submissionEvent(notify.PhotoSubmitted, s))
	return s, nil
}

// AttachPublishedLink records where the piece was published, completing the
// submission and the outlet's assignment. It succeeds once per submission; a
// second call fails with AlreadyCompletedError whatever link it carries.
func (e Engine) AttachPublishedLink(ctx context.Context, id int64, link, actorID string) (domain.Submission, error) {
	link = strings.TrimSpace(link)
	_, s, err := e.transition(ctx, id, actorID, change{
		action: ActionAttachLink,
		audit:  events.SubmissionCompleted,
		apply: func(s *domain.Submission) error {
			if s.PublishedLink != "" {
				return AlreadyCompletedError{SubmissionID: s.ID, Link: s.PublishedLink}
			}
			if err := validateLink(link); err != nil {
				return err
			}
			to, err := next(*s, ActionAttachLink)
			if err != nil {
				return err
			}
			s.Status = to
			s.PublishedLink = link
			return nil
		},
		after: func(ctx context.Context, tx *sql.Tx, r repo.Repo, s domain.Submission) error {
			completed, err := r.CompleteAssignment(ctx, s.TaskID, s.Outlet)
			if err != nil || !completed {
				return err
			}
			return e.appendEvent(ctx, tx, events.Entry{
				Type:       events.AssignmentCompleted,
				EntityKind: "task",
				EntityID:   s.TaskID,
				ActorID:    actorID,
				Payload:    events.EventPayload{"outlet": s.Outlet, "submission_id": s.ID},
			})
		},
	})
	if err != nil {
		return domain.Submission{}, err
	}
	e.emit(ctx, submissionEvent(notify.Completed, s))
	return s, nil
}

func validateLink(link string) error {
	if link == "" {
		return ValidationError{Field: "link", Reason: "must not be empty"}
	}
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ValidationError{Field: "link", Reason: "must be an absolute http(s) URL"}
	}
	return nil
}
