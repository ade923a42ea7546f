package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"pressroom/internal/domain"
	"pressroom/internal/engine"
	"pressroom/internal/identity"
)

type submissionPath struct {
	SubmissionID int64 `path:"submission_id"`
}

type submissionOutput struct {
	Body SubmissionResponse `json:"body"`
}

func (h handlers) registerSubmissions(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-submissions",
		Method:      http.MethodGet,
		Path:        "/submissions",
		Summary:     "List submissions",
		Description: "view=queue is the editors' review queue, view=mine the caller's own submissions, view=archive completed ones.",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		View   string `query:"view" enum:"queue,mine,archive" default:"mine"`
		Active bool   `query:"active" doc:"with view=mine, hide completed submissions older than the recent window"`
	}) (*struct {
		Body []SubmissionResponse `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx, h.identity)
		if authErr != nil {
			return nil, authErr
		}
		var (
			items []domain.Submission
			err   error
		)
		switch input.View {
		case "queue":
			if err := identity.Require(p, identity.RoleEditor); err != nil {
				return nil, handleError(err)
			}
			items, err = h.engine.ListReviewQueue(ctx)
		case "archive":
			author := p.UserID
			if p.IsEditor {
				author = 0
			}
			items, err = h.engine.ListArchive(ctx, author)
		default:
			items, err = h.engine.ListAuthorSubmissions(ctx, p.UserID, input.Active)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []SubmissionResponse `json:"body"`
		}{Body: mapSubmissions(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-submission",
		Method:      http.MethodGet,
		Path:        "/submissions/{submission_id}",
		Summary:     "Get a submission",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *submissionPath) (*submissionOutput, error) {
		p, authErr := principalFromRequest(ctx, h.identity)
		if authErr != nil {
			return nil, authErr
		}
		s, err := h.engine.GetSubmission(ctx, input.SubmissionID)
		if err != nil {
			return nil, handleError(err)
		}
		if authErr := requireAuthor(p, s, true); authErr != nil {
			return nil, authErr
		}
		return &submissionOutput{Body: submissionResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-submission",
		Method:      http.MethodPost,
		Path:        "/submissions/{submission_id}/approve",
		Summary:     "Approve the text, or the photo once attached",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *submissionPath) (*submissionOutput, error) {
		p, authErr := requireRole(ctx, h.identity, identity.RoleEditor)
		if authErr != nil {
			return nil, authErr
		}
		s, err := h.engine.Approve(ctx, input.SubmissionID, p.CallerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &submissionOutput{Body: submissionResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "request-revision",
		Method:      http.MethodPost,
		Path:        "/submissions/{submission_id}/revision",
		Summary:     "Send a submission back to its author",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		SubmissionID int64           `path:"submission_id"`
		Body         RevisionRequest `json:"body"`
	}) (*submissionOutput, error) {
		p, authErr := requireRole(ctx, h.identity, identity.RoleEditor)
		if authErr != nil {
			return nil, authErr
		}
		s, err := h.engine.RequestRevision(ctx, input.SubmissionID, input.Body.Comment, input.Body.TargetsPhoto, p.CallerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &submissionOutput{Body: submissionResponse(s)}, nil
	})

	registerAuthorAction(h, api, huma.Operation{
		OperationID: "resubmit-submission",
		Method:      http.MethodPost,
		Path:        "/submissions/{submission_id}/resubmit",
		Summary:     "Resubmit after a revision request",
	}, func(ctx context.Context, p domain.Principal, id int64, body ResubmitRequest) (domain.Submission, error) {
		return h.engine.ResubmitContent(ctx, id, engine.ResubmitOptions{Content: body.Content, Photo: body.Photo}, p.CallerID)
	})

	registerAuthorAction(h, api, huma.Operation{
		OperationID: "attach-photo",
		Method:      http.MethodPost,
		Path:        "/submissions/{submission_id}/photo",
		Summary:     "Attach a photo once the text is approved",
	}, func(ctx context.Context, p domain.Principal, id int64, body AttachPhotoRequest) (domain.Submission, error) {
		return h.engine.AttachPhoto(ctx, id, body.Photo, p.CallerID)
	})

	registerAuthorAction(h, api, huma.Operation{
		OperationID: "attach-link",
		Method:      http.MethodPost,
		Path:        "/submissions/{submission_id}/link",
		Summary:     "Record the published link and complete the submission",
	}, func(ctx context.Context, p domain.Principal, id int64, body AttachLinkRequest) (domain.Submission, error) {
		return h.engine.AttachPublishedLink(ctx, id, body.Link, p.CallerID)
	})
}

// registerAuthorAction registers an operation only the submission's author
// may call.
func registerAuthorAction[B any](h handlers, api huma.API, op huma.Operation, fn func(ctx context.Context, p domain.Principal, id int64, body B) (domain.Submission, error)) {
	op.Errors = []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity}
	huma.Register(api, op, func(ctx context.Context, input *struct {
		SubmissionID int64 `path:"submission_id"`
		Body         B     `json:"body"`
	}) (*submissionOutput, error) {
		p, authErr := principalFromRequest(ctx, h.identity)
		if authErr != nil {
			return nil, authErr
		}
		current, err := h.engine.GetSubmission(ctx, input.SubmissionID)
		if err != nil {
			return nil, handleError(err)
		}
		if authErr := requireAuthor(p, current, false); authErr != nil {
			return nil, authErr
		}
		s, err := fn(ctx, p, input.SubmissionID, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &submissionOutput{Body: submissionResponse(s)}, nil
	})
}
