package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"pressroom/internal/domain"
	"pressroom/internal/identity"
	"pressroom/internal/report"
)

type callerPath struct {
	CallerID string `path:"caller_id"`
}

type userOutput struct {
	Body domain.User `json:"body"`
}

func (h handlers) registerRoster(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-roster",
		Method:      http.MethodGet,
		Path:        "/roster",
		Summary:     "List editors and outlet members",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Filter string `query:"filter" enum:"all,editors,members" default:"all"`
		Outlet string `query:"outlet"`
	}) (*struct {
		Body []domain.User `json:"body"`
	}, error) {
		if _, authErr := requireRole(ctx, h.identity, identity.RoleSuperEditor); authErr != nil {
			return nil, authErr
		}
		users, err := h.roster.List(ctx, identity.ListFilter(input.Filter), input.Outlet)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.User `json:"body"`
		}{Body: nonNilSlice(users)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-editor",
		Method:      http.MethodPost,
		Path:        "/roster/editors",
		Summary:     "Grant the editor role",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body EditorRequest `json:"body"`
	}) (*userOutput, error) {
		p, authErr := requireRole(ctx, h.identity, identity.RoleSuperEditor)
		if authErr != nil {
			return nil, authErr
		}
		u, err := h.roster.AddEditor(ctx, input.Body.CallerID, input.Body.Username, p.CallerID)
		if err != nil {
			return nil, rosterError(err)
		}
		return &userOutput{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-editor",
		Method:      http.MethodDelete,
		Path:        "/roster/editors/{caller_id}",
		Summary:     "Revoke editor and super-editor roles",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *callerPath) (*userOutput, error) {
		p, authErr := requireRole(ctx, h.identity, identity.RoleSuperEditor)
		if authErr != nil {
			return nil, authErr
		}
		u, err := h.roster.RemoveEditor(ctx, input.CallerID, p.CallerID)
		if err != nil {
			return nil, rosterError(err)
		}
		return &userOutput{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "toggle-super-editor",
		Method:      http.MethodPost,
		Path:        "/roster/editors/{caller_id}/super",
		Summary:     "Toggle super-editor rights of an editor",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *callerPath) (*userOutput, error) {
		p, authErr := requireRole(ctx, h.identity, identity.RoleSuperEditor)
		if authErr != nil {
			return nil, authErr
		}
		u, err := h.roster.ToggleSuperEditor(ctx, input.CallerID, p.CallerID)
		if err != nil {
			return nil, rosterError(err)
		}
		return &userOutput{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-member",
		Method:      http.MethodPost,
		Path:        "/roster/members",
		Summary:     "Affiliate a caller with an outlet",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body MemberRequest `json:"body"`
	}) (*userOutput, error) {
		p, authErr := requireRole(ctx, h.identity, identity.RoleSuperEditor)
		if authErr != nil {
			return nil, authErr
		}
		u, err := h.roster.AddOutletMember(ctx, input.Body.CallerID, input.Body.Username, input.Body.Outlet, p.CallerID)
		if err != nil {
			return nil, rosterError(err)
		}
		return &userOutput{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-member",
		Method:      http.MethodDelete,
		Path:        "/roster/members/{caller_id}",
		Summary:     "Remove a caller from its outlet",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *callerPath) (*userOutput, error) {
		p, authErr := requireRole(ctx, h.identity, identity.RoleSuperEditor)
		if authErr != nil {
			return nil, authErr
		}
		u, err := h.roster.RemoveOutletMember(ctx, input.CallerID, p.CallerID)
		if err != nil {
			return nil, rosterError(err)
		}
		return &userOutput{Body: u}, nil
	})
}

// rosterError reports a missing target user as 404; handleError treats an
// unknown caller as an authentication failure.
func rosterError(err error) huma.StatusError {
	var uc identity.UnknownCallerError
	if errors.As(err, &uc) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), map[string]any{"caller_id": uc.CallerID})
	}
	return handleError(err)
}

func (h handlers) registerReports(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "export-report",
		Method:      http.MethodGet,
		Path:        "/reports",
		Summary:     "Export every task with its submissions",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID int64 `query:"task_id" doc:"limit the report to one task"`
	}) (*struct {
		Body report.Report `json:"body"`
	}, error) {
		if _, authErr := requireRole(ctx, h.identity, identity.RoleEditor); authErr != nil {
			return nil, authErr
		}
		if input.TaskID != 0 {
			if _, err := h.engine.GetTask(ctx, input.TaskID); err != nil {
				return nil, handleError(err)
			}
		}
		rep, err := report.Build(ctx, h.engine, input.TaskID, time.Now())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body report.Report `json:"body"`
		}{Body: rep}, nil
	})
}
