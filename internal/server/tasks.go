package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"pressroom/internal/domain"
	"pressroom/internal/engine"
	"pressroom/internal/identity"
)

type taskPath struct {
	TaskID int64 `path:"task_id"`
}

func (h handlers) registerTasks(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "create-task",
		Method:      http.MethodPost,
		Path:        "/tasks",
		Summary:     "Create a task from a press release",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx, h.identity, identity.RoleEditor)
		if authErr != nil {
			return nil, authErr
		}
		t, err := h.engine.CreateTask(ctx, engine.CreateTaskOptions{
			PressRelease: input.Body.PressRelease,
			Deadline:     input.Body.Deadline,
			Photo:        input.Body.Photo,
			CreatedBy:    p.CallerID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
		Description: "scope=active lists tasks the caller's outlet can work on; scope=all lists every task and needs the editor role.",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Scope string `query:"scope" enum:"active,all" default:"active"`
	}) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		var (
			tasks []domain.Task
			err   error
		)
		if input.Scope == "all" {
			if _, authErr := requireRole(ctx, h.identity, identity.RoleEditor); authErr != nil {
				return nil, authErr
			}
			tasks, err = h.engine.ListAllTasks(ctx)
		} else {
			p, authErr := principalFromRequest(ctx, h.identity)
			if authErr != nil {
				return nil, authErr
			}
			tasks, err = h.engine.GetActiveTasks(ctx, p.Outlet)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: nonNilSlice(tasks)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get a task with its assignments",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		if _, authErr := principalFromRequest(ctx, h.identity); authErr != nil {
			return nil, authErr
		}
		t, err := h.engine.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		assignments, err := h.engine.ListAssignments(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: TaskResponse{Task: t, Assignments: assignments}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/cancel",
		Summary:     "Cancel a task",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx, h.identity, identity.RoleEditor)
		if authErr != nil {
			return nil, authErr
		}
		t, err := h.engine.CancelTask(ctx, input.TaskID, p.CallerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{task_id}",
		Summary:       "Delete a task with its assignments and submissions",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*struct{}, error) {
		p, authErr := requireRole(ctx, h.identity, identity.RoleEditor)
		if authErr != nil {
			return nil, authErr
		}
		if err := h.engine.DeleteTaskCascade(ctx, input.TaskID, p.CallerID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "claim-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/claim",
		Summary:     "Claim a task for the caller's outlet",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body domain.Assignment `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx, h.identity, identity.RoleOutletMember)
		if authErr != nil {
			return nil, authErr
		}
		a, err := h.engine.ClaimTask(ctx, input.TaskID, p.Outlet)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Assignment `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-assignments",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}/assignments",
		Summary:     "List the outlets holding a claim on a task",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body []domain.Assignment `json:"body"`
	}, error) {
		if _, authErr := requireRole(ctx, h.identity, identity.RoleEditor); authErr != nil {
			return nil, authErr
		}
		items, err := h.engine.ListAssignments(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Assignment `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-task-submissions",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}/submissions",
		Summary:     "List submissions for a task",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body []SubmissionResponse `json:"body"`
	}, error) {
		if _, authErr := requireRole(ctx, h.identity, identity.RoleEditor); authErr != nil {
			return nil, authErr
		}
		items, err := h.engine.ListSubmissionsForTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []SubmissionResponse `json:"body"`
		}{Body: mapSubmissions(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-submission",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/submissions",
		Summary:     "Submit a piece for a claimed task",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		TaskID int64                   `path:"task_id"`
		Body   CreateSubmissionRequest `json:"body"`
	}) (*struct {
		Body SubmissionResponse `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx, h.identity, identity.RoleOutletMember)
		if authErr != nil {
			return nil, authErr
		}
		if err := h.engine.CheckSubmittable(ctx, input.TaskID, p.Outlet); err != nil {
			return nil, handleError(err)
		}
		s, err := h.engine.CreateSubmission(ctx, input.TaskID, p, input.Body.Content)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SubmissionResponse `json:"body"`
		}{Body: submissionResponse(s)}, nil
	})
}
