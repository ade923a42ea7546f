package server

import (
	"encoding/json"
	"time"

	"pressroom/internal/domain"
	"pressroom/internal/engine"
	"pressroom/internal/identity"
)

// Request payloads

type CreateTaskRequest struct {
	PressRelease string    `json:"press_release" minLength:"1"`
	Deadline     time.Time `json:"deadline" format:"date-time"`
	Photo        string    `json:"photo,omitempty"`
}

type CreateSubmissionRequest struct {
	Content string `json:"content" minLength:"1"`
}

type RevisionRequest struct {
	Comment      string `json:"comment" minLength:"1"`
	TargetsPhoto bool   `json:"targets_photo,omitempty"`
}

type ResubmitRequest struct {
	Content string `json:"content,omitempty"`
	Photo   string `json:"photo,omitempty"`
}

type AttachPhotoRequest struct {
	Photo string `json:"photo" minLength:"1"`
}

type AttachLinkRequest struct {
	Link string `json:"link"`
}

type EditorRequest struct {
	CallerID string `json:"caller_id" minLength:"1"`
	Username string `json:"username,omitempty"`
}

type MemberRequest struct {
	CallerID string `json:"caller_id" minLength:"1"`
	Username string `json:"username,omitempty"`
	Outlet   string `json:"outlet" minLength:"1"`
}

type DevLoginRequest struct {
	CallerID string `json:"caller_id"`
}

// Response payloads

type TaskResponse struct {
	domain.Task
	Assignments []domain.Assignment `json:"assignments,omitempty"`
}

type SubmissionResponse struct {
	domain.Submission
	// Actions the state machine accepts next.
	Actions []string `json:"actions"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type WhoAmIResponse struct {
	domain.Principal
	Roles []string `json:"roles"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

// Conversion helpers

func submissionResponse(s domain.Submission) SubmissionResponse {
	actions := []string{}
	for _, a := range engine.AllowedActions(s.Status) {
		actions = append(actions, string(a))
	}
	return SubmissionResponse{Submission: s, Actions: actions}
}

func mapSubmissions(items []domain.Submission) []SubmissionResponse {
	res := make([]SubmissionResponse, 0, len(items))
	for _, s := range items {
		res = append(res, submissionResponse(s))
	}
	return res
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func whoAmIResponse(p domain.Principal) WhoAmIResponse {
	roles := identity.Roles(p).ToSlice()
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	return WhoAmIResponse{Principal: p, Roles: sortedStrings(names)}
}

func decodeJSONMap(raw string) map[string]any {
	out := map[string]any{}
	if raw == "" {
		return out
	}
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
