package pressroomsdk

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client is a minimal Pressroom HTTP API client.
type Client struct {
	BaseURL string
	// BearerToken authenticates every request. CallerID is sent as
	// X-Caller-Id when no token is set and the server allows it.
	BearerToken string
	CallerID    string
	Timeout     time.Duration

	http *resty.Client
}

// New creates a client with sane defaults. baseURL includes the API base
// path, e.g. http://127.0.0.1:8080/v0.
func New(baseURL string) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Timeout: 10 * time.Second,
	}
	c.client()
	return c
}

// As returns a copy of the client acting as another caller.
func (c *Client) As(callerID string) *Client {
	cp := *c
	cp.CallerID = callerID
	cp.BearerToken = ""
	return &cp
}

// Task is a press-release task with its derived status.
type Task struct {
	ID           int64        `json:"id"`
	PressRelease string       `json:"press_release"`
	Photo        string       `json:"photo,omitempty"`
	Deadline     time.Time    `json:"deadline"`
	Status       string       `json:"status"`
	CreatedBy    string       `json:"created_by"`
	CreatedAt    time.Time    `json:"created_at"`
	Assignments  []Assignment `json:"assignments,omitempty"`
}

// Assignment is an outlet's claim on a task.
type Assignment struct {
	ID         int64     `json:"id"`
	TaskID     int64     `json:"task_id"`
	Outlet     string    `json:"outlet"`
	AssignedAt time.Time `json:"assigned_at"`
	Status     string    `json:"status"`
}

// Submission is a piece moving through moderation.
type Submission struct {
	ID              int64     `json:"id"`
	TaskID          int64     `json:"task_id"`
	AuthorID        int64     `json:"author_id"`
	Outlet          string    `json:"outlet"`
	Content         string    `json:"content"`
	Photo           string    `json:"photo,omitempty"`
	SubmittedAt     time.Time `json:"submitted_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Status          string    `json:"status"`
	RevisionTarget  string    `json:"revision_target,omitempty"`
	RevisionComment string    `json:"revision_comment,omitempty"`
	PublishedLink   string    `json:"published_link,omitempty"`
	Version         int64     `json:"version"`
	Actions         []string  `json:"actions"`
}

// User is a roster entry.
type User struct {
	ID            int64  `json:"id"`
	CallerID      string `json:"caller_id"`
	Username      string `json:"username,omitempty"`
	Outlet        string `json:"outlet,omitempty"`
	IsEditor      bool   `json:"is_editor"`
	IsSuperEditor bool   `json:"is_super_editor"`
}

// Me is the resolved caller.
type Me struct {
	UserID        int64    `json:"user_id"`
	CallerID      string   `json:"caller_id"`
	Outlet        string   `json:"outlet,omitempty"`
	IsEditor      bool     `json:"is_editor"`
	IsSuperEditor bool     `json:"is_super_editor"`
	Roles         []string `json:"roles"`
}

// Event represents an audit log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateTask publishes a press release for outlets to claim.
func (c *Client) CreateTask(ctx context.Context, pressRelease string, deadline time.Time, photo string) (Task, error) {
	body := map[string]any{
		"press_release": pressRelease,
		"deadline":      deadline.UTC().Format(time.RFC3339),
	}
	if photo != "" {
		body["photo"] = photo
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "/tasks", nil, body, &resp)
	return resp, err
}

// ActiveTasks lists the tasks the caller's outlet can work on.
func (c *Client) ActiveTasks(ctx context.Context) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, "/tasks", map[string]string{"scope": "active"}, nil, &resp)
	return resp, err
}

// AllTasks lists every task. Editors only.
func (c *Client) AllTasks(ctx context.Context) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, "/tasks", map[string]string{"scope": "all"}, nil, &resp)
	return resp, err
}

func (c *Client) GetTask(ctx context.Context, id int64) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, "/tasks/"+itoa(id), nil, nil, &resp)
	return resp, err
}

func (c *Client) CancelTask(ctx context.Context, id int64) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "/tasks/"+itoa(id)+"/cancel", nil, nil, &resp)
	return resp, err
}

func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+itoa(id), nil, nil, nil)
}

// ClaimTask claims the task for the caller's outlet.
func (c *Client) ClaimTask(ctx context.Context, id int64) (Assignment, error) {
	var resp Assignment
	err := c.do(ctx, http.MethodPost, "/tasks/"+itoa(id)+"/claim", nil, nil, &resp)
	return resp, err
}

func (c *Client) Assignments(ctx context.Context, taskID int64) ([]Assignment, error) {
	var resp []Assignment
	err := c.do(ctx, http.MethodGet, "/tasks/"+itoa(taskID)+"/assignments", nil, nil, &resp)
	return resp, err
}

func (c *Client) Submit(ctx context.Context, taskID int64, content string) (Submission, error) {
	var resp Submission
	err := c.do(ctx, http.MethodPost, "/tasks/"+itoa(taskID)+"/submissions", nil, map[string]any{"content": content}, &resp)
	return resp, err
}

func (c *Client) TaskSubmissions(ctx context.Context, taskID int64) ([]Submission, error) {
	var resp []Submission
	err := c.do(ctx, http.MethodGet, "/tasks/"+itoa(taskID)+"/submissions", nil, nil, &resp)
	return resp, err
}

// Submissions lists a view: queue, mine or archive.
func (c *Client) Submissions(ctx context.Context, view string, activeOnly bool) ([]Submission, error) {
	var resp []Submission
	query := map[string]string{"view": view}
	if activeOnly {
		query["active"] = "true"
	}
	err := c.do(ctx, http.MethodGet, "/submissions", query, nil, &resp)
	return resp, err
}

func (c *Client) GetSubmission(ctx context.Context, id int64) (Submission, error) {
	var resp Submission
	err := c.do(ctx, http.MethodGet, "/submissions/"+itoa(id), nil, nil, &resp)
	return resp, err
}

func (c *Client) Approve(ctx context.Context, id int64) (Submission, error) {
	return c.submissionAction(ctx, id, "approve", nil)
}

func (c *Client) RequestRevision(ctx context.Context, id int64, comment string, targetsPhoto bool) (Submission, error) {
	return c.submissionAction(ctx, id, "revision", map[string]any{"comment": comment, "targets_photo": targetsPhoto})
}

func (c *Client) Resubmit(ctx context.Context, id int64, content, photo string) (Submission, error) {
	body := map[string]any{}
	if content != "" {
		body["content"] = content
	}
	if photo != "" {
		body["photo"] = photo
	}
	return c.submissionAction(ctx, id, "resubmit", body)
}

func (c *Client) AttachPhoto(ctx context.Context, id int64, photo string) (Submission, error) {
	return c.submissionAction(ctx, id, "photo", map[string]any{"photo": photo})
}

func (c *Client) AttachLink(ctx context.Context, id int64, link string) (Submission, error) {
	return c.submissionAction(ctx, id, "link", map[string]any{"link": link})
}

func (c *Client) submissionAction(ctx context.Context, id int64, action string, body any) (Submission, error) {
	var resp Submission
	err := c.do(ctx, http.MethodPost, "/submissions/"+itoa(id)+"/"+action, nil, body, &resp)
	return resp, err
}

// Roster lists editors and outlet members. filter is all, editors or members.
func (c *Client) Roster(ctx context.Context, filter string) ([]User, error) {
	var resp []User
	err := c.do(ctx, http.MethodGet, "/roster", map[string]string{"filter": filter}, nil, &resp)
	return resp, err
}

func (c *Client) AddEditor(ctx context.Context, callerID, username string) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodPost, "/roster/editors", nil, map[string]any{"caller_id": callerID, "username": username}, &resp)
	return resp, err
}

func (c *Client) RemoveEditor(ctx context.Context, callerID string) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodDelete, "/roster/editors/"+callerID, nil, nil, &resp)
	return resp, err
}

func (c *Client) ToggleSuperEditor(ctx context.Context, callerID string) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodPost, "/roster/editors/"+callerID+"/super", nil, nil, &resp)
	return resp, err
}

func (c *Client) AddMember(ctx context.Context, callerID, username, outlet string) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodPost, "/roster/members", nil, map[string]any{"caller_id": callerID, "username": username, "outlet": outlet}, &resp)
	return resp, err
}

func (c *Client) RemoveMember(ctx context.Context, callerID string) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodDelete, "/roster/members/"+callerID, nil, nil, &resp)
	return resp, err
}

func (c *Client) Me(ctx context.Context) (Me, error) {
	var resp Me
	err := c.do(ctx, http.MethodGet, "/me", nil, nil, &resp)
	return resp, err
}

// DevLogin mints a token for callerID and stores it on the client.
func (c *Client) DevLogin(ctx context.Context, callerID string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/dev/login", nil, map[string]any{"caller_id": callerID}, &resp); err != nil {
		return "", err
	}
	c.BearerToken = resp.Token
	return resp.Token, nil
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	query := map[string]string{}
	if limit > 0 {
		query["limit"] = strconv.Itoa(limit)
	}
	if cursor != "" {
		query["cursor"] = cursor
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, "/events", query, nil, &resp)
	return resp, err
}

func (c *Client) client() *resty.Client {
	if c.http == nil {
		c.http = resty.New().
			SetBaseURL(c.BaseURL).
			SetTimeout(c.Timeout).
			SetHeader("Accept", "application/json")
	}
	return c.http
}

func (c *Client) do(ctx context.Context, method, endpoint string, query map[string]string, body any, out any) error {
	req := c.client().R().SetContext(ctx).SetError(&errorEnvelope{})
	if c.BearerToken != "" {
		req.SetAuthToken(c.BearerToken)
	} else if c.CallerID != "" {
		req.SetHeader("X-Caller-Id", c.CallerID)
	}
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	res, err := req.Execute(method, endpoint)
	if err != nil {
		return err
	}
	if res.IsError() {
		apiErr := &APIError{StatusCode: res.StatusCode(), Body: res.String()}
		if env, ok := res.Error().(*errorEnvelope); ok && env != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Details = env.Error.Details
		}
		return apiErr
	}
	return nil
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
