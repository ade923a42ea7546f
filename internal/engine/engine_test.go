package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"pressroom/internal/config"
	"pressroom/internal/db"
	"pressroom/internal/domain"
	"pressroom/internal/engine"
	"pressroom/internal/identity"
	"pressroom/internal/migrate"
	"pressroom/internal/notify"
	"pressroom/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Roster identity.Roster
	Notes  *notify.Memory
	Ctx    context.Context
	now    *time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	require.NoError(t, err, "open db")
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	_, err = migrate.Migrate(ctx, conn)
	require.NoError(t, err, "migrate")

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	env := &testEnv{Ctx: ctx, now: &now, Notes: &notify.Memory{}}
	clock := func() time.Time { return *env.now }

	eng := engine.New(conn, config.Default())
	eng.Now = clock
	eng.Notify = env.Notes
	env.Engine = eng

	env.Roster = identity.New(conn)
	env.Roster.Now = clock
	return env
}

func (env *testEnv) advance(d time.Duration) {
	*env.now = env.now.Add(d)
}

func (env *testEnv) member(t *testing.T, callerID, outlet string) domain.Principal {
	t.Helper()
	u, err := env.Roster.AddOutletMember(env.Ctx, callerID, callerID, outlet, "system")
	require.NoError(t, err, "add member %s", callerID)
	return u.Principal()
}

func (env *testEnv) task(t *testing.T, deadline time.Duration) domain.Task {
	t.Helper()
	task, err := env.Engine.CreateTask(env.Ctx, engine.CreateTaskOptions{
		PressRelease: "City opens new library",
		Deadline:     env.now.Add(deadline),
		CreatedBy:    "editor-1",
	})
	require.NoError(t, err, "create task")
	return task
}

// claimAndSubmit claims the task for the author's outlet and opens a submission.
func (env *testEnv) claimAndSubmit(t *testing.T, taskID int64, author domain.Principal) domain.Submission {
	t.Helper()
	if a, err := env.Engine.GetAssignment(env.Ctx, taskID, author.Outlet); err != nil || a == nil {
		_, err := env.Engine.ClaimTask(env.Ctx, taskID, author.Outlet)
		require.NoError(t, err, "claim")
	}
	s, err := env.Engine.CreateSubmission(env.Ctx, taskID, author, "Draft about the library")
	require.NoError(t, err, "create submission")
	return s
}

// publish drives a fresh submission through to COMPLETED.
func (env *testEnv) publish(t *testing.T, id int64) domain.Submission {
	t.Helper()
	_, err := env.Engine.Approve(env.Ctx, id, "editor-1")
	require.NoError(t, err)
	_, err = env.Engine.AttachPhoto(env.Ctx, id, "photo.jpg", "author")
	require.NoError(t, err)
	_, err = env.Engine.Approve(env.Ctx, id, "editor-1")
	require.NoError(t, err)
	s, err := env.Engine.AttachPublishedLink(env.Ctx, id, "https://news.example/library", "author")
	require.NoError(t, err)
	return s
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateTask(env.Ctx, engine.CreateTaskOptions{PressRelease: "  ", Deadline: env.now.Add(time.Hour)})
	var verr engine.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "press_release", verr.Field)

	_, err = env.Engine.CreateTask(env.Ctx, engine.CreateTaskOptions{PressRelease: "release", Deadline: env.now.Add(-time.Minute)})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "deadline", verr.Field)

	_, err = env.Engine.CreateTask(env.Ctx, engine.CreateTaskOptions{PressRelease: "release", Deadline: *env.now})
	require.ErrorAs(t, err, &verr, "deadline equal to now is not in the future")

	task := env.task(t, time.Hour)
	require.Equal(t, domain.TaskNew, task.Status)
	require.Equal(t, []notify.Kind{notify.TaskCreated}, env.Notes.Kinds())
}

func TestClaimScenarios(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, time.Hour)

	a, err := env.Engine.ClaimTask(env.Ctx, task.ID, "daily-news")
	require.NoError(t, err)
	require.Equal(t, domain.AssignmentInProgress, a.Status)
	got, err := env.Engine.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TaskInProgress, got.Status)

	_, err = env.Engine.ClaimTask(env.Ctx, task.ID, "daily-news")
	var claimed engine.AlreadyClaimedError
	require.ErrorAs(t, err, &claimed)
	require.Equal(t, "daily-news", claimed.Outlet)

	_, err = env.Engine.ClaimTask(env.Ctx, task.ID, "evening-post")
	require.NoError(t, err, "a different outlet may claim the same task")

	assignments, err := env.Engine.ListAssignments(env.Ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 2)

	lookup, err := env.Engine.GetAssignment(env.Ctx, task.ID, "weekly")
	require.NoError(t, err)
	require.Nil(t, lookup)
}

func TestClaimMissingAndClosedTask(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.ClaimTask(env.Ctx, 404, "daily-news")
	var nf engine.NotFoundError
	require.ErrorAs(t, err, &nf)
	require.True(t, errors.Is(err, repo.ErrNotFound))

	_, err = env.Engine.ClaimTask(env.Ctx, 404, " ")
	var verr engine.ValidationError
	require.ErrorAs(t, err, &verr)

	cancelled := env.task(t, time.Hour)
	_, err = env.Engine.CancelTask(env.Ctx, cancelled.ID, "editor-1")
	require.NoError(t, err)
	_, err = env.Engine.ClaimTask(env.Ctx, cancelled.ID, "daily-news")
	var inv engine.InvalidStateError
	require.ErrorAs(t, err, &inv)
	require.Equal(t, string(domain.TaskCancelled), inv.Status)

	expiring := env.task(t, time.Hour)
	env.advance(2 * time.Hour)
	_, err = env.Engine.ClaimTask(env.Ctx, expiring.ID, "daily-news")
	require.ErrorAs(t, err, &inv)
	require.Equal(t, string(domain.TaskExpired), inv.Status)
}

func TestConcurrentClaimsHaveOneWinner(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, time.Hour)

	const n = 16
	var (
		mu      sync.Mutex
		won     int
		claimed int
	)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := env.Engine.ClaimTask(env.Ctx, task.ID, "daily-news")
			mu.Lock()
			defer mu.Unlock()
			var ac engine.AlreadyClaimedError
			switch {
			case err == nil:
				won++
			case errors.As(err, &ac):
				claimed++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, 1, won)
	require.Equal(t, n-1, claimed)

	assignments, err := env.Engine.ListAssignments(env.Ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
}

func TestFulfilledOutletCannotReclaim(t *testing.T) {
	env := newTestEnv(t)
	author := env.member(t, "tg-100", "daily-news")
	task := env.task(t, time.Hour)
	s := env.claimAndSubmit(t, task.ID, author)

	_, err := env.Engine.Approve(env.Ctx, s.ID, "editor-1")
	require.NoError(t, err)
	_, err = env.Engine.AttachPhoto(env.Ctx, s.ID, "photo.jpg", author.CallerID)
	require.NoError(t, err)
	_, err = env.Engine.Approve(env.Ctx, s.ID, "editor-1")
	require.NoError(t, err)

	// Drop the claim directly so only the delivered submission guards the task.
	_, err = env.Engine.Repo.DeleteAssignments(env.Ctx, task.ID)
	require.NoError(t, err)

	_, err = env.Engine.ClaimTask(env.Ctx, task.ID, "daily-news")
	var ff engine.AlreadyFulfilledError
	require.ErrorAs(t, err, &ff)
	require.Equal(t, task.ID, ff.TaskID)
}

func TestPublicationFlow(t *testing.T) {
	env := newTestEnv(t)
	author := env.member(t, "tg-100", "daily-news")
	task := env.task(t, time.Hour)
	s := env.claimAndSubmit(t, task.ID, author)
	require.Equal(t, domain.SubmissionPending, s.Status)
	env.Notes.Reset()

	s, err := env.Engine.Approve(env.Ctx, s.ID, "editor-1")
	require.NoError(t, err)
	require.Equal(t, domain.SubmissionTextApproved, s.Status)

	_, err = env.Engine.Approve(env.Ctx, s.ID, "editor-1")
	var inv engine.InvalidStateError
	require.ErrorAs(t, err, &inv, "approve needs a photo first")

	s, err = env.Engine.AttachPhoto(env.Ctx, s.ID, "photo.jpg", author.CallerID)
	require.NoError(t, err)
	require.Equal(t, domain.SubmissionPhotoPending, s.Status)
	require.Equal(t, "photo.jpg", s.Photo)

	s, err = env.Engine.Approve(env.Ctx, s.ID, "editor-1")
	require.NoError(t, err)
	require.Equal(t, domain.SubmissionApproved, s.Status)

	s, err = env.Engine.AttachPublishedLink(env.Ctx, s.ID, "http://x.example", author.CallerID)
	require.NoError(t, err)
	require.Equal(t, domain.SubmissionCompleted, s.Status)

	_, err = env.Engine.Approve(env.Ctx, s.ID, "editor-1")
	require.ErrorAs(t, err, &inv)
	_, err = env.Engine.RequestRevision(env.Ctx, s.ID, "one more thing", false, "editor-1")
	require.ErrorAs(t, err, &inv)

	_, err = env.Engine.AttachPublishedLink(env.Ctx, s.ID, "http://y.example", author.CallerID)
	var done engine.AlreadyCompletedError
	require.ErrorAs(t, err, &done)
	require.Equal(t, "http://x.example", done.Link)
	_, err = env.Engine.AttachPublishedLink(env.Ctx, s.ID, "not a link", author.CallerID)
	require.ErrorAs(t, err, &done, "a completed submission reports its link before the new one is validated")

	require.Equal(t, []notify.Kind{
		notify.TextApproved,
		notify.PhotoRequested,
		notify.PhotoSubmitted,
		notify.FullyApproved,
		notify.Completed,
	}, env.Notes.Kinds())

	as, err := env.Engine.GetAssignment(env.Ctx, task.ID, "daily-news")
	require.NoError(t, err)
	require.Equal(t, domain.AssignmentCompleted, as.Status)

	env.advance(2 * time.Hour)
	got, err := env.Engine.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TaskCompleted, got.Status)

	events, err := env.Engine.Repo.LatestEvents(env.Ctx, repo.EventFilters{EntityKind: "submission", Limit: 100})
	require.NoError(t, err)
	require.Len(t, events, 5, "created plus four transitions")
}

func TestTextRevisionRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	author := env.member(t, "tg-100", "daily-news")
	task := env.task(t, time.Hour)
	s := env.claimAndSubmit(t, task.ID, author)

	_, err := env.Engine.RequestRevision(env.Ctx, s.ID, "  ", false, "editor-1")
	var verr engine.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = env.Engine.RequestRevision(env.Ctx, s.ID, "no photo yet", true, "editor-1")
	var inv engine.InvalidStateError
	require.ErrorAs(t, err, &inv)

	s, err = env.Engine.RequestRevision(env.Ctx, s.ID, "Add a quote", false, "editor-1")
	require.NoError(t, err)
	require.Equal(t, domain.SubmissionRevision, s.Status)
	require.Equal(t, domain.RevisionText, s.RevisionTarget)
	require.Equal(t, "Add a quote", s.RevisionComment)

	_, err = env.Engine.RequestRevision(env.Ctx, s.ID, "again", false, "editor-1")
	require.ErrorAs(t, err, &inv, "a revision is already pending")
	_, err = env.Engine.Approve(env.Ctx, s.ID, "editor-1")
	require.ErrorAs(t, err, &inv)

	_, err = env.Engine.ResubmitContent(env.Ctx, s.ID, engine.ResubmitOptions{Content: "text", Photo: "p.jpg"}, author.CallerID)
	require.ErrorAs(t, err, &inv, "photo is rejected during a text revision")

	original := s.Content
	s, err = env.Engine.ResubmitContent(env.Ctx, s.ID, engine.ResubmitOptions{}, author.CallerID)
	require.NoError(t, err, "content is optional, the current text is kept")
	require.Equal(t, domain.SubmissionPending, s.Status)
	require.Equal(t, original, s.Content)

	_, err = env.Engine.RequestRevision(env.Ctx, s.ID, "Still missing the quote", false, "editor-1")
	require.NoError(t, err)
	s, err = env.Engine.ResubmitContent(env.Ctx, s.ID, engine.ResubmitOptions{Content: "Draft with a quote"}, author.CallerID)
	require.NoError(t, err)
	require.Equal(t, domain.SubmissionPending, s.Status)
	require.Equal(t, domain.RevisionNone, s.RevisionTarget)
	require.Empty(t, s.RevisionComment)
	require.Equal(t, "Draft with a quote", s.Content)

	stored, err := env.Engine.GetSubmission(env.Ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, s, stored)
}

func TestPhotoRevisionRestoresTextApproved(t *testing.T) {
	env := newTestEnv(t)
	author := env.member(t, "tg-100", "daily-news")
	task := env.task(t, time.Hour)

	for _, from := range []domain.SubmissionStatus{domain.SubmissionTextApproved, domain.SubmissionPhotoPending} {
		s := env.claimAndSubmit(t, task.ID, author)
		s, err := env.Engine.Approve(env.Ctx, s.ID, "editor-1")
		require.NoError(t, err)
		if from == domain.SubmissionPhotoPending {
			s, err = env.Engine.AttachPhoto(env.Ctx, s.ID, "blurry.jpg", author.CallerID)
			require.NoError(t, err)
		}
		require.Equal(t, from, s.Status)

		s, err = env.Engine.RequestRevision(env.Ctx, s.ID, "Need a sharper photo", false, "editor-1")
		require.NoError(t, err)
		require.Equal(t, domain.RevisionPhoto, s.RevisionTarget, "from %s", from)

		s, err = env.Engine.ResubmitContent(env.Ctx, s.ID, engine.ResubmitOptions{Content: "tweaked text", Photo: "sharp.jpg"}, author.CallerID)
		require.NoError(t, err)
		require.Equal(t, domain.SubmissionTextApproved, s.Status)
		require.Equal(t, domain.RevisionNone, s.RevisionTarget)
		require.Equal(t, "tweaked text", s.Content)
		require.Equal(t, "sharp.jpg", s.Photo)

		// close it so the next round can open a new submission
		s, err = env.Engine.AttachPhoto(env.Ctx, s.ID, "sharp.jpg", author.CallerID)
		require.NoError(t, err)
		s, err = env.Engine.Approve(env.Ctx, s.ID, "editor-1")
		require.NoError(t, err)
		_, err = env.Engine.AttachPublishedLink(env.Ctx, s.ID, "https://news.example/a", author.CallerID)
		require.NoError(t, err)
	}
}

func TestTransitionTableWalk(t *testing.T) {
	type step struct {
		from   domain.SubmissionStatus
		action engine.Action
	}
	legal := map[step]bool{
		{domain.SubmissionPending, engine.ActionApprove}:              true,
		{domain.SubmissionPending, engine.ActionRequestRevision}:      true,
		{domain.SubmissionTextApproved, engine.ActionAttachPhoto}:     true,
		{domain.SubmissionTextApproved, engine.ActionRequestRevision}: true,
		{domain.SubmissionPhotoPending, engine.ActionApprove}:         true,
		{domain.SubmissionPhotoPending, engine.ActionRequestRevision}: true,
		{domain.SubmissionApproved, engine.ActionAttachLink}:          true,
		{domain.SubmissionRevision, engine.ActionResubmit}:            true,
	}
	statuses := []domain.SubmissionStatus{
		domain.SubmissionPending, domain.SubmissionTextApproved, domain.SubmissionPhotoPending,
		domain.SubmissionApproved, domain.SubmissionRevision, domain.SubmissionCompleted,
	}
	actions := []engine.Action{
		engine.ActionApprove, engine.ActionAttachPhoto, engine.ActionAttachLink,
		engine.ActionRequestRevision, engine.ActionResubmit,
	}
	for _, st := range statuses {
		allowed := engine.AllowedActions(st)
		for _, a := range actions {
			require.Equal(t, legal[step{st, a}], contains(allowed, a), "%s --%s-->", st, a)
		}
	}
}

func contains(actions []engine.Action, a engine.Action) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}

func TestAttachRules(t *testing.T) {
	env := newTestEnv(t)
	author := env.member(t, "tg-100", "daily-news")
	task := env.task(t, time.Hour)
	s := env.claimAndSubmit(t, task.ID, author)

	_, err := env.Engine.AttachPhoto(env.Ctx, s.ID, "early.jpg", author.CallerID)
	var inv engine.InvalidStateError
	require.ErrorAs(t, err, &inv)
	require.Contains(t, err.Error(), "cannot attach photo before text is approved")

	_, err = env.Engine.AttachPublishedLink(env.Ctx, s.ID, "https://news.example/a", author.CallerID)
	require.ErrorAs(t, err, &inv)

	var verr engine.ValidationError
	for _, link := range []string{"", "news.example/a", "ftp://news.example/a", "https://"} {
		_, err = env.Engine.AttachPublishedLink(env.Ctx, s.ID, link, author.CallerID)
		require.ErrorAs(t, err, &verr, "link %q", link)
	}

	_, err = env.Engine.Approve(env.Ctx, 999, "editor-1")
	var nf engine.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestCreateSubmissionRules(t *testing.T) {
	env := newTestEnv(t)
	author := env.member(t, "tg-100", "daily-news")
	task := env.task(t, time.Hour)

	_, err := env.Engine.CreateSubmission(env.Ctx, 404, author, "text")
	var nf engine.NotFoundError
	require.ErrorAs(t, err, &nf)

	_, err = env.Engine.CreateSubmission(env.Ctx, task.ID, author, " ")
	var verr engine.ValidationError
	require.ErrorAs(t, err, &verr)

	first := env.claimAndSubmit(t, task.ID, author)
	_, err = env.Engine.CreateSubmission(env.Ctx, task.ID, author, "second draft")
	var dup engine.DuplicateSubmissionError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, first.ID, dup.ExistingID)

	env.publish(t, first.ID)
	next, err := env.Engine.CreateSubmission(env.Ctx, task.ID, author, "follow-up piece")
	require.NoError(t, err, "completed submissions do not block a new one")
	require.NotEqual(t, first.ID, next.ID)

	colleague := env.member(t, "tg-101", "daily-news")
	_, err = env.Engine.CreateSubmission(env.Ctx, task.ID, colleague, "colleague draft")
	require.NoError(t, err, "the one-open rule is per author")
}

func TestCheckSubmittable(t *testing.T) {
	env := newTestEnv(t)
	author := env.member(t, "tg-100", "daily-news")
	task := env.task(t, time.Hour)

	var nc engine.NotClaimedError
	require.ErrorAs(t, env.Engine.CheckSubmittable(env.Ctx, task.ID, "daily-news"), &nc)
	require.Equal(t, "daily-news", nc.Outlet)

	s := env.claimAndSubmit(t, task.ID, author)
	require.NoError(t, env.Engine.CheckSubmittable(env.Ctx, task.ID, "daily-news"))

	env.publish(t, s.ID)
	var af engine.AlreadyFulfilledError
	require.ErrorAs(t, env.Engine.CheckSubmittable(env.Ctx, task.ID, "daily-news"), &af)
	require.Equal(t, task.ID, af.TaskID)
}

func TestActiveTaskVisibility(t *testing.T) {
	env := newTestEnv(t)
	author := env.member(t, "tg-100", "daily-news")
	open := env.task(t, 2*time.Hour)
	mine := env.task(t, 2*time.Hour)
	theirs := env.task(t, 2*time.Hour)
	delivered := env.task(t, 2*time.Hour)
	expired := env.task(t, 30*time.Minute)

	_, err := env.Engine.ClaimTask(env.Ctx, mine.ID, "daily-news")
	require.NoError(t, err)
	_, err = env.Engine.ClaimTask(env.Ctx, theirs.ID, "evening-post")
	require.NoError(t, err)
	s := env.claimAndSubmit(t, delivered.ID, author)
	env.publish(t, s.ID)
	env.advance(time.Hour)

	ids := func(tasks []domain.Task) []int64 {
		var res []int64
		for _, task := range tasks {
			res = append(res, task.ID)
		}
		return res
	}

	editorView, err := env.Engine.GetActiveTasks(env.Ctx, "")
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{open.ID}, ids(editorView))

	outletView, err := env.Engine.GetActiveTasks(env.Ctx, "daily-news")
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{open.ID, mine.ID}, ids(outletView))

	all, err := env.Engine.ListAllTasks(env.Ctx)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for _, task := range all {
		if task.ID == expired.ID {
			require.Equal(t, domain.TaskExpired, task.Status)
		}
	}
}

func TestDeleteTaskCascade(t *testing.T) {
	env := newTestEnv(t)
	author := env.member(t, "tg-100", "daily-news")
	task := env.task(t, time.Hour)
	s := env.claimAndSubmit(t, task.ID, author)

	require.NoError(t, env.Engine.DeleteTaskCascade(env.Ctx, task.ID, "editor-1"))

	_, err := env.Engine.GetTask(env.Ctx, task.ID)
	var nf engine.NotFoundError
	require.ErrorAs(t, err, &nf)
	_, err = env.Engine.GetSubmission(env.Ctx, s.ID)
	require.ErrorAs(t, err, &nf)
	a, err := env.Engine.GetAssignment(env.Ctx, task.ID, "daily-news")
	require.NoError(t, err)
	require.Nil(t, a)

	err = env.Engine.DeleteTaskCascade(env.Ctx, task.ID, "editor-1")
	require.ErrorAs(t, err, &nf)
}

func TestCancelTask(t *testing.T) {
	env := newTestEnv(t)
	author := env.member(t, "tg-100", "daily-news")
	task := env.task(t, time.Hour)
	_, err := env.Engine.ClaimTask(env.Ctx, task.ID, "daily-news")
	require.NoError(t, err)

	got, err := env.Engine.CancelTask(env.Ctx, task.ID, "editor-1")
	require.NoError(t, err)
	require.Equal(t, domain.TaskCancelled, got.Status)

	_, err = env.Engine.CancelTask(env.Ctx, task.ID, "editor-1")
	var inv engine.InvalidStateError
	require.ErrorAs(t, err, &inv)

	_, err = env.Engine.CreateSubmission(env.Ctx, task.ID, author, "late draft")
	require.ErrorAs(t, err, &inv)
}

func TestFailingSinkKeepsTransition(t *testing.T) {
	env := newTestEnv(t)
	author := env.member(t, "tg-100", "daily-news")
	task := env.task(t, time.Hour)
	s := env.claimAndSubmit(t, task.ID, author)

	calls := 0
	env.Engine.Notify = notify.SinkFunc(func(context.Context, notify.Event) error {
		calls++
		return errors.New("chat unreachable")
	})
	got, err := env.Engine.Approve(env.Ctx, s.ID, "editor-1")
	require.NoError(t, err)
	require.Equal(t, domain.SubmissionTextApproved, got.Status)
	require.Equal(t, 2, calls)

	stored, err := env.Engine.GetSubmission(env.Ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SubmissionTextApproved, stored.Status)
}

func TestQueuedSinkDoesNotBlockTransitions(t *testing.T) {
	env := newTestEnv(t)
	author := env.member(t, "tg-100", "daily-news")
	task := env.task(t, time.Hour)
	s := env.claimAndSubmit(t, task.ID, author)

	release := make(chan struct{})
	delivered := &notify.Memory{}
	slow := notify.SinkFunc(func(ctx context.Context, evt notify.Event) error {
		<-release
		return delivered.Notify(ctx, evt)
	})
	d := notify.NewDispatcher(slow, 8, nil)
	env.Engine.Notify = d

	done := make(chan error, 1)
	go func() {
		_, err := env.Engine.Approve(env.Ctx, s.ID, "editor-1")
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("approve waited on notification delivery")
	}
	require.Empty(t, delivered.Events())

	close(release)
	require.NoError(t, d.Close())
	require.Equal(t, []notify.Kind{notify.TextApproved, notify.PhotoRequested}, delivered.Kinds())
}

func TestConcurrentApproveHasOneWinner(t *testing.T) {
	env := newTestEnv(t)
	author := env.member(t, "tg-100", "daily-news")
	task := env.task(t, time.Hour)
	s := env.claimAndSubmit(t, task.ID, author)

	const n = 8
	var (
		mu  sync.Mutex
		won int
	)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := env.Engine.Approve(env.Ctx, s.ID, "editor-1")
			var inv engine.InvalidStateError
			if err != nil && !errors.As(err, &inv) {
				return err
			}
			if err == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, 1, won)
}

func TestSubmissionViews(t *testing.T) {
	env := newTestEnv(t)
	author := env.member(t, "tg-100", "daily-news")
	other := env.member(t, "tg-200", "evening-post")
	t1 := env.task(t, 72*time.Hour)
	t2 := env.task(t, 72*time.Hour)

	done := env.claimAndSubmit(t, t1.ID, author)
	env.publish(t, done.ID)
	open := env.claimAndSubmit(t, t2.ID, author)
	theirs := env.claimAndSubmit(t, t1.ID, other)

	queue, err := env.Engine.ListReviewQueue(env.Ctx)
	require.NoError(t, err)
	require.Len(t, queue, 2)

	mine, err := env.Engine.ListAuthorSubmissions(env.Ctx, author.UserID, true)
	require.NoError(t, err)
	require.Len(t, mine, 2)

	env.advance(48 * time.Hour)
	mine, err = env.Engine.ListAuthorSubmissions(env.Ctx, author.UserID, true)
	require.NoError(t, err)
	require.Len(t, mine, 1, "old completed work drops out of the active view")
	require.Equal(t, open.ID, mine[0].ID)

	archive, err := env.Engine.ListArchive(env.Ctx, 0)
	require.NoError(t, err)
	require.Len(t, archive, 1)
	archive, err = env.Engine.ListArchive(env.Ctx, other.UserID)
	require.NoError(t, err)
	require.Empty(t, archive)

	forTask, err := env.Engine.ListSubmissionsForTask(env.Ctx, t1.ID)
	require.NoError(t, err)
	require.Len(t, forTask, 2)
	require.Equal(t, theirs.ID, forTask[0].ID)
}

func TestDeriveTaskStatus(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)
	claimed := []domain.Assignment{{Outlet: "a", Status: domain.AssignmentInProgress}}
	delivered := []domain.Assignment{{Outlet: "a", Status: domain.AssignmentCompleted}}

	cases := []struct {
		name        string
		stored      domain.TaskStatus
		assignments []domain.Assignment
		deadline    time.Time
		want        domain.TaskStatus
	}{
		{"unclaimed", domain.TaskNew, nil, future, domain.TaskNew},
		{"claimed", domain.TaskNew, claimed, future, domain.TaskInProgress},
		{"stale stored value", domain.TaskInProgress, nil, future, domain.TaskNew},
		{"expired", domain.TaskInProgress, claimed, past, domain.TaskExpired},
		{"delivered before deadline", domain.TaskInProgress, delivered, past, domain.TaskCompleted},
		{"cancelled wins", domain.TaskCancelled, claimed, future, domain.TaskCancelled},
		{"deadline instant is still open", domain.TaskNew, nil, now, domain.TaskNew},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, engine.DeriveTaskStatus(tc.stored, tc.assignments, tc.deadline, now))
		})
	}
}
