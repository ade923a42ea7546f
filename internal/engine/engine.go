package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"pressroom/internal/config"
	"pressroom/internal/events"
	"pressroom/internal/notify"
	"pressroom/internal/repo"
)

const defaultRecentWindow = 24 * time.Hour

// Engine owns the task registry, the assignment ledger and the submission
// workflow. It assumes callers were already authorized by the handler layer.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Notify notify.Sink
	Config *config.Config
	Log    logrus.FieldLogger
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{},
		Notify: notify.Nop{},
		Config: cfg,
		Log:    logrus.StandardLogger(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC().Truncate(time.Second)
	}
	return time.Now().UTC().Truncate(time.Second)
}

func (e Engine) log() logrus.FieldLogger {
	if e.Log != nil {
		return e.Log
	}
	return logrus.StandardLogger()
}

func (e Engine) recentWindow() time.Duration {
	if e.Config != nil && e.Config.Workflow.RecentWindow > 0 {
		return e.Config.Workflow.RecentWindow
	}
	return defaultRecentWindow
}

// inTx runs fn in a transaction bound to a tx-scoped repo and event writer.
// Every read inside fn must go through r: the pool holds a single connection.
func (e Engine) inTx(ctx context.Context, fn func(tx *sql.Tx, r repo.Repo) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()
	if err := fn(tx, e.Repo.WithTx(tx)); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func (e Engine) appendEvent(ctx context.Context, tx *sql.Tx, entry events.Entry) error {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w.Append(ctx, tx, entry)
}

// emit hands committed transitions to the sink. Delivery problems are logged
// and never reach the caller. Network sinks belong behind a notify.Dispatcher
// so emit returns without waiting on them.
func (e Engine) emit(ctx context.Context, evts ...notify.Event) {
	if e.Notify == nil {
		return
	}
	for _, evt := range evts {
		if evt.At.IsZero() {
			evt.At = e.now()
		}
		if err := e.Notify.Notify(ctx, evt); err != nil {
			e.log().WithError(err).WithFields(logrus.Fields{
				"kind":          evt.Kind,
				"task_id":       evt.TaskID,
				"submission_id": evt.SubmissionID,
			}).Warn("notification delivery failed")
		}
	}
}
