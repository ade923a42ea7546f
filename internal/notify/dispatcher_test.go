package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func TestDispatcherDoesNotWaitForSlowSink(t *testing.T) {
	started := make(chan Event, 4)
	release := make(chan struct{})
	mem := &Memory{}
	slow := SinkFunc(func(ctx context.Context, evt Event) error {
		started <- evt
		<-release
		return mem.Notify(ctx, evt)
	})
	log, _ := logtest.NewNullLogger()
	d := NewDispatcher(slow, 1, log)

	require.NoError(t, d.Notify(context.Background(), Event{Kind: TextApproved, SubmissionID: 1}))
	select {
	case evt := <-started:
		require.Equal(t, int64(1), evt.SubmissionID)
	case <-time.After(5 * time.Second):
		t.Fatal("worker never picked up the event")
	}

	require.NoError(t, d.Notify(context.Background(), Event{Kind: PhotoRequested, SubmissionID: 1}))
	require.ErrorIs(t, d.Notify(context.Background(), Event{Kind: FullyApproved, SubmissionID: 1}), ErrQueueFull)
	require.Empty(t, mem.Events())

	close(release)
	require.NoError(t, d.Close())
	require.Equal(t, []Kind{TextApproved, PhotoRequested}, mem.Kinds())
	require.ErrorIs(t, d.Notify(context.Background(), Event{Kind: Completed}), ErrDispatcherClosed)
	require.NoError(t, d.Close())
}

func TestDispatcherLogsFailures(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	d := NewDispatcher(SinkFunc(func(context.Context, Event) error {
		return errors.New("endpoint down")
	}), 0, log)

	require.NoError(t, d.Notify(context.Background(), Event{Kind: Completed, TaskID: 7, SubmissionID: 3}))
	require.NoError(t, d.Close())

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, logrus.WarnLevel, entry.Level)
	require.Equal(t, int64(7), entry.Data["task_id"])
	require.EqualError(t, entry.Data[logrus.ErrorKey].(error), "endpoint down")
}
