package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pressroom/internal/config"
)

type recorder struct {
	mu      sync.Mutex
	events  []Event
	headers []http.Header
	status  int
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var evt Event
	if err := json.NewDecoder(req.Body).Decode(&evt); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.headers = append(r.headers, req.Header.Clone())
	status := r.status
	r.mu.Unlock()
	if status == 0 {
		status = http.StatusNoContent
	}
	w.WriteHeader(status)
}

func (r *recorder) received() ([]Event, []http.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...), append([]http.Header(nil), r.headers...)
}

func TestWebhookSinkDeliversFilteredEvents(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	sink := NewWebhookSink([]config.WebhookConfig{{
		URL:    srv.URL,
		Secret: "s3cret",
		Events: []string{string(TextApproved), string(Completed)},
	}})
	require.NotNil(t, sink)

	ctx := context.Background()
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, sink.Notify(ctx, Event{Kind: TextApproved, At: at, TaskID: 1, SubmissionID: 7, Status: "text_approved"}))
	require.NoError(t, sink.Notify(ctx, Event{Kind: PhotoRequested, At: at, TaskID: 1, SubmissionID: 7}))
	require.NoError(t, sink.Notify(ctx, Event{Kind: Completed, At: at, TaskID: 1, SubmissionID: 7, Link: "https://news.example/a"}))

	events, headers := rec.received()
	require.Len(t, events, 2)
	require.Equal(t, TextApproved, events[0].Kind)
	require.Equal(t, int64(7), events[0].SubmissionID)
	require.Equal(t, "https://news.example/a", events[1].Link)
	require.Equal(t, "s3cret", headers[0].Get("X-Pressroom-Secret"))
	require.Equal(t, string(TextApproved), headers[0].Get("X-Pressroom-Event"))
	require.NotEmpty(t, headers[0].Get("X-Pressroom-Delivery"))
}

func TestWebhookSinkReportsFailures(t *testing.T) {
	rec := &recorder{status: http.StatusBadRequest}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	sink := NewWebhookSink([]config.WebhookConfig{{URL: srv.URL}})
	err := sink.Notify(context.Background(), Event{Kind: Completed, TaskID: 1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 400")
}

func TestWebhookSinkSkipsDisabled(t *testing.T) {
	off := false
	require.Nil(t, NewWebhookSink(nil))
	require.Nil(t, NewWebhookSink([]config.WebhookConfig{{URL: "http://127.0.0.1:1", Enabled: &off}, {URL: " "}}))
}

func TestFanoutJoinsErrors(t *testing.T) {
	mem := &Memory{}
	boom := errors.New("boom")
	f := Fanout{
		SinkFunc(func(context.Context, Event) error { return boom }),
		nil,
		mem,
		LogSink{},
	}
	err := f.Notify(context.Background(), Event{Kind: FullyApproved, TaskID: 3, SubmissionID: 4})
	require.ErrorIs(t, err, boom)
	require.Equal(t, []Kind{FullyApproved}, mem.Kinds(), "later sinks still receive the event")

	mem.Reset()
	require.Empty(t, mem.Events())
	require.NoError(t, Nop{}.Notify(context.Background(), Event{}))
}
