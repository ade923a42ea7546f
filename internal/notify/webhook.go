package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"pressroom/internal/config"
)

const (
	defaultWebhookTimeout = 5 * time.Second
	maxErrorBody          = 512
)

type webhook struct {
	url    string
	secret string
	filter mapset.Set[Kind]
	client *resty.Client
}

// WebhookSink posts each event as JSON to the configured endpoints.
type WebhookSink struct {
	hooks []webhook
}

// NewWebhookSink builds a sink from config, skipping disabled hooks. It
// returns nil when no hook is enabled.
func NewWebhookSink(cfgs []config.WebhookConfig) *WebhookSink {
	var hooks []webhook
	for _, c := range cfgs {
		if c.Enabled != nil && !*c.Enabled {
			continue
		}
		if strings.TrimSpace(c.URL) == "" {
			continue
		}
		timeout := defaultWebhookTimeout
		if c.TimeoutSeconds > 0 {
			timeout = time.Duration(c.TimeoutSeconds) * time.Second
		}
		client := resty.New().
			SetTimeout(timeout).
			SetRetryCount(c.Retries).
			SetRetryWaitTime(200 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() >= http.StatusInternalServerError
			})
		hooks = append(hooks, webhook{
			url:    c.URL,
			secret: c.Secret,
			filter: newKindFilter(c.Events),
			client: client,
		})
	}
	if len(hooks) == 0 {
		return nil
	}
	return &WebhookSink{hooks: hooks}
}

// newKindFilter returns nil when every kind should be delivered.
func newKindFilter(kinds []string) mapset.Set[Kind] {
	set := mapset.NewSet[Kind]()
	for _, k := range kinds {
		k = strings.TrimSpace(k)
		if k == "" || k == "*" {
			continue
		}
		set.Add(Kind(k))
	}
	if set.Cardinality() == 0 {
		return nil
	}
	return set
}

func (w webhook) accepts(k Kind) bool {
	return w.filter == nil || w.filter.Contains(k)
}

func (s *WebhookSink) Notify(ctx context.Context, evt Event) error {
	var errs []error
	for _, hook := range s.hooks {
		if !hook.accepts(evt.Kind) {
			continue
		}
		if err := hook.post(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("webhook %s: %w", hook.url, err))
		}
	}
	return errors.Join(errs...)
}

func (w webhook) post(ctx context.Context, evt Event) error {
	req := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Pressroom-Event", string(evt.Kind)).
		SetHeader("X-Pressroom-Delivery", uuid.NewString()).
		SetBody(evt)
	if strings.TrimSpace(w.secret) != "" {
		req.SetHeader("X-Pressroom-Secret", w.secret)
	}
	res, err := req.Post(w.url)
	if err != nil {
		return err
	}
	if res.IsError() {
		body := strings.TrimSpace(res.String())
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return fmt.Errorf("status %d: %s", res.StatusCode(), body)
	}
	return nil
}
