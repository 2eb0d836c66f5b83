// Package dispatch hands completed searches off to downstream
// processing. Jobs are fire and forget: a dispatch failure is logged
// through the error sink and never fails the orchestration run.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-engine/internal/config"
)

// Job types emitted after a successful orchestration run.
const (
	JobPersonaBusinessMapping = "persona_business_mapping"
	JobDMPersonaMapping       = "dm_persona_mapping"
)

// Job is one downstream processing request.
type Job struct {
	Type     string `json:"type"`
	SearchID string `json:"search_id"`
	UserID   string `json:"user_id"`
}

// Dispatcher enqueues downstream jobs. Implementations must be safe
// for concurrent use.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

// ErrorSink receives dispatch failures. Sinks log and drop; they never
// propagate.
type ErrorSink func(job Job, err error)

// LogSink records dispatch failures on the process logger.
func LogSink(job Job, err error) {
	zap.L().Warn("downstream dispatch failed",
		zap.String("job_type", job.Type),
		zap.String("search_id", job.SearchID),
		zap.Error(err))
}

// New returns the dispatcher for cfg: a webhook poster when a URL is
// configured, otherwise a noop that discards jobs.
func New(cfg config.DispatchConfig) Dispatcher {
	if cfg.WebhookURL == "" {
		return Noop{}
	}
	return NewWebhook(cfg)
}

// Go dispatches jobs asynchronously, routing failures to sink. It
// returns immediately; callers must not depend on delivery.
func Go(d Dispatcher, sink ErrorSink, jobs ...Job) {
	for _, job := range jobs {
		go func(j Job) {
			if err := d.Dispatch(context.Background(), j); err != nil {
				sink(j, err)
			}
		}(job)
	}
}

// Webhook posts jobs as JSON to a configured HTTP endpoint.
type Webhook struct {
	url        string
	httpClient *http.Client
}

// NewWebhook creates a webhook dispatcher from cfg.
func NewWebhook(cfg config.DispatchConfig) *Webhook {
	return &Webhook{
		url:        cfg.WebhookURL,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
	}
}

func (w *Webhook) Dispatch(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return eris.Wrap(err, "dispatch: marshal job")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "dispatch: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return eris.Wrapf(err, "dispatch: post %s job", job.Type)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return eris.Errorf("dispatch: unexpected status %d for %s job", resp.StatusCode, job.Type)
	}

	zap.L().Debug("downstream job dispatched",
		zap.String("job_type", job.Type),
		zap.String("search_id", job.SearchID))
	return nil
}

// Noop discards jobs. Used when no webhook endpoint is configured.
type Noop struct{}

func (Noop) Dispatch(context.Context, Job) error { return nil }
