// Package usecase holds the video generation workflows: submission, status
// polling, and render webhook handling.
package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/vitovidale/editia-orchestrator/domain"
	"github.com/vitovidale/editia-orchestrator/logging"
)

// Sources of render status updates, used in logs, events, and metrics.
const (
	SourceSubmit  = "submit"
	SourcePoll    = "poll"
	SourceWebhook = "webhook"
)

const errRenderWithoutURL = "render succeeded without an output url"

// RenderReconciler applies terminal render outcomes to video requests. Only
// the first terminal write for a request takes effect; later ones are logged
// and dropped.
type RenderReconciler struct {
	Requests  domain.VideoRequestRepository
	Publisher domain.EventPublisher
	Metrics   domain.MetricsRecorder
	Logger    *slog.Logger
	Now       func() time.Time
}

// Complete stores status on request and reports whether this call performed
// the transition. On success the request is updated in place.
func (r *RenderReconciler) Complete(ctx context.Context, request *domain.VideoRequest, status domain.RenderStatus, renderURL, renderError, source string) (bool, error) {
	logger := r.logger().With(
		slog.String(logging.FieldRequestID, request.ID),
		slog.String(logging.FieldSource, source),
	)
	applied, err := r.Requests.CompleteRender(ctx, request.ID, status, renderURL, renderError)
	if err != nil {
		return false, err
	}
	if !applied {
		logger.Info("discarding render update for request already in a terminal state",
			slog.String("render_status", string(status)),
		)
		return false, nil
	}

	request.RenderStatus = status
	if status == domain.RenderStatusDone {
		request.RenderURL, request.RenderError = renderURL, ""
	} else {
		request.RenderURL, request.RenderError = "", renderError
	}
	request.UpdatedAt = r.now()

	metrics(r.Metrics).ObserveTransition(status, source)
	logger.Info("render reached terminal state",
		slog.String("render_status", string(status)),
		slog.String(logging.FieldRenderID, request.RenderID),
	)

	if r.Publisher != nil {
		event := domain.RenderEvent{
			RequestID:    request.ID,
			UserID:       request.UserID,
			ScriptID:     request.ScriptID,
			RenderID:     request.RenderID,
			RenderStatus: status,
			RenderURL:    request.RenderURL,
			RenderError:  request.RenderError,
			Source:       source,
			OccurredAt:   request.UpdatedAt,
		}
		if err := r.Publisher.PublishRenderEvent(ctx, event); err != nil {
			logger.Warn("render event publish failed", logging.Error(err))
		}
	}
	return true, nil
}

// terminalOutcome maps a provider job status onto a terminal render status.
// ok is false while the job is still in progress.
func terminalOutcome(job domain.RenderJobStatus) (status domain.RenderStatus, renderURL, renderError string, ok bool) {
	switch job.State {
	case domain.RenderJobSucceeded:
		if job.URL == "" {
			return domain.RenderStatusError, "", errRenderWithoutURL, true
		}
		return domain.RenderStatusDone, job.URL, "", true
	case domain.RenderJobFailed:
		msg := job.Error
		if msg == "" {
			msg = "render failed"
		}
		return domain.RenderStatusError, "", msg, true
	default:
		return "", "", "", false
	}
}

func (r *RenderReconciler) logger() *slog.Logger {
	if r.Logger == nil {
		return logging.NewNop()
	}
	return r.Logger
}

func (r *RenderReconciler) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}

type nopMetrics struct{}

func (nopMetrics) ObserveSubmission(string) {}

func (nopMetrics) ObserveTransition(domain.RenderStatus, string) {}

func (nopMetrics) ObserveUpstreamFailure(string, string) {}

func metrics(m domain.MetricsRecorder) domain.MetricsRecorder {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
