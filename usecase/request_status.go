package usecase

import (
	"context"
	"log/slog"

	"github.com/vitovidale/editia-orchestrator/domain"
	"github.com/vitovidale/editia-orchestrator/logging"
)

type RequestStatusUseCase struct {
	Requests   domain.VideoRequestRepository
	Renderer   domain.RenderClient
	Reconciler *RenderReconciler
	Metrics    domain.MetricsRecorder
	Logger     *slog.Logger
}

// Execute returns the caller's request, refreshing it from the render
// provider while it is still rendering. Provider errors never fail the call.
func (uc *RequestStatusUseCase) Execute(ctx context.Context, requestID, userID string) (*domain.VideoRequest, error) {
	request, err := findOwnedRequest(ctx, uc.Requests, requestID, userID)
	if err != nil {
		return nil, err
	}
	if request.RenderStatus != domain.RenderStatusRendering || request.RenderID == "" {
		return request, nil
	}

	logger := uc.logger().With(
		slog.String(logging.FieldRequestID, request.ID),
		slog.String(logging.FieldRenderID, request.RenderID),
	)
	job, err := uc.Renderer.Status(ctx, request.RenderID)
	if err != nil {
		metrics(uc.Metrics).ObserveUpstreamFailure("render", "status")
		logger.Warn("render status check failed", logging.Error(err))
		return request, nil
	}
	status, renderURL, renderError, ok := terminalOutcome(job)
	if !ok {
		return request, nil
	}
	applied, err := uc.Reconciler.Complete(ctx, request, status, renderURL, renderError, SourcePoll)
	if err != nil {
		logger.Warn("failed to record polled render status", logging.Error(err))
		return request, nil
	}
	if !applied {
		// Another writer got there first; report what it stored.
		if current, err := uc.Requests.FindVideoRequest(ctx, request.ID); err == nil {
			return current, nil
		}
	}
	return request, nil
}

func (uc *RequestStatusUseCase) logger() *slog.Logger {
	if uc.Logger == nil {
		return logging.NewNop()
	}
	return uc.Logger
}

// findOwnedRequest hides requests owned by other users behind ErrNotFound.
func findOwnedRequest(ctx context.Context, repo domain.VideoRequestRepository, requestID, userID string) (*domain.VideoRequest, error) {
	request, err := repo.FindVideoRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.UserID != userID {
		return nil, domain.Wrap(domain.ErrNotFound, "find video request", "video request not found", nil)
	}
	return request, nil
}

type ListRequestsUseCase struct {
	Requests domain.VideoRequestRepository
}

// Execute returns the user's requests, newest first.
func (uc *ListRequestsUseCase) Execute(ctx context.Context, userID string) ([]domain.VideoRequest, error) {
	if userID == "" {
		return nil, domain.Wrap(domain.ErrUnauthorized, "list video requests", "unauthorized", nil)
	}
	return uc.Requests.FindVideoRequestsByUserID(ctx, userID)
}

type GetScriptUseCase struct {
	Scripts domain.ScriptRepository
}

func (uc *GetScriptUseCase) Execute(ctx context.Context, scriptID, userID string) (*domain.Script, error) {
	script, err := uc.Scripts.FindScript(ctx, scriptID)
	if err != nil {
		return nil, err
	}
	if script.UserID != userID {
		return nil, domain.Wrap(domain.ErrNotFound, "find script", "script not found", nil)
	}
	return script, nil
}
