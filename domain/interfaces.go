// domain/interfaces.go
package domain

import "context"

type ScriptRepository interface {
	CreateScript(ctx context.Context, script *Script) error
	// ValidateScript moves a draft script to validated. Scripts that are not
	// drafts are left untouched and reported with ErrConflict.
	ValidateScript(ctx context.Context, scriptID, generated string) error
	FindScript(ctx context.Context, scriptID string) (*Script, error)
}

type VideoRequestRepository interface {
	CreateVideoRequest(ctx context.Context, request *VideoRequest) error
	// MarkRendering records the render id and moves a queued request to
	// rendering. It returns false when the request was no longer queued; the
	// render id is still stored if none was recorded yet.
	MarkRendering(ctx context.Context, requestID, renderID string) (bool, error)
	// CompleteRender applies a terminal status only while the request is still
	// non-terminal. It returns false when a terminal state was already stored.
	CompleteRender(ctx context.Context, requestID string, status RenderStatus, renderURL, renderError string) (bool, error)
	FindVideoRequest(ctx context.Context, requestID string) (*VideoRequest, error)
	FindVideoRequestsByUserID(ctx context.Context, userID string) ([]VideoRequest, error)
}

type TextGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

type RenderClient interface {
	Submit(ctx context.Context, job RenderJob) (string, error)
	Status(ctx context.Context, renderID string) (RenderJobStatus, error)
}

type EventPublisher interface {
	PublishRenderEvent(ctx context.Context, event RenderEvent) error
}

// MetricsRecorder receives orchestration counters.
type MetricsRecorder interface {
	ObserveSubmission(outcome string)
	ObserveTransition(status RenderStatus, source string)
	ObserveUpstreamFailure(service, operation string)
}
