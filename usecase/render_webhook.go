package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/vitovidale/editia-orchestrator/domain"
	"github.com/vitovidale/editia-orchestrator/logging"
)

var errMissingMetadata = errors.New("metadata must carry requestId and userId")

// RenderWebhookInput is a render provider callback. Metadata is either the
// JSON object submitted with the job or that object encoded as a string.
type RenderWebhookInput struct {
	JobID    string
	Status   string
	URL      string
	Error    string
	Metadata json.RawMessage
}

type RenderWebhookOutput struct {
	RequestID    string
	RenderStatus domain.RenderStatus
	Applied      bool
}

type RenderWebhookUseCase struct {
	Requests   domain.VideoRequestRepository
	Reconciler *RenderReconciler
	Logger     *slog.Logger
}

func (uc *RenderWebhookUseCase) Execute(ctx context.Context, input RenderWebhookInput) (*RenderWebhookOutput, error) {
	const op = "render webhook"
	meta, err := ParseRenderMetadata(input.Metadata)
	if err != nil {
		return nil, domain.Wrap(domain.ErrValidation, op, "invalid metadata", err)
	}

	request, err := uc.Requests.FindVideoRequest(ctx, meta.RequestID)
	if err != nil {
		return nil, err
	}
	logger := uc.logger().With(
		slog.String(logging.FieldRequestID, request.ID),
		slog.String(logging.FieldRenderID, input.JobID),
	)
	if request.UserID != meta.UserID {
		logger.Warn("render webhook user mismatch")
		return nil, domain.Wrap(domain.ErrConflict, op, "user mismatch", nil)
	}
	if request.RenderID != "" && input.JobID != "" && request.RenderID != input.JobID {
		logger.Warn("render webhook job id differs from stored render id", slog.String("stored_render_id", request.RenderID))
	}

	out := &RenderWebhookOutput{RequestID: request.ID, RenderStatus: request.RenderStatus}
	status, renderURL, renderError, ok := terminalOutcome(domain.RenderJobStatus{
		State: domain.ParseRenderJobState(input.Status),
		URL:   strings.TrimSpace(input.URL),
		Error: strings.TrimSpace(input.Error),
	})
	if !ok {
		logger.Debug("render webhook reported progress", slog.String("provider_status", input.Status))
		return out, nil
	}
	applied, err := uc.Reconciler.Complete(ctx, request, status, renderURL, renderError, SourceWebhook)
	if err != nil {
		return nil, err
	}
	out.Applied = applied
	if applied {
		out.RenderStatus = status
	}
	return out, nil
}

func (uc *RenderWebhookUseCase) logger() *slog.Logger {
	if uc.Logger == nil {
		return logging.NewNop()
	}
	return uc.Logger
}

// ParseRenderMetadata decodes render job metadata, accepting either a JSON
// object or a JSON string holding one.
func ParseRenderMetadata(raw json.RawMessage) (domain.RenderMetadata, error) {
	var meta domain.RenderMetadata
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return meta, errMissingMetadata
	}
	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return meta, err
		}
		raw = []byte(encoded)
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return meta, err
	}
	meta.RequestID = strings.TrimSpace(meta.RequestID)
	meta.UserID = strings.TrimSpace(meta.UserID)
	if meta.RequestID == "" || meta.UserID == "" {
		return meta, errMissingMetadata
	}
	return meta, nil
}
