package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vitovidale/editia-orchestrator/domain"
	"github.com/vitovidale/editia-orchestrator/logging"
	"github.com/vitovidale/editia-orchestrator/promptbank"
)

var errEmptyScript = errors.New("text generation returned an empty script")

// PromptFiller resolves a prompt template with values.
type PromptFiller interface {
	Fill(id string, values map[string]any) (promptbank.FilledPrompt, bool)
}

// GenerationSettings configures script generation.
type GenerationSettings struct {
	TemplateID  string
	Model       string
	Temperature float64
	MaxTokens   int
}

type SubmitVideoInput struct {
	UserID           string
	Prompt           string
	SelectedClipIDs  []string
	EditorialProfile domain.EditorialProfile
	VoiceID          string
	CaptionConfig    *domain.CaptionConfiguration
}

type SubmitVideoOutput struct {
	ScriptID     string
	RequestID    string
	RenderStatus domain.RenderStatus
	RenderID     string
	RenderError  string
}

type SubmitVideoUseCase struct {
	Scripts    domain.ScriptRepository
	Requests   domain.VideoRequestRepository
	Prompts    PromptFiller
	Generator  domain.TextGenerator
	Renderer   domain.RenderClient
	Reconciler *RenderReconciler
	Metrics    domain.MetricsRecorder
	Settings   GenerationSettings
	Logger     *slog.Logger
}

// Execute runs the submission workflow. When render submission fails the
// returned output is non-nil alongside an ErrUpstream error so callers can
// still report the persisted ids.
func (uc *SubmitVideoUseCase) Execute(ctx context.Context, input SubmitVideoInput) (*SubmitVideoOutput, error) {
	const op = "submit video"
	m := metrics(uc.Metrics)

	prompt := strings.TrimSpace(input.Prompt)
	clips := nonEmpty(input.SelectedClipIDs)
	if prompt == "" || len(clips) == 0 {
		m.ObserveSubmission("invalid")
		return nil, domain.Wrap(domain.ErrValidation, op, "missing required fields", nil)
	}
	if strings.TrimSpace(input.UserID) == "" {
		m.ObserveSubmission("unauthorized")
		return nil, domain.Wrap(domain.ErrUnauthorized, op, "unauthorized", nil)
	}
	logger := uc.logger().With(slog.String(logging.FieldUserID, input.UserID))

	script := &domain.Script{
		UserID:    input.UserID,
		RawPrompt: prompt,
		Status:    domain.ScriptStatusDraft,
	}
	if err := uc.Scripts.CreateScript(ctx, script); err != nil {
		m.ObserveSubmission("error")
		return nil, err
	}
	logger = logger.With(slog.String(logging.FieldScriptID, script.ID))

	filled, ok := uc.Prompts.Fill(uc.templateID(), map[string]any{
		"persona":     input.EditorialProfile.Persona,
		"tone":        input.EditorialProfile.Tone,
		"audience":    input.EditorialProfile.Audience,
		"style_notes": input.EditorialProfile.StyleNotes,
		"prompt":      prompt,
	})
	if !ok {
		m.ObserveSubmission("error")
		logger.Error("script prompt template missing", slog.String("template_id", uc.templateID()))
		return nil, domain.Wrap(domain.ErrConfiguration, op, "template not found", nil)
	}

	req := domain.GenerateRequest{
		SystemPrompt: filled.System,
		UserPrompt:   filled.User,
		Temperature:  uc.Settings.Temperature,
		MaxTokens:    uc.Settings.MaxTokens,
		Model:        uc.Settings.Model,
	}
	if filled.Developer != nil {
		req.DeveloperPrompt = *filled.Developer
	}
	generated, err := uc.Generator.Generate(ctx, req)
	if err == nil && strings.TrimSpace(generated) == "" {
		err = errEmptyScript
	}
	if err != nil {
		m.ObserveSubmission("generation_failed")
		m.ObserveUpstreamFailure("llm", "generate")
		logger.Warn("script generation failed", logging.Error(err))
		return nil, domain.Wrap(domain.ErrUpstream, op, "failed to generate script", err)
	}
	generated = strings.TrimSpace(generated)

	if err := uc.Scripts.ValidateScript(ctx, script.ID, generated); err != nil {
		m.ObserveSubmission("error")
		return nil, err
	}

	request := &domain.VideoRequest{
		UserID:         input.UserID,
		ScriptID:       script.ID,
		SelectedVideos: clips,
		RenderStatus:   domain.RenderStatusQueued,
	}
	if err := uc.Requests.CreateVideoRequest(ctx, request); err != nil {
		m.ObserveSubmission("error")
		return nil, err
	}
	logger = logger.With(slog.String(logging.FieldRequestID, request.ID))

	out := &SubmitVideoOutput{ScriptID: script.ID, RequestID: request.ID}

	renderID, err := uc.Renderer.Submit(ctx, domain.RenderJob{
		ScriptText:        generated,
		ClipIDs:           clips,
		VoiceID:           input.VoiceID,
		CaptionProperties: domain.CaptionRenderProperties(input.CaptionConfig),
		Metadata:          domain.RenderMetadata{RequestID: request.ID, UserID: input.UserID},
	})
	if err != nil {
		m.ObserveSubmission("render_failed")
		m.ObserveUpstreamFailure("render", "submit")
		logger.Warn("render submission failed", logging.Error(err))
		renderErr := renderSubmitError(err)
		if _, cerr := uc.Reconciler.Complete(ctx, request, domain.RenderStatusError, "", renderErr, SourceSubmit); cerr != nil {
			logger.Error("failed to record render submission failure", logging.Error(cerr))
		}
		out.RenderStatus = domain.RenderStatusError
		out.RenderError = renderErr
		return out, domain.Wrap(domain.ErrUpstream, op, "failed to submit render", err)
	}
	request.RenderID = renderID
	out.RenderID = renderID
	logger = logger.With(slog.String(logging.FieldRenderID, renderID))

	moved, err := uc.Requests.MarkRendering(ctx, request.ID, renderID)
	if err != nil {
		m.ObserveSubmission("error")
		return nil, err
	}
	if moved {
		out.RenderStatus = domain.RenderStatusRendering
		m.ObserveTransition(domain.RenderStatusRendering, SourceSubmit)
	} else {
		// A webhook already finished the render before the id was recorded.
		current, err := uc.Requests.FindVideoRequest(ctx, request.ID)
		if err != nil {
			return nil, err
		}
		out.RenderStatus = current.RenderStatus
		logger.Info("render finished before submission returned", slog.String("render_status", string(current.RenderStatus)))
	}

	m.ObserveSubmission("accepted")
	logger.Info("video request submitted")
	return out, nil
}

// renderSubmitError is the stored render_error for a failed submission. The
// provider's response body only goes to the log.
func renderSubmitError(err error) string {
	if code, ok := domain.UpstreamStatus(err); ok {
		return fmt.Sprintf("render submission failed (http %d)", code)
	}
	return "render submission failed"
}

func (uc *SubmitVideoUseCase) templateID() string {
	if uc.Settings.TemplateID == "" {
		return "script-generation"
	}
	return uc.Settings.TemplateID
}

func (uc *SubmitVideoUseCase) logger() *slog.Logger {
	if uc.Logger == nil {
		return logging.NewNop()
	}
	return uc.Logger
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
