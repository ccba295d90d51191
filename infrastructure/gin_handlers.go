// infrastructure/gin_handlers.go
package infrastructure

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vitovidale/editia-orchestrator/domain"
	"github.com/vitovidale/editia-orchestrator/logging"
	"github.com/vitovidale/editia-orchestrator/promptbank"
	"github.com/vitovidale/editia-orchestrator/usecase"
)

type VideoHandlers struct {
	SubmitVideoUC   *usecase.SubmitVideoUseCase
	RequestStatusUC *usecase.RequestStatusUseCase
	RenderWebhookUC *usecase.RenderWebhookUseCase
	ListRequestsUC  *usecase.ListRequestsUseCase
	GetScriptUC     *usecase.GetScriptUseCase
	Prompts         *promptbank.Bank

	// ExposeErrorDetail adds the internal error text to responses. Off in
	// production.
	ExposeErrorDetail bool
	WebhookSecret     string
	Logger            *slog.Logger
}

func NewVideoHandlers(
	submitUC *usecase.SubmitVideoUseCase,
	statusUC *usecase.RequestStatusUseCase,
	webhookUC *usecase.RenderWebhookUseCase,
	listUC *usecase.ListRequestsUseCase,
	scriptUC *usecase.GetScriptUseCase,
	prompts *promptbank.Bank,
	logger *slog.Logger,
) *VideoHandlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &VideoHandlers{
		SubmitVideoUC:   submitUC,
		RequestStatusUC: statusUC,
		RenderWebhookUC: webhookUC,
		ListRequestsUC:  listUC,
		GetScriptUC:     scriptUC,
		Prompts:         prompts,
		Logger:          logging.NewComponentLogger(logger, "http"),
	}
}

type generateVideoRequest struct {
	Prompt           string                       `json:"prompt"`
	SelectedClipIDs  []string                     `json:"selectedClipIds"`
	EditorialProfile domain.EditorialProfile      `json:"editorialProfile"`
	VoiceID          string                       `json:"voiceId"`
	CaptionConfig    *domain.CaptionConfiguration `json:"captionConfig"`
}

type renderWebhookRequest struct {
	ID           string          `json:"id"`
	JobID        string          `json:"jobId"`
	Status       string          `json:"status"`
	URL          string          `json:"url"`
	ErrorMessage string          `json:"error_message"`
	Error        string          `json:"error"`
	Metadata     json.RawMessage `json:"metadata"`
}

type promptSummary struct {
	ID          string            `json:"id"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Version     string            `json:"version"`
	Status      promptbank.Status `json:"status"`
}

func userID(c *gin.Context) string {
	return c.GetString(ContextUserIDKey)
}

func (h *VideoHandlers) GenerateVideoHandler(c *gin.Context) {
	var body generateVideoRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.writeError(c, domain.Wrap(domain.ErrValidation, "generate video", "invalid request body", err))
		return
	}

	output, err := h.SubmitVideoUC.Execute(c.Request.Context(), usecase.SubmitVideoInput{
		UserID:           userID(c),
		Prompt:           body.Prompt,
		SelectedClipIDs:  body.SelectedClipIDs,
		EditorialProfile: body.EditorialProfile,
		VoiceID:          body.VoiceID,
		CaptionConfig:    body.CaptionConfig,
	})
	if err != nil && output != nil {
		resp := gin.H{
			"success":      false,
			"error":        domain.PublicMessage(err),
			"scriptId":     output.ScriptID,
			"requestId":    output.RequestID,
			"renderStatus": output.RenderStatus,
		}
		if h.ExposeErrorDetail {
			resp["detail"] = err.Error()
		}
		c.JSON(statusFor(err), resp)
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"scriptId":     output.ScriptID,
		"requestId":    output.RequestID,
		"renderStatus": output.RenderStatus,
		"renderId":     output.RenderID,
	})
}

func (h *VideoHandlers) ListRequestsHandler(c *gin.Context) {
	requests, err := h.ListRequestsUC.Execute(c.Request.Context(), userID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

func (h *VideoHandlers) RequestStatusHandler(c *gin.Context) {
	request, err := h.RequestStatusUC.Execute(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

func (h *VideoHandlers) GetScriptHandler(c *gin.Context) {
	script, err := h.GetScriptUC.Execute(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, script)
}

func (h *VideoHandlers) ListPromptsHandler(c *gin.Context) {
	latest := h.Prompts.Latest()
	prompts := make([]promptSummary, 0, len(latest))
	for _, rec := range latest {
		prompts = append(prompts, promptSummary{
			ID:          rec.ID,
			Name:        rec.Name,
			Description: rec.Description,
			Version:     rec.Version,
			Status:      rec.Status,
		})
	}
	c.JSON(http.StatusOK, gin.H{"prompts": prompts})
}

func (h *VideoHandlers) RenderWebhookHandler(c *gin.Context) {
	if h.WebhookSecret != "" {
		got := c.GetHeader("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.WebhookSecret)) != 1 {
			h.writeError(c, domain.Wrap(domain.ErrUnauthorized, "render webhook", "invalid webhook secret", nil))
			return
		}
	}

	var body renderWebhookRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.writeError(c, domain.Wrap(domain.ErrValidation, "render webhook", "invalid request body", err))
		return
	}
	jobID := body.JobID
	if jobID == "" {
		jobID = body.ID
	}
	errMsg := body.ErrorMessage
	if errMsg == "" {
		errMsg = body.Error
	}

	ack, err := h.RenderWebhookUC.Execute(c.Request.Context(), usecase.RenderWebhookInput{
		JobID:    jobID,
		Status:   body.Status,
		URL:      body.URL,
		Error:    errMsg,
		Metadata: body.Metadata,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"received":     true,
		"requestId":    ack.RequestID,
		"renderStatus": ack.RenderStatus,
		"applied":      ack.Applied,
	})
}

// statusFor maps error kinds onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *VideoHandlers) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed",
			slog.String("route", c.FullPath()),
			slog.Int("status", status),
			logging.Error(err),
		)
	}
	resp := gin.H{"error": domain.PublicMessage(err)}
	if h.ExposeErrorDetail {
		resp["detail"] = err.Error()
	}
	c.AbortWithStatusJSON(status, resp)
}
