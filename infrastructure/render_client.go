package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vitovidale/editia-orchestrator/domain"
)

// RenderConfig captures the render API settings.
type RenderConfig struct {
	APIKey         string
	BaseURL        string
	TemplateID     string
	WebhookURL     string
	TimeoutSeconds int
}

// CreatomateClient submits render jobs and reads their status. Submit is never
// retried.
type CreatomateClient struct {
	cfg        RenderConfig
	httpClient *http.Client
}

func NewCreatomateClient(cfg RenderConfig, httpClient *http.Client) *CreatomateClient {
	if httpClient == nil {
		timeout := 30 * time.Second
		if cfg.TimeoutSeconds > 0 {
			timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.creatomate.com/v1"
	}
	return &CreatomateClient{cfg: cfg, httpClient: httpClient}
}

type renderSubmission struct {
	TemplateID    string         `json:"template_id"`
	Modifications map[string]any `json:"modifications"`
	WebhookURL    string         `json:"webhook_url,omitempty"`
	Metadata      string         `json:"metadata"`
}

type renderResource struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	URL          string `json:"url"`
	ErrorMessage string `json:"error_message"`
}

// Submit starts a render and returns the provider's job id.
func (c *CreatomateClient) Submit(ctx context.Context, job domain.RenderJob) (string, error) {
	if c.cfg.APIKey == "" {
		return "", errors.New("render submit: api key required")
	}
	metadata, err := json.Marshal(job.Metadata)
	if err != nil {
		return "", fmt.Errorf("render submit: encode metadata: %w", err)
	}
	body := renderSubmission{
		TemplateID:    c.cfg.TemplateID,
		Modifications: renderModifications(job),
		WebhookURL:    c.cfg.WebhookURL,
		Metadata:      string(metadata),
	}

	endpoint, err := joinURL(c.cfg.BaseURL, "renders")
	if err != nil {
		return "", fmt.Errorf("render submit: build url: %w", err)
	}
	raw, err := c.do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", fmt.Errorf("render submit: %w", err)
	}

	var renders []renderResource
	if err := json.Unmarshal(raw, &renders); err != nil {
		var single renderResource
		if errSingle := json.Unmarshal(raw, &single); errSingle != nil {
			return "", fmt.Errorf("render submit: decode response: %w", err)
		}
		renders = []renderResource{single}
	}
	for _, r := range renders {
		if id := strings.TrimSpace(r.ID); id != "" {
			return id, nil
		}
	}
	return "", errors.New("render submit: response carried no render id")
}

// Status fetches the current state of a render job.
func (c *CreatomateClient) Status(ctx context.Context, renderID string) (domain.RenderJobStatus, error) {
	renderID = strings.TrimSpace(renderID)
	if renderID == "" {
		return domain.RenderJobStatus{}, errors.New("render status: render id required")
	}
	endpoint, err := joinURL(c.cfg.BaseURL, "renders", renderID)
	if err != nil {
		return domain.RenderJobStatus{}, fmt.Errorf("render status: build url: %w", err)
	}
	raw, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.RenderJobStatus{}, fmt.Errorf("render status: %w", err)
	}
	var res renderResource
	if err := json.Unmarshal(raw, &res); err != nil {
		return domain.RenderJobStatus{}, fmt.Errorf("render status: decode response: %w", err)
	}
	return domain.RenderJobStatus{
		State: domain.ParseRenderJobState(res.Status),
		URL:   res.URL,
		Error: res.ErrorMessage,
	}, nil
}

func renderModifications(job domain.RenderJob) map[string]any {
	mods := map[string]any{
		"Voiceover.text":     job.ScriptText,
		"Voiceover.voice_id": job.VoiceID,
	}
	for i, clip := range job.ClipIDs {
		mods[fmt.Sprintf("Clip-%d.source", i+1)] = clip
	}
	for key, value := range job.CaptionProperties {
		mods["Subtitles."+key] = value
	}
	return mods
}

func (c *CreatomateClient) do(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
