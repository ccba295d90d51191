// domain/video.go
package domain

import (
	"strings"
	"time"
)

type ScriptStatus string

const (
	ScriptStatusDraft     ScriptStatus = "draft"
	ScriptStatusValidated ScriptStatus = "validated"
)

// Script is one user-requested generation. GeneratedScript is only filled once
// Status is validated.
type Script struct {
	ID              string       `json:"id"`
	UserID          string       `json:"user_id"`
	RawPrompt       string       `json:"raw_prompt"`
	GeneratedScript string       `json:"generated_script,omitempty"`
	Status          ScriptStatus `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

type RenderStatus string

const (
	RenderStatusQueued    RenderStatus = "queued"
	RenderStatusRendering RenderStatus = "rendering"
	RenderStatusDone      RenderStatus = "done"
	RenderStatusError     RenderStatus = "error"
)

// IsTerminal reports whether no further transitions are accepted.
func (s RenderStatus) IsTerminal() bool {
	return s == RenderStatusDone || s == RenderStatusError
}

// CanTransitionTo reports whether moving from s to next advances the state
// machine. Self-transitions are not advances.
func (s RenderStatus) CanTransitionTo(next RenderStatus) bool {
	switch s {
	case RenderStatusQueued:
		return next == RenderStatusRendering || next.IsTerminal()
	case RenderStatusRendering:
		return next.IsTerminal()
	default:
		return false
	}
}

// NonTerminalRenderStatuses lists the states a terminal update may start from.
func NonTerminalRenderStatuses() []RenderStatus {
	return []RenderStatus{RenderStatusQueued, RenderStatusRendering}
}

// VideoRequest tracks one render job for a script. RenderURL is set only when
// done, RenderError only when error.
type VideoRequest struct {
	ID             string       `json:"id"`
	UserID         string       `json:"user_id"`
	ScriptID       string       `json:"script_id"`
	SelectedVideos []string     `json:"selected_videos"`
	RenderStatus   RenderStatus `json:"render_status"`
	RenderID       string       `json:"render_id,omitempty"`
	RenderURL      string       `json:"render_url,omitempty"`
	RenderError    string       `json:"render_error,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// EditorialProfile holds the free-text fields injected into the script
// generation system prompt.
type EditorialProfile struct {
	Persona    string `json:"persona"`
	Tone       string `json:"tone"`
	Audience   string `json:"audience"`
	StyleNotes string `json:"style_notes"`
}

// RenderMetadata is embedded in every render job so webhooks can be routed back
// to the owning request.
type RenderMetadata struct {
	RequestID string `json:"requestId"`
	UserID    string `json:"userId"`
}

// RenderJob is what gets submitted to the render provider.
type RenderJob struct {
	ScriptText        string
	ClipIDs           []string
	VoiceID           string
	CaptionProperties map[string]string
	Metadata          RenderMetadata
}

type RenderJobState string

const (
	RenderJobSucceeded  RenderJobState = "succeeded"
	RenderJobFailed     RenderJobState = "failed"
	RenderJobInProgress RenderJobState = "in_progress"
)

// ParseRenderJobState maps a provider status string onto a RenderJobState.
// Anything other than succeeded or failed is still in progress.
func ParseRenderJobState(status string) RenderJobState {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "succeeded":
		return RenderJobSucceeded
	case "failed":
		return RenderJobFailed
	default:
		return RenderJobInProgress
	}
}

// RenderJobStatus is the provider's view of a render job.
type RenderJobStatus struct {
	State RenderJobState
	URL   string
	Error string
}

// GenerateRequest is a single text-generation call.
type GenerateRequest struct {
	SystemPrompt    string
	UserPrompt      string
	DeveloperPrompt string
	Temperature     float64
	MaxTokens       int
	Model           string
}

// RenderEvent is published whenever a video request reaches a terminal state.
type RenderEvent struct {
	RequestID    string       `json:"request_id"`
	UserID       string       `json:"user_id"`
	ScriptID     string       `json:"script_id"`
	RenderID     string       `json:"render_id,omitempty"`
	RenderStatus RenderStatus `json:"render_status"`
	RenderURL    string       `json:"render_url,omitempty"`
	RenderError  string       `json:"render_error,omitempty"`
	Source       string       `json:"source"`
	OccurredAt   time.Time    `json:"occurred_at"`
}
