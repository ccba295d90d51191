package infrastructure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vitovidale/editia-orchestrator/domain"
)

func TestCreatomateClientSubmit(t *testing.T) {
	var got renderSubmission
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/renders" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`[{"id":"job123","status":"planned"}]`))
	}))
	defer server.Close()

	client := NewCreatomateClient(RenderConfig{APIKey: "k", BaseURL: server.URL + "/v1", TemplateID: "tpl", WebhookURL: "https://hooks.example/render"}, nil)
	id, err := client.Submit(context.Background(), domain.RenderJob{
		ScriptText:        "Cats are great.",
		ClipIDs:           []string{"clip1", "clip2"},
		VoiceID:           "v1",
		CaptionProperties: map[string]string{"font_family": "Montserrat"},
		Metadata:          domain.RenderMetadata{RequestID: "req-1", UserID: "user-1"},
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if id != "job123" {
		t.Fatalf("unexpected id %q", id)
	}
	if got.TemplateID != "tpl" || got.WebhookURL != "https://hooks.example/render" {
		t.Fatalf("unexpected submission %#v", got)
	}
	if got.Modifications["Voiceover.text"] != "Cats are great." || got.Modifications["Voiceover.voice_id"] != "v1" {
		t.Fatalf("unexpected voice modifications %#v", got.Modifications)
	}
	if got.Modifications["Clip-2.source"] != "clip2" || got.Modifications["Subtitles.font_family"] != "Montserrat" {
		t.Fatalf("unexpected modifications %#v", got.Modifications)
	}
	var meta domain.RenderMetadata
	if err := json.Unmarshal([]byte(got.Metadata), &meta); err != nil {
		t.Fatalf("metadata is not a JSON string: %v", err)
	}
	if meta.RequestID != "req-1" || meta.UserID != "user-1" {
		t.Fatalf("unexpected metadata %#v", meta)
	}
}

func TestCreatomateClientSubmitFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"template not found"}`))
	}))
	defer server.Close()

	client := NewCreatomateClient(RenderConfig{APIKey: "k", BaseURL: server.URL}, nil)
	_, err := client.Submit(context.Background(), domain.RenderJob{ScriptText: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if code, ok := domain.UpstreamStatus(err); !ok || code != http.StatusBadRequest {
		t.Fatalf("expected upstream status 400, got %d %v", code, ok)
	}
}

func TestCreatomateClientStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/renders/job123" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"job123","status":"succeeded","url":"https://cdn.example/job123.mp4"}`))
	}))
	defer server.Close()

	client := NewCreatomateClient(RenderConfig{APIKey: "k", BaseURL: server.URL}, nil)
	status, err := client.Status(context.Background(), "job123")
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if status.State != domain.RenderJobSucceeded || status.URL != "https://cdn.example/job123.mp4" {
		t.Fatalf("unexpected status %#v", status)
	}
}
