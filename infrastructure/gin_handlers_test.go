package infrastructure_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/vitovidale/editia-orchestrator/domain"
	"github.com/vitovidale/editia-orchestrator/infrastructure"
	"github.com/vitovidale/editia-orchestrator/promptbank"
	"github.com/vitovidale/editia-orchestrator/testsupport"
	"github.com/vitovidale/editia-orchestrator/usecase"
)

type apiFixture struct {
	router   *gin.Engine
	store    *infrastructure.SQLStore
	renderer *testsupport.RenderClient
	verifier *infrastructure.JWTVerifier
}

func newAPIFixture(t *testing.T, exposeDetail bool, webhookSecret string) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bank, err := promptbank.Default()
	if err != nil {
		t.Fatalf("prompt bank: %v", err)
	}
	store := testsupport.MustOpenStore(t, nil)
	renderer := &testsupport.RenderClient{RenderID: "job123"}
	metrics := infrastructure.NewMetrics()
	reconciler := &usecase.RenderReconciler{Requests: store, Publisher: infrastructure.NopPublisher{}, Metrics: metrics}

	handlers := infrastructure.NewVideoHandlers(
		&usecase.SubmitVideoUseCase{
			Scripts:    store,
			Requests:   store,
			Prompts:    bank,
			Generator:  &testsupport.TextGenerator{Text: "Cats are great."},
			Renderer:   renderer,
			Reconciler: reconciler,
			Metrics:    metrics,
			Settings:   usecase.GenerationSettings{TemplateID: "script-generation", MaxTokens: 500},
		},
		&usecase.RequestStatusUseCase{Requests: store, Renderer: renderer, Reconciler: reconciler, Metrics: metrics},
		&usecase.RenderWebhookUseCase{Requests: store, Reconciler: reconciler},
		&usecase.ListRequestsUseCase{Requests: store},
		&usecase.GetScriptUseCase{Scripts: store},
		bank,
		nil,
	)
	handlers.ExposeErrorDetail = exposeDetail
	handlers.WebhookSecret = webhookSecret

	verifier := infrastructure.NewJWTVerifier("test-secret")
	router := infrastructure.NewRouter(infrastructure.RouterDeps{
		Handlers: handlers,
		Verifier: verifier,
		Health:   &infrastructure.HealthHandler{DB: store, Events: infrastructure.NopPublisher{}},
		Metrics:  metrics,
	})
	return &apiFixture{router: router, store: store, renderer: renderer, verifier: verifier}
}

func (f *apiFixture) do(t *testing.T, method, path, userID string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := f.verifier.Sign(infrastructure.Claims{UserID: userID})
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func generateBody() map[string]any {
	return map[string]any{
		"prompt":          "Make a video about cats",
		"selectedClipIds": []string{"clip1", "clip2"},
		"voiceId":         "v1",
		"editorialProfile": map[string]any{
			"persona": "vet", "tone": "warm", "audience": "pet owners", "style_notes": "short",
		},
		"captionConfig": map[string]any{"enabled": true, "placement": "top"},
	}
}

func TestGenerateWebhookAndStatusFlow(t *testing.T) {
	f := newAPIFixture(t, true, "")

	rec := f.do(t, http.MethodPost, "/api/videos/generate", "user-1", generateBody(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("generate: %d %s", rec.Code, rec.Body.String())
	}
	resp := decode(t, rec)
	requestID, _ := resp["requestId"].(string)
	if resp["success"] != true || requestID == "" || resp["renderId"] != "job123" || resp["renderStatus"] != "rendering" {
		t.Fatalf("unexpected response %v", resp)
	}
	if got := f.renderer.Jobs[0].CaptionProperties["y_alignment"]; got != "10%" {
		t.Fatalf("caption config not applied, y_alignment=%q", got)
	}

	meta, _ := json.Marshal(domain.RenderMetadata{RequestID: requestID, UserID: "user-1"})
	webhook := map[string]any{
		"id":       "job123",
		"status":   "succeeded",
		"url":      "https://cdn.example/job123.mp4",
		"metadata": string(meta),
	}
	rec = f.do(t, http.MethodPost, "/webhooks/render", "", webhook, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook: %d %s", rec.Code, rec.Body.String())
	}
	if ack := decode(t, rec); ack["applied"] != true || ack["renderStatus"] != "done" {
		t.Fatalf("unexpected ack %v", ack)
	}

	rec = f.do(t, http.MethodGet, "/api/videos/requests/"+requestID, "user-1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d %s", rec.Code, rec.Body.String())
	}
	status := decode(t, rec)
	if status["render_status"] != "done" || status["render_url"] != "https://cdn.example/job123.mp4" {
		t.Fatalf("unexpected status %v", status)
	}

	rec = f.do(t, http.MethodGet, "/api/videos/requests/"+requestID, "user-2", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("other user lookup: expected 404, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/videos/requests", "user-1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	if list := decode(t, rec)["requests"].([]any); len(list) != 1 {
		t.Fatalf("expected one request, got %d", len(list))
	}
}

func TestGenerateRequiresAuth(t *testing.T) {
	f := newAPIFixture(t, false, "")
	rec := f.do(t, http.MethodPost, "/api/videos/generate", "", generateBody(), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(f.renderer.Jobs) != 0 {
		t.Fatal("unauthenticated request reached the render client")
	}
}

func TestGenerateValidationError(t *testing.T) {
	f := newAPIFixture(t, false, "")
	body := generateBody()
	body["selectedClipIds"] = []string{}

	rec := f.do(t, http.MethodPost, "/api/videos/generate", "user-1", body, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	resp := decode(t, rec)
	if resp["error"] != "missing required fields" {
		t.Fatalf("unexpected error %v", resp)
	}
	if _, ok := resp["detail"]; ok {
		t.Fatal("detail must be hidden when not exposing errors")
	}
}

func TestGenerateRenderFailureReturnsIDs(t *testing.T) {
	f := newAPIFixture(t, true, "")
	f.renderer.SubmitErr = errors.New("http 401: bad api key")

	rec := f.do(t, http.MethodPost, "/api/videos/generate", "user-1", generateBody(), nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	resp := decode(t, rec)
	if resp["success"] != false || resp["requestId"] == "" || resp["renderStatus"] != "error" {
		t.Fatalf("unexpected response %v", resp)
	}
	if detail, _ := resp["detail"].(string); !strings.Contains(detail, "bad api key") {
		t.Fatalf("expected detail outside production, got %v", resp)
	}
}

func TestWebhookSecretAndOwnership(t *testing.T) {
	f := newAPIFixture(t, false, "hook-secret")

	rec := f.do(t, http.MethodPost, "/api/videos/generate", "user-1", generateBody(), nil)
	requestID := decode(t, rec)["requestId"].(string)
	meta := map[string]any{"requestId": requestID, "userId": "user-2"}
	webhook := map[string]any{"jobId": "job123", "status": "succeeded", "url": "https://x", "metadata": meta}

	rec = f.do(t, http.MethodPost, "/webhooks/render", "", webhook, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing secret: expected 401, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/webhooks/render", "", webhook, map[string]string{"X-Webhook-Secret": "hook-secret"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("user mismatch: expected 409, got %d", rec.Code)
	}
	if decode(t, rec)["error"] != "user mismatch" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/webhooks/render", "", map[string]any{"status": "succeeded", "metadata": "{}"},
		map[string]string{"X-Webhook-Secret": "hook-secret"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad metadata: expected 400, got %d", rec.Code)
	}
}

func TestListPromptsAndScript(t *testing.T) {
	f := newAPIFixture(t, false, "")

	rec := f.do(t, http.MethodGet, "/api/prompts", "user-1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("prompts: %d", rec.Code)
	}
	for _, p := range decode(t, rec)["prompts"].([]any) {
		if p.(map[string]any)["status"] != "LATEST" {
			t.Fatalf("deprecated prompt listed: %v", p)
		}
	}

	rec = f.do(t, http.MethodPost, "/api/videos/generate", "user-1", generateBody(), nil)
	scriptID := decode(t, rec)["scriptId"].(string)
	rec = f.do(t, http.MethodGet, "/api/scripts/"+scriptID, "user-1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("script: %d", rec.Code)
	}
	if decode(t, rec)["generated_script"] != "Cats are great." {
		t.Fatalf("unexpected script %s", rec.Body.String())
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newAPIFixture(t, false, "")

	rec := f.do(t, http.MethodGet, "/health", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
	if resp := decode(t, rec); resp["status"] != "UP" || resp["database"] != "connected" || resp["rabbitmq"] != "disabled" {
		t.Fatalf("unexpected health %v", resp)
	}

	rec = f.do(t, http.MethodGet, "/metrics", "", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "editia_http_request_duration_seconds") {
		t.Fatalf("metrics missing request histogram: %d", rec.Code)
	}
}
