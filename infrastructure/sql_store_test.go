package infrastructure

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/vitovidale/editia-orchestrator/config"
	"github.com/vitovidale/editia-orchestrator/domain"
	"github.com/vitovidale/editia-orchestrator/logging"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()
	store, err := OpenSQLStore(ctx, config.Database{
		Driver:          "sqlite",
		URL:             filepath.Join(t.TempDir(), "store.db"),
		ConnectAttempts: 1,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func createValidatedScript(t *testing.T, store *SQLStore, userID string) *domain.Script {
	t.Helper()
	ctx := context.Background()
	script := &domain.Script{UserID: userID, RawPrompt: "Make a video about cats"}
	if err := store.CreateScript(ctx, script); err != nil {
		t.Fatalf("create script: %v", err)
	}
	if err := store.ValidateScript(ctx, script.ID, "Cats are great."); err != nil {
		t.Fatalf("validate script: %v", err)
	}
	return script
}

func createQueuedRequest(t *testing.T, store *SQLStore, userID string) *domain.VideoRequest {
	t.Helper()
	script := createValidatedScript(t, store, userID)
	request := &domain.VideoRequest{UserID: userID, ScriptID: script.ID, SelectedVideos: []string{"clip1", "clip2"}}
	if err := store.CreateVideoRequest(context.Background(), request); err != nil {
		t.Fatalf("create video request: %v", err)
	}
	return request
}

func TestScriptLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	script := &domain.Script{UserID: "user-1", RawPrompt: "Make a video about cats"}
	if err := store.CreateScript(ctx, script); err != nil {
		t.Fatalf("create script: %v", err)
	}
	if script.ID == "" || script.Status != domain.ScriptStatusDraft {
		t.Fatalf("unexpected script after create %#v", script)
	}

	got, err := store.FindScript(ctx, script.ID)
	if err != nil {
		t.Fatalf("find script: %v", err)
	}
	if got.Status != domain.ScriptStatusDraft || got.GeneratedScript != "" {
		t.Fatalf("unexpected draft %#v", got)
	}

	if err := store.ValidateScript(ctx, script.ID, "Cats are great."); err != nil {
		t.Fatalf("validate script: %v", err)
	}
	got, err = store.FindScript(ctx, script.ID)
	if err != nil {
		t.Fatalf("find script: %v", err)
	}
	if got.Status != domain.ScriptStatusValidated || got.GeneratedScript != "Cats are great." {
		t.Fatalf("unexpected validated script %#v", got)
	}

	if err := store.ValidateScript(ctx, script.ID, "again"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on second validation, got %v", err)
	}
	if err := store.ValidateScript(ctx, "missing", "text"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.FindScript(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVideoRequestRoundTrip(t *testing.T) {
	store := openTestStore(t)
	request := createQueuedRequest(t, store, "user-1")

	got, err := store.FindVideoRequest(context.Background(), request.ID)
	if err != nil {
		t.Fatalf("find video request: %v", err)
	}
	if got.RenderStatus != domain.RenderStatusQueued {
		t.Fatalf("unexpected status %q", got.RenderStatus)
	}
	if len(got.SelectedVideos) != 2 || got.SelectedVideos[0] != "clip1" || got.SelectedVideos[1] != "clip2" {
		t.Fatalf("unexpected clips %v", got.SelectedVideos)
	}
	if got.RenderID != "" || got.RenderURL != "" || got.RenderError != "" {
		t.Fatalf("expected empty render fields %#v", got)
	}
	if !got.CreatedAt.Equal(request.CreatedAt) {
		t.Fatalf("created_at mismatch %v vs %v", got.CreatedAt, request.CreatedAt)
	}
}

func TestMarkRenderingOnlyFromQueued(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	request := createQueuedRequest(t, store, "user-1")

	moved, err := store.MarkRendering(ctx, request.ID, "job123")
	if err != nil || !moved {
		t.Fatalf("expected first mark to apply, moved=%v err=%v", moved, err)
	}
	moved, err = store.MarkRendering(ctx, request.ID, "job456")
	if err != nil || moved {
		t.Fatalf("expected second mark to be rejected, moved=%v err=%v", moved, err)
	}
	got, _ := store.FindVideoRequest(ctx, request.ID)
	if got.RenderStatus != domain.RenderStatusRendering || got.RenderID != "job123" {
		t.Fatalf("unexpected request %#v", got)
	}
}

func TestCompleteRenderFirstTerminalWriteWins(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	request := createQueuedRequest(t, store, "user-1")
	if _, err := store.MarkRendering(ctx, request.ID, "job123"); err != nil {
		t.Fatalf("mark rendering: %v", err)
	}

	applied, err := store.CompleteRender(ctx, request.ID, domain.RenderStatusDone, "https://cdn.example/x.mp4", "ignored")
	if err != nil || !applied {
		t.Fatalf("expected done to apply, applied=%v err=%v", applied, err)
	}
	applied, err = store.CompleteRender(ctx, request.ID, domain.RenderStatusError, "", "late failure")
	if err != nil || applied {
		t.Fatalf("expected late error to be rejected, applied=%v err=%v", applied, err)
	}
	if moved, _ := store.MarkRendering(ctx, request.ID, "job999"); moved {
		t.Fatal("terminal request moved back to rendering")
	}

	got, _ := store.FindVideoRequest(ctx, request.ID)
	if got.RenderStatus != domain.RenderStatusDone || got.RenderURL != "https://cdn.example/x.mp4" || got.RenderError != "" {
		t.Fatalf("unexpected request %#v", got)
	}
}

func TestCompleteRenderFromQueued(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	request := createQueuedRequest(t, store, "user-1")

	applied, err := store.CompleteRender(ctx, request.ID, domain.RenderStatusError, "https://ignored", "submit failed")
	if err != nil || !applied {
		t.Fatalf("expected error to apply, applied=%v err=%v", applied, err)
	}
	got, _ := store.FindVideoRequest(ctx, request.ID)
	if got.RenderStatus != domain.RenderStatusError || got.RenderError != "submit failed" || got.RenderURL != "" {
		t.Fatalf("unexpected request %#v", got)
	}
}

func TestMarkRenderingAfterTerminalKeepsRenderID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	request := createQueuedRequest(t, store, "user-1")

	if applied, err := store.CompleteRender(ctx, request.ID, domain.RenderStatusDone, "https://cdn.example/x.mp4", ""); err != nil || !applied {
		t.Fatalf("complete: applied=%v err=%v", applied, err)
	}
	moved, err := store.MarkRendering(ctx, request.ID, "job123")
	if err != nil || moved {
		t.Fatalf("expected mark to be rejected, moved=%v err=%v", moved, err)
	}
	if _, err := store.MarkRendering(ctx, request.ID, "job456"); err != nil {
		t.Fatalf("second mark: %v", err)
	}

	got, _ := store.FindVideoRequest(ctx, request.ID)
	if got.RenderStatus != domain.RenderStatusDone || got.RenderID != "job123" || got.RenderURL != "https://cdn.example/x.mp4" {
		t.Fatalf("unexpected request %#v", got)
	}
}

func TestCompleteRenderRejectsNonTerminal(t *testing.T) {
	store := openTestStore(t)
	request := createQueuedRequest(t, store, "user-1")
	if _, err := store.CompleteRender(context.Background(), request.ID, domain.RenderStatusRendering, "", ""); err == nil {
		t.Fatal("expected error for non-terminal status")
	}
}

func TestFindVideoRequestsByUserIDNewestFirst(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first := createQueuedRequest(t, store, "user-1")
	second := createQueuedRequest(t, store, "user-1")
	createQueuedRequest(t, store, "user-2")

	got, err := store.FindVideoRequestsByUserID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != second.ID || got[1].ID != first.ID {
		t.Fatalf("unexpected order %#v", got)
	}

	none, err := store.FindVideoRequestsByUserID(context.Background(), "nobody")
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v err %v", none, err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestRebindPostgres(t *testing.T) {
	store := NewSQLStore(nil, DialectPostgres)
	got := store.rebind("UPDATE t SET a = ? WHERE b = ? AND c IN (?, ?)")
	want := "UPDATE t SET a = $1 WHERE b = $2 AND c IN ($3, $4)"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
