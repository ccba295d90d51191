package testsupport

import (
	"context"
	"testing"

	"github.com/vitovidale/editia-orchestrator/config"
	"github.com/vitovidale/editia-orchestrator/infrastructure"
	"github.com/vitovidale/editia-orchestrator/logging"
)

// MustOpenStore opens a migrated SQLStore for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *infrastructure.SQLStore {
	t.Helper()

	if cfg == nil {
		cfg = NewConfig(t)
	}
	ctx := context.Background()
	store, err := infrastructure.OpenSQLStore(ctx, cfg.Database, logging.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate store: %v", err)
	}
	return store
}
