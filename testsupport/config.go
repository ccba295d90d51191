package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/vitovidale/editia-orchestrator/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig returns a validated test config backed by a SQLite file in a
// per-test temp directory.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Environment = "test"
	cfg.Database.Driver = "sqlite"
	cfg.Database.URL = filepath.Join(t.TempDir(), "editia.db")
	cfg.Database.ConnectAttempts = 1
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Server.Bind = "127.0.0.1:0"
	cfg.Events.RabbitMQURL = ""

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return &cfg
}

// WithWebhookSecret sets the shared webhook secret.
func WithWebhookSecret(secret string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Auth.WebhookSecret = secret
	}
}

// WithEnvironment overrides the deployment environment. Production gets
// placeholder API credentials so validation passes.
func WithEnvironment(env string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Environment = env
		if cfg.IsProduction() {
			cfg.LLM.APIKey = "test"
			cfg.Render.APIKey = "test"
			cfg.Render.TemplateID = "test-template"
		}
	}
}
