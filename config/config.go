package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Server contains HTTP listener settings.
type Server struct {
	Bind                string   `toml:"bind"`
	AllowedOrigins      []string `toml:"allowed_origins"`
	ReadTimeoutSeconds  int      `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `toml:"write_timeout_seconds"`
	IdleTimeoutSeconds  int      `toml:"idle_timeout_seconds"`
}

// Database contains the scripts/video_requests store settings.
type Database struct {
	Driver                 string `toml:"driver"` // postgres | sqlite
	URL                    string `toml:"url"`
	MaxOpenConns           int    `toml:"max_open_conns"`
	MaxIdleConns           int    `toml:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `toml:"conn_max_lifetime_seconds"`
	ConnectAttempts        int    `toml:"connect_attempts"`
	AutoMigrate            bool   `toml:"auto_migrate"`
}

// Auth contains bearer token and webhook verification secrets.
type Auth struct {
	JWTSecret     string `toml:"jwt_secret"`
	WebhookSecret string `toml:"webhook_secret"`

	usingDevSecret bool
}

// LLM contains the text-generation API settings.
type LLM struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	MaxTokens      int     `toml:"max_tokens"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// Render contains the render API settings.
type Render struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TemplateID     string `toml:"template_id"`
	WebhookURL     string `toml:"webhook_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Events contains the RabbitMQ publisher settings. An empty URL disables
// publishing.
type Events struct {
	RabbitMQURL     string `toml:"rabbitmq_url"`
	Queue           string `toml:"queue"`
	ConnectAttempts int    `toml:"connect_attempts"`
}

// Prompts points at an external prompt bundle; empty means the embedded one.
type Prompts struct {
	Path             string `toml:"path"`
	ScriptTemplateID string `toml:"script_template_id"`
}

// Logging contains log output settings.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values for the orchestrator.
type Config struct {
	Environment string   `toml:"environment"`
	Server      Server   `toml:"server"`
	Database    Database `toml:"database"`
	Auth        Auth     `toml:"auth"`
	LLM         LLM      `toml:"llm"`
	Render      Render   `toml:"render"`
	Events      Events   `toml:"events"`
	Prompts     Prompts  `toml:"prompts"`
	Logging     Logging  `toml:"logging"`
}

// Load reads the TOML file at path (when present) over the defaults, applies
// environment overrides, then normalizes and validates the result. The bool
// reports whether the file existed.
func Load(path string) (*Config, bool, error) {
	cfg := Default()

	exists := false
	if strings.TrimSpace(path) != "" {
		file, err := os.Open(path)
		switch {
		case err == nil:
			exists = true
			defer file.Close()
			decoder := toml.NewDecoder(file)
			decoder.DisallowUnknownFields()
			if err := decoder.Decode(&cfg); err != nil {
				return nil, false, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, false, fmt.Errorf("open config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, exists, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, exists, err
	}
	return &cfg, exists, nil
}

// IsProduction reports whether the service runs with production semantics.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// UsingDevSecret reports whether the JWT secret fell back to the development default.
func (c *Config) UsingDevSecret() bool {
	return c.Auth.usingDevSecret
}

func (c *Config) applyEnv() error {
	stringVars := map[string]*string{
		"APP_ENV":            &c.Environment,
		"DATABASE_DRIVER":    &c.Database.Driver,
		"DATABASE_URL":       &c.Database.URL,
		"JWT_SECRET":         &c.Auth.JWTSecret,
		"WEBHOOK_SECRET":     &c.Auth.WebhookSecret,
		"OPENAI_API_KEY":     &c.LLM.APIKey,
		"OPENAI_MODEL":       &c.LLM.Model,
		"RENDER_API_KEY":     &c.Render.APIKey,
		"RENDER_TEMPLATE_ID": &c.Render.TemplateID,
		"RENDER_WEBHOOK_URL": &c.Render.WebhookURL,
		"RABBITMQ_URL":       &c.Events.RabbitMQURL,
		"PROMPTS_PATH":       &c.Prompts.Path,
		"LOG_LEVEL":          &c.Logging.Level,
		"LOG_FORMAT":         &c.Logging.Format,
	}
	for name, target := range stringVars {
		if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
			*target = strings.TrimSpace(value)
		}
	}
	if port, ok := os.LookupEnv("PORT"); ok && strings.TrimSpace(port) != "" {
		if _, err := strconv.Atoi(strings.TrimSpace(port)); err != nil {
			return fmt.Errorf("PORT must be numeric, got %q", port)
		}
		c.Server.Bind = ":" + strings.TrimSpace(port)
	}
	return nil
}

func (c *Config) normalize() {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	if c.Environment == "" {
		c.Environment = defaultEnvironment
	}
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = defaultDatabaseDriver
	}
	if c.Database.ConnectAttempts <= 0 {
		c.Database.ConnectAttempts = 1
	}
	if c.Events.Queue == "" {
		c.Events.Queue = defaultEventsQueue
	}
	if c.Events.ConnectAttempts <= 0 {
		c.Events.ConnectAttempts = 1
	}
	if c.Prompts.ScriptTemplateID == "" {
		c.Prompts.ScriptTemplateID = defaultScriptTemplateID
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	if c.Auth.JWTSecret == "" && !c.IsProduction() {
		c.Auth.JWTSecret = devJWTSecret
		c.Auth.usingDevSecret = true
	}

	origins := c.Server.AllowedOrigins[:0]
	for _, origin := range c.Server.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.Server.AllowedOrigins = origins
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	switch c.Environment {
	case "development", "test", "production":
	default:
		return fmt.Errorf("environment must be development, test, or production, got %q", c.Environment)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.URL) == "" {
		return errors.New("database.url is required (set DATABASE_URL)")
	}
	if strings.TrimSpace(c.Server.Bind) == "" {
		return errors.New("server.bind must be set")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required in production (set JWT_SECRET)")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	if c.LLM.MaxTokens <= 0 {
		return errors.New("llm.max_tokens must be positive")
	}
	if c.IsProduction() {
		if c.LLM.APIKey == "" {
			return errors.New("llm.api_key is required in production (set OPENAI_API_KEY)")
		}
		if c.Render.APIKey == "" {
			return errors.New("render.api_key is required in production (set RENDER_API_KEY)")
		}
		if c.Render.TemplateID == "" {
			return errors.New("render.template_id is required in production")
		}
	}
	return nil
}
