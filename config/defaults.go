package config

const (
	defaultEnvironment      = "development"
	defaultBind             = ":5001"
	defaultDatabaseDriver   = "postgres"
	defaultEventsQueue      = "video_render_events"
	defaultScriptTemplateID = "script-generation"
	defaultLLMBaseURL       = "https://api.openai.com/v1/chat/completions"
	defaultLLMModel         = "gpt-4o-mini"
	defaultRenderBaseURL    = "https://api.creatomate.com/v1"
	devJWTSecret            = "editia-development-secret-change-me"
)

// Default returns a Config populated with service defaults.
func Default() Config {
	return Config{
		Environment: defaultEnvironment,
		Server: Server{
			Bind:                defaultBind,
			AllowedOrigins:      []string{"http://localhost:8081"},
			ReadTimeoutSeconds:  10,
			WriteTimeoutSeconds: 30,
			IdleTimeoutSeconds:  60,
		},
		Database: Database{
			Driver:                 defaultDatabaseDriver,
			MaxOpenConns:           25,
			MaxIdleConns:           5,
			ConnMaxLifetimeSeconds: 300,
			ConnectAttempts:        5,
			AutoMigrate:            true,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Temperature:    0.7,
			MaxTokens:      1000,
			TimeoutSeconds: 60,
		},
		Render: Render{
			BaseURL:        defaultRenderBaseURL,
			TimeoutSeconds: 30,
		},
		Events: Events{
			Queue:           defaultEventsQueue,
			ConnectAttempts: 5,
		},
		Prompts: Prompts{
			ScriptTemplateID: defaultScriptTemplateID,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}
