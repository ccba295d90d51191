package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/handlers"
	"github.com/spf13/cobra"

	"github.com/vitovidale/editia-orchestrator/config"
	"github.com/vitovidale/editia-orchestrator/domain"
	"github.com/vitovidale/editia-orchestrator/infrastructure"
	"github.com/vitovidale/editia-orchestrator/logging"
	"github.com/vitovidale/editia-orchestrator/usecase"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or verify the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			store, err := infrastructure.OpenSQLStore(cmd.Context(), cfg.Database, logger)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
}

type eventPublisher interface {
	domain.EventPublisher
	infrastructure.StatusReporter
	Close() error
}

func runServer(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	if cfg.UsingDevSecret() {
		logger.Warn("JWT_SECRET not set, using the development secret; never do this in production")
	}

	store, err := infrastructure.OpenSQLStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if cfg.Database.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}

	bank, err := loadPromptBank(cfg.Prompts.Path)
	if err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}
	if _, ok := bank.Get(cfg.Prompts.ScriptTemplateID); !ok {
		return fmt.Errorf("prompt bank has no %q template", cfg.Prompts.ScriptTemplateID)
	}

	var publisher eventPublisher = infrastructure.NopPublisher{}
	if cfg.Events.RabbitMQURL != "" {
		rabbit, err := infrastructure.DialRabbitMQ(ctx, cfg.Events, logger)
		if err != nil {
			return err
		}
		publisher = rabbit
	} else {
		logger.Info("RABBITMQ_URL not set, render events will not be published")
	}
	defer publisher.Close()

	metrics := infrastructure.NewMetrics()
	generator := infrastructure.NewOpenAIClient(infrastructure.OpenAIConfig{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	renderer := infrastructure.NewCreatomateClient(infrastructure.RenderConfig{
		APIKey:         cfg.Render.APIKey,
		BaseURL:        cfg.Render.BaseURL,
		TemplateID:     cfg.Render.TemplateID,
		WebhookURL:     cfg.Render.WebhookURL,
		TimeoutSeconds: cfg.Render.TimeoutSeconds,
	}, nil)

	ucLogger := logging.NewComponentLogger(logger, "orchestrator")
	reconciler := &usecase.RenderReconciler{
		Requests:  store,
		Publisher: publisher,
		Metrics:   metrics,
		Logger:    ucLogger,
	}
	videoHandlers := infrastructure.NewVideoHandlers(
		&usecase.SubmitVideoUseCase{
			Scripts:    store,
			Requests:   store,
			Prompts:    bank,
			Generator:  generator,
			Renderer:   renderer,
			Reconciler: reconciler,
			Metrics:    metrics,
			Logger:     ucLogger,
			Settings: usecase.GenerationSettings{
				TemplateID:  cfg.Prompts.ScriptTemplateID,
				Model:       cfg.LLM.Model,
				Temperature: cfg.LLM.Temperature,
				MaxTokens:   cfg.LLM.MaxTokens,
			},
		},
		&usecase.RequestStatusUseCase{Requests: store, Renderer: renderer, Reconciler: reconciler, Metrics: metrics, Logger: ucLogger},
		&usecase.RenderWebhookUseCase{Requests: store, Reconciler: reconciler, Logger: ucLogger},
		&usecase.ListRequestsUseCase{Requests: store},
		&usecase.GetScriptUseCase{Scripts: store},
		bank,
		logger,
	)
	videoHandlers.ExposeErrorDetail = !cfg.IsProduction()
	videoHandlers.WebhookSecret = cfg.Auth.WebhookSecret

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := infrastructure.NewRouter(infrastructure.RouterDeps{
		Handlers: videoHandlers,
		Verifier: infrastructure.NewJWTVerifier(cfg.Auth.JWTSecret),
		Health:   &infrastructure.HealthHandler{DB: store, Events: publisher},
		Metrics:  metrics,
		Logger:   logger,
	})

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.Server.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Webhook-Secret"}),
	)
	srv := &http.Server{
		Addr:         cfg.Server.Bind,
		Handler:      cors(router),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("editia orchestrator listening", slog.String("addr", cfg.Server.Bind), slog.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received, draining requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logger.Info("server stopped cleanly")
	return nil
}
