package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"parley.app/switchboard/common/id"
	"parley.app/switchboard/common/llm"
	"parley.app/switchboard/common/logger"
	"parley.app/switchboard/common/otel"
	"parley.app/switchboard/core/config"
	"parley.app/switchboard/core/db"
	"parley.app/switchboard/internal/engine"
	"parley.app/switchboard/internal/http/middleware"
	httprouter "parley.app/switchboard/internal/http/router"
	"parley.app/switchboard/internal/orchestrator"
	"parley.app/switchboard/internal/service"
	"parley.app/switchboard/internal/store"
	"parley.app/switchboard/internal/transcript"
	"parley.app/switchboard/internal/vcs"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "switchboard starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	if !cfg.LLM.Enabled() {
		slog.ErrorContext(ctx, "llm provider not configured (set LLM_API_KEY)")
		os.Exit(1)
	}
	client, err := llm.NewAgentClient(llm.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize llm client", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "llm client ready", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)

	transcripts := transcript.NewStore(cfg.Engine.TranscriptsDir)

	agent, err := engine.New(engine.Config{
		Client:      client,
		Transcripts: transcripts,
		MaxTurns:    cfg.Engine.MaxTurns,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize agent engine", "error", err)
		os.Exit(1)
	}

	var committer vcs.Committer = vcs.NopCommitter{}
	if cfg.Git.Enabled() {
		committer = vcs.NewGitCommitter(nil, cfg.Git.PushEnabled)
	}

	stores := store.NewStores(database.Queries())
	services := service.NewServices(
		stores,
		service.NewTxRunner(database),
		transcripts,
		committer,
		cfg.Engine.WorkspacePath,
	)

	orch, err := orchestrator.New(orchestrator.Config{
		Engine:        agent,
		Sessions:      services.Sessions(),
		Transcripts:   transcripts,
		Committer:     committer,
		WorkspacePath: cfg.Engine.WorkspacePath,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize orchestrator", "error", err)
		os.Exit(1)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services, orch)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// No WriteTimeout: event streams stay open for the life of the
		// client connection.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if err := orch.Close(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "orchestrator shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services, orch *orchestrator.Orchestrator) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(splitOrigins(cfg.DashboardOrigins)))

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		Queue:             orch,
		KeepaliveInterval: cfg.Stream.KeepaliveInterval,
	})

	return router
}

func splitOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

const banner = `
███████╗██╗    ██╗██╗████████╗ ██████╗██╗  ██╗██████╗  ██████╗  █████╗ ██████╗ ██████╗
██╔════╝██║    ██║██║╚══██╔══╝██╔════╝██║  ██║██╔══██╗██╔═══██╗██╔══██╗██╔══██╗██╔══██╗
███████╗██║ █╗ ██║██║   ██║   ██║     ███████║██████╔╝██║   ██║███████║██████╔╝██║  ██║
╚════██║██║███╗██║██║   ██║   ██║     ██╔══██║██╔══██╗██║   ██║██╔══██║██╔══██╗██║  ██║
███████║╚███╔███╔╝██║   ██║   ╚██████╗██║  ██║██████╔╝╚██████╔╝██║  ██║██║  ██║██████╔╝
╚══════╝ ╚══╝╚══╝ ╚═╝   ╚═╝    ╚═════╝╚═╝  ╚═╝╚═════╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚═════╝
`
