package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/spot-the-bot/backend/internal/v1/agents"
	"github.com/spot-the-bot/backend/internal/v1/api"
	"github.com/spot-the-bot/backend/internal/v1/auth"
	"github.com/spot-the-bot/backend/internal/v1/bus"
	"github.com/spot-the-bot/backend/internal/v1/config"
	"github.com/spot-the-bot/backend/internal/v1/health"
	"github.com/spot-the-bot/backend/internal/v1/logging"
	"github.com/spot-the-bot/backend/internal/v1/middleware"
	"github.com/spot-the-bot/backend/internal/v1/ratelimit"
	"github.com/spot-the-bot/backend/internal/v1/room"
	"github.com/spot-the-bot/backend/internal/v1/tracing"
	"github.com/spot-the-bot/backend/internal/v1/transport"
)

func main() {
	// Load .env from common locations; absence is fine in production.
	for _, path := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(path); err == nil {
			slog.Info("Loaded environment file", "path", path)
			break
		}
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("Invalid environment configuration", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if cfg.OTLPEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, "spot-the-bot-backend", cfg.OTLPEndpoint)
		if err != nil {
			logging.Fatal(ctx, "failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logging.Warn(shutdownCtx, "tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	var busService *bus.Service
	if cfg.RedisEnabled {
		busService, err = bus.NewService(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logging.Fatal(ctx, "failed to connect to Redis", zap.Error(err))
		}
	}

	provider := agents.NewClient(buildCompleter(cfg), agents.Options{
		Timeout:       cfg.LLMTimeout,
		MaxConcurrent: cfg.LLMMaxConcurrent,
	})

	registry := room.NewRegistry(room.Config{
		DiscussionTime:              cfg.DiscussionTime,
		VotingTime:                  cfg.VotingTime,
		RoundsToWin:                 cfg.RoundsToWin,
		MessageCooldown:             cfg.MessageCooldown,
		MaxConcurrentAgentResponses: cfg.MaxConcurrentAgentResponses,
	}, clock.RealClock{}, provider, busService)

	tokens := auth.NewTokenIssuer(cfg.SessionSecret, 0)

	rl, err := ratelimit.NewRateLimiter(cfg, busService.Client())
	if err != nil {
		logging.Fatal(ctx, "failed to create rate limiter", zap.Error(err))
	}

	if !cfg.DevelopmentMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(otelgin.Middleware("spot-the-bot-backend"))
	router.Use(cors.New(corsConfig(cfg)))
	router.Use(rl.GlobalMiddleware())

	apiHandler := api.NewHandler(registry, cfg, tokens)
	healthHandler := health.NewHandler(busService)
	api.RegisterRoutes(router, apiHandler, healthHandler, rl)
	router.GET("/ws/:code/:playerID", transport.ServeWs(registry, tokens, cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info(ctx, "server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal(ctx, "server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	registry.Shutdown(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(shutdownCtx, "server shutdown failed", zap.Error(err))
	}
	if err := busService.Close(); err != nil {
		logging.Warn(shutdownCtx, "redis close failed", zap.Error(err))
	}

	logging.Info(ctx, "shutdown complete")
}

// buildCompleter selects the provider backend. The fallback provider runs
// entirely on canned output so the server works without any API key.
func buildCompleter(cfg *config.Config) agents.Completer {
	switch cfg.AIProvider {
	case config.ProviderAnthropic:
		return agents.NewAnthropicCompleter(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.AIModelName, cfg.AITemperature, cfg.LLMTimeout)
	case config.ProviderGroq:
		return agents.NewGroqCompleter(cfg.LLMAPIKey, cfg.AIModelName, cfg.AITemperature, cfg.LLMTimeout)
	case config.ProviderFallback:
		return &agents.CannedCompleter{}
	default:
		return agents.NewOpenAICompleter(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.AIModelName, cfg.AITemperature, cfg.LLMTimeout)
	}
}

func corsConfig(cfg *config.Config) cors.Config {
	c := cors.DefaultConfig()
	c.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Correlation-ID"}
	c.ExposeHeaders = []string{"X-Correlation-ID"}

	if cfg.DevelopmentMode {
		c.AllowAllOrigins = true
		return c
	}

	var origins []string
	for _, o := range strings.Split(cfg.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	c.AllowOrigins = origins
	return c
}
