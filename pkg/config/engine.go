// Package config provides the embeddable server runner for the cascade
// engine.
package config

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/Egham-7/cascade-engine/internal/api"
	"github.com/Egham-7/cascade-engine/internal/config"
	"github.com/Egham-7/cascade-engine/internal/models"
	"github.com/Egham-7/cascade-engine/internal/services/cache"
	"github.com/Egham-7/cascade-engine/internal/services/cascade"
	"github.com/Egham-7/cascade-engine/internal/services/circuitbreaker"
	"github.com/Egham-7/cascade-engine/internal/services/evaluator"
	"github.com/Egham-7/cascade-engine/internal/services/ledger"
	"github.com/Egham-7/cascade-engine/internal/services/metrics"
	"github.com/Egham-7/cascade-engine/internal/services/policy"
	"github.com/Egham-7/cascade-engine/internal/services/tiers"
	"github.com/Egham-7/cascade-engine/internal/services/transport"
	"github.com/Egham-7/cascade-engine/pkg/builder"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// Engine represents a cascade engine server instance.
type Engine struct {
	config      *config.Config
	app         *fiber.App
	redis       *redis.Client
	service     *cascade.Service
	registry    *prometheus.Registry
	middlewares []fiber.Handler
}

// NewEngine creates an Engine with the given configuration. The cfg
// parameter is required and must not be nil.
func NewEngine(cfg *config.Config) *Engine {
	if cfg == nil {
		panic("config cannot be nil - use config.LoadFromFile() or the builder to create config")
	}
	return &Engine{config: cfg}
}

// NewEngineWithBuilder creates an Engine from a fluent builder, including
// its custom middlewares.
func NewEngineWithBuilder(b *builder.Builder) *Engine {
	return &Engine{
		config:      b.Build(),
		middlewares: b.GetMiddlewares(),
	}
}

// Run starts the engine server and blocks until shutdown.
func (e *Engine) Run() error {
	if err := e.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogLevel(e.config)

	port := e.config.Server.Port
	if port == "" {
		port = "8080"
	}
	listenAddr := ":" + port

	e.app = createFiberApp(e.config)

	redisClient, err := createRedisClient(e.config)
	if err != nil {
		return fmt.Errorf("failed to create Redis client: %w", err)
	}
	e.redis = redisClient
	if e.redis != nil {
		defer func() {
			if err := e.redis.Close(); err != nil {
				fiberlog.Errorf("Failed to close Redis client: %v", err)
			}
		}()
	}

	service, registry, err := buildService(e.config, e.redis)
	if err != nil {
		return fmt.Errorf("failed to build cascade service: %w", err)
	}
	e.service = service
	e.registry = registry
	defer func() {
		if err := e.service.Close(); err != nil {
			fiberlog.Errorf("Failed to close cascade service: %v", err)
		}
	}()

	setupMiddleware(e.app, e.config, e.middlewares)
	e.setupRoutes()
	e.app.Get("/", welcomeHandler())

	fmt.Printf("🚀 CascadeEngine starting on %s\n", listenAddr)
	fmt.Printf("   Environment: %s\n", e.config.Server.Environment)
	fmt.Printf("   Go version: %s\n", runtime.Version())
	fmt.Printf("   GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := e.app.Listen(listenAddr); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		fiberlog.Infof("Received signal: %v. Starting graceful shutdown...", sig)
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		fiberlog.Info("Context cancelled, starting shutdown...")
	}

	fiberlog.Info("Server shutting down gracefully...")
	if err := e.app.ShutdownWithTimeout(30 * time.Second); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	fiberlog.Info("Server shutdown completed successfully")
	return nil
}

func (e *Engine) setupRoutes() {
	providers := make([]string, 0, len(e.config.Providers))
	for name := range e.config.Providers {
		providers = append(providers, name)
	}

	healthHandler := api.NewHealthHandler(e.redis, providers)
	e.app.Get("/health", healthHandler.HealthCheck)
	e.app.Get("/metrics", api.MetricsHandler(e.registry))

	cascadeHandler := api.NewCascadeHandler(e.service)
	v1 := e.app.Group("/v1/cascade")
	v1.Post("/execute", cascadeHandler.Execute)
	v1.Post("/escalate", cascadeHandler.Escalate)
	v1.Post("/consensus", cascadeHandler.Consensus)
	v1.Post("/adaptive", cascadeHandler.Adaptive)
	v1.Get("/policies", cascadeHandler.GetPolicies)
	v1.Put("/policies", cascadeHandler.UpdatePolicies)
	v1.Get("/recommendations", cascadeHandler.Recommendations)
}

// buildService wires every engine component from configuration.
func buildService(cfg *config.Config, redisClient *redis.Client) (*cascade.Service, *prometheus.Registry, error) {
	registry := transport.NewRegistry(transport.Config{
		OpenAIAPIKey:    cfg.APIKeyFor("openai"),
		AnthropicAPIKey: cfg.APIKeyFor("anthropic"),
		GeminiAPIKey:    cfg.APIKeyFor("gemini"),
	})

	var qualityEvaluator models.QualityEvaluator
	if cfg.Evaluator.JudgeModel != "" {
		qualityEvaluator = evaluator.NewLLMJudge(registry, cfg.Evaluator.JudgeModel)
		fiberlog.Infof("Quality evaluation: LLM judge (%s)", cfg.Evaluator.JudgeModel)
	} else {
		qualityEvaluator = evaluator.NewHeuristic()
		fiberlog.Info("Quality evaluation: lexical heuristic (no judge model configured)")
	}

	responseCache, err := buildCache(cfg, redisClient)
	if err != nil {
		return nil, nil, err
	}

	tierModels, err := cfg.TierModels()
	if err != nil {
		return nil, nil, err
	}

	var breakers map[string]cascade.ProviderBreaker
	if cfg.Breakers.Enabled {
		breakers = make(map[string]cascade.ProviderBreaker, len(cfg.Providers))
		for provider := range cfg.Providers {
			breakers[provider] = circuitbreaker.NewForProvider(redisClient, provider)
		}
		fiberlog.Infof("Circuit breakers enabled for %d providers", len(breakers))
	}

	var costLedger models.CostLedger = ledger.NewNoopLedger()
	if cfg.Ledger.Enabled {
		db, err := ledger.Open(cfg.Ledger.Driver, cfg.Ledger.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("ledger database: %w", err)
		}
		gormLedger, err := ledger.NewGormLedger(db)
		if err != nil {
			return nil, nil, fmt.Errorf("ledger migration: %w", err)
		}
		costLedger = gormLedger
		fiberlog.Infof("Usage ledger enabled (%s)", cfg.Ledger.Driver)
	}

	promRegistry := prometheus.NewRegistry()

	service := cascade.NewService(cascade.Dependencies{
		Policies:  policy.NewStore(cfg.Policies),
		Catalog:   tiers.NewCatalog(tierModels),
		Cache:     responseCache,
		Transport: registry,
		Evaluator: qualityEvaluator,
		Ledger:    costLedger,
		Metrics:   metrics.NewPrometheusExporter(promRegistry),
		Breakers:  breakers,
	})
	return service, promRegistry, nil
}

func buildCache(cfg *config.Config, redisClient *redis.Client) (*cache.ResponseCache, error) {
	var (
		store cache.Store
		err   error
	)
	switch cfg.Cache.Backend {
	case "", "memory":
		store, err = cache.NewMemoryStore(cfg.Cache.Capacity)
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("cache.backend is redis but no Redis client is available")
		}
		store = cache.NewRedisStoreFromClient(redisClient)
	case "semantic":
		store, err = cache.NewSemanticStore(cache.SemanticStoreConfig{
			OpenAIAPIKey:        cfg.Cache.OpenAIAPIKey,
			EmbeddingModel:      cfg.Cache.EmbeddingModel,
			Capacity:            cfg.Cache.Capacity,
			SimilarityThreshold: cfg.Cache.SimilarityThreshold,
		})
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("cache backend %s: %w", cfg.Cache.Backend, err)
	}
	fiberlog.Infof("Response cache backend: %s", cfg.Cache.Backend)
	return cache.NewResponseCache(store), nil
}

func createFiberApp(cfg *config.Config) *fiber.App {
	isProd := cfg.IsProduction()

	return fiber.New(fiber.Config{
		AppName:              "CascadeEngine v1.0",
		EnablePrintRoutes:    !isProd,
		ReadTimeout:          2 * time.Minute,
		WriteTimeout:         2 * time.Minute,
		IdleTimeout:          5 * time.Minute,
		ReadBufferSize:       8192,
		WriteBufferSize:      8192,
		CompressedFileSuffix: ".gz",
		Prefork:              false,
		CaseSensitive:        true,
		StrictRouting:        false,
		Network:              "tcp",
		ServerHeader:         "CascadeEngine",
	})
}

func setupMiddleware(app *fiber.App, cfg *config.Config, custom []fiber.Handler) {
	isProd := cfg.IsProduction()

	// Recover middleware (must be first)
	app.Use(recover.New(recover.Config{
		EnableStackTrace: !isProd,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:               1000,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fmt.Errorf("1000 requests per minute")
		},
	}))

	// Request deadline: callers can tighten it per request via header.
	app.Use(func(c *fiber.Ctx) error {
		const (
			defaultTimeout = 30 * time.Second
			maxTimeout     = 2 * time.Minute
		)

		timeout := defaultTimeout
		if customTimeout := c.Get("X-Request-Timeout"); customTimeout != "" {
			if d, err := time.ParseDuration(customTimeout); err == nil && d > 0 {
				timeout = min(d, maxTimeout)
			}
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)

		return c.Next()
	})

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	if isProd {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${status} ${method} ${path} ${latency} ${bytesSent}b\n",
			Output: os.Stdout,
		}))
	} else {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path} ${error}\n",
			Output: os.Stdout,
		}))
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, User-Agent, X-Request-ID, X-Request-Timeout",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400,
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
	}))

	for _, middleware := range custom {
		app.Use(middleware)
	}

	// Profiler (dev only)
	if !isProd {
		app.Use(pprof.New())
	}
}

func setupLogLevel(cfg *config.Config) {
	logLevel := cfg.GetNormalizedLogLevel()

	switch logLevel {
	case "trace":
		fiberlog.SetLevel(fiberlog.LevelTrace)
	case "debug":
		fiberlog.SetLevel(fiberlog.LevelDebug)
	case "info":
		fiberlog.SetLevel(fiberlog.LevelInfo)
	case "warn", "warning":
		fiberlog.SetLevel(fiberlog.LevelWarn)
	case "error":
		fiberlog.SetLevel(fiberlog.LevelError)
	case "fatal":
		fiberlog.SetLevel(fiberlog.LevelFatal)
	case "panic":
		fiberlog.SetLevel(fiberlog.LevelPanic)
	default:
		fiberlog.SetLevel(fiberlog.LevelInfo)
		fiberlog.Warnf("Unknown log level '%s', defaulting to 'info'", logLevel)
	}

	fiberlog.Infof("Log level set to: %s", logLevel)
}

func createRedisClient(cfg *config.Config) (*redis.Client, error) {
	redisURL := cfg.Cache.RedisURL
	if redisURL == "" {
		redisURL = cfg.BreakerRedisURL()
	}
	if redisURL == "" {
		fiberlog.Info("Redis not configured - Redis cache backend and circuit breaker persistence disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = 50
	opt.MinIdleConns = 10
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	opt.ConnMaxLifetime = 30 * time.Minute
	opt.DialTimeout = 10 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	opt.MaxRetries = 3
	opt.MinRetryBackoff = 8 * time.Millisecond
	opt.MaxRetryBackoff = 512 * time.Millisecond

	client := redis.NewClient(opt)
	return testRedisConnectionWithRetry(client)
}

func testRedisConnectionWithRetry(client *redis.Client) (*redis.Client, error) {
	const maxAttempts = 3
	const baseDelay = 1 * time.Second

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()

		if err == nil {
			fiberlog.Infof("Redis connection established successfully (attempt %d/%d)", attempt, maxAttempts)
			return client, nil
		}

		fiberlog.Warnf("Redis connection failed (attempt %d/%d): %v", attempt, maxAttempts, err)
		if attempt < maxAttempts {
			delay := time.Duration(attempt) * baseDelay
			fiberlog.Infof("Retrying Redis connection in %v...", delay)
			time.Sleep(delay)
		}
	}

	if err := client.Close(); err != nil {
		fiberlog.Errorf("Failed to close Redis client after connection failures: %v", err)
	}
	return nil, fmt.Errorf("failed to connect to Redis after %d attempts", maxAttempts)
}

func welcomeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message":    "Welcome to CascadeEngine!",
			"version":    "1.0.0",
			"go_version": runtime.Version(),
			"status":     "running",
			"endpoints": fiber.Map{
				"execute":         "/v1/cascade/execute",
				"escalate":        "/v1/cascade/escalate",
				"consensus":       "/v1/cascade/consensus",
				"adaptive":        "/v1/cascade/adaptive",
				"policies":        "/v1/cascade/policies",
				"recommendations": "/v1/cascade/recommendations",
				"health":          "/health",
				"metrics":         "/metrics",
			},
		})
	}
}
