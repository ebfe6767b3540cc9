package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"outbreak-platform/internal/cache"
	"outbreak-platform/internal/config"
	"outbreak-platform/internal/engine"
	"outbreak-platform/internal/handlers"
	"outbreak-platform/internal/repository"
	"outbreak-platform/internal/services"
	"outbreak-platform/pkg/database"
	"outbreak-platform/pkg/logging"
	"outbreak-platform/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := logging.NewStructuredLogger("outbreak-api", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting outbreak platform API server", logging.Fields{
		"version":     "1.0.0",
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"db_host":     cfg.Database.Host,
		"db_name":     cfg.Database.Database,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("outbreak_platform")

	// Initialize database
	dbConfig := &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}

	db, err := database.NewPostgresDB(dbConfig, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Initialize repository
	repo := repository.NewSurveillanceRepository(db, logger, metricsCollector)

	// Initialize risk engine
	riskEngine, err := engine.NewEngine(engineConfig(cfg))
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Invalid risk engine configuration", logging.Fields{}, err)
	}

	// Initialize Redis cache. The API stays up without it; reads just go
	// straight to Postgres.
	var scoreCache *cache.Cache
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn(ctx, "[STARTUP] Redis unreachable, serving uncached", logging.Fields{
				"redis_addr": cfg.Redis.Addr,
			})
		} else {
			scoreCache = cache.New(redisClient, logger, metricsCollector, "outbreak")
			defer redisClient.Close()
		}
		cancel()
	}

	// Initialize services
	riskService := services.NewRiskService(repo, riskEngine, scoreCache, cfg.Cache, cfg.Scoring, logger, metricsCollector)

	// Initialize handlers
	riskHandler := handlers.NewRiskHandler(riskService, cfg.Server.StalenessWarning, logger, metricsCollector)

	// Setup router
	router := mux.NewRouter()

	// Register routes
	riskHandler.RegisterRoutes(router)

	// API documentation
	router.HandleFunc("/api/docs/openapi.json", handlers.OpenAPISpec).Methods("GET")
	router.HandleFunc("/api/docs", handlers.SwaggerUI).Methods("GET")

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Create HTTP server. CORS wraps the whole router so preflight OPTIONS
	// requests are answered even though every route registers GET only.
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handlers.CORSMiddleware(cfg.Server.CORSAllowedOrigins)(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}

// engineConfig maps the environment-driven engine settings onto the
// engine's own config type.
func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		WastewaterWeight: cfg.Engine.WastewaterWeight,
		VelocityWeight:   cfg.Engine.VelocityWeight,
		ImportWeight:     cfg.Engine.ImportWeight,
		MaxExpectedLoad:  cfg.Engine.MaxExpectedLoad,
		VelocityMax:      cfg.Engine.VelocityMax,
		VolumeSaturation: cfg.Engine.VolumeSaturation,
		ImportDefault:    cfg.Engine.ImportDefault,
		MinDataPoints:    cfg.Engine.MinDataPoints,
		MaxDataAgeDays:   cfg.Engine.MaxDataAgeDays,
		Penalties: engine.ConfidencePenalties{
			NoSamples:     cfg.Engine.PenaltyNoSamples,
			SparseSamples: cfg.Engine.PenaltySparseSamples,
			StaleData:     cfg.Engine.PenaltyStaleData,
			AgingData:     cfg.Engine.PenaltyAgingData,
			NoFlows:       cfg.Engine.PenaltyNoFlows,
			Floor:         cfg.Engine.ConfidenceFloor,
		},
	}
}
