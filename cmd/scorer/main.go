package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"outbreak-platform/internal/cache"
	"outbreak-platform/internal/config"
	"outbreak-platform/internal/engine"
	"outbreak-platform/internal/events"
	"outbreak-platform/internal/repository"
	"outbreak-platform/internal/services"
	"outbreak-platform/pkg/database"
	"outbreak-platform/pkg/logging"
	"outbreak-platform/pkg/metrics"
)

func main() {
	// Parse command-line flags
	once := flag.Bool("once", false, "Run a single scoring epoch and exit")
	flag.Parse()

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
	logger := logging.NewStructuredLogger("outbreak-scorer", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[SCORER_START] Starting risk scorer", logging.Fields{
		"version":  "1.0.0",
		"once":     *once,
		"interval": cfg.Scoring.Interval.String(),
		"workers":  cfg.Scoring.Workers,
		"db_host":  cfg.Database.Host,
		"db_name":  cfg.Database.Database,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("outbreak_scorer")

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
		logger.Fatal(ctx, "[SCORER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Initialize repository
	repo := repository.NewSurveillanceRepository(db, logger, metricsCollector)

	// Initialize risk engine
	riskEngine, err := engine.NewEngine(engineConfig(cfg))
	if err != nil {
		logger.Fatal(ctx, "[SCORER_ERROR] Invalid risk engine configuration", logging.Fields{}, err)
	}

	// Optional Redis cache, used only to invalidate served entries after a
	// publish. Scoring itself never reads from it.
	var scoreCache *cache.Cache
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn(ctx, "[SCORER_START] Redis unreachable, cache invalidation disabled", logging.Fields{
				"redis_addr": cfg.Redis.Addr,
			})
		} else {
			scoreCache = cache.New(redisClient, logger, metricsCollector, "outbreak")
			defer redisClient.Close()
		}
		cancel()
	}

	// Optional Kafka publisher for downstream consumers
	var publisher *events.Publisher
	if cfg.Kafka.Enabled {
		publisher = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer publisher.Close()
	}

	// Initialize scoring service
	scoringService := services.NewScoringService(repo, riskEngine, scoreCache, publisher, cfg.Scoring, logger, metricsCollector)

	// One-shot mode
	if *once {
		result, err := scoringService.RunEpoch(ctx)
		if err != nil {
			logger.Fatal(ctx, "[SCORER_ERROR] Scoring epoch failed", logging.Fields{}, err)
		}
		printEpochResult(result)
		return
	}

	// Scheduled mode: score immediately, then on every tick until signalled.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Scoring.Interval)
	defer ticker.Stop()

	runOnce := func() {
		result, err := scoringService.RunEpoch(ctx)
		if err != nil {
			logger.Error(ctx, "[SCORER_ERROR] Scoring epoch failed", logging.Fields{}, err)
			return
		}
		logger.Info(ctx, "[SCORER_EPOCH] Scoring epoch finished", logging.Fields{
			"total_locations":  result.TotalLocations,
			"scored_locations": result.ScoredLocations,
			"failed_locations": result.FailedLocations,
			"duration_seconds": result.Duration.Seconds(),
		})
	}

	runOnce()
	for {
		select {
		case <-ticker.C:
			runOnce()
		case <-quit:
			logger.Info(ctx, "[SCORER_SHUTDOWN] Scorer stopped", logging.Fields{})
			return
		}
	}
}

func printEpochResult(result *services.EpochResult) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("SCORING EPOCH COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Total Locations:    %d\n", result.TotalLocations)
	fmt.Printf("Scored Locations:   %d\n", result.ScoredLocations)
	fmt.Printf("Failed Locations:   %d\n", result.FailedLocations)
	fmt.Printf("Duration:           %v\n", result.Duration)

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
		}
	}
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
