package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"outbreak-platform/internal/config"
	"outbreak-platform/internal/engine"
	"outbreak-platform/internal/repository"
	"outbreak-platform/internal/services"
	"outbreak-platform/pkg/database"
	"outbreak-platform/pkg/logging"
	"outbreak-platform/pkg/metrics"
)

func main() {
	// Parse command-line flags
	dataDir := flag.String("data-dir", "./data", "Directory containing surveillance data files (samples*.jsonl, flows*.jsonl)")
	batchSize := flag.Int("batch-size", 1000, "Number of records to process in each batch")
	runScoring := flag.Bool("score", false, "Run a scoring epoch after ingestion")
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
	logger := logging.NewStructuredLogger("outbreak-ingester", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting surveillance data ingestion", logging.Fields{
		"version":    "1.0.0",
		"data_dir":   *dataDir,
		"batch_size": *batchSize,
		"score":      *runScoring,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("outbreak_ingester")

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
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Initialize repository
	repo := repository.NewSurveillanceRepository(db, logger, metricsCollector)

	// Initialize services
	ingestionService := services.NewIngestionService(repo, logger, metricsCollector)

	// Ingest data
	result, err := ingestionService.IngestDirectory(ctx, *dataDir, *batchSize)
	if err != nil {
		logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{
			"error": err.Error(),
		}, err)
	}

	// Print results
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Total Files:        %d\n", result.TotalFiles)
	fmt.Printf("Total Records:      %d\n", result.TotalRecords)
	fmt.Printf("Successful Records: %d\n", result.SuccessfulRecords)
	fmt.Printf("Failed Records:     %d\n", result.FailedRecords)
	fmt.Printf("Samples Ingested:   %d\n", result.SamplesIngested)
	fmt.Printf("Flows Ingested:     %d\n", result.FlowsIngested)
	fmt.Printf("Duration:           %v\n", result.Duration)
	fmt.Printf("Records/Second:     %.2f\n", float64(result.SuccessfulRecords)/result.Duration.Seconds())

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

	// Run a scoring epoch if requested
	if *runScoring {
		fmt.Println("\n" + strings.Repeat("=", 80))
		fmt.Println("RUNNING SCORING EPOCH")
		fmt.Println(strings.Repeat("=", 80))

		riskEngine, err := engine.NewEngine(engineConfig(cfg))
		if err != nil {
			logger.Fatal(ctx, "[INGESTER_ERROR] Invalid risk engine configuration", logging.Fields{}, err)
		}

		scoringService := services.NewScoringService(repo, riskEngine, nil, nil, cfg.Scoring, logger, metricsCollector)

		epoch, err := scoringService.RunEpoch(ctx)
		if err != nil {
			logger.Error(ctx, "[SCORING_ERROR] Scoring epoch failed", logging.Fields{}, err)
			fmt.Printf("Scoring epoch failed: %v\n", err)
		} else {
			fmt.Printf("Scored %d of %d locations in %v\n",
				epoch.ScoredLocations, epoch.TotalLocations, epoch.Duration)
		}
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed successfully", logging.Fields{
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
	})
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
