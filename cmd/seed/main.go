package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"outbreak-platform/internal/config"
	"outbreak-platform/internal/models"
	"outbreak-platform/internal/repository"
	"outbreak-platform/pkg/database"
	"outbreak-platform/pkg/logging"
	"outbreak-platform/pkg/metrics"
)

// seedCatalog is the on-disk shape of a location catalog file.
type seedCatalog struct {
	Locations []seedLocation `yaml:"locations"`
}

type seedLocation struct {
	LocationID          string  `yaml:"location_id"`
	Name                string  `yaml:"name"`
	Country             string  `yaml:"country"`
	Latitude            float64 `yaml:"latitude"`
	Longitude           float64 `yaml:"longitude"`
	CatchmentPopulation *int64  `yaml:"catchment_population"`
}

func main() {
	// Parse command-line flags
	catalogFile := flag.String("file", "seed/locations.yaml", "Location catalog file to load")
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
	logger := logging.NewStructuredLogger("outbreak-seed", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[SEED_START] Seeding location catalog", logging.Fields{
		"catalog_file": *catalogFile,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("outbreak_seed")

	// Read and parse the catalog
	data, err := os.ReadFile(*catalogFile)
	if err != nil {
		logger.Fatal(ctx, "[SEED_ERROR] Failed to read catalog file", logging.Fields{
			"catalog_file": *catalogFile,
		}, err)
	}

	var catalog seedCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		logger.Fatal(ctx, "[SEED_ERROR] Failed to parse catalog file", logging.Fields{
			"catalog_file": *catalogFile,
		}, err)
	}

	if len(catalog.Locations) == 0 {
		logger.Fatal(ctx, "[SEED_ERROR] Catalog contains no locations", logging.Fields{
			"catalog_file": *catalogFile,
		}, fmt.Errorf("empty catalog"))
	}

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
		logger.Fatal(ctx, "[SEED_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Initialize repository
	repo := repository.NewSurveillanceRepository(db, logger, metricsCollector)

	// Upsert every catalog entry
	seeded := 0
	skipped := 0
	now := time.Now().UTC()

	for _, entry := range catalog.Locations {
		if entry.LocationID == "" || entry.Country == "" {
			logger.Warn(ctx, "[SEED_SKIPPED] Catalog entry missing location_id or country", logging.Fields{
				"location_id": entry.LocationID,
				"name":        entry.Name,
			})
			skipped++
			continue
		}

		location := &models.Location{
			LocationID:          entry.LocationID,
			Name:                entry.Name,
			Country:             entry.Country,
			Latitude:            entry.Latitude,
			Longitude:           entry.Longitude,
			CatchmentPopulation: entry.CatchmentPopulation,
			CreatedAt:           now,
			UpdatedAt:           now,
		}

		if err := repo.UpsertLocation(ctx, location); err != nil {
			logger.Fatal(ctx, "[SEED_ERROR] Failed to upsert location", logging.Fields{
				"location_id": entry.LocationID,
			}, err)
		}
		seeded++
	}

	// Print results
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("SEED COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Catalog File:       %s\n", *catalogFile)
	fmt.Printf("Locations Seeded:   %d\n", seeded)
	fmt.Printf("Entries Skipped:    %d\n", skipped)

	logger.Info(ctx, "[SEED_COMPLETE] Location catalog seeded", logging.Fields{
		"seeded":  seeded,
		"skipped": skipped,
	})
}
