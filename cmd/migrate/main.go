package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/lib/pq"

	"outbreak-platform/internal/config"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	migrationsDir := flag.String("dir", "migrations", "Directory containing *.up.sql and *.down.sql files")
	flag.Parse()

	if *direction != "up" && *direction != "down" {
		fmt.Fprintf(os.Stderr, "Unknown direction %q, expected up or down\n", *direction)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Connect to database
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to ping database: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Connected to database successfully")

	// Collect migration files. Up migrations run in ascending order, down
	// migrations undo them in descending order.
	pattern := filepath.Join(*migrationsDir, "*."+*direction+".sql")
	files, err := filepath.Glob(pattern)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list migrations: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "No migration files match %s\n", pattern)
		os.Exit(1)
	}

	sort.Strings(files)
	if *direction == "down" {
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}

	for _, migrationFile := range files {
		content, err := os.ReadFile(migrationFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read migration file: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Running migration: %s\n", migrationFile)

		// Each file applies atomically; a failure leaves earlier files in
		// place and later ones unapplied.
		tx, err := db.Begin()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to begin transaction: %v\n", err)
			os.Exit(1)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			fmt.Fprintf(os.Stderr, "Failed to execute %s: %v\n", migrationFile, err)
			os.Exit(1)
		}

		if err := tx.Commit(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to commit %s: %v\n", migrationFile, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Applied %d migration file(s) successfully\n", len(files))
}
