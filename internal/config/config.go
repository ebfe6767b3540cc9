package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration for every outbreak-platform
// binary, loaded from the environment with optional .env overrides.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Cache    CacheConfig
	Engine   EngineConfig
	Scoring  ScoringConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Responses carry an X-Data-Status: stale header when the served
	// score is older than this.
	StalenessWarning time.Duration

	CORSAllowedOrigins []string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type CacheConfig struct {
	RiskTTL    time.Duration
	SummaryTTL time.Duration
	DefaultTTL time.Duration
}

// EngineConfig carries the scoring constants. The weights sum to 1.0;
// Validate enforces that before any binary starts scoring.
type EngineConfig struct {
	WastewaterWeight float64
	VelocityWeight   float64
	ImportWeight     float64

	MaxExpectedLoad  float64
	VelocityMax      float64
	VolumeSaturation float64
	ImportDefault    float64

	MinDataPoints  int
	MaxDataAgeDays int

	PenaltyNoSamples     float64
	PenaltySparseSamples float64
	PenaltyStaleData     float64
	PenaltyAgingData     float64
	PenaltyNoFlows       float64
	ConfidenceFloor      float64
}

type ScoringConfig struct {
	Interval         time.Duration
	Workers          int
	SampleWindowDays int
	FlowWindowDays   int

	ForecastDefaultDays int
	ForecastMaxDays     int
	HistoryDefaultDays  int
}

type LoggingConfig struct {
	Level string
}

// LoadConfig reads the environment (and a .env file when present) into a
// Config with working local-development defaults.
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Host:             getEnv("SERVER_HOST", "0.0.0.0"),
			Port:             getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:      getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:     getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:      getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			StalenessWarning: getEnvAsDuration("DATA_STALENESS_WARNING", 14*24*time.Hour),
			CORSAllowedOrigins: strings.Split(
				getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"), ","),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "outbreak_user"),
			Password:        getEnv("DB_PASSWORD", "outbreak_pass"),
			Database:        getEnv("DB_NAME", "outbreak_db"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvAsBool("KAFKA_ENABLED", false),
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Topic:   getEnv("KAFKA_TOPIC_RISK_EVENTS", "outbreak.risk.events"),
		},
		Cache: CacheConfig{
			RiskTTL:    getEnvAsDuration("CACHE_RISK_TTL", time.Hour),
			SummaryTTL: getEnvAsDuration("CACHE_SUMMARY_TTL", 15*time.Minute),
			DefaultTTL: getEnvAsDuration("CACHE_DEFAULT_TTL", 5*time.Minute),
		},
		Engine: EngineConfig{
			WastewaterWeight: getEnvAsFloat("RISK_WEIGHT_WASTEWATER", 0.40),
			VelocityWeight:   getEnvAsFloat("RISK_WEIGHT_VELOCITY", 0.30),
			ImportWeight:     getEnvAsFloat("RISK_WEIGHT_IMPORT", 0.30),

			MaxExpectedLoad:  getEnvAsFloat("RISK_MAX_EXPECTED_LOAD", 1e9),
			VelocityMax:      getEnvAsFloat("RISK_VELOCITY_MAX", 0.5),
			VolumeSaturation: getEnvAsFloat("RISK_VOLUME_SATURATION", 10000),
			ImportDefault:    getEnvAsFloat("RISK_IMPORT_DEFAULT", 30.0),

			MinDataPoints:  getEnvAsInt("RISK_MIN_DATA_POINTS", 3),
			MaxDataAgeDays: getEnvAsInt("RISK_MAX_DATA_AGE_DAYS", 14),

			PenaltyNoSamples:     getEnvAsFloat("RISK_PENALTY_NO_SAMPLES", 0.5),
			PenaltySparseSamples: getEnvAsFloat("RISK_PENALTY_SPARSE_SAMPLES", 0.7),
			PenaltyStaleData:     getEnvAsFloat("RISK_PENALTY_STALE_DATA", 0.5),
			PenaltyAgingData:     getEnvAsFloat("RISK_PENALTY_AGING_DATA", 0.8),
			PenaltyNoFlows:       getEnvAsFloat("RISK_PENALTY_NO_FLOWS", 0.9),
			ConfidenceFloor:      getEnvAsFloat("RISK_CONFIDENCE_FLOOR", 0.1),
		},
		Scoring: ScoringConfig{
			Interval:         getEnvAsDuration("SCORING_INTERVAL", time.Hour),
			Workers:          getEnvAsInt("SCORING_WORKERS", 8),
			SampleWindowDays: getEnvAsInt("SCORING_SAMPLE_WINDOW_DAYS", 14),
			FlowWindowDays:   getEnvAsInt("SCORING_FLOW_WINDOW_DAYS", 7),

			ForecastDefaultDays: getEnvAsInt("FORECAST_DEFAULT_DAYS", 7),
			ForecastMaxDays:     getEnvAsInt("FORECAST_MAX_DAYS", 14),
			HistoryDefaultDays:  getEnvAsInt("HISTORY_DEFAULT_DAYS", 30),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return config, nil
}

// Validate rejects configurations that would make the platform score
// nonsense. The service binaries call it once at startup, before opening
// any connection.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Database.Host == "" || c.Database.Database == "" {
		return fmt.Errorf("database host and name must be set")
	}

	e := c.Engine
	for name, w := range map[string]float64{
		"RISK_WEIGHT_WASTEWATER": e.WastewaterWeight,
		"RISK_WEIGHT_VELOCITY":   e.VelocityWeight,
		"RISK_WEIGHT_IMPORT":     e.ImportWeight,
	} {
		if w < 0 {
			return fmt.Errorf("%s must be non-negative, got %v", name, w)
		}
	}
	sum := e.WastewaterWeight + e.VelocityWeight + e.ImportWeight
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("risk weights must sum to 1.0, got %v", sum)
	}

	if e.MaxExpectedLoad <= 0 {
		return fmt.Errorf("RISK_MAX_EXPECTED_LOAD must be positive, got %v", e.MaxExpectedLoad)
	}
	if e.VelocityMax <= 0 {
		return fmt.Errorf("RISK_VELOCITY_MAX must be positive, got %v", e.VelocityMax)
	}
	if e.VolumeSaturation <= 0 {
		return fmt.Errorf("RISK_VOLUME_SATURATION must be positive, got %v", e.VolumeSaturation)
	}
	if e.ImportDefault < 0 || e.ImportDefault > 100 {
		return fmt.Errorf("RISK_IMPORT_DEFAULT must be within [0,100], got %v", e.ImportDefault)
	}
	if e.MinDataPoints < 1 {
		return fmt.Errorf("RISK_MIN_DATA_POINTS must be at least 1, got %d", e.MinDataPoints)
	}
	if e.MaxDataAgeDays < 1 {
		return fmt.Errorf("RISK_MAX_DATA_AGE_DAYS must be at least 1, got %d", e.MaxDataAgeDays)
	}

	for name, p := range map[string]float64{
		"RISK_PENALTY_NO_SAMPLES":     e.PenaltyNoSamples,
		"RISK_PENALTY_SPARSE_SAMPLES": e.PenaltySparseSamples,
		"RISK_PENALTY_STALE_DATA":     e.PenaltyStaleData,
		"RISK_PENALTY_AGING_DATA":     e.PenaltyAgingData,
		"RISK_PENALTY_NO_FLOWS":       e.PenaltyNoFlows,
		"RISK_CONFIDENCE_FLOOR":       e.ConfidenceFloor,
	} {
		if p <= 0 || p > 1 {
			return fmt.Errorf("%s must be within (0,1], got %v", name, p)
		}
	}

	if c.Scoring.Workers < 1 {
		return fmt.Errorf("SCORING_WORKERS must be at least 1, got %d", c.Scoring.Workers)
	}
	if c.Scoring.Interval <= 0 {
		return fmt.Errorf("SCORING_INTERVAL must be positive, got %v", c.Scoring.Interval)
	}
	if c.Scoring.SampleWindowDays < 1 || c.Scoring.FlowWindowDays < 1 {
		return fmt.Errorf("scoring lookback windows must be at least one day")
	}
	if c.Scoring.ForecastDefaultDays < 1 || c.Scoring.ForecastMaxDays < c.Scoring.ForecastDefaultDays {
		return fmt.Errorf("forecast horizon defaults are inconsistent")
	}
	if c.Scoring.HistoryDefaultDays < 1 {
		return fmt.Errorf("HISTORY_DEFAULT_DAYS must be at least 1, got %d", c.Scoring.HistoryDefaultDays)
	}

	if c.Cache.RiskTTL <= 0 || c.Cache.SummaryTTL <= 0 || c.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Brokers[0] == "" {
			return fmt.Errorf("KAFKA_BROKERS must be set when Kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("KAFKA_TOPIC_RISK_EVENTS must be set when Kafka is enabled")
		}
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
