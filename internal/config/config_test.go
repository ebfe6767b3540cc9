package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 14*24*time.Hour, cfg.Server.StalenessWarning)
	assert.Equal(t, "outbreak_db", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, 0.40, cfg.Engine.WastewaterWeight)
	assert.Equal(t, 0.30, cfg.Engine.VelocityWeight)
	assert.Equal(t, 0.30, cfg.Engine.ImportWeight)
	assert.Equal(t, 1e9, cfg.Engine.MaxExpectedLoad)
	assert.Equal(t, 30.0, cfg.Engine.ImportDefault)

	assert.Equal(t, time.Hour, cfg.Cache.RiskTTL)
	assert.Equal(t, 15*time.Minute, cfg.Cache.SummaryTTL)

	assert.Equal(t, 8, cfg.Scoring.Workers)
	assert.Equal(t, 7, cfg.Scoring.ForecastDefaultDays)
	assert.Equal(t, 14, cfg.Scoring.ForecastMaxDays)

	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_NAME", "outbreak_test")
	t.Setenv("RISK_WEIGHT_WASTEWATER", "0.5")
	t.Setenv("RISK_WEIGHT_VELOCITY", "0.25")
	t.Setenv("RISK_WEIGHT_IMPORT", "0.25")
	t.Setenv("SCORING_INTERVAL", "30m")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("REDIS_ENABLED", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "outbreak_test", cfg.Database.Database)
	assert.Equal(t, 0.5, cfg.Engine.WastewaterWeight)
	assert.Equal(t, 0.25, cfg.Engine.VelocityWeight)
	assert.Equal(t, 30*time.Minute, cfg.Scoring.Interval)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Redis.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigMalformedValuesFallBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")
	t.Setenv("RISK_WEIGHT_WASTEWATER", "forty percent")
	t.Setenv("SCORING_INTERVAL", "soon")
	t.Setenv("REDIS_ENABLED", "maybe")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 0.40, cfg.Engine.WastewaterWeight)
	assert.Equal(t, time.Hour, cfg.Scoring.Interval)
	assert.True(t, cfg.Redis.Enabled)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "weights must sum to one",
			mutate:  func(c *Config) { c.Engine.WastewaterWeight = 0.6 },
			wantErr: "sum to 1.0",
		},
		{
			name: "negative weight rejected",
			mutate: func(c *Config) {
				c.Engine.VelocityWeight = -0.3
				c.Engine.WastewaterWeight = 1.0
			},
			wantErr: "non-negative",
		},
		{
			name:    "zero load ceiling rejected",
			mutate:  func(c *Config) { c.Engine.MaxExpectedLoad = 0 },
			wantErr: "RISK_MAX_EXPECTED_LOAD",
		},
		{
			name:    "zero volume saturation rejected",
			mutate:  func(c *Config) { c.Engine.VolumeSaturation = 0 },
			wantErr: "RISK_VOLUME_SATURATION",
		},
		{
			name:    "import default above range rejected",
			mutate:  func(c *Config) { c.Engine.ImportDefault = 130 },
			wantErr: "RISK_IMPORT_DEFAULT",
		},
		{
			name:    "penalty above one rejected",
			mutate:  func(c *Config) { c.Engine.PenaltyStaleData = 1.5 },
			wantErr: "RISK_PENALTY_STALE_DATA",
		},
		{
			name:    "zero confidence floor rejected",
			mutate:  func(c *Config) { c.Engine.ConfidenceFloor = 0 },
			wantErr: "RISK_CONFIDENCE_FLOOR",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "port",
		},
		{
			name:    "workers must be positive",
			mutate:  func(c *Config) { c.Scoring.Workers = 0 },
			wantErr: "SCORING_WORKERS",
		},
		{
			name: "forecast max below default rejected",
			mutate: func(c *Config) {
				c.Scoring.ForecastDefaultDays = 10
				c.Scoring.ForecastMaxDays = 7
			},
			wantErr: "forecast horizon",
		},
		{
			name:    "cache TTLs must be positive",
			mutate:  func(c *Config) { c.Cache.SummaryTTL = 0 },
			wantErr: "cache TTLs",
		},
		{
			name: "enabled kafka needs brokers",
			mutate: func(c *Config) {
				c.Kafka.Enabled = true
				c.Kafka.Brokers = nil
			},
			wantErr: "KAFKA_BROKERS",
		},
		{
			name: "enabled kafka needs a topic",
			mutate: func(c *Config) {
				c.Kafka.Enabled = true
				c.Kafka.Topic = ""
			},
			wantErr: "KAFKA_TOPIC_RISK_EVENTS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig()
			require.NoError(t, err)

			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
