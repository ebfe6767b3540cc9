package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"outbreak-platform/internal/cache"
	"outbreak-platform/internal/config"
	"outbreak-platform/internal/engine"
	"outbreak-platform/internal/models"
	"outbreak-platform/internal/repository"
	"outbreak-platform/pkg/logging"
	"outbreak-platform/pkg/metrics"
)

// hotspotLimit is the number of locations in the global summary's
// top-risk list.
const hotspotLimit = 10

// RiskService serves persisted risk scores, forecasts, and summaries.
// All reads go through the cache when one is configured; writes happen
// only in the scoring service.
type RiskService struct {
	repo     repository.SurveillanceRepository
	engine   *engine.Engine
	cache    *cache.Cache
	cacheTTL config.CacheConfig
	scoring  config.ScoringConfig
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

// NewRiskService creates a new risk service. The cache may be nil.
func NewRiskService(
	repo repository.SurveillanceRepository,
	riskEngine *engine.Engine,
	scoreCache *cache.Cache,
	cacheTTL config.CacheConfig,
	scoring config.ScoringConfig,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *RiskService {
	return &RiskService{
		repo:     repo,
		engine:   riskEngine,
		cache:    scoreCache,
		cacheTTL: cacheTTL,
		scoring:  scoring,
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// GetRiskScore retrieves the latest published score for one location.
// Returns NotFoundError when the location has never been scored.
func (s *RiskService) GetRiskScore(ctx context.Context, locationID string) (*models.RiskScore, error) {
	key := s.cache.Key("risk", locationID)

	var cached models.RiskScore
	if s.cache.Get(ctx, "risk", key, &cached) {
		return &cached, nil
	}

	score, err := s.repo.GetLatestRiskScore(ctx, locationID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, key, score, s.cacheTTL.RiskTTL)

	return score, nil
}

// GetForecast projects a location's risk forward from its persisted score
// history. days at or below zero falls back to the default horizon; the
// maximum horizon caps it. Forecasts are recomputed per request and never
// cached or persisted.
func (s *RiskService) GetForecast(ctx context.Context, locationID string, days int) ([]models.ForecastPoint, error) {
	if days <= 0 {
		days = s.scoring.ForecastDefaultDays
	}
	if days > s.scoring.ForecastMaxDays {
		days = s.scoring.ForecastMaxDays
	}

	history, err := s.repo.GetScoreHistory(ctx, locationID, s.scoring.HistoryDefaultDays)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, &repository.NotFoundError{
			Resource: "score history",
			ID:       locationID,
		}
	}

	return s.engine.Forecast(history, days), nil
}

// GetScoreHistory retrieves a location's daily score series, oldest first.
// An unscored location yields an empty series, not an error.
func (s *RiskService) GetScoreHistory(ctx context.Context, locationID string, days int) ([]models.ScorePoint, error) {
	if days <= 0 {
		days = s.scoring.HistoryDefaultDays
	}

	return s.repo.GetScoreHistory(ctx, locationID, days)
}

// GetGlobalSummary aggregates the latest score of every location into
// severity buckets plus the top-risk hotspot list.
func (s *RiskService) GetGlobalSummary(ctx context.Context) (*models.GlobalSummary, error) {
	key := s.cache.Key("summary", "global")

	var cached models.GlobalSummary
	if s.cache.Get(ctx, "summary", key, &cached) {
		return &cached, nil
	}

	scoreSummary, err := s.repo.GetScoreSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get score summary: %w", err)
	}

	locationCount, err := s.repo.CountLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count locations: %w", err)
	}

	hotspots, err := s.repo.GetTopRiskScores(ctx, hotspotLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top risk scores: %w", err)
	}

	summary := &models.GlobalSummary{
		GeneratedAt:     time.Now().UTC(),
		LocationCount:   locationCount,
		ScoredLocations: scoreSummary.ScoredLocations,
		AverageRisk:     math.Round(scoreSummary.AverageRisk*10) / 10,
		Buckets: models.RiskBuckets{
			High:   scoreSummary.HighRisk,
			Medium: scoreSummary.MediumRisk,
			Low:    scoreSummary.LowRisk,
		},
		Hotspots: hotspots,
	}

	s.cache.Set(ctx, key, summary, s.cacheTTL.SummaryTTL)

	return summary, nil
}

// GetRegionalSummary rolls one country's latest scores into a single
// regional value, weighted by catchment population where known. Returns
// NotFoundError for a country with no monitored locations.
func (s *RiskService) GetRegionalSummary(ctx context.Context, country string) (*models.RegionalSummary, error) {
	key := s.cache.Key("summary", "regional", country)

	var cached models.RegionalSummary
	if s.cache.Get(ctx, "summary", key, &cached) {
		return &cached, nil
	}

	locations, err := s.repo.ListLocationsByCountry(ctx, country)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	if len(locations) == 0 {
		return nil, &repository.NotFoundError{
			Resource: "country",
			ID:       country,
		}
	}

	scores, err := s.repo.GetLatestRiskScoresByCountry(ctx, country)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest scores: %w", err)
	}

	weights := make(map[string]float64, len(locations))
	for _, location := range locations {
		if location.CatchmentPopulation != nil && *location.CatchmentPopulation > 0 {
			weights[location.LocationID] = float64(*location.CatchmentPopulation)
		}
	}

	summary := &models.RegionalSummary{
		Country:         country,
		GeneratedAt:     time.Now().UTC(),
		LocationCount:   len(locations),
		ScoredLocations: len(scores),
		RegionalRisk:    math.Round(s.engine.AggregateRegionalRisk(scores, weights)*10) / 10,
	}

	s.cache.Set(ctx, key, summary, s.cacheTTL.SummaryTTL)

	return summary, nil
}

// ListLocations retrieves the monitored location catalog with pagination
func (s *RiskService) ListLocations(ctx context.Context, limit, offset int) ([]*models.Location, int, error) {
	return s.repo.ListLocations(ctx, limit, offset)
}

// HealthCheck verifies the backing store is reachable
func (s *RiskService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}

// GetLocation retrieves one monitored location
func (s *RiskService) GetLocation(ctx context.Context, locationID string) (*models.Location, error) {
	return s.repo.GetLocation(ctx, locationID)
}
