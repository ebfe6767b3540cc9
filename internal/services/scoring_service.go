package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"outbreak-platform/internal/cache"
	"outbreak-platform/internal/config"
	"outbreak-platform/internal/engine"
	"outbreak-platform/internal/events"
	"outbreak-platform/internal/models"
	"outbreak-platform/internal/repository"
	"outbreak-platform/pkg/logging"
	"outbreak-platform/pkg/metrics"
)

// ScoringService runs scoring epochs: it loads the location catalog, fans
// per-location computation out over a bounded worker pool, and publishes
// the resulting scores as one atomic batch.
type ScoringService struct {
	repo      repository.SurveillanceRepository
	engine    *engine.Engine
	cache     *cache.Cache
	publisher *events.Publisher
	cfg       config.ScoringConfig
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
}

// EpochResult contains one epoch's outcome statistics
type EpochResult struct {
	TotalLocations  int
	ScoredLocations int
	FailedLocations int
	Duration        time.Duration
	Errors          []string
}

// NewScoringService creates a new scoring service. The cache and the
// publisher may be nil; both degrade to no-ops.
func NewScoringService(
	repo repository.SurveillanceRepository,
	riskEngine *engine.Engine,
	scoreCache *cache.Cache,
	publisher *events.Publisher,
	cfg config.ScoringConfig,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *ScoringService {
	return &ScoringService{
		repo:      repo,
		engine:    riskEngine,
		cache:     scoreCache,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		metrics:   metricsCollector,
	}
}

// scoreOutcome carries one location's result back from the worker pool.
type scoreOutcome struct {
	locationID string
	score      *models.RiskScore
	err        error
}

// RunEpoch scores every monitored location once and publishes the batch.
//
// The previous epoch's scores are snapshotted before any worker starts, so
// import pressure for every location in this epoch reads the same
// one-epoch-old map. Per-location failures are collected, not fatal; only
// the final batch publish can fail the epoch.
func (s *ScoringService) RunEpoch(ctx context.Context) (*EpochResult, error) {
	startTime := time.Now()

	// Correlates every log line of this run, including worker output
	ctx = context.WithValue(ctx, "epoch_id", uuid.NewString())

	s.logger.Info(ctx, "[EPOCH_START] Starting scoring epoch", logging.Fields{
		"workers":            s.cfg.Workers,
		"sample_window_days": s.cfg.SampleWindowDays,
		"flow_window_days":   s.cfg.FlowWindowDays,
		"stage":              "INITIALIZATION",
	})

	result := &EpochResult{
		Errors: make([]string, 0),
	}

	locations, _, err := s.repo.ListLocations(ctx, 10000, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	result.TotalLocations = len(locations)

	if len(locations) == 0 {
		result.Duration = time.Since(startTime)
		s.logger.Warn(ctx, "[EPOCH_EMPTY] No locations to score", logging.Fields{
			"stage": "COMPLETE",
		})
		return result, nil
	}

	// One snapshot for the whole epoch. A failed read degrades every
	// location's import pressure to its default rather than aborting.
	riskMap, err := s.repo.GetLatestRiskScores(ctx)
	if err != nil {
		s.logger.Warn(ctx, "[EPOCH_SNAPSHOT_MISS] Prior score snapshot unavailable, using import default", logging.Fields{
			"error": err.Error(),
		})
		s.metrics.RecordScoringError("snapshot_error")
		riskMap = map[string]float64{}
	}

	now := time.Now().UTC()
	sampleCutoff := now.AddDate(0, 0, -s.cfg.SampleWindowDays)
	flowCutoff := now.AddDate(0, 0, -s.cfg.FlowWindowDays)

	jobs := make(chan *models.Location)
	outcomes := make(chan scoreOutcome, len(locations))

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for location := range jobs {
				outcomes <- s.scoreLocation(ctx, location, sampleCutoff, flowCutoff, riskMap)
			}
		}()
	}

	for _, location := range locations {
		jobs <- location
	}
	close(jobs)
	wg.Wait()
	close(outcomes)

	scores := make([]*models.RiskScore, 0, len(locations))
	for outcome := range outcomes {
		if outcome.err != nil {
			result.FailedLocations++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", outcome.locationID, outcome.err))
			s.metrics.RecordScoringError("location_error")
			s.logger.Error(ctx, "[EPOCH_LOCATION_ERROR] Location scoring failed", logging.Fields{
				"location_id": outcome.locationID,
			}, outcome.err)
			continue
		}
		scores = append(scores, outcome.score)
	}

	// All-or-nothing publish. A half-visible epoch would let the next
	// epoch's import pressure mix old and new origin scores.
	if err := s.repo.InsertRiskScores(ctx, scores); err != nil {
		s.metrics.RecordScoringError("publish_error")
		return nil, fmt.Errorf("failed to publish epoch scores: %w", err)
	}
	result.ScoredLocations = len(scores)
	result.Duration = time.Since(startTime)

	for _, score := range scores {
		s.metrics.ObserveRiskScore(
			score.Components.Wastewater,
			score.Components.Velocity,
			score.Components.Import,
			score.Score,
			score.Confidence,
		)
	}
	s.metrics.ScoringEpochsTotal.Inc()
	s.metrics.ScoringEpochDuration.Observe(result.Duration.Seconds())
	s.metrics.LocationsScoredTotal.Add(float64(result.ScoredLocations))

	s.invalidateCaches(ctx)

	// Events are best effort; the scores are already durable.
	if err := s.publisher.PublishScores(ctx, scores); err != nil {
		s.logger.Warn(ctx, "[EPOCH_EVENTS_ERROR] Score event publish failed", logging.Fields{
			"error": err.Error(),
		})
	}
	if err := s.publisher.PublishEpochCompleted(ctx, result.ScoredLocations, result.FailedLocations, result.Duration); err != nil {
		s.logger.Warn(ctx, "[EPOCH_EVENTS_ERROR] Epoch event publish failed", logging.Fields{
			"error": err.Error(),
		})
	}

	s.logger.Info(ctx, "[EPOCH_COMPLETE] Scoring epoch completed", logging.Fields{
		"total_locations":  result.TotalLocations,
		"scored_locations": result.ScoredLocations,
		"failed_locations": result.FailedLocations,
		"duration_seconds": result.Duration.Seconds(),
		"error_count":      len(result.Errors),
		"stage":            "COMPLETE",
	})

	return result, nil
}

// scoreLocation loads one location's recent signals and runs the engine.
// A repository error marks the location failed; thin or missing data does
// not, the engine absorbs that into its confidence model.
func (s *ScoringService) scoreLocation(
	ctx context.Context,
	location *models.Location,
	sampleCutoff, flowCutoff time.Time,
	riskMap map[string]float64,
) scoreOutcome {
	samples, err := s.repo.GetRecentSamples(ctx, location.LocationID, sampleCutoff)
	if err != nil {
		return scoreOutcome{
			locationID: location.LocationID,
			err:        fmt.Errorf("failed to load samples: %w", err),
		}
	}

	flows, err := s.repo.GetInboundFlows(ctx, location.LocationID, flowCutoff)
	if err != nil {
		return scoreOutcome{
			locationID: location.LocationID,
			err:        fmt.Errorf("failed to load flows: %w", err),
		}
	}

	return scoreOutcome{
		locationID: location.LocationID,
		score:      s.engine.CalculateRisk(location.LocationID, samples, flows, riskMap),
	}
}

// invalidateCaches drops every cached score and summary after an epoch
// publish so readers never serve the previous epoch past its freshness.
func (s *ScoringService) invalidateCaches(ctx context.Context) {
	s.cache.DeleteByPattern(ctx, s.cache.Key("risk", "*"))
	s.cache.DeleteByPattern(ctx, s.cache.Key("summary", "*"))
}
