package services

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outbreak-platform/internal/config"
	"outbreak-platform/internal/engine"
	"outbreak-platform/internal/models"
	"outbreak-platform/pkg/logging"
	"outbreak-platform/pkg/metrics"
)

// One collector for the whole package; promauto registers globally and a
// second registration of the same names panics.
var testMetrics = metrics.NewCollector("outbreak_services_test")

func testLogger() *logging.StructuredLogger {
	logger := logging.NewStructuredLogger("services-test", "test", logging.ErrorLevel)
	logger.SetOutput(io.Discard)
	return logger
}

func testScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		Interval:            time.Hour,
		Workers:             4,
		SampleWindowDays:    14,
		FlowWindowDays:      7,
		ForecastDefaultDays: 7,
		ForecastMaxDays:     14,
		HistoryDefaultDays:  30,
	}
}

func newTestScoringService(repo *fakeRepository) *ScoringService {
	return NewScoringService(repo, mustEngine(), nil, nil, testScoringConfig(), testLogger(), testMetrics)
}

func mustEngine() *engine.Engine {
	eng, err := engine.NewEngine(engine.DefaultConfig())
	if err != nil {
		panic(err)
	}
	return eng
}

// addDailySamples seeds count daily normalized samples ending yesterday.
func addDailySamples(repo *fakeRepository, locationID string, count int, score float64) {
	end := time.Now().UTC().AddDate(0, 0, -1)
	for i := count - 1; i >= 0; i-- {
		normalized := score
		repo.samples[locationID] = append(repo.samples[locationID], models.SurveillanceSample{
			LocationID:      locationID,
			Timestamp:       end.AddDate(0, 0, -i),
			NormalizedScore: &normalized,
			Source:          "test",
		})
	}
}

func addInboundFlow(repo *fakeRepository, originID, destinationID string, passengers int) {
	now := time.Now().UTC()
	repo.flows[destinationID] = append(repo.flows[destinationID], models.FlowRecord{
		OriginID:      originID,
		DestinationID: destinationID,
		Passengers:    passengers,
		WindowStart:   now.AddDate(0, 0, -1),
		WindowEnd:     now.Add(-time.Hour),
	})
}

func findScore(t *testing.T, batch []*models.RiskScore, locationID string) *models.RiskScore {
	t.Helper()

	for _, score := range batch {
		if score.LocationID == locationID {
			return score
		}
	}
	t.Fatalf("no score for %s in batch", locationID)
	return nil
}

func TestScoringService_RunEpoch_ScoresEveryLocation(t *testing.T) {
	repo := newFakeRepository()
	repo.addLocation("loc_a", "DE", 0)
	repo.addLocation("loc_b", "DE", 0)
	repo.addLocation("loc_c", "FR", 0)
	for _, id := range []string{"loc_a", "loc_b", "loc_c"} {
		addDailySamples(repo, id, 7, 0.4)
	}

	service := newTestScoringService(repo)

	result, err := service.RunEpoch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalLocations)
	assert.Equal(t, 3, result.ScoredLocations)
	assert.Equal(t, 0, result.FailedLocations)
	assert.Empty(t, result.Errors)

	require.Len(t, repo.scoreBatches, 1, "one epoch publishes exactly one batch")
	require.Len(t, repo.scoreBatches[0], 3)
	assert.Equal(t, 1, repo.snapshotCalls, "snapshot must be read once per epoch")

	for _, score := range repo.scoreBatches[0] {
		assert.GreaterOrEqual(t, score.Score, 0.0)
		assert.LessOrEqual(t, score.Score, 100.0)
		assert.Greater(t, score.Confidence, 0.0)
		assert.LessOrEqual(t, score.Confidence, 1.0)
		assert.True(t, score.Trend.IsValid())
		assert.False(t, score.ComputedAt.IsZero())
	}
}

func TestScoringService_RunEpoch_UsesPreEpochSnapshot(t *testing.T) {
	repo := newFakeRepository()
	repo.addLocation("origin", "DE", 0)
	repo.addLocation("dest", "FR", 0)
	repo.snapshot["origin"] = 90.0
	addInboundFlow(repo, "origin", "dest", 10000)

	service := newTestScoringService(repo)

	result, err := service.RunEpoch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.ScoredLocations)

	batch := repo.scoreBatches[0]
	dest := findScore(t, batch, "dest")

	// Saturated volume and an origin at 90 from the previous epoch:
	// 0.9 * 100 * (0.5 + 0.5*1.0).
	assert.InDelta(t, 90.0, dest.Components.Import, 1e-9)
	assert.InDelta(t, 0.40*50+0.30*50+0.30*90, dest.Score, 1e-9)
	assert.InDelta(t, 0.5, dest.Confidence, 1e-9)

	// No inbound flows for the origin itself, so it reads the default.
	origin := findScore(t, batch, "origin")
	assert.InDelta(t, 30.0, origin.Components.Import, 1e-9)
	assert.InDelta(t, 0.5*0.9, origin.Confidence, 1e-9)
}

func TestScoringService_RunEpoch_CollectsLocationFailures(t *testing.T) {
	repo := newFakeRepository()
	repo.addLocation("loc_good", "DE", 0)
	repo.addLocation("loc_bad", "DE", 0)
	addDailySamples(repo, "loc_good", 5, 0.3)
	repo.samplesErr["loc_bad"] = errors.New("connection reset")

	service := newTestScoringService(repo)

	result, err := service.RunEpoch(context.Background())
	require.NoError(t, err, "a single location failure must not fail the epoch")

	assert.Equal(t, 2, result.TotalLocations)
	assert.Equal(t, 1, result.ScoredLocations)
	assert.Equal(t, 1, result.FailedLocations)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "loc_bad")

	require.Len(t, repo.scoreBatches, 1)
	require.Len(t, repo.scoreBatches[0], 1)
	assert.Equal(t, "loc_good", repo.scoreBatches[0][0].LocationID)
}

func TestScoringService_RunEpoch_PublishFailureFailsEpoch(t *testing.T) {
	repo := newFakeRepository()
	repo.addLocation("loc_a", "DE", 0)
	repo.insertErr = errors.New("deadlock detected")

	service := newTestScoringService(repo)

	_, err := service.RunEpoch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish")
}

func TestScoringService_RunEpoch_EmptyCatalog(t *testing.T) {
	repo := newFakeRepository()

	service := newTestScoringService(repo)

	result, err := service.RunEpoch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.TotalLocations)
	assert.Equal(t, 0, result.ScoredLocations)
	assert.Empty(t, repo.scoreBatches)
	assert.Equal(t, 0, repo.snapshotCalls)
}

func TestScoringService_RunEpoch_SnapshotFailureDegradesToDefault(t *testing.T) {
	repo := newFakeRepository()
	repo.addLocation("dest", "FR", 0)
	repo.snapshotErr = errors.New("read timeout")
	addInboundFlow(repo, "origin", "dest", 10000)

	service := newTestScoringService(repo)

	result, err := service.RunEpoch(context.Background())
	require.NoError(t, err, "a snapshot failure degrades import pressure, it does not abort")
	require.Equal(t, 1, result.ScoredLocations)

	dest := findScore(t, repo.scoreBatches[0], "dest")
	assert.InDelta(t, 30.0, dest.Components.Import, 1e-9)
}

func TestScoringService_RunEpoch_ListLocationsFailure(t *testing.T) {
	repo := newFakeRepository()
	repo.listLocationsErr = errors.New("connection refused")

	service := newTestScoringService(repo)

	_, err := service.RunEpoch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list locations")
}
