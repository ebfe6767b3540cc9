package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"outbreak-platform/internal/models"
	"outbreak-platform/internal/repository"
)

// fakeRepository is an in-memory SurveillanceRepository for service tests.
// Worker goroutines read it concurrently during an epoch, so every method
// takes the mutex.
type fakeRepository struct {
	mu sync.Mutex

	locations map[string]*models.Location
	samples   map[string][]models.SurveillanceSample
	flows     map[string][]models.FlowRecord

	latestScores map[string]*models.RiskScore
	snapshot     map[string]float64
	history      map[string][]models.ScorePoint
	hotspots     []models.HotspotEntry
	summary      repository.ScoreSummary

	scoreBatches  [][]*models.RiskScore
	sampleBatches [][]*models.SurveillanceSample
	flowBatches   [][]*models.FlowRecord

	snapshotCalls   int
	lastHistoryDays int

	listLocationsErr error
	snapshotErr      error
	insertErr        error
	samplesErr       map[string]error
	flowsErr         map[string]error
}

var _ repository.SurveillanceRepository = (*fakeRepository)(nil)

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		locations:    make(map[string]*models.Location),
		samples:      make(map[string][]models.SurveillanceSample),
		flows:        make(map[string][]models.FlowRecord),
		latestScores: make(map[string]*models.RiskScore),
		snapshot:     make(map[string]float64),
		history:      make(map[string][]models.ScorePoint),
		samplesErr:   make(map[string]error),
		flowsErr:     make(map[string]error),
	}
}

func (f *fakeRepository) addLocation(id, country string, population int64) {
	location := &models.Location{
		LocationID: id,
		Name:       id,
		Country:    country,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if population > 0 {
		location.CatchmentPopulation = &population
	}
	f.locations[id] = location
}

func (f *fakeRepository) sortedLocations() []*models.Location {
	ids := make([]string, 0, len(f.locations))
	for id := range f.locations {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	locations := make([]*models.Location, 0, len(ids))
	for _, id := range ids {
		locations = append(locations, f.locations[id])
	}
	return locations
}

func (f *fakeRepository) UpsertLocation(_ context.Context, location *models.Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locations[location.LocationID] = location
	return nil
}

func (f *fakeRepository) GetLocation(_ context.Context, locationID string) (*models.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	location, ok := f.locations[locationID]
	if !ok {
		return nil, &repository.NotFoundError{Resource: "location", ID: locationID}
	}
	return location, nil
}

func (f *fakeRepository) ListLocations(_ context.Context, limit, offset int) ([]*models.Location, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listLocationsErr != nil {
		return nil, 0, f.listLocationsErr
	}

	locations := f.sortedLocations()
	if offset >= len(locations) {
		return nil, len(f.locations), nil
	}
	end := offset + limit
	if end > len(locations) {
		end = len(locations)
	}
	return locations[offset:end], len(f.locations), nil
}

func (f *fakeRepository) ListLocationsByCountry(_ context.Context, country string) ([]*models.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var locations []*models.Location
	for _, location := range f.sortedLocations() {
		if location.Country == country {
			locations = append(locations, location)
		}
	}
	return locations, nil
}

func (f *fakeRepository) CountLocations(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.locations), nil
}

func (f *fakeRepository) CreateSamplesBatch(_ context.Context, samples []*models.SurveillanceSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	batch := make([]*models.SurveillanceSample, len(samples))
	copy(batch, samples)
	f.sampleBatches = append(f.sampleBatches, batch)

	for _, sample := range samples {
		f.samples[sample.LocationID] = append(f.samples[sample.LocationID], *sample)
	}
	return nil
}

func (f *fakeRepository) GetSamples(_ context.Context, filter repository.SampleFilter) ([]*models.SurveillanceSample, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []*models.SurveillanceSample
	for id := range f.samples {
		if filter.LocationID != nil && *filter.LocationID != id {
			continue
		}
		for i := range f.samples[id] {
			sample := f.samples[id][i]
			result = append(result, &sample)
		}
	}
	return result, len(result), nil
}

func (f *fakeRepository) GetRecentSamples(_ context.Context, locationID string, since time.Time) ([]models.SurveillanceSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.samplesErr[locationID]; err != nil {
		return nil, err
	}

	var recent []models.SurveillanceSample
	for _, sample := range f.samples[locationID] {
		if !sample.Timestamp.Before(since) {
			recent = append(recent, sample)
		}
	}
	return recent, nil
}

func (f *fakeRepository) CreateFlowsBatch(_ context.Context, flows []*models.FlowRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	batch := make([]*models.FlowRecord, len(flows))
	copy(batch, flows)
	f.flowBatches = append(f.flowBatches, batch)

	for _, flow := range flows {
		f.flows[flow.DestinationID] = append(f.flows[flow.DestinationID], *flow)
	}
	return nil
}

func (f *fakeRepository) GetInboundFlows(_ context.Context, destinationID string, since time.Time) ([]models.FlowRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.flowsErr[destinationID]; err != nil {
		return nil, err
	}

	var inbound []models.FlowRecord
	for _, flow := range f.flows[destinationID] {
		if !flow.WindowEnd.Before(since) {
			inbound = append(inbound, flow)
		}
	}
	return inbound, nil
}

func (f *fakeRepository) InsertRiskScores(_ context.Context, scores []*models.RiskScore) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.insertErr != nil {
		return f.insertErr
	}

	batch := make([]*models.RiskScore, len(scores))
	copy(batch, scores)
	f.scoreBatches = append(f.scoreBatches, batch)

	for _, score := range scores {
		f.latestScores[score.LocationID] = score
	}
	return nil
}

func (f *fakeRepository) GetLatestRiskScore(_ context.Context, locationID string) (*models.RiskScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	score, ok := f.latestScores[locationID]
	if !ok {
		return nil, &repository.NotFoundError{Resource: "risk_score", ID: locationID}
	}
	return score, nil
}

func (f *fakeRepository) GetLatestRiskScores(_ context.Context) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.snapshotCalls++
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}

	snapshot := make(map[string]float64, len(f.snapshot))
	for id, score := range f.snapshot {
		snapshot[id] = score
	}
	return snapshot, nil
}

func (f *fakeRepository) GetLatestRiskScoresByCountry(_ context.Context, country string) ([]*models.RiskScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var scores []*models.RiskScore
	for _, location := range f.sortedLocations() {
		if location.Country != country {
			continue
		}
		if score, ok := f.latestScores[location.LocationID]; ok {
			scores = append(scores, score)
		}
	}
	return scores, nil
}

func (f *fakeRepository) GetScoreHistory(_ context.Context, locationID string, days int) ([]models.ScorePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastHistoryDays = days
	return f.history[locationID], nil
}

func (f *fakeRepository) GetTopRiskScores(_ context.Context, limit int) ([]models.HotspotEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if limit > len(f.hotspots) {
		limit = len(f.hotspots)
	}
	return f.hotspots[:limit], nil
}

func (f *fakeRepository) GetScoreSummary(_ context.Context) (*repository.ScoreSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	summary := f.summary
	return &summary, nil
}

func (f *fakeRepository) HealthCheck(_ context.Context) error {
	return nil
}
