package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"outbreak-platform/internal/models"
	"outbreak-platform/pkg/database"
	"outbreak-platform/pkg/logging"
	"outbreak-platform/pkg/metrics"
)

// SurveillanceRepository provides data access for locations, surveillance
// samples, travel flows, and computed risk scores
type SurveillanceRepository interface {
	// Location operations
	UpsertLocation(ctx context.Context, location *models.Location) error
	GetLocation(ctx context.Context, locationID string) (*models.Location, error)
	ListLocations(ctx context.Context, limit, offset int) ([]*models.Location, int, error)
	ListLocationsByCountry(ctx context.Context, country string) ([]*models.Location, error)
	CountLocations(ctx context.Context) (int, error)

	// Sample operations
	CreateSamplesBatch(ctx context.Context, samples []*models.SurveillanceSample) error
	GetSamples(ctx context.Context, filter SampleFilter) ([]*models.SurveillanceSample, int, error)
	GetRecentSamples(ctx context.Context, locationID string, since time.Time) ([]models.SurveillanceSample, error)

	// Flow operations
	CreateFlowsBatch(ctx context.Context, flows []*models.FlowRecord) error
	GetInboundFlows(ctx context.Context, destinationID string, since time.Time) ([]models.FlowRecord, error)

	// Risk score operations. Scores are append-only; one epoch's scores
	// land in a single transaction so readers never see a half-published
	// epoch.
	InsertRiskScores(ctx context.Context, scores []*models.RiskScore) error
	GetLatestRiskScore(ctx context.Context, locationID string) (*models.RiskScore, error)
	GetLatestRiskScores(ctx context.Context) (map[string]float64, error)
	GetLatestRiskScoresByCountry(ctx context.Context, country string) ([]*models.RiskScore, error)
	GetScoreHistory(ctx context.Context, locationID string, days int) ([]models.ScorePoint, error)
	GetTopRiskScores(ctx context.Context, limit int) ([]models.HotspotEntry, error)
	GetScoreSummary(ctx context.Context) (*ScoreSummary, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// SampleFilter defines filters for querying surveillance samples
type SampleFilter struct {
	LocationID *string
	Source     *string
	StartTime  *time.Time
	EndTime    *time.Time
	Limit      int
	Offset     int
}

// ScoreSummary aggregates the latest score per location into the counts
// the global summary endpoint serves
type ScoreSummary struct {
	ScoredLocations int        `db:"scored_locations"`
	AverageRisk     float64    `db:"average_risk"`
	HighRisk        int        `db:"high_risk"`
	MediumRisk      int        `db:"medium_risk"`
	LowRisk         int        `db:"low_risk"`
	LastComputedAt  *time.Time `db:"last_computed_at"`
}

// surveillanceRepository implements SurveillanceRepository
type surveillanceRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewSurveillanceRepository creates a new surveillance repository
func NewSurveillanceRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) SurveillanceRepository {
	return &surveillanceRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// riskScoreRow is the flat scan shape for risk_scores rows
type riskScoreRow struct {
	ID             int64     `db:"id"`
	LocationID     string    `db:"location_id"`
	RiskScore      float64   `db:"risk_score"`
	Wastewater     float64   `db:"wastewater_component"`
	Velocity       float64   `db:"velocity_component"`
	ImportPressure float64   `db:"import_component"`
	Confidence     float64   `db:"confidence"`
	Trend          string    `db:"trend"`
	ComputedAt     time.Time `db:"computed_at"`
}

func (r *riskScoreRow) toModel() *models.RiskScore {
	return &models.RiskScore{
		ID:         r.ID,
		LocationID: r.LocationID,
		Score:      r.RiskScore,
		Components: models.RiskComponents{
			Wastewater: r.Wastewater,
			Velocity:   r.Velocity,
			Import:     r.ImportPressure,
		},
		Confidence: r.Confidence,
		Trend:      models.Trend(r.Trend),
		ComputedAt: r.ComputedAt,
	}
}

// UpsertLocation creates or updates a monitored location
func (r *surveillanceRepository) UpsertLocation(ctx context.Context, location *models.Location) error {
	query := `
		INSERT INTO locations (location_id, name, country, latitude, longitude, catchment_population, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (location_id) DO UPDATE SET
			name = EXCLUDED.name,
			country = EXCLUDED.country,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			catchment_population = EXCLUDED.catchment_population,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, "upsert_location", query,
		location.LocationID,
		location.Name,
		location.Country,
		location.Latitude,
		location.Longitude,
		location.CatchmentPopulation,
		location.CreatedAt,
		location.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert location: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_UPSERT_LOCATION] Location upserted", logging.Fields{
		"location_id": location.LocationID,
		"country":     location.Country,
	})

	return nil
}

// GetLocation retrieves a location by ID
func (r *surveillanceRepository) GetLocation(ctx context.Context, locationID string) (*models.Location, error) {
	query := `
		SELECT location_id, name, country, latitude, longitude, catchment_population, created_at, updated_at
		FROM locations
		WHERE location_id = $1
	`

	var location models.Location
	err := r.db.GetContext(ctx, "get_location", &location, query, locationID)

	if err == sql.ErrNoRows {
		return nil, &NotFoundError{
			Resource: "location",
			ID:       locationID,
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}

	return &location, nil
}

// ListLocations retrieves locations with pagination and a total count
func (r *surveillanceRepository) ListLocations(ctx context.Context, limit, offset int) ([]*models.Location, int, error) {
	total, err := r.CountLocations(ctx)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT location_id, name, country, latitude, longitude, catchment_population, created_at, updated_at
		FROM locations
		ORDER BY location_id
		LIMIT $1 OFFSET $2
	`

	var locations []*models.Location
	err = r.db.SelectContext(ctx, "list_locations", &locations, query, limit, offset)

	if err != nil {
		return nil, 0, fmt.Errorf("failed to list locations: %w", err)
	}

	return locations, total, nil
}

// ListLocationsByCountry retrieves every location in one country
func (r *surveillanceRepository) ListLocationsByCountry(ctx context.Context, country string) ([]*models.Location, error) {
	query := `
		SELECT location_id, name, country, latitude, longitude, catchment_population, created_at, updated_at
		FROM locations
		WHERE country = $1
		ORDER BY location_id
	`

	var locations []*models.Location
	err := r.db.SelectContext(ctx, "list_locations_by_country", &locations, query, country)

	if err != nil {
		return nil, fmt.Errorf("failed to list locations by country: %w", err)
	}

	return locations, nil
}

// CountLocations returns the number of monitored locations
func (r *surveillanceRepository) CountLocations(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, "count_locations", &count, `SELECT COUNT(*) FROM locations`)
	if err != nil {
		return 0, fmt.Errorf("failed to count locations: %w", err)
	}
	return count, nil
}

// CreateSamplesBatch inserts surveillance samples in a single transaction.
// A sample with the same location, timestamp, and source as an existing
// row is a correction and supersedes it.
func (r *surveillanceRepository) CreateSamplesBatch(ctx context.Context, samples []*models.SurveillanceSample) error {
	if len(samples) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.metrics.IngestionBatchSize.Observe(float64(len(samples)))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Sample batch insert completed", logging.Fields{
			"count":       len(samples),
			"duration_ms": duration.Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO surveillance_samples (
			event_id, location_id, timestamp, raw_load, normalized_score, source, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (location_id, timestamp, source) DO UPDATE SET
			event_id = EXCLUDED.event_id,
			raw_load = EXCLUDED.raw_load,
			normalized_score = EXCLUDED.normalized_score
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, sample := range samples {
		_, err := stmt.ExecContext(ctx,
			sample.EventID,
			sample.LocationID,
			sample.Timestamp,
			sample.RawLoad,
			sample.NormalizedScore,
			sample.Source,
			sample.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.IngestionRecordsTotal.WithLabelValues("sample").Add(float64(len(samples)))

	return nil
}

// GetSamples retrieves surveillance samples with filtering and pagination
func (r *surveillanceRepository) GetSamples(ctx context.Context, filter SampleFilter) ([]*models.SurveillanceSample, int, error) {
	query := `
		SELECT id, event_id, location_id, timestamp, raw_load, normalized_score, source, created_at
		FROM surveillance_samples
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.LocationID != nil {
		query += fmt.Sprintf(" AND location_id = $%d", argNum)
		args = append(args, *filter.LocationID)
		argNum++
	}

	if filter.Source != nil {
		query += fmt.Sprintf(" AND source = $%d", argNum)
		args = append(args, *filter.Source)
		argNum++
	}

	if filter.StartTime != nil {
		query += fmt.Sprintf(" AND timestamp >= $%d", argNum)
		args = append(args, *filter.StartTime)
		argNum++
	}

	if filter.EndTime != nil {
		query += fmt.Sprintf(" AND timestamp <= $%d", argNum)
		args = append(args, *filter.EndTime)
		argNum++
	}

	// Get total count
	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS count_query"
	var totalCount int
	err := r.db.GetContext(ctx, "count_samples", &totalCount, countQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count samples: %w", err)
	}

	// Add ordering and pagination
	query += " ORDER BY timestamp DESC, location_id"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	var samples []*models.SurveillanceSample
	err = r.db.SelectContext(ctx, "get_samples", &samples, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get samples: %w", err)
	}

	return samples, totalCount, nil
}

// GetRecentSamples retrieves one location's samples newer than a cutoff,
// oldest first, the shape the scoring engine consumes
func (r *surveillanceRepository) GetRecentSamples(ctx context.Context, locationID string, since time.Time) ([]models.SurveillanceSample, error) {
	query := `
		SELECT id, event_id, location_id, timestamp, raw_load, normalized_score, source, created_at
		FROM surveillance_samples
		WHERE location_id = $1 AND timestamp >= $2
		ORDER BY timestamp ASC, id ASC
	`

	var samples []models.SurveillanceSample
	err := r.db.SelectContext(ctx, "get_recent_samples", &samples, query, locationID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent samples: %w", err)
	}

	return samples, nil
}

// CreateFlowsBatch inserts travel flow records in a single transaction.
// Re-delivered windows supersede the earlier passenger counts.
func (r *surveillanceRepository) CreateFlowsBatch(ctx context.Context, flows []*models.FlowRecord) error {
	if len(flows) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.metrics.IngestionBatchSize.Observe(float64(len(flows)))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Flow batch insert completed", logging.Fields{
			"count":       len(flows),
			"duration_ms": duration.Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO travel_flows (
			origin_id, destination_id, passengers, window_start, window_end, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (origin_id, destination_id, window_start) DO UPDATE SET
			passengers = EXCLUDED.passengers,
			window_end = EXCLUDED.window_end
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, flow := range flows {
		_, err := stmt.ExecContext(ctx,
			flow.OriginID,
			flow.DestinationID,
			flow.Passengers,
			flow.WindowStart,
			flow.WindowEnd,
			flow.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert flow: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.IngestionRecordsTotal.WithLabelValues("flow").Add(float64(len(flows)))

	return nil
}

// GetInboundFlows retrieves flows into a destination whose windows end at
// or after the cutoff
func (r *surveillanceRepository) GetInboundFlows(ctx context.Context, destinationID string, since time.Time) ([]models.FlowRecord, error) {
	query := `
		SELECT id, origin_id, destination_id, passengers, window_start, window_end, created_at
		FROM travel_flows
		WHERE destination_id = $1 AND window_end >= $2
		ORDER BY window_start ASC, id ASC
	`

	var flows []models.FlowRecord
	err := r.db.SelectContext(ctx, "get_inbound_flows", &flows, query, destinationID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get inbound flows: %w", err)
	}

	return flows, nil
}

// InsertRiskScores appends one epoch's scores in a single transaction so
// the latest-score snapshot is never half an epoch old and half new
func (r *surveillanceRepository) InsertRiskScores(ctx context.Context, scores []*models.RiskScore) error {
	if len(scores) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.logger.Debug(ctx, "[REPO_PUBLISH_SCORES] Epoch scores published", logging.Fields{
			"count":       len(scores),
			"duration_ms": duration.Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO risk_scores (
			location_id, risk_score,
			wastewater_component, velocity_component, import_component,
			confidence, trend, computed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, score := range scores {
		_, err := stmt.ExecContext(ctx,
			score.LocationID,
			score.Score,
			score.Components.Wastewater,
			score.Components.Velocity,
			score.Components.Import,
			score.Confidence,
			string(score.Trend),
			score.ComputedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert risk score: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetLatestRiskScore retrieves the most recent score for one location
func (r *surveillanceRepository) GetLatestRiskScore(ctx context.Context, locationID string) (*models.RiskScore, error) {
	query := `
		SELECT id, location_id, risk_score,
		       wastewater_component, velocity_component, import_component,
		       confidence, trend, computed_at
		FROM risk_scores
		WHERE location_id = $1
		ORDER BY computed_at DESC, id DESC
		LIMIT 1
	`

	var row riskScoreRow
	err := r.db.GetContext(ctx, "get_latest_risk_score", &row, query, locationID)

	if err == sql.ErrNoRows {
		return nil, &NotFoundError{
			Resource: "risk_score",
			ID:       locationID,
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get latest risk score: %w", err)
	}

	return row.toModel(), nil
}

// GetLatestRiskScores retrieves the newest score per location as a map,
// the snapshot import-pressure computation reads. One query, one
// statement-level snapshot: the map can be a whole epoch behind but never
// mixes epochs.
func (r *surveillanceRepository) GetLatestRiskScores(ctx context.Context) (map[string]float64, error) {
	query := `
		SELECT DISTINCT ON (location_id) location_id, risk_score
		FROM risk_scores
		ORDER BY location_id, computed_at DESC, id DESC
	`

	var rows []struct {
		LocationID string  `db:"location_id"`
		RiskScore  float64 `db:"risk_score"`
	}
	err := r.db.SelectContext(ctx, "get_latest_risk_scores", &rows, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest risk scores: %w", err)
	}

	snapshot := make(map[string]float64, len(rows))
	for _, row := range rows {
		snapshot[row.LocationID] = row.RiskScore
	}

	return snapshot, nil
}

// GetLatestRiskScoresByCountry retrieves the newest score per location for
// one country
func (r *surveillanceRepository) GetLatestRiskScoresByCountry(ctx context.Context, country string) ([]*models.RiskScore, error) {
	query := `
		SELECT DISTINCT ON (r.location_id)
		       r.id, r.location_id, r.risk_score,
		       r.wastewater_component, r.velocity_component, r.import_component,
		       r.confidence, r.trend, r.computed_at
		FROM risk_scores r
		JOIN locations l ON l.location_id = r.location_id
		WHERE l.country = $1
		ORDER BY r.location_id, r.computed_at DESC, r.id DESC
	`

	var rows []riskScoreRow
	err := r.db.SelectContext(ctx, "get_latest_risk_scores_by_country", &rows, query, country)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest risk scores by country: %w", err)
	}

	scores := make([]*models.RiskScore, 0, len(rows))
	for i := range rows {
		scores = append(scores, rows[i].toModel())
	}

	return scores, nil
}

// GetScoreHistory retrieves a location's daily score series: the last
// published score of each of the past N days, oldest first
func (r *surveillanceRepository) GetScoreHistory(ctx context.Context, locationID string, days int) ([]models.ScorePoint, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)

	query := `
		SELECT DISTINCT ON (DATE(computed_at))
		       DATE(computed_at) AS date, risk_score AS value
		FROM risk_scores
		WHERE location_id = $1 AND computed_at >= $2
		ORDER BY DATE(computed_at), computed_at DESC, id DESC
	`

	var points []models.ScorePoint
	err := r.db.SelectContext(ctx, "get_score_history", &points, query, locationID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get score history: %w", err)
	}

	return points, nil
}

// GetTopRiskScores retrieves the highest-risk locations by latest score
func (r *surveillanceRepository) GetTopRiskScores(ctx context.Context, limit int) ([]models.HotspotEntry, error) {
	query := `
		SELECT r.location_id, COALESCE(l.name, '') AS name, r.risk_score, r.trend
		FROM (
			SELECT DISTINCT ON (location_id) location_id, risk_score, trend
			FROM risk_scores
			ORDER BY location_id, computed_at DESC, id DESC
		) r
		LEFT JOIN locations l ON l.location_id = r.location_id
		ORDER BY r.risk_score DESC, r.location_id
		LIMIT $1
	`

	var rows []struct {
		LocationID string  `db:"location_id"`
		Name       string  `db:"name"`
		RiskScore  float64 `db:"risk_score"`
		Trend      string  `db:"trend"`
	}
	err := r.db.SelectContext(ctx, "get_top_risk_scores", &rows, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top risk scores: %w", err)
	}

	hotspots := make([]models.HotspotEntry, 0, len(rows))
	for _, row := range rows {
		hotspots = append(hotspots, models.HotspotEntry{
			LocationID: row.LocationID,
			Name:       row.Name,
			RiskScore:  row.RiskScore,
			Trend:      models.Trend(row.Trend),
		})
	}

	return hotspots, nil
}

// GetScoreSummary aggregates the latest score per location into severity
// buckets plus the mean
func (r *surveillanceRepository) GetScoreSummary(ctx context.Context) (*ScoreSummary, error) {
	query := `
		SELECT
			COUNT(*) AS scored_locations,
			COALESCE(AVG(risk_score), 0) AS average_risk,
			COUNT(*) FILTER (WHERE risk_score >= 70) AS high_risk,
			COUNT(*) FILTER (WHERE risk_score >= 30 AND risk_score < 70) AS medium_risk,
			COUNT(*) FILTER (WHERE risk_score < 30) AS low_risk,
			MAX(computed_at) AS last_computed_at
		FROM (
			SELECT DISTINCT ON (location_id) risk_score, computed_at
			FROM risk_scores
			ORDER BY location_id, computed_at DESC, id DESC
		) latest
	`

	var summary ScoreSummary
	err := r.db.GetContext(ctx, "get_score_summary", &summary, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get score summary: %w", err)
	}

	return &summary, nil
}

// HealthCheck performs a repository health check
func (r *surveillanceRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
