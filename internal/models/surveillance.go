package models

import (
	"math"
	"time"
)

// Trend is the categorical direction label attached to a risk score.
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)

// IsValid reports whether t is one of the known trend labels.
func (t Trend) IsValid() bool {
	switch t {
	case TrendRising, TrendFalling, TrendStable:
		return true
	}
	return false
}

// Location represents a monitored geographic catchment
type Location struct {
	LocationID          string    `json:"location_id" db:"location_id"`
	Name                string    `json:"name" db:"name"`
	Country             string    `json:"country" db:"country"`
	Latitude            float64   `json:"latitude" db:"latitude"`
	Longitude           float64   `json:"longitude" db:"longitude"`
	CatchmentPopulation *int64    `json:"catchment_population,omitempty" db:"catchment_population"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// SurveillanceSample represents one wastewater measurement for a location.
// Feeds report either a raw concentration or a pre-normalized percentile,
// rarely both; NULL values are represented as pointers. Samples are
// append-only: a correction from the same source/timestamp pair supersedes
// the earlier row, it never rewrites history.
type SurveillanceSample struct {
	ID              int64     `json:"id" db:"id"`
	EventID         string    `json:"event_id" db:"event_id"`
	LocationID      string    `json:"location_id" db:"location_id"`
	Timestamp       time.Time `json:"timestamp" db:"timestamp"`
	RawLoad         *float64  `json:"raw_load,omitempty" db:"raw_load"`
	NormalizedScore *float64  `json:"normalized_score,omitempty" db:"normalized_score"`
	Source          string    `json:"source" db:"source"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// FlowRecord represents aggregate inbound travel volume between two
// locations over a bounded window, not a single flight. Read-only to the
// scoring engine.
type FlowRecord struct {
	ID            int64     `json:"id" db:"id"`
	OriginID      string    `json:"origin_id" db:"origin_id"`
	DestinationID string    `json:"destination_id" db:"destination_id"`
	Passengers    int       `json:"passengers" db:"passengers"`
	WindowStart   time.Time `json:"window_start" db:"window_start"`
	WindowEnd     time.Time `json:"window_end" db:"window_end"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// RiskComponents holds the three normalized signals that compose a risk
// score, each on the 0-100 scale.
type RiskComponents struct {
	Wastewater float64 `json:"wastewater" db:"wastewater"`
	Velocity   float64 `json:"velocity" db:"velocity"`
	Import     float64 `json:"import" db:"import"`
}

// RiskScore is one computed score for one location at one epoch.
// Rows are append-only; recomputation inserts a new row so that the next
// epoch's import-pressure reads and any backtest see an immutable history.
type RiskScore struct {
	ID         int64          `json:"-" db:"id"`
	LocationID string         `json:"location_id" db:"location_id"`
	Score      float64        `json:"risk_score" db:"risk_score"`
	Components RiskComponents `json:"components" db:"components"`
	Confidence float64        `json:"confidence" db:"confidence"`
	Trend      Trend          `json:"trend" db:"trend"`
	ComputedAt time.Time      `json:"computed_at" db:"computed_at"`
}

// ScorePoint is one (date, score) pair from a location's persisted score
// history, the forecaster's input shape.
type ScorePoint struct {
	Date  time.Time `json:"date" db:"date"`
	Value float64   `json:"value" db:"value"`
}

// ForecastPoint is one projected day of a forecast. Ephemeral: regenerated
// per request, never persisted.
type ForecastPoint struct {
	Date           time.Time `json:"date"`
	RiskScore      float64   `json:"risk_score"`
	ConfidenceLow  float64   `json:"confidence_low"`
	ConfidenceHigh float64   `json:"confidence_high"`
}

// GlobalSummary is the rollup served by the summary endpoint.
type GlobalSummary struct {
	GeneratedAt     time.Time      `json:"generated_at"`
	LocationCount   int            `json:"location_count"`
	ScoredLocations int            `json:"scored_locations"`
	AverageRisk     float64        `json:"average_risk"`
	Buckets         RiskBuckets    `json:"buckets"`
	Hotspots        []HotspotEntry `json:"hotspots"`
}

// RiskBuckets counts scored locations per severity band.
type RiskBuckets struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// HotspotEntry is one row of the global top-risk list.
type HotspotEntry struct {
	LocationID string  `json:"location_id"`
	Name       string  `json:"name,omitempty"`
	RiskScore  float64 `json:"risk_score"`
	Trend      Trend   `json:"trend"`
}

// RegionalSummary is a population-weighted rollup for one country.
type RegionalSummary struct {
	Country         string    `json:"country"`
	GeneratedAt     time.Time `json:"generated_at"`
	LocationCount   int       `json:"location_count"`
	ScoredLocations int       `json:"scored_locations"`
	RegionalRisk    float64   `json:"regional_risk"`
}

// RawSampleRecord represents one line of a canonical surveillance export
// file before validation. Used during ingestion.
type RawSampleRecord struct {
	EventID         string   `json:"event_id"`
	LocationID      string   `json:"location_id"`
	Timestamp       string   `json:"timestamp"`
	RawLoad         *float64 `json:"raw_load"`
	NormalizedScore *float64 `json:"normalized_score"`
	Source          string   `json:"source"`
}

// ToSample converts a RawSampleRecord to a SurveillanceSample.
// Untrusted numerics are sanitized here: NaN and infinite values become
// NULL, normalized scores are clamped to [0,1], negative raw loads to 0.
func (r *RawSampleRecord) ToSample() (*SurveillanceSample, error) {
	if r.LocationID == "" {
		return nil, &ValidationError{
			Field:   "location_id",
			Value:   r.LocationID,
			Message: "location_id is required",
		}
	}

	ts, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		return nil, &ValidationError{
			Field:   "timestamp",
			Value:   r.Timestamp,
			Message: "invalid timestamp, expected RFC 3339",
		}
	}

	sample := &SurveillanceSample{
		EventID:    r.EventID,
		LocationID: r.LocationID,
		Timestamp:  ts.UTC(),
		Source:     r.Source,
		CreatedAt:  time.Now().UTC(),
	}
	if sample.Source == "" {
		sample.Source = "unknown"
	}

	if r.RawLoad != nil && isFiniteNumber(*r.RawLoad) {
		load := math.Max(*r.RawLoad, 0)
		sample.RawLoad = &load
	}

	if r.NormalizedScore != nil && isFiniteNumber(*r.NormalizedScore) {
		score := math.Min(math.Max(*r.NormalizedScore, 0), 1)
		sample.NormalizedScore = &score
	}

	return sample, nil
}

// RawFlowRecord represents one line of a canonical travel-flow export file
// before validation.
type RawFlowRecord struct {
	OriginID      string `json:"origin_id"`
	DestinationID string `json:"destination_id"`
	Passengers    int    `json:"passengers"`
	WindowStart   string `json:"window_start"`
	WindowEnd     string `json:"window_end"`
}

// ToFlow converts a RawFlowRecord to a FlowRecord. Negative passenger
// counts are treated as zero rather than rejected.
func (r *RawFlowRecord) ToFlow() (*FlowRecord, error) {
	if r.OriginID == "" || r.DestinationID == "" {
		return nil, &ValidationError{
			Field:   "origin_id/destination_id",
			Value:   r.OriginID + "/" + r.DestinationID,
			Message: "origin_id and destination_id are required",
		}
	}

	start, err := time.Parse(time.RFC3339, r.WindowStart)
	if err != nil {
		return nil, &ValidationError{
			Field:   "window_start",
			Value:   r.WindowStart,
			Message: "invalid window_start, expected RFC 3339",
		}
	}
	end, err := time.Parse(time.RFC3339, r.WindowEnd)
	if err != nil {
		return nil, &ValidationError{
			Field:   "window_end",
			Value:   r.WindowEnd,
			Message: "invalid window_end, expected RFC 3339",
		}
	}
	if end.Before(start) {
		return nil, &ValidationError{
			Field:   "window_end",
			Value:   r.WindowEnd,
			Message: "window_end precedes window_start",
		}
	}

	flow := &FlowRecord{
		OriginID:      r.OriginID,
		DestinationID: r.DestinationID,
		Passengers:    r.Passengers,
		WindowStart:   start.UTC(),
		WindowEnd:     end.UTC(),
		CreatedAt:     time.Now().UTC(),
	}
	if flow.Passengers < 0 {
		flow.Passengers = 0
	}

	return flow, nil
}

func isFiniteNumber(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ValidationError represents a data validation error during ingestion.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
