// Package engine implements the risk scoring core: signal normalization,
// growth velocity estimation, import pressure, score composition with a
// confidence model, and forecasting. Every operation is a pure function of
// its in-memory inputs plus the configured clock; the engine performs no
// I/O and holds no mutable state, so independent locations can be scored
// concurrently without locking.
package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"outbreak-platform/internal/models"
)

const (
	// neutralComponent is returned when a signal cannot be computed.
	// Deliberately mid-scale so missing data neither inflates nor
	// suppresses risk.
	neutralComponent = 50.0

	trendRisingThreshold  = 0.05
	trendFallingThreshold = -0.05

	// smoothingAlpha is the fixed exponential smoothing factor used by
	// the forecaster.
	smoothingAlpha = 0.3

	forecastMargin     = 5.0
	flatForecastMargin = 10.0
)

// ConfidencePenalties holds the multiplicative attenuation factors of the
// confidence model. The reference values have no documented derivation;
// they are tunable parameters, not inferred quantities.
type ConfidencePenalties struct {
	NoSamples     float64
	SparseSamples float64
	StaleData     float64
	AgingData     float64
	NoFlows       float64
	Floor         float64
}

// Config holds the engine's tuning constants. Invalid configuration is a
// programmer error and fails hard at construction; malformed data at call
// time never does.
type Config struct {
	WastewaterWeight float64
	VelocityWeight   float64
	ImportWeight     float64

	// MaxExpectedLoad is the raw concentration ceiling (copies/L) that
	// maps to a saturated wastewater signal.
	MaxExpectedLoad float64

	// VelocityMax bounds the relative week-over-week change considered
	// meaningful; larger swings are clamped.
	VelocityMax float64

	// VolumeSaturation is the inbound passenger volume per window at
	// which import pressure stops growing with traffic.
	VolumeSaturation float64

	// ImportDefault is returned when no flow data or no prior risk map
	// is available. Moderate rather than zero: absence of flight data
	// does not mean absence of travel risk.
	ImportDefault float64

	MinDataPoints  int
	MaxDataAgeDays int

	Penalties ConfidencePenalties

	// Clock supplies "now" for staleness checks and result timestamps.
	// Defaults to the real clock.
	Clock clockwork.Clock
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		WastewaterWeight: 0.40,
		VelocityWeight:   0.30,
		ImportWeight:     0.30,
		MaxExpectedLoad:  1e9,
		VelocityMax:      0.5,
		VolumeSaturation: 10000,
		ImportDefault:    30.0,
		MinDataPoints:    3,
		MaxDataAgeDays:   14,
		Penalties: ConfidencePenalties{
			NoSamples:     0.5,
			SparseSamples: 0.7,
			StaleData:     0.5,
			AgingData:     0.8,
			NoFlows:       0.9,
			Floor:         0.1,
		},
		Clock: clockwork.NewRealClock(),
	}
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.WastewaterWeight < 0 || c.VelocityWeight < 0 || c.ImportWeight < 0 {
		return fmt.Errorf("component weights must be non-negative")
	}

	sum := c.WastewaterWeight + c.VelocityWeight + c.ImportWeight
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("component weights must sum to 1.0, got %v", sum)
	}

	if c.MaxExpectedLoad <= 0 {
		return fmt.Errorf("max expected load must be positive, got %v", c.MaxExpectedLoad)
	}
	if c.VelocityMax <= 0 {
		return fmt.Errorf("velocity max must be positive, got %v", c.VelocityMax)
	}
	if c.VolumeSaturation <= 0 {
		return fmt.Errorf("volume saturation must be positive, got %v", c.VolumeSaturation)
	}
	if c.ImportDefault < 0 || c.ImportDefault > 100 {
		return fmt.Errorf("import default must be within [0,100], got %v", c.ImportDefault)
	}
	if c.MinDataPoints < 1 {
		return fmt.Errorf("min data points must be at least 1, got %d", c.MinDataPoints)
	}
	if c.MaxDataAgeDays < 1 {
		return fmt.Errorf("max data age must be at least 1 day, got %d", c.MaxDataAgeDays)
	}

	for name, p := range map[string]float64{
		"no_samples":     c.Penalties.NoSamples,
		"sparse_samples": c.Penalties.SparseSamples,
		"stale_data":     c.Penalties.StaleData,
		"aging_data":     c.Penalties.AgingData,
		"no_flows":       c.Penalties.NoFlows,
		"floor":          c.Penalties.Floor,
	} {
		if p <= 0 || p > 1 {
			return fmt.Errorf("confidence penalty %s must be within (0,1], got %v", name, p)
		}
	}

	return nil
}

// Engine computes risk scores and forecasts. Construct with NewEngine;
// the zero value is not usable.
type Engine struct {
	cfg   Config
	clock clockwork.Clock
}

// NewEngine validates cfg and returns a ready engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Engine{cfg: cfg, clock: clock}, nil
}

// CalculateRisk fuses the three surveillance signals for one location into
// a bounded score with confidence and trend. riskMap carries the previous
// epoch's persisted scores per origin; passing the current epoch's
// in-progress scores violates the one-epoch-delayed propagation contract.
// Malformed or missing inputs degrade to neutral defaults, never errors.
func (e *Engine) CalculateRisk(
	locationID string,
	samples []models.SurveillanceSample,
	flows []models.FlowRecord,
	riskMap map[string]float64,
) *models.RiskScore {
	wastewater := e.WastewaterComponent(samples)
	velocity := e.GrowthComponent(samples)
	importPressure := e.ImportComponent(flows, riskMap)

	score := e.cfg.WastewaterWeight*wastewater +
		e.cfg.VelocityWeight*velocity +
		e.cfg.ImportWeight*importPressure

	return &models.RiskScore{
		LocationID: locationID,
		Score:      round1(clamp(score, 0, 100)),
		Components: models.RiskComponents{
			Wastewater: round1(wastewater),
			Velocity:   round1(velocity),
			Import:     round1(importPressure),
		},
		Confidence: round2(e.Confidence(samples, flows)),
		Trend:      e.TrendLabel(samples),
		ComputedAt: e.clock.Now().UTC(),
	}
}

// Confidence estimates how much trust the available data supports, on
// [floor, 1]. Weaknesses attenuate multiplicatively so that several of
// them compound toward the floor, never below it and never additively
// into the negative.
func (e *Engine) Confidence(samples []models.SurveillanceSample, flows []models.FlowRecord) float64 {
	confidence := 1.0

	if len(samples) == 0 {
		confidence *= e.cfg.Penalties.NoSamples
	} else if len(samples) < e.cfg.MinDataPoints {
		confidence *= e.cfg.Penalties.SparseSamples
	}

	if len(samples) > 0 {
		newest := latestSample(samples)
		ageDays := int(e.clock.Now().UTC().Sub(newest.Timestamp).Hours() / 24)
		if ageDays > e.cfg.MaxDataAgeDays {
			confidence *= e.cfg.Penalties.StaleData
		} else if ageDays > 7 {
			confidence *= e.cfg.Penalties.AgingData
		}
	}

	if len(flows) == 0 {
		confidence *= e.cfg.Penalties.NoFlows
	}

	return clamp(confidence, e.cfg.Penalties.Floor, 1.0)
}

// AggregateRegionalRisk rolls several location scores into one regional
// value, optionally weighted (typically by catchment population; missing
// weights default to 1). An empty input aggregates to neutral.
func (e *Engine) AggregateRegionalRisk(scores []*models.RiskScore, weights map[string]float64) float64 {
	if len(scores) == 0 {
		return neutralComponent
	}

	if len(weights) > 0 {
		totalWeight := 0.0
		weightedSum := 0.0
		for _, s := range scores {
			w, ok := weights[s.LocationID]
			if !ok {
				w = 1.0
			}
			totalWeight += w
			weightedSum += s.Score * w
		}
		if totalWeight <= 0 {
			return neutralComponent
		}
		return clamp(weightedSum/totalWeight, 0, 100)
	}

	sum := 0.0
	for _, s := range scores {
		sum += s.Score
	}
	return clamp(sum/float64(len(scores)), 0, 100)
}

// latestSample returns the sample with the greatest timestamp; ties are
// broken by the latest ingestion order, i.e. the later slice position.
func latestSample(samples []models.SurveillanceSample) models.SurveillanceSample {
	best := samples[0]
	for _, s := range samples[1:] {
		if !s.Timestamp.Before(best.Timestamp) {
			best = s
		}
	}
	return best
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(hi, math.Max(lo, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// dateOnly truncates t to midnight UTC.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
