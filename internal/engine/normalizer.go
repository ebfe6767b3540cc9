package engine

import (
	"sort"

	"outbreak-platform/internal/models"
)

// WastewaterComponent converts a location's sample set into the 0-100
// wastewater signal. Only the most recent sample matters: a pre-normalized
// percentile is preferred, a raw concentration is scaled against the
// configured ceiling, and a location with no usable sample reports the
// neutral default.
func (e *Engine) WastewaterComponent(samples []models.SurveillanceSample) float64 {
	if len(samples) == 0 {
		return neutralComponent
	}

	recent := latestSample(samples)

	if recent.NormalizedScore != nil {
		return clamp(*recent.NormalizedScore*100, 0, 100)
	}

	if recent.RawLoad != nil {
		normalized := clamp(*recent.RawLoad/e.cfg.MaxExpectedLoad, 0, 1)
		return normalized * 100
	}

	return neutralComponent
}

// loadOf extracts the scalar load of a single sample on the [0,1] scale,
// following the same preference order as WastewaterComponent. The second
// return value is false when the sample carries neither signal.
func (e *Engine) loadOf(s models.SurveillanceSample) (float64, bool) {
	if s.NormalizedScore != nil {
		return clamp(*s.NormalizedScore, 0, 1), true
	}
	if s.RawLoad != nil {
		return clamp(*s.RawLoad/e.cfg.MaxExpectedLoad, 0, 1), true
	}
	return 0, false
}

// sortedLoads returns the usable per-sample loads ordered by ascending
// timestamp. Samples carrying neither signal are skipped, not zeroed, so
// they cannot drag windowed averages down.
func (e *Engine) sortedLoads(samples []models.SurveillanceSample) []float64 {
	ordered := make([]models.SurveillanceSample, len(samples))
	copy(ordered, samples)
	sortSamplesAscending(ordered)

	loads := make([]float64, 0, len(ordered))
	for _, s := range ordered {
		if load, ok := e.loadOf(s); ok {
			loads = append(loads, load)
		}
	}
	return loads
}

func sortSamplesAscending(samples []models.SurveillanceSample) {
	// Stable sort keeps ingestion order among equal timestamps.
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
}
