package engine

import (
	"outbreak-platform/internal/models"
)

// GrowthComponent converts a location's recent sample history into the
// 0-100 growth signal. The underlying velocity is the relative change
// between the most recent seven loads and the preceding seven (the
// earliest seven when fewer than fourteen exist); with seven or fewer
// loads it degrades to newest-versus-oldest, and with under two it is zero.
// Velocity is clamped to the configured band and mapped linearly so that
// a flat signal lands on 50.
func (e *Engine) GrowthComponent(samples []models.SurveillanceSample) float64 {
	loads := e.sortedLoads(samples)
	if len(loads) < 2 {
		return neutralComponent
	}

	var velocity float64
	if len(loads) >= 8 {
		// With only seven loads the recent and prior windows would
		// coincide and every series would read as flat, so the rolling
		// comparison starts at eight.
		recent := loads[len(loads)-7:]
		prior := loads[:7]
		if len(loads) >= 14 {
			prior = loads[len(loads)-14 : len(loads)-7]
		}

		if priorAvg := mean(prior); priorAvg > 0 {
			velocity = (mean(recent) - priorAvg) / priorAvg
		}
	} else {
		newest := loads[len(loads)-1]
		oldest := loads[0]
		if oldest > 0 {
			velocity = (newest - oldest) / oldest
		}
	}

	velocity = clamp(velocity, -e.cfg.VelocityMax, e.cfg.VelocityMax)

	// Map [-VelocityMax, VelocityMax] to [0, 100].
	return ((velocity / e.cfg.VelocityMax) + 1) / 2 * 100
}

// TrendLabel classifies a location's recent direction as rising, falling
// or stable. Unlike GrowthComponent it fits an ordinary least squares
// slope over the last seven loads and compares the mean-relative slope
// against fixed thresholds, so the label and the growth signal can
// disagree near a threshold. Fewer than three usable loads always read
// as stable.
func (e *Engine) TrendLabel(samples []models.SurveillanceSample) models.Trend {
	loads := e.sortedLoads(samples)
	if len(loads) < 3 {
		return models.TrendStable
	}
	if len(loads) > 7 {
		loads = loads[len(loads)-7:]
	}

	n := len(loads)
	xMean := float64(n-1) / 2
	yMean := mean(loads)

	var numerator, denominator float64
	for i, y := range loads {
		dx := float64(i) - xMean
		numerator += dx * (y - yMean)
		denominator += dx * dx
	}
	if denominator == 0 {
		return models.TrendStable
	}

	slope := numerator / denominator

	relativeSlope := 0.0
	if yMean > 0 {
		relativeSlope = slope / yMean
	}

	switch {
	case relativeSlope > trendRisingThreshold:
		return models.TrendRising
	case relativeSlope < trendFallingThreshold:
		return models.TrendFalling
	default:
		return models.TrendStable
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
