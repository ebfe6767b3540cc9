package engine

import (
	"math"
	"sort"

	"outbreak-platform/internal/models"
)

// Forecast projects a location's score forward from its persisted history
// using exponential smoothing with a fixed factor, carrying the recent
// smoothed trend forward and widening the confidence band with the square
// root of the horizon step. With fewer than three points the projection
// degrades to a flat line with a doubled band; with no history at all it
// returns nothing. Forecast points are read-only projections, regenerated
// per request and never persisted.
func (e *Engine) Forecast(history []models.ScorePoint, days int) []models.ForecastPoint {
	if len(history) == 0 || days <= 0 {
		return nil
	}

	ordered := make([]models.ScorePoint, len(history))
	copy(ordered, history)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	scores := make([]float64, len(ordered))
	for i, p := range ordered {
		scores[i] = p.Value
	}

	if len(scores) < 3 {
		return e.flatForecast(scores[len(scores)-1], days)
	}

	smoothed := make([]float64, len(scores))
	smoothed[0] = scores[0]
	for i := 1; i < len(scores); i++ {
		smoothed[i] = smoothingAlpha*scores[i] + (1-smoothingAlpha)*smoothed[i-1]
	}

	last := smoothed[len(smoothed)-1]

	var trend float64
	if len(smoothed) >= 7 {
		trend = (last - smoothed[len(smoothed)-7]) / 7
	} else {
		trend = (last - smoothed[0]) / float64(len(smoothed))
	}

	lastDate := dateOnly(ordered[len(ordered)-1].Date)

	points := make([]models.ForecastPoint, 0, days)
	for i := 1; i <= days; i++ {
		score := clamp(last+trend*float64(i), 0, 100)
		margin := forecastMargin * math.Sqrt(float64(i))

		points = append(points, models.ForecastPoint{
			Date:           lastDate.AddDate(0, 0, i),
			RiskScore:      round1(score),
			ConfidenceLow:  round1(clamp(score-margin, 0, 100)),
			ConfidenceHigh: round1(clamp(score+margin, 0, 100)),
		})
	}

	return points
}

// flatForecast holds the last known score for the whole horizon. The
// wider base margin encodes the extra uncertainty of projecting from a
// near-empty history.
func (e *Engine) flatForecast(lastScore float64, days int) []models.ForecastPoint {
	today := dateOnly(e.clock.Now())
	score := clamp(lastScore, 0, 100)

	points := make([]models.ForecastPoint, 0, days)
	for i := 1; i <= days; i++ {
		margin := flatForecastMargin * math.Sqrt(float64(i))

		points = append(points, models.ForecastPoint{
			Date:           today.AddDate(0, 0, i),
			RiskScore:      round1(score),
			ConfidenceLow:  round1(clamp(score-margin, 0, 100)),
			ConfidenceHigh: round1(clamp(score+margin, 0, 100)),
		})
	}

	return points
}
