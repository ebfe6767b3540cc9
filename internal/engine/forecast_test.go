package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"outbreak-platform/internal/models"
)

// historySeries builds one persisted score point per day ending at testNow,
// with the given chronological values.
func historySeries(values ...float64) []models.ScorePoint {
	points := make([]models.ScorePoint, len(values))
	for i, v := range values {
		points[i] = models.ScorePoint{
			Date:  testNow.AddDate(0, 0, -(len(values) - 1 - i)),
			Value: v,
		}
	}
	return points
}

func TestForecast(t *testing.T) {
	eng := newTestEngine(t)

	t.Run("no history yields no forecast", func(t *testing.T) {
		assert.Nil(t, eng.Forecast(nil, 7))
		assert.Nil(t, eng.Forecast([]models.ScorePoint{}, 7))
	})

	t.Run("non-positive horizon yields no forecast", func(t *testing.T) {
		history := historySeries(40, 45, 50)

		assert.Nil(t, eng.Forecast(history, 0))
		assert.Nil(t, eng.Forecast(history, -3))
	})

	t.Run("horizon controls the number of points", func(t *testing.T) {
		history := historySeries(40, 45, 50, 55, 60, 65, 70)

		assert.Len(t, eng.Forecast(history, 1), 1)
		assert.Len(t, eng.Forecast(history, 7), 7)
		assert.Len(t, eng.Forecast(history, 14), 14)
	})

	t.Run("flat history projects flat", func(t *testing.T) {
		history := historySeries(50, 50, 50, 50, 50, 50, 50)

		points := eng.Forecast(history, 7)
		assert.Len(t, points, 7)
		for _, p := range points {
			assert.Equal(t, 50.0, p.RiskScore)
		}

		// Margin is 5*sqrt(step): exactly 5 on day one and 10 on day four.
		assert.Equal(t, 45.0, points[0].ConfidenceLow)
		assert.Equal(t, 55.0, points[0].ConfidenceHigh)
		assert.Equal(t, 40.0, points[3].ConfidenceLow)
		assert.Equal(t, 60.0, points[3].ConfidenceHigh)
	})

	t.Run("forecast dates continue from the last history date", func(t *testing.T) {
		history := historySeries(40, 45, 50, 55, 60, 65, 70)

		points := eng.Forecast(history, 3)
		base := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, base.AddDate(0, 0, 1), points[0].Date)
		assert.Equal(t, base.AddDate(0, 0, 2), points[1].Date)
		assert.Equal(t, base.AddDate(0, 0, 3), points[2].Date)
	})

	t.Run("rising history projects a rising path", func(t *testing.T) {
		history := historySeries(10, 15, 20, 25, 30, 35, 40, 45, 50, 55)

		points := eng.Forecast(history, 7)
		assert.Len(t, points, 7)
		for i := 1; i < len(points); i++ {
			assert.Greater(t, points[i].RiskScore, points[i-1].RiskScore)
		}

		// Smoothed level 43.8 plus a 3.78/day trend.
		assert.Equal(t, 47.6, points[0].RiskScore)
		assert.Equal(t, 70.3, points[6].RiskScore)
		assert.Equal(t, 57.0, points[6].ConfidenceLow)
		assert.Equal(t, 83.5, points[6].ConfidenceHigh)
	})

	t.Run("short history uses the whole-series trend", func(t *testing.T) {
		history := historySeries(20, 30, 40)

		points := eng.Forecast(history, 2)
		// Smoothed level 28.1 plus a (28.1-20)/3 = 2.7/day trend.
		assert.Equal(t, 30.8, points[0].RiskScore)
		assert.Equal(t, 33.5, points[1].RiskScore)
		assert.Equal(t, 25.8, points[0].ConfidenceLow)
		assert.Equal(t, 35.8, points[0].ConfidenceHigh)
	})

	t.Run("confidence band widens with the horizon", func(t *testing.T) {
		history := historySeries(40, 45, 50, 55, 60, 65, 70)

		points := eng.Forecast(history, 10)
		for i := 1; i < len(points); i++ {
			prev := points[i-1].ConfidenceHigh - points[i-1].ConfidenceLow
			cur := points[i].ConfidenceHigh - points[i].ConfidenceLow
			assert.Greater(t, cur, prev)
		}
	})

	t.Run("projection is clamped to the score range", func(t *testing.T) {
		steep := historySeries(60, 70, 80, 90, 95, 99, 99, 99, 99, 99)

		for _, p := range eng.Forecast(steep, 14) {
			assert.GreaterOrEqual(t, p.RiskScore, 0.0)
			assert.LessOrEqual(t, p.RiskScore, 100.0)
			assert.GreaterOrEqual(t, p.ConfidenceLow, 0.0)
			assert.LessOrEqual(t, p.ConfidenceHigh, 100.0)
		}
	})

	t.Run("unsorted history matches sorted history", func(t *testing.T) {
		sorted := historySeries(10, 20, 30, 40, 50, 60, 70)
		shuffled := []models.ScorePoint{
			sorted[3], sorted[0], sorted[6], sorted[1], sorted[5], sorted[2], sorted[4],
		}

		assert.Equal(t, eng.Forecast(sorted, 5), eng.Forecast(shuffled, 5))
	})

	t.Run("sparse history degrades to a flat projection", func(t *testing.T) {
		history := []models.ScorePoint{
			{Date: testNow.AddDate(0, 0, -20), Value: 40},
			{Date: testNow.AddDate(0, 0, -19), Value: 60},
		}

		points := eng.Forecast(history, 4)
		assert.Len(t, points, 4)
		for _, p := range points {
			assert.Equal(t, 60.0, p.RiskScore)
		}

		// Doubled margin: 10*sqrt(step).
		assert.Equal(t, 50.0, points[0].ConfidenceLow)
		assert.Equal(t, 70.0, points[0].ConfidenceHigh)
		assert.Equal(t, 40.0, points[3].ConfidenceLow)
		assert.Equal(t, 80.0, points[3].ConfidenceHigh)

		// Flat projections date from today, not from the stale history.
		today := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, today.AddDate(0, 0, 1), points[0].Date)
	})

	t.Run("single out of range score is clamped flat", func(t *testing.T) {
		history := []models.ScorePoint{{Date: testNow, Value: 120}}

		points := eng.Forecast(history, 2)
		assert.Equal(t, 100.0, points[0].RiskScore)
		assert.Equal(t, 100.0, points[0].ConfidenceHigh)
		assert.Equal(t, 90.0, points[0].ConfidenceLow)
	})
}
