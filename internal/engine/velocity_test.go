package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"outbreak-platform/internal/models"
)

func TestGrowthComponent(t *testing.T) {
	eng := newTestEngine(t)

	t.Run("strictly increasing seven-point series reads above 50", func(t *testing.T) {
		samples := dailySeries(0.3, 0.38, 0.47, 0.55, 0.63, 0.72, 0.8)

		got := eng.GrowthComponent(samples)
		assert.Greater(t, got, 50.0)
		// (0.8-0.3)/0.3 exceeds the velocity cap, so the signal saturates.
		assert.Equal(t, 100.0, got)
	})

	t.Run("strictly decreasing seven-point series reads below 50", func(t *testing.T) {
		samples := dailySeries(0.8, 0.72, 0.63, 0.55, 0.47, 0.38, 0.3)

		got := eng.GrowthComponent(samples)
		assert.Less(t, got, 50.0)
		assert.Equal(t, 0.0, got)
	})

	t.Run("constant series reads exactly 50", func(t *testing.T) {
		samples := dailySeries(0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5)
		assert.Equal(t, 50.0, eng.GrowthComponent(samples))
	})

	t.Run("fewer than two usable loads reads neutral", func(t *testing.T) {
		assert.Equal(t, 50.0, eng.GrowthComponent(nil))
		assert.Equal(t, 50.0, eng.GrowthComponent(dailySeries(0.7)))
	})

	t.Run("two points compare newest against oldest", func(t *testing.T) {
		// (0.6-0.4)/0.4 = 0.5, exactly the cap.
		samples := dailySeries(0.4, 0.6)
		assert.InDelta(t, 100.0, eng.GrowthComponent(samples), 1e-9)

		// (0.5-0.4)/0.4 = 0.25, half the cap maps to 75.
		samples = dailySeries(0.4, 0.5)
		assert.InDelta(t, 75.0, eng.GrowthComponent(samples), 1e-9)
	})

	t.Run("zero oldest load yields neutral velocity", func(t *testing.T) {
		samples := dailySeries(0.0, 0.9)
		assert.Equal(t, 50.0, eng.GrowthComponent(samples))
	})

	t.Run("eight points compare rolling week windows", func(t *testing.T) {
		// Recent seven average exceeds the earliest seven average.
		samples := dailySeries(0.2, 0.2, 0.2, 0.2, 0.2, 0.2, 0.2, 0.4)
		assert.Greater(t, eng.GrowthComponent(samples), 50.0)
	})

	t.Run("fourteen points compare disjoint weeks", func(t *testing.T) {
		samples := dailySeries(
			0.2, 0.2, 0.2, 0.2, 0.2, 0.2, 0.2,
			0.4, 0.4, 0.4, 0.4, 0.4, 0.4, 0.4,
		)

		// (0.4-0.2)/0.2 = 1.0, clamped to the 0.5 cap.
		assert.Equal(t, 100.0, eng.GrowthComponent(samples))
	})

	t.Run("zero prior week yields neutral velocity", func(t *testing.T) {
		samples := dailySeries(
			0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0,
			0.4, 0.4, 0.4, 0.4, 0.4, 0.4, 0.4,
		)
		assert.Equal(t, 50.0, eng.GrowthComponent(samples))
	})

	t.Run("unsorted input matches sorted input", func(t *testing.T) {
		sorted := dailySeries(0.3, 0.4, 0.5, 0.6, 0.7, 0.75, 0.8)
		shuffled := []models.SurveillanceSample{
			sorted[4], sorted[0], sorted[6], sorted[2], sorted[5], sorted[1], sorted[3],
		}

		assert.Equal(t, eng.GrowthComponent(sorted), eng.GrowthComponent(shuffled))
	})

	t.Run("result is always within bounds", func(t *testing.T) {
		series := [][]float64{
			{0.0, 1.0},
			{1.0, 0.0},
			{0.001, 0.9, 0.001, 0.9},
			{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.9},
		}
		for _, s := range series {
			got := eng.GrowthComponent(dailySeries(s...))
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 100.0)
		}
	})
}

func TestTrendLabel(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name     string
		scores   []float64
		expected models.Trend
	}{
		{
			name:     "strictly increasing series is rising",
			scores:   []float64{0.3, 0.38, 0.47, 0.55, 0.63, 0.72, 0.8},
			expected: models.TrendRising,
		},
		{
			name:     "strictly decreasing series is falling",
			scores:   []float64{0.8, 0.72, 0.63, 0.55, 0.47, 0.38, 0.3},
			expected: models.TrendFalling,
		},
		{
			name:     "constant series is stable",
			scores:   []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5},
			expected: models.TrendStable,
		},
		{
			name:     "small alternation stays stable",
			scores:   []float64{0.49, 0.51, 0.49, 0.51, 0.49, 0.51, 0.49},
			expected: models.TrendStable,
		},
		{
			name:     "fewer than three points is always stable",
			scores:   []float64{0.1, 0.9},
			expected: models.TrendStable,
		},
		{
			name:     "all-zero series is stable",
			scores:   []float64{0, 0, 0, 0, 0, 0, 0},
			expected: models.TrendStable,
		},
		{
			name:     "three rising points suffice",
			scores:   []float64{0.2, 0.4, 0.6},
			expected: models.TrendRising,
		},
		{
			name: "only the last seven points matter",
			// Early collapse followed by a steady recent rise.
			scores:   []float64{0.9, 0.9, 0.9, 0.2, 0.25, 0.3, 0.35, 0.4, 0.45, 0.5},
			expected: models.TrendRising,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, eng.TrendLabel(dailySeries(tt.scores...)))
		})
	}

	t.Run("no samples is stable", func(t *testing.T) {
		assert.Equal(t, models.TrendStable, eng.TrendLabel(nil))
	})
}
