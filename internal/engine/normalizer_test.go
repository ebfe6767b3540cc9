package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"outbreak-platform/internal/models"
)

func TestWastewaterComponent(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name     string
		samples  []models.SurveillanceSample
		expected float64
	}{
		{
			name:     "no samples returns neutral default",
			samples:  nil,
			expected: 50.0,
		},
		{
			name:     "normalized score scales to 100",
			samples:  []models.SurveillanceSample{scoreSample(testNow, 0.75)},
			expected: 75.0,
		},
		{
			name:     "raw load scales against ceiling",
			samples:  []models.SurveillanceSample{rawSample(testNow, 5e8)},
			expected: 50.0,
		},
		{
			name:     "raw load above ceiling saturates",
			samples:  []models.SurveillanceSample{rawSample(testNow, 3e9)},
			expected: 100.0,
		},
		{
			name: "normalized score preferred over raw load",
			samples: func() []models.SurveillanceSample {
				s := scoreSample(testNow, 0.75)
				load := 1e9
				s.RawLoad = &load
				return []models.SurveillanceSample{s}
			}(),
			expected: 75.0,
		},
		{
			name: "most recent sample wins",
			samples: []models.SurveillanceSample{
				scoreSample(testNow.AddDate(0, 0, -5), 0.3),
				scoreSample(testNow, 0.8),
			},
			expected: 80.0,
		},
		{
			name: "order of the input slice does not matter",
			samples: []models.SurveillanceSample{
				scoreSample(testNow, 0.8),
				scoreSample(testNow.AddDate(0, 0, -5), 0.3),
			},
			expected: 80.0,
		},
		{
			name: "timestamp tie broken by latest ingestion",
			samples: []models.SurveillanceSample{
				scoreSample(testNow, 0.3),
				scoreSample(testNow, 0.9),
			},
			expected: 90.0,
		},
		{
			name: "sample without either signal returns neutral",
			samples: []models.SurveillanceSample{
				{LocationID: "loc_test", Timestamp: testNow},
			},
			expected: 50.0,
		},
		{
			name:     "negative normalized score clamps to zero",
			samples:  []models.SurveillanceSample{scoreSample(testNow, -0.4)},
			expected: 0.0,
		},
		{
			name:     "normalized score above one clamps to 100",
			samples:  []models.SurveillanceSample{scoreSample(testNow, 1.8)},
			expected: 100.0,
		},
		{
			name: "zero normalized score is a real reading, not missing data",
			samples: func() []models.SurveillanceSample {
				s := scoreSample(testNow, 0.0)
				load := 9e8
				s.RawLoad = &load
				return []models.SurveillanceSample{s}
			}(),
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, eng.WastewaterComponent(tt.samples))
		})
	}
}

func TestSortedLoads(t *testing.T) {
	eng := newTestEngine(t)

	t.Run("skips samples without a usable signal", func(t *testing.T) {
		samples := []models.SurveillanceSample{
			scoreSample(testNow.AddDate(0, 0, -2), 0.2),
			{LocationID: "loc_test", Timestamp: testNow.AddDate(0, 0, -1)},
			scoreSample(testNow, 0.6),
		}

		assert.Equal(t, []float64{0.2, 0.6}, eng.sortedLoads(samples))
	})

	t.Run("orders by timestamp regardless of input order", func(t *testing.T) {
		samples := []models.SurveillanceSample{
			scoreSample(testNow, 0.6),
			scoreSample(testNow.AddDate(0, 0, -2), 0.2),
			scoreSample(testNow.AddDate(0, 0, -1), 0.4),
		}

		assert.Equal(t, []float64{0.2, 0.4, 0.6}, eng.sortedLoads(samples))
	})

	t.Run("raw loads scale against the ceiling", func(t *testing.T) {
		samples := []models.SurveillanceSample{
			rawSample(testNow.AddDate(0, 0, -1), 2.5e8),
			rawSample(testNow, 5e8),
		}

		assert.Equal(t, []float64{0.25, 0.5}, eng.sortedLoads(samples))
	})

	t.Run("does not reorder the caller's slice", func(t *testing.T) {
		samples := []models.SurveillanceSample{
			scoreSample(testNow, 0.6),
			scoreSample(testNow.AddDate(0, 0, -1), 0.2),
		}

		eng.sortedLoads(samples)

		assert.Equal(t, 0.6, *samples[0].NormalizedScore)
	})
}

func TestLatestSample(t *testing.T) {
	older := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)

	samples := []models.SurveillanceSample{
		scoreSample(newer, 0.9),
		scoreSample(older, 0.1),
	}

	got := latestSample(samples)
	assert.Equal(t, newer, got.Timestamp)
	assert.Equal(t, 0.9, *got.NormalizedScore)
}
