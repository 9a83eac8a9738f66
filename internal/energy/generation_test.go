package energy

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute, second int) time.Time {
	return time.Date(2025, 6, 21, hour, minute, second, 0, time.UTC)
}

func TestGenerationModel_SolarWindow(t *testing.T) {
	m := NewGenerationModel(Fixed(0.5))

	night := m.Sample(at(2, 0, 0))
	assert.Zero(t, night.SolarIrradianceWm2)
	assert.Zero(t, night.SolarPowerKw)

	assert.Zero(t, SolarIrradiance(at(5, 59, 59)))
	assert.Zero(t, SolarIrradiance(at(18, 0, 0)))
	assert.Zero(t, SolarIrradiance(at(6, 0, 0)))
	assert.Greater(t, SolarIrradiance(at(6, 30, 0)), 0.0)

	noon := m.Sample(at(12, 0, 0))
	assert.InDelta(t, 1000, noon.SolarIrradianceWm2, 1e-9)
	assert.InDelta(t, 500, noon.SolarPowerKw, 1e-9)
	assert.InDelta(t, 525, noon.SolarForecastKw, 1e-9)
}

func TestGenerationModel_Wind(t *testing.T) {
	m := NewGenerationModel(Fixed(0.5))

	// base 3 + sin(π)·4 ≈ 3, gust 1.5, efficiency 1.0
	s := m.Sample(at(12, 0, 0))
	assert.InDelta(t, 4.5, s.WindSpeedMs, 1e-9)
	assert.InDelta(t, 180, s.WindDirectionDeg, 1e-9)
	assert.InDelta(t, 25, s.WindPowerKw, 1e-9)
	assert.InDelta(t, 25.5, s.WindForecastKw, 1e-9)
}

func TestWindPower(t *testing.T) {
	tests := []struct {
		name  string
		speed float64
		eff   float64
		want  float64
	}{
		{"calm", 0, 1, 0},
		{"at cut-in", 3, 1, 0},
		{"mid ramp", 9, 1, 100},
		{"rated", 15, 1, 200},
		{"above rated is capped before efficiency", 25, 1.2, 240},
		{"low efficiency", 9, 0.7, 70},
		{"nan speed", math.NaN(), 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, WindPower(tt.speed, tt.eff), 1e-9)
		})
	}
}

func TestGenerationModel_NeverNegativeOrNaN(t *testing.T) {
	m := NewGenerationModel(NewSource(42))
	start := at(0, 0, 0)

	for i := 0; i < 24*60; i++ {
		s := m.Sample(start.Add(time.Duration(i) * time.Minute))
		for name, v := range map[string]float64{
			"irradiance": s.SolarIrradianceWm2,
			"solar":      s.SolarPowerKw,
			"wind_speed": s.WindSpeedMs,
			"wind":       s.WindPowerKw,
		} {
			require.False(t, math.IsNaN(v), "%s is NaN at minute %d", name, i)
			require.GreaterOrEqual(t, v, 0.0, "%s negative at minute %d", name, i)
		}
		require.GreaterOrEqual(t, s.WindDirectionDeg, 0.0)
		require.Less(t, s.WindDirectionDeg, 360.0)
		require.LessOrEqual(t, s.SolarPowerKw, SolarCapacityKw*1.2*1.15+1e-9)
	}
}

func TestGenerationModel_SeededRunsRepeat(t *testing.T) {
	a := NewGenerationModel(NewSource(99))
	b := NewGenerationModel(NewSource(99))

	for i := 0; i < 10; i++ {
		ts := at(10, i, 0)
		assert.Equal(t, a.Sample(ts), b.Sample(ts))
	}
}
