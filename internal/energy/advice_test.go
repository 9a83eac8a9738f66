package energy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microgrid/internal/types"
)

func result(soc, solar, wind, load float64) types.DispatchResult {
	return types.DispatchResult{
		Generation: types.GenerationSample{SolarPowerKw: solar, WindPowerKw: wind},
		Battery:    types.BatteryState{SoCPercent: soc},
		Load:       types.LoadSample{ActualLoadKw: load},
	}
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		name          string
		soc, solar    float64
		batteryPrio   string
		batteryAction string
		solarPrio     string
		solarAction   string
	}{
		{"critical battery, dark", 25, 0, "high", "Charge battery urgently", "low", "Wait for better conditions"},
		{"half battery, sunny", 45, 350, "high", "Optimize charging schedule", "high", "Maximize solar utilization"},
		{"full battery, solar at threshold", 80, 300, "medium", "Optimize charging schedule", "low", "Wait for better conditions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := Recommend(result(tt.soc, tt.solar, 0, 0))
			require.Len(t, recs, 2)

			assert.Equal(t, "battery", recs[0].Category)
			assert.Equal(t, tt.batteryPrio, recs[0].Priority)
			assert.Equal(t, tt.batteryAction, recs[0].Action)
			assert.Equal(t, "High", recs[0].Impact)

			assert.Equal(t, "solar", recs[1].Category)
			assert.Equal(t, tt.solarPrio, recs[1].Priority)
			assert.Equal(t, tt.solarAction, recs[1].Action)
			assert.Equal(t, "Medium", recs[1].Impact)
		})
	}
}

func TestNextActions(t *testing.T) {
	actions := NextActions(result(42.34, 0, 0, 0))
	require.Len(t, actions, 3)
	assert.Equal(t, "Monitor battery SoC (currently 42.3%)", actions[0])
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, types.Trends{}, Summarize(nil))

	tr := Summarize([]types.DispatchResult{
		result(40, 100, 20, 300),
		result(60, 300, 40, 310),
	})
	assert.Equal(t, 2, tr.Samples)
	assert.InDelta(t, 200, tr.AvgSolarKw, 1e-9)
	assert.InDelta(t, 30, tr.AvgWindKw, 1e-9)
	assert.InDelta(t, 50, tr.AvgSoCPercent, 1e-9)
	assert.InDelta(t, 305, tr.AvgLoadKw, 1e-9)
}
