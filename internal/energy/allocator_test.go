package energy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"microgrid/internal/types"
)

func TestAllocate_ZeroSupplyAndLoad(t *testing.T) {
	grid, mix := Allocate(types.GenerationSample{}, types.LoadSample{}, BatteryDecision{SoCPercent: 50})

	assert.Equal(t, types.GridFlow{}, grid)
	for name, v := range map[string]float64{
		"solar":            mix.SolarPct,
		"wind":             mix.WindPct,
		"battery":          mix.BatteryPct,
		"grid":             mix.GridPct,
		"self_consumption": mix.SelfConsumptionPct,
	} {
		assert.False(t, math.IsNaN(v), name)
		assert.Zero(t, v, name)
	}
}

func TestAllocate_MixIncludesGridImport(t *testing.T) {
	gen := types.GenerationSample{SolarPowerKw: 40, WindPowerKw: 60}
	load := types.LoadSample{TargetLoadKw: 300, ActualLoadKw: 300}
	d := BatteryDecision{ChargeRateKw: -150, GridImportKw: 150}

	grid, mix := Allocate(gen, load, d)

	assert.Equal(t, 150.0, grid.ImportKw)
	assert.Zero(t, grid.ExportKw)
	assert.Equal(t, 150.0, grid.NetKw)

	assert.InDelta(t, 10, mix.SolarPct, 1e-9)
	assert.InDelta(t, 15, mix.WindPct, 1e-9)
	assert.InDelta(t, 37.5, mix.BatteryPct, 1e-9)
	assert.InDelta(t, 37.5, mix.GridPct, 1e-9)
	assert.InDelta(t, 100, mix.SolarPct+mix.WindPct+mix.BatteryPct+mix.GridPct, 1e-9)
	assert.InDelta(t, 100.0/3, mix.SelfConsumptionPct, 1e-9)
	assert.Equal(t, 100.0, mix.TotalGenerationKw)
	assert.Equal(t, 300.0, mix.TotalConsumptionKw)
}

func TestAllocate_SurplusExport(t *testing.T) {
	gen := types.GenerationSample{SolarPowerKw: 450}
	load := types.LoadSample{TargetLoadKw: 300, ActualLoadKw: 310}
	d := NewBatteryController(DefaultCapacityKwh).Decide(gen.RenewableKw(), load.TargetLoadKw, 85)

	grid, mix := Allocate(gen, load, d)

	assert.InDelta(t, 100, grid.ExportKw, 1e-9)
	assert.Zero(t, grid.ImportKw)
	assert.InDelta(t, -100, grid.NetKw, 1e-9)
	assert.InDelta(t, 100, mix.SolarPct, 1e-9)
	assert.Zero(t, mix.BatteryPct)
	assert.InDelta(t, 100, mix.SelfConsumptionPct, 1e-9)
}
