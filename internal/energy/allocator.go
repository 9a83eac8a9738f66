package energy

import (
	"math"

	"microgrid/internal/types"
)

// Allocate turns the battery decision's remainders into a grid flow and
// computes the energy mix. Total supply is renewable output plus battery
// discharge plus grid import; every share is zero when supply is zero.
func Allocate(gen types.GenerationSample, load types.LoadSample, d BatteryDecision) (types.GridFlow, types.EnergyMix) {
	grid := types.GridFlow{
		ImportKw: nonNegative(d.GridImportKw),
		ExportKw: nonNegative(d.GridExportKw),
	}
	grid.NetKw = grid.ImportKw - grid.ExportKw

	renewable := gen.RenewableKw()
	discharge := 0.0
	if d.ChargeRateKw < 0 {
		discharge = -d.ChargeRateKw
	}
	supply := renewable + discharge + grid.ImportKw

	mix := types.EnergyMix{
		SolarPct:           percent(gen.SolarPowerKw, supply),
		WindPct:            percent(gen.WindPowerKw, supply),
		BatteryPct:         percent(discharge, supply),
		GridPct:            percent(grid.ImportKw, supply),
		SelfConsumptionPct: percent(math.Min(renewable, load.ActualLoadKw), load.ActualLoadKw),
		TotalGenerationKw:  renewable,
		TotalConsumptionKw: load.ActualLoadKw,
	}
	return grid, mix
}

// percent returns part/whole×100, or 0 when whole is not positive.
func percent(part, whole float64) float64 {
	if whole <= 0 || math.IsNaN(whole) || math.IsNaN(part) {
		return 0
	}
	return part / whole * 100
}
