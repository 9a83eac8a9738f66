package energy

import (
	"fmt"

	"microgrid/internal/types"
)

// Recommend derives the operator recommendations for the latest tick.
func Recommend(latest types.DispatchResult) []types.Recommendation {
	soc := latest.Battery.SoCPercent
	solar := latest.Generation.SolarPowerKw

	battery := types.Recommendation{
		Category: "battery",
		Priority: "medium",
		Action:   "Optimize charging schedule",
		Impact:   "High",
	}
	if soc < 50 {
		battery.Priority = "high"
	}
	if soc < 30 {
		battery.Action = "Charge battery urgently"
	}

	pv := types.Recommendation{
		Category: "solar",
		Priority: "low",
		Action:   "Wait for better conditions",
		Impact:   "Medium",
	}
	if solar > 300 {
		pv.Priority = "high"
		pv.Action = "Maximize solar utilization"
	}

	return []types.Recommendation{battery, pv}
}

// NextActions lists the follow-up steps shown with recommendations.
func NextActions(latest types.DispatchResult) []string {
	return []string{
		fmt.Sprintf("Monitor battery SoC (currently %.1f%%)", latest.Battery.SoCPercent),
		"Optimize HVAC schedule based on solar availability",
		"Consider load shifting for non-critical equipment",
	}
}

// Summarize averages the given ticks. Empty input yields zero trends.
func Summarize(ticks []types.DispatchResult) types.Trends {
	t := types.Trends{Samples: len(ticks)}
	if len(ticks) == 0 {
		return t
	}
	for _, r := range ticks {
		t.AvgSolarKw += r.Generation.SolarPowerKw
		t.AvgWindKw += r.Generation.WindPowerKw
		t.AvgSoCPercent += r.Battery.SoCPercent
		t.AvgLoadKw += r.Load.ActualLoadKw
	}
	n := float64(len(ticks))
	t.AvgSolarKw /= n
	t.AvgWindKw /= n
	t.AvgSoCPercent /= n
	t.AvgLoadKw /= n
	return t
}
