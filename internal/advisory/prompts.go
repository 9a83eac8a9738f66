package advisory

import (
	"fmt"
	"strings"
)

const (
	optimizeSystem = "You are an energy optimization expert for a renewable-powered university campus. " +
		"Analyze the current energy data and give actionable recommendations that maximize renewable " +
		"utilization, use the battery well and minimize grid dependency. Assume high solar potential, " +
		"moderate wind, a hot climate and typical campus load patterns."

	forecastSystem = "You are an energy forecasting specialist for a renewable-powered university campus. " +
		"Predict generation, consumption and the best operating strategy from recent patterns and " +
		"current conditions, accounting for daily cycles and weather impact on renewables."
)

// Prompts renders the system and user prompts for a report.
func Prompts(r Report) (system, user string) {
	c := r.Current
	var b strings.Builder

	if r.Type == KindForecast {
		fmt.Fprintf(&b, "Based on current conditions and recent trends, forecast energy patterns for the next %s.\n", r.Timeframe)
		fmt.Fprintf(&b, "Current status: solar %.1f kW, wind %.1f kW, battery %.1f%% SoC, load %.1f kW.\n",
			c.Generation.SolarPowerKw, c.Generation.WindPowerKw, c.Battery.SoCPercent, c.Load.ActualLoadKw)
		b.WriteString("Provide hourly predictions and key insights for energy planning.")
		return forecastSystem, b.String()
	}

	b.WriteString("Current energy status:\n")
	fmt.Fprintf(&b, "- Solar: %.1f kW generated, %.0f W/m² irradiance\n", c.Generation.SolarPowerKw, c.Generation.SolarIrradianceWm2)
	fmt.Fprintf(&b, "- Wind: %.1f kW generated, %.1f m/s\n", c.Generation.WindPowerKw, c.Generation.WindSpeedMs)
	fmt.Fprintf(&b, "- Battery: %.1f%% SoC, %.1f kW charge rate\n", c.Battery.SoCPercent, c.Battery.ChargeRateKw)
	fmt.Fprintf(&b, "- Campus load: %.1f kW\n", c.Load.ActualLoadKw)
	fmt.Fprintf(&b, "- Grid: %.1f kW import, %.1f kW export\n", c.Grid.ImportKw, c.Grid.ExportKw)
	fmt.Fprintf(&b, "\nAverages over the last %d ticks:\n", r.Trends.Samples)
	fmt.Fprintf(&b, "- Solar: %.1f kW\n- Wind: %.1f kW\n- Battery SoC: %.1f%%\n- Load: %.1f kW\n",
		r.Trends.AvgSolarKw, r.Trends.AvgWindKw, r.Trends.AvgSoCPercent, r.Trends.AvgLoadKw)
	fmt.Fprintf(&b, "\nProvide specific optimization recommendations for the next %s.", r.Timeframe)
	return optimizeSystem, b.String()
}
