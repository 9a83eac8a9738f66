package energy

import (
	"fmt"
	"time"

	"microgrid/internal/types"
)

// Reading is the post-dispatch view that alert rules evaluate.
type Reading struct {
	SoCPercent   float64
	SolarKw      float64
	WindKw       float64
	WindSpeedMs  float64
	RenewableKw  float64
	ActualLoadKw float64
	GridImportKw float64
	GridExportKw float64
}

// ReadingFrom extracts the rule inputs from a computed tick.
func ReadingFrom(r types.DispatchResult) Reading {
	return Reading{
		SoCPercent:   r.Battery.SoCPercent,
		SolarKw:      r.Generation.SolarPowerKw,
		WindKw:       r.Generation.WindPowerKw,
		WindSpeedMs:  r.Generation.WindSpeedMs,
		RenewableKw:  r.Generation.RenewableKw(),
		ActualLoadKw: r.Load.ActualLoadKw,
		GridImportKw: r.Grid.ImportKw,
		GridExportKw: r.Grid.ExportKw,
	}
}

// AlertRule maps a predicate on a Reading to an alert template.
type AlertRule struct {
	Name     string
	Type     types.AlertType
	Category types.AlertCategory
	Priority int
	Title    string
	When     func(Reading) bool
	Describe func(Reading) (description, recommendation string)
}

// DefaultAlertRules is the ordered rule table evaluated on every tick.
var DefaultAlertRules = []AlertRule{
	{
		Name:     "low_battery",
		Type:     types.AlertWarning,
		Category: types.CategoryBattery,
		Priority: types.PriorityHigh,
		Title:    "Low Battery Level",
		When:     func(r Reading) bool { return r.SoCPercent < 30 },
		Describe: func(r Reading) (string, string) {
			return fmt.Sprintf("Battery SoC is %.1f%%, below recommended minimum", r.SoCPercent),
				"Consider reducing non-critical loads or importing from grid"
		},
	},
	{
		Name:     "optimal_solar",
		Type:     types.AlertSuccess,
		Category: types.CategoryOptimization,
		Priority: types.PriorityMedium,
		Title:    "Optimal Solar Generation",
		When:     func(r Reading) bool { return r.SolarKw > 400 && r.SoCPercent < 80 },
		Describe: func(r Reading) (string, string) {
			return fmt.Sprintf("Excellent solar conditions generating %.0fkW", r.SolarKw),
				"Perfect time to charge batteries and run flexible loads"
		},
	},
	{
		Name:     "strong_wind",
		Type:     types.AlertInfo,
		Category: types.CategoryWind,
		Priority: types.PriorityLow,
		Title:    "Strong Wind Generation",
		When:     func(r Reading) bool { return r.WindKw > 150 },
		Describe: func(r Reading) (string, string) {
			return fmt.Sprintf("Wind turbines generating %.0fkW at %.1f m/s", r.WindKw, r.WindSpeedMs),
				"Excellent conditions for renewable energy harvest"
		},
	},
	{
		Name:     "high_grid_import",
		Type:     types.AlertWarning,
		Category: types.CategoryGrid,
		Priority: types.PriorityHigh,
		Title:    "High Grid Import",
		When:     func(r Reading) bool { return r.GridImportKw > 200 },
		Describe: func(r Reading) (string, string) {
			return fmt.Sprintf("Currently importing %.0fkW from grid", r.GridImportKw),
				"Consider load shifting or battery discharge if available"
		},
	},
	{
		Name:     "grid_export",
		Type:     types.AlertSuccess,
		Category: types.CategoryGrid,
		Priority: types.PriorityLow,
		Title:    "Exporting Surplus to Grid",
		When:     func(r Reading) bool { return r.GridExportKw > 100 },
		Describe: func(r Reading) (string, string) {
			return fmt.Sprintf("Exporting %.0fkW of surplus renewable generation", r.GridExportKw),
				"Schedule flexible loads now to use surplus on site"
		},
	},
	{
		Name:     "renewable_self_sufficient",
		Type:     types.AlertSuccess,
		Category: types.CategoryEnergy,
		Priority: types.PriorityLow,
		Title:    "Running on Renewables",
		When:     func(r Reading) bool { return r.RenewableKw >= r.ActualLoadKw },
		Describe: func(r Reading) (string, string) {
			return fmt.Sprintf("Renewables supply %.0fkW against %.0fkW campus load", r.RenewableKw, r.ActualLoadKw),
				""
		},
	},
}

// EvaluateAlerts runs every rule against r in table order and returns one
// active alert per rule that fires. Rules are independent; any number may
// fire in a single tick.
func EvaluateAlerts(rules []AlertRule, r Reading, at time.Time) []types.Alert {
	alerts := make([]types.Alert, 0, len(rules))
	for _, rule := range rules {
		if !rule.When(r) {
			continue
		}
		desc, rec := rule.Describe(r)
		alerts = append(alerts, types.Alert{
			Type:           rule.Type,
			Category:       rule.Category,
			Title:          rule.Title,
			Description:    desc,
			Recommendation: rec,
			Priority:       rule.Priority,
			Timestamp:      at,
			Active:         true,
		})
	}
	return alerts
}
