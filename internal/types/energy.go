package types

import "time"

// GenerationSample is the renewable output computed for a single instant.
// It is never mutated after the Generation Model returns it.
type GenerationSample struct {
	Timestamp          time.Time `json:"timestamp"`
	SolarIrradianceWm2 float64   `json:"solar_irradiance_wm2"`
	SolarPowerKw       float64   `json:"solar_power_kw"`
	SolarForecastKw    float64   `json:"solar_forecast_kw"`
	WindSpeedMs        float64   `json:"wind_speed_ms"`
	WindDirectionDeg   float64   `json:"wind_direction_deg"`
	WindPowerKw        float64   `json:"wind_power_kw"`
	WindForecastKw     float64   `json:"wind_forecast_kw"`
}

// RenewableKw is solar plus wind output.
func (g GenerationSample) RenewableKw() float64 {
	return g.SolarPowerKw + g.WindPowerKw
}

// LoadSample is the campus consumption for a tick, broken down by end use.
// HVAC + Lighting + Equipment + Other always equals Actual.
type LoadSample struct {
	TargetLoadKw float64 `json:"target_load_kw"`
	ActualLoadKw float64 `json:"actual_load_kw"`
	HVACKw       float64 `json:"hvac_kw"`
	LightingKw   float64 `json:"lighting_kw"`
	EquipmentKw  float64 `json:"equipment_kw"`
	OtherKw      float64 `json:"other_kw"`
	ForecastKw   float64 `json:"forecast_kw"`
}

// BatteryState describes the storage system after a tick.
// ChargeRateKw is positive while charging and negative while discharging.
type BatteryState struct {
	SoCPercent    float64 `json:"soc_percent"`
	ChargeRateKw  float64 `json:"charge_rate_kw"`
	CapacityKwh   float64 `json:"capacity_kwh"`
	HealthPercent float64 `json:"health_percent"`
}

// Charging reports whether energy flowed into the battery this tick.
func (b BatteryState) Charging() bool { return b.ChargeRateKw > 0 }

// DischargeKw is the magnitude of discharge, zero when idle or charging.
func (b BatteryState) DischargeKw() float64 {
	if b.ChargeRateKw < 0 {
		return -b.ChargeRateKw
	}
	return 0
}

// GridFlow is the exchange with the utility grid. At most one of
// ImportKw and ExportKw is non-zero.
type GridFlow struct {
	ImportKw    float64 `json:"import_kw"`
	ExportKw    float64 `json:"export_kw"`
	NetKw       float64 `json:"net_kw"`
	FrequencyHz float64 `json:"frequency_hz"`
	VoltageL1   float64 `json:"voltage_l1"`
	VoltageL2   float64 `json:"voltage_l2"`
	VoltageL3   float64 `json:"voltage_l3"`
}

// EnergyMix is the share of each source in total supply for a tick.
type EnergyMix struct {
	SolarPct           float64 `json:"solar_pct"`
	WindPct            float64 `json:"wind_pct"`
	BatteryPct         float64 `json:"battery_pct"`
	GridPct            float64 `json:"grid_pct"`
	SelfConsumptionPct float64 `json:"self_consumption_pct"`
	TotalGenerationKw  float64 `json:"total_generation_kw"`
	TotalConsumptionKw float64 `json:"total_consumption_kw"`
}

// Conditions holds ambient readings reported alongside a tick.
type Conditions struct {
	TemperatureC        float64 `json:"temperature_c"`
	CloudCoverPct       float64 `json:"cloud_cover_pct"`
	BatteryTemperatureC float64 `json:"battery_temperature_c"`
}

// SystemState is the state carried between ticks.
type SystemState struct {
	SoCPercent   float64 `json:"soc_percent"`
	TargetLoadKw float64 `json:"target_load_kw"`
}

// Defaults applied when prior state cannot be read.
const (
	DefaultSoCPercent   = 50.0
	DefaultTargetLoadKw = 300.0
	MaxTargetLoadKw     = 2000.0
)

// DefaultSystemState returns the state used for a cold start.
func DefaultSystemState() SystemState {
	return SystemState{SoCPercent: DefaultSoCPercent, TargetLoadKw: DefaultTargetLoadKw}
}

// DispatchResult is everything one tick produced.
type DispatchResult struct {
	TickID     string           `json:"tick_id,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
	Generation GenerationSample `json:"generation"`
	Load       LoadSample       `json:"load"`
	Battery    BatteryState     `json:"battery"`
	Grid       GridFlow         `json:"grid"`
	Mix        EnergyMix        `json:"mix"`
	Conditions Conditions       `json:"conditions"`
	Alerts     []Alert          `json:"alerts"`
}

// NextState is the state to carry into the following tick.
func (r DispatchResult) NextState() SystemState {
	return SystemState{SoCPercent: r.Battery.SoCPercent, TargetLoadKw: r.Load.TargetLoadKw}
}

// ForecastAction is the recommended battery action for a forecast hour.
type ForecastAction string

const (
	ActionCharge    ForecastAction = "charge"
	ActionDischarge ForecastAction = "discharge"
)

// ForecastPoint is one hour of the projected profile. Values are whole kW.
type ForecastPoint struct {
	Hour    int            `json:"hour"`
	Time    string         `json:"time"`
	SolarKw float64        `json:"solar_kw"`
	WindKw  float64        `json:"wind_kw"`
	LoadKw  float64        `json:"load_kw"`
	Action  ForecastAction `json:"action"`
}

// Recommendation is an operator action suggested by the advisory service.
type Recommendation struct {
	Category string `json:"category"`
	Priority string `json:"priority"`
	Action   string `json:"action"`
	Impact   string `json:"impact"`
}

// Trends are averages over the most recent ticks.
type Trends struct {
	Samples       int     `json:"samples"`
	AvgSolarKw    float64 `json:"avg_solar_kw"`
	AvgWindKw     float64 `json:"avg_wind_kw"`
	AvgSoCPercent float64 `json:"avg_soc_percent"`
	AvgLoadKw     float64 `json:"avg_load_kw"`
}
