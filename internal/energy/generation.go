package energy

import (
	"math"
	"time"

	"microgrid/internal/types"
)

// Plant ratings and curve parameters.
const (
	SolarCapacityKw     = 500.0
	PeakIrradianceWm2   = 1000.0
	WindCapacityKw      = 200.0
	WindCutInMs         = 3.0
	WindRatedMs         = 15.0
	solarForecastFactor = 1.05
	windForecastFactor  = 1.02
)

// GenerationModel samples solar and wind output for an instant.
type GenerationModel struct {
	src Source
}

// NewGenerationModel creates a GenerationModel drawing from src.
func NewGenerationModel(src Source) *GenerationModel {
	return &GenerationModel{src: src}
}

// Sample computes the GenerationSample for at. Draw order is fixed
// (irradiance band, solar efficiency, wind gust, direction, wind efficiency)
// so seeded runs are stable.
func (m *GenerationModel) Sample(at time.Time) types.GenerationSample {
	irradiance := SolarIrradiance(at) * uniform(m.src, 0.8, 1.2)
	solar := irradiance / PeakIrradianceWm2 * SolarCapacityKw * uniform(m.src, 0.85, 1.15)

	speed := math.Max(0, WindBaseSpeed(at)+uniform(m.src, 0, 3))
	direction := uniform(m.src, 0, 360)
	eff := uniform(m.src, 0.70, 1.30)
	wind := WindPower(speed, eff)

	return types.GenerationSample{
		Timestamp:          at,
		SolarIrradianceWm2: irradiance,
		SolarPowerKw:       nonNegative(solar),
		SolarForecastKw:    nonNegative(solar) * solarForecastFactor,
		WindSpeedMs:        speed,
		WindDirectionDeg:   direction,
		WindPowerKw:        wind,
		WindForecastKw:     wind * windForecastFactor,
	}
}

// SolarIrradiance is the clear-sky irradiance before variability: a half sine
// over [06:00, 18:00) peaking at noon, zero otherwise.
func SolarIrradiance(at time.Time) float64 {
	h := at.Hour()
	if h < 6 || h >= 18 {
		return 0
	}
	f := (float64(h-6) + float64(at.Minute())/60) / 12
	return nonNegative(math.Sin(f*math.Pi) * PeakIrradianceWm2)
}

// WindBaseSpeed is the diurnal wind component before gusts, in m/s.
func WindBaseSpeed(at time.Time) float64 {
	t := float64(at.Hour()) + float64(at.Minute())/60 + float64(at.Second())/3600
	return WindCutInMs + math.Sin(t*math.Pi/12)*4
}

// WindPower maps a wind speed to turbine output. Output is zero at or below
// cut-in and ramps linearly to rated capacity at WindRatedMs.
func WindPower(speedMs, efficiency float64) float64 {
	if speedMs <= WindCutInMs || math.IsNaN(speedMs) {
		return 0
	}
	ramp := math.Min((speedMs-WindCutInMs)/(WindRatedMs-WindCutInMs)*WindCapacityKw, WindCapacityKw)
	return nonNegative(ramp * efficiency)
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
