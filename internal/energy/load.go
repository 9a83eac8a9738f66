package energy

import (
	"math"
	"time"

	"microgrid/internal/types"
)

// Fixed end-use shares of campus load. Other is whatever remains.
const (
	hvacShare      = 0.4
	lightingShare  = 0.2
	equipmentShare = 0.3

	loadNoiseKw        = 10.0
	loadDriftKw        = 2.0
	loadForecastFactor = 1.03
)

// LoadModel perturbs the operator setpoint into an actual campus load.
type LoadModel struct {
	src Source
}

// NewLoadModel creates a LoadModel drawing from src.
func NewLoadModel(src Source) *LoadModel {
	return &LoadModel{src: src}
}

// Sample returns the load for a tick. targetKw is assumed already validated.
func (m *LoadModel) Sample(targetKw float64, at time.Time) types.LoadSample {
	drift := loadDriftKw * math.Sin(float64(at.Second())*math.Pi/30)
	actual := nonNegative(jitter(m.src, targetKw, loadNoiseKw) + drift)

	hvac, lighting, equipment, other := SplitLoad(actual)
	return types.LoadSample{
		TargetLoadKw: targetKw,
		ActualLoadKw: actual,
		HVACKw:       hvac,
		LightingKw:   lighting,
		EquipmentKw:  equipment,
		OtherKw:      other,
		ForecastKw:   actual * loadForecastFactor,
	}
}

// SplitLoad divides actual into HVAC, lighting, equipment and other.
// other is derived as the remainder, so hvac+lighting+equipment+other,
// summed left to right, reproduces actual exactly: the first three sum to
// roughly 0.9×actual, which makes the subtraction exact (Sterbenz).
func SplitLoad(actual float64) (hvac, lighting, equipment, other float64) {
	hvac = actual * hvacShare
	lighting = actual * lightingShare
	equipment = actual * equipmentShare
	other = actual - (hvac + lighting + equipment)
	return hvac, lighting, equipment, other
}
