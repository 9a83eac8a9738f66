package energy

import "math"

// Battery limits.
const (
	DefaultCapacityKwh = 1000.0

	MinSoCPercent      = 20.0
	MaxSoCPercent      = 95.0
	chargeCeilingPct   = 90.0
	dischargeFloorPct  = 25.0
	maxChargeRateKw    = 200.0
	maxDischargeRateKw = 150.0
	chargeEfficiency   = 0.9
	kwPerHeadroomPct   = 10.0
	tickMinutesPerHour = 60.0
)

// BatteryDecision is the outcome of one Battery Controller step, including
// the grid remainders it leaves for the allocator.
type BatteryDecision struct {
	ChargeRateKw float64
	SoCPercent   float64
	GridImportKw float64
	GridExportKw float64
}

// BatteryController decides charge and discharge within rate and SoC limits.
type BatteryController struct {
	CapacityKwh float64
}

// NewBatteryController returns a controller for a pack of capacityKwh.
// A non-positive capacity falls back to DefaultCapacityKwh.
func NewBatteryController(capacityKwh float64) BatteryController {
	if capacityKwh <= 0 || math.IsNaN(capacityKwh) {
		capacityKwh = DefaultCapacityKwh
	}
	return BatteryController{CapacityKwh: capacityKwh}
}

// Decide serves load from renewables first, uses the battery for the
// imbalance while SoC allows, and leaves the rest to the grid.
func (c BatteryController) Decide(renewableKw, targetLoadKw, socPercent float64) BatteryDecision {
	excess := math.Max(0, renewableKw-targetLoadKw)
	deficit := math.Max(0, targetLoadKw-renewableKw)

	var d BatteryDecision
	switch {
	case excess > 0:
		if socPercent < chargeCeilingPct {
			d.ChargeRateKw = math.Min(excess*chargeEfficiency,
				math.Min(maxChargeRateKw, (chargeCeilingPct-socPercent)*kwPerHeadroomPct))
		}
		d.GridExportKw = excess - d.ChargeRateKw
	case deficit > 0:
		var discharge float64
		if socPercent > dischargeFloorPct {
			discharge = math.Min(deficit,
				math.Min(maxDischargeRateKw, (socPercent-MinSoCPercent)*kwPerHeadroomPct))
			d.ChargeRateKw = -discharge
		}
		d.GridImportKw = deficit - discharge
	}

	d.SoCPercent = clamp(socPercent+d.ChargeRateKw/c.capacity()*100/tickMinutesPerHour, MinSoCPercent, MaxSoCPercent)
	return d
}

func (c BatteryController) capacity() float64 {
	if c.CapacityKwh <= 0 {
		return DefaultCapacityKwh
	}
	return c.CapacityKwh
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
