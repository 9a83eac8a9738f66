package energy

import (
	"math"
	"time"

	"microgrid/internal/types"
)

// Engine runs one dispatch computation per call. It holds no history; the
// caller supplies prior state and stores the result.
//
// Engine is not safe for concurrent use because it shares one Source across
// its models. Callers serialize ticks.
type Engine struct {
	src        Source
	generation *GenerationModel
	load       *LoadModel
	battery    BatteryController
	rules      []AlertRule
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithCapacity sets the battery capacity in kWh.
func WithCapacity(kwh float64) EngineOption {
	return func(e *Engine) { e.battery = NewBatteryController(kwh) }
}

// WithAlertRules replaces the default rule table.
func WithAlertRules(rules []AlertRule) EngineOption {
	return func(e *Engine) { e.rules = rules }
}

// NewEngine creates an Engine whose random draws all come from src.
func NewEngine(src Source, opts ...EngineOption) *Engine {
	e := &Engine{
		src:        src,
		generation: NewGenerationModel(src),
		load:       NewLoadModel(src),
		battery:    NewBatteryController(DefaultCapacityKwh),
		rules:      DefaultAlertRules,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dispatch computes a full tick from state at the given instant.
func (e *Engine) Dispatch(state types.SystemState, at time.Time) types.DispatchResult {
	soc := clamp(state.SoCPercent, MinSoCPercent, MaxSoCPercent)

	gen := e.generation.Sample(at)
	load := e.load.Sample(state.TargetLoadKw, at)
	decision := e.battery.Decide(gen.RenewableKw(), load.TargetLoadKw, soc)
	grid, mix := Allocate(gen, load, decision)

	conditions := e.conditions(at)
	e.gridTelemetry(&grid)

	result := types.DispatchResult{
		Timestamp:  at,
		Generation: gen,
		Load:       load,
		Battery: types.BatteryState{
			SoCPercent:    decision.SoCPercent,
			ChargeRateKw:  decision.ChargeRateKw,
			CapacityKwh:   e.battery.capacity(),
			HealthPercent: uniform(e.src, 95, 99),
		},
		Grid:       grid,
		Mix:        mix,
		Conditions: conditions,
	}
	result.Alerts = EvaluateAlerts(e.rules, ReadingFrom(result), at)
	return result
}

func (e *Engine) conditions(at time.Time) types.Conditions {
	t := float64(at.Hour()) + float64(at.Minute())/60
	temp := 25 + math.Sin(t*math.Pi/12)*15 + jitter(e.src, 0, 2)
	cloud := clamp(30+math.Sin(float64(at.Hour())*math.Pi/8)*40+jitter(e.src, 0, 15), 0, 100)
	return types.Conditions{
		TemperatureC:        temp,
		CloudCoverPct:       cloud,
		BatteryTemperatureC: temp - 5,
	}
}

func (e *Engine) gridTelemetry(g *types.GridFlow) {
	g.FrequencyHz = jitter(e.src, 50, 0.1)
	g.VoltageL1 = jitter(e.src, 230, 5)
	g.VoltageL2 = jitter(e.src, 230, 5)
	g.VoltageL3 = jitter(e.src, 230, 5)
}
