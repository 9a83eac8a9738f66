// Package advisory builds operator advice from recent ticks: trend averages,
// rule-based recommendations, the hourly projection and, when an advisor
// endpoint is configured, a free-text narrative.
package advisory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"microgrid/internal/energy"
	"microgrid/internal/types"
)

// Kind selects which part of the advice is primary.
type Kind string

const (
	KindOptimize Kind = "optimize"
	KindForecast Kind = "forecast"
)

// trendWindow is how many recent ticks the trend averages cover.
const trendWindow = 24

// TickReader loads recent persisted ticks, newest first.
type TickReader interface {
	Recent(ctx context.Context, limit int) ([]types.DispatchResult, error)
}

// AlertReader lists the currently active alerts.
type AlertReader interface {
	ListActive(ctx context.Context, limit int) ([]types.Alert, error)
}

// Narrator turns prompts into prose.
type Narrator interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Request selects the advice to produce.
type Request struct {
	Type      Kind   `json:"type"`
	Timeframe string `json:"timeframe"`
}

// Report is the advice returned to the caller. Only the fields for the
// requested Kind are populated.
type Report struct {
	Type            Kind                   `json:"type"`
	Timeframe       string                 `json:"timeframe"`
	GeneratedAt     time.Time              `json:"generated_at"`
	Current         types.DispatchResult   `json:"current"`
	Trends          types.Trends           `json:"trends"`
	Narrative       string                 `json:"narrative"`
	Recommendations []types.Recommendation `json:"recommendations,omitempty"`
	NextActions     []string               `json:"next_actions,omitempty"`
	Alerts          []types.Alert          `json:"alerts,omitempty"`
	HourlyForecast  []types.ForecastPoint  `json:"hourly_forecast,omitempty"`
}

// Service assembles advisory reports.
type Service struct {
	ticks    TickReader
	alerts   AlertReader
	narrator Narrator
	clock    types.Clock
	fallback types.SystemState
	logger   *slog.Logger
}

// NewService creates a Service. narrator may be nil, in which case reports
// carry no narrative.
func NewService(ticks TickReader, alerts AlertReader, narrator Narrator, clock types.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		ticks:    ticks,
		alerts:   alerts,
		narrator: narrator,
		clock:    clock,
		fallback: types.DefaultSystemState(),
		logger:   logger,
	}
}

// Advise builds the report for req. Empty type and timeframe default to
// optimize and 24h. Store failures are returned; narrator failures only
// leave the narrative empty.
func (s *Service) Advise(ctx context.Context, req Request) (Report, error) {
	if req.Type == "" {
		req.Type = KindOptimize
	}
	if req.Timeframe == "" {
		req.Timeframe = "24h"
	}
	horizon, err := energy.ParseTimeframe(req.Timeframe)
	if err != nil {
		return Report{}, types.NewAppError(types.ErrCodeValidationTimeframe, err.Error(), nil)
	}
	if req.Type != KindOptimize && req.Type != KindForecast {
		return Report{}, types.NewAppError(types.ErrCodeValidationAdvisoryType,
			fmt.Sprintf("unsupported advisory type %q", req.Type), nil)
	}

	recent, err := s.ticks.Recent(ctx, trendWindow)
	if err != nil {
		return Report{}, err
	}

	now := s.clock.Now()
	report := Report{
		Type:        req.Type,
		Timeframe:   req.Timeframe,
		GeneratedAt: now,
		Current:     s.current(recent),
		Trends:      energy.Summarize(recent),
	}

	switch req.Type {
	case KindOptimize:
		active, err := s.alerts.ListActive(ctx, 10)
		if err != nil {
			return Report{}, err
		}
		report.Recommendations = energy.Recommend(report.Current)
		report.NextActions = energy.NextActions(report.Current)
		report.Alerts = active
	case KindForecast:
		report.HourlyForecast = slices.Collect(energy.Project(now, horizon))
	}

	report.Narrative = s.narrate(ctx, report)
	return report, nil
}

// current is the newest tick, or an empty result carrying the default
// state when nothing has been stored yet.
func (s *Service) current(recent []types.DispatchResult) types.DispatchResult {
	if len(recent) > 0 {
		return recent[0]
	}
	return types.DispatchResult{
		Load:    types.LoadSample{TargetLoadKw: s.fallback.TargetLoadKw},
		Battery: types.BatteryState{SoCPercent: s.fallback.SoCPercent},
		Alerts:  []types.Alert{},
	}
}

func (s *Service) narrate(ctx context.Context, r Report) string {
	if s.narrator == nil {
		return ""
	}
	system, user := Prompts(r)
	text, err := s.narrator.Complete(ctx, system, user)
	if err != nil {
		s.logger.WarnContext(ctx, "advisor narrative unavailable",
			"type", string(r.Type),
			"error", err,
		)
		return ""
	}
	return text
}
