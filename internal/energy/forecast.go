package energy

import (
	"fmt"
	"iter"
	"math"
	"time"

	"microgrid/internal/types"
)

// Supported projection horizons, in hours.
const (
	HorizonShort = 6
	HorizonDay   = 24
)

// ParseTimeframe maps the "6h"/"24h" selector to a horizon. An empty
// timeframe means a full day.
func ParseTimeframe(tf string) (int, error) {
	switch tf {
	case "6h":
		return HorizonShort, nil
	case "24h", "":
		return HorizonDay, nil
	default:
		return 0, fmt.Errorf("unsupported timeframe %q", tf)
	}
}

// Project yields the hourly profile for the horizon hours following now.
// The sequence is deterministic and can be ranged over any number of times.
func Project(now time.Time, horizon int) iter.Seq[types.ForecastPoint] {
	return func(yield func(types.ForecastPoint) bool) {
		for i := 1; i <= horizon; i++ {
			if !yield(ProjectHour(now, i)) {
				return
			}
		}
	}
}

// ProjectHour computes the i-th hour after now. The battery action compares
// the unrounded solar and load values; the published values are rounded.
func ProjectHour(now time.Time, i int) types.ForecastPoint {
	h := (now.Hour() + i) % 24
	fh := float64(h)

	solar := 0.0
	if h >= 6 && h <= 18 {
		solar = math.Max(0, math.Sin((fh-6)/12*math.Pi)*450)
	}
	wind := 50 + math.Sin(fh*math.Pi/12)*100
	load := 250 + math.Sin((fh-8)*math.Pi/16)*200

	action := types.ActionDischarge
	if solar > load {
		action = types.ActionCharge
	}

	return types.ForecastPoint{
		Hour:    h,
		Time:    fmt.Sprintf("%02d:00", h),
		SolarKw: math.Round(solar),
		WindKw:  math.Round(wind),
		LoadKw:  math.Round(load),
		Action:  action,
	}
}
