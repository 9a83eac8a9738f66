package types

import "time"

// AlertType is the display severity of an alert.
type AlertType string

const (
	AlertInfo     AlertType = "info"
	AlertSuccess  AlertType = "success"
	AlertWarning  AlertType = "warning"
	AlertCritical AlertType = "critical"
)

// AlertCategory groups alerts by the subsystem they describe.
type AlertCategory string

const (
	CategoryBattery      AlertCategory = "battery"
	CategoryOptimization AlertCategory = "optimization"
	CategoryWind         AlertCategory = "wind"
	CategoryGrid         AlertCategory = "grid"
	CategoryEnergy       AlertCategory = "energy"
)

// Alert priorities, higher is more urgent.
const (
	PriorityLow    = 1
	PriorityMedium = 2
	PriorityHigh   = 3
)

// Alert is a condition-based notice raised by a tick. The full set is
// replaced on every tick; ID is assigned when the alert is stored.
type Alert struct {
	ID             string        `json:"id,omitempty"`
	Type           AlertType     `json:"type"`
	Category       AlertCategory `json:"category"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Recommendation string        `json:"recommendation,omitempty"`
	Priority       int           `json:"priority"`
	Timestamp      time.Time     `json:"timestamp"`
	Active         bool          `json:"active"`
}
