// Package scheduler runs the periodic dispatch tick and the tick retention
// job.
//
// The same services back the long-running dispatcher process and the Lambda
// entry point: EventBridge sends a TaskPayload naming the job, and the
// handler routes it here.
package scheduler

import "time"

// TaskType identifies which job an EventBridge event should run.
type TaskType string

const (
	TaskDispatchTick TaskType = "dispatch_tick"
	TaskArchiveTicks TaskType = "archive_ticks"
)

// TaskPayload is the JSON body of a scheduled invocation:
//
//	{
//	  "task": "archive_ticks",
//	  "reference_time": "2026-02-06T03:00:00Z"  // optional
//	}
type TaskPayload struct {
	Task TaskType `json:"task"`
	// ReferenceTime overrides "now" for the archive job so a missed run can
	// be replayed. Dispatch ticks always use the wall clock.
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}

// Now returns ReferenceTime when set, otherwise fallback.
func (p TaskPayload) Now(fallback time.Time) time.Time {
	if p.ReferenceTime != nil {
		return p.ReferenceTime.UTC()
	}
	return fallback
}
