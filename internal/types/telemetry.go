package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricTickDuration    = "TickDuration"
	MetricTickFailure     = "TickFailure"
	MetricStateOfCharge   = "StateOfCharge"
	MetricGridImport      = "GridImport"
	MetricGridExport      = "GridExport"
	MetricRenewableOutput = "RenewableOutput"
	MetricActiveAlerts    = "ActiveAlerts"
	MetricPublishFailure  = "PublishFailure"
	MetricTicksArchived   = "TicksArchived"

	// Dimension Keys
	DimSink        = "Sink"
	DimEnvironment = "Environment"

	// Metric Namespace
	MetricNamespace = "Microgrid"
)
