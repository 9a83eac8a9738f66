// Package telemetry emits operational metrics for dispatch ticks, sink
// deliveries and retention runs.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"microgrid/internal/types"
)

// Recorder receives tick outcomes. Implementations must not block the
// caller for long and never return errors: a metrics outage is logged, not
// propagated.
type Recorder interface {
	RecordTick(ctx context.Context, res types.DispatchResult, took time.Duration)
	RecordTickFailure(ctx context.Context)
	RecordPublishFailure(ctx context.Context, sink string)
	RecordArchived(ctx context.Context, ticks int)
}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var _ Recorder = (*CloudWatchRecorder)(nil)

// CloudWatchRecorder publishes metrics to CloudWatch under one namespace,
// tagging every datum with the deployment environment.
type CloudWatchRecorder struct {
	client      CloudWatchClient
	namespace   string
	environment string
	logger      *slog.Logger
}

// NewCloudWatchRecorder creates a recorder. An empty namespace falls back to
// types.MetricNamespace.
func NewCloudWatchRecorder(client CloudWatchClient, namespace, environment string, logger *slog.Logger) *CloudWatchRecorder {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchRecorder{
		client:      client,
		namespace:   namespace,
		environment: environment,
		logger:      logger,
	}
}

// RecordTick emits the tick latency and the headline energy figures in a
// single PutMetricData call.
func (r *CloudWatchRecorder) RecordTick(ctx context.Context, res types.DispatchResult, took time.Duration) {
	r.put(ctx, "tick",
		r.datum(types.MetricTickDuration, float64(took.Milliseconds()), cwtypes.StandardUnitMilliseconds),
		r.datum(types.MetricStateOfCharge, res.Battery.SoCPercent, cwtypes.StandardUnitPercent),
		r.datum(types.MetricGridImport, res.Grid.ImportKw, cwtypes.StandardUnitNone),
		r.datum(types.MetricGridExport, res.Grid.ExportKw, cwtypes.StandardUnitNone),
		r.datum(types.MetricRenewableOutput, res.Generation.RenewableKw(), cwtypes.StandardUnitNone),
		r.datum(types.MetricActiveAlerts, float64(len(res.Alerts)), cwtypes.StandardUnitCount),
	)
}

// RecordTickFailure counts a tick that was skipped because it could not be
// persisted.
func (r *CloudWatchRecorder) RecordTickFailure(ctx context.Context) {
	r.put(ctx, "tick_failure", r.datum(types.MetricTickFailure, 1, cwtypes.StandardUnitCount))
}

// RecordPublishFailure counts a failed delivery to one sink.
func (r *CloudWatchRecorder) RecordPublishFailure(ctx context.Context, sink string) {
	d := r.datum(types.MetricPublishFailure, 1, cwtypes.StandardUnitCount)
	d.Dimensions = append(d.Dimensions, cwtypes.Dimension{
		Name:  aws.String(types.DimSink),
		Value: aws.String(sink),
	})
	r.put(ctx, "publish_failure", d)
}

// RecordArchived counts ticks moved to cold storage by one retention run.
func (r *CloudWatchRecorder) RecordArchived(ctx context.Context, ticks int) {
	r.put(ctx, "archived", r.datum(types.MetricTicksArchived, float64(ticks), cwtypes.StandardUnitCount))
}

func (r *CloudWatchRecorder) datum(name string, value float64, unit cwtypes.StandardUnit) cwtypes.MetricDatum {
	d := cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
	}
	if r.environment != "" {
		d.Dimensions = []cwtypes.Dimension{{
			Name:  aws.String(types.DimEnvironment),
			Value: aws.String(r.environment),
		}}
	}
	return d
}

func (r *CloudWatchRecorder) put(ctx context.Context, kind string, data ...cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(r.namespace),
		MetricData: data,
	}
	if _, err := r.client.PutMetricData(ctx, input); err != nil {
		r.logger.Error("failed to record metric",
			"error", err.Error(),
			"kind", kind,
		)
	}
}

// NopRecorder discards all metrics. It is used when ENABLE_METRICS is off.
type NopRecorder struct{}

func (NopRecorder) RecordTick(context.Context, types.DispatchResult, time.Duration) {}
func (NopRecorder) RecordTickFailure(context.Context)                              {}
func (NopRecorder) RecordPublishFailure(context.Context, string)                   {}
func (NopRecorder) RecordArchived(context.Context, int)                            {}
