package publish

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"microgrid/internal/config"
	"microgrid/internal/types"
)

// PointWriter is the blocking write API of the InfluxDB client.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxSink writes tick measurements to InfluxDB v2.
type InfluxSink struct {
	writer PointWriter
	site   string
	close  func()
}

// NewInfluxClient creates a client and verifies it with a health check.
func NewInfluxClient(ctx context.Context, cfg config.InfluxConfig) (influxdb2.Client, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token.Unmask())
	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}
	return client, nil
}

// NewInfluxSink writes to org/bucket through client. site tags every point.
func NewInfluxSink(client influxdb2.Client, cfg config.InfluxConfig, site string) *InfluxSink {
	return &InfluxSink{
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		site:   site,
		close:  client.Close,
	}
}

// Name implements Sink.
func (s *InfluxSink) Name() string { return "influxdb" }

// Publish writes one point per measurement group.
func (s *InfluxSink) Publish(ctx context.Context, res types.DispatchResult) error {
	if err := s.writer.WritePoint(ctx, Points(res, s.site)...); err != nil {
		return fmt.Errorf("writing tick points: %w", err)
	}
	return nil
}

// Close releases the client's HTTP resources.
func (s *InfluxSink) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

// Points converts a tick into the generation, load, battery, grid and mix
// measurements.
func Points(res types.DispatchResult, site string) []*write.Point {
	tags := map[string]string{"site": site}
	at := res.Timestamp
	return []*write.Point{
		write.NewPoint("generation", tags, map[string]interface{}{
			"solar_kw":          res.Generation.SolarPowerKw,
			"solar_irradiance":  res.Generation.SolarIrradianceWm2,
			"wind_kw":           res.Generation.WindPowerKw,
			"wind_speed_ms":     res.Generation.WindSpeedMs,
			"wind_direction":    res.Generation.WindDirectionDeg,
			"renewable_kw":      res.Generation.RenewableKw(),
			"solar_forecast_kw": res.Generation.SolarForecastKw,
		}, at),
		write.NewPoint("load", tags, map[string]interface{}{
			"target_kw":    res.Load.TargetLoadKw,
			"actual_kw":    res.Load.ActualLoadKw,
			"hvac_kw":      res.Load.HVACKw,
			"lighting_kw":  res.Load.LightingKw,
			"equipment_kw": res.Load.EquipmentKw,
			"other_kw":     res.Load.OtherKw,
		}, at),
		write.NewPoint("battery", tags, map[string]interface{}{
			"soc_percent":    res.Battery.SoCPercent,
			"charge_rate_kw": res.Battery.ChargeRateKw,
			"health_percent": res.Battery.HealthPercent,
			"temperature_c":  res.Conditions.BatteryTemperatureC,
		}, at),
		write.NewPoint("grid", tags, map[string]interface{}{
			"import_kw":    res.Grid.ImportKw,
			"export_kw":    res.Grid.ExportKw,
			"frequency_hz": res.Grid.FrequencyHz,
		}, at),
		write.NewPoint("energy_mix", tags, map[string]interface{}{
			"solar_pct":            res.Mix.SolarPct,
			"wind_pct":             res.Mix.WindPct,
			"battery_pct":          res.Mix.BatteryPct,
			"grid_pct":             res.Mix.GridPct,
			"self_consumption_pct": res.Mix.SelfConsumptionPct,
			"active_alerts":        len(res.Alerts),
		}, at),
	}
}
