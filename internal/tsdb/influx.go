// Package tsdb mirrors ingested telemetry into InfluxDB for long-range
// charting. The relational store stays the source of truth.
package tsdb

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/madiyar29925/UavHealthTracker12/internal/fleet"
	"github.com/madiyar29925/UavHealthTracker12/internal/metrics"
)

// Measurement is the InfluxDB measurement telemetry is written to
const Measurement = "uav_telemetry"

// InfluxSink writes one point per telemetry sample with the blocking write
// API.
type InfluxSink struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
	logger *slog.Logger
	bucket string
}

func NewInfluxSink(url, token, org, bucket string, logger *slog.Logger) *InfluxSink {
	if logger == nil {
		logger = slog.Default()
	}
	client := influxdb2.NewClient(url, token)
	return &InfluxSink{
		client: client,
		writer: client.WriteAPIBlocking(org, bucket),
		logger: logger.With("component", "tsdb.influx"),
		bucket: bucket,
	}
}

// WriteTelemetry stores t as a point tagged with its drone id.
func (s *InfluxSink) WriteTelemetry(ctx context.Context, t fleet.Telemetry) error {
	if err := s.writer.WritePoint(ctx, Point(t)); err != nil {
		metrics.TelemetryMirrored.WithLabelValues("error").Inc()
		return fmt.Errorf("write %s to %s: %w", Measurement, s.bucket, err)
	}
	metrics.TelemetryMirrored.WithLabelValues("ok").Inc()
	s.logger.Debug("telemetry mirrored", "uav", t.UAVID, "id", t.ID)
	return nil
}

// Close flushes and releases the client
func (s *InfluxSink) Close() {
	s.client.Close()
}

// Point converts a sample. Optional readings are only written when present.
func Point(t fleet.Telemetry) *write.Point {
	fields := map[string]interface{}{
		"battery_level":   t.BatteryLevel,
		"signal_strength": t.SignalStrength,
		"speed":           t.Speed,
		"altitude":        t.Altitude,
	}
	if t.Latitude != nil {
		fields["latitude"] = *t.Latitude
	}
	if t.Longitude != nil {
		fields["longitude"] = *t.Longitude
	}
	if t.Temperature != nil {
		fields["temperature"] = *t.Temperature
	}
	tags := map[string]string{"uav_id": strconv.FormatInt(t.UAVID, 10)}
	return influxdb2.NewPoint(Measurement, tags, fields, t.Timestamp)
}
