// Package metrics writes job run counters and cash book summaries to
// InfluxDB so runs can be graphed and alerted on.
package metrics

import (
	"fmt"
	"time"

	influx "github.com/influxdata/influxdb/client/v2"
	"k8s.io/klog"

	"github.com/bcaldwell/bookops/internal/reports"
	"github.com/bcaldwell/bookops/pkg/config"
)

// Recorder batches points to InfluxDB. A nil Recorder is valid and drops
// everything, so callers never have to check whether metrics are configured.
type Recorder struct {
	client             influx.Client
	database           string
	runsMeasurement    string
	summaryMeasurement string
}

// NewRecorder returns nil without error when no influx endpoint is
// configured.
func NewRecorder(secrets *config.InfluxSecrets, cfg *config.MetricsConfig) (*Recorder, error) {
	if secrets.InfluxEndpoint == "" {
		return nil, nil
	}

	client, err := influx.NewHTTPClient(influx.HTTPConfig{
		Addr:     secrets.InfluxEndpoint,
		Username: secrets.InfluxUsername,
		Password: secrets.InfluxPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create influx client: %w", err)
	}

	return &Recorder{
		client:             client,
		database:           cfg.Database,
		runsMeasurement:    cfg.RunsMeasurement,
		summaryMeasurement: cfg.SummaryMeasurement,
	}, nil
}

// RecordRun writes one point for a finished job. Failures are logged, a
// metrics outage never fails the job itself.
func (r *Recorder) RecordRun(task string, processed int, runErr error) {
	if r == nil {
		return
	}

	bp, err := influx.NewBatchPoints(influx.BatchPointsConfig{
		Database:  r.database,
		Precision: "s",
	})
	if err != nil {
		klog.Errorf("failed to create influx point batch: %v", err)
		return
	}

	tags := map[string]string{
		"task":    task,
		"success": fmt.Sprintf("%t", runErr == nil),
	}
	fields := map[string]interface{}{
		"processed": processed,
	}

	pt, err := influx.NewPoint(r.runsMeasurement, tags, fields, time.Now())
	if err != nil {
		klog.Errorf("failed to create influx point: %v", err)
		return
	}

	bp.AddPoint(pt)

	if err := r.client.Write(bp); err != nil {
		klog.Errorf("failed to write run metrics to influx: %v", err)
	}
}

// RecordSummaries writes one point per cash book summary.
func (r *Recorder) RecordSummaries(summaries []reports.CashBookSummary) {
	if r == nil {
		return
	}

	bp, err := influx.NewBatchPoints(influx.BatchPointsConfig{
		Database:  r.database,
		Precision: "s",
	})
	if err != nil {
		klog.Errorf("failed to create influx point batch: %v", err)
		return
	}

	for _, summary := range summaries {
		tags := map[string]string{
			"cashBook": summary.CashBook,
		}
		fields := map[string]interface{}{
			"deposits":       summary.Deposits.InexactFloat64(),
			"withdraws":      summary.Withdraws.InexactFloat64(),
			"periodBalance":  summary.PeriodBalance.InexactFloat64(),
			"overallBalance": summary.OverallBalance.InexactFloat64(),
		}

		pt, err := influx.NewPoint(r.summaryMeasurement, tags, fields, time.Now())
		if err != nil {
			klog.Errorf("failed to create influx point: %v", err)
			continue
		}

		bp.AddPoint(pt)
	}

	if err := r.client.Write(bp); err != nil {
		klog.Errorf("failed to write summary metrics to influx: %v", err)
	}
}
