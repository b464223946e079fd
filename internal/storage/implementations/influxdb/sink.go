package influxdb

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"

	"github.com/modelreg/modelreg/pkg/errors"
	"github.com/modelreg/modelreg/pkg/models"
)

// InfluxDBConfig contains configuration for the InfluxDB metrics sink
type InfluxDBConfig struct {
	URL          string `json:"url"`
	Token        string `json:"token"`
	Organization string `json:"organization"`
	Bucket       string `json:"bucket"`
	BatchSize    uint   `json:"batch_size"`
	UseGZip      bool   `json:"use_gzip"`
}

// InfluxDBSink implements the MetricsSink interface, writing periodic
// performance snapshots as measurement points for long-term history
type InfluxDBSink struct {
	config   *InfluxDBConfig
	client   influxdb2.Client
	writeAPI api.WriteAPI
	logger   *logrus.Logger
}

// NewInfluxDBSink creates an InfluxDB performance sink
func NewInfluxDBSink(config *InfluxDBConfig, logger *logrus.Logger) (*InfluxDBSink, error) {
	if config == nil {
		return nil, errors.NewStorageError("INVALID_CONFIG", "InfluxDB config cannot be nil")
	}
	if config.URL == "" || config.Bucket == "" {
		return nil, errors.NewStorageError("INVALID_CONFIG", "InfluxDB URL and bucket are required")
	}
	if logger == nil {
		logger = logrus.New()
	}

	options := influxdb2.DefaultOptions().
		SetBatchSize(config.BatchSize).
		SetUseGZip(config.UseGZip)

	client := influxdb2.NewClientWithOptions(config.URL, config.Token, options)
	writeAPI := client.WriteAPI(config.Organization, config.Bucket)

	sink := &InfluxDBSink{
		config:   config,
		client:   client,
		writeAPI: writeAPI,
		logger:   logger,
	}

	// Surface async write failures in the log; snapshots are derived state,
	// so a dropped point is not fatal.
	go func() {
		for err := range writeAPI.Errors() {
			logger.WithError(err).Warn("InfluxDB snapshot write failed")
		}
	}()

	logger.WithFields(logrus.Fields{
		"url":    config.URL,
		"bucket": config.Bucket,
	}).Info("InfluxDB performance sink ready")

	return sink, nil
}

// WriteSnapshot records one performance snapshot as a point
func (s *InfluxDBSink) WriteSnapshot(ctx context.Context, snapshot *models.PerformanceSnapshot) error {
	point := influxdb2.NewPoint(
		"model_performance",
		map[string]string{
			"version": snapshot.Version,
		},
		map[string]interface{}{
			"total_inferences":  snapshot.TotalInferences,
			"anomaly_count":     snapshot.AnomalyCount,
			"anomaly_rate":      snapshot.AnomalyRate(),
			"mean_inference_ms": snapshot.MeanInferenceMs(),
			"min_inference_ms":  snapshot.MinInferenceMs,
			"max_inference_ms":  snapshot.MaxInferenceMs,
			"mean_score":        snapshot.MeanAnomalyScore(),
		},
		time.Now().UTC(),
	)

	s.writeAPI.WritePoint(point)
	return nil
}

// Flush forces buffered points out
func (s *InfluxDBSink) Flush() {
	s.writeAPI.Flush()
}

// Close shuts the sink down
func (s *InfluxDBSink) Close() {
	s.writeAPI.Flush()
	s.client.Close()
}
