package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the seeding metrics on a private registry so repeated
// runs in one process (and tests) never collide on the default registerer
type Collector struct {
	registry *prometheus.Registry

	batchesWritten prometheus.Counter
	samplesWritten prometheus.Counter
	bytesWritten   prometheus.Counter
	writeDuration  prometheus.Histogram
	remoteErrors   *prometheus.CounterVec
	stepDuration   *prometheus.GaugeVec
}

// NewCollector creates and registers the seeding metrics
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		batchesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "influxseed_batches_written_total",
			Help: "Total number of batches acknowledged by the write endpoint",
		}),
		samplesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "influxseed_samples_written_total",
			Help: "Total number of samples acknowledged by the write endpoint",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "influxseed_bytes_written_total",
			Help: "Total line protocol bytes acknowledged by the write endpoint",
		}),
		writeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "influxseed_write_duration_seconds",
			Help:    "Latency of batch write requests in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		remoteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "influxseed_remote_errors_total",
			Help: "Total number of failed requests to the database by operation",
		}, []string{"op"}),
		stepDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "influxseed_step_duration_seconds",
			Help: "Wall time of the last execution of each run step",
		}, []string{"step"}),
	}

	c.registry.MustRegister(
		c.batchesWritten,
		c.samplesWritten,
		c.bytesWritten,
		c.writeDuration,
		c.remoteErrors,
		c.stepDuration,
	)
	return c
}

// Registry exposes the underlying registry as a gatherer
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordBatch records an acknowledged batch write
func (c *Collector) RecordBatch(samples, bytes int, took time.Duration) {
	c.batchesWritten.Inc()
	c.samplesWritten.Add(float64(samples))
	c.bytesWritten.Add(float64(bytes))
	c.writeDuration.Observe(took.Seconds())
}

// RecordRemoteError counts a failed request for the given operation
func (c *Collector) RecordRemoteError(op string) {
	c.remoteErrors.WithLabelValues(op).Inc()
}

// RecordStep records how long a run step took
func (c *Collector) RecordStep(step string, took time.Duration) {
	c.stepDuration.WithLabelValues(step).Set(took.Seconds())
}

// WriteTextfile writes the registry in text exposition format, suitable for
// the node_exporter textfile collector
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
