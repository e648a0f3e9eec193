package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordBatch(t *testing.T) {
	c := NewCollector()

	c.RecordBatch(1000, 44000, 20*time.Millisecond)
	c.RecordBatch(400, 17600, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.batchesWritten))
	assert.Equal(t, 1400.0, testutil.ToFloat64(c.samplesWritten))
	assert.Equal(t, 61600.0, testutil.ToFloat64(c.bytesWritten))
	assert.Equal(t, 1, testutil.CollectAndCount(c.writeDuration))
}

func TestRecordRemoteErrorAndStep(t *testing.T) {
	c := NewCollector()

	c.RecordRemoteError("write")
	c.RecordRemoteError("write")
	c.RecordRemoteError("delete")
	c.RecordStep("create", 1500*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.remoteErrors.WithLabelValues("write")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.remoteErrors.WithLabelValues("delete")))
	assert.Equal(t, 1.5, testutil.ToFloat64(c.stepDuration.WithLabelValues("create")))
}

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector()
	b := NewCollector()

	a.RecordBatch(1, 1, time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.batchesWritten))
}

func TestWriteTextfile(t *testing.T) {
	c := NewCollector()
	c.RecordBatch(3, 132, time.Millisecond)

	path := filepath.Join(t.TempDir(), "influxseed.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "influxseed_batches_written_total 1")
	assert.Contains(t, string(data), "influxseed_samples_written_total 3")
}
