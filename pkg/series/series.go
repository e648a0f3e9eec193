package series

import (
	"fmt"
	"time"

	"github.com/vjranagit/influxseed/pkg/types"
)

// InvalidRangeError is returned when the generator bounds are malformed:
// start not before end, or a non-positive step
type InvalidRangeError struct {
	Start time.Time
	End   time.Time
	Step  time.Duration
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range: start=%s end=%s step=%s",
		e.Start.Format(time.RFC3339Nano), e.End.Format(time.RFC3339Nano), e.Step)
}

// InvalidBatchSizeError is returned when asked to chunk with a non-positive size
type InvalidBatchSizeError struct {
	Size int
}

func (e *InvalidBatchSizeError) Error() string {
	return fmt.Sprintf("invalid batch size %d: must be positive", e.Size)
}

// Count returns the number of samples Generate would produce for the range
func Count(start, end time.Time, step time.Duration) (int, error) {
	if !start.Before(end) || step <= 0 {
		return 0, &InvalidRangeError{Start: start, End: end, Step: step}
	}

	span := end.Sub(start)
	n := span / step
	if span%step != 0 {
		n++
	}
	return int(n), nil
}

// Generate produces the samples covering [start, end) at exactly step
// spacing. The value of each sample is its zero-based index.
func Generate(start, end time.Time, step time.Duration) ([]types.Sample, error) {
	n, err := Count(start, end, step)
	if err != nil {
		return nil, err
	}

	samples := make([]types.Sample, n)
	for i := range samples {
		samples[i] = types.Sample{
			TimestampMs: start.Add(time.Duration(i) * step).UnixMilli(),
			Value:       int64(i),
		}
	}

	return samples, nil
}

// GenerateRange is Generate over a types.Range
func GenerateRange(r types.Range) ([]types.Sample, error) {
	return Generate(r.Start, r.End, r.Step)
}

// Chunk partitions samples into contiguous batches of at most size
// samples. Batches share the backing array of samples.
func Chunk(samples []types.Sample, size int) ([][]types.Sample, error) {
	if size <= 0 {
		return nil, &InvalidBatchSizeError{Size: size}
	}

	batches := make([][]types.Sample, 0, (len(samples)+size-1)/size)
	for lo := 0; lo < len(samples); lo += size {
		hi := min(lo+size, len(samples))
		batches = append(batches, samples[lo:hi:hi])
	}

	return batches, nil
}
