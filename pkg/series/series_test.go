package series

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/influxseed/pkg/types"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestGenerateThreeMinutes(t *testing.T) {
	start := mustTime(t, "2020-01-01T00:00:00Z")
	end := mustTime(t, "2020-01-01T00:03:00Z")

	samples, err := Generate(start, end, time.Minute)
	require.NoError(t, err)

	expected := []types.Sample{
		{TimestampMs: 1577836800000, Value: 0},
		{TimestampMs: 1577836860000, Value: 1},
		{TimestampMs: 1577836920000, Value: 2},
	}
	assert.Equal(t, expected, samples)
}

func TestGenerateLengthAndValues(t *testing.T) {
	start := mustTime(t, "2021-06-15T12:00:00Z")

	testCases := []struct {
		name     string
		span     time.Duration
		step     time.Duration
		expected int
	}{
		{"exact fit", 10 * time.Minute, time.Minute, 10},
		{"partial trailing step", 10*time.Minute + time.Second, time.Minute, 11},
		{"end minus epsilon", 10*time.Minute - time.Millisecond, time.Minute, 10},
		{"single step", time.Millisecond, time.Minute, 1},
		{"seconds", time.Hour, 15 * time.Second, 240},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			end := start.Add(tc.span)
			samples, err := Generate(start, end, tc.step)
			require.NoError(t, err)
			require.Len(t, samples, tc.expected)

			n, err := Count(start, end, tc.step)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, n)

			for i, s := range samples {
				assert.Equal(t, int64(i), s.Value)
				assert.Equal(t, start.Add(time.Duration(i)*tc.step).UnixMilli(), s.TimestampMs)
				assert.True(t, s.Time().Before(end), "sample %d at %s not before end", i, s.Time())
			}
		})
	}
}

func TestGenerateDeterministic(t *testing.T) {
	start := mustTime(t, "2020-01-01T00:00:00Z")
	end := mustTime(t, "2020-01-02T00:00:00Z")

	first, err := Generate(start, end, time.Minute)
	require.NoError(t, err)
	second, err := Generate(start, end, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGenerateNonUTCZone(t *testing.T) {
	zone := time.FixedZone("UTC+9", 9*60*60)
	start := time.Date(2020, 1, 1, 9, 0, 0, 0, zone)
	end := start.Add(2 * time.Minute)

	samples, err := Generate(start, end, time.Minute)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, int64(1577836800000), samples[0].TimestampMs)
}

func TestGenerateInvalidRange(t *testing.T) {
	start := mustTime(t, "2020-01-01T00:00:00Z")

	testCases := []struct {
		name string
		end  time.Time
		step time.Duration
	}{
		{"start equals end", start, time.Minute},
		{"start after end", start.Add(-time.Hour), time.Minute},
		{"zero step", start.Add(time.Hour), 0},
		{"negative step", start.Add(time.Hour), -time.Minute},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			samples, err := Generate(start, tc.end, tc.step)
			assert.Nil(t, samples)

			var rangeErr *InvalidRangeError
			require.True(t, errors.As(err, &rangeErr), "expected InvalidRangeError, got %v", err)
			assert.Equal(t, tc.step, rangeErr.Step)

			_, err = Count(start, tc.end, tc.step)
			assert.True(t, errors.As(err, &rangeErr))
		})
	}
}

func TestTwoMonthWindow(t *testing.T) {
	start := mustTime(t, "2020-01-01T00:00:00Z")
	end := mustTime(t, "2020-03-01T00:00:00Z").Add(-time.Millisecond)

	samples, err := GenerateRange(types.Range{Start: start, End: end, Step: time.Minute})
	require.NoError(t, err)

	// 2020 is a leap year: 31 + 29 days
	require.Len(t, samples, 60*24*60)

	batches, err := Chunk(samples, 1000)
	require.NoError(t, err)
	require.Len(t, batches, 87)
	for _, b := range batches[:86] {
		assert.Len(t, b, 1000)
	}
	assert.Len(t, batches[86], 400)

	last := samples[len(samples)-1]
	assert.Equal(t, mustTime(t, "2020-02-29T23:59:00Z").UnixMilli(), last.TimestampMs)
}

func TestChunkPartitions(t *testing.T) {
	start := mustTime(t, "2020-01-01T00:00:00Z")
	samples, err := Generate(start, start.Add(2503*time.Minute), time.Minute)
	require.NoError(t, err)

	for _, size := range []int{1, 7, 1000, 2503, 5000} {
		batches, err := Chunk(samples, size)
		require.NoError(t, err)

		var joined []types.Sample
		for i, b := range batches {
			require.NotEmpty(t, b)
			require.LessOrEqual(t, len(b), size)
			if i < len(batches)-1 {
				require.Len(t, b, size)
			}
			joined = append(joined, b...)
		}
		assert.Equal(t, samples, joined, "size %d", size)
	}
}

func TestChunkDoesNotLeakCapacity(t *testing.T) {
	samples := []types.Sample{{Value: 0}, {Value: 1}, {Value: 2}}
	batches, err := Chunk(samples, 2)
	require.NoError(t, err)

	batches[0] = append(batches[0], types.Sample{Value: 99})
	assert.Equal(t, int64(2), samples[2].Value)
}

func TestChunkInvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := Chunk([]types.Sample{{}}, size)
		var sizeErr *InvalidBatchSizeError
		require.True(t, errors.As(err, &sizeErr))
		assert.Equal(t, size, sizeErr.Size)
	}
}

func TestChunkEmpty(t *testing.T) {
	batches, err := Chunk(nil, 10)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func BenchmarkGenerateTwoMonths(b *testing.B) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Generate(start, end, time.Minute)
	}
}
