package lineproto

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vjranagit/influxseed/pkg/types"
)

// FieldKey is the single field every encoded point carries
const FieldKey = "value"

const nanosPerMilli = 1_000_000

var (
	// ErrEmptyMeasurement is returned when no measurement name is given
	ErrEmptyMeasurement = errors.New("measurement name is required")

	// ErrMeasurementLineBreak is returned for measurement names containing
	// "\n" or "\r", which would split a point across lines
	ErrMeasurementLineBreak = errors.New("measurement name must not contain line breaks")

	// ErrTimestampOverflow is returned when a millisecond timestamp does not
	// fit in int64 nanoseconds
	ErrTimestampOverflow = errors.New("timestamp overflows int64 nanoseconds")
)

// EmptyBatchError is returned when Encode is given nothing to encode.
// An empty write body is a caller error, not a no-op.
type EmptyBatchError struct {
	Measurement string
}

func (e *EmptyBatchError) Error() string {
	return fmt.Sprintf("empty batch for measurement %q", e.Measurement)
}

var measurementEscaper = strings.NewReplacer(",", `\,`, " ", `\ `)

// Encode serializes a batch as line protocol:
//
//	<measurement> value=<int> <epoch-ns>
//
// one line per sample, joined by "\n", with no trailing newline.
func Encode(measurement string, batch []types.Sample) (string, error) {
	if len(batch) == 0 {
		return "", &EmptyBatchError{Measurement: measurement}
	}
	if err := ValidateMeasurement(measurement); err != nil {
		return "", err
	}

	escaped := measurementEscaper.Replace(measurement)

	// measurement + " value=" + value + " " + 19 digit timestamp + "\n"
	buf := make([]byte, 0, len(batch)*(len(escaped)+len(FieldKey)+32))
	for i, s := range batch {
		if i > 0 {
			buf = append(buf, '\n')
		}
		var err error
		if buf, err = appendLine(buf, escaped, s); err != nil {
			return "", fmt.Errorf("sample %d: %w", i, err)
		}
	}

	return string(buf), nil
}

// AppendLine appends the encoding of a single sample to dst, without a
// line terminator
func AppendLine(dst []byte, measurement string, s types.Sample) ([]byte, error) {
	if err := ValidateMeasurement(measurement); err != nil {
		return dst, err
	}
	return appendLine(dst, measurementEscaper.Replace(measurement), s)
}

// ValidateMeasurement reports whether measurement can be encoded
func ValidateMeasurement(measurement string) error {
	if measurement == "" {
		return ErrEmptyMeasurement
	}
	if strings.ContainsAny(measurement, "\r\n") {
		return fmt.Errorf("%w: %q", ErrMeasurementLineBreak, measurement)
	}
	return nil
}

func appendLine(dst []byte, escaped string, s types.Sample) ([]byte, error) {
	ns, err := Nanoseconds(s.TimestampMs)
	if err != nil {
		return dst, err
	}

	dst = append(dst, escaped...)
	dst = append(dst, ' ')
	dst = append(dst, FieldKey...)
	dst = append(dst, '=')
	dst = strconv.AppendInt(dst, s.Value, 10)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, ns, 10)
	return dst, nil
}

// Nanoseconds converts an epoch millisecond timestamp to epoch nanoseconds
// using integer arithmetic only
func Nanoseconds(ms int64) (int64, error) {
	if ms > math.MaxInt64/nanosPerMilli || ms < math.MinInt64/nanosPerMilli {
		return 0, fmt.Errorf("%w: %dms", ErrTimestampOverflow, ms)
	}
	return ms * nanosPerMilli, nil
}
