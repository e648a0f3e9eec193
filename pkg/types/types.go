package types

import "time"

// Sample represents a single generated point: an epoch timestamp in
// milliseconds and an integer counter value
type Sample struct {
	TimestampMs int64
	Value       int64
}

// Time returns the sample timestamp in UTC
func (s Sample) Time() time.Time {
	return time.UnixMilli(s.TimestampMs).UTC()
}

// Bucket represents a named storage container in the target database
type Bucket struct {
	ID    string
	Name  string
	OrgID string
}

// Range describes the window a series is generated over
type Range struct {
	Start time.Time
	End   time.Time
	Step  time.Duration
}
