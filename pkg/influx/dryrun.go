package influx

import (
	"context"
	"fmt"
	"io"

	"github.com/vjranagit/influxseed/pkg/types"
)

// DryRun stands in for a Client: it reports bucket operations and prints
// each write body to w instead of contacting a server
type DryRun struct {
	w io.Writer
}

// NewDryRun creates a DryRun writing to w
func NewDryRun(w io.Writer) *DryRun {
	return &DryRun{w: w}
}

// ListBuckets reports no existing buckets
func (d *DryRun) ListBuckets(ctx context.Context) ([]types.Bucket, error) {
	return nil, nil
}

func (d *DryRun) DeleteBucket(ctx context.Context, id string) error {
	_, err := fmt.Fprintf(d.w, "# delete bucket %s\n", id)
	return err
}

func (d *DryRun) CreateBucket(ctx context.Context, name string) (types.Bucket, error) {
	if _, err := fmt.Fprintf(d.w, "# create bucket %s\n", name); err != nil {
		return types.Bucket{}, err
	}
	return types.Bucket{ID: "dry-run", Name: name}, nil
}

// WriteBatch prints the body followed by a newline
func (d *DryRun) WriteBatch(ctx context.Context, bucket string, text string) error {
	_, err := fmt.Fprintln(d.w, text)
	return err
}
