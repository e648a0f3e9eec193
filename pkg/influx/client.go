package influx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vjranagit/influxseed/pkg/types"
)

// listPageSize is the largest page the buckets endpoint serves
const listPageSize = 100

// Options configures a Client
type Options struct {
	URL   string
	Token string
	// OrgID scopes bucket listing and creation
	OrgID string
	// Org is the organization name (or id) passed to the write endpoint
	Org string

	// Timeout bounds each request; HTTPClient's own timeout wins when set
	Timeout time.Duration
	Gzip    bool
	// WritesPerSecond paces batch writes; zero disables pacing
	WritesPerSecond float64

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client manages buckets and writes line protocol through the InfluxDB v2 API
type Client struct {
	client  influxdb2.Client
	buckets api.BucketsAPI
	orgID   string
	org     string
	gzip    bool
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewClient creates a new API client. The library attaches the
// "Authorization: Token <token>" header to every request.
func NewClient(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("influx url is required")
	}
	if opts.Token == "" {
		return nil, errors.New("influx token is required")
	}

	clientOpts := influxdb2.DefaultOptions().
		SetLogLevel(0).
		SetHTTPClient(newHTTPClient(opts.HTTPClient, opts.Timeout))

	limit := rate.Inf
	if opts.WritesPerSecond > 0 {
		limit = rate.Limit(opts.WritesPerSecond)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := influxdb2.NewClientWithOptions(opts.URL, opts.Token, clientOpts)
	return &Client{
		client:  c,
		buckets: c.BucketsAPI(),
		orgID:   opts.OrgID,
		org:     opts.Org,
		gzip:    opts.Gzip,
		limiter: rate.NewLimiter(limit, 1),
		log:     logger.Named("influx"),
	}, nil
}

// ListBuckets returns every bucket of the configured organization
func (c *Client) ListBuckets(ctx context.Context) ([]types.Bucket, error) {
	var out []types.Bucket
	for offset := 0; ; offset += listPageSize {
		page, err := c.buckets.FindBucketsByOrgID(ctx, c.orgID,
			api.PagingWithLimit(listPageSize),
			api.PagingWithOffset(offset),
		)
		if err != nil {
			return nil, remoteError(OpList, err)
		}
		if page == nil {
			break
		}

		for _, b := range *page {
			out = append(out, fromDomain(b))
		}
		if len(*page) < listPageSize {
			break
		}
	}

	c.log.Debug("Listed buckets", zap.Int("count", len(out)))
	return out, nil
}

// DeleteBucket deletes the bucket with the given id
func (c *Client) DeleteBucket(ctx context.Context, id string) error {
	if err := c.buckets.DeleteBucketWithID(ctx, id); err != nil {
		return remoteError(OpDelete, err)
	}

	c.log.Debug("Deleted bucket", zap.String("id", id))
	return nil
}

// CreateBucket creates a bucket with no retention rules
func (c *Client) CreateBucket(ctx context.Context, name string) (types.Bucket, error) {
	orgID := c.orgID
	created, err := c.buckets.CreateBucket(ctx, &domain.Bucket{
		Name:           name,
		OrgID:          &orgID,
		RetentionRules: domain.RetentionRules{},
	})
	if err != nil {
		return types.Bucket{}, remoteError(OpCreate, err)
	}

	bucket := fromDomain(*created)
	c.log.Debug("Created bucket", zap.String("name", bucket.Name), zap.String("id", bucket.ID))
	return bucket, nil
}

// WriteBatch posts a line protocol body to the write endpoint. The body is
// sent exactly as given, gzip-compressed when enabled.
func (c *Client) WriteBatch(ctx context.Context, bucket string, text string) error {
	if text == "" {
		return errors.New("refusing to write an empty body")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("write pacing: %w", err)
	}

	writeURL, err := c.writeURL(bucket)
	if err != nil {
		return err
	}

	var body io.Reader = strings.NewReader(text)
	if c.gzip {
		compressed, err := gzipBody(text)
		if err != nil {
			return err
		}
		body = compressed
	}

	perr := c.client.HTTPService().DoPostRequest(ctx, writeURL, body,
		func(req *http.Request) {
			req.Header.Set("Content-Type", "text/plain; charset=utf-8")
			if c.gzip {
				req.Header.Set("Content-Encoding", "gzip")
			}
		},
		func(resp *http.Response) error {
			_, _ = io.Copy(io.Discard, resp.Body)
			return resp.Body.Close()
		},
	)
	if perr != nil {
		return remoteError(OpWrite, perr)
	}
	return nil
}

// Close releases the underlying client
func (c *Client) Close() {
	c.client.Close()
}

func (c *Client) writeURL(bucket string) (string, error) {
	u, err := url.Parse(c.client.HTTPService().ServerAPIURL())
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}

	u = u.JoinPath("write")
	u.RawQuery = url.Values{
		"org":       {c.org},
		"bucket":    {bucket},
		"precision": {"ns"},
	}.Encode()
	return u.String(), nil
}

func gzipBody(text string) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	zw := gzip.NewWriter(buf)
	if _, err := io.WriteString(zw, text); err != nil {
		return nil, fmt.Errorf("failed to gzip body: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to gzip body: %w", err)
	}
	return buf, nil
}

func fromDomain(b domain.Bucket) types.Bucket {
	bucket := types.Bucket{Name: b.Name}
	if b.Id != nil {
		bucket.ID = *b.Id
	}
	if b.OrgID != nil {
		bucket.OrgID = *b.OrgID
	}
	return bucket
}
