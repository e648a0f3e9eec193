package seeder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vjranagit/influxseed/pkg/influx"
	"github.com/vjranagit/influxseed/pkg/journal"
	"github.com/vjranagit/influxseed/pkg/lineproto"
	"github.com/vjranagit/influxseed/pkg/metrics"
	"github.com/vjranagit/influxseed/pkg/series"
	"github.com/vjranagit/influxseed/pkg/types"
)

// Run steps, used in errors, logs and metrics
const (
	StepReset    = "reset"
	StepSettle   = "settle"
	StepCreate   = "create"
	StepGenerate = "generate"
	StepWrite    = "write"
)

// BucketManager is the database surface a run needs
type BucketManager interface {
	ListBuckets(ctx context.Context) ([]types.Bucket, error)
	DeleteBucket(ctx context.Context, id string) error
	CreateBucket(ctx context.Context, name string) (types.Bucket, error)
	WriteBatch(ctx context.Context, bucket string, text string) error
}

// Recorder persists run progress; *journal.Journal implements it
type Recorder interface {
	BeginRun(run journal.RunRecord) error
	RecordBatch(runID string, index int, batch []types.Sample, size int) error
	FinishRun(runID string, outcome journal.Outcome) error
}

// Config describes one seeding run
type Config struct {
	Bucket      string
	Measurement string
	Range       types.Range
	BatchSize   int
	// SettleDelay is waited between deleting and recreating the bucket
	SettleDelay time.Duration
}

// StepError wraps the error that aborted a run with the step it failed in
type StepError struct {
	Step  string
	Batch int
	Err   error
}

func (e *StepError) Error() string {
	if e.Step == StepWrite {
		return fmt.Sprintf("%s batch %d: %v", e.Step, e.Batch, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Result summarizes a completed run
type Result struct {
	RunID   string
	Bucket  types.Bucket
	Deleted bool
	Samples int
	Batches int
	Bytes   int64
	Elapsed time.Duration
}

// Seeder executes the reset, create and write sequence against a
// BucketManager, strictly in order with one request in flight
type Seeder struct {
	cfg      Config
	mgr      BucketManager
	log      *zap.Logger
	metrics  *metrics.Collector
	recorder Recorder
	sleep    func(ctx context.Context, d time.Duration) error
	newID    func() string
}

// Option configures a Seeder
type Option func(*Seeder)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Seeder) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the metrics collector
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Seeder) { s.metrics = c }
}

// WithRecorder sets the run journal
func WithRecorder(r Recorder) Option {
	return func(s *Seeder) { s.recorder = r }
}

// WithSleep replaces the settle delay wait
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Seeder) { s.sleep = fn }
}

// New creates a new Seeder
func New(cfg Config, mgr BucketManager, opts ...Option) *Seeder {
	s := &Seeder{
		cfg:   cfg,
		mgr:   mgr,
		log:   zap.NewNop(),
		sleep: sleepContext,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run deletes the bucket if present, waits the settle delay, recreates it
// and writes every batch in order. The first error aborts the run; nothing
// is retried or cleaned up.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	res := &Result{RunID: s.newID()}
	log := s.log.With(zap.String("run_id", res.RunID), zap.String("bucket", s.cfg.Bucket))

	if err := s.begin(res.RunID, started); err != nil {
		return nil, err
	}

	err := s.run(ctx, log, res)
	res.Elapsed = time.Since(started)
	s.finish(log, res, err)

	if err != nil {
		log.Error("Seeding failed", zap.Error(err))
		return res, err
	}

	log.Info("Seeding complete",
		zap.Int("samples", res.Samples),
		zap.Int("batches", res.Batches),
		zap.Int64("bytes", res.Bytes),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

func (s *Seeder) run(ctx context.Context, log *zap.Logger, res *Result) error {
	// Range errors surface before any remote call
	t := time.Now()
	samples, err := series.GenerateRange(s.cfg.Range)
	if err != nil {
		return &StepError{Step: StepGenerate, Err: err}
	}
	batches, err := series.Chunk(samples, s.cfg.BatchSize)
	if err != nil {
		return &StepError{Step: StepGenerate, Err: err}
	}
	s.recordStep(StepGenerate, time.Since(t))

	t = time.Now()
	deleted, err := s.resetBucket(ctx, log)
	if err != nil {
		return &StepError{Step: StepReset, Err: err}
	}
	res.Deleted = deleted
	s.recordStep(StepReset, time.Since(t))

	t = time.Now()
	if err := s.sleep(ctx, s.cfg.SettleDelay); err != nil {
		return &StepError{Step: StepSettle, Err: err}
	}
	s.recordStep(StepSettle, time.Since(t))

	t = time.Now()
	bucket, err := s.mgr.CreateBucket(ctx, s.cfg.Bucket)
	if err != nil {
		s.remoteError(err)
		return &StepError{Step: StepCreate, Err: err}
	}
	res.Bucket = bucket
	s.recordStep(StepCreate, time.Since(t))
	log.Info("Created bucket", zap.String("id", bucket.ID))

	log.Info("Writing test data",
		zap.Int("samples", len(samples)),
		zap.Int("batches", len(batches)),
		zap.Int("batch_size", s.cfg.BatchSize),
	)

	t = time.Now()
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return &StepError{Step: StepWrite, Batch: i, Err: err}
		}

		text, err := lineproto.Encode(s.cfg.Measurement, batch)
		if err != nil {
			return &StepError{Step: StepWrite, Batch: i, Err: err}
		}

		wt := time.Now()
		if err := s.mgr.WriteBatch(ctx, s.cfg.Bucket, text); err != nil {
			s.remoteError(err)
			return &StepError{Step: StepWrite, Batch: i, Err: err}
		}
		took := time.Since(wt)

		res.Batches++
		res.Samples += len(batch)
		res.Bytes += int64(len(text))

		if s.metrics != nil {
			s.metrics.RecordBatch(len(batch), len(text), took)
		}
		if s.recorder != nil {
			if err := s.recorder.RecordBatch(res.RunID, i, batch, len(text)); err != nil {
				return &StepError{Step: StepWrite, Batch: i, Err: fmt.Errorf("journal: %w", err)}
			}
		}

		log.Debug("Wrote batch",
			zap.Int("index", i),
			zap.Int("samples", len(batch)),
			zap.Time("first", batch[0].Time()),
			zap.Duration("took", took),
		)
	}
	s.recordStep(StepWrite, time.Since(t))

	return nil
}

// resetBucket deletes the configured bucket if it exists
func (s *Seeder) resetBucket(ctx context.Context, log *zap.Logger) (bool, error) {
	buckets, err := s.mgr.ListBuckets(ctx)
	if err != nil {
		s.remoteError(err)
		return false, err
	}

	for _, b := range buckets {
		if b.Name != s.cfg.Bucket {
			continue
		}
		if err := s.mgr.DeleteBucket(ctx, b.ID); err != nil {
			s.remoteError(err)
			return false, err
		}
		log.Info("Deleted existing bucket", zap.String("id", b.ID))
		return true, nil
	}

	log.Info("No existing bucket to delete")
	return false, nil
}

func (s *Seeder) begin(runID string, started time.Time) error {
	if s.recorder == nil {
		return nil
	}
	err := s.recorder.BeginRun(journal.RunRecord{
		ID:          runID,
		Bucket:      s.cfg.Bucket,
		Measurement: s.cfg.Measurement,
		RangeStart:  s.cfg.Range.Start,
		RangeEnd:    s.cfg.Range.End,
		Step:        s.cfg.Range.Step,
		BatchSize:   s.cfg.BatchSize,
		StartedAt:   started.UTC(),
	})
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	return nil
}

func (s *Seeder) finish(log *zap.Logger, res *Result, runErr error) {
	if s.recorder == nil {
		return
	}

	outcome := journal.Outcome{
		Status:  journal.StatusSucceeded,
		Batches: res.Batches,
		Samples: res.Samples,
		Bytes:   res.Bytes,
	}
	if runErr != nil {
		outcome.Status = journal.StatusFailed
		outcome.Error = runErr.Error()
	}

	// The run outcome is already decided; a journal failure only gets logged
	if err := s.recorder.FinishRun(res.RunID, outcome); err != nil {
		log.Warn("Failed to record run outcome", zap.Error(err))
	}
}

func (s *Seeder) recordStep(step string, took time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordStep(step, took)
	}
}

func (s *Seeder) remoteError(err error) {
	if s.metrics == nil {
		return
	}
	var remote *influx.RemoteRequestError
	if errors.As(err, &remote) {
		s.metrics.RecordRemoteError(remote.Op)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
