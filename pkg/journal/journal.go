package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/vjranagit/influxseed/pkg/types"
)

// Status is the lifecycle state of a recorded run
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ErrRunNotFound is returned when a run ID has no record
var ErrRunNotFound = errors.New("run not found")

var (
	runPrefix   = []byte("run/")
	batchPrefix = []byte("batch/")
)

// Config holds journal configuration
type Config struct {
	Path             string
	CompressionLevel int
}

// DefaultConfig returns default journal configuration
func DefaultConfig() *Config {
	return &Config{
		Path:             "./.seed-journal",
		CompressionLevel: 3,
	}
}

// RunRecord describes one seeding run
type RunRecord struct {
	ID          string        `json:"id"`
	Bucket      string        `json:"bucket"`
	Measurement string        `json:"measurement"`
	RangeStart  time.Time     `json:"range_start"`
	RangeEnd    time.Time     `json:"range_end"`
	Step        time.Duration `json:"step"`
	BatchSize   int           `json:"batch_size"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at,omitempty"`
	Status      Status        `json:"status"`
	Error       string        `json:"error,omitempty"`
	Batches     int           `json:"batches"`
	Samples     int           `json:"samples"`
	Bytes       int64         `json:"bytes"`
}

// Outcome is what FinishRun records about a completed run
type Outcome struct {
	Status  Status
	Error   string
	Batches int
	Samples int
	Bytes   int64
}

// BatchRecord is an acknowledged batch as read back from the journal
type BatchRecord struct {
	RunID     string
	Index     int
	Bytes     int
	WrittenAt time.Time
	Samples   []types.Sample
}

// Journal records seeding runs and their acknowledged batches in BadgerDB
type Journal struct {
	cfg        *Config
	db         *badger.DB
	compressor *Compressor
	mu         sync.RWMutex
}

// Open opens or creates the journal at cfg.Path
func Open(cfg *Config) (*Journal, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	opts := badger.DefaultOptions(filepath.Join(cfg.Path, "badger"))
	opts.Logger = nil // Disable BadgerDB logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	compressor, err := NewCompressor(cfg.CompressionLevel)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}

	return &Journal{
		cfg:        cfg,
		db:         db,
		compressor: compressor,
	}, nil
}

// BeginRun stores a new run record in the running state
func (j *Journal) BeginRun(run RunRecord) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	return j.putRun(&run)
}

// RecordBatch stores an acknowledged batch of a run
func (j *Journal) RecordBatch(runID string, index int, batch []types.Sample, size int) error {
	timestamps := make([]int64, len(batch))
	values := make([]int64, len(batch))
	for i, s := range batch {
		timestamps[i] = s.TimestampMs
		values[i] = s.Value
	}

	compressedTS, err := j.compressor.Compress(timestamps)
	if err != nil {
		return fmt.Errorf("failed to compress timestamps: %w", err)
	}

	compressedVals, err := j.compressor.Compress(values)
	if err != nil {
		return fmt.Errorf("failed to compress values: %w", err)
	}

	payload := &batchPayload{
		Count:            len(batch),
		Bytes:            size,
		WrittenAt:        time.Now().UTC(),
		CompressedTS:     compressedTS,
		CompressedValues: compressedVals,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal batch payload: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(batchKey(runID, index), payloadBytes)
	})
}

type batchPayload struct {
	Count            int
	Bytes            int
	WrittenAt        time.Time
	CompressedTS     []byte
	CompressedValues []byte
}

// FinishRun updates a run record with its final outcome
func (j *Journal) FinishRun(runID string, outcome Outcome) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	run, err := j.getRun(runID)
	if err != nil {
		return err
	}

	run.FinishedAt = time.Now().UTC()
	run.Status = outcome.Status
	run.Error = outcome.Error
	run.Batches = outcome.Batches
	run.Samples = outcome.Samples
	run.Bytes = outcome.Bytes

	return j.putRun(run)
}

// Run returns a single run record
func (j *Journal) Run(runID string) (*RunRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.getRun(runID)
}

// Runs returns recorded runs, newest first. limit <= 0 returns all.
func (j *Journal) Runs(limit int) ([]RunRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var runs []RunRecord
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = runPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var run RunRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &run)
			}); err != nil {
				return fmt.Errorf("failed to unmarshal run: %w", err)
			}
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(runs, func(a, b int) bool {
		return runs[a].StartedAt.After(runs[b].StartedAt)
	})

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Batches returns the acknowledged batches of a run in write order
func (j *Journal) Batches(runID string) ([]BatchRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var payloads []batchPayload
	var indexes []int
	prefix := batchRunPrefix(runID)

	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.Key()
			if len(key) != len(prefix)+4 {
				return fmt.Errorf("malformed batch key %q", key)
			}

			var payload batchPayload
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &payload)
			}); err != nil {
				return fmt.Errorf("failed to unmarshal batch payload: %w", err)
			}
			payloads = append(payloads, payload)
			indexes = append(indexes, int(binary.BigEndian.Uint32(key[len(prefix):])))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	records := make([]BatchRecord, len(payloads))
	for i, payload := range payloads {
		timestamps, err := j.compressor.Decompress(payload.CompressedTS, payload.Count)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress timestamps: %w", err)
		}

		values, err := j.compressor.Decompress(payload.CompressedValues, payload.Count)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress values: %w", err)
		}

		samples := make([]types.Sample, payload.Count)
		for k := range samples {
			samples[k] = types.Sample{TimestampMs: timestamps[k], Value: values[k]}
		}

		records[i] = BatchRecord{
			RunID:     runID,
			Index:     indexes[i],
			Bytes:     payload.Bytes,
			WrittenAt: payload.WrittenAt,
			Samples:   samples,
		}
	}

	return records, nil
}

// Close closes the journal
func (j *Journal) Close() error {
	j.compressor.Close()
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

func (j *Journal) putRun(run *RunRecord) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(runKey(run.ID), data)
	})
}

func (j *Journal) getRun(runID string) (*RunRecord, error) {
	var run RunRecord
	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(runKey(runID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &run)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func runKey(runID string) []byte {
	return append(append([]byte{}, runPrefix...), runID...)
}

func batchRunPrefix(runID string) []byte {
	buf := new(bytes.Buffer)
	buf.Write(batchPrefix)
	buf.WriteString(runID)
	buf.WriteByte('/')
	return buf.Bytes()
}

// batchKey orders batches of a run by index under badger's byte ordering
func batchKey(runID string, index int) []byte {
	buf := bytes.NewBuffer(batchRunPrefix(runID))
	binary.Write(buf, binary.BigEndian, uint32(index))
	return buf.Bytes()
}
