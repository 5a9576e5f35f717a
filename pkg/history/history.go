// Package history persists analysis records in a local BadgerDB store.
//
// Three record kinds are kept, keyed for per-user listing:
//
//	meta:{user}:{id}      audio file metadata
//	analysis:{user}:{id}  classification verdicts
//	details:{id}          per-analysis feature scores and timings
//
// Values are msgpack-encoded. The store is safe for concurrent use.
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("history: not found")

// AudioMetadata describes an uploaded audio file.
type AudioMetadata struct {
	ID         string        `msgpack:"id" json:"id"`
	UserID     string        `msgpack:"user_id" json:"user_id"`
	Filename   string        `msgpack:"filename" json:"filename"`
	FileSize   int64         `msgpack:"file_size" json:"file_size"`
	Duration   time.Duration `msgpack:"duration" json:"duration"`
	SampleRate int           `msgpack:"sample_rate" json:"sample_rate"`
	UploadedAt time.Time     `msgpack:"uploaded_at" json:"uploaded_at"`
}

// AnalysisRecord is one classification verdict.
type AnalysisRecord struct {
	ID           string    `msgpack:"id" json:"id"`
	MetadataID   string    `msgpack:"metadata_id" json:"metadata_id"`
	UserID       string    `msgpack:"user_id" json:"user_id"`
	IsDeepfake   bool      `msgpack:"is_deepfake" json:"is_deepfake"`
	Confidence   float64   `msgpack:"confidence" json:"confidence"`
	FeaturesUsed []string  `msgpack:"features_used" json:"features_used"`
	AnalyzedAt   time.Time `msgpack:"analyzed_at" json:"analyzed_at"`
}

// ResultDetails carries the per-analysis diagnostic payload.
type ResultDetails struct {
	ID               string             `msgpack:"id" json:"id"`
	AnalysisID       string             `msgpack:"analysis_id" json:"analysis_id"`
	FeatureScores    map[string]float64 `msgpack:"feature_scores" json:"feature_scores"`
	ModelVersion     string             `msgpack:"model_version" json:"model_version"`
	ProcessingTimeMS float64            `msgpack:"processing_time_ms" json:"processing_time_ms"`
	CreatedAt        time.Time          `msgpack:"created_at" json:"created_at"`
}

// Options configures a Store.
type Options struct {
	// Dir is the directory for data files. Required unless InMemory.
	Dir string

	// InMemory runs the store without disk persistence. Useful for tests.
	InMemory bool
}

// Store is a badger-backed history store.
type Store struct {
	db *badger.DB
}

// Open opens or creates a history store.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("history: Options.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(noopLogger{})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveMetadata stores audio metadata. A missing ID or timestamp is
// assigned.
func (s *Store) SaveMetadata(ctx context.Context, m *AudioMetadata) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.UploadedAt.IsZero() {
		m.UploadedAt = time.Now().UTC()
	}
	return s.put(ctx, metaKey(m.UserID, m.ID), m)
}

// SaveAnalysis stores an analysis record. A missing ID or timestamp is
// assigned.
func (s *Store) SaveAnalysis(ctx context.Context, a *AnalysisRecord) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AnalyzedAt.IsZero() {
		a.AnalyzedAt = time.Now().UTC()
	}
	return s.put(ctx, analysisKey(a.UserID, a.ID), a)
}

// SaveDetails stores result details. A missing ID or timestamp is
// assigned.
func (s *Store) SaveDetails(ctx context.Context, d *ResultDetails) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	return s.put(ctx, detailsKey(d.ID), d)
}

// GetMetadata fetches one metadata record.
func (s *Store) GetMetadata(ctx context.Context, userID, id string) (*AudioMetadata, error) {
	var m AudioMetadata
	if err := s.get(ctx, metaKey(userID, id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetAnalysis fetches one analysis record.
func (s *Store) GetAnalysis(ctx context.Context, userID, id string) (*AnalysisRecord, error) {
	var a AnalysisRecord
	if err := s.get(ctx, analysisKey(userID, id), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetDetails fetches one details record.
func (s *Store) GetDetails(ctx context.Context, id string) (*ResultDetails, error) {
	var d ResultDetails
	if err := s.get(ctx, detailsKey(id), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Analyses lists all analysis records for a user, most recent first.
func (s *Store) Analyses(ctx context.Context, userID string) ([]*AnalysisRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := []byte("analysis:" + userID + ":")
	var records []*AnalysisRecord
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var a AnalysisRecord
			if err := msgpack.Unmarshal(val, &a); err != nil {
				return err
			}
			records = append(records, &a)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	sortNewestFirst(records)
	return records, nil
}

func sortNewestFirst(records []*AnalysisRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].AnalyzedAt.After(records[j].AnalyzedAt)
	})
}

func (s *Store) put(ctx context.Context, key []byte, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key []byte, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	return nil
}

func metaKey(userID, id string) []byte {
	return []byte("meta:" + userID + ":" + id)
}

func analysisKey(userID, id string) []byte {
	return []byte("analysis:" + userID + ":" + id)
}

func detailsKey(id string) []byte {
	return []byte("details:" + id)
}

type noopLogger struct{}

func (noopLogger) Errorf(string, ...any)   {}
func (noopLogger) Warningf(string, ...any) {}
func (noopLogger) Infof(string, ...any)    {}
func (noopLogger) Debugf(string, ...any)   {}
