// Package detect wires the full pipeline together: audio loading, feature
// extraction, the classifiers, the ensemble combiner, and optional
// history persistence.
//
// A [Service] is constructed once with its configuration and passed by
// reference into handlers. Models load lazily on first use and are then
// shared read-only; the embedding cache is the only shared mutable state
// and guards itself.
//
// Detection never returns an error. Every failure inside the pipeline,
// from an unreadable file to an inference fault, comes back as an
// error-shaped [Report] with label "error" and zero confidence.
package detect

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/naveensanjula975/VocalGuard/pkg/attention"
	"github.com/naveensanjula975/VocalGuard/pkg/audio"
	"github.com/naveensanjula975/VocalGuard/pkg/classifier"
	"github.com/naveensanjula975/VocalGuard/pkg/embcache"
	"github.com/naveensanjula975/VocalGuard/pkg/encoder"
	"github.com/naveensanjula975/VocalGuard/pkg/ensemble"
	"github.com/naveensanjula975/VocalGuard/pkg/features"
	"github.com/naveensanjula975/VocalGuard/pkg/history"
	"github.com/naveensanjula975/VocalGuard/pkg/onnx"
	"github.com/naveensanjula975/VocalGuard/pkg/weighting"
)

// DefaultTimeout bounds one whole detection pipeline.
const DefaultTimeout = 2 * time.Minute

// Model artifact names inside Config.ModelDir.
const (
	PrimaryModelFile       = "model.onnx"
	BaseEncoderFile        = "encoder_base.onnx"
	LargeEncoderFile       = "encoder_large.onnx"
	TransformerWeightsFile = "model.safetensors"
	StandardWeightsFile    = "standard_model.safetensors"
)

// Cache artifact names inside Config.CacheDir.
const (
	embeddingCacheFile = "embedding_cache.msgpack"
	featureWeightsFile = "feature_weights.json"
)

// Config configures a Service.
type Config struct {
	// ModelDir holds the exported model artifacts.
	ModelDir string

	// CacheDir holds the embedding cache snapshot and the feature weight
	// record. Defaults to a directory under os.TempDir.
	CacheDir string

	// HistoryDir, when set, enables the on-disk analysis history store.
	HistoryDir string

	// Labels is the classifier output vocabulary, index-aligned with the
	// model logits. Defaults to [real fake].
	Labels []string

	// FakeLabel names the synthetic class. Defaults to "fake".
	FakeLabel string

	// Threshold is the is-fake confidence cutoff used when FakeLabel is
	// not in the vocabulary. Defaults to 0.5.
	Threshold float64

	// Ensemble holds the model blend weights. Defaults to 0.6/0.4.
	Ensemble ensemble.Config

	// Timeout bounds one detection pipeline. Defaults to DefaultTimeout.
	Timeout time.Duration

	// MaxAudioBytes rejects oversized files before decode.
	// Defaults to audio.DefaultMaxDecodeBytes.
	MaxAudioBytes int64

	// Logger is the service logger. Nil means slog.Default.
	Logger *slog.Logger
}

// PrimaryDetector classifies a clip with the pretrained primary model.
type PrimaryDetector interface {
	Detect(ctx context.Context, clip *audio.Clip) classifier.Result
	Close() error
}

// AttentionDetector classifies a clip with the attention model and
// exposes its explainability outputs.
type AttentionDetector interface {
	Detect(ctx context.Context, clip *audio.Clip) (classifier.Result, [][]float64)
	Analyze(ctx context.Context, clip *audio.Clip) (*attention.Analysis, error)
}

// StandardDetector classifies a file with the feature-vector model.
type StandardDetector interface {
	Detect(ctx context.Context, path string) classifier.Result
}

// HistoryStore persists analysis records.
type HistoryStore interface {
	SaveMetadata(ctx context.Context, m *history.AudioMetadata) error
	SaveAnalysis(ctx context.Context, a *history.AnalysisRecord) error
	SaveDetails(ctx context.Context, d *history.ResultDetails) error
	Analyses(ctx context.Context, userID string) ([]*history.AnalysisRecord, error)
	GetDetails(ctx context.Context, id string) (*history.ResultDetails, error)
	Close() error
}

// Service is the detection pipeline.
type Service struct {
	cfg    Config
	log    *slog.Logger
	schema classifier.LabelSchema

	loader  *audio.Loader
	cache   *embcache.Cache
	weights *weighting.Engine

	primary  PrimaryDetector
	standard StandardDetector
	attn     AttentionDetector
	hist     HistoryStore

	// closers holds components the service created itself, in close
	// order. Injected components are owned by the caller.
	closers []io.Closer

	// Shared state (cache, weighting, history) initializes separately
	// from the models so cache and history commands work without model
	// artifacts on disk.
	sharedOnce sync.Once
	sharedErr  error

	once    sync.Once
	loadErr error
}

// ServiceOption injects a pipeline component, mainly for tests. Injected
// components are not loaded from ModelDir and are not closed by the
// service.
type ServiceOption func(*Service)

// WithPrimary injects the primary detector.
func WithPrimary(p PrimaryDetector) ServiceOption {
	return func(s *Service) { s.primary = p }
}

// WithStandard injects the standard detector.
func WithStandard(d StandardDetector) ServiceOption {
	return func(s *Service) { s.standard = d }
}

// WithAttention injects the attention detector.
func WithAttention(a AttentionDetector) ServiceOption {
	return func(s *Service) { s.attn = a }
}

// WithHistory injects the history store.
func WithHistory(h HistoryStore) ServiceOption {
	return func(s *Service) { s.hist = h }
}

// NewService creates a Service. Models are not touched until the first
// detection.
func NewService(cfg Config, opts ...ServiceOption) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(os.TempDir(), "vocalguard")
	}
	if cfg.MaxAudioBytes <= 0 {
		cfg.MaxAudioBytes = audio.DefaultMaxDecodeBytes
	}

	schema := classifier.DefaultSchema()
	if len(cfg.Labels) > 0 {
		schema.Labels = cfg.Labels
	}
	if cfg.FakeLabel != "" {
		schema.FakeLabel = cfg.FakeLabel
	}
	if cfg.Threshold > 0 {
		schema.Threshold = cfg.Threshold
	}

	s := &Service{
		cfg:    cfg,
		log:    cfg.Logger,
		schema: schema,
		loader: audio.NewLoader(
			audio.WithMaxDecodeBytes(cfg.MaxAudioBytes),
			audio.WithLogger(cfg.Logger)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache returns the embedding cache. Only shared state is initialized;
// the models stay untouched.
func (s *Service) Cache() (*embcache.Cache, error) {
	if err := s.ensureShared(); err != nil {
		return nil, err
	}
	return s.cache, nil
}

// History returns the history store, or nil when persistence is disabled.
// Only shared state is initialized; the models stay untouched.
func (s *Service) History() (HistoryStore, error) {
	if err := s.ensureShared(); err != nil {
		return nil, err
	}
	return s.hist, nil
}

// Close releases the model sessions and stores the service itself opened.
func (s *Service) Close() error {
	var firstErr error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

func (s *Service) ensureShared() error {
	s.sharedOnce.Do(func() { s.sharedErr = s.loadShared() })
	return s.sharedErr
}

func (s *Service) ensureLoaded() error {
	s.once.Do(func() { s.loadErr = s.load() })
	return s.loadErr
}

// loadShared builds the cache, the weighting engine, and the history
// store. Cache and weighting fall back to defaults on their own; only the
// history store can fail.
func (s *Service) loadShared() error {
	if err := os.MkdirAll(s.cfg.CacheDir, 0o755); err != nil {
		s.log.Warn("detect: cache dir unavailable", "dir", s.cfg.CacheDir, "error", err)
	}
	s.cache = embcache.New(
		filepath.Join(s.cfg.CacheDir, embeddingCacheFile),
		embcache.WithLogger(s.log))
	s.weights = weighting.NewEngine(
		filepath.Join(s.cfg.CacheDir, featureWeightsFile),
		weighting.WithLogger(s.log))

	if s.hist == nil && s.cfg.HistoryDir != "" {
		hist, err := history.Open(history.Options{Dir: s.cfg.HistoryDir})
		if err != nil {
			return fmt.Errorf("detect: %w", err)
		}
		s.hist = hist
		s.closers = append(s.closers, hist)
	}
	return nil
}

// load builds every model component that was not injected. On failure,
// everything created here is released before returning.
func (s *Service) load() error {
	if err := s.ensureShared(); err != nil {
		return err
	}

	if s.primary != nil && s.standard != nil && s.attn != nil {
		return nil
	}

	env, err := onnx.NewEnv("vocalguard")
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}
	var created []io.Closer
	fail := func(err error) error {
		for i := len(created) - 1; i >= 0; i-- {
			created[i].Close()
		}
		env.Close()
		return fmt.Errorf("detect: %w", err)
	}

	if s.primary == nil {
		primary, err := classifier.NewPrimary(env,
			filepath.Join(s.cfg.ModelDir, PrimaryModelFile), s.schema)
		if err != nil {
			return fail(err)
		}
		s.primary = primary
		created = append(created, primary)
	}

	if s.standard == nil {
		enc, err := encoder.NewONNXEncoder(env,
			filepath.Join(s.cfg.ModelDir, BaseEncoderFile))
		if err != nil {
			return fail(err)
		}
		created = append(created, enc)
		extractor := features.NewExtractor(s.loader, enc, s.cache, s.weights,
			features.WithLogger(s.log))
		std := classifier.NewStandard(extractor.Dim(), extractor,
			classifier.WithStandardLogger(s.log),
			classifier.WithStandardThreshold(s.cfg.Threshold))
		weightsPath := filepath.Join(s.cfg.ModelDir, StandardWeightsFile)
		if _, err := os.Stat(weightsPath); err == nil {
			if err := std.LoadWeights(weightsPath); err != nil {
				return fail(err)
			}
		} else {
			s.log.Warn("detect: standard model weights missing, using random initialization",
				"path", weightsPath)
		}
		s.standard = std
	}

	if s.attn == nil {
		enc, err := encoder.NewONNXEncoder(env,
			filepath.Join(s.cfg.ModelDir, LargeEncoderFile),
			encoder.WithDim(attention.InputDim))
		if err != nil {
			return fail(err)
		}
		created = append(created, enc)
		model := attention.NewTransformer()
		weightsPath := filepath.Join(s.cfg.ModelDir, TransformerWeightsFile)
		if _, err := os.Stat(weightsPath); err == nil {
			n, err := model.LoadWeights(weightsPath)
			if err != nil {
				return fail(err)
			}
			if n == 0 {
				s.log.Warn("detect: no transformer weights matched, using random initialization",
					"path", weightsPath)
			}
		} else {
			s.log.Warn("detect: transformer weights missing, using random initialization",
				"path", weightsPath)
		}
		s.attn = attention.NewClassifier(enc, model, s.schema,
			attention.WithLogger(s.log))
	}

	// Sessions close before their environment.
	s.closers = append(s.closers, created...)
	s.closers = append(s.closers, env)
	return nil
}
