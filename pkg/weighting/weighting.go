// Package weighting balances the feature families fed to the classifiers.
//
// Clean, speech-like audio is well represented by the neural embedding;
// noisy or spectrally complex audio shifts weight toward the handcrafted
// cepstral and spectral statistics, which are more robust to artifacts the
// encoder was not trained on. The [Complexity] score steers that shift
// through a step function over configurable buckets.
package weighting

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"

	"github.com/naveensanjula975/VocalGuard/pkg/dsp"
)

// Weights distributes emphasis across the three feature families.
// The components are intended to sum to 1.
type Weights struct {
	Embedding float64 `json:"embedding"`
	Cepstral  float64 `json:"cepstral"`
	Spectral  float64 `json:"spectral"`
}

// DefaultWeights is the process-wide default profile used when no audio
// has been inspected and no persisted record exists.
var DefaultWeights = Weights{Embedding: 0.7, Cepstral: 0.2, Spectral: 0.1}

// Bucket maps a complexity upper bound to a weight profile. A bucket
// applies to scores in [previous bound, Below); bounds are half-open.
type Bucket struct {
	Below   float64
	Weights Weights
}

// DefaultBuckets is the default complexity step function.
var DefaultBuckets = []Bucket{
	{Below: 0.3, Weights: Weights{Embedding: 0.8, Cepstral: 0.15, Spectral: 0.05}},
	{Below: 0.6, Weights: Weights{Embedding: 0.6, Cepstral: 0.25, Spectral: 0.15}},
	{Below: 1.01, Weights: Weights{Embedding: 0.4, Cepstral: 0.35, Spectral: 0.25}},
}

// contrastNormDB converts the spectral contrast term (in dB) to [0, 1].
const contrastNormDB = 50.0

// Complexity scores how noisy/complex a waveform is, in [0, 1].
// It blends spectral flatness (0.3), normalized spectral contrast (0.3),
// bandwidth relative to Nyquist (0.2), and zero-crossing rate (0.2).
// Deterministic pure function of (samples, sampleRate).
func Complexity(samples []float32, sampleRate int) float64 {
	if len(samples) == 0 || sampleRate <= 0 {
		return 0
	}

	flatness := clamp01(dsp.SpectralFlatness(samples))
	contrast := clamp01(dsp.SpectralContrast(samples, sampleRate) / contrastNormDB)
	bandwidth := clamp01(dsp.SpectralBandwidth(samples, sampleRate) / (float64(sampleRate) / 2))
	zcr := clamp01(dsp.ZeroCrossingRate(samples))

	return clamp01(0.3*flatness + 0.3*contrast + 0.2*bandwidth + 0.2*zcr)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Engine selects weight profiles per clip and owns the persisted
// process-wide default. Safe for concurrent use.
type Engine struct {
	mu      sync.Mutex
	current Weights
	buckets []Bucket
	path    string
	log     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithBuckets replaces the default complexity buckets. Buckets must be
// ordered by ascending Below bound.
func WithBuckets(buckets []Bucket) Option {
	return func(e *Engine) {
		if len(buckets) > 0 {
			e.buckets = buckets
		}
	}
}

// WithLogger sets the logger. Nil keeps slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine creates an Engine whose default weights persist at path.
// An empty path keeps the default in memory only. A corrupt or missing
// record silently resets to [DefaultWeights].
func NewEngine(path string, opts ...Option) *Engine {
	e := &Engine{
		current: DefaultWeights,
		buckets: DefaultBuckets,
		path:    path,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.load()
	return e
}

// Current returns the process-wide default weights.
func (e *Engine) Current() Weights {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// SetDefault replaces the process-wide default and persists it.
func (e *Engine) SetDefault(w Weights) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = w
	e.save()
}

// ForComplexity returns the bucket profile for a complexity score.
// Exactly one bucket applies to any score in [0, 1].
func (e *Engine) ForComplexity(c float64) Weights {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, b := range e.buckets {
		if c < b.Below {
			return b.Weights
		}
	}
	return e.buckets[len(e.buckets)-1].Weights
}

// ForClip computes the clip's complexity and returns the matching profile.
func (e *Engine) ForClip(samples []float32, sampleRate int) Weights {
	return e.ForComplexity(Complexity(samples, sampleRate))
}

func (e *Engine) save() {
	if e.path == "" {
		return
	}
	data, err := json.Marshal(e.current)
	if err != nil {
		e.log.Warn("weighting: encode record", "err", err)
		return
	}
	if err := os.WriteFile(e.path, data, 0o644); err != nil {
		e.log.Warn("weighting: write record", "path", e.path, "err", err)
	}
}

func (e *Engine) load() {
	if e.path == "" {
		return
	}
	data, err := os.ReadFile(e.path)
	if err != nil {
		return
	}
	var w Weights
	if err := json.Unmarshal(data, &w); err != nil {
		e.log.Warn("weighting: corrupt record, using defaults", "path", e.path, "err", err)
		return
	}
	if w.Embedding == 0 && w.Cepstral == 0 && w.Spectral == 0 {
		return
	}
	e.current = w
}
