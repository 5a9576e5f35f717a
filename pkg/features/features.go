// Package features builds the combined feature vector consumed by the
// feed-forward classifier.
//
// A vector concatenates three families:
//
//   - neural embedding from the pretrained encoder (cached by file
//     fingerprint),
//   - MFCC mean and variance statistics at the clip's native sample rate,
//   - scalar spectral descriptors (centroid, rolloff, zero-crossing rate).
//
// Each family is scaled by the weighting engine's per-clip weights before
// concatenation, so downstream models see the weighted layout they were
// trained on.
//
// # Failure Mode
//
// Extraction never fails. Any error inside the pipeline, from an unreadable
// file to an encoder fault, produces a zero vector of exactly Dim()
// elements tagged SourceZero, so classifiers always receive a vector of the
// expected shape.
package features

import (
	"context"
	"log/slog"

	"github.com/naveensanjula975/VocalGuard/pkg/audio"
	"github.com/naveensanjula975/VocalGuard/pkg/dsp"
	"github.com/naveensanjula975/VocalGuard/pkg/embcache"
	"github.com/naveensanjula975/VocalGuard/pkg/encoder"
	"github.com/naveensanjula975/VocalGuard/pkg/weighting"
)

// DefaultNumCoefficients is the MFCC coefficient count used when none is
// configured.
const DefaultNumCoefficients = 40

// Source tags where a feature vector's embedding came from.
type Source int

const (
	// SourceComputed means the embedding was produced by the encoder.
	SourceComputed Source = iota
	// SourceCache means the embedding was served from the cache.
	SourceCache
	// SourceZero means extraction failed and the vector is all zeros.
	SourceZero
)

func (s Source) String() string {
	switch s {
	case SourceComputed:
		return "computed"
	case SourceCache:
		return "cache"
	case SourceZero:
		return "zero"
	}
	return "unknown"
}

// Result holds an extracted feature vector and its provenance.
type Result struct {
	Vector  []float32
	Source  Source
	Weights weighting.Weights
}

// Extractor computes combined feature vectors for audio files.
type Extractor struct {
	loader  *audio.Loader
	enc     encoder.Encoder
	cache   *embcache.Cache
	weights *weighting.Engine
	nCoeff  int
	log     *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithNumCoefficients sets the MFCC coefficient count.
// Default: DefaultNumCoefficients.
func WithNumCoefficients(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.nCoeff = n
		}
	}
}

// WithLogger sets the logger. Nil keeps slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(e *Extractor) {
		if log != nil {
			e.log = log
		}
	}
}

// NewExtractor creates an Extractor. The cache may be nil, in which case
// every extraction runs the encoder.
func NewExtractor(loader *audio.Loader, enc encoder.Encoder, cache *embcache.Cache, weights *weighting.Engine, opts ...Option) *Extractor {
	e := &Extractor{
		loader:  loader,
		enc:     enc,
		cache:   cache,
		weights: weights,
		nCoeff:  DefaultNumCoefficients,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dim returns the length of every vector the extractor produces.
func (e *Extractor) Dim() int {
	return e.enc.Dim() + 2*e.nCoeff + 3
}

// Extract builds the combined feature vector for the file at path.
func (e *Extractor) Extract(ctx context.Context, path string) Result {
	if err := ctx.Err(); err != nil {
		return e.zero(path, err)
	}

	clip, err := e.loader.Load(path)
	if err != nil {
		return e.zero(path, err)
	}

	emb, source, err := e.embedding(ctx, path, clip)
	if err != nil {
		return e.zero(path, err)
	}
	if len(emb) != e.enc.Dim() {
		e.log.Warn("features: cached embedding dimension mismatch, recomputing",
			"path", path, "got", len(emb), "want", e.enc.Dim())
		emb, err = e.compute(path, clip)
		if err != nil {
			return e.zero(path, err)
		}
		// Overwrite the stale entry so the next request is a hit again.
		if e.cache != nil {
			e.cache.Put(embcache.Fingerprint(path), emb, clip.Filename())
		}
		source = SourceComputed
	}

	w := e.weights.ForClip(clip.Samples, clip.SampleRate)

	coeffs := dsp.MFCC(clip.Samples, clip.SampleRate, e.nCoeff)
	mean, variance := dsp.MeanVar(coeffs)
	centroid := dsp.SpectralCentroid(clip.Samples, clip.SampleRate)
	rolloff := dsp.SpectralRolloff(clip.Samples, clip.SampleRate, dsp.DefaultRolloff)
	zcr := dsp.ZeroCrossingRate(clip.Samples)

	vec := make([]float32, 0, e.Dim())
	for _, v := range emb {
		vec = append(vec, v*float32(w.Embedding))
	}
	for _, v := range mean {
		vec = append(vec, float32(v*w.Cepstral))
	}
	for _, v := range variance {
		vec = append(vec, float32(v*w.Cepstral))
	}
	vec = append(vec,
		float32(centroid*w.Spectral),
		float32(rolloff*w.Spectral),
		float32(zcr*w.Spectral))

	return Result{Vector: vec, Source: source, Weights: w}
}

// ExtractVector is a convenience adapter returning only the vector.
func (e *Extractor) ExtractVector(ctx context.Context, path string) ([]float32, error) {
	return e.Extract(ctx, path).Vector, nil
}

func (e *Extractor) embedding(ctx context.Context, path string, clip *audio.Clip) ([]float32, Source, error) {
	var fingerprint string
	if e.cache != nil {
		fingerprint = embcache.Fingerprint(path)
		if entry, ok := e.cache.Get(fingerprint); ok {
			return entry.Embedding, SourceCache, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, SourceZero, err
	}
	emb, err := e.compute(path, clip)
	if err != nil {
		return nil, SourceZero, err
	}
	if e.cache != nil {
		e.cache.Put(fingerprint, emb, clip.Filename())
	}
	return emb, SourceComputed, nil
}

func (e *Extractor) compute(path string, clip *audio.Clip) ([]float32, error) {
	model, err := audio.ToModelRate(clip)
	if err != nil {
		return nil, err
	}
	return e.enc.Embed(encoder.Truncate(model.Samples))
}

func (e *Extractor) zero(path string, err error) Result {
	e.log.Warn("features: extraction failed, returning zero vector", "path", path, "error", err)
	return Result{
		Vector:  make([]float32, e.Dim()),
		Source:  SourceZero,
		Weights: e.weights.Current(),
	}
}
