package detect

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/naveensanjula975/VocalGuard/pkg/attention"
	"github.com/naveensanjula975/VocalGuard/pkg/audio"
	"github.com/naveensanjula975/VocalGuard/pkg/classifier"
	"github.com/naveensanjula975/VocalGuard/pkg/ensemble"
	"github.com/naveensanjula975/VocalGuard/pkg/history"
)

// Options controls per-request behavior.
type Options struct {
	// UserID attributes stored records. Persistence requires both a
	// user and Store.
	UserID string

	// Store persists the result to the history store when one is
	// configured.
	Store bool

	// Filename overrides the stored filename. Defaults to the path base.
	Filename string

	// UseTransformer controls whether DetectEnsemble runs the attention
	// classifier. Nil means true; false skips it and reports the primary
	// verdict alone.
	UseTransformer *bool
}

func (o Options) useTransformer() bool {
	return o.UseTransformer == nil || *o.UseTransformer
}

// Report is the flat detection record returned by every Detect variant.
type Report struct {
	Label            string              `json:"prediction"`
	Probability      float64             `json:"probability"`
	Confidence       float64             `json:"confidence"`
	IsFake           *bool               `json:"is_fake"`
	ModelUsed        string              `json:"model_used"`
	Probabilities    map[string]float64  `json:"probabilities,omitempty"`
	ModelConfidences map[string]float64  `json:"individual_confidences,omitempty"`
	AttentionWeights [][]float64         `json:"attention_weights,omitempty"`
	Analysis         *attention.Analysis `json:"attention_analysis,omitempty"`
	Filename         string              `json:"filename"`
	ProcessingTimeMS float64             `json:"processing_time_ms"`
	Error            string              `json:"error,omitempty"`

	MetadataID string `json:"metadata_id,omitempty"`
	AnalysisID string `json:"analysis_id,omitempty"`
	DetailsID  string `json:"details_id,omitempty"`
}

// Detect classifies a file with the primary model.
func (s *Service) Detect(ctx context.Context, path string, opts Options) *Report {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.ensureLoaded(); err != nil {
		return s.errorReport(path, opts, start, err)
	}
	clip, err := s.loader.Load(path)
	if err != nil {
		return s.errorReport(path, opts, start, err)
	}

	result := s.primary.Detect(ctx, clip)
	report := reportFrom(result, path, opts, start)
	if !result.IsError() {
		s.persist(ctx, report, opts, clip, []string{"wav2vec2"})
	}
	return report
}

// DetectStandard classifies a file with the feature-vector model.
func (s *Service) DetectStandard(ctx context.Context, path string, opts Options) *Report {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.ensureLoaded(); err != nil {
		return s.errorReport(path, opts, start, err)
	}

	result := s.standard.Detect(ctx, path)
	report := reportFrom(result, path, opts, start)
	if !result.IsError() {
		clip, err := s.loader.Load(path)
		if err == nil {
			s.persist(ctx, report, opts, clip, []string{"embedding", "mfcc", "spectral"})
		}
	}
	return report
}

// DetectEnsemble classifies a file with both models, blends the verdicts,
// and attaches the attention analysis. When the request opts out of the
// transformer, only the primary model runs.
func (s *Service) DetectEnsemble(ctx context.Context, path string, opts Options) *Report {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.ensureLoaded(); err != nil {
		return s.errorReport(path, opts, start, err)
	}
	clip, err := s.loader.Load(path)
	if err != nil {
		return s.errorReport(path, opts, start, err)
	}

	primary := s.primary.Detect(ctx, clip)
	if !opts.useTransformer() {
		report := reportFrom(primary, path, opts, start)
		if !primary.IsError() {
			s.persist(ctx, report, opts, clip, []string{"wav2vec2"})
		}
		return report
	}

	attnResult, attnWeights := s.attn.Detect(ctx, clip)
	combined := ensemble.Combine(primary, attnResult, s.cfg.Ensemble)

	report := &Report{
		Label:            combined.Label,
		Confidence:       combined.Confidence,
		IsFake:           combined.IsFake,
		ModelUsed:        combined.ModelID,
		ModelConfidences: combined.ModelConfidences,
		Probabilities:    primary.Probabilities,
		AttentionWeights: attnWeights,
		Filename:         reportFilename(path, opts),
	}
	report.Probability = fakeProbability(primary, combined.Confidence)
	if combined.Skipped && primary.IsError() {
		report.Error = primary.Err
	}

	if analysis, err := s.attn.Analyze(ctx, clip); err != nil {
		s.log.Warn("detect: attention analysis failed", "path", path, "error", err)
	} else {
		report.Analysis = analysis
	}

	report.ProcessingTimeMS = float64(time.Since(start)) / float64(time.Millisecond)
	if !primary.IsError() {
		s.persist(ctx, report, opts, clip, []string{"wav2vec2", "transformer"})
	}
	return report
}

// AttentionAnalysis runs the explainability pass only. No records are
// stored.
func (s *Service) AttentionAnalysis(ctx context.Context, path string) (*attention.Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	clip, err := s.loader.Load(path)
	if err != nil {
		return nil, err
	}
	return s.attn.Analyze(ctx, clip)
}

func reportFrom(result classifier.Result, path string, opts Options, start time.Time) *Report {
	return &Report{
		Label:            result.Label,
		Probability:      fakeProbability(result, result.Confidence),
		Confidence:       result.Confidence,
		IsFake:           result.IsFake,
		ModelUsed:        result.ModelID,
		Probabilities:    result.Probabilities,
		Filename:         reportFilename(path, opts),
		ProcessingTimeMS: float64(time.Since(start)) / float64(time.Millisecond),
		Error:            result.Err,
	}
}

func (s *Service) errorReport(path string, opts Options, start time.Time, err error) *Report {
	s.log.Warn("detect: pipeline failed", "path", path, "error", err)
	return &Report{
		Label:            classifier.ErrorLabel,
		ModelUsed:        "",
		Filename:         reportFilename(path, opts),
		ProcessingTimeMS: float64(time.Since(start)) / float64(time.Millisecond),
		Error:            err.Error(),
	}
}

// fakeProbability prefers the synthetic-class probability; a result
// without one falls back to the given confidence.
func fakeProbability(result classifier.Result, fallback float64) float64 {
	if p, ok := result.Probabilities["fake"]; ok {
		return p
	}
	return fallback
}

func reportFilename(path string, opts Options) string {
	if opts.Filename != "" {
		return opts.Filename
	}
	return filepath.Base(path)
}

// persist stores the report in the history store. Failures are logged
// and swallowed; detection results never depend on storage.
func (s *Service) persist(ctx context.Context, report *Report, opts Options, clip *audio.Clip, featuresUsed []string) {
	if s.hist == nil || !opts.Store || opts.UserID == "" {
		return
	}

	var size int64
	if info, err := os.Stat(clip.Path); err == nil {
		size = info.Size()
	}
	meta := &history.AudioMetadata{
		UserID:     opts.UserID,
		Filename:   report.Filename,
		FileSize:   size,
		Duration:   clip.Duration(),
		SampleRate: clip.SampleRate,
	}
	if err := s.hist.SaveMetadata(ctx, meta); err != nil {
		s.log.Warn("detect: history metadata save failed", "error", err)
		return
	}

	isFake := report.IsFake != nil && *report.IsFake
	analysis := &history.AnalysisRecord{
		MetadataID:   meta.ID,
		UserID:       opts.UserID,
		IsDeepfake:   isFake,
		Confidence:   report.Confidence,
		FeaturesUsed: featuresUsed,
	}
	if err := s.hist.SaveAnalysis(ctx, analysis); err != nil {
		s.log.Warn("detect: history analysis save failed", "error", err)
		return
	}

	scores := make(map[string]float64, len(report.Probabilities)+len(report.ModelConfidences))
	for k, v := range report.Probabilities {
		scores[k] = v
	}
	for k, v := range report.ModelConfidences {
		scores[k] = v
	}
	details := &history.ResultDetails{
		AnalysisID:       analysis.ID,
		FeatureScores:    scores,
		ModelVersion:     report.ModelUsed,
		ProcessingTimeMS: report.ProcessingTimeMS,
	}
	if err := s.hist.SaveDetails(ctx, details); err != nil {
		s.log.Warn("detect: history details save failed", "error", err)
		return
	}

	report.MetadataID = meta.ID
	report.AnalysisID = analysis.ID
	report.DetailsID = details.ID
}
