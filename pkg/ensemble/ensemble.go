// Package ensemble combines the primary and attention classifiers into a
// single confidence-weighted verdict.
package ensemble

import (
	"github.com/naveensanjula975/VocalGuard/pkg/classifier"
)

// ModelID identifies ensemble verdicts in results.
const ModelID = "wav2vec2_transformer_ensemble"

// Config holds the blend weights. They describe each model's share of the
// combined confidence and should sum to 1.
type Config struct {
	PrimaryWeight   float64 `json:"primary_weight" yaml:"primary_weight"`
	AttentionWeight float64 `json:"attention_weight" yaml:"attention_weight"`
}

// DefaultConfig is the trained operating point.
var DefaultConfig = Config{PrimaryWeight: 0.6, AttentionWeight: 0.4}

// Result is a combined verdict. When the attention result was absent or
// error-shaped, Skipped is true and the verdict is the primary result
// passed through unchanged.
type Result struct {
	Label            string             `json:"prediction"`
	Confidence       float64            `json:"confidence"`
	IsFake           *bool              `json:"is_fake"`
	ModelID          string             `json:"model_used"`
	Weights          Config             `json:"weights"`
	ModelConfidences map[string]float64 `json:"individual_confidences,omitempty"`
	Skipped          bool               `json:"-"`
}

// Combine blends the two classifier results.
//
// When both models agree on the verdict, the shared verdict is adopted
// outright and the blended confidence only scores it. On disagreement the
// blended confidence breaks the tie: above 0.5 means fake. The attention
// model never blocks a verdict; if its result is error-shaped or carries
// no verdict, the primary result passes through with Skipped set.
func Combine(primary, attn classifier.Result, cfg Config) Result {
	if cfg.PrimaryWeight <= 0 && cfg.AttentionWeight <= 0 {
		cfg = DefaultConfig
	}

	if attn.IsError() || attn.IsFake == nil || primary.IsError() || primary.IsFake == nil {
		return Result{
			Label:      primary.Label,
			Confidence: primary.Confidence,
			IsFake:     primary.IsFake,
			ModelID:    primary.ModelID,
			Weights:    cfg,
			Skipped:    true,
		}
	}

	blended := primary.Confidence*cfg.PrimaryWeight + attn.Confidence*cfg.AttentionWeight

	var isFake bool
	switch {
	case *primary.IsFake && *attn.IsFake:
		isFake = true
	case !*primary.IsFake && !*attn.IsFake:
		isFake = false
	default:
		isFake = blended > 0.5
	}

	label := "real"
	if isFake {
		label = "fake"
	}
	return Result{
		Label:      label,
		Confidence: blended,
		IsFake:     &isFake,
		ModelID:    ModelID,
		Weights:    cfg,
		ModelConfidences: map[string]float64{
			"wav2vec2":    primary.Confidence,
			"transformer": attn.Confidence,
		},
	}
}
