package ensemble

import (
	"errors"
	"math"
	"testing"

	"github.com/naveensanjula975/VocalGuard/pkg/classifier"
)

func result(isFake bool, confidence float64) classifier.Result {
	label := "real"
	if isFake {
		label = "fake"
	}
	return classifier.Result{
		Label:      label,
		Confidence: confidence,
		IsFake:     &isFake,
		ModelID:    "test",
	}
}

func TestCombineAgreementFake(t *testing.T) {
	// Agreement wins regardless of how low the blended confidence is.
	out := Combine(result(true, 0.3), result(true, 0.2), DefaultConfig)

	if out.Skipped {
		t.Fatal("should not be skipped")
	}
	if out.IsFake == nil || !*out.IsFake || out.Label != "fake" {
		t.Errorf("verdict = %q %v, want fake", out.Label, out.IsFake)
	}
	want := 0.3*0.6 + 0.2*0.4
	if math.Abs(out.Confidence-want) > 1e-9 {
		t.Errorf("confidence = %f, want %f", out.Confidence, want)
	}
	if out.ModelID != ModelID {
		t.Errorf("model ID = %q", out.ModelID)
	}
}

func TestCombineAgreementReal(t *testing.T) {
	out := Combine(result(false, 0.9), result(false, 0.95), DefaultConfig)
	if out.IsFake == nil || *out.IsFake || out.Label != "real" {
		t.Errorf("verdict = %q %v, want real", out.Label, out.IsFake)
	}
}

func TestCombineDisagreementHighConfidence(t *testing.T) {
	// 0.9*0.6 + 0.9*0.4 = 0.9 > 0.5: the tie breaks to fake.
	out := Combine(result(true, 0.9), result(false, 0.9), DefaultConfig)
	if out.IsFake == nil || !*out.IsFake {
		t.Errorf("verdict = %v, want fake on blended 0.9", out.IsFake)
	}
}

func TestCombineDisagreementLowConfidence(t *testing.T) {
	// 0.4*0.6 + 0.4*0.4 = 0.4 <= 0.5: the tie breaks to real.
	out := Combine(result(false, 0.4), result(true, 0.4), DefaultConfig)
	if out.IsFake == nil || *out.IsFake {
		t.Errorf("verdict = %v, want real on blended 0.4", out.IsFake)
	}
}

func TestCombineCustomWeights(t *testing.T) {
	cfg := Config{PrimaryWeight: 0.8, AttentionWeight: 0.2}
	out := Combine(result(true, 1.0), result(true, 0.0), cfg)
	if math.Abs(out.Confidence-0.8) > 1e-9 {
		t.Errorf("confidence = %f, want 0.8", out.Confidence)
	}
	if out.Weights != cfg {
		t.Errorf("weights = %+v", out.Weights)
	}
}

func TestCombineZeroConfigFallsBack(t *testing.T) {
	out := Combine(result(true, 0.5), result(true, 0.5), Config{})
	if out.Weights != DefaultConfig {
		t.Errorf("weights = %+v, want defaults", out.Weights)
	}
}

func TestCombineSkipsOnAttentionError(t *testing.T) {
	primary := result(true, 0.7)
	attnErr := classifier.ErrorResult("transformer_attention", errors.New("boom"))

	out := Combine(primary, attnErr, DefaultConfig)
	if !out.Skipped {
		t.Fatal("expected Skipped")
	}
	if out.Label != primary.Label || out.Confidence != primary.Confidence {
		t.Errorf("skipped result should pass the primary through, got %+v", out)
	}
	if out.ModelID != primary.ModelID {
		t.Errorf("model ID = %q, want primary's", out.ModelID)
	}
	if out.ModelConfidences != nil {
		t.Error("no model confidences on a skipped blend")
	}
}

func TestCombineModelConfidences(t *testing.T) {
	out := Combine(result(true, 0.7), result(true, 0.6), DefaultConfig)
	if out.ModelConfidences["wav2vec2"] != 0.7 || out.ModelConfidences["transformer"] != 0.6 {
		t.Errorf("model confidences = %v", out.ModelConfidences)
	}
}
