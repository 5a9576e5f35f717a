package classifier

import (
	"errors"
	"math"
	"testing"
)

func TestSoftmax(t *testing.T) {
	probs := Softmax([]float32{1, 2, 3})
	if len(probs) != 3 {
		t.Fatalf("got %d probabilities, want 3", len(probs))
	}
	var sum float64
	for _, p := range probs {
		if p <= 0 || p >= 1 {
			t.Errorf("probability %f outside (0, 1)", p)
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("probabilities sum to %f, want 1", sum)
	}
	if !(probs[2] > probs[1] && probs[1] > probs[0]) {
		t.Errorf("ordering not preserved: %v", probs)
	}
}

func TestSoftmaxLargeLogits(t *testing.T) {
	// Max subtraction keeps extreme logits finite.
	probs := Softmax([]float32{1000, 1001})
	for i, p := range probs {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			t.Fatalf("probs[%d] = %f not finite", i, p)
		}
	}
	if probs[1] <= probs[0] {
		t.Errorf("larger logit should win: %v", probs)
	}
}

func TestClassifyFakeLabelIdentity(t *testing.T) {
	schema := DefaultSchema()

	result := schema.Classify([]float64{0.2, 0.8}, "m")
	if result.Label != "fake" || result.LabelIndex != 1 {
		t.Errorf("got label %q index %d", result.Label, result.LabelIndex)
	}
	if result.IsFake == nil || !*result.IsFake {
		t.Error("IsFake should be true for the fake label")
	}
	if result.Confidence != 0.8 {
		t.Errorf("confidence = %f, want 0.8", result.Confidence)
	}
	if result.Probabilities["real"] != 0.2 {
		t.Errorf("probabilities = %v", result.Probabilities)
	}

	result = schema.Classify([]float64{0.9, 0.1}, "m")
	if result.IsFake == nil || *result.IsFake {
		t.Error("IsFake should be false for the real label")
	}
}

func TestClassifyThresholdFallback(t *testing.T) {
	// Without the fake label in the vocabulary the verdict falls back to
	// the confidence threshold.
	schema := LabelSchema{Labels: []string{"bonafide", "spoof"}, FakeLabel: "fake", Threshold: 0.6}

	high := schema.Classify([]float64{0.1, 0.9}, "m")
	if high.IsFake == nil || !*high.IsFake {
		t.Error("confidence 0.9 should exceed threshold")
	}

	low := schema.Classify([]float64{0.55, 0.45}, "m")
	if low.IsFake == nil || *low.IsFake {
		t.Error("confidence 0.55 is below the 0.6 threshold")
	}
}

func TestErrorResult(t *testing.T) {
	result := ErrorResult("m", errors.New("boom"))
	if !result.IsError() {
		t.Fatal("expected error-shaped result")
	}
	if result.Label != ErrorLabel || result.Confidence != 0 {
		t.Errorf("label %q confidence %f", result.Label, result.Confidence)
	}
	if result.IsFake != nil {
		t.Error("IsFake should be nil on errors")
	}
	if result.Err != "boom" {
		t.Errorf("Err = %q", result.Err)
	}
}
