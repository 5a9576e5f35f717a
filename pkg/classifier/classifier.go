// Package classifier maps audio to fake/real probability distributions.
//
// Two classifiers live here. [Primary] is the fine-tuned pretrained audio
// classifier, run as an ONNX graph over the raw 16 kHz waveform. [Standard]
// is a small feed-forward network over the combined feature vector, used for
// the lighter analysis mode.
//
// Both produce a [Result]. Failures inside detection never escape as Go
// errors: they become error-shaped results (label "error", zero confidence,
// nil IsFake) that callers key off instead of catching exceptions.
package classifier

import (
	"math"
)

// ErrorLabel marks an error-shaped result.
const ErrorLabel = "error"

// Result is the outcome of a single classifier pass.
// A Result is created fresh per request and never mutated afterwards.
type Result struct {
	// Label is the predicted class name, or "error".
	Label string

	// LabelIndex is the argmax index into the label vocabulary (-1 on error).
	LabelIndex int

	// Confidence is the probability of the predicted class, in [0, 1].
	Confidence float64

	// Probabilities maps every class name to its probability.
	Probabilities map[string]float64

	// IsFake is the verdict; nil on error-shaped results.
	IsFake *bool

	// ModelID identifies the model that produced this result.
	ModelID string

	// Err carries the failure message for error-shaped results.
	Err string
}

// IsError reports whether this is an error-shaped result.
func (r Result) IsError() bool { return r.Label == ErrorLabel }

// ErrorResult builds an error-shaped result for a failed detection.
func ErrorResult(modelID string, err error) Result {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Result{
		Label:      ErrorLabel,
		LabelIndex: -1,
		Confidence: 0,
		ModelID:    modelID,
		Err:        msg,
	}
}

// LabelSchema is the explicit contract for interpreting a model's label
// vocabulary, supplied at model-load time.
//
// If FakeLabel names a class in Labels, the verdict is label identity:
// IsFake iff the predicted label equals FakeLabel. Otherwise the verdict
// falls back to thresholding the top confidence against Threshold.
type LabelSchema struct {
	// Labels is the class vocabulary in logit index order.
	Labels []string

	// FakeLabel is the class meaning "synthetic speech", or "" when the
	// vocabulary has no such class.
	FakeLabel string

	// Threshold is the confidence cutoff for the fallback rule.
	// Zero means 0.5.
	Threshold float64
}

// DefaultSchema is the binary real/fake vocabulary.
func DefaultSchema() LabelSchema {
	return LabelSchema{
		Labels:    []string{"real", "fake"},
		FakeLabel: "fake",
		Threshold: 0.5,
	}
}

func (s LabelSchema) threshold() float64 {
	if s.Threshold > 0 {
		return s.Threshold
	}
	return 0.5
}

// Classify turns a probability distribution (index-aligned with Labels)
// into a Result using the schema's verdict rule.
func (s LabelSchema) Classify(probs []float64, modelID string) Result {
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}

	label := labelName(s.Labels, best)
	probMap := make(map[string]float64, len(probs))
	for i, p := range probs {
		probMap[labelName(s.Labels, i)] = p
	}

	var isFake bool
	if s.FakeLabel != "" && contains(s.Labels, s.FakeLabel) {
		isFake = label == s.FakeLabel
	} else {
		isFake = probs[best] > s.threshold()
	}

	return Result{
		Label:         label,
		LabelIndex:    best,
		Confidence:    probs[best],
		Probabilities: probMap,
		IsFake:        &isFake,
		ModelID:       modelID,
	}
}

func labelName(labels []string, i int) string {
	if i < len(labels) {
		return labels[i]
	}
	return "class_" + itoa(i)
}

func contains(labels []string, want string) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}
	return false
}

// itoa avoids importing strconv for tiny non-negative indices.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// Softmax converts logits to a probability distribution. Stable for large
// magnitudes via max subtraction; empty input returns nil.
func Softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - maxLogit))
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
