package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/naveensanjula975/VocalGuard/pkg/safetensors"
)

type fakeExtractor struct {
	vector []float32
	err    error
}

func (f *fakeExtractor) ExtractVector(ctx context.Context, path string) ([]float32, error) {
	return f.vector, f.err
}

func TestStandardPredictBounds(t *testing.T) {
	const dim = 8
	std := NewStandard(dim, nil)

	p, err := std.Predict(make([]float32, dim))
	if err != nil {
		t.Fatal(err)
	}
	if p <= 0 || p >= 1 || math.IsNaN(p) {
		t.Errorf("probability %f outside (0, 1)", p)
	}
}

func TestStandardPredictDeterministic(t *testing.T) {
	const dim = 8
	input := []float32{1, -1, 0.5, 0, 0.25, -0.25, 2, -2}

	a, err := NewStandard(dim, nil).Predict(input)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewStandard(dim, nil).Predict(input)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("random init not deterministic: %f != %f", a, b)
	}
}

func TestStandardPredictWrongDim(t *testing.T) {
	std := NewStandard(8, nil)
	if _, err := std.Predict(make([]float32, 7)); err == nil {
		t.Error("expected error for wrong input length")
	}
}

// zeroNetWeights builds a full weight set where every linear is zero
// except the output bias, pinning the network output to sigmoid(bias).
func zeroNetWeights(inputDim int, outBias float32) map[string]safetensors.Tensor {
	tensors := make(map[string]safetensors.Tensor)
	dims := []int{inputDim, 128, 64, 32, 1}
	linearIdx := []int{0, 4, 8, 12}
	for i, idx := range linearIdx {
		in, out := dims[i], dims[i+1]
		tensors[fmt.Sprintf("model.%d.weight", idx)] = safetensors.Tensor{
			Shape: []int{out, in}, Data: make([]float32, out*in),
		}
		bias := make([]float32, out)
		if idx == 12 {
			bias[0] = outBias
		}
		tensors[fmt.Sprintf("model.%d.bias", idx)] = safetensors.Tensor{
			Shape: []int{out}, Data: bias,
		}
	}
	for i, idx := range []int{2, 6, 10} {
		d := dims[i+1]
		gamma := make([]float32, d)
		variance := make([]float32, d)
		for j := range gamma {
			gamma[j] = 1
			variance[j] = 1
		}
		tensors[fmt.Sprintf("model.%d.weight", idx)] = safetensors.Tensor{Shape: []int{d}, Data: gamma}
		tensors[fmt.Sprintf("model.%d.bias", idx)] = safetensors.Tensor{Shape: []int{d}, Data: make([]float32, d)}
		tensors[fmt.Sprintf("model.%d.running_mean", idx)] = safetensors.Tensor{Shape: []int{d}, Data: make([]float32, d)}
		tensors[fmt.Sprintf("model.%d.running_var", idx)] = safetensors.Tensor{Shape: []int{d}, Data: variance}
	}
	return tensors
}

func TestStandardLoadWeights(t *testing.T) {
	const dim = 8
	path := filepath.Join(t.TempDir(), "standard.safetensors")
	if err := safetensors.WriteFile(path, zeroNetWeights(dim, 10)); err != nil {
		t.Fatal(err)
	}

	std := NewStandard(dim, nil)
	if err := std.LoadWeights(path); err != nil {
		t.Fatal(err)
	}
	if !std.Loaded() {
		t.Fatal("Loaded() should be true after a full weight set")
	}

	// Zero weights with a large positive output bias pin the output near 1.
	p, err := std.Predict([]float32{1, 2, 3, 4, 5, 6, 7, 8})
	if err != nil {
		t.Fatal(err)
	}
	if p < 0.99 {
		t.Errorf("probability = %f, want ~1 with output bias 10", p)
	}
}

func TestStandardLoadWeightsMissingTensors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.safetensors")
	if err := safetensors.WriteFile(path, map[string]safetensors.Tensor{
		"unrelated.weight": {Shape: []int{1}, Data: []float32{1}},
	}); err != nil {
		t.Fatal(err)
	}

	std := NewStandard(8, nil)
	if err := std.LoadWeights(path); err != nil {
		t.Fatal(err)
	}
	if std.Loaded() {
		t.Error("Loaded() should stay false when nothing matched")
	}
	// The model still predicts with its random initialization.
	if _, err := std.Predict(make([]float32, 8)); err != nil {
		t.Fatal(err)
	}
}

func TestStandardDetect(t *testing.T) {
	const dim = 8
	std := NewStandard(dim, &fakeExtractor{vector: make([]float32, dim)})

	result := std.Detect(context.Background(), "clip.wav")
	if result.IsError() {
		t.Fatalf("unexpected error result: %s", result.Err)
	}
	if result.ModelID != StandardModelID {
		t.Errorf("model ID = %q", result.ModelID)
	}
	if result.IsFake == nil {
		t.Fatal("IsFake should be set")
	}
	sum := result.Probabilities["real"] + result.Probabilities["fake"]
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("probabilities sum to %f", sum)
	}
}

func TestStandardDetectExtractorFailure(t *testing.T) {
	std := NewStandard(8, &fakeExtractor{err: errors.New("boom")})

	result := std.Detect(context.Background(), "clip.wav")
	if !result.IsError() {
		t.Fatal("expected error-shaped result")
	}
	if result.IsFake != nil || result.Confidence != 0 {
		t.Errorf("error result = %+v", result)
	}
}
