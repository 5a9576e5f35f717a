package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/naveensanjula975/VocalGuard/pkg/safetensors"
)

// StandardModelID identifies the feed-forward feature classifier.
const StandardModelID = "standard-ml-classifier"

// bnEpsilon matches the batch-norm epsilon the weights were trained with.
const bnEpsilon = 1e-5

// randSeed makes the unconfigured fallback initialization deterministic.
const randSeed = 20240517

// FeatureExtractor supplies the combined feature vector the Standard
// classifier consumes.
type FeatureExtractor interface {
	ExtractVector(ctx context.Context, path string) ([]float32, error)
}

// Standard is a small feed-forward network over the combined feature
// vector: three hidden layers (128, 64, 32) with batch normalization,
// then a sigmoid output giving the probability of synthetic speech.
//
// Weights load from a safetensors file via [Standard.LoadWeights]; an
// unconfigured instance runs with deterministic random initialization and
// produces meaningless predictions rather than an error.
type Standard struct {
	inputDim  int
	threshold float64
	linears   []*linear
	norms     []*batchNorm
	features  FeatureExtractor
	log       *slog.Logger
	loaded    bool
}

type linear struct {
	w *mat.Dense // out × in
	b []float64
}

type batchNorm struct {
	gamma, beta, mean, variance []float64
}

// StandardOption configures a Standard classifier.
type StandardOption func(*Standard)

// WithStandardThreshold sets the fake-probability cutoff. Default: 0.5.
func WithStandardThreshold(t float64) StandardOption {
	return func(s *Standard) {
		if t > 0 && t < 1 {
			s.threshold = t
		}
	}
}

// WithStandardLogger sets the logger. Nil keeps slog.Default.
func WithStandardLogger(log *slog.Logger) StandardOption {
	return func(s *Standard) {
		if log != nil {
			s.log = log
		}
	}
}

// NewStandard creates a Standard classifier for the given feature
// dimensionality, with deterministic random initialization.
func NewStandard(inputDim int, features FeatureExtractor, opts ...StandardOption) *Standard {
	s := &Standard{
		inputDim:  inputDim,
		threshold: 0.5,
		features:  features,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	rng := rand.New(rand.NewPCG(randSeed, randSeed^0xbada55))
	dims := []int{inputDim, 128, 64, 32, 1}
	for i := 0; i < len(dims)-1; i++ {
		s.linears = append(s.linears, randomLinear(rng, dims[i], dims[i+1]))
	}
	for _, d := range dims[1 : len(dims)-1] {
		s.norms = append(s.norms, identityNorm(d))
	}
	return s
}

// ModelID returns the model identifier.
func (s *Standard) ModelID() string { return StandardModelID }

// Loaded reports whether trained weights have been loaded.
func (s *Standard) Loaded() bool { return s.loaded }

// LoadWeights reads linear and batch-norm parameters from a safetensors
// file. Tensor names follow the "model.{index}." layout of the trained
// network (linears at 0, 4, 8, 12; batch norms at 2, 6, 10). Missing
// tensors leave the random initialization in place.
func (s *Standard) LoadWeights(path string) error {
	tensors, err := safetensors.ReadFile(path)
	if err != nil {
		return fmt.Errorf("classifier: %w", err)
	}

	linearIdx := []int{0, 4, 8, 12}
	found := 0
	for i, idx := range linearIdx {
		prefix := fmt.Sprintf("model.%d.", idx)
		w, okW := tensors[prefix+"weight"]
		b, okB := tensors[prefix+"bias"]
		if !okW || !okB {
			continue
		}
		l, err := linearFromTensors(w, b)
		if err != nil {
			return fmt.Errorf("classifier: layer %s: %w", prefix, err)
		}
		s.linears[i] = l
		found++
	}

	normIdx := []int{2, 6, 10}
	for i, idx := range normIdx {
		prefix := fmt.Sprintf("model.%d.", idx)
		gamma, ok1 := tensors[prefix+"weight"]
		beta, ok2 := tensors[prefix+"bias"]
		mean, ok3 := tensors[prefix+"running_mean"]
		variance, ok4 := tensors[prefix+"running_var"]
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		s.norms[i] = &batchNorm{
			gamma:    toFloat64(gamma.Data),
			beta:     toFloat64(beta.Data),
			mean:     toFloat64(mean.Data),
			variance: toFloat64(variance.Data),
		}
		found++
	}

	if found == 0 {
		s.log.Warn("standard classifier: no matching weights found, running with random initialization", "path", path)
		return nil
	}
	s.loaded = true
	return nil
}

// Predict returns the probability that the feature vector describes
// synthetic speech.
func (s *Standard) Predict(features []float32) (float64, error) {
	if len(features) != s.inputDim {
		return 0, fmt.Errorf("classifier: feature vector length %d, expected %d", len(features), s.inputDim)
	}

	x := toFloat64(features)
	for i := 0; i < len(s.norms); i++ {
		x = relu(s.linears[i].apply(x))
		x = s.norms[i].apply(x)
	}
	out := s.linears[len(s.linears)-1].apply(x)
	return sigmoid(out[0]), nil
}

// Detect extracts the combined feature vector for a file and classifies it.
// Failures are returned as error-shaped results.
func (s *Standard) Detect(ctx context.Context, path string) Result {
	features, err := s.features.ExtractVector(ctx, path)
	if err != nil {
		return ErrorResult(StandardModelID, err)
	}

	probFake, err := s.Predict(features)
	if err != nil {
		return ErrorResult(StandardModelID, err)
	}

	isFake := probFake > s.threshold
	label := "real"
	confidence := 1 - probFake
	labelIndex := 0
	if isFake {
		label = "fake"
		confidence = probFake
		labelIndex = 1
	}
	return Result{
		Label:         label,
		LabelIndex:    labelIndex,
		Confidence:    confidence,
		Probabilities: map[string]float64{"real": 1 - probFake, "fake": probFake},
		IsFake:        &isFake,
		ModelID:       StandardModelID,
	}
}

func (l *linear) apply(x []float64) []float64 {
	out, in := l.w.Dims()
	if len(x) != in {
		// Input shape is fixed at construction; reaching here is a bug.
		panic(fmt.Sprintf("classifier: linear input %d, expected %d", len(x), in))
	}
	var y mat.VecDense
	y.MulVec(l.w, mat.NewVecDense(in, x))
	result := make([]float64, out)
	for i := range result {
		result[i] = y.AtVec(i) + l.b[i]
	}
	return result
}

func (bn *batchNorm) apply(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v-bn.mean[i])/math.Sqrt(bn.variance[i]+bnEpsilon)*bn.gamma[i] + bn.beta[i]
	}
	return out
}

func randomLinear(rng *rand.Rand, in, out int) *linear {
	scale := 1 / math.Sqrt(float64(in))
	w := mat.NewDense(out, in, nil)
	for i := 0; i < out; i++ {
		for j := 0; j < in; j++ {
			w.Set(i, j, rng.NormFloat64()*scale)
		}
	}
	return &linear{w: w, b: make([]float64, out)}
}

func identityNorm(dim int) *batchNorm {
	bn := &batchNorm{
		gamma:    make([]float64, dim),
		beta:     make([]float64, dim),
		mean:     make([]float64, dim),
		variance: make([]float64, dim),
	}
	for i := 0; i < dim; i++ {
		bn.gamma[i] = 1
		bn.variance[i] = 1
	}
	return bn
}

func linearFromTensors(w, b safetensors.Tensor) (*linear, error) {
	if len(w.Shape) != 2 {
		return nil, fmt.Errorf("weight tensor has shape %v, expected 2D", w.Shape)
	}
	out, in := w.Shape[0], w.Shape[1]
	if len(b.Data) != out {
		return nil, fmt.Errorf("bias length %d does not match output dim %d", len(b.Data), out)
	}
	return &linear{
		w: mat.NewDense(out, in, toFloat64(w.Data)),
		b: toFloat64(b.Data),
	}, nil
}

func relu(x []float64) []float64 {
	for i, v := range x {
		if v < 0 {
			x[i] = 0
		}
	}
	return x
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func toFloat64(x []float32) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = float64(v)
	}
	return out
}
