package attention

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/naveensanjula975/VocalGuard/pkg/audio"
	"github.com/naveensanjula975/VocalGuard/pkg/classifier"
	"github.com/naveensanjula975/VocalGuard/pkg/encoder"
)

// ModelID identifies the attention classifier in results.
const ModelID = "transformer_attention"

// Classifier runs the transformer over encoder hidden states and shapes
// the output as a classification result with attention payloads.
type Classifier struct {
	enc    encoder.Encoder
	model  *Transformer
	schema classifier.LabelSchema
	log    *slog.Logger
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithLogger sets the logger. Nil keeps slog.Default.
func WithLogger(log *slog.Logger) ClassifierOption {
	return func(c *Classifier) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClassifier wires an encoder and a transformer together. The encoder
// must produce hidden states of width [InputDim].
func NewClassifier(enc encoder.Encoder, model *Transformer, schema classifier.LabelSchema, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		enc:    enc,
		model:  model,
		schema: schema,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Detect classifies a clip and returns the last layer's head-averaged
// attention matrix alongside the result. Failures yield an error-shaped
// result with a nil attention matrix.
func (c *Classifier) Detect(ctx context.Context, clip *audio.Clip) (classifier.Result, [][]float64) {
	logits, layers, err := c.forward(ctx, clip)
	if err != nil {
		c.log.Warn("attention: detection failed", "path", clip.Path, "error", err)
		return classifier.ErrorResult(ModelID, err), nil
	}

	probs := classifier.Softmax(toFloat32(logits))
	result := c.schema.Classify(probs, ModelID)
	return result, headAverage(layers[len(layers)-1])
}

// LayerAttention is one layer's head-averaged attention matrix with its
// raw attention extrema.
type LayerAttention struct {
	Layer        int         `json:"layer"`
	AvgAttention [][]float64 `json:"attention_matrix"`
	Max          float64     `json:"max_attention"`
	Min          float64     `json:"min_attention"`
}

// Analysis is the full per-layer attention breakdown for a clip.
type Analysis struct {
	NumLayers int              `json:"num_layers"`
	NumHeads  int              `json:"num_heads"`
	SeqLen    int              `json:"sequence_length"`
	Layers    []LayerAttention `json:"layer_attention"`
}

// Analyze runs a forward pass and returns attention statistics for every
// layer. Unlike Detect, failures surface as errors.
func (c *Classifier) Analyze(ctx context.Context, clip *audio.Clip) (*Analysis, error) {
	_, layers, err := c.forward(ctx, clip)
	if err != nil {
		return nil, err
	}

	analysis := &Analysis{
		NumLayers: len(layers),
		NumHeads:  len(layers[0]),
		SeqLen:    len(layers[0][0]),
	}
	for i, layer := range layers {
		la := LayerAttention{
			Layer:        i + 1,
			AvgAttention: headAverage(layer),
		}
		first := true
		for _, head := range layer {
			for _, row := range head {
				for _, v := range row {
					if first || v > la.Max {
						la.Max = v
					}
					if first || v < la.Min {
						la.Min = v
					}
					first = false
				}
			}
		}
		analysis.Layers = append(analysis.Layers, la)
	}
	return analysis, nil
}

func (c *Classifier) forward(ctx context.Context, clip *audio.Clip) ([]float64, [][][][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	model, err := audio.ToModelRate(clip)
	if err != nil {
		return nil, nil, fmt.Errorf("attention: %w", err)
	}
	hidden, err := c.enc.HiddenStates(encoder.Truncate(model.Samples))
	if err != nil {
		return nil, nil, fmt.Errorf("attention: %w", err)
	}
	return c.model.Forward(hidden)
}

// headAverage averages one layer's attention tensor across heads.
func headAverage(layer [][][]float64) [][]float64 {
	if len(layer) == 0 {
		return nil
	}
	seq := len(layer[0])
	avg := make([][]float64, seq)
	for i := 0; i < seq; i++ {
		row := make([]float64, len(layer[0][i]))
		for _, head := range layer {
			for j, v := range head[i] {
				row[j] += v
			}
		}
		for j := range row {
			row[j] /= float64(len(layer))
		}
		avg[i] = row
	}
	return avg
}

func toFloat32(x []float64) []float32 {
	out := make([]float32, len(x))
	for i, v := range x {
		out[i] = float32(v)
	}
	return out
}
