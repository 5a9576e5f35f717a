// Package attention implements the multi-head self-attention classifier
// and its explainability outputs.
//
// The model is a fixed-shape transformer over encoder hidden states:
// input projection 1024 to 512 scaled by the square root of the model
// width, sinusoidal positional encoding, six blocks of eight-head
// self-attention and a position-wise feed-forward network (both with
// residual connections and post-residual layer normalization), a final
// layer norm, global average pooling over time, and a three-layer
// classification head producing real/fake logits.
//
// Every forward pass also returns the full per-layer attention tensors
// (heads by sequence by sequence) so callers can inspect which regions of
// the clip the model attended to.
//
// Inference only: dropout layers in the trained network are identities
// here. Weights load from a safetensors export; a model without weights
// runs on deterministic random initialization.
package attention

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Model shape, fixed by the trained network.
const (
	InputDim   = 1024
	ModelDim   = 512
	NumHeads   = 8
	NumLayers  = 6
	FFNDim     = 2048
	NumClasses = 2

	headDim      = ModelDim / NumHeads
	maxPositions = 1000
	lnEpsilon    = 1e-5
	randSeed     = 20240612
)

type linear struct {
	w *mat.Dense // out × in
	b []float64
}

type layerNorm struct {
	gamma, beta []float64
}

type block struct {
	wq, wk, wv, wo *linear
	attnNorm       *layerNorm
	ffn1, ffn2     *linear
	ffnNorm        *layerNorm
}

// Transformer is the attention classifier network.
type Transformer struct {
	inputProj *linear
	pe        *mat.Dense // maxPositions × ModelDim
	blocks    []*block
	finalNorm *layerNorm
	head      []*linear // 512→256, 256→128, 128→2
	loaded    bool
}

// NewTransformer creates a Transformer with deterministic random
// initialization. Call [Transformer.LoadWeights] to install trained
// parameters.
func NewTransformer() *Transformer {
	rng := rand.New(rand.NewPCG(randSeed, randSeed^0xf00d))
	t := &Transformer{
		inputProj: randomLinear(rng, InputDim, ModelDim),
		pe:        positionalEncoding(maxPositions, ModelDim),
		finalNorm: identityNorm(ModelDim),
		head: []*linear{
			randomLinear(rng, ModelDim, ModelDim/2),
			randomLinear(rng, ModelDim/2, ModelDim/4),
			randomLinear(rng, ModelDim/4, NumClasses),
		},
	}
	for i := 0; i < NumLayers; i++ {
		t.blocks = append(t.blocks, &block{
			wq:       randomLinear(rng, ModelDim, ModelDim),
			wk:       randomLinear(rng, ModelDim, ModelDim),
			wv:       randomLinear(rng, ModelDim, ModelDim),
			wo:       randomLinear(rng, ModelDim, ModelDim),
			attnNorm: identityNorm(ModelDim),
			ffn1:     randomLinear(rng, ModelDim, FFNDim),
			ffn2:     randomLinear(rng, FFNDim, ModelDim),
			ffnNorm:  identityNorm(ModelDim),
		})
	}
	return t
}

// Loaded reports whether trained weights have been installed.
func (t *Transformer) Loaded() bool { return t.loaded }

// Forward runs the network over a sequence of encoder hidden states and
// returns the class logits plus the attention tensor of every layer
// (indexed layer, head, query position, key position).
func (t *Transformer) Forward(hidden [][]float32) (logits []float64, layers [][][][]float64, err error) {
	seq := len(hidden)
	if seq == 0 {
		return nil, nil, fmt.Errorf("attention: empty hidden state sequence")
	}
	if seq > maxPositions {
		hidden = hidden[:maxPositions]
		seq = maxPositions
	}
	for i, row := range hidden {
		if len(row) != InputDim {
			return nil, nil, fmt.Errorf("attention: hidden state %d has dim %d, expected %d", i, len(row), InputDim)
		}
	}

	x := mat.NewDense(seq, InputDim, nil)
	for i, row := range hidden {
		for j, v := range row {
			x.Set(i, j, float64(v))
		}
	}

	x = t.inputProj.apply(x)
	x.Scale(math.Sqrt(ModelDim), x)
	for i := 0; i < seq; i++ {
		for j := 0; j < ModelDim; j++ {
			x.Set(i, j, x.At(i, j)+t.pe.At(i, j))
		}
	}

	layers = make([][][][]float64, 0, NumLayers)
	for _, b := range t.blocks {
		var attn [][][]float64
		x, attn = b.forward(x)
		layers = append(layers, attn)
	}

	x = t.finalNorm.apply(x)

	pooled := make([]float64, ModelDim)
	for j := 0; j < ModelDim; j++ {
		var sum float64
		for i := 0; i < seq; i++ {
			sum += x.At(i, j)
		}
		pooled[j] = sum / float64(seq)
	}

	pooled = reluVec(t.head[0].applyVec(pooled))
	pooled = reluVec(t.head[1].applyVec(pooled))
	return t.head[2].applyVec(pooled), layers, nil
}

func (b *block) forward(x *mat.Dense) (*mat.Dense, [][][]float64) {
	seq, _ := x.Dims()

	q := b.wq.apply(x)
	k := b.wk.apply(x)
	v := b.wv.apply(x)

	attn := make([][][]float64, NumHeads)
	context := mat.NewDense(seq, ModelDim, nil)
	scale := 1 / math.Sqrt(float64(headDim))
	for h := 0; h < NumHeads; h++ {
		lo, hi := h*headDim, (h+1)*headDim
		qh := q.Slice(0, seq, lo, hi)
		kh := k.Slice(0, seq, lo, hi)
		vh := v.Slice(0, seq, lo, hi)

		var scores mat.Dense
		scores.Mul(qh, kh.T())
		scores.Scale(scale, &scores)

		attn[h] = softmaxRows(&scores)

		a := mat.NewDense(seq, seq, nil)
		for i := 0; i < seq; i++ {
			a.SetRow(i, attn[h][i])
		}
		var ctx mat.Dense
		ctx.Mul(a, vh)
		for i := 0; i < seq; i++ {
			for j := 0; j < headDim; j++ {
				context.Set(i, lo+j, ctx.At(i, j))
			}
		}
	}

	out := b.wo.apply(context)
	out.Add(out, x)
	out = b.attnNorm.apply(out)

	ff := b.ffn2.apply(reluDense(b.ffn1.apply(out)))
	ff.Add(ff, out)
	return b.ffnNorm.apply(ff), attn
}

func (l *linear) apply(x *mat.Dense) *mat.Dense {
	rows, _ := x.Dims()
	out, _ := l.w.Dims()
	var y mat.Dense
	y.Mul(x, l.w.T())
	for i := 0; i < rows; i++ {
		for j := 0; j < out; j++ {
			y.Set(i, j, y.At(i, j)+l.b[j])
		}
	}
	return &y
}

func (l *linear) applyVec(x []float64) []float64 {
	out, in := l.w.Dims()
	var y mat.VecDense
	y.MulVec(l.w, mat.NewVecDense(in, x))
	result := make([]float64, out)
	for i := range result {
		result[i] = y.AtVec(i) + l.b[i]
	}
	return result
}

func (ln *layerNorm) apply(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		var mean float64
		for j := 0; j < cols; j++ {
			mean += x.At(i, j)
		}
		mean /= float64(cols)
		var variance float64
		for j := 0; j < cols; j++ {
			d := x.At(i, j) - mean
			variance += d * d
		}
		variance /= float64(cols)
		inv := 1 / math.Sqrt(variance+lnEpsilon)
		for j := 0; j < cols; j++ {
			out.Set(i, j, (x.At(i, j)-mean)*inv*ln.gamma[j]+ln.beta[j])
		}
	}
	return out
}

func softmaxRows(scores *mat.Dense) [][]float64 {
	rows, cols := scores.Dims()
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		max := scores.At(i, 0)
		for j := 1; j < cols; j++ {
			if v := scores.At(i, j); v > max {
				max = v
			}
		}
		row := make([]float64, cols)
		var sum float64
		for j := 0; j < cols; j++ {
			row[j] = math.Exp(scores.At(i, j) - max)
			sum += row[j]
		}
		for j := 0; j < cols; j++ {
			row[j] /= sum
		}
		out[i] = row
	}
	return out
}

// positionalEncoding builds the sinusoidal table: sine on even feature
// indices, cosine on odd, frequencies geometric in the feature index.
func positionalEncoding(maxLen, dim int) *mat.Dense {
	pe := mat.NewDense(maxLen, dim, nil)
	for pos := 0; pos < maxLen; pos++ {
		for i := 0; i < dim; i += 2 {
			div := math.Exp(float64(i) * -math.Log(10000) / float64(dim))
			pe.Set(pos, i, math.Sin(float64(pos)*div))
			if i+1 < dim {
				pe.Set(pos, i+1, math.Cos(float64(pos)*div))
			}
		}
	}
	return pe
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

func identityNorm(dim int) *layerNorm {
	ln := &layerNorm{gamma: make([]float64, dim), beta: make([]float64, dim)}
	for i := range ln.gamma {
		ln.gamma[i] = 1
	}
	return ln
}

func reluDense(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if x.At(i, j) < 0 {
				x.Set(i, j, 0)
			}
		}
	}
	return x
}

func reluVec(x []float64) []float64 {
	for i, v := range x {
		if v < 0 {
			x[i] = 0
		}
	}
	return x
}
