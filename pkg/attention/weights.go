package attention

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/naveensanjula975/VocalGuard/pkg/safetensors"
)

// LoadWeights installs trained parameters from a safetensors export.
// Only tensors whose names mention the transformer or the classifier head
// are considered, with the "transformer." module prefix stripped. Missing
// tensors keep their random initialization; the return value reports how
// many parameters were installed so callers can decide whether to warn.
func (t *Transformer) LoadWeights(path string) (int, error) {
	tensors, err := safetensors.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("attention: %w", err)
	}
	params := safetensors.Filter(tensors, "transformer.", "transformer", "classifier")

	loaded := 0
	loaded += setLinear(params, "input_projection", t.inputProj)
	for i, b := range t.blocks {
		prefix := fmt.Sprintf("transformer_blocks.%d.", i)
		loaded += setLinear(params, prefix+"attention.w_q", b.wq)
		loaded += setLinear(params, prefix+"attention.w_k", b.wk)
		loaded += setLinear(params, prefix+"attention.w_v", b.wv)
		loaded += setLinear(params, prefix+"attention.w_o", b.wo)
		loaded += setNorm(params, prefix+"attention.layer_norm", b.attnNorm)
		loaded += setLinear(params, prefix+"feed_forward.linear1", b.ffn1)
		loaded += setLinear(params, prefix+"feed_forward.linear2", b.ffn2)
		loaded += setNorm(params, prefix+"feed_forward.layer_norm", b.ffnNorm)
	}
	loaded += setNorm(params, "layer_norm", t.finalNorm)
	// Head is an nn.Sequential export; linears sit at indices 0, 3 and 6
	// with the activations and dropouts between them.
	loaded += setLinear(params, "classifier.0", t.head[0])
	loaded += setLinear(params, "classifier.3", t.head[1])
	loaded += setLinear(params, "classifier.6", t.head[2])

	if loaded > 0 {
		t.loaded = true
	}
	return loaded, nil
}

// setLinear installs "{name}.weight" and "{name}.bias" into dst if both
// exist with matching shapes. Weight layout is out × in, as exported.
func setLinear(params map[string]safetensors.Tensor, name string, dst *linear) int {
	w, okW := params[name+".weight"]
	b, okB := params[name+".bias"]
	if !okW || !okB {
		return 0
	}
	out, in := dst.w.Dims()
	if len(w.Shape) != 2 || w.Shape[0] != out || w.Shape[1] != in || len(b.Data) != out {
		return 0
	}
	data := make([]float64, len(w.Data))
	for i, v := range w.Data {
		data[i] = float64(v)
	}
	dst.w = mat.NewDense(out, in, data)
	for i, v := range b.Data {
		dst.b[i] = float64(v)
	}
	return 1
}

func setNorm(params map[string]safetensors.Tensor, name string, dst *layerNorm) int {
	gamma, okG := params[name+".weight"]
	beta, okB := params[name+".bias"]
	if !okG || !okB {
		return 0
	}
	if len(gamma.Data) != len(dst.gamma) || len(beta.Data) != len(dst.beta) {
		return 0
	}
	for i, v := range gamma.Data {
		dst.gamma[i] = float64(v)
	}
	for i, v := range beta.Data {
		dst.beta[i] = float64(v)
	}
	return 1
}
