// Package encoder abstracts the pretrained sequence encoders that turn raw
// waveforms into embeddings.
//
// Two views of the same forward pass are exposed: [Encoder.HiddenStates]
// returns the full hidden-state sequence (one vector per encoder frame) for
// models that need time structure, and [Encoder.Embed] time-averages that
// sequence into a single fixed-size vector for models with flat inputs.
//
// The feature extractor uses a base encoder (768-dim); the attention
// classifier consumes hidden states from the fine-tuned encoder (1024-dim).
// Both are separate [Encoder] instances.
package encoder

import (
	"fmt"

	"github.com/naveensanjula975/VocalGuard/pkg/audio"
)

// MaxSamples caps the waveform fed to an encoder: 10 seconds at the
// canonical model rate. Longer clips are truncated, shorter clips pass
// through unchanged.
const MaxSamples = 10 * audio.ModelRate

// Encoder produces embeddings from 16 kHz mono float32 waveforms.
//
// Implementations must be safe for concurrent use: the pipeline shares one
// loaded encoder across requests.
type Encoder interface {
	// Embed returns the hidden-state sequence averaged over time:
	// a vector of length Dim().
	Embed(samples []float32) ([]float32, error)

	// HiddenStates returns the full sequence: [seqLen][Dim()].
	HiddenStates(samples []float32) ([][]float32, error)

	// Dim returns the hidden dimension of the encoder.
	Dim() int

	// Close releases the underlying inference session.
	Close() error
}

// Truncate bounds a waveform to [MaxSamples].
func Truncate(samples []float32) []float32 {
	if len(samples) > MaxSamples {
		return samples[:MaxSamples]
	}
	return samples
}

// Pool time-averages a hidden-state sequence into a single vector.
func Pool(hidden [][]float32) ([]float32, error) {
	if len(hidden) == 0 {
		return nil, fmt.Errorf("encoder: empty hidden-state sequence")
	}
	dim := len(hidden[0])
	out := make([]float32, dim)
	for _, frame := range hidden {
		if len(frame) != dim {
			return nil, fmt.Errorf("encoder: ragged hidden-state sequence")
		}
		for i, v := range frame {
			out[i] += v
		}
	}
	inv := 1 / float32(len(hidden))
	for i := range out {
		out[i] *= inv
	}
	return out, nil
}
