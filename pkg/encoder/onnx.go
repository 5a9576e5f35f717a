package encoder

import (
	"fmt"

	"github.com/naveensanjula975/VocalGuard/pkg/onnx"
)

// ONNXEncoder implements [Encoder] on an exported .onnx encoder graph.
//
// The graph is expected to take a float32 waveform tensor of shape
// [1, samples] and produce a hidden-state tensor of shape [1, seq, dim].
type ONNXEncoder struct {
	session    *onnx.Session
	dim        int
	inputName  string
	outputName string
}

var _ Encoder = (*ONNXEncoder)(nil)

// ONNXOption configures an ONNXEncoder.
type ONNXOption func(*ONNXEncoder)

// WithDim sets the expected hidden dimension. Default: 768.
func WithDim(dim int) ONNXOption {
	return func(e *ONNXEncoder) {
		if dim > 0 {
			e.dim = dim
		}
	}
}

// WithTensorNames sets the input and output tensor names.
// Defaults: "input_values" and "last_hidden_state".
func WithTensorNames(input, output string) ONNXOption {
	return func(e *ONNXEncoder) {
		e.inputName = input
		e.outputName = output
	}
}

// NewONNXEncoder loads an encoder graph from an injected model path.
func NewONNXEncoder(env *onnx.Env, modelPath string, opts ...ONNXOption) (*ONNXEncoder, error) {
	e := &ONNXEncoder{
		dim:        768,
		inputName:  "input_values",
		outputName: "last_hidden_state",
	}
	for _, opt := range opts {
		opt(e)
	}

	session, err := env.NewSessionFromFile(modelPath)
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	e.session = session
	return e, nil
}

// Embed implements [Encoder].
func (e *ONNXEncoder) Embed(samples []float32) ([]float32, error) {
	hidden, err := e.HiddenStates(samples)
	if err != nil {
		return nil, err
	}
	return Pool(hidden)
}

// HiddenStates implements [Encoder].
func (e *ONNXEncoder) HiddenStates(samples []float32) ([][]float32, error) {
	samples = Truncate(samples)
	if len(samples) == 0 {
		return nil, fmt.Errorf("encoder: empty waveform")
	}

	input, err := onnx.NewTensor([]int64{1, int64(len(samples))}, samples)
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	defer input.Close()

	outputs, err := e.session.Run([]string{e.inputName}, []*onnx.Tensor{input}, []string{e.outputName})
	if err != nil {
		return nil, fmt.Errorf("encoder: forward: %w", err)
	}
	defer outputs[0].Close()

	shape, err := outputs[0].Shape()
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("encoder: unexpected output shape %v", shape)
	}
	seqLen, dim := int(shape[1]), int(shape[2])
	if dim != e.dim {
		return nil, fmt.Errorf("encoder: model hidden dim %d, expected %d", dim, e.dim)
	}

	data, err := outputs[0].FloatData()
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}

	hidden := make([][]float32, seqLen)
	for t := 0; t < seqLen; t++ {
		frame := make([]float32, dim)
		copy(frame, data[t*dim:(t+1)*dim])
		hidden[t] = frame
	}
	return hidden, nil
}

// Dim implements [Encoder].
func (e *ONNXEncoder) Dim() int { return e.dim }

// Close implements [Encoder].
func (e *ONNXEncoder) Close() error {
	if e.session != nil {
		err := e.session.Close()
		e.session = nil
		return err
	}
	return nil
}
