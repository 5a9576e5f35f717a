package classifier

import (
	"context"
	"fmt"

	"github.com/naveensanjula975/VocalGuard/pkg/audio"
	"github.com/naveensanjula975/VocalGuard/pkg/encoder"
	"github.com/naveensanjula975/VocalGuard/pkg/onnx"
)

// PrimaryModelID identifies the fine-tuned pretrained audio classifier.
const PrimaryModelID = "wav2vec2-xlsr-deepfake"

// Primary is the pretrained audio-classification model: an exported ONNX
// graph that maps a 16 kHz waveform tensor [1, samples] to class logits
// [1, classes].
//
// A loaded Primary is shared read-only across concurrent requests; the
// session allocates fresh output tensors per call.
type Primary struct {
	session    *onnx.Session
	schema     LabelSchema
	modelID    string
	inputName  string
	outputName string
}

// PrimaryOption configures a Primary.
type PrimaryOption func(*Primary)

// WithPrimaryTensorNames sets the input and output tensor names.
// Defaults: "input_values" and "logits".
func WithPrimaryTensorNames(input, output string) PrimaryOption {
	return func(p *Primary) {
		p.inputName = input
		p.outputName = output
	}
}

// WithPrimaryModelID overrides the reported model identifier.
func WithPrimaryModelID(id string) PrimaryOption {
	return func(p *Primary) {
		if id != "" {
			p.modelID = id
		}
	}
}

// NewPrimary loads the classifier graph from an injected model path. The
// schema is the label contract for the graph's logit order.
func NewPrimary(env *onnx.Env, modelPath string, schema LabelSchema, opts ...PrimaryOption) (*Primary, error) {
	p := &Primary{
		schema:     schema,
		modelID:    PrimaryModelID,
		inputName:  "input_values",
		outputName: "logits",
	}
	for _, opt := range opts {
		opt(p)
	}

	session, err := env.NewSessionFromFile(modelPath)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	p.session = session
	return p, nil
}

// ModelID returns the model identifier.
func (p *Primary) ModelID() string { return p.modelID }

// Detect classifies a clip. The clip is resampled to the model rate and
// truncated to the encoder's duration cap before the forward pass.
// Failures are returned as error-shaped results, never as Go errors.
func (p *Primary) Detect(ctx context.Context, clip *audio.Clip) Result {
	if err := ctx.Err(); err != nil {
		return ErrorResult(p.modelID, err)
	}

	model, err := audio.ToModelRate(clip)
	if err != nil {
		return ErrorResult(p.modelID, err)
	}

	samples := encoder.Truncate(model.Samples)
	if len(samples) == 0 {
		return ErrorResult(p.modelID, fmt.Errorf("classifier: empty waveform"))
	}

	input, err := onnx.NewTensor([]int64{1, int64(len(samples))}, samples)
	if err != nil {
		return ErrorResult(p.modelID, err)
	}
	defer input.Close()

	outputs, err := p.session.Run([]string{p.inputName}, []*onnx.Tensor{input}, []string{p.outputName})
	if err != nil {
		return ErrorResult(p.modelID, err)
	}
	defer outputs[0].Close()

	logits, err := outputs[0].FloatData()
	if err != nil {
		return ErrorResult(p.modelID, err)
	}
	if len(logits) == 0 {
		return ErrorResult(p.modelID, fmt.Errorf("classifier: model produced no logits"))
	}

	return p.schema.Classify(Softmax(logits), p.modelID)
}

// Close releases the session.
func (p *Primary) Close() error {
	if p.session != nil {
		err := p.session.Close()
		p.session = nil
		return err
	}
	return nil
}
