package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts a clip to the target sample rate. If the clip is
// already at the target rate it is returned unchanged.
func Resample(c *Clip, rate int) (*Clip, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("audio: invalid target rate %d", rate)
	}
	if c.SampleRate == rate {
		return c, nil
	}
	if c.SampleRate <= 0 {
		return nil, fmt.Errorf("audio: clip has invalid sample rate %d", c.SampleRate)
	}

	config := &resampling.Config{
		InputRate:  float64(c.SampleRate),
		OutputRate: float64(rate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	}
	r, err := resampling.New(config)
	if err != nil {
		return nil, fmt.Errorf("audio: create resampler: %w", err)
	}

	input := make([]float64, len(c.Samples))
	for i, s := range c.Samples {
		input[i] = float64(s)
	}

	output, err := r.Process(input)
	if err != nil {
		return nil, fmt.Errorf("audio: resample %d->%d: %w", c.SampleRate, rate, err)
	}

	samples := make([]float32, len(output))
	for i, s := range output {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		samples[i] = float32(s)
	}

	return &Clip{
		Samples:        samples,
		SampleRate:     rate,
		SourceChannels: c.SourceChannels,
		Path:           c.Path,
	}, nil
}

// ToModelRate converts a clip to the canonical model rate (16 kHz).
func ToModelRate(c *Clip) (*Clip, error) {
	return Resample(c, ModelRate)
}
