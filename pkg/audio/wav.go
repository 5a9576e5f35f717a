package audio

import (
	"bytes"
	"fmt"

	"github.com/go-audio/wav"
)

// WAVDecoder decodes RIFF/WAVE containers (PCM and IEEE float).
type WAVDecoder struct{}

// Name implements [Decoder].
func (*WAVDecoder) Name() string { return "wav" }

// Decode implements [Decoder]. Integer PCM is scaled by the source bit
// depth; multi-channel audio is averaged to mono.
func (*WAVDecoder) Decode(data []byte) (*Clip, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, fmt.Errorf("audio: not a valid wav file")
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("audio: wav pcm: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, fmt.Errorf("audio: wav file has no samples")
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}

	bitDepth := int(d.BitDepth)
	if buf.SourceBitDepth > 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		s := float32(v) / scale
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		samples[i] = s
	}

	return &Clip{
		Samples:        downmix(samples, channels),
		SampleRate:     buf.Format.SampleRate,
		SourceChannels: channels,
	}, nil
}
