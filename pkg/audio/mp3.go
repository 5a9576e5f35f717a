package audio

import (
	"bytes"
	"fmt"
	"io"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// MP3Decoder decodes MPEG-1/2 Layer III streams. The underlying decoder
// always emits 16-bit stereo PCM at the stream's native rate, so the output
// is downmixed to mono here.
type MP3Decoder struct{}

// Name implements [Decoder].
func (*MP3Decoder) Name() string { return "mp3" }

// Decode implements [Decoder].
func (*MP3Decoder) Decode(data []byte) (*Clip, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("audio: mp3: %w", err)
	}

	pcm, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("audio: mp3 read: %w", err)
	}
	if len(pcm) < 4 {
		return nil, fmt.Errorf("audio: mp3 stream has no samples")
	}

	// Interleaved stereo int16 little-endian.
	const channels = 2
	frames := len(pcm) / (2 * channels)
	samples := make([]float32, frames*channels)
	for i := 0; i < frames*channels; i++ {
		s := int16(pcm[2*i]) | int16(pcm[2*i+1])<<8
		samples[i] = float32(s) / 32768
	}

	return &Clip{
		Samples:        downmix(samples, channels),
		SampleRate:     d.SampleRate(),
		SourceChannels: channels,
	}, nil
}
