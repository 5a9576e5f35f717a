// Package audio loads and normalizes audio clips for the detection pipeline.
//
// # Pipeline
//
// A clip goes through up to three steps:
//
//  1. Decode: an ordered list of container decoders is tried until one
//     succeeds (WAV first, then MP3).
//  2. Downmix: multi-channel audio is averaged to mono.
//  3. Resample: callers that need the canonical model rate (16 kHz) call
//     [Resample] or [ToModelRate].
//
// The result is a [Clip]: mono float32 samples in [-1, 1] at a known rate.
// Clips are immutable once returned; the pipeline invocation that loaded a
// clip owns it for the lifetime of the request.
//
// # Failure Mode
//
// If every decoder rejects the input, [Loader.Load] returns an error
// wrapping [ErrDecode]. Callers must not proceed to feature extraction on a
// failed load.
package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// ModelRate is the canonical sample rate expected by the neural models.
const ModelRate = 16000

// DefaultMaxDecodeBytes bounds how large a file Load will read into memory.
// Audio is decoded fully in memory, so unbounded input is a resource risk.
const DefaultMaxDecodeBytes = 100 << 20 // 100 MiB

// Sentinel errors.
var (
	// ErrDecode is returned when no decoder can handle the input.
	ErrDecode = errors.New("audio: decode failed")

	// ErrTooLarge is returned when the input exceeds the decode size limit.
	ErrTooLarge = errors.New("audio: input exceeds decode size limit")
)

// Clip is an immutable in-memory mono waveform.
type Clip struct {
	// Samples are mono float32 samples in [-1, 1].
	Samples []float32

	// SampleRate is the rate of Samples in Hz.
	SampleRate int

	// SourceChannels is the channel count of the original container
	// before downmixing.
	SourceChannels int

	// Path is the source file path, when known.
	Path string
}

// Duration returns the clip length.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / float64(c.SampleRate) * float64(time.Second))
}

// Filename returns the base name of the source path, or "unknown".
func (c *Clip) Filename() string {
	if c.Path == "" {
		return "unknown"
	}
	return filepath.Base(c.Path)
}

// Decoder decodes one container format into a Clip.
// Implementations receive the full file contents.
type Decoder interface {
	// Name identifies the decoder in logs (e.g., "wav").
	Name() string

	// Decode parses data into a mono clip at the container's native rate.
	Decode(data []byte) (*Clip, error)
}

// Loader decodes audio files using an ordered list of decoder strategies.
// The zero value is not usable; construct with NewLoader.
type Loader struct {
	decoders []Decoder
	maxBytes int64
	log      *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithDecoders replaces the default decoder list. Decoders are tried in
// order; the first success wins.
func WithDecoders(decoders ...Decoder) LoaderOption {
	return func(l *Loader) {
		if len(decoders) > 0 {
			l.decoders = decoders
		}
	}
}

// WithMaxDecodeBytes sets the input size limit. Zero or negative keeps the
// default.
func WithMaxDecodeBytes(n int64) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.maxBytes = n
		}
	}
}

// WithLogger sets the logger. Nil keeps slog.Default.
func WithLogger(log *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLoader creates a Loader with the default decoder order (WAV, MP3).
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		decoders: []Decoder{&WAVDecoder{}, &MP3Decoder{}},
		maxBytes: DefaultMaxDecodeBytes,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads and decodes the file at path. The returned clip is mono at the
// container's native sample rate.
func (l *Loader) Load(path string) (*Clip, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("audio: stat %s: %w", path, err)
	}
	if info.Size() > l.maxBytes {
		return nil, fmt.Errorf("audio: %s is %d bytes: %w", path, info.Size(), ErrTooLarge)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("audio: read %s: %w", path, err)
	}

	clip, err := l.Decode(data)
	if err != nil {
		return nil, err
	}
	clip.Path = path
	return clip, nil
}

// Decode tries each decoder in order on the raw file contents.
func (l *Loader) Decode(data []byte) (*Clip, error) {
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("audio: input is %d bytes: %w", len(data), ErrTooLarge)
	}

	var lastErr error
	for _, d := range l.decoders {
		clip, err := d.Decode(data)
		if err == nil {
			return clip, nil
		}
		l.log.Debug("audio decoder rejected input", "decoder", d.Name(), "err", err)
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no decoders configured")
	}
	return nil, fmt.Errorf("%w: %v", ErrDecode, lastErr)
}

// downmix averages interleaved multi-channel samples to mono in a new slice.
// For mono input it returns the slice unchanged.
func downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += samples[i*channels+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
