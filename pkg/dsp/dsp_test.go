package dsp

import (
	"math"
	"testing"
)

func makeSine(freq float64, n, sampleRate int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate)))
	}
	return out
}

func TestMFCCShape(t *testing.T) {
	const sampleRate = 16000
	samples := makeSine(440, sampleRate, sampleRate) // 1 second

	coeffs := MFCC(samples, sampleRate, 40)
	if len(coeffs) == 0 {
		t.Fatal("expected at least one frame")
	}

	expectedFrames := (len(samples)-FFTSize)/HopSize + 1
	if len(coeffs) != expectedFrames {
		t.Errorf("expected %d frames, got %d", expectedFrames, len(coeffs))
	}
	for i, frame := range coeffs {
		if len(frame) != 40 {
			t.Fatalf("frame %d: expected 40 coefficients, got %d", i, len(frame))
		}
		for j, v := range frame {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Errorf("frame %d coeff %d: non-finite value %f", i, j, v)
			}
		}
	}
}

func TestMFCCShortSignal(t *testing.T) {
	// Shorter than one FFT frame; zero-padding should still yield one frame.
	samples := makeSine(440, 100, 16000)
	coeffs := MFCC(samples, 16000, 40)
	if len(coeffs) != 1 {
		t.Fatalf("expected 1 frame for short signal, got %d", len(coeffs))
	}
}

func TestMeanVar(t *testing.T) {
	coeffs := [][]float64{
		{1, 10},
		{3, 10},
	}
	mean, variance := MeanVar(coeffs)
	if len(mean) != 2 || len(variance) != 2 {
		t.Fatalf("expected 2 values, got %d and %d", len(mean), len(variance))
	}
	if mean[0] != 2 || mean[1] != 10 {
		t.Errorf("mean = %v, want [2 10]", mean)
	}
	if variance[0] != 1 || variance[1] != 0 {
		t.Errorf("variance = %v, want [1 0]", variance)
	}
}

func TestSpectralCentroidTracksFrequency(t *testing.T) {
	const sampleRate = 16000
	low := SpectralCentroid(makeSine(300, sampleRate, sampleRate), sampleRate)
	high := SpectralCentroid(makeSine(4000, sampleRate, sampleRate), sampleRate)

	if low >= high {
		t.Errorf("centroid should track frequency: low %f >= high %f", low, high)
	}
	// A pure tone's centroid should land near the tone.
	if math.Abs(high-4000) > 500 {
		t.Errorf("centroid %f too far from 4000 Hz tone", high)
	}
}

func TestSpectralRolloffBounds(t *testing.T) {
	const sampleRate = 16000
	samples := makeSine(1000, sampleRate, sampleRate)
	roll := SpectralRolloff(samples, sampleRate, DefaultRolloff)
	if roll <= 0 || roll > float64(sampleRate)/2 {
		t.Errorf("rolloff %f outside (0, Nyquist]", roll)
	}
}

func TestZeroCrossingRate(t *testing.T) {
	const sampleRate = 16000
	low := ZeroCrossingRate(makeSine(100, sampleRate, sampleRate))
	high := ZeroCrossingRate(makeSine(6000, sampleRate, sampleRate))

	if low < 0 || low > 1 || high < 0 || high > 1 {
		t.Fatalf("rates outside [0, 1]: low %f high %f", low, high)
	}
	if low >= high {
		t.Errorf("higher frequency should cross more: low %f >= high %f", low, high)
	}
	if zcr := ZeroCrossingRate(make([]float32, sampleRate)); zcr != 0 {
		t.Errorf("silence ZCR = %f, want 0", zcr)
	}
}

func TestSpectralFlatness(t *testing.T) {
	const sampleRate = 16000
	tone := SpectralFlatness(makeSine(440, sampleRate, sampleRate))

	// White-ish noise via a deterministic ramp of alternating samples.
	noise := make([]float32, sampleRate)
	seed := uint64(1)
	for i := range noise {
		seed = seed*6364136223846793005 + 1442695040888963407
		noise[i] = float32(int64(seed>>33))/float32(1<<30) - 1
	}
	noisy := SpectralFlatness(noise)

	if tone < 0 || tone > 1 || noisy < 0 || noisy > 1 {
		t.Fatalf("flatness outside [0, 1]: tone %f noise %f", tone, noisy)
	}
	if tone >= noisy {
		t.Errorf("tone should be less flat than noise: %f >= %f", tone, noisy)
	}
}

func TestSpectralBandwidthFinite(t *testing.T) {
	const sampleRate = 16000
	bw := SpectralBandwidth(makeSine(440, sampleRate, sampleRate), sampleRate)
	if math.IsNaN(bw) || math.IsInf(bw, 0) || bw < 0 {
		t.Errorf("bandwidth %f not a finite non-negative value", bw)
	}
}

func TestSpectralContrastFinite(t *testing.T) {
	const sampleRate = 16000
	c := SpectralContrast(makeSine(440, sampleRate, sampleRate), sampleRate)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		t.Errorf("contrast %f not finite", c)
	}
}

func TestSilenceDescriptorsFinite(t *testing.T) {
	silence := make([]float32, 16000)
	const sampleRate = 16000

	values := map[string]float64{
		"centroid":  SpectralCentroid(silence, sampleRate),
		"rolloff":   SpectralRolloff(silence, sampleRate, DefaultRolloff),
		"zcr":       ZeroCrossingRate(silence),
		"flatness":  SpectralFlatness(silence),
		"contrast":  SpectralContrast(silence, sampleRate),
		"bandwidth": SpectralBandwidth(silence, sampleRate),
	}
	for name, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s on silence: non-finite value %f", name, v)
		}
	}
}
