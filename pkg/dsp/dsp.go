// Package dsp implements the spectral analysis primitives behind feature
// extraction: MFCCs, spectral statistics, and signal complexity inputs.
//
// All entry points are pure functions of (waveform, sample rate). Inputs are
// mono float32 samples in [-1, 1]; statistics are computed frame-wise and
// averaged over time. Silence and degenerate inputs produce finite values,
// never NaN or Inf (energy floors are applied before logs and divisions).
package dsp

import (
	"math"
	"math/cmplx"
)

// Analysis frame geometry. 2048-point FFT with a 512-sample hop matches the
// window the models were trained against.
const (
	FFTSize = 2048
	HopSize = 512
)

// powerFloor keeps log and ratio computations finite on silent input.
const powerFloor = 1e-12

// frames slices the signal into overlapping Hann-windowed frames and returns
// the power spectrum of each: [numFrames][FFTSize/2+1].
//
// Signals shorter than one frame are zero-padded into a single frame so that
// every statistic remains defined for very short clips.
func frames(samples []float32) [][]float64 {
	n := len(samples)
	if n == 0 {
		return nil
	}

	numFrames := 1
	if n >= FFTSize {
		numFrames = (n-FFTSize)/HopSize + 1
	}

	window := hannWindow(FFTSize)
	half := FFTSize/2 + 1
	out := make([][]float64, numFrames)
	buf := make([]complex128, FFTSize)

	for f := 0; f < numFrames; f++ {
		offset := f * HopSize
		for i := range buf {
			buf[i] = 0
		}
		for i := 0; i < FFTSize && offset+i < n; i++ {
			buf[i] = complex(float64(samples[offset+i])*window[i], 0)
		}

		fft(buf)

		power := make([]float64, half)
		for k := 0; k < half; k++ {
			r := real(buf[k])
			im := imag(buf[k])
			power[k] = r*r + im*im
		}
		out[f] = power
	}
	return out
}

// binFreqs returns the center frequency in Hz of each power spectrum bin.
func binFreqs(sampleRate int) []float64 {
	half := FFTSize/2 + 1
	freqs := make([]float64, half)
	for k := range freqs {
		freqs[k] = float64(k) * float64(sampleRate) / float64(FFTSize)
	}
	return freqs
}

// hannWindow computes a periodic Hann window of the given length.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// hzToMel converts frequency in Hz to mel scale.
func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// melToHz converts mel scale to frequency in Hz.
func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// melFilterbank computes triangular mel filter weights:
// [numMels][FFTSize/2+1].
func melFilterbank(numMels, sampleRate int) [][]float64 {
	half := FFTSize/2 + 1

	melLow := hzToMel(0)
	melHigh := hzToMel(float64(sampleRate) / 2)

	melPoints := make([]float64, numMels+2)
	for i := range melPoints {
		melPoints[i] = melLow + float64(i)*(melHigh-melLow)/float64(numMels+1)
	}

	binIndices := make([]int, numMels+2)
	for i := range melPoints {
		hz := melToHz(melPoints[i])
		binIndices[i] = int(math.Floor(hz * float64(FFTSize) / float64(sampleRate)))
		if binIndices[i] >= half {
			binIndices[i] = half - 1
		}
	}

	fb := make([][]float64, numMels)
	for m := 0; m < numMels; m++ {
		fb[m] = make([]float64, half)
		left := binIndices[m]
		center := binIndices[m+1]
		right := binIndices[m+2]

		for k := left; k <= center; k++ {
			if center > left {
				fb[m][k] = float64(k-left) / float64(center-left)
			}
		}
		for k := center; k <= right; k++ {
			if right > center {
				fb[m][k] = float64(right-k) / float64(right-center)
			}
		}
	}
	return fb
}

// fft computes the in-place Cooley-Tukey FFT.
// The input length must be a power of 2.
func fft(x []complex128) {
	n := len(x)
	if n <= 1 {
		return
	}

	// Bit-reversal permutation.
	j := 0
	for i := 1; i < n; i++ {
		bit := n >> 1
		for j&bit != 0 {
			j ^= bit
			bit >>= 1
		}
		j ^= bit
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}

	// Butterfly operations.
	for size := 2; size <= n; size <<= 1 {
		half := size / 2
		wn := cmplx.Exp(complex(0, -2*math.Pi/float64(size)))
		for start := 0; start < n; start += size {
			w := complex(1, 0)
			for k := 0; k < half; k++ {
				u := x[start+k]
				t := w * x[start+k+half]
				x[start+k] = u + t
				x[start+k+half] = u - t
				w *= wn
			}
		}
	}
}
