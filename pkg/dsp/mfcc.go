package dsp

import "math"

// NumMels is the mel filterbank resolution used for MFCC extraction.
const NumMels = 128

// MFCC extracts mel-frequency cepstral coefficients.
// Returns [numFrames][nCoeff] coefficients, or nil for empty input.
//
// Per frame: power spectrum → mel filterbank → log energies →
// orthonormal DCT-II, keeping the first nCoeff coefficients.
func MFCC(samples []float32, sampleRate, nCoeff int) [][]float64 {
	if len(samples) == 0 || nCoeff <= 0 {
		return nil
	}

	power := frames(samples)
	if power == nil {
		return nil
	}
	fb := melFilterbank(NumMels, sampleRate)

	out := make([][]float64, len(power))
	logMel := make([]float64, NumMels)
	for f, ps := range power {
		for m := 0; m < NumMels; m++ {
			var energy float64
			for k, w := range fb[m] {
				if w != 0 {
					energy += w * ps[k]
				}
			}
			if energy < powerFloor {
				energy = powerFloor
			}
			logMel[m] = math.Log(energy)
		}
		out[f] = dct2(logMel, nCoeff)
	}
	return out
}

// MeanVar computes the per-coefficient mean and population variance over
// time. Input is [numFrames][nCoeff]; outputs have length nCoeff.
func MeanVar(coeffs [][]float64) (mean, variance []float64) {
	if len(coeffs) == 0 {
		return nil, nil
	}
	n := len(coeffs[0])
	mean = make([]float64, n)
	variance = make([]float64, n)

	for _, frame := range coeffs {
		for i, v := range frame {
			mean[i] += v
		}
	}
	inv := 1.0 / float64(len(coeffs))
	for i := range mean {
		mean[i] *= inv
	}
	for _, frame := range coeffs {
		for i, v := range frame {
			d := v - mean[i]
			variance[i] += d * d
		}
	}
	for i := range variance {
		variance[i] *= inv
	}
	return mean, variance
}

// dct2 computes the orthonormal DCT-II of x, returning the first n
// coefficients.
func dct2(x []float64, n int) []float64 {
	N := len(x)
	if n > N {
		n = N
	}
	out := make([]float64, n)
	scale0 := math.Sqrt(1.0 / float64(N))
	scale := math.Sqrt(2.0 / float64(N))
	for k := 0; k < n; k++ {
		var sum float64
		for i := 0; i < N; i++ {
			sum += x[i] * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(N)))
		}
		if k == 0 {
			out[k] = sum * scale0
		} else {
			out[k] = sum * scale
		}
	}
	return out
}
