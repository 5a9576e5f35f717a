package dsp

import "math"

// DefaultRolloff is the cumulative-energy fraction used by
// [SpectralRolloff].
const DefaultRolloff = 0.85

// contrastBands is the number of octave bands used by [SpectralContrast].
const contrastBands = 6

// SpectralCentroid returns the magnitude-weighted mean frequency in Hz,
// averaged over frames. Silent input returns 0.
func SpectralCentroid(samples []float32, sampleRate int) float64 {
	power := frames(samples)
	if power == nil {
		return 0
	}
	freqs := binFreqs(sampleRate)

	var total float64
	for _, spec := range power {
		var num, den float64
		for k, p := range spec {
			num += freqs[k] * p
			den += p
		}
		if den > powerFloor {
			total += num / den
		}
	}
	return total / float64(len(power))
}

// SpectralRolloff returns the frequency in Hz below which the given
// fraction of spectral energy lies (default 0.85), averaged over frames.
func SpectralRolloff(samples []float32, sampleRate int, roll float64) float64 {
	if roll <= 0 || roll > 1 {
		roll = DefaultRolloff
	}
	power := frames(samples)
	if power == nil {
		return 0
	}
	freqs := binFreqs(sampleRate)

	var total float64
	for _, spec := range power {
		var sum float64
		for _, p := range spec {
			sum += p
		}
		if sum <= powerFloor {
			continue
		}
		threshold := roll * sum
		var cum float64
		for k, p := range spec {
			cum += p
			if cum >= threshold {
				total += freqs[k]
				break
			}
		}
	}
	return total / float64(len(power))
}

// ZeroCrossingRate returns the mean fraction of adjacent sample pairs whose
// signs differ, computed per frame and averaged. The result is in [0, 1].
func ZeroCrossingRate(samples []float32) float64 {
	n := len(samples)
	if n < 2 {
		return 0
	}

	numFrames := 1
	if n >= FFTSize {
		numFrames = (n-FFTSize)/HopSize + 1
	}

	var total float64
	for f := 0; f < numFrames; f++ {
		offset := f * HopSize
		end := offset + FFTSize
		if end > n {
			end = n
		}
		if end-offset < 2 {
			continue
		}
		crossings := 0
		for i := offset + 1; i < end; i++ {
			if (samples[i-1] >= 0) != (samples[i] >= 0) {
				crossings++
			}
		}
		total += float64(crossings) / float64(end-offset-1)
	}
	return total / float64(numFrames)
}

// SpectralFlatness returns the ratio of the geometric to the arithmetic
// mean of the power spectrum, averaged over frames. Values near 1 indicate
// noise-like spectra; values near 0 indicate tonal spectra.
func SpectralFlatness(samples []float32) float64 {
	power := frames(samples)
	if power == nil {
		return 0
	}

	var total float64
	for _, spec := range power {
		var logSum, sum float64
		for _, p := range spec {
			if p < powerFloor {
				p = powerFloor
			}
			logSum += math.Log(p)
			sum += p
		}
		n := float64(len(spec))
		geo := math.Exp(logSum / n)
		arith := sum / n
		if arith > 0 {
			total += geo / arith
		}
	}
	flatness := total / float64(len(power))
	if flatness > 1 {
		flatness = 1
	}
	return flatness
}

// SpectralContrast returns the mean peak-to-valley power ratio in dB across
// octave bands and frames. Higher values indicate spectra with pronounced
// harmonic structure against a noise floor.
func SpectralContrast(samples []float32, sampleRate int) float64 {
	power := frames(samples)
	if power == nil {
		return 0
	}

	// Octave band edges starting at 200 Hz, capped at Nyquist.
	nyquist := float64(sampleRate) / 2
	edges := make([]float64, contrastBands+1)
	edges[0] = 200
	for i := 1; i <= contrastBands; i++ {
		edges[i] = edges[i-1] * 2
		if edges[i] > nyquist {
			edges[i] = nyquist
		}
	}
	freqs := binFreqs(sampleRate)

	var total float64
	var count int
	for _, spec := range power {
		for b := 0; b < contrastBands; b++ {
			lo, hi := edges[b], edges[b+1]
			if hi <= lo {
				continue
			}
			peak, valley := 0.0, math.MaxFloat64
			seen := false
			for k, f := range freqs {
				if f < lo || f >= hi {
					continue
				}
				p := spec[k]
				if p < powerFloor {
					p = powerFloor
				}
				if p > peak {
					peak = p
				}
				if p < valley {
					valley = p
				}
				seen = true
			}
			if !seen {
				continue
			}
			total += 10 * math.Log10(peak/valley)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// SpectralBandwidth returns the power-weighted standard deviation of
// frequency around the spectral centroid in Hz, averaged over frames.
func SpectralBandwidth(samples []float32, sampleRate int) float64 {
	power := frames(samples)
	if power == nil {
		return 0
	}
	freqs := binFreqs(sampleRate)

	var total float64
	for _, spec := range power {
		var num, den float64
		for k, p := range spec {
			num += freqs[k] * p
			den += p
		}
		if den <= powerFloor {
			continue
		}
		centroid := num / den
		var spread float64
		for k, p := range spec {
			d := freqs[k] - centroid
			spread += p * d * d
		}
		total += math.Sqrt(spread / den)
	}
	return total / float64(len(power))
}
