package demod

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// PowerSpectrum returns the one-sided power spectrum of samples in dB, with
// the frequency of each bin in Hz.
func PowerSpectrum(samples []float64, sampleRate float64) (freqs, powerDB []float64) {
	n := len(samples)
	if n == 0 {
		return nil, nil
	}

	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, samples)

	freqs = make([]float64, len(coeff))
	powerDB = make([]float64, len(coeff))
	norm := 1 / float64(n*n)
	for i, c := range coeff {
		freqs[i] = fft.Freq(i) * sampleRate
		p := (real(c)*real(c) + imag(c)*imag(c)) * norm
		if p < 1e-30 {
			p = 1e-30
		}
		powerDB[i] = 10 * math.Log10(p)
	}
	return freqs, powerDB
}

// PeakFrequency is the frequency of the strongest non-DC bin.
func PeakFrequency(samples []float64, sampleRate float64) float64 {
	freqs, power := PowerSpectrum(samples, sampleRate)
	if len(power) < 2 {
		return 0
	}
	return freqs[floats.MaxIdx(power[1:])+1]
}
