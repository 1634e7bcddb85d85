package analysis

import (
	"errors"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

var ErrTooShort = errors.New("analysis: series too short")

// FFT computes the discrete Fourier transform of data, zero-padded to the
// next power of two.
func FFT(data []float64) []complex128 {
	n := nextPow2(len(data))
	padded := make([]float64, n)
	copy(padded, data)
	return fft.FFTReal(padded)
}

// PowerSpectrum returns the magnitudes of the non-negative frequency bins of
// the detrended series.
func PowerSpectrum(data []float64) []float64 {
	spec := FFT(Detrend(data))
	ps := make([]float64, len(spec)/2)
	for i := range ps {
		ps[i] = cmplx.Abs(spec[i])
	}
	return ps
}

// Detrend removes the least-squares line from data.
func Detrend(data []float64) []float64 {
	n := float64(len(data))
	out := make([]float64, len(data))
	if len(data) < 2 {
		return out
	}
	var sx, sy, sxx, sxy float64
	for i, y := range data {
		x := float64(i)
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	slope := (n*sxy - sx*sy) / (n*sxx - sx*sx)
	intercept := (sy - slope*sx) / n
	for i, y := range data {
		out[i] = y - (intercept + slope*float64(i))
	}
	return out
}

// DominantPeriod returns the period of the strongest non-zero frequency in
// data sampled every dt, in the units of dt.
func DominantPeriod(data []float64, dt float64) (float64, error) {
	if len(data) < 4 {
		return 0, ErrTooShort
	}
	if dt <= 0 {
		return 0, errors.New("analysis: dt must be positive")
	}
	ps := PowerSpectrum(data)
	best := 1
	for k := 2; k < len(ps); k++ {
		if ps[k] > ps[best] {
			best = k
		}
	}
	n := nextPow2(len(data))
	return float64(n) * dt / float64(best), nil
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
