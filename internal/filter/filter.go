package filter

import (
	"math"
)

const KERNEL_RADIUS_SDS = 3 // Gaussian kernel extent in standard deviations

// Gaussian convolves the signal with a normalized Gaussian kernel of the
// given standard deviation (seconds). Near the edges the kernel is
// renormalized over the in-bounds samples, so constant signals pass through
// unchanged.
func Gaussian(signal []float64, fs, sd float64) []float64 {
	radius := int(math.Ceil(KERNEL_RADIUS_SDS * sd * fs))
	if radius < 1 {
		out := make([]float64, len(signal))
		copy(out, signal)
		return out
	}

	kernel := make([]float64, 2*radius+1)
	sigma := sd * fs
	for i := range kernel {
		x := float64(i - radius)
		kernel[i] = math.Exp(-x * x / (2 * sigma * sigma))
	}

	out := make([]float64, len(signal))
	for i := range signal {
		var acc, norm float64
		for k, w := range kernel {
			j := i + k - radius
			if j < 0 || j >= len(signal) {
				continue
			}
			acc += w * signal[j]
			norm += w
		}
		out[i] = acc / norm
	}
	return out
}

// Boxcar is a moving average over a centered window of the given width in
// samples, shrinking the window at the edges.
func Boxcar(signal []float64, width int) []float64 {
	out := make([]float64, len(signal))
	if width < 2 {
		copy(out, signal)
		return out
	}
	half := width / 2
	for i := range signal {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi >= len(signal) {
			hi = len(signal) - 1
		}
		var acc float64
		for j := lo; j <= hi; j++ {
			acc += signal[j]
		}
		out[i] = acc / float64(hi-lo+1)
	}
	return out
}
