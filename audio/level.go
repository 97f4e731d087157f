package audio

import "math"

// RMS returns the root-mean-square amplitude of the samples. Silence is 0.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// MeanAbs returns the mean absolute amplitude of the samples.
func MeanAbs(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var total float64
	for _, s := range samples {
		total += math.Abs(float64(s))
	}
	return total / float64(len(samples))
}
