package colorspace

import "math"

const (
	gammaExponent = 2.4
	gammaOffset   = 0.055
	gammaScale    = 1.055
)

// ToLinear removes the display gamma from a channel value normalised to [0,1].
// Inputs outside that range are clamped.
func ToLinear(v float64) float64 {
	if math.IsNaN(v) {
		v = 0
	}
	v = Clamp(v, 0, 1)
	return math.Pow((v+gammaOffset)/gammaScale, gammaExponent)
}

// ToGamma re-applies the display gamma to a linear value and stores it back
// on the 8-bit scale. Out of range values are clamped.
func ToGamma(v float64) uint8 {
	if v <= 0 || math.IsNaN(v) {
		v = 0
	}
	encoded := (math.Pow(v, 1/gammaExponent)*gammaScale - gammaOffset) * 255
	return ClampUint8(encoded)
}

// Channel8ToLinear is ToLinear for an 8-bit sample.
func Channel8ToLinear(v uint8) float64 {
	return ToLinear(float64(v) / 255)
}

// ClampUint8 clamps v to [0,255] and truncates it.
func ClampUint8(v float64) uint8 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}

// Clamp limits v to [lo,hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
