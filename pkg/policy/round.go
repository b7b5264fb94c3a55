package policy

import "math"

// FullRound rounds each value to the given number of decimal digits while
// carrying the rounding error forward, so the rounded values keep the sum
// of the inputs.
func FullRound(xs []float64, digits int) []float64 {
	scale := math.Pow(10, float64(digits))
	out := make([]float64, len(xs))
	carry := 0.0
	for i, x := range xs {
		y := x + carry
		r := math.Round(y*scale) / scale
		carry = y - r
		out[i] = r
	}
	return out
}
