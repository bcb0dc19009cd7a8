package embedding

import "math"

// Normalize returns v scaled to unit length. Zero vectors are returned as zeros.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	result := make([]float32, len(v))
	if sum == 0 {
		return result
	}
	mag := math.Sqrt(sum)
	for i, x := range v {
		result[i] = float32(float64(x) / mag)
	}
	return result
}

// Quality scores a vector in [0,1] using cheap structural checks:
// expected dimension (0.3), all components finite (0.2), magnitude in (0.1, 10) (0.2),
// variance above 0.001 (0.15) and source text longer than 10 characters (0.15).
func Quality(v []float32, text string, dims int) float64 {
	score := 0.0
	if len(v) == dims {
		score += 0.3
	}

	finite := true
	var sum, sumSq float64
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			finite = false
			break
		}
		sum += f
		sumSq += f * f
	}
	if !finite {
		return score
	}
	score += 0.2

	mag := math.Sqrt(sumSq)
	if mag > 0.1 && mag < 10 {
		score += 0.2
	}
	if n := float64(len(v)); n > 0 {
		mean := sum / n
		if sumSq/n-mean*mean > 0.001 {
			score += 0.15
		}
	}
	if len(text) > 10 {
		score += 0.15
	}
	return math.Min(score, 1)
}
