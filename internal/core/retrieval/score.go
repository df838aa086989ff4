package retrieval

import "math"

// NormalizeMinMax rescales scores into [0,1]. A vector whose values are all
// equal (numpy isclose tolerances) maps to all ones.
func NormalizeMinMax(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	if isClose(hi, lo) {
		for i := range out {
			out[i] = 1
		}
		return out
	}

	span := hi - lo
	for i, s := range scores {
		out[i] = (s - lo) / span
	}
	return out
}

func isClose(a, b float64) bool {
	return math.Abs(a-b) <= 1e-8+1e-5*math.Abs(b)
}

// Cosine is dot(a,b) / (|a| * (|b| + 1e-8)). A zero document vector scores 0.
func Cosine(a, b []float32) float64 {
	return cosineWithNorm(a, norm(a), b, norm(b))
}

func cosineWithNorm(doc []float32, docNorm float64, query []float32, queryNorm float64) float64 {
	denom := docNorm * (queryNorm + 1e-8)
	if denom == 0 {
		return 0
	}
	return dot(doc, query) / denom
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
