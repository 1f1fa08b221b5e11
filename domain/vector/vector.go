// Package vector provides pure dimension math for embedding vectors:
// projection between dimensions, L2 normalization, and cosine similarity.
package vector

import "math"

// Scale projects a vector to the target dimension. Downsampling averages
// contiguous buckets of r = len(vec)/target cells; upsampling linearly
// interpolates over r = (len(vec)-1)/(target-1). The result is always
// L2-normalized so cosine comparisons against stored vectors stay valid.
func Scale(vec []float64, target int) []float64 {
	if target <= 0 || len(vec) == 0 {
		return []float64{}
	}
	if len(vec) == target {
		return Normalize(vec)
	}

	scaled := make([]float64, target)
	if len(vec) > target {
		// Downsample: average the contiguous cells covering each output slot.
		r := float64(len(vec)) / float64(target)
		for i := 0; i < target; i++ {
			start := int(math.Floor(float64(i) * r))
			end := int(math.Floor(float64(i+1) * r))
			if end <= start {
				end = start + 1
			}
			if end > len(vec) {
				end = len(vec)
			}
			var sum float64
			for j := start; j < end; j++ {
				sum += vec[j]
			}
			scaled[i] = sum / float64(end-start)
		}
	} else {
		// Upsample: linear interpolation between the two nearest source cells.
		if len(vec) == 1 {
			for i := range scaled {
				scaled[i] = vec[0]
			}
			return Normalize(scaled)
		}
		r := float64(len(vec)-1) / float64(target-1)
		for i := 0; i < target; i++ {
			pos := float64(i) * r
			lo := int(math.Floor(pos))
			hi := lo + 1
			if hi > len(vec)-1 {
				hi = len(vec) - 1
			}
			frac := pos - float64(lo)
			scaled[i] = vec[lo]*(1-frac) + vec[hi]*frac
		}
	}

	return Normalize(scaled)
}

// Normalize returns an L2-normalized copy of the vector. A zero vector is
// returned as an unchanged copy since it has no direction to preserve.
func Normalize(vec []float64) []float64 {
	result := make([]float64, len(vec))
	copy(result, vec)

	var sumSquares float64
	for _, v := range vec {
		sumSquares += v * v
	}
	if sumSquares == 0 {
		return result
	}

	mag := math.Sqrt(sumSquares)
	for i := range result {
		result[i] /= mag
	}
	return result
}

// Magnitude returns the L2 norm of the vector.
func Magnitude(vec []float64) float64 {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += v * v
	}
	return math.Sqrt(sumSquares)
}

// Cosine computes the cosine similarity between two vectors.
// Returns a value between -1 (opposite) and 1 (identical).
// Returns 0 for mismatched lengths or zero-magnitude inputs.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, magA, magB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}

	if magA == 0 || magB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(magA) * math.Sqrt(magB))
}
