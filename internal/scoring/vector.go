package scoring

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformedVector is returned when two vectors of different length are compared.
// It points at a misbehaving embedding provider and is never recovered from.
var ErrMalformedVector = errors.New("malformed vector")

// Cosine returns the cosine similarity of a and b in [-1, 1].
// a and b must have the same length. A zero-magnitude vector yields 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: length %d vs %d", ErrMalformedVector, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(-1, math.Min(1, sim)), nil
}

// Coverage scores how well candidate covers every requirement in query: for
// each query vector it takes the best cosine against all candidate vectors and
// averages those maxima. Negative maxima count as no coverage.
//
// The scan is exhaustive on purpose; any shortcut must keep exact per-row maxima.
func Coverage(query, candidate [][]float32) (float64, error) {
	if len(query) == 0 || len(candidate) == 0 {
		return 0, nil
	}
	var sum float64
	for _, q := range query {
		best := math.Inf(-1)
		for _, c := range candidate {
			sim, err := Cosine(q, c)
			if err != nil {
				return 0, err
			}
			if sim > best {
				best = sim
			}
		}
		sum += math.Max(0, best)
	}
	return sum / float64(len(query)), nil
}
