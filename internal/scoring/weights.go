package scoring

import (
	"errors"
	"fmt"
)

// Weights is the convex blend applied to the sub-scores. A zero weight turns
// the corresponding signal off; it is then neither computed nor reported.
type Weights struct {
	Semantic   float64 `json:"semantic"`
	Keywords   float64 `json:"keywords"`
	Education  float64 `json:"education"`
	Experience float64 `json:"experience"`
	Skills     float64 `json:"skills"`
}

// DefaultWeights blends semantic coverage with keyword overlap and the
// education and experience heuristics. Skills are off unless configured.
func DefaultWeights() Weights {
	return Weights{
		Semantic:   0.50,
		Keywords:   0.20,
		Education:  0.15,
		Experience: 0.15,
	}
}

func (w Weights) sum() float64 {
	return w.Semantic + w.Keywords + w.Education + w.Experience + w.Skills
}

// Validate rejects negative weights and a blend with nothing in it.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"semantic":   w.Semantic,
		"keywords":   w.Keywords,
		"education":  w.Education,
		"experience": w.Experience,
		"skills":     w.Skills,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s must not be negative, got %v", name, v)
		}
	}
	if w.sum() <= 0 {
		return errors.New("at least one weight must be positive")
	}
	return nil
}

// Normalized rescales the weights so they sum to 1.0.
func (w Weights) Normalized() Weights {
	s := w.sum()
	if s <= 0 {
		return w
	}
	return Weights{
		Semantic:   w.Semantic / s,
		Keywords:   w.Keywords / s,
		Education:  w.Education / s,
		Experience: w.Experience / s,
		Skills:     w.Skills / s,
	}
}
