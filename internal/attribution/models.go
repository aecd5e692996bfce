package attribution

import (
	"math"

	"github.com/touchflow/attribution-pipeline/internal/domain"
)

// timeDecayHalfLifeSeconds is the 7-day half-life of the time_decay model.
const timeDecayHalfLifeSeconds = 7 * 86400

// creditAssignment is the per-touchpoint output of one model application.
type creditAssignment struct {
	Credit     float64
	IsAssisted bool
}

// applyModel distributes a credit of 1.0 across an ordered touchpoint list.
// Unknown model names fall back to last_click. The returned slice is aligned
// with the input.
func applyModel(model string, touchpoints []domain.Touchpoint, conversionTimestamp int64) []creditAssignment {
	n := len(touchpoints)
	if n == 0 {
		return nil
	}

	out := make([]creditAssignment, n)

	switch model {
	case domain.ModelFirstClick:
		out[0].Credit = 1.0
		for i := 1; i < n; i++ {
			out[i].IsAssisted = true
		}

	case domain.ModelLinear:
		for i := range out {
			out[i].Credit = 1.0 / float64(n)
		}

	case domain.ModelPositionBased:
		switch n {
		case 1:
			out[0].Credit = 1.0
		case 2:
			out[0].Credit = 0.5
			out[1].Credit = 0.5
		default:
			out[0].Credit = 0.4
			out[n-1].Credit = 0.4
			middle := 0.2 / float64(n-2)
			for i := 1; i < n-1; i++ {
				out[i].Credit = middle
			}
		}

	case domain.ModelTimeDecay:
		weights := make([]float64, n)
		var sum float64
		for i, tp := range touchpoints {
			delta := conversionTimestamp - tp.Timestamp
			if delta < 0 {
				delta = 0
			}
			weights[i] = math.Exp2(-float64(delta) / float64(timeDecayHalfLifeSeconds))
			sum += weights[i]
		}
		if sum > 0 {
			for i := range out {
				out[i].Credit = weights[i] / sum
			}
		}

	case domain.ModelJShaped:
		switch n {
		case 1:
			out[0].Credit = 1.0
		case 2:
			out[0].Credit = 0.25
			out[1].Credit = 0.75
		default:
			out[0].Credit = 0.2
			out[n-1].Credit = 0.6
			middle := 0.2 / float64(n-2)
			for i := 1; i < n-1; i++ {
				out[i].Credit = middle
			}
		}

	default: // last_click and anything unrecognized
		out[n-1].Credit = 1.0
		for i := 0; i < n-1; i++ {
			out[i].IsAssisted = true
		}
	}

	return out
}
