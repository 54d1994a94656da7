package fsrs

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidWeights   = errors.New("fsrs: weights out of bounds")
	ErrInvalidRetention = errors.New("fsrs: retention must be in (0, 1)")
	ErrInvalidRating    = errors.New("fsrs: rating must be again, hard, good or easy")
)

// NumWeights is the size of an FSRS-6 weight vector.
const NumWeights = 21

// DefaultWeights are the FSRS-6 defaults, used when a conf carries none.
var DefaultWeights = [NumWeights]float64{
	0.212, 1.2931, 2.3065, 8.2956,
	6.4133, 0.8334, 3.0194, 0.001,
	1.8722, 0.1666, 0.796, 1.4835,
	0.0614, 0.2629, 1.6483, 0.6014,
	1.8729, 0.5425, 0.0912, 0.0658,
	0.1542,
}

var lowerBounds = [NumWeights]float64{
	0.001, 0.001, 0.001, 0.001,
	1.0, 0.001, 0.001, 0.001,
	0.0, 0.0, 0.001, 0.001,
	0.001, 0.001, 0.0, 0.0,
	1.0, 0.0, 0.0, 0.0,
	0.1,
}

var upperBounds = [NumWeights]float64{
	100.0, 100.0, 100.0, 100.0,
	10.0, 4.0, 4.0, 0.75,
	4.5, 0.8, 3.5, 5.0,
	0.25, 0.9, 4.0, 1.0,
	6.0, 2.0, 2.0, 0.8,
	0.8,
}

// Weights turns a stored weight slice into a checked FSRS-6 vector. An empty
// slice yields DefaultWeights.
func Weights(w []float64) ([NumWeights]float64, error) {
	if len(w) == 0 {
		return DefaultWeights, nil
	}
	var out [NumWeights]float64
	if len(w) != NumWeights {
		return out, fmt.Errorf("%w: want %d weights, got %d", ErrInvalidWeights, NumWeights, len(w))
	}
	for i, v := range w {
		if v < lowerBounds[i] || v > upperBounds[i] {
			return out, fmt.Errorf("%w: w[%d] = %f, bounds [%f, %f]",
				ErrInvalidWeights, i, v, lowerBounds[i], upperBounds[i])
		}
		out[i] = v
	}
	return out, nil
}
