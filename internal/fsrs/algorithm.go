package fsrs

import (
	"math"

	"github.com/at-ishikawa/flashq/internal/schema"
)

// model holds one weight vector with its derived forgetting-curve constants.
type model struct {
	w      [NumWeights]float64
	decay  float64
	factor float64
}

func newModel(w [NumWeights]float64) model {
	decay := -w[20]
	return model{w: w, decay: decay, factor: math.Pow(0.9, 1/decay) - 1}
}

// grade maps a rating onto the 1..4 scale the formulas use.
func grade(r schema.Rating) float64 {
	return float64(r - schema.RatingAgain + 1)
}

// retrievability is R(t, S) = (1 + factor*t/S)^decay.
func (m *model) retrievability(elapsedDays, stability float64) float64 {
	if stability <= 0 {
		return 0
	}
	return math.Pow(1+m.factor*elapsedDays/stability, m.decay)
}

func (m *model) initStability(r schema.Rating) float64 {
	return clampStability(m.w[int(grade(r))-1])
}

// initDifficulty is D0(G) = w4 - e^(w5*(G-1)) + 1.
func (m *model) initDifficulty(r schema.Rating) float64 {
	return m.w[4] - math.Exp(m.w[5]*(grade(r)-1)) + 1
}

// interval converts stability into whole days at the desired retention,
// within [1, maxInterval].
func (m *model) interval(stability, retention float64, maxInterval int) int {
	days := int(math.Round(stability / m.factor * (math.Pow(retention, 1/m.decay) - 1)))
	return min(max(days, 1), maxInterval)
}

// shortTermStability updates S for a second review on the same logical day.
func (m *model) shortTermStability(s float64, r schema.Rating) float64 {
	inc := math.Exp(m.w[17]*(grade(r)-3+m.w[18])) * math.Pow(s, -m.w[19])
	if r >= schema.RatingGood {
		inc = math.Max(inc, 1)
	}
	return clampStability(s * inc)
}

// nextDifficulty applies linear damping and mean reversion towards D0(Easy).
func (m *model) nextDifficulty(d float64, r schema.Rating) float64 {
	delta := -m.w[6] * (grade(r) - 3)
	damped := d + (10-d)*delta/9
	return clampDifficulty(m.w[7]*m.initDifficulty(schema.RatingEasy) + (1-m.w[7])*damped)
}

func (m *model) nextStability(d, s, retr float64, r schema.Rating) float64 {
	if r == schema.RatingAgain {
		long := m.w[11] * math.Pow(d, -m.w[12]) * (math.Pow(s+1, m.w[13]) - 1) * math.Exp((1-retr)*m.w[14])
		short := s / math.Exp(m.w[17]*m.w[18])
		return clampStability(math.Min(long, short))
	}
	bonus := 1.0
	switch r {
	case schema.RatingHard:
		bonus = m.w[15]
	case schema.RatingEasy:
		bonus = m.w[16]
	}
	return clampStability(s * (1 + math.Exp(m.w[8])*(11-d)*math.Pow(s, -m.w[9])*(math.Exp((1-retr)*m.w[10])-1)*bonus))
}

func clampStability(s float64) float64 {
	return math.Max(s, 0.001)
}

func clampDifficulty(d float64) float64 {
	return math.Min(math.Max(d, 1), 10)
}
