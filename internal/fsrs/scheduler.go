// Package fsrs computes the next scheduling state of a card with the FSRS-6
// memory model.
package fsrs

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/at-ishikawa/flashq/internal/day"
	"github.com/at-ishikawa/flashq/internal/schema"
)

// Outcome is the card and log row that answering with one rating produces.
type Outcome struct {
	Card schema.Card
	Log  schema.RevLog
}

// Model maps a card onto the outcome of every possible answer. It must not
// mutate its inputs.
type Model interface {
	NextStates(card schema.Card, conf schema.Conf, dayStart int, now time.Time, duration time.Duration) (map[schema.Rating]Outcome, error)
}

var (
	defaultLearningSteps   = []int{1, 10}
	defaultRelearningSteps = []int{10}
)

const defaultMaxInterval = 36500

// Scheduler is the FSRS-6 Model.
type Scheduler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

var _ Model = (*Scheduler)(nil)

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithRand makes fuzzing deterministic.
func WithRand(rng *rand.Rand) Option {
	return func(s *Scheduler) { s.rng = rng }
}

// NewScheduler returns a Scheduler seeded from the clock.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
	for _, o := range opts {
		o(s)
	}
	return s
}

// policy is a Conf resolved into the values the transitions need.
type policy struct {
	model       model
	retention   float64
	maxInterval int
	learning    []time.Duration
	relearning  []time.Duration
	fuzz        bool
	dayStart    int
}

func newPolicy(conf schema.Conf, dayStart int) (policy, error) {
	w, err := Weights(conf.Weights)
	if err != nil {
		return policy{}, err
	}
	retention := conf.Retention
	if retention == 0 {
		retention = 0.9
	}
	if retention <= 0 || retention >= 1 {
		return policy{}, fmt.Errorf("%w: %f", ErrInvalidRetention, retention)
	}
	maxInterval := conf.MaxInterval
	if maxInterval <= 0 {
		maxInterval = defaultMaxInterval
	}
	learning, relearning := conf.LearningSteps, conf.RelearnSteps
	if learning == nil {
		learning = defaultLearningSteps
	}
	if relearning == nil {
		relearning = defaultRelearningSteps
	}
	return policy{
		model:       newModel(w),
		retention:   retention,
		maxInterval: maxInterval,
		learning:    minutes(learning),
		relearning:  minutes(relearning),
		fuzz:        conf.Fuzz,
		dayStart:    dayStart,
	}, nil
}

func minutes(steps []int) []time.Duration {
	out := make([]time.Duration, len(steps))
	for i, m := range steps {
		out[i] = time.Duration(m) * time.Minute
	}
	return out
}

// NextStates previews every rating. The result is only applied when the
// caller writes one of the outcomes back.
func (s *Scheduler) NextStates(card schema.Card, conf schema.Conf, dayStart int, now time.Time, duration time.Duration) (map[schema.Rating]Outcome, error) {
	p, err := newPolicy(conf, dayStart)
	if err != nil {
		return nil, err
	}
	out := make(map[schema.Rating]Outcome, len(schema.Ratings))
	for _, r := range schema.Ratings {
		out[r] = s.review(p, card, r, now, duration)
	}
	return out, nil
}

// Review answers card with rating.
func (s *Scheduler) Review(card schema.Card, conf schema.Conf, dayStart int, now time.Time, rating schema.Rating, duration time.Duration) (Outcome, error) {
	if rating < schema.RatingAgain || rating > schema.RatingEasy {
		return Outcome{}, fmt.Errorf("%w: %s", ErrInvalidRating, rating)
	}
	p, err := newPolicy(conf, dayStart)
	if err != nil {
		return Outcome{}, err
	}
	return s.review(p, card, rating, now, duration), nil
}

func (s *Scheduler) review(p policy, card schema.Card, rating schema.Rating, now time.Time, duration time.Duration) Outcome {
	c := card
	nowMs := day.Millis(now)

	elapsed := 0
	if c.LastReview != 0 {
		elapsed = max(0, day.DaysBetween(p.dayStart, day.FromMillis(c.LastReview, now.Location()), now))
	}

	if c.State == schema.StateNew {
		c.Stability = p.model.initStability(rating)
		c.Difficulty = clampDifficulty(p.model.initDifficulty(rating))
		c.State = schema.StateLearning
		c.Step = 0
	} else {
		if elapsed < 1 {
			c.Stability = p.model.shortTermStability(c.Stability, rating)
		} else {
			retr := p.model.retrievability(float64(elapsed), c.Stability)
			c.Stability = p.model.nextStability(c.Difficulty, c.Stability, retr, rating)
		}
		c.Difficulty = p.model.nextDifficulty(c.Difficulty, rating)
	}

	wasReview := card.State == schema.StateReview
	ivl := s.transition(p, &c, rating)
	if wasReview && rating == schema.RatingAgain {
		c.Lapses++
	}

	scheduledDays := 0
	if ivl >= 24*time.Hour {
		scheduledDays = int(ivl / (24 * time.Hour))
	}
	c.Due = day.Millis(now.Add(ivl))
	c.ScheduledDays = scheduledDays
	c.ElapsedDays = elapsed
	c.Reps++
	c.LastReview = nowMs
	c.LastEdited = nowMs
	c.Queue = QueueFor(c.State, scheduledDays)

	return Outcome{
		Card: c,
		Log: schema.RevLog{
			ID:              nowMs,
			CardID:          card.ID,
			Rating:          rating,
			State:           card.State,
			Due:             card.Due,
			Stability:       c.Stability,
			Difficulty:      c.Difficulty,
			ElapsedDays:     elapsed,
			LastElapsedDays: card.ElapsedDays,
			ScheduledDays:   scheduledDays,
			Review:          nowMs,
			Duration:        duration.Milliseconds(),
			Kind:            schema.LogReview,
		},
	}
}

// transition moves c through the learning steps or the review cycle and
// returns how long until it is due.
func (s *Scheduler) transition(p policy, c *schema.Card, rating schema.Rating) time.Duration {
	switch c.State {
	case schema.StateLearning, schema.StateRelearning:
		steps := p.learning
		if c.State == schema.StateRelearning {
			steps = p.relearning
		}
		if len(steps) == 0 || (c.Step >= len(steps) && rating != schema.RatingAgain) {
			return s.graduate(p, c)
		}
		switch rating {
		case schema.RatingAgain:
			c.Step = 0
			return steps[0]
		case schema.RatingHard:
			if c.Step == 0 && len(steps) == 1 {
				return steps[0] * 3 / 2
			}
			if c.Step == 0 {
				return (steps[0] + steps[1]) / 2
			}
			return steps[c.Step]
		case schema.RatingGood:
			if c.Step+1 >= len(steps) {
				return s.graduate(p, c)
			}
			c.Step++
			return steps[c.Step]
		default:
			return s.graduate(p, c)
		}
	default:
		if rating == schema.RatingAgain && len(p.relearning) > 0 {
			c.State = schema.StateRelearning
			c.Step = 0
			return p.relearning[0]
		}
		c.Step = 0
		return s.days(p, c)
	}
}

func (s *Scheduler) graduate(p policy, c *schema.Card) time.Duration {
	c.State = schema.StateReview
	c.Step = 0
	return s.days(p, c)
}

func (s *Scheduler) days(p policy, c *schema.Card) time.Duration {
	ivl := p.model.interval(c.Stability, p.retention, p.maxInterval)
	if p.fuzz {
		s.mu.Lock()
		ivl = fuzz(ivl, p.maxInterval, s.rng)
		s.mu.Unlock()
	}
	return time.Duration(ivl) * 24 * time.Hour
}

// Forget puts card back at the end of the new queue and returns the manual
// log row recording the reset.
func Forget(card schema.Card, now time.Time) Outcome {
	nowMs := day.Millis(now)
	c := card
	c.Queue = schema.QueueNew
	c.State = schema.StateNew
	c.Due = nowMs
	c.ScheduledDays = 0
	c.Stability = 0
	c.Difficulty = 0
	c.Reps = 0
	c.Lapses = 0
	c.ElapsedDays = 0
	c.Step = 0
	c.LastReview = 0
	c.LastEdited = nowMs
	return Outcome{
		Card: c,
		Log: schema.RevLog{
			ID:              nowMs,
			CardID:          card.ID,
			Rating:          schema.RatingManual,
			State:           card.State,
			Due:             card.Due,
			ElapsedDays:     0,
			LastElapsedDays: card.ElapsedDays,
			Review:          nowMs,
			Kind:            schema.LogManual,
		},
	}
}

// QueueFor places a card with the given state in its queue. Learning cards
// whose next step lands on a later day wait in the day-learning queue.
func QueueFor(state schema.State, scheduledDays int) schema.Queue {
	switch state {
	case schema.StateNew:
		return schema.QueueNew
	case schema.StateLearning, schema.StateRelearning:
		if scheduledDays > 0 {
			return schema.QueueDayLearning
		}
		return schema.QueueLearning
	default:
		return schema.QueueReview
	}
}

// Retrievability is the probability that the card is recalled at now.
func Retrievability(card schema.Card, conf schema.Conf, dayStart int, now time.Time) (float64, error) {
	if card.LastReview == 0 || card.Stability == 0 {
		return 0, nil
	}
	w, err := Weights(conf.Weights)
	if err != nil {
		return 0, err
	}
	m := newModel(w)
	elapsed := day.DaysBetween(dayStart, day.FromMillis(card.LastReview, now.Location()), now)
	return m.retrievability(float64(max(elapsed, 0)), card.Stability), nil
}
