package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Queue is the classifier-owned placement of a card.
type Queue int

const (
	QueueNew         Queue = 0
	QueueDayLearning Queue = 1
	// QueueSuspended covers both suspended and buried cards.
	QueueSuspended Queue = 2
	QueueLearning  Queue = 3
	QueueReview    Queue = 4
)

var queueNames = [...]string{
	QueueNew:         "new",
	QueueDayLearning: "day-learning",
	QueueSuspended:   "suspended",
	QueueLearning:    "learning",
	QueueReview:      "review",
}

// IsValid reports whether q is one of the known queues.
func (q Queue) IsValid() bool {
	return q >= QueueNew && q <= QueueReview
}

func (q Queue) String() string {
	if q.IsValid() {
		return queueNames[q]
	}
	return fmt.Sprintf("Queue(%d)", int(q))
}

// UnmarshalJSON rejects numbers outside the closed set.
func (q *Queue) UnmarshalJSON(data []byte) error {
	n, err := decodeEnum(data, "queue")
	if err != nil {
		return err
	}
	if v := Queue(n); v.IsValid() {
		*q = v
		return nil
	}
	return fmt.Errorf("%w: queue %d", ErrDecode, n)
}

// State is the learning stage assigned by the memory model.
type State int

const (
	StateNew        State = 0
	StateLearning   State = 1
	StateRelearning State = 2
	StateReview     State = 3
)

var stateNames = [...]string{
	StateNew:        "new",
	StateLearning:   "learning",
	StateRelearning: "relearning",
	StateReview:     "review",
}

// IsValid reports whether s is one of the known states.
func (s State) IsValid() bool {
	return s >= StateNew && s <= StateReview
}

func (s State) String() string {
	if s.IsValid() {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// UnmarshalJSON rejects numbers outside the closed set.
func (s *State) UnmarshalJSON(data []byte) error {
	n, err := decodeEnum(data, "state")
	if err != nil {
		return err
	}
	if v := State(n); v.IsValid() {
		*s = v
		return nil
	}
	return fmt.Errorf("%w: state %d", ErrDecode, n)
}

// Rating is the learner's answer. RatingManual marks rows written outside
// the rating flow.
type Rating int

const (
	RatingManual Rating = iota
	RatingAgain
	RatingHard
	RatingGood
	RatingEasy
)

// Ratings lists the answers a learner can give, in button order.
var Ratings = []Rating{RatingAgain, RatingHard, RatingGood, RatingEasy}

var (
	ratingNames  = [...]string{RatingManual: "manual", RatingAgain: "again", RatingHard: "hard", RatingGood: "good", RatingEasy: "easy"}
	ratingByName = map[string]Rating{
		"manual": RatingManual,
		"again":  RatingAgain,
		"hard":   RatingHard,
		"good":   RatingGood,
		"easy":   RatingEasy,
	}
)

// IsValid reports whether r is one of the known ratings.
func (r Rating) IsValid() bool {
	return r >= RatingManual && r <= RatingEasy
}

func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// ParseRating accepts a rating name ("again") or its number ("1").
func ParseRating(s string) (Rating, error) {
	if r, ok := ratingByName[s]; ok {
		return r, nil
	}
	if n, err := strconv.Atoi(s); err == nil && Rating(n).IsValid() {
		return Rating(n), nil
	}
	return 0, fmt.Errorf("%w: rating %q", ErrDecode, s)
}

// UnmarshalJSON rejects numbers outside the closed set.
func (r *Rating) UnmarshalJSON(data []byte) error {
	n, err := decodeEnum(data, "rating")
	if err != nil {
		return err
	}
	if v := Rating(n); v.IsValid() {
		*r = v
		return nil
	}
	return fmt.Errorf("%w: rating %d", ErrDecode, n)
}

// LogKind tells rating-flow reviews from manual rescheduling.
type LogKind string

const (
	LogReview LogKind = "review"
	LogManual LogKind = "manual"
)

// UnmarshalJSON rejects unknown kinds.
func (k *LogKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: log kind %s", ErrDecode, data)
	}
	switch LogKind(s) {
	case LogReview, LogManual:
		*k = LogKind(s)
		return nil
	}
	return fmt.Errorf("%w: log kind %q", ErrDecode, s)
}

func decodeEnum(data []byte, what string) (int, error) {
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return 0, fmt.Errorf("%w: %s %s", ErrDecode, what, data)
	}
	return n, nil
}
