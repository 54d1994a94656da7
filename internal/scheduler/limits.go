package scheduler

import (
	"github.com/at-ishikawa/flashq/internal/schema"
)

// Limits are the effective daily caps of a study session.
type Limits struct {
	NewCap int
	// ReviewCap is nil when reviews are unbounded.
	ReviewCap *int
}

// resolveLimits picks the caps of the main deck, or of the default conf when
// there is no main deck. A deck's today-only override wins over its default
// override, which wins over its conf; the today-only override counts only
// on the day it was stamped.
func resolveLimits(txc *txContext, main *int64) (Limits, schema.Conf, error) {
	defaultConf, err := loadConf(txc.tx, schema.DefaultConfID)
	if err != nil {
		return Limits{}, schema.Conf{}, err
	}
	if main == nil {
		return Limits{NewCap: defaultConf.NewPerDay, ReviewCap: defaultConf.ReviewsPerDay}, defaultConf, nil
	}

	deck, err := loadDeck(txc.tx, *main)
	if err != nil {
		return Limits{}, schema.Conf{}, err
	}
	conf := defaultConf
	if deck.ConfID != schema.DefaultConfID {
		if conf, err = loadConf(txc.tx, deck.ConfID); err != nil {
			return Limits{}, schema.Conf{}, err
		}
	}
	return deckLimits(deck, conf, txc.todayMillis()), conf, nil
}

func deckLimits(deck schema.Deck, conf schema.Conf, today int64) Limits {
	newToday, reviewToday := deck.NewLimitToday, deck.ReviewLimitToday
	if !deck.StampedOn(today) {
		newToday, reviewToday = nil, nil
	}

	newCap := conf.NewPerDay
	if p := firstSet(newToday, deck.NewLimit); p != nil {
		newCap = *p
	}
	reviewCap := conf.ReviewsPerDay
	if p := firstSet(reviewToday, deck.ReviewLimit); p != nil {
		reviewCap = p
	}
	return Limits{NewCap: newCap, ReviewCap: reviewCap}
}

func firstSet(values ...*int) *int {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// quota is how much of each kind of work is left today.
type quota struct {
	newLeft     int
	newTotal    int
	reviewLeft  int
	reviewTotal int
}

func (g *GatherInfo) quotaLocked() quota {
	var q quota
	q.newLeft = min(len(g.New), max(0, g.Limits.NewCap-g.NewStudied))
	q.newTotal = q.newLeft + g.NewStudied

	due := len(g.Learning) + len(g.Review)
	if g.Limits.ReviewCap == nil {
		q.reviewLeft = due
	} else {
		q.reviewLeft = min(max(0, *g.Limits.ReviewCap-g.ReviewStudied), q.newLeft+due)
	}
	q.reviewTotal = g.ReviewStudied + q.reviewLeft
	return q
}

// preferNew reports whether the next card should be new: the share of new
// work left is at least the share of review work left. Ties go to new.
func (q quota) preferNew() bool {
	if q.newLeft < 0 || q.newTotal == 0 {
		return false
	}
	if q.reviewTotal == 0 {
		return true
	}
	return q.newLeft*q.reviewTotal >= q.reviewLeft*q.newTotal
}
