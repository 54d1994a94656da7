package schema

import (
	"strings"
)

const (
	// DefaultConfID is the configuration every store must carry.
	DefaultConfID int64 = 1
	// PrefsKey is the key of the single Prefs row.
	PrefsKey int64 = 1
	// DeckSeparator joins the levels of a deck name.
	DeckSeparator = "::"
	// DefaultDeckName is the deck a fresh store starts with.
	DefaultDeckName = "Default"
)

// Card is one reviewable side of a note.
type Card struct {
	ID             int64 `json:"id" validate:"required"`
	DeckID         int64 `json:"deck_id" validate:"required"`
	NoteID         int64 `json:"note_id" validate:"required"`
	TemplateID     int64 `json:"template_id"`
	OriginalDeckID int64 `json:"original_deck_id,omitempty"`
	Created        int64 `json:"created"`
	LastEdited     int64 `json:"last_edited"`

	Queue         Queue   `json:"queue"`
	State         State   `json:"state"`
	Due           int64   `json:"due"`
	ScheduledDays int     `json:"scheduled_days" validate:"min=0"`
	Stability     float64 `json:"stability" validate:"min=0"`
	Difficulty    float64 `json:"difficulty" validate:"min=0,max=10"`
	Lapses        int     `json:"lapses" validate:"min=0"`
	Reps          int     `json:"reps" validate:"min=0"`
	ElapsedDays   int     `json:"elapsed_days" validate:"min=0"`
	// Step is the position in the (re)learning steps of the card's conf.
	Step int `json:"step,omitempty" validate:"min=0"`
	// LastReview is zero until the card is reviewed for the first time.
	LastReview int64 `json:"last_review,omitempty"`
}

// Deck is a node in the "::" hierarchy.
type Deck struct {
	ID     int64  `json:"id" validate:"required"`
	Name   string `json:"name" validate:"required"`
	ConfID int64  `json:"conf_id" validate:"required"`

	// Today is the start of the logical day the counters below belong to.
	Today       int64   `json:"today"`
	NewToday    []int64 `json:"new_today"`
	ReviewToday []int64 `json:"review_today"`
	ReviewCount int     `json:"review_count" validate:"min=0"`

	NewLimit         *int `json:"new_limit,omitempty" validate:"omitempty,min=0"`
	ReviewLimit      *int `json:"review_limit,omitempty" validate:"omitempty,min=0"`
	NewLimitToday    *int `json:"new_limit_today,omitempty" validate:"omitempty,min=0"`
	ReviewLimitToday *int `json:"review_limit_today,omitempty" validate:"omitempty,min=0"`
}

// StampedOn reports whether the today counters belong to the day starting at dayStart.
func (d Deck) StampedOn(dayStart int64) bool {
	return d.Today == dayStart
}

// Restamp clears the today counters and the today-only overrides when the
// deck was last touched on another day.
func (d *Deck) Restamp(dayStart int64) {
	if d.StampedOn(dayStart) {
		return
	}
	d.Today = dayStart
	d.NewToday = nil
	d.ReviewToday = nil
	d.ReviewCount = 0
	d.NewLimitToday = nil
	d.ReviewLimitToday = nil
}

// IsDescendantOf reports whether d sits strictly below the deck called parent.
func (d Deck) IsDescendantOf(parent string) bool {
	return strings.HasPrefix(d.Name, parent+DeckSeparator)
}

// ValidDeckName reports whether every level of name is non-blank.
func ValidDeckName(name string) bool {
	for _, part := range strings.Split(name, DeckSeparator) {
		if strings.TrimSpace(part) == "" {
			return false
		}
	}
	return true
}

// Conf is a scheduling policy shared by decks.
type Conf struct {
	ID             int64     `json:"id" validate:"required"`
	Name           string    `json:"name" validate:"required"`
	NewPerDay      int       `json:"new_per_day" validate:"min=0"`
	ReviewsPerDay  *int      `json:"reviews_per_day,omitempty" validate:"omitempty,min=0"`
	RandomNewOrder bool      `json:"random_new_order"`
	Fuzz           bool      `json:"fuzz"`
	MaxInterval    int       `json:"max_interval" validate:"min=1"`
	Retention      float64   `json:"retention" validate:"gt=0,lt=1"`
	Weights        []float64 `json:"weights,omitempty" validate:"omitempty,len=21"`
	LearningSteps  []int     `json:"learning_steps,omitempty" validate:"dive,gt=0"`
	RelearnSteps   []int     `json:"relearning_steps,omitempty" validate:"dive,gt=0"`
}

// Prefs holds the global preferences row.
type Prefs struct {
	// DayStart is the minute of the day at which a logical day begins.
	DayStart int `json:"day_start" validate:"min=0,max=1439"`
	// CollapseTime is how far ahead, in seconds, a learning card may be shown early.
	CollapseTime int `json:"collapse_time" validate:"min=0"`
}

// Note holds the field values that cards render.
type Note struct {
	ID         int64    `json:"id" validate:"required"`
	ModelID    int64    `json:"model_id" validate:"required"`
	Fields     []string `json:"fields" validate:"min=1"`
	Tags       []string `json:"tags,omitempty"`
	Created    int64    `json:"created"`
	LastEdited int64    `json:"last_edited"`
}

// Model is a note type: its field names and card templates.
type Model struct {
	ID        int64      `json:"id" validate:"required"`
	Name      string     `json:"name" validate:"required"`
	Fields    []string   `json:"fields" validate:"min=1,dive,required"`
	Templates []Template `json:"templates" validate:"min=1,dive"`
}

// Template returns the template with the given id.
func (m Model) Template(id int64) (Template, bool) {
	for _, t := range m.Templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// Template renders one card of a note.
type Template struct {
	ID    int64  `json:"id"`
	Name  string `json:"name" validate:"required"`
	Front string `json:"front" validate:"required"`
	Back  string `json:"back"`
}

// RevLog records one review or manual reschedule.
type RevLog struct {
	ID              int64   `json:"id" validate:"required"`
	CardID          int64   `json:"card_id" validate:"required"`
	Rating          Rating  `json:"rating"`
	State           State   `json:"state"`
	Due             int64   `json:"due"`
	Stability       float64 `json:"stability" validate:"min=0"`
	Difficulty      float64 `json:"difficulty" validate:"min=0,max=10"`
	ElapsedDays     int     `json:"elapsed_days" validate:"min=0"`
	LastElapsedDays int     `json:"last_elapsed_days" validate:"min=0"`
	ScheduledDays   int     `json:"scheduled_days" validate:"min=0"`
	Review          int64   `json:"review" validate:"required"`
	Duration        int64   `json:"duration" validate:"min=0"`
	Kind            LogKind `json:"kind" validate:"oneof=review manual"`
}
