package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/at-ishikawa/flashq/internal/scheduler"
	"github.com/at-ishikawa/flashq/internal/schema"
)

//go:generate mockgen -source=study.go -destination=../mocks/cli/mock_scheduler.go -package=mock_cli Scheduler

// Scheduler is the part of scheduler.Scheduler a study session drives.
type Scheduler interface {
	Gather(ctx context.Context, deckIDs []int64, main *int64, now time.Time) (*scheduler.GatherInfo, error)
	Select(ctx context.Context, deckIDs []int64, main *int64, now time.Time, info *scheduler.GatherInfo) (*scheduler.Selected, error)
	SaveReview(ctx context.Context, sel *scheduler.Selected, info *scheduler.GatherInfo, now time.Time, rating schema.Rating, duration time.Duration) (schema.Card, error)
}

// StudyCLI reviews the cards of one deck tree, one card per Session call.
type StudyCLI struct {
	*InteractiveCLI
	scheduler Scheduler
	deckName  string
	deckIDs   []int64
	main      int64
	info      *scheduler.GatherInfo
	now       func() time.Time
	reviewed  int
}

// NewStudyCLI gathers the cards of deckIDs; main is the deck whose limits
// apply.
func NewStudyCLI(
	ctx context.Context,
	sched Scheduler,
	deckName string,
	deckIDs []int64,
	main int64,
	stdin io.Reader,
	stdout io.Writer,
	now func() time.Time,
) (*StudyCLI, error) {
	if now == nil {
		now = time.Now
	}
	info, err := sched.Gather(ctx, deckIDs, &main, now())
	if err != nil {
		return nil, fmt.Errorf("Gather(%s) > %w", deckName, err)
	}
	return &StudyCLI{
		InteractiveCLI: newInteractiveCLI(stdin, stdout),
		scheduler:      sched,
		deckName:       deckName,
		deckIDs:        deckIDs,
		main:           main,
		info:           info,
		now:            now,
	}, nil
}

// Reviewed returns how many answers were saved.
func (s *StudyCLI) Reviewed() int {
	return s.reviewed
}

// PrintCounts writes the per-bucket counts of the session.
func (s *StudyCLI) PrintCounts() {
	WriteCounts(s.stdoutWriter, s.deckName, s.info.Counts())
}

// WriteCounts writes counts the way the study screen shows them.
func WriteCounts(w io.Writer, deckName string, counts scheduler.Counts) {
	fmt.Fprintf(w, "%s  %s  %s  %s\n",
		color.New(color.Bold).Sprint(deckName),
		color.BlueString("New %d", counts.New),
		color.RedString("Learning %d", counts.Learning),
		color.GreenString("Review %d", counts.Review),
	)
	fmt.Fprintf(w, "  left today: %d new, %d reviews (studied %d new, %d reviews)\n",
		counts.NewLeft, counts.ReviewLeft, counts.NewStudied, counts.ReviewStudied)
}

func (s *StudyCLI) Session(ctx context.Context) error {
	sel, err := s.scheduler.Select(ctx, s.deckIDs, &s.main, s.now(), s.info)
	if err != nil {
		return fmt.Errorf("Select() > %w", err)
	}
	if sel == nil {
		fmt.Fprintln(s.stdoutWriter, "Congratulations! You have finished this deck for now.")
		return errEnd
	}

	s.PrintCounts()
	fmt.Fprintln(s.stdoutWriter)
	_, _ = s.bold.Fprintln(s.stdoutWriter, Render(sel.Template.Front, sel.Model, sel.Note))
	_, _ = s.faint.Fprint(s.stdoutWriter, "Press Enter to show the answer (q to quit): ")

	shown := s.now()
	line, err := s.readLine()
	if err != nil {
		return err
	}
	if strings.TrimSpace(line) == "q" {
		return errEnd
	}

	back := sel.Template.Back
	if back == "" {
		back = sel.Template.Front
	}
	_, _ = s.italic.Fprintln(s.stdoutWriter, Render(back, sel.Model, sel.Note))
	fmt.Fprintln(s.stdoutWriter, RatingPrompt(sel, s.now()))

	rating, err := s.readRating()
	if err != nil {
		return err
	}

	answered := s.now()
	card, err := s.scheduler.SaveReview(ctx, sel, s.info, answered, rating, answered.Sub(shown))
	if err != nil {
		return fmt.Errorf("SaveReview(%d) > %w", sel.Card.ID, err)
	}
	s.reviewed++
	fmt.Fprintf(s.stdoutWriter, "%s: next due in %s\n\n",
		rating, FormatInterval(time.UnixMilli(card.Due).Sub(answered)))
	return nil
}

func (s *StudyCLI) readRating() (schema.Rating, error) {
	for {
		_, _ = s.faint.Fprint(s.stdoutWriter, "Rating [1-4]: ")
		line, err := s.readLine()
		if err != nil {
			return 0, err
		}
		input := strings.ToLower(strings.TrimSpace(line))
		if input == "q" {
			return 0, errEnd
		}
		rating, err := schema.ParseRating(input)
		if err != nil || rating == schema.RatingManual {
			_, _ = color.New(color.FgRed).Fprintf(s.stdoutWriter, "%q is not a rating\n", input)
			continue
		}
		return rating, nil
	}
}

// Render fills the {{Field}} placeholders of tmpl with the note's values.
// Unknown placeholders are left as they are.
func Render(tmpl string, model schema.Model, note schema.Note) string {
	pairs := make([]string, 0, 2*len(model.Fields))
	for i, name := range model.Fields {
		value := ""
		if i < len(note.Fields) {
			value = note.Fields[i]
		}
		pairs = append(pairs, "{{"+name+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// RatingPrompt lists every rating with the interval its preview schedules.
func RatingPrompt(sel *scheduler.Selected, now time.Time) string {
	var b strings.Builder
	for i, r := range schema.Ratings {
		if i > 0 {
			b.WriteString("  ")
		}
		fmt.Fprintf(&b, "%d %s", int(r), r)
		if out, ok := sel.Preview[r]; ok {
			fmt.Fprintf(&b, " (%s)", FormatInterval(time.UnixMilli(out.Card.Due).Sub(now)))
		}
	}
	return b.String()
}

// FormatInterval renders d in the largest unit that keeps it readable.
func FormatInterval(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "<1m"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	days := d.Hours() / 24
	switch {
	case days < 30:
		return fmt.Sprintf("%dd", int(math.Round(days)))
	case days < 365:
		return fmt.Sprintf("%.1fmo", days/30)
	default:
		return fmt.Sprintf("%.1fy", days/365)
	}
}
