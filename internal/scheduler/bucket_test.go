package scheduler

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/at-ishikawa/flashq/internal/day"
	"github.com/at-ishikawa/flashq/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	yesterday := testNow.AddDate(0, 0, -1)
	tomorrow := testNow.AddDate(0, 0, 1)

	tests := []struct {
		name string
		card schema.Card
		want Bucket
	}{
		{
			name: "new card",
			card: newCard(1, 5),
			want: BucketNew,
		},
		{
			name: "learning card with no day interval",
			card: learningCard(1, testNow.Add(time.Hour)),
			want: BucketLearning,
		},
		{
			name: "relearning card with no day interval",
			card: schema.Card{ID: 1, Queue: schema.QueueLearning, State: schema.StateRelearning, Due: day.Millis(tomorrow)},
			want: BucketLearning,
		},
		{
			name: "review card due yesterday",
			card: reviewCard(1, yesterday),
			want: BucketReview,
		},
		{
			name: "review card due later today",
			card: reviewCard(1, testNow.Add(6*time.Hour)),
			want: BucketReview,
		},
		{
			name: "review card due tomorrow",
			card: reviewCard(1, tomorrow),
			want: BucketNone,
		},
		{
			name: "day-learning card touched today",
			card: schema.Card{
				ID: 1, Queue: schema.QueueDayLearning, State: schema.StateLearning, ScheduledDays: 1,
				Due: day.Millis(testNow), LastEdited: day.Millis(testNow.Add(-time.Hour)),
			},
			want: BucketNone,
		},
		{
			name: "day-learning card touched yesterday and due today",
			card: schema.Card{
				ID: 1, Queue: schema.QueueDayLearning, State: schema.StateLearning, ScheduledDays: 1,
				Due: day.Millis(testNow), LastEdited: day.Millis(yesterday),
			},
			want: BucketReview,
		},
		{
			name: "suspended new card",
			card: schema.Card{ID: 1, Queue: schema.QueueSuspended, State: schema.StateNew},
			want: BucketNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(testToday, tt.card, 0))
		})
	}
}

func TestClassify_SuspendedIsNeverEligible(t *testing.T) {
	states := []schema.State{schema.StateNew, schema.StateLearning, schema.StateRelearning, schema.StateReview}
	dues := []time.Time{time.Time{}, testNow.AddDate(0, 0, -30), testNow, testNow.AddDate(0, 0, 30)}
	for _, state := range states {
		for _, due := range dues {
			for _, scheduled := range []int{0, 1, 10} {
				c := schema.Card{ID: 1, Queue: schema.QueueSuspended, State: state, Due: day.Millis(due), ScheduledDays: scheduled}
				assert.Equal(t, BucketNone, Classify(testToday, c, 0), "state=%s due=%v", state, due)
			}
		}
	}
}

func TestClassify_DayStartOffset(t *testing.T) {
	// With days starting at 04:00, 02:00 on the 11th still belongs to the 10th.
	offset := 4 * 60
	today := day.StartOfDay(offset, testNow)
	c := reviewCard(1, time.Date(2025, 3, 11, 2, 0, 0, 0, time.UTC))
	assert.Equal(t, BucketReview, Classify(today, c, offset))
	assert.Equal(t, BucketNone, Classify(testToday, c, 0))
}

func TestClassify_DST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	offset := 4 * 60

	tests := []struct {
		name string
		now  time.Time
		card schema.Card
		want Bucket
	}{
		{
			name: "day learning touched after midnight on the fall back day",
			now:  time.Date(2025, 11, 2, 23, 0, 0, 0, ny),
			card: schema.Card{
				ID: 1, Queue: schema.QueueDayLearning, State: schema.StateLearning, ScheduledDays: 1,
				LastEdited: day.Millis(time.Date(2025, 11, 3, 3, 30, 0, 0, ny)),
				Due:        day.Millis(time.Date(2025, 11, 2, 5, 0, 0, 0, ny)),
			},
			want: BucketNone,
		},
		{
			name: "review due after the offset on the spring forward day",
			now:  time.Date(2025, 3, 9, 5, 0, 0, 0, ny),
			card: reviewCard(2, time.Date(2025, 3, 9, 4, 30, 0, 0, ny)),
			want: BucketReview,
		},
		{
			name: "review due before the offset of the next date",
			now:  time.Date(2025, 3, 9, 5, 0, 0, 0, ny),
			card: reviewCard(3, time.Date(2025, 3, 10, 3, 0, 0, 0, ny)),
			want: BucketReview,
		},
		{
			name: "review due on the next logical day",
			now:  time.Date(2025, 3, 9, 5, 0, 0, 0, ny),
			card: reviewCard(4, time.Date(2025, 3, 10, 4, 30, 0, 0, ny)),
			want: BucketNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			today := day.StartOfDay(offset, tt.now)
			assert.Equal(t, tt.want, Classify(today, tt.card, offset))
		})
	}
}
