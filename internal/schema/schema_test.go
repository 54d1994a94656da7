package schema

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/at-ishikawa/flashq/internal/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCard() Card {
	return Card{ID: 1, DeckID: 2, NoteID: 3, Queue: QueueReview, State: StateReview, Difficulty: 5, Stability: 3}
}

func TestCodec_Unmarshal(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{
			name: "valid card",
			raw:  `{"id":1,"deck_id":2,"note_id":3,"queue":4,"state":3,"due":0}`,
		},
		{
			name:    "queue outside closed set",
			raw:     `{"id":1,"deck_id":2,"note_id":3,"queue":7,"state":3}`,
			wantErr: true,
		},
		{
			name:    "state outside closed set",
			raw:     `{"id":1,"deck_id":2,"note_id":3,"queue":0,"state":-1}`,
			wantErr: true,
		},
		{
			name:    "queue is not a number",
			raw:     `{"id":1,"deck_id":2,"note_id":3,"queue":"new","state":0}`,
			wantErr: true,
		},
		{
			name:    "missing deck",
			raw:     `{"id":1,"note_id":3,"queue":0,"state":0}`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     `{`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Card
			err := Codec{}.Unmarshal([]byte(tt.raw), &c)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrDecode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(2), c.DeckID)
		})
	}
}

func TestCodec_MarshalValidates(t *testing.T) {
	_, err := Codec{}.Marshal(Conf{ID: 1, Name: "x", MaxInterval: 10, Retention: 1.5})
	assert.ErrorIs(t, err, ErrDecode)

	raw, err := Codec{}.Marshal(validCard())
	require.NoError(t, err)
	var back Card
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, validCard(), back)
}

func TestRevLog_Validate(t *testing.T) {
	base := RevLog{ID: 1, CardID: 1, Review: 1, Rating: RatingGood, State: StateReview, Kind: LogReview}
	tests := []struct {
		name    string
		mutate  func(r *RevLog)
		wantErr bool
	}{
		{name: "review row", mutate: func(r *RevLog) {}},
		{name: "manual row", mutate: func(r *RevLog) { r.Rating, r.Kind = RatingManual, LogManual }},
		{name: "manual kind with a rating", mutate: func(r *RevLog) { r.Kind = LogManual }, wantErr: true},
		{name: "unknown kind", mutate: func(r *RevLog) { r.Kind = "sync" }, wantErr: true},
		{name: "rating out of range", mutate: func(r *RevLog) { r.Rating = 9 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrDecode)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestModel_Validate(t *testing.T) {
	m := Model{ID: 1, Name: "Basic", Fields: []string{"Front", "Back"}, Templates: []Template{
		{ID: 0, Name: "Card 1", Front: "{{Front}}"},
		{ID: 0, Name: "Card 2", Front: "{{Back}}"},
	}}
	assert.ErrorIs(t, m.Validate(), ErrDecode)

	m.Templates[1].ID = 1
	assert.NoError(t, m.Validate())
	tmpl, ok := m.Template(1)
	assert.True(t, ok)
	assert.Equal(t, "Card 2", tmpl.Name)
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		in      string
		want    Rating
		wantErr bool
	}{
		{in: "good", want: RatingGood},
		{in: "1", want: RatingAgain},
		{in: "4", want: RatingEasy},
		{in: "5", wantErr: true},
		{in: "great", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRating(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeck_Restamp(t *testing.T) {
	five := 5
	d := Deck{ID: 1, Name: "A", ConfID: 1, Today: 100, NewToday: []int64{1}, ReviewCount: 2, NewLimitToday: &five}

	d.Restamp(100)
	assert.Equal(t, 2, d.ReviewCount)

	d.Restamp(200)
	assert.Equal(t, int64(200), d.Today)
	assert.Empty(t, d.NewToday)
	assert.Zero(t, d.ReviewCount)
	assert.Nil(t, d.NewLimitToday)

	assert.True(t, Deck{Name: "Lang::Spanish"}.IsDescendantOf("Lang"))
	assert.False(t, Deck{Name: "Languages"}.IsDescendantOf("Lang"))
}

func TestValidDeckName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{name: "Default", want: true},
		{name: "Lang::Spanish::Verbs", want: true},
		{name: "", want: false},
		{name: " ", want: false},
		{name: "Lang::", want: false},
		{name: "::Lang", want: false},
		{name: "Lang:: ::Verbs", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidDeckName(tt.name))
		})
	}
}

func TestOpen_RejectsMalformedRecords(t *testing.T) {
	store, err := Open(kvstore.InMemoryConfig())
	require.NoError(t, err)
	defer store.Close()

	err = store.Update(context.Background(), []string{CollCards}, func(tx *kvstore.Tx) error {
		cards, err := kvstore.Use[Card](tx, CollCards)
		require.NoError(t, err)
		bad := validCard()
		bad.Queue = 9
		return cards.Put(bad.ID, bad)
	})
	assert.ErrorIs(t, err, ErrDecode)
}
