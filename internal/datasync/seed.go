package datasync

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/at-ishikawa/flashq/internal/schema"
)

// Seed is the YAML document read by "flashq seed".
type Seed struct {
	Confs  []SeedConf  `yaml:"confs"`
	Decks  []SeedDeck  `yaml:"decks"`
	Models []SeedModel `yaml:"models"`
	Notes  []SeedNote  `yaml:"notes"`
}

type SeedConf struct {
	ID             int64     `yaml:"id"`
	Name           string    `yaml:"name"`
	NewPerDay      int       `yaml:"new_per_day"`
	ReviewsPerDay  *int      `yaml:"reviews_per_day"`
	RandomNewOrder bool      `yaml:"random_new_order"`
	Fuzz           bool      `yaml:"fuzz"`
	MaxInterval    int       `yaml:"max_interval"`
	Retention      float64   `yaml:"retention"`
	Weights        []float64 `yaml:"weights"`
	LearningSteps  []int     `yaml:"learning_steps"`
	RelearnSteps   []int     `yaml:"relearning_steps"`
}

func (c SeedConf) conf() schema.Conf {
	conf := schema.Conf{
		ID:             c.ID,
		Name:           c.Name,
		NewPerDay:      c.NewPerDay,
		ReviewsPerDay:  c.ReviewsPerDay,
		RandomNewOrder: c.RandomNewOrder,
		Fuzz:           c.Fuzz,
		MaxInterval:    c.MaxInterval,
		Retention:      c.Retention,
		Weights:        c.Weights,
		LearningSteps:  c.LearningSteps,
		RelearnSteps:   c.RelearnSteps,
	}
	if conf.MaxInterval == 0 {
		conf.MaxInterval = 36500
	}
	if conf.Retention == 0 {
		conf.Retention = 0.9
	}
	return conf
}

type SeedDeck struct {
	Name        string `yaml:"name"`
	ConfID      int64  `yaml:"conf_id"`
	NewLimit    *int   `yaml:"new_limit"`
	ReviewLimit *int   `yaml:"review_limit"`
}

type SeedModel struct {
	Name      string         `yaml:"name"`
	Fields    []string       `yaml:"fields"`
	Templates []SeedTemplate `yaml:"templates"`
}

type SeedTemplate struct {
	Name  string `yaml:"name"`
	Front string `yaml:"front"`
	Back  string `yaml:"back"`
}

type SeedNote struct {
	Deck   string   `yaml:"deck"`
	Model  string   `yaml:"model"`
	Fields []string `yaml:"fields"`
	Tags   []string `yaml:"tags"`
}

// ReadSeedFile decodes the seed document at path.
func ReadSeedFile(path string) (Seed, error) {
	var seed Seed

	file, err := os.Open(path)
	if err != nil {
		return seed, fmt.Errorf("os.Open(%s)> %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return seed, fmt.Errorf("yaml.NewDecoder().Decode()> %w", err)
	}
	return seed, nil
}
