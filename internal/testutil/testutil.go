// Package testutil provides shared test helpers for creating config and seed files.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// SetupTestConfig creates a config file whose store and sqlite mirror live under tmpDir.
// Returns the path to the generated config file.
func SetupTestConfig(t *testing.T, tmpDir string) string {
	t.Helper()

	configContent := fmt.Sprintf(`store:
  path: %s
  gc_interval_seconds: 0
mirror:
  driver: sqlite
  sqlite_path: %s
scheduler:
  day_start_minutes: 0
`,
		filepath.Join(tmpDir, "store"),
		filepath.Join(tmpDir, "mirror", "mirror.db"),
	)

	cfgPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(configContent), 0644))
	return cfgPath
}

// SetupBrokenConfig creates a config file with invalid YAML that causes loading to fail.
func SetupBrokenConfig(t *testing.T, tmpDir string) string {
	t.Helper()
	cfgPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("{{invalid yaml content"), 0644))
	return cfgPath
}

// SeedOption configures the seed file written by WriteSeedFile.
type SeedOption func(*seedConfig)

type seedConfig struct {
	deck  string
	words [][2]string
}

// WithSeedDeck sets the deck the seeded notes go to.
func WithSeedDeck(name string) SeedOption {
	return func(cfg *seedConfig) {
		cfg.deck = name
	}
}

// WithSeedWords replaces the front/back pairs of the seeded notes.
func WithSeedWords(words ...[2]string) SeedOption {
	return func(cfg *seedConfig) {
		cfg.words = words
	}
}

// WriteSeedFile writes a seed with one deck, a single-template "Basic" model
// and one note per word. By default it seeds two notes into Japanese::Vocab.
func WriteSeedFile(t *testing.T, dir string, opts ...SeedOption) string {
	t.Helper()

	cfg := seedConfig{
		deck:  "Japanese::Vocab",
		words: [][2]string{{"猫", "cat"}, {"犬", "dog"}},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	content := fmt.Sprintf(`decks:
  - name: %s
models:
  - name: Basic
    fields: [Front, Back]
    templates:
      - name: Card 1
        front: "{{Front}}"
        back: "{{Back}}"
notes:
`, cfg.deck)
	for _, w := range cfg.words {
		content += fmt.Sprintf("  - deck: %s\n    model: Basic\n    fields: [%q, %q]\n", cfg.deck, w[0], w[1])
	}

	path := filepath.Join(dir, "seed.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
