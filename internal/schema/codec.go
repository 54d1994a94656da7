package schema

import (
	"encoding/json"
	"fmt"

	"github.com/at-ishikawa/flashq/internal/kvstore"
)

// Validator is implemented by every stored record.
type Validator interface {
	Validate() error
}

// Codec stores records as JSON and validates them in both directions, so a
// malformed record never enters or leaves the store.
type Codec struct{}

var _ kvstore.Codec = Codec{}

func (Codec) Marshal(v any) ([]byte, error) {
	if rec, ok := v.(Validator); ok {
		if err := rec.Validate(); err != nil {
			return nil, err
		}
	}
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if rec, ok := v.(Validator); ok {
		return rec.Validate()
	}
	return nil
}
