package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

// ErrDecode is returned for any stored record that does not match its schema.
var ErrDecode = errors.New("schema: malformed record")

type recordValidator struct {
	validate *validator.Validate
	trans    ut.Translator
}

var loadValidator = sync.OnceValues(func() (*recordValidator, error) {
	validate := validator.New()

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, fmt.Errorf("failed to register default translations: %w", err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &recordValidator{validate: validate, trans: trans}, nil
})

// check validates v and reports every failing field in one ErrDecode.
func check(v any) error {
	rv, err := loadValidator()
	if err != nil {
		return err
	}
	err = rv.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fe.Translate(rv.trans))
	}
	return fmt.Errorf("%w: %T: %s", ErrDecode, v, strings.Join(msgs, "; "))
}

func (c Card) Validate() error {
	if !c.Queue.IsValid() {
		return fmt.Errorf("%w: card %d: queue %d", ErrDecode, c.ID, int(c.Queue))
	}
	if !c.State.IsValid() {
		return fmt.Errorf("%w: card %d: state %d", ErrDecode, c.ID, int(c.State))
	}
	return check(c)
}

func (d Deck) Validate() error { return check(d) }

func (c Conf) Validate() error { return check(c) }

func (p Prefs) Validate() error { return check(p) }

func (n Note) Validate() error { return check(n) }

func (m Model) Validate() error {
	if err := check(m); err != nil {
		return err
	}
	seen := make(map[int64]bool, len(m.Templates))
	for _, t := range m.Templates {
		if seen[t.ID] {
			return fmt.Errorf("%w: model %d: template %d repeated", ErrDecode, m.ID, t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

func (r RevLog) Validate() error {
	if !r.Rating.IsValid() {
		return fmt.Errorf("%w: rev_log %d: rating %d", ErrDecode, r.ID, int(r.Rating))
	}
	if !r.State.IsValid() {
		return fmt.Errorf("%w: rev_log %d: state %d", ErrDecode, r.ID, int(r.State))
	}
	if (r.Kind == LogManual) != (r.Rating == RatingManual) {
		return fmt.Errorf("%w: rev_log %d: kind %s with rating %s", ErrDecode, r.ID, r.Kind, r.Rating)
	}
	return check(r)
}
