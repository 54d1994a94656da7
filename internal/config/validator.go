package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/at-ishikawa/flashq/internal/schema"
)

func newValidator() (*validator.Validate, ut.Translator, error) {
	validate := validator.New()

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, nil, fmt.Errorf("failed to register default translations: %w", err)
	}

	// Messages name fields by their YAML keys.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := validate.RegisterValidation("deckname", isDeckName); err != nil {
		return nil, nil, fmt.Errorf("failed to register deckname validation: %w", err)
	}
	if err := validate.RegisterTranslation("deckname", trans, func(ut ut.Translator) error {
		return ut.Add("deckname", "{0} must not have an empty level between \"::\"", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T("deckname", fe.Field())
		return t
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to register deckname translation: %w", err)
	}
	return validate, trans, nil
}

func isDeckName(fl validator.FieldLevel) bool {
	return schema.ValidDeckName(fl.Field().String())
}
