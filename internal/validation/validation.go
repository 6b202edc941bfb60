// Package validation wraps a singleton go-playground validator with English
// translations and JSON field names in messages.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Error is a failed validation with the first offending field.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Service holds the validator and its translator.
type Service struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	once sync.Once
	svc  *Service
)

// Get returns the validator singleton, initializing on first use.
func Get() *Service {
	once.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		_ = v.RegisterTranslation("url", trans,
			func(ut ut.Translator) error {
				return ut.Add("url", "{0} must be an absolute URL", true)
			},
			func(ut ut.Translator, fe validator.FieldError) string {
				msg, _ := ut.T("url", fe.Field())
				return msg
			},
		)

		svc = &Service{Validator: v, Translator: trans}
	})
	return svc
}

// Struct validates v and returns an *Error carrying the first translated message.
func Struct(v any) error {
	err := Get().Validator.Struct(v)
	if err == nil {
		return nil
	}
	var inv *validator.InvalidValidationError
	if errors.As(err, &inv) {
		return inv
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &Error{Field: fe.Field(), Message: fe.Translate(Get().Translator)}
	}
	return err
}
