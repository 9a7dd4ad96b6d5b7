// Package validate checks request DTOs with go-playground/validator and
// turns the first failure into an apperror.ValidationFailed.
//
// Field names in messages use the json tag ("fullName", not "FullName") so
// they match what the client sent.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/sakif/devpulse/internal/apperror"
)

// Validator is safe for concurrent use once constructed.
type Validator struct {
	v     *validator.Validate
	trans ut.Translator
}

// New builds a Validator with English messages and the custom "maxbytes" rule.
func New() (*Validator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")

	if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, fmt.Errorf("validate: registering translations: %w", err)
	}

	// maxbytes limits the UTF-8 byte length; max counts runes. bcrypt only
	// looks at the first 72 bytes of a password.
	if err := v.RegisterValidation("maxbytes", maxBytes); err != nil {
		return nil, fmt.Errorf("validate: registering maxbytes: %w", err)
	}
	err := v.RegisterTranslation("maxbytes", trans,
		func(ut ut.Translator) error {
			return ut.Add("maxbytes", "{0} must be at most {1} bytes long", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, _ := ut.T("maxbytes", fe.Field(), fe.Param())
			return msg
		},
	)
	if err != nil {
		return nil, fmt.Errorf("validate: registering maxbytes translation: %w", err)
	}

	return &Validator{v: v, trans: trans}, nil
}

// Struct validates s and returns an *apperror.AppError for the first
// failing field, or nil.
func (val *Validator) Struct(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperror.ValidationFailed(fe.Field(), fe.Translate(val.trans))
	}

	return fmt.Errorf("validate: %w", err)
}

func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}
