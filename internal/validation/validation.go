// Package validation wraps go-playground/validator with the custom tags and
// English messages used by the customer and order services.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/shopspring/decimal"
)

var (
	nachnamePattern = regexp.MustCompile(`^[A-Z][a-z]+$`)
	plzPattern      = regexp.MustCompile(`^\d{5}$`)
)

// Violations lists every failed constraint of one validation run.
type Violations struct {
	Messages []string
}

func (v *Violations) Error() string {
	return strings.Join(v.Messages, "\n")
}

func (v *Violations) Add(msg string) {
	v.Messages = append(v.Messages, msg)
}

func (v *Violations) Empty() bool {
	return v == nil || len(v.Messages) == 0
}

// Err returns nil when nothing was collected.
func (v *Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return v
}

type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func New() (*Validator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	if err := v.RegisterValidation("nachname", func(fl validator.FieldLevel) bool {
		return nachnamePattern.MatchString(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("register nachname: %w", err)
	}
	if err := v.RegisterValidation("plz", func(fl validator.FieldLevel) bool {
		return plzPattern.MatchString(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("register plz: %w", err)
	}

	english := en.New()
	trans, _ := ut.New(english, english).GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, fmt.Errorf("register translations: %w", err)
	}

	custom := map[string]string{
		"nachname": "{0} must start with an upper-case letter followed by lower-case letters",
		"plz":      "{0} must consist of exactly 5 digits",
	}
	for tag, text := range custom {
		if err := v.RegisterTranslation(tag, trans,
			func(ut ut.Translator) error { return ut.Add(tag, text, true) },
			func(ut ut.Translator, fe validator.FieldError) string {
				msg, _ := ut.T(fe.Tag(), fe.Field())
				return msg
			},
		); err != nil {
			return nil, fmt.Errorf("register %s translation: %w", tag, err)
		}
	}

	return &Validator{validate: v, trans: trans}, nil
}

// Struct validates s and returns *Violations with one message per failed field.
func (v *Validator) Struct(s any) error {
	return v.collect(v.validate.Struct(s))
}

// Var validates a single value against a tag list, naming it field in messages.
func (v *Validator) Var(field string, value any, tag string) error {
	err := v.collect(v.validate.Var(value, tag))
	var violations *Violations
	if errors.As(err, &violations) {
		for i, msg := range violations.Messages {
			violations.Messages[i] = field + " " + strings.TrimSpace(msg)
		}
	}
	return err
}

func (v *Validator) collect(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	violations := &Violations{}
	for _, fe := range fieldErrs {
		violations.Add(fe.Translate(v.trans))
	}
	return violations
}
