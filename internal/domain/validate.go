package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError represents a single field's validation error.
type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"message"`
}

func (e FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Msg) }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report errors under the wire names the client sent, not Go names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateSubmission checks the decoded payload. Step keys are validated
// here as well so malformed keys fail before any write happens.
func ValidateSubmission(s *Submission) []FieldError {
	var errs []FieldError

	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []FieldError{{Field: "datos", Msg: err.Error()}}
		}
		for _, fe := range verrs {
			msg := "required"
			if fe.Tag() == "email" {
				msg = "must be a valid email address"
			}
			errs = append(errs, FieldError{Field: fieldPath(fe.Namespace()), Msg: msg})
		}
	}

	for key := range s.StepTimes {
		if _, err := ParseStepNumber(key); err != nil {
			errs = append(errs, FieldError{Field: "stepTimes." + key, Msg: "malformed step key"})
		}
	}
	for key := range s.ValidationAttempts {
		if _, err := ParseStepNumber(key); err != nil {
			errs = append(errs, FieldError{Field: "validationAttempts." + key, Msg: "malformed step key"})
		}
	}

	return errs
}

// fieldPath strips the leading struct name from a validator namespace:
// "Submission.ubicacion.latitude" -> "ubicacion.latitude".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
