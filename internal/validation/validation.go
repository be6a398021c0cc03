// Package validation wraps go-playground/validator with the tag names and
// custom rules used across request and service inputs.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/merceton/merceton/internal/apperror"
)

var ErrInvalid = apperror.Validation("invalid_request", "invalid request")

var (
	gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z0-9]{13}$`)
	ifscPattern  = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared validator, configured once.
func Validator() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		Configure(instance)
	})
	return instance
}

// Configure registers json tag names and custom rules on v. The HTTP layer
// calls it on gin's binding engine so both report identical field names.
func Configure(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("gstin", func(fl validator.FieldLevel) bool {
		return gstinPattern.MatchString(strings.ToUpper(fl.Field().String()))
	})
	_ = v.RegisterValidation("ifsc", func(fl validator.FieldLevel) bool {
		return ifscPattern.MatchString(strings.ToUpper(fl.Field().String()))
	})
	_ = v.RegisterValidation("statecode", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if len(value) != 2 {
			return false
		}
		for _, r := range value {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	})
}

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Errors lists every failed field. It unwraps to a validation-kind apperror
// carrying the first message.
type Errors struct {
	Fields []FieldError
}

func (e *Errors) Error() string {
	if len(e.Fields) == 0 {
		return ErrInvalid.Message
	}
	first := e.Fields[0]
	if first.Field == "" {
		return first.Message
	}
	return first.Field + ": " + first.Message
}

func (e *Errors) Unwrap() error {
	return ErrInvalid.WithMessage("%s", e.Error())
}

// Struct validates s and converts validator failures into *Errors.
func Struct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	return Convert(err)
}

// Convert maps validator.ValidationErrors into *Errors. Other errors are
// wrapped as a generic invalid request.
func Convert(err error) error {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return ErrInvalid.WithCause(err)
	}
	out := &Errors{Fields: make([]FieldError, 0, len(vErrs))}
	for _, fe := range vErrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fieldPath(fe),
			Code:    fe.Tag(),
			Message: message(fe),
		})
	}
	return out
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "notblank":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		if e.Kind() == reflect.String {
			return "must be at least " + e.Param() + " characters"
		}
		if e.Kind() == reflect.Slice {
			return "must contain at least " + e.Param() + " item(s)"
		}
		return "must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "must be at most " + e.Param() + " characters"
		}
		return "must be at most " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "gstin":
		return "must be a valid GSTIN"
	case "ifsc":
		return "must be a valid IFSC code"
	case "statecode":
		return "must be a two digit state code"
	default:
		return "is invalid"
	}
}

// Reason normalises and validates an admin justification.
func Reason(reason string) (string, error) {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return "", &Errors{Fields: []FieldError{{Field: "reason", Code: "required", Message: "is required"}}}
	}
	if len([]rune(trimmed)) > MaxReasonLength {
		return "", &Errors{Fields: []FieldError{{Field: "reason", Code: "max", Message: "must be at most 500 characters"}}}
	}
	return trimmed, nil
}

const MaxReasonLength = 500
