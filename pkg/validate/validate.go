// Package validate wraps go-playground/validator with the clinic's custom
// rules and turns validation failures into readable field messages.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/clinic/clinic/internal/availability"
)

var validate *validator.Validate

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	validate.RegisterValidation("clock", validateClock)
	validate.RegisterValidation("weekday", validateWeekday)
	validate.RegisterValidation("phone", validatePhone)
}

// ErrInvalid marks input the caller can fix. Every *Error matches it, and
// Errorf wraps it.
var ErrInvalid = errors.New("invalid input")

// Errorf builds a validation error outside of struct tags.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// IsInvalid reports whether err is a validation failure.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

// Message is the text shown to the client: the field list for *Error, the
// detail after the sentinel otherwise.
func Message(err error) string {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Error()
	}
	return strings.TrimPrefix(err.Error(), ErrInvalid.Error()+": ")
}

// Error lists every failing field with a message.
type Error struct {
	Fields map[string]string
}

func (e *Error) Is(target error) bool { return target == ErrInvalid }

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return strings.Join(parts, "; ")
}

// Struct validates s against its `validate` tags.
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &Error{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fieldPath(fe)] = message(fe)
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "clock":
		return "must be a time of day in HH:MM form"
	case "weekday":
		return "must be a day name such as saturday"
	case "phone":
		return "must be a phone number of 7 to 15 digits"
	case "email":
		return "must be a valid e-mail address"
	case "oneof":
		return "must be one of " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	case "hexcolor":
		return "must be a hex colour"
	case "url":
		return "must be a URL"
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

func validateClock(fl validator.FieldLevel) bool {
	_, err := availability.ParseStorage(fl.Field().String())
	return err == nil
}

func validateWeekday(fl validator.FieldLevel) bool {
	_, err := availability.ParseWeekday(fl.Field().String())
	return err == nil
}

func validatePhone(fl validator.FieldLevel) bool {
	return phonePattern.MatchString(fl.Field().String())
}
