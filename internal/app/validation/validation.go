// Package validation checks form input before it is sent to the API and
// reports failures keyed by JSON field name.
package validation

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/flexcrow/escrowctl/internal/app/domain/transaction"
	"github.com/flexcrow/escrowctl/internal/errors"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared validator with the custom tags registered:
//
//	money   text matching transaction.MoneyPattern
//	minmoney=N  a money string whose value is at least N
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
			return transaction.MoneyPattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("minmoney", func(fl validator.FieldLevel) bool {
			amount, err := transaction.ParseMoney(fl.Field().String())
			if err != nil {
				return false
			}
			min, err := transaction.ParseMoney(fl.Param())
			if err != nil {
				return false
			}
			return amount.GreaterThanOrEqual(min)
		})
		instance = v
	})
	return instance
}

// Struct validates a form and converts failures to a validation ServiceError.
func Struct(form interface{}) error {
	err := Validator().Struct(form)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validate form: %w", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		fields[fe.Field()] = Message(fe)
	}
	return errors.Validation(fields)
}

// Merge combines extra field failures with the result of Struct.
func Merge(err error, extra map[string]string) error {
	if len(extra) == 0 {
		return err
	}
	fields := map[string]string{}
	if se := errors.GetServiceError(err); se != nil {
		fields = se.Fields()
	} else if err != nil {
		return err
	}
	for k, v := range extra {
		if _, ok := fields[k]; !ok {
			fields[k] = v
		}
	}
	return errors.Validation(fields)
}

// Message renders a human sentence for one failure.
func Message(fe validator.FieldError) string {
	name := humanize(fe.Field())
	switch fe.Tag() {
	case "required", "required_if":
		return name + " is required"
	case "email":
		return name + " must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must not exceed %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must not exceed %s", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", name, fe.Param())
	case "money":
		return "Invalid " + strings.ToLower(name) + " format"
	case "minmoney":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "nefield":
		return name + " cannot be you"
	case "eqfield":
		return name + " does not match"
	}
	return name + " is invalid"
}

func humanize(field string) string {
	field = strings.ReplaceAll(field, "_", " ")
	if field == "" {
		return field
	}
	return strings.ToUpper(field[:1]) + field[1:]
}
