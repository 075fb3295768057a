package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const validationMessage = "Validation failed. Please check your input."

var (
	productIDPattern  = regexp.MustCompile(`^[A-Z0-9-]+$`)
	personNamePattern = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	phonePattern      = regexp.MustCompile(`^\+?\d{10,15}$`)
	phMobilePattern   = regexp.MustCompile(`^((\+63)|0)9\d{9}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "productid", func(fl validator.FieldLevel) bool {
		return productIDPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "personname", func(fl validator.FieldLevel) bool {
		return personNamePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "phmobile", func(fl validator.FieldLevel) bool {
		return phMobilePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "strongpassword", func(fl validator.FieldLevel) bool {
		return isStrongPassword(fl.Field().String())
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// isStrongPassword requires a lowercase letter, an uppercase letter and a digit
func isStrongPassword(s string) bool {
	var lower, upper, digit bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return lower && upper && digit
}

// validateStruct checks v against its validate tags and converts failures
// into a validation error. extra holds failures of checks the tags cannot
// express, such as decimal bounds.
func validateStruct(v interface{}, extra ...FieldError) error {
	fields := []FieldError{}

	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate: %w", err)
		}
		for _, fe := range verrs {
			fields = append(fields, FieldError{
				Field:   fieldPath(fe.Namespace()),
				Message: fieldMessage(fe),
				Value:   fieldValue(fe),
			})
		}
	}

	fields = append(fields, extra...)
	if len(fields) == 0 {
		return nil
	}
	return ValidationFailed(validationMessage, fields...)
}

// fieldPath drops the struct name from a namespace such as
// "CreateOrderRequest.items[0].quantity"
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldValue(fe validator.FieldError) interface{} {
	if strings.Contains(strings.ToLower(fe.Field()), "password") {
		return nil
	}
	v := fe.Value()
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		return rv.Elem().Interface()
	}
	return v
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "email":
		return "Please provide a valid email"
	case "min":
		if isStringKind(fe.Kind()) {
			return fmt.Sprintf("%s must be at least %s characters long", name, fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		if isStringKind(fe.Kind()) {
			return fmt.Sprintf("%s cannot exceed %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return fmt.Sprintf("%s must be a valid URL", name)
	case "productid":
		return "Product ID can only contain uppercase letters, numbers, and hyphens"
	case "personname":
		return fmt.Sprintf("%s can only contain letters and spaces", name)
	case "phone":
		return "Please provide a valid phone number"
	case "phmobile":
		return "Please provide a valid Philippine mobile number"
	case "strongpassword":
		return "Password must contain at least one lowercase letter, one uppercase letter, and one number"
	}
	return fmt.Sprintf("%s is invalid", name)
}

func isStringKind(k reflect.Kind) bool {
	return k == reflect.String
}
