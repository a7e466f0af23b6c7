package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the `validate` tags of a request payload and returns a
// VALIDATION_ERROR AppError describing the first failing field.
func Validate(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.NewAppError(apperrors.CodeValidation, "invalid request", err)
	}

	fe := fieldErrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		msg = fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "min", "gte":
		msg = fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		msg = fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gt":
		msg = fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "email":
		msg = fmt.Sprintf("%s must be a valid email address", fe.Field())
	default:
		msg = fmt.Sprintf("%s is invalid", fe.Field())
	}
	return apperrors.NewAppError(apperrors.CodeValidation, msg, err)
}
