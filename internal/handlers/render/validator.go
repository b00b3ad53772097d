package render

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

func configureValidator(validate *validator.Validate) {
	// Report fields by 'json' tag instead of struct field name
	// Look at documentation of 'RegisterTagNameFunc' for more details
	validate.RegisterTagNameFunc(useJSONTagNames)
}

func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

// User friendly message for failed validation tag
func validationMessage(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return "Value is too short (minimum " + fieldError.Param() + ")"
	case "max":
		return "Value is too long (maximum " + fieldError.Param() + ")"
	case "email":
		return "Value is not a valid email"
	case "url":
		return "Value is not a valid URL"
	case "eqfield":
		return "Value must match " + fieldError.Param()
	default:
		return "Invalid value"
	}
}
