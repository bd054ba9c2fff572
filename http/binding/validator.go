package binding

import (
	"fmt"

	validatorV10 "github.com/go-playground/validator/v10"
)

var validator = validatorV10.New()

func getValidationMessage(fe validatorV10.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "alphanum":
		return "must contain only alphanumeric characters"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "dive":
		return "contains an invalid element"
	default:
		return fmt.Sprintf("failed validation for tag '%s'", fe.Tag())
	}
}
