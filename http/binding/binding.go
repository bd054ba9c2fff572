package binding

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	validatorV10 "github.com/go-playground/validator/v10"

	"github.com/leeforge/thumbnail/json"
)

type BindError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e BindError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: field '%s' %s", e.Type, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

type ValidationErrors []BindError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", ve[0].Error())
}

// Query binds the URL query of r into v and validates it.
func Query(r *http.Request, v any) error {
	if err := NewQueryParser().Parse(r.URL.Query(), v); err != nil {
		return err
	}
	return validate(v)
}

// JSON decodes the body of r into v and validates it. An empty body leaves
// v at its defaults.
func JSON(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return decodeEmpty(v)
	}
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return &BindError{Type: "bind_error", Message: "failed to read request body: " + err.Error()}
	}
	if len(body) == 0 {
		return decodeEmpty(v)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return &BindError{Type: "json_error", Message: "failed to unmarshal JSON: " + err.Error()}
	}
	return validate(v)
}

func decodeEmpty(v any) error {
	if err := json.Unmarshal([]byte("{}"), v); err != nil {
		return &BindError{Type: "bind_error", Message: err.Error()}
	}
	return validate(v)
}

func validate(v any) error {
	err := validator.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validatorV10.ValidationErrors
	if errors.As(err, &fieldErrs) {
		out := make(ValidationErrors, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			out = append(out, BindError{
				Type:    "validation_error",
				Field:   fe.Field(),
				Message: getValidationMessage(fe),
			})
		}
		return out
	}
	return &BindError{Type: "validation_error", Message: err.Error()}
}
