// Package httperr writes the JSON error bodies shared by every handler and
// turns binding failures into per-field messages.
package httperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Fields maps a JSON field name to its error message.
type Fields map[string]string

var setupOnce sync.Once

// Setup registers the custom validations and json field naming on gin's
// validator. Safe to call more than once.
func Setup() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation("notblank", notBlank)
	})
}

// jsonFieldName reports struct fields by their json name.
func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// notBlank rejects strings that are empty after trimming whitespace.
func notBlank(fl validator.FieldLevel) bool {
	field := fl.Field()
	switch field.Kind() {
	case reflect.String:
		return strings.TrimSpace(field.String()) != ""
	case reflect.Ptr:
		if field.IsNil() {
			return true
		}
		return field.Elem().Kind() != reflect.String || strings.TrimSpace(field.Elem().String()) != ""
	default:
		return true
	}
}

// fieldMessage renders a validator failure the way API clients expect it.
func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required."
	case "notblank":
		return "This field may not be blank."
	case "email":
		return "Enter a valid email address."
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("Ensure this field has at least %s characters.", e.Param())
		}
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", e.Param())
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("Ensure this field has no more than %s characters.", e.Param())
		}
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", e.Param())
	case "gte":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", e.Param())
	case "url":
		return "Enter a valid URL."
	default:
		return fmt.Sprintf("Failed on the '%s' rule.", e.Tag())
	}
}

// FieldsFromError converts validator errors into a Fields map. It returns
// nil when err carries no field information.
func FieldsFromError(err error) Fields {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(Fields, len(verrs))
		for _, e := range verrs {
			if _, seen := fields[e.Field()]; !seen {
				fields[e.Field()] = fieldMessage(e)
			}
		}
		return fields
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return Fields{typeErr.Field: fmt.Sprintf("Incorrect type. Expected %s value.", typeErr.Type.Kind())}
	}

	return nil
}

// BindError writes a 400 for a failed ShouldBind call.
func BindError(c *gin.Context, err error) {
	if fields := FieldsFromError(err); fields != nil {
		Validation(c, fields)
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
}

// ErrorResponse is the body of every error reply. Fields is only set for
// validation failures.
type ErrorResponse struct {
	Error  string `json:"error"`
	Fields Fields `json:"fields,omitempty"`
}

// Validation writes a 400 with per-field messages.
func Validation(c *gin.Context, fields Fields) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Fields: fields})
}

// BadRequest writes a 400 with a single message.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

// NotFound writes a 404 for the named resource, e.g. "Recipe not found".
func NotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, gin.H{"error": resource + " not found"})
}

// Internal records err on the context for the request logger and writes a
// 500 with a generic message such as "Failed to create recipe".
func Internal(c *gin.Context, err error, message string) {
	if err != nil {
		_ = c.Error(err)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": message})
}
