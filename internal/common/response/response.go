package response

import (
	"errors"
	"reflect"
	"strings"

	"go-letters/internal/workflow"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ErrorBody is the JSON envelope for every failed request
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

// StatusFor maps a workflow error kind to its HTTP status.
func StatusFor(kind string) int {
	switch kind {
	case workflow.KindValidation:
		return fiber.StatusUnprocessableEntity
	case workflow.KindConflict, workflow.KindAlreadyDecided:
		return fiber.StatusConflict
	case workflow.KindAuthorization:
		return fiber.StatusForbidden
	case workflow.KindImmutable:
		return fiber.StatusLocked
	case workflow.KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// Error writes err as an ErrorBody. Internal errors hide their message.
func Error(c *fiber.Ctx, err error) error {
	kind := workflow.KindOf(err)
	message := err.Error()
	if kind == workflow.KindInternal {
		message = "internal server error"
	}
	return c.Status(StatusFor(kind)).JSON(ErrorBody{Error: ErrorDetail{
		Kind:    kind,
		Message: message,
		Fields:  workflow.FieldsOf(err),
	}})
}

// Bind parses the request body into dst and runs struct validation on it.
func Bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return workflow.NewValidationError("invalid request body")
	}
	return Struct(dst)
}

// Struct validates an already decoded value. Fields are reported by their
// json names.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return workflow.NewValidationError(err.Error())
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		fields = append(fields, ns)
	}
	return workflow.NewValidationError("invalid request", fields...)
}
