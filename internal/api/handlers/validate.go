package handlers

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// FieldError describes one rejected request field.
type FieldError struct {
	Code    string                 `json:"code"`
	Field   string                 `json:"field,omitempty"`
	Message string                 `json:"message"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})
	// confidence accepts a probability strictly between 0 and 1.
	_ = v.RegisterValidation("confidence", func(fl validator.FieldLevel) bool {
		c := fl.Field().Float()
		return !math.IsNaN(c) && c > 0 && c < 1
	})
	return v
}

// bindJSON reads the request body into req, applies default tags and validates it.
func bindJSON(c *gin.Context, req interface{}) []FieldError {
	if err := c.ShouldBindJSON(req); err != nil {
		return fieldErrors(err)
	}
	return finishBinding(c, req)
}

// bindQuery reads query parameters into req, applies default tags and validates it.
func bindQuery(c *gin.Context, req interface{}) []FieldError {
	if err := c.ShouldBindQuery(req); err != nil {
		return fieldErrors(err)
	}
	return finishBinding(c, req)
}

func finishBinding(c *gin.Context, req interface{}) []FieldError {
	if err := defaults.Set(req); err != nil {
		return fieldErrors(err)
	}
	if err := validate.StructCtx(c.Request.Context(), req); err != nil {
		return fieldErrors(err)
	}
	return nil
}

func fieldErrors(err error) []FieldError {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		errs := make([]FieldError, 0, len(validationErrors))
		for _, e := range validationErrors {
			errs = append(errs, FieldError{
				Code:    "ERR_" + strings.ToUpper(e.Tag()),
				Field:   e.Field(),
				Message: errorMessage(e),
				Params:  errorParams(e),
			})
		}
		return errs
	}

	return []FieldError{{
		Code:    "ERR_BIND",
		Message: err.Error(),
	}}
}

func errorMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at most %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "confidence":
		return fmt.Sprintf("%s must be between 0 and 1", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

func errorParams(fe validator.FieldError) map[string]interface{} {
	params := make(map[string]interface{})
	switch fe.Tag() {
	case "min", "gte":
		params["min"] = fe.Param()
	case "max", "lte":
		params["max"] = fe.Param()
	case "gt":
		params["value"] = fe.Param()
	case "oneof":
		params["options"] = strings.Split(fe.Param(), " ")
	}
	if len(params) == 0 {
		return nil
	}
	return params
}
