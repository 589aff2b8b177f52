// Package middleware contains the gin middleware of the HTTP surface:
// request metadata capture, error rendering, authentication, CORS, rate
// limiting, metrics and timing equalization.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/jorenvermeersch/budget-api/internal/common"
	"github.com/jorenvermeersch/budget-api/internal/logging"
)

const (
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternal         = "INTERNAL_SERVER_ERROR"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Errors renders the last error a handler attached with c.Error, unless the
// handler already wrote a response.
func Errors(logger logging.Logger) gin.HandlerFunc {
	log := logger.With("module", "http_errors")
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		WriteError(c, log, c.Errors.Last().Err)
	}
}

// WriteError maps err to a status code through its kind. Errors without a
// known kind are logged and rendered as a bare 500.
func WriteError(c *gin.Context, logger logging.Logger, err error) {
	status, body := http.StatusInternalServerError, ErrorBody{Code: CodeInternal, Message: "internal server error"}

	var appErr *common.AppError
	if errors.As(err, &appErr) {
		body.Message = appErr.Message
		body.Details = appErr.Details
	}

	switch common.KindOf(err) {
	case common.ErrorUnauthorized:
		status, body.Code = http.StatusUnauthorized, CodeUnauthorized
	case common.ErrorForbidden:
		status, body.Code = http.StatusForbidden, CodeForbidden
	case common.ErrorValidation:
		status, body.Code = http.StatusBadRequest, CodeValidationFailed
	case common.ErrorNotFound:
		status, body.Code = http.StatusNotFound, CodeNotFound
	default:
		logger.Error(c.Request.Context(), "request failed", "path", c.Request.URL.Path, "error", err)
		body.Message = "internal server error"
		body.Details = nil
	}

	c.AbortWithStatusJSON(status, body)
}

var registerOnce sync.Once

// UseJSONFieldNames makes validator report fields by their json tag, so
// error details use the names clients send.
func UseJSONFieldNames() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}

// BindingError turns a gin binding failure into a ValidationFailed error
// with one detail per offending field.
func BindingError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return common.Validation("invalid request body", map[string]any{"body": "could not be parsed"})
	}

	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = describe(fe)
	}
	return common.Validation("validation failed", details)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "ne":
		return fmt.Sprintf("must not be %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "hexadecimal":
		return "must be hexadecimal"
	default:
		return "is invalid"
	}
}
