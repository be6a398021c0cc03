package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/merceton/merceton/internal/apperror"
	"github.com/merceton/merceton/internal/validation"
)

var (
	ErrUnauthorized   = apperror.Unauthorized("unauthorized", "unauthorized")
	ErrInvalidRequest = apperror.Validation("invalid_request", "invalid request")
)

type errorResponse struct {
	Success bool                    `json:"success"`
	Error   string                  `json:"error"`
	Code    string                  `json:"code,omitempty"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, payload)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func statusForKind(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindUnauthorized:
		return http.StatusUnauthorized
	case apperror.KindForbidden:
		return http.StatusForbidden
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict:
		return http.StatusConflict
	case apperror.KindBusinessRule:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func mapError(err error) (int, errorResponse) {
	status := statusForKind(apperror.KindOf(err))
	payload := errorResponse{Success: false, Error: apperror.Message(err)}
	if appErr, ok := apperror.As(err); ok {
		payload.Code = appErr.Code
	}

	var vErr *validation.Errors
	if errors.As(err, &vErr) && vErr != nil {
		payload.Fields = vErr.Fields
	}
	if status == http.StatusInternalServerError {
		payload.Error = "internal server error"
		payload.Code = "internal_error"
	}
	return status, payload
}

// classifyErrorForLog feeds the request logger.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	code := ""
	if appErr, ok := apperror.As(err); ok {
		code = appErr.Code
	}
	return string(apperror.KindOf(err)), code
}
