package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/care-api/pkg/errors"
)

// Response wraps all JSON responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error is the wire form of an AppError.
type Error struct {
	Kind    string `json:"kind"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
}

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrNotFound:
		return http.StatusNotFound
	case errors.ErrValidation:
		return http.StatusBadRequest
	case errors.ErrForbidden:
		return http.StatusForbidden
	case errors.ErrConflict, errors.ErrInvalidTransition:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithError aborts the request with the status matching err. Errors
// that are not AppErrors are reported as internal without their text.
func RespondWithError(c *gin.Context, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.Internal(err)
	}

	message := appErr.Message
	if appErr.Code == errors.ErrInternal {
		message = "Internal server error"
	}

	c.AbortWithStatusJSON(StatusFor(appErr.Code), Response{
		Success: false,
		Error: &Error{
			Kind:    appErr.Code.String(),
			Rule:    appErr.Rule,
			Message: message,
		},
	})
}
