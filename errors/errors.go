package errors

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
)

// Error is the error type returned across service boundaries. It carries the
// HTTP status the handler layer should respond with.
type Error struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func New(message string, status int) *Error {
	return &Error{
		Message: message,
		Status:  status,
	}
}

var (
	ErrNotFound            = New("resource not found", http.StatusNotFound)
	ErrBadRequest          = New("bad request", http.StatusBadRequest)
	ErrInternalServerError = New("internal server error", http.StatusInternalServerError)
	ErrUnauthorized        = New("unauthorized", http.StatusUnauthorized)
	InActiveUserError      = New("user inactive", http.StatusUnauthorized)

	// Chat pipeline errors.
	ErrPermissionDenied    = New("permission denied", http.StatusForbidden)
	ErrConversationBlocked = New("conversation is blocked", http.StatusForbidden)
	ErrSendFailed          = New("message could not be sent", http.StatusBadGateway)
	ErrDeleteFailed        = New("message could not be deleted", http.StatusBadGateway)
	ErrDecryptionFailed    = New("message could not be decrypted", http.StatusUnprocessableEntity)

	// Media validation errors. Raised before any network call is made.
	ErrPayloadTooLarge    = New("file exceeds the maximum allowed size", http.StatusRequestEntityTooLarge)
	ErrUnsupportedFormat  = New("unsupported media format", http.StatusUnsupportedMediaType)
	ErrUploadFailed       = New("media upload failed", http.StatusBadGateway)
)

// GetUniqueContraintError maps a postgres unique-violation to a friendly 400.
func GetUniqueContraintError(err error) *Error {
	if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
		return New("user already exists", http.StatusBadRequest)
	}
	return New(err.Error(), http.StatusBadRequest)
}

// ErrorHandler is plugged into the gin rate limiter.
func ErrorHandler(c *gin.Context, info ratelimit.Info) {
	c.JSON(http.StatusTooManyRequests, gin.H{
		"message": "Too many requests. Try again in " + time.Until(info.ResetTime).String(),
	})
}
