package middlewares

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"eventsphere/models"
)

// Error types reported in the "type" field of the error envelope.
const (
	TypeValidation = "ValidationError"
	TypeAuth       = "AuthError"
	TypeNotFound   = "NotFoundError"
	TypeRateLimit  = "RateLimitError"
	TypeInternal   = "Error"
)

const internalMessage = "Internal Server Error"

// AppError is an error that knows how it is reported to the client.
type AppError struct {
	Status  int
	Type    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func NewValidationError(message string, err error) *AppError {
	return &AppError{Status: http.StatusBadRequest, Type: TypeValidation, Message: message, Err: err}
}

func NewAuthError(message string, err error) *AppError {
	return &AppError{Status: http.StatusUnauthorized, Type: TypeAuth, Message: message, Err: err}
}

// NewForbiddenError is an AuthError with status 403.
func NewForbiddenError(message string) *AppError {
	return &AppError{Status: http.StatusForbidden, Type: TypeAuth, Message: message}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Status: http.StatusNotFound, Type: TypeNotFound, Message: message}
}

func NewRateLimitError(message string) *AppError {
	return &AppError{Status: http.StatusTooManyRequests, Type: TypeRateLimit, Message: message}
}

// errorBody is the JSON envelope of every failed request.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ToAppError maps any error returned by a handler or a repository to its client form.
func ToAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return NewValidationError(verr.Error(), err)
	}

	switch {
	case errors.Is(err, models.ErrEventNotFound):
		return wrap(NewNotFoundError("Event not found"), err)
	case errors.Is(err, models.ErrRegistrationNotFound):
		return wrap(NewNotFoundError("Registration not found"), err)
	case errors.Is(err, models.ErrUserNotFound):
		return wrap(NewNotFoundError("User not found"), err)
	case errors.Is(err, models.ErrEventFull):
		return NewValidationError("Event is at full capacity", err)
	case errors.Is(err, models.ErrAlreadyRegistered):
		return NewValidationError("Already registered for this event", err)
	case errors.Is(err, models.ErrDuplicateUser):
		return NewValidationError("Username or email already exists", err)
	case errors.Is(err, models.ErrCapacityBelowRegistered):
		return NewValidationError("Capacity cannot be lower than the number of registrations", err)
	}
	return &AppError{Status: http.StatusInternalServerError, Type: TypeInternal, Message: internalMessage, Err: err}
}

func wrap(e *AppError, err error) *AppError {
	e.Err = err
	return e
}

// ErrorHandler renders the last error attached to the context as the JSON envelope.
// Handlers report failures with c.Error(err) and return.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		writeError(c, c.Errors.Last().Err)
	}
}

// Recovery turns a panic into the 500 envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		zerolog.Ctx(c.Request.Context()).Error().
			Interface("panic", recovered).
			Str("path", c.Request.URL.Path).
			Msg("panic recovered")
		respond(c, &AppError{Status: http.StatusInternalServerError, Type: TypeInternal, Message: internalMessage})
	})
}

func writeError(c *gin.Context, err error) {
	appErr := ToAppError(err)

	logger := zerolog.Ctx(c.Request.Context())
	event := logger.Warn()
	if appErr.Status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).
		Int("status", appErr.Status).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Msg(appErr.Message)

	respond(c, appErr)
}

func respond(c *gin.Context, e *AppError) {
	c.AbortWithStatusJSON(e.Status, errorBody{Error: errorDetail{Message: e.Message, Type: e.Type}})
}

// abortWithError records err for ErrorHandler and stops the chain.
func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
