package httpapi

import (
	"errors"
	"runtime/debug"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/gofiber/fiber/v2"
)

// Envelope messages. They never depend on the underlying cause.
var statusMessages = map[int]string{
	fiber.StatusBadRequest:          "The request cannot or will not be processed due to something that is perceived to be a client error (for example, validation error).",
	fiber.StatusUnauthorized:        "Credentials invalid or not provided.",
	fiber.StatusNotFound:            "The requested resource was not found.",
	fiber.StatusConflict:            "The username and/or email address is already registered.",
	fiber.StatusTooManyRequests:     "Too many requests, please try again later.",
	fiber.StatusInternalServerError: "An unexpected condition was encountered.",
}

type envelope struct {
	Status  int        `json:"status"`
	Message string     `json:"message"`
	Cause   *causeBody `json:"cause,omitempty"`
	Stack   string     `json:"stack,omitempty"`
}

type causeBody struct {
	Message string `json:"message"`
}

// apiError pins an HTTP status to a cause. stack is only captured in
// development mode.
type apiError struct {
	status int
	cause  error
	stack  []byte
}

func (e *apiError) Error() string { return e.cause.Error() }
func (e *apiError) Unwrap() error { return e.cause }

// fail wraps err with the status it maps to.
func (s *Server) fail(err error) error {
	ae := &apiError{status: statusFor(err), cause: err}
	if s.dev {
		ae.stack = debug.Stack()
	}
	return ae
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, common.ErrorValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, common.ErrorAlreadyExists):
		return fiber.StatusConflict
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return fiber.StatusUnauthorized
	case errors.Is(err, common.ErrorNotFound):
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}

func messageFor(status int, err error) string {
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	return statusMessages[fiber.StatusInternalServerError]
}

// errorHandler renders every failure as the uniform envelope.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var ae *apiError
	if !errors.As(err, &ae) {
		ae = &apiError{status: statusFor(err), cause: err}
	}

	if ae.status >= fiber.StatusInternalServerError {
		s.log.Error(c.UserContext(), "request failed", "request_id", c.Locals(localRequestID), "method", c.Method(), "path", c.Path(), "error", ae.cause)
	}

	body := envelope{Status: ae.status, Message: messageFor(ae.status, ae.cause)}
	if s.dev {
		body.Cause = &causeBody{Message: ae.cause.Error()}
		stack := ae.stack
		if stack == nil {
			stack = debug.Stack()
		}
		body.Stack = string(stack)
	}

	return c.Status(ae.status).JSON(body)
}
