package serverutils

import "github.com/gofiber/fiber/v2"

// APIError carries an HTTP status alongside a client-facing message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(status int, message string) *APIError {
	return &APIError{Status: status, Message: message}
}

func ErrorResponse(message string) fiber.Map {
	return fiber.Map{
		"error": message,
	}
}
