package serverutils

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// ValidateRequest runs struct-tag validation and maps failures to a 400.
func ValidateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return NewAPIError(fiber.StatusBadRequest,
				fmt.Sprintf("field '%s' failed validation on '%s'", f.Field(), f.Tag()))
		}
		return NewAPIError(fiber.StatusBadRequest, "invalid request payload")
	}
	return nil
}
