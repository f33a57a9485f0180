package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// RespondWithError sends a JSON error response.
func RespondWithError(c *fiber.Ctx, statusCode int, message string) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"status":  "error",
		"message": message,
	})
}

// RespondWithJSON sends a JSON success response.
func RespondWithJSON(c *fiber.Ctx, statusCode int, data interface{}) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"status": "success",
		"data":   data,
	})
}

// FormatValidationErrors flattens validator/v10 errors into readable
// messages.
func FormatValidationErrors(err error) []string {
	var messages []string
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, fieldErr := range validationErrs {
			msg := fmt.Sprintf("Field '%s' failed on the '%s' tag", fieldErr.Field(), fieldErr.Tag())
			if fieldErr.Param() != "" {
				msg = fmt.Sprintf("%s (value: %s)", msg, fieldErr.Param())
			}
			messages = append(messages, msg)
		}
	} else if err != nil {
		messages = append(messages, err.Error())
	}
	return messages
}

// SanitizeInput trims surrounding whitespace from user input.
func SanitizeInput(input string) string {
	return strings.TrimSpace(input)
}
