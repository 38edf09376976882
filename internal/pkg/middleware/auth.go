package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/LichessStats/internal/pkg/usercontext"
)

// RequireAPIAuth ensures an authenticated caller and returns JSON 401 otherwise.
func RequireAPIAuth(c *fiber.Ctx) error {
	if usercontext.IsLoggedIn(c) {
		return c.Next()
	}
	message, _ := c.Locals(usercontext.KeyAuthError).(string)
	if message == "" {
		message = authErrNotAuthenticated
	}
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":   "unauthorized",
		"message": message,
	})
}
