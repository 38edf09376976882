package usercontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/LichessStats/app/models"
)

// UserContext represents the authenticated caller of a request
type UserContext struct {
	UserID     uint   `json:"user_id"`
	Username   string `json:"username"`
	LichessID  string `json:"lichess_id"`
	IsLoggedIn bool   `json:"is_logged_in"`
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx, ok := c.Locals(KeyUserContext).(UserContext); ok {
		return ctx
	}
	return UserContext{IsLoggedIn: false}
}

// Set stores the loaded account for the rest of the request
func Set(c *fiber.Ctx, user *models.User) {
	c.Locals(KeyUser, user)
	c.Locals(KeyUserContext, UserContext{
		UserID:     user.ID,
		Username:   user.Username,
		LichessID:  user.LichessID,
		IsLoggedIn: true,
	})
}

// GetUser returns the account loaded by the auth middleware, or nil
func GetUser(c *fiber.Ctx) *models.User {
	if u, ok := c.Locals(KeyUser).(*models.User); ok {
		return u
	}
	return nil
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// GetUserID returns the current user's ID, or 0 if not logged in
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).UserID
}

// GetUsername returns the current user's username, or empty string if not logged in
func GetUsername(c *fiber.Ctx) string {
	return GetUserContext(c).Username
}
