package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/LichessStats/app/repository"
	"github.com/ManuelReschke/LichessStats/internal/pkg/security"
	"github.com/ManuelReschke/LichessStats/internal/pkg/usercontext"
)

const (
	authErrNotAuthenticated = "Not authenticated"
	authErrExpired          = "Token expired"
	authErrInvalid          = "Invalid token"
	authErrUserNotFound     = "User not found"
)

// UserContextMiddleware resolves the access_token cookie into the current
// account. Requests without a valid cookie continue anonymously; the reason
// is kept for RequireAPIAuth.
func UserContextMiddleware(issuer *security.TokenIssuer, users repository.UserRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(security.AccessTokenCookie)
		if token == "" {
			c.Locals(usercontext.KeyAuthError, authErrNotAuthenticated)
			return c.Next()
		}

		claims, err := issuer.Verify(token)
		if err != nil {
			if errors.Is(err, security.ErrTokenExpired) {
				c.Locals(usercontext.KeyAuthError, authErrExpired)
			} else {
				c.Locals(usercontext.KeyAuthError, authErrInvalid)
			}
			return c.Next()
		}

		userID, _ := claims.UserID()
		user, err := users.GetByID(userID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				log.Errorf("[Auth] Could not load user %d: %v", userID, err)
			}
			c.Locals(usercontext.KeyAuthError, authErrUserNotFound)
			return c.Next()
		}

		usercontext.Set(c, user)
		return c.Next()
	}
}
