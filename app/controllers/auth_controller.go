package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/markbates/goth"
	gothfiber "github.com/shareed2k/goth_fiber"
	"gorm.io/gorm"

	"github.com/ManuelReschke/LichessStats/app/models"
	"github.com/ManuelReschke/LichessStats/app/repository"
	"github.com/ManuelReschke/LichessStats/internal/pkg/jobqueue"
	"github.com/ManuelReschke/LichessStats/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/LichessStats/internal/pkg/oauth"
	"github.com/ManuelReschke/LichessStats/internal/pkg/security"
	"github.com/ManuelReschke/LichessStats/internal/pkg/usercontext"
)

// SyncTrigger queues sync runs for an account.
type SyncTrigger interface {
	RunFullBackfill(ctx context.Context, userID uint) (*jobqueue.Job, error)
	RefreshAccount(ctx context.Context, userID uint) (*jobqueue.Job, error)
	AccountTotals(ctx context.Context, userID uint) (*counter.Totals, error)
}

// CompleteAuthFunc finishes the provider flow of the current request.
type CompleteAuthFunc func(c *fiber.Ctx) (goth.User, error)

type AuthController struct {
	users        repository.UserRepository
	issuer       *security.TokenIssuer
	trigger      SyncTrigger
	redirectURL  string
	secureCookie bool

	begin    fiber.Handler
	complete CompleteAuthFunc
}

func NewAuthController(users repository.UserRepository, issuer *security.TokenIssuer, trigger SyncTrigger, redirectURL string, secureCookie bool) *AuthController {
	return &AuthController{
		users:        users,
		issuer:       issuer,
		trigger:      trigger,
		redirectURL:  redirectURL,
		secureCookie: secureCookie,
		begin:        gothfiber.BeginAuthHandler,
		complete: func(c *fiber.Ctx) (goth.User, error) {
			return gothfiber.CompleteUserAuth(c)
		},
	}
}

// WithCompleteAuth replaces the provider round trip, e.g. in tests.
func (a *AuthController) WithCompleteAuth(fn CompleteAuthFunc) *AuthController {
	a.complete = fn
	return a
}

// HandleLogin redirects to the Lichess authorization page.
func (a *AuthController) HandleLogin(c *fiber.Ctx) error {
	selectProvider(c)
	return a.begin(c)
}

// HandleCallback completes the OAuth flow, stores the account and sets the session cookie
func (a *AuthController) HandleCallback(c *fiber.Ctx) error {
	if oauthErr := c.Query("error"); oauthErr != "" {
		msg := c.Query("error_description", oauthErr)
		log.Warnf("[Auth] Authorization denied: %s", msg)
		return errorResponse(c, fiber.StatusBadRequest, "oauth_error", msg)
	}

	selectProvider(c)
	u, err := a.complete(c)
	if err != nil {
		log.Warnf("[Auth] OAuth failed: %v", err)
		return errorResponse(c, fiber.StatusBadRequest, "oauth_failed", "OAuth failed")
	}

	user, created, err := a.upsertUser(u)
	if err != nil {
		log.Errorf("[Auth] Could not store account %s: %v", u.UserID, err)
		return errorResponse(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to store account")
	}

	if created {
		if job, err := a.trigger.RunFullBackfill(c.Context(), user.ID); err != nil {
			log.Errorf("[Auth] Could not queue backfill for user %d: %v", user.ID, err)
		} else {
			log.Infof("[Auth] New account %s, backfill job %s queued", user.Username, job.ID)
		}
	}

	token, err := a.issuer.Issue(user.ID, user.Username)
	if err != nil {
		return errorResponse(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to issue session")
	}

	c.Cookie(&fiber.Cookie{
		Name:     security.AccessTokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(a.issuer.TTL().Seconds()),
		HTTPOnly: true,
		Secure:   a.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect(a.redirectURL+"/", fiber.StatusSeeOther)
}

// HandleLogout clears the session cookie
func (a *AuthController) HandleLogout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     security.AccessTokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   a.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// HandleMe returns the authenticated account
func (a *AuthController) HandleMe(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	return c.JSON(fiber.Map{
		"id":         userCtx.UserID,
		"username":   userCtx.Username,
		"lichess_id": userCtx.LichessID,
	})
}

// upsertUser creates the account on first login and refreshes its credentials
// afterwards. created is true only for a new row.
func (a *AuthController) upsertUser(u goth.User) (*models.User, bool, error) {
	username := firstNonEmpty(u.NickName, u.Name, u.UserID)
	creds := credentialsFromGoth(u)

	existing, err := a.users.GetByLichessID(u.UserID)
	if err == nil {
		return existing, false, a.users.UpdateCredentials(existing, username, creds)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	user, err := models.NewUser(u.UserID, username, creds)
	if err != nil {
		return nil, false, err
	}
	if err := a.users.Create(user); err != nil {
		// a parallel login won the insert
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if existing, lookupErr := a.users.GetByLichessID(u.UserID); lookupErr == nil {
				return existing, false, a.users.UpdateCredentials(existing, username, creds)
			}
		}
		return nil, false, err
	}
	return user, true, nil
}

func credentialsFromGoth(u goth.User) models.Credentials {
	creds := models.Credentials{
		AccessToken:  u.AccessToken,
		RefreshToken: u.RefreshToken,
		ExpiresAt:    u.ExpiresAt,
	}
	if v, ok := u.RawData["token_type"].(string); ok {
		creds.TokenType = v
	}
	if v, ok := u.RawData["scope"].(string); ok {
		creds.Scope = v
	}
	return creds
}

// selectProvider pins the goth provider for routes without a :provider param.
func selectProvider(c *fiber.Ctx) {
	c.Request().URI().QueryArgs().Set("provider", oauth.ProviderName)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
