package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/LichessStats/app/models"
	"github.com/ManuelReschke/LichessStats/app/repository"
	"github.com/ManuelReschke/LichessStats/internal/pkg/database"
	"github.com/ManuelReschke/LichessStats/internal/pkg/security"
	"github.com/ManuelReschke/LichessStats/internal/pkg/usercontext"
)

func setupApp(t *testing.T) (*fiber.App, *security.TokenIssuer, *models.User) {
	t.Helper()
	repos := repository.NewRepositories(database.NewTestDB(t))
	user, err := models.NewUser("alice", "Alice", models.Credentials{AccessToken: "tok"})
	require.NoError(t, err)
	require.NoError(t, repos.User.Create(user))

	issuer, err := security.NewTokenIssuer("secret", time.Hour)
	require.NoError(t, err)

	app := fiber.New()
	app.Use(UserContextMiddleware(issuer, repos.User))
	app.Get("/open", func(c *fiber.Ctx) error {
		return c.JSON(usercontext.GetUserContext(c))
	})
	app.Get("/private", RequireAPIAuth, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"username": usercontext.GetUser(c).Username})
	})
	return app, issuer, user
}

func request(t *testing.T, app *fiber.App, path, token string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: security.AccessTokenCookie, Value: token})
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestUserContextMiddleware_ValidCookie(t *testing.T) {
	app, issuer, user := setupApp(t)
	token, err := issuer.Issue(user.ID, user.Username)
	require.NoError(t, err)

	status, body := request(t, app, "/open", token)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["is_logged_in"])
	assert.Equal(t, "Alice", body["username"])
	assert.Equal(t, "alice", body["lichess_id"])

	status, body = request(t, app, "/private", token)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Alice", body["username"])
}

func TestRequireAPIAuth_Rejections(t *testing.T) {
	app, issuer, _ := setupApp(t)

	unknownUser, err := issuer.Issue(999, "ghost")
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		message string
	}{
		{"no cookie", "", "Not authenticated"},
		{"garbage", "abc.def.ghi", "Invalid token"},
		{"deleted user", unknownUser, "User not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := request(t, app, "/private", tt.token)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, "unauthorized", body["error"])
			assert.Equal(t, tt.message, body["message"])
		})
	}

	status, body := request(t, app, "/open", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["is_logged_in"])
}
