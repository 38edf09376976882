package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/LichessStats/app/models"
	"github.com/ManuelReschke/LichessStats/app/repository"
	"github.com/ManuelReschke/LichessStats/internal/pkg/usercontext"
)

// GameListQuery holds the query parameters of GET /api/games.
// Zero page or per_page falls back to the defaults.
type GameListQuery struct {
	Page      int    `query:"page" validate:"omitempty,min=1"`
	PerPage   int    `query:"per_page" validate:"omitempty,min=1,max=100"`
	Opening   string `query:"opening" validate:"max=255"`
	Result    string `query:"result" validate:"max=16"`
	TimeClass string `query:"time_class" validate:"max=32"`
}

type GameController struct {
	games repository.GameRepository
}

func NewGameController(games repository.GameRepository) *GameController {
	return &GameController{games: games}
}

// HandleList returns one page of the caller's games, newest first
func (g *GameController) HandleList(c *fiber.Ctx) error {
	var q GameListQuery
	if err := c.QueryParser(&q); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "invalid_query", err.Error())
	}
	if err := validate.Struct(q); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "invalid_query", validationMessage(err))
	}

	userID := usercontext.GetUserID(c)
	page, err := g.games.List(userID, repository.GameFilter{
		Opening:   q.Opening,
		Result:    q.Result,
		TimeClass: q.TimeClass,
	}, repository.PageRequest{Page: q.Page, PageSize: q.PerPage})
	if err != nil {
		log.Errorf("[Games] List failed for user %d: %v", userID, err)
		return errorResponse(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load games")
	}

	games := page.Items
	if games == nil {
		games = []models.Game{}
	}
	return c.JSON(fiber.Map{
		"games":    games,
		"total":    page.Total,
		"page":     page.Page,
		"per_page": page.PageSize,
	})
}

// HandleStats returns win, loss and draw counts of the caller's games
func (g *GameController) HandleStats(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	stats, err := g.games.Stats(userID)
	if err != nil {
		log.Errorf("[Games] Stats failed for user %d: %v", userID, err)
		return errorResponse(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load statistics")
	}
	return c.JSON(stats)
}
