package gamesync

import (
	"fmt"

	"github.com/ManuelReschke/LichessStats/app/models"
	"github.com/ManuelReschke/LichessStats/app/repository"
)

// Persister writes normalized games, skipping ones the account already has.
type Persister struct {
	games repository.GameRepository
}

func NewPersister(games repository.GameRepository) *Persister {
	return &Persister{games: games}
}

// Save inserts the game for userID unless it exists and reports whether it did.
// Two concurrent writers are settled by the unique index.
func (p *Persister) Save(userID uint, game *models.Game) (bool, error) {
	exists, err := p.games.Exists(userID, game.GameID)
	if err != nil {
		return false, fmt.Errorf("lookup game %s: %w", game.GameID, err)
	}
	if exists {
		return false, nil
	}

	game.UserID = userID
	inserted, err := p.games.CreateIfAbsent(game)
	if err != nil {
		return false, fmt.Errorf("insert game %s: %w", game.GameID, err)
	}
	return inserted, nil
}
