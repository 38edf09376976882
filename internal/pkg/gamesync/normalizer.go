package gamesync

import (
	"time"

	"github.com/ManuelReschke/LichessStats/app/models"
	"github.com/ManuelReschke/LichessStats/internal/pkg/lichess"
	"github.com/ManuelReschke/LichessStats/internal/pkg/pgn"
)

// Normalize maps one exported game onto the games table. The only failure is
// a missing id, reported as ErrRecordRejected.
func Normalize(raw lichess.RawGame) (*models.Game, error) {
	if raw.ID == "" {
		return nil, ErrRecordRejected
	}

	game := &models.Game{
		GameID:    raw.ID,
		White:     playerName(raw.Players, true),
		Black:     playerName(raw.Players, false),
		Result:    Outcome(raw.Winner),
		Opening:   models.UNKNOWN,
		TimeClass: orUnknown(raw.Speed),
		PlayedAt:  PlayedAt(raw.CreatedAt),
		PGN:       raw.PGN,
	}
	if raw.Opening != nil {
		game.Opening = orUnknown(raw.Opening.Name)
		game.ECO = raw.Opening.ECO
	}

	if raw.PGN != nil {
		analysis := pgn.Analyze(*raw.PGN)
		game.Plies = analysis.Plies
		if game.ECO == "" {
			game.ECO = analysis.ECO
		}
	}

	return game, nil
}

// Outcome maps the winner field: white and black win, everything else is a draw.
func Outcome(winner string) string {
	switch winner {
	case "white":
		return models.RESULT_WHITE_WIN
	case "black":
		return models.RESULT_BLACK_WIN
	default:
		return models.RESULT_DRAW
	}
}

// PlayedAt converts a millisecond epoch into a UTC instant.
func PlayedAt(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}

func playerName(players *lichess.Players, white bool) string {
	if players == nil {
		return models.UNKNOWN
	}
	player := players.Black
	if white {
		player = players.White
	}
	if player == nil || player.User == nil {
		return models.UNKNOWN
	}
	return orUnknown(player.User.Name)
}

func orUnknown(s string) string {
	if s == "" {
		return models.UNKNOWN
	}
	return s
}
