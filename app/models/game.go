package models

import "time"

// Game results in PGN notation
const (
	RESULT_WHITE_WIN = "1-0"
	RESULT_BLACK_WIN = "0-1"
	RESULT_DRAW      = "1/2-1/2"

	UNKNOWN = "Unknown"
)

// Game is one finished game imported from Lichess. (UserID, GameID) is unique so
// repeated sync runs cannot import the same game twice for one account.
type Game struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;uniqueIndex:idx_games_user_game,priority:1;index" json:"-"`
	GameID    string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_games_user_game,priority:2" json:"game_id"`
	White     string     `gorm:"type:varchar(64)" json:"white"`
	Black     string     `gorm:"type:varchar(64)" json:"black"`
	Result    string     `gorm:"type:varchar(16);index" json:"result"`
	Opening   string     `gorm:"type:varchar(255)" json:"opening"`
	ECO       string     `gorm:"column:eco;type:varchar(8)" json:"eco"`
	TimeClass string     `gorm:"type:varchar(32);index" json:"time_class"`
	Plies     int        `gorm:"default:0" json:"plies"`
	PlayedAt  *time.Time `gorm:"index" json:"played_at"`
	PGN       *string    `gorm:"column:pgn;type:text" json:"pgn"`
}

// IsValidResult reports whether r is one of the three stored outcomes.
func IsValidResult(r string) bool {
	switch r {
	case RESULT_WHITE_WIN, RESULT_BLACK_WIN, RESULT_DRAW:
		return true
	}
	return false
}
