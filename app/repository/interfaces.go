package repository

import (
	"time"

	"github.com/ManuelReschke/LichessStats/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the account store operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByLichessID(lichessID string) (*models.User, error)
	ListAll() ([]models.User, error)
	UpdateCredentials(user *models.User, username string, creds models.Credentials) error
	MarkSynced(id uint, at time.Time) error
	Delete(id uint) error
}

// GameRepository defines the game-related database operations
type GameRepository interface {
	Exists(userID uint, gameID string) (bool, error)
	CreateIfAbsent(game *models.Game) (bool, error)
	List(userID uint, filter GameFilter, page PageRequest) (*PageResult[models.Game], error)
	Stats(userID uint) (*GameStats, error)
	CountByUserID(userID uint) (int64, error)
}

// GameFilter holds the optional list filters; empty fields are ignored.
type GameFilter struct {
	Opening   string // case-insensitive substring
	Result    string // exact
	TimeClass string // exact
}

// GameStats aggregates results of all games of one user.
type GameStats struct {
	Total  int64 `json:"total"`
	Wins   int64 `json:"wins"`
	Losses int64 `json:"losses"`
	Draws  int64 `json:"draws"`
}

// Repositories struct holds all repository instances
type Repositories struct {
	User UserRepository
	Game GameRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User: NewUserRepository(db),
		Game: NewGameRepository(db),
	}
}
