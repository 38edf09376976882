package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/LichessStats/app/models"
)

// gameRepository implements the GameRepository interface
type gameRepository struct {
	db *gorm.DB
}

// NewGameRepository creates a new game repository instance
func NewGameRepository(db *gorm.DB) GameRepository {
	return &gameRepository{db: db}
}

// Exists reports whether the user already has a game with this Lichess id
func (r *gameRepository) Exists(userID uint, gameID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Game{}).
		Where("user_id = ? AND game_id = ?", userID, gameID).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

// CreateIfAbsent inserts the game unless (user_id, game_id) is taken and
// reports whether a row was written. A lost race on the unique index is not an error.
func (r *gameRepository) CreateIfAbsent(game *models.Game) (bool, error) {
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "game_id"}},
		DoNothing: true,
	}).Create(game)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// List returns one page of the user's games, newest played first
func (r *gameRepository) List(userID uint, filter GameFilter, page PageRequest) (*PageResult[models.Game], error) {
	page = NormalizePageRequest(page)
	query := r.filtered(userID, filter)

	var total int64
	if err := query.Session(&gorm.Session{}).Model(&models.Game{}).Count(&total).Error; err != nil {
		return nil, err
	}

	var games []models.Game
	err := query.Session(&gorm.Session{}).
		Order("played_at DESC").
		Order("id DESC").
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&games).Error
	if err != nil {
		return nil, err
	}

	return &PageResult[models.Game]{
		Items:    games,
		Page:     page.Page,
		PageSize: page.PageSize,
		Total:    total,
	}, nil
}

// Stats counts wins, losses and draws by stored result
func (r *gameRepository) Stats(userID uint) (*GameStats, error) {
	var rows []struct {
		Result string
		Count  int64
	}
	err := r.db.Model(&models.Game{}).
		Select("result, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("result").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &GameStats{}
	for _, row := range rows {
		stats.Total += row.Count
		switch row.Result {
		case models.RESULT_WHITE_WIN:
			stats.Wins = row.Count
		case models.RESULT_BLACK_WIN:
			stats.Losses = row.Count
		case models.RESULT_DRAW:
			stats.Draws = row.Count
		}
	}
	return stats, nil
}

// CountByUserID returns the number of games stored for the user
func (r *gameRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Game{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *gameRepository) filtered(userID uint, filter GameFilter) *gorm.DB {
	q := r.db.Model(&models.Game{}).Where("user_id = ?", userID)
	if opening := strings.TrimSpace(filter.Opening); opening != "" {
		q = q.Where("LOWER(opening) LIKE ?", "%"+strings.ToLower(opening)+"%")
	}
	if filter.Result != "" {
		q = q.Where("result = ?", filter.Result)
	}
	if filter.TimeClass != "" {
		q = q.Where("time_class = ?", filter.TimeClass)
	}
	return q
}
