package repository

import (
	"time"

	"github.com/ManuelReschke/LichessStats/app/models"
	"gorm.io/gorm"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByLichessID retrieves a user by the immutable Lichess account id
func (r *userRepository) GetByLichessID(lichessID string) (*models.User, error) {
	var user models.User
	err := r.db.Where("lichess_id = ?", lichessID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListAll returns every known account ordered by id
func (r *userRepository) ListAll() ([]models.User, error) {
	var users []models.User
	err := r.db.Order("id ASC").Find(&users).Error
	return users, err
}

// UpdateCredentials stores a new token set and the current handle
func (r *userRepository) UpdateCredentials(user *models.User, username string, creds models.Credentials) error {
	user.Username = username
	user.ApplyCredentials(creds)
	return r.db.Model(user).Select("username", "access_token", "refresh_token", "token_type", "scope", "expires_at", "updated_at").Updates(user).Error
}

// MarkSynced records the end of a successful sync run
func (r *userRepository) MarkSynced(id uint, at time.Time) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).UpdateColumn("last_synced_at", at.UTC()).Error
}

// Delete removes a user; their games go with them (ON DELETE CASCADE)
func (r *userRepository) Delete(id uint) error {
	return r.db.Delete(&models.User{}, id).Error
}
