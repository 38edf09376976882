package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const TOKEN_TYPE_BEARER = "Bearer"

// User is a Lichess account that logged in at least once.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	LichessID    string     `gorm:"uniqueIndex;type:varchar(64);not null" json:"lichess_id" validate:"required,max=64"`
	Username     string     `gorm:"uniqueIndex;type:varchar(64);not null" json:"username" validate:"required,max=64"`
	AccessToken  string     `gorm:"type:text;not null" json:"-" validate:"required"`
	RefreshToken *string    `gorm:"type:text" json:"-"`
	TokenType    string     `gorm:"type:varchar(32);not null;default:'Bearer'" json:"-"`
	Scope        *string    `gorm:"type:text" json:"-"`
	ExpiresAt    *time.Time `gorm:"default:null" json:"expires_at,omitempty"`
	LastSyncedAt *time.Time `gorm:"default:null" json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Games []Game `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// Credentials is the token set handed out by the OAuth flow.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresAt    time.Time
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// NewUser builds a validated account from a freshly completed login.
func NewUser(lichessID, username string, creds Credentials) (*User, error) {
	u := &User{
		LichessID: lichessID,
		Username:  username,
	}
	u.ApplyCredentials(creds)

	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// ApplyCredentials overwrites every credential field; empty optional values are stored as NULL.
func (u *User) ApplyCredentials(creds Credentials) {
	u.AccessToken = creds.AccessToken
	u.RefreshToken = optionalString(creds.RefreshToken)
	u.Scope = optionalString(creds.Scope)
	u.TokenType = creds.TokenType
	if u.TokenType == "" {
		u.TokenType = TOKEN_TYPE_BEARER
	}
	if creds.ExpiresAt.IsZero() {
		u.ExpiresAt = nil
	} else {
		t := creds.ExpiresAt.UTC()
		u.ExpiresAt = &t
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
