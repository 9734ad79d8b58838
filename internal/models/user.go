package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Username     string     `json:"username"`
	ShortID      string     `json:"short_id"`
	PhotoURL     string     `json:"photo_url"`
	IsOnline     bool       `json:"is_online"`
	LastSeen     *time.Time `json:"last_seen,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type CreateUserParams struct {
	Email        string
	PasswordHash string
	Username     string
}

type UpdateProfileParams struct {
	Username *string
	PhotoURL *string
}

// PublicProfile is the view of a user exposed to other users. Email and
// password material never leave the account owner's own responses.
type PublicProfile struct {
	ID       uuid.UUID  `json:"id"`
	Username string     `json:"username"`
	ShortID  string     `json:"short_id"`
	PhotoURL string     `json:"photo_url"`
	IsOnline bool       `json:"is_online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:       u.ID,
		Username: u.Username,
		ShortID:  u.ShortID,
		PhotoURL: u.PhotoURL,
		IsOnline: u.IsOnline,
		LastSeen: u.LastSeen,
	}
}

type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}
