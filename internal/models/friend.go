package models

import (
	"time"

	"github.com/google/uuid"
)

type FriendRequestStatus string

const (
	FriendRequestStatusPending FriendRequestStatus = "pending"
)

// FriendRequest lives in the recipient's mailbox, keyed by sender. There is
// at most one entry per (sender, recipient) pair; re-sending overwrites the
// timestamp.
type FriendRequest struct {
	RecipientID uuid.UUID           `json:"recipient_id"`
	SenderID    uuid.UUID           `json:"sender_id"`
	Status      FriendRequestStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
}

type FriendRequestWithSender struct {
	FriendRequest
	SenderUsername string `json:"sender_username"`
	SenderShortID  string `json:"sender_short_id"`
	SenderPhotoURL string `json:"sender_photo_url"`
}

// Friend is one edge of the symmetric friendship adjacency plus the profile
// fields list views render.
type Friend struct {
	UserID    uuid.UUID  `json:"user_id"`
	Username  string     `json:"username"`
	ShortID   string     `json:"short_id"`
	PhotoURL  string     `json:"photo_url"`
	IsOnline  bool       `json:"is_online"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
