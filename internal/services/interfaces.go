package services

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/connectsphere/connectsphere/internal/models"
)

// UserServiceInterface defines the contract for profile operations.
type UserServiceInterface interface {
	Create(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByShortID(ctx context.Context, code string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, params models.UpdateProfileParams) (*models.User, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, newPasswordHash string) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

// AuthServiceInterface defines the contract for authentication operations.
type AuthServiceInterface interface {
	HashPassword(password string) (string, error)
	VerifyPassword(hash, password string) bool
	CreateSession(ctx context.Context, userID uuid.UUID) (token string, err error)
	ValidateSession(ctx context.Context, token string) (*models.User, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteAllUserSessions(ctx context.Context, userID uuid.UUID) error
	ConfirmPassword(ctx context.Context, userID uuid.UUID, password string) error
}

// FriendServiceInterface defines the contract for friend graph operations.
type FriendServiceInterface interface {
	SendRequest(ctx context.Context, senderID, recipientID uuid.UUID) (*models.FriendRequest, error)
	AcceptRequest(ctx context.Context, userID, senderID uuid.UUID) error
	RejectRequest(ctx context.Context, userID, senderID uuid.UUID) error
	ListFriends(ctx context.Context, userID uuid.UUID) ([]models.Friend, error)
	ListPendingRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithSender, error)
	AreFriends(ctx context.Context, userID, otherID uuid.UUID) (bool, error)
}

// ChatServiceInterface defines the contract for conversation operations.
type ChatServiceInterface interface {
	Send(ctx context.Context, chatID string, draft models.MessageDraft) (*models.Message, error)
	Messages(ctx context.Context, chatID string) ([]models.Message, error)
	MarkSeen(ctx context.Context, chatID string, readerID uuid.UUID) error
	Summaries(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error)
}

// PresenceServiceInterface defines the contract for presence operations.
type PresenceServiceInterface interface {
	SetOnline(ctx context.Context, userID uuid.UUID) error
	SetOffline(ctx context.Context, userID uuid.UUID) error
	Get(ctx context.Context, userID uuid.UUID) (*PresenceState, error)
}

// MediaStoreInterface defines the contract for attachment uploads.
type MediaStoreInterface interface {
	Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) (string, error)
}

// EmailServiceInterface defines the contract for outbound email.
type EmailServiceInterface interface {
	SendWelcomeEmail(ctx context.Context, to, username, shortID string) error
}
