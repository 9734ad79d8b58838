package handlers

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/connectsphere/connectsphere/internal/models"
	"github.com/connectsphere/connectsphere/internal/services"
)

type mockUserService struct {
	CreateFunc         func(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	GetByIDFunc        func(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmailFunc     func(ctx context.Context, email string) (*models.User, error)
	GetByShortIDFunc   func(ctx context.Context, code string) (*models.User, error)
	UpdateProfileFunc  func(ctx context.Context, userID uuid.UUID, params models.UpdateProfileParams) (*models.User, error)
	UpdatePasswordFunc func(ctx context.Context, userID uuid.UUID, newPasswordHash string) error
	DeleteFunc         func(ctx context.Context, userID uuid.UUID) error
}

func (m *mockUserService) Create(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return nil, nil
}

func (m *mockUserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockUserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, nil
}

func (m *mockUserService) GetByShortID(ctx context.Context, code string) (*models.User, error) {
	if m.GetByShortIDFunc != nil {
		return m.GetByShortIDFunc(ctx, code)
	}
	return nil, nil
}

func (m *mockUserService) UpdateProfile(ctx context.Context, userID uuid.UUID, params models.UpdateProfileParams) (*models.User, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, userID, params)
	}
	return nil, nil
}

func (m *mockUserService) UpdatePassword(ctx context.Context, userID uuid.UUID, newPasswordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, userID, newPasswordHash)
	}
	return nil
}

func (m *mockUserService) Delete(ctx context.Context, userID uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID)
	}
	return nil
}

type mockAuthService struct {
	HashPasswordFunc          func(password string) (string, error)
	VerifyPasswordFunc        func(hash, password string) bool
	CreateSessionFunc         func(ctx context.Context, userID uuid.UUID) (string, error)
	ValidateSessionFunc       func(ctx context.Context, token string) (*models.User, error)
	DeleteSessionFunc         func(ctx context.Context, token string) error
	DeleteAllUserSessionsFunc func(ctx context.Context, userID uuid.UUID) error
	ConfirmPasswordFunc       func(ctx context.Context, userID uuid.UUID, password string) error
}

func (m *mockAuthService) HashPassword(password string) (string, error) {
	if m.HashPasswordFunc != nil {
		return m.HashPasswordFunc(password)
	}
	return "hashed_" + password, nil
}

func (m *mockAuthService) VerifyPassword(hash, password string) bool {
	if m.VerifyPasswordFunc != nil {
		return m.VerifyPasswordFunc(hash, password)
	}
	return hash == "hashed_"+password
}

func (m *mockAuthService) CreateSession(ctx context.Context, userID uuid.UUID) (string, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, userID)
	}
	return "test_session_token", nil
}

func (m *mockAuthService) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	if m.ValidateSessionFunc != nil {
		return m.ValidateSessionFunc(ctx, token)
	}
	return nil, nil
}

func (m *mockAuthService) DeleteSession(ctx context.Context, token string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, token)
	}
	return nil
}

func (m *mockAuthService) DeleteAllUserSessions(ctx context.Context, userID uuid.UUID) error {
	if m.DeleteAllUserSessionsFunc != nil {
		return m.DeleteAllUserSessionsFunc(ctx, userID)
	}
	return nil
}

func (m *mockAuthService) ConfirmPassword(ctx context.Context, userID uuid.UUID, password string) error {
	if m.ConfirmPasswordFunc != nil {
		return m.ConfirmPasswordFunc(ctx, userID, password)
	}
	return nil
}

type mockEmailService struct {
	SendWelcomeEmailFunc func(ctx context.Context, to, username, shortID string) error
}

func (m *mockEmailService) SendWelcomeEmail(ctx context.Context, to, username, shortID string) error {
	if m.SendWelcomeEmailFunc != nil {
		return m.SendWelcomeEmailFunc(ctx, to, username, shortID)
	}
	return nil
}

type mockPresenceService struct {
	SetOnlineFunc  func(ctx context.Context, userID uuid.UUID) error
	SetOfflineFunc func(ctx context.Context, userID uuid.UUID) error
	GetFunc        func(ctx context.Context, userID uuid.UUID) (*services.PresenceState, error)
}

func (m *mockPresenceService) SetOnline(ctx context.Context, userID uuid.UUID) error {
	if m.SetOnlineFunc != nil {
		return m.SetOnlineFunc(ctx, userID)
	}
	return nil
}

func (m *mockPresenceService) SetOffline(ctx context.Context, userID uuid.UUID) error {
	if m.SetOfflineFunc != nil {
		return m.SetOfflineFunc(ctx, userID)
	}
	return nil
}

func (m *mockPresenceService) Get(ctx context.Context, userID uuid.UUID) (*services.PresenceState, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID)
	}
	return &services.PresenceState{UserID: userID}, nil
}

type mockFriendService struct {
	SendRequestFunc         func(ctx context.Context, senderID, recipientID uuid.UUID) (*models.FriendRequest, error)
	AcceptRequestFunc       func(ctx context.Context, userID, senderID uuid.UUID) error
	RejectRequestFunc       func(ctx context.Context, userID, senderID uuid.UUID) error
	ListFriendsFunc         func(ctx context.Context, userID uuid.UUID) ([]models.Friend, error)
	ListPendingRequestsFunc func(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithSender, error)
	AreFriendsFunc          func(ctx context.Context, userID, otherID uuid.UUID) (bool, error)
}

func (m *mockFriendService) SendRequest(ctx context.Context, senderID, recipientID uuid.UUID) (*models.FriendRequest, error) {
	if m.SendRequestFunc != nil {
		return m.SendRequestFunc(ctx, senderID, recipientID)
	}
	return nil, nil
}

func (m *mockFriendService) AcceptRequest(ctx context.Context, userID, senderID uuid.UUID) error {
	if m.AcceptRequestFunc != nil {
		return m.AcceptRequestFunc(ctx, userID, senderID)
	}
	return nil
}

func (m *mockFriendService) RejectRequest(ctx context.Context, userID, senderID uuid.UUID) error {
	if m.RejectRequestFunc != nil {
		return m.RejectRequestFunc(ctx, userID, senderID)
	}
	return nil
}

func (m *mockFriendService) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.Friend, error) {
	if m.ListFriendsFunc != nil {
		return m.ListFriendsFunc(ctx, userID)
	}
	return []models.Friend{}, nil
}

func (m *mockFriendService) ListPendingRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithSender, error) {
	if m.ListPendingRequestsFunc != nil {
		return m.ListPendingRequestsFunc(ctx, userID)
	}
	return []models.FriendRequestWithSender{}, nil
}

func (m *mockFriendService) AreFriends(ctx context.Context, userID, otherID uuid.UUID) (bool, error) {
	if m.AreFriendsFunc != nil {
		return m.AreFriendsFunc(ctx, userID, otherID)
	}
	return false, nil
}

type mockChatService struct {
	SendFunc      func(ctx context.Context, chatID string, draft models.MessageDraft) (*models.Message, error)
	MessagesFunc  func(ctx context.Context, chatID string) ([]models.Message, error)
	MarkSeenFunc  func(ctx context.Context, chatID string, readerID uuid.UUID) error
	SummariesFunc func(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error)
}

func (m *mockChatService) Send(ctx context.Context, chatID string, draft models.MessageDraft) (*models.Message, error) {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, chatID, draft)
	}
	return nil, nil
}

func (m *mockChatService) Messages(ctx context.Context, chatID string) ([]models.Message, error) {
	if m.MessagesFunc != nil {
		return m.MessagesFunc(ctx, chatID)
	}
	return []models.Message{}, nil
}

func (m *mockChatService) MarkSeen(ctx context.Context, chatID string, readerID uuid.UUID) error {
	if m.MarkSeenFunc != nil {
		return m.MarkSeenFunc(ctx, chatID, readerID)
	}
	return nil
}

func (m *mockChatService) Summaries(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	if m.SummariesFunc != nil {
		return m.SummariesFunc(ctx, userID)
	}
	return []models.ConversationSummary{}, nil
}

type mockMediaStore struct {
	UploadFunc func(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) (string, error)
}

func (m *mockMediaStore) Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) (string, error) {
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, objectPath, r, size, contentType)
	}
	return "https://media.test/" + objectPath, nil
}
