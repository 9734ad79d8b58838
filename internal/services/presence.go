package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/connectsphere/connectsphere/internal/realtime"
)

// PresenceService maintains the online flag and last-seen timestamp. The
// timestamps are assigned by the database clock, so presence stays coherent
// across clients regardless of their local time.
type PresenceService struct {
	db     DBConn
	events EventPublisher
}

type PresenceState struct {
	UserID   uuid.UUID  `json:"user_id"`
	IsOnline bool       `json:"is_online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

func NewPresenceService(db DBConn, events EventPublisher) *PresenceService {
	return &PresenceService{db: db, events: events}
}

// SetOnline marks the user online. Called when a realtime connection
// attaches, after the disconnect obligation has been registered.
func (s *PresenceService) SetOnline(ctx context.Context, userID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		"UPDATE users SET is_online = true, updated_at = NOW() WHERE id = $1",
		userID,
	)
	if err != nil {
		return fmt.Errorf("setting online: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	s.publish(ctx, PresenceState{UserID: userID, IsOnline: true})
	return nil
}

// SetOffline marks the user offline and stamps last-seen with the server
// clock. This is the deferred write that fires when the user's last
// connection drops, and also the path an orderly logout takes; both converge
// to the same state, which keeps the logout/disconnect race benign.
func (s *PresenceService) SetOffline(ctx context.Context, userID uuid.UUID) error {
	var lastSeen time.Time
	err := s.db.QueryRow(ctx,
		"UPDATE users SET is_online = false, last_seen = NOW(), updated_at = NOW() WHERE id = $1 RETURNING last_seen",
		userID,
	).Scan(&lastSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		// Account deleted while the socket was open; nothing to record.
		return nil
	}
	if err != nil {
		return fmt.Errorf("setting offline: %w", err)
	}

	s.publish(ctx, PresenceState{UserID: userID, IsOnline: false, LastSeen: &lastSeen})
	return nil
}

func (s *PresenceService) Get(ctx context.Context, userID uuid.UUID) (*PresenceState, error) {
	state := &PresenceState{UserID: userID}
	err := s.db.QueryRow(ctx,
		"SELECT is_online, last_seen FROM users WHERE id = $1",
		userID,
	).Scan(&state.IsOnline, &state.LastSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading presence: %w", err)
	}
	return state, nil
}

func (s *PresenceService) publish(ctx context.Context, state PresenceState) {
	if s.events == nil {
		return
	}
	topic := realtime.PresenceTopic(state.UserID)
	if err := s.events.Publish(ctx, topic, "presence", state); err != nil {
		logPublishFailure(topic, err)
	}
}
