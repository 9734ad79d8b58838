package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/connectsphere/connectsphere/internal/models"
	"github.com/connectsphere/connectsphere/internal/realtime"
)

var (
	ErrCannotFriendSelf = errors.New("cannot send friend request to yourself")
	ErrAlreadyFriends   = errors.New("users are already friends")
	ErrRequestNotFound  = errors.New("friend request not found")
)

type FriendService struct {
	db     DBConn
	events EventPublisher
}

func NewFriendService(db DBConn, events EventPublisher) *FriendService {
	return &FriendService{db: db, events: events}
}

// SendRequest drops an entry into the recipient's mailbox. Re-sending is
// idempotent: the keyed entry is overwritten with a fresh timestamp.
func (s *FriendService) SendRequest(ctx context.Context, senderID, recipientID uuid.UUID) (*models.FriendRequest, error) {
	if senderID == recipientID {
		return nil, ErrCannotFriendSelf
	}

	friends, err := s.AreFriends(ctx, senderID, recipientID)
	if err != nil {
		return nil, err
	}
	if friends {
		return nil, ErrAlreadyFriends
	}

	request := &models.FriendRequest{}
	err = s.db.QueryRow(ctx,
		`INSERT INTO friend_requests (recipient_id, sender_id, status)
		 VALUES ($1, $2, 'pending')
		 ON CONFLICT (recipient_id, sender_id) DO UPDATE SET created_at = NOW()
		 RETURNING recipient_id, sender_id, status, created_at`,
		recipientID, senderID,
	).Scan(&request.RecipientID, &request.SenderID, &request.Status, &request.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating friend request: %w", err)
	}

	s.publish(ctx, realtime.InboxTopic(recipientID), "request", request)
	return request, nil
}

// AcceptRequest performs the one genuinely transactional write in the system:
// both friendship edges and the mailbox deletion commit together, so the
// request can never vanish without the backlinks existing, and vice versa.
func (s *FriendService) AcceptRequest(ctx context.Context, userID, senderID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx,
		"DELETE FROM friend_requests WHERE recipient_id = $1 AND sender_id = $2",
		userID, senderID,
	)
	if err != nil {
		return fmt.Errorf("removing friend request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRequestNotFound
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO friendships (user_id, friend_id) VALUES ($1, $2), ($2, $1)
		 ON CONFLICT (user_id, friend_id) DO NOTHING`,
		userID, senderID,
	); err != nil {
		return fmt.Errorf("writing friendship edges: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing accept: %w", err)
	}

	s.publish(ctx, realtime.InboxTopic(userID), "accepted", map[string]string{"friend_id": senderID.String()})
	s.publish(ctx, realtime.InboxTopic(senderID), "accepted", map[string]string{"friend_id": userID.String()})
	return nil
}

// RejectRequest deletes the mailbox entry. The source UI exposed reject
// without persisting anything; here the delete is real so a rejected sender
// can request again later without the stale entry shadowing the new one.
func (s *FriendService) RejectRequest(ctx context.Context, userID, senderID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		"DELETE FROM friend_requests WHERE recipient_id = $1 AND sender_id = $2",
		userID, senderID,
	)
	if err != nil {
		return fmt.Errorf("rejecting friend request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (s *FriendService) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.Friend, error) {
	rows, err := s.db.Query(ctx,
		`SELECT u.id, u.username, s.code, u.photo_url, u.is_online, u.last_seen, f.created_at
		 FROM friendships f
		 JOIN users u ON u.id = f.friend_id
		 JOIN short_ids s ON s.user_id = u.id
		 WHERE f.user_id = $1
		 ORDER BY u.username`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing friends: %w", err)
	}
	defer rows.Close()

	var friends []models.Friend
	for rows.Next() {
		var f models.Friend
		if err := rows.Scan(&f.UserID, &f.Username, &f.ShortID, &f.PhotoURL, &f.IsOnline, &f.LastSeen, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning friend: %w", err)
		}
		friends = append(friends, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading friends: %w", err)
	}

	if friends == nil {
		friends = []models.Friend{}
	}
	return friends, nil
}

func (s *FriendService) ListPendingRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithSender, error) {
	rows, err := s.db.Query(ctx,
		`SELECT r.recipient_id, r.sender_id, r.status, r.created_at, u.username, s.code, u.photo_url
		 FROM friend_requests r
		 JOIN users u ON u.id = r.sender_id
		 JOIN short_ids s ON s.user_id = u.id
		 WHERE r.recipient_id = $1 AND r.status = 'pending'
		 ORDER BY r.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing pending requests: %w", err)
	}
	defer rows.Close()

	var requests []models.FriendRequestWithSender
	for rows.Next() {
		var r models.FriendRequestWithSender
		if err := rows.Scan(&r.RecipientID, &r.SenderID, &r.Status, &r.CreatedAt, &r.SenderUsername, &r.SenderShortID, &r.SenderPhotoURL); err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading requests: %w", err)
	}

	if requests == nil {
		requests = []models.FriendRequestWithSender{}
	}
	return requests, nil
}

func (s *FriendService) AreFriends(ctx context.Context, userID, otherID uuid.UUID) (bool, error) {
	var friends bool
	err := s.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM friendships WHERE user_id = $1 AND friend_id = $2)",
		userID, otherID,
	).Scan(&friends)
	if err != nil {
		return false, fmt.Errorf("checking friendship: %w", err)
	}
	return friends, nil
}

func (s *FriendService) publish(ctx context.Context, topic, kind string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, topic, kind, payload); err != nil {
		logPublishFailure(topic, err)
	}
}
