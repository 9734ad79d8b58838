package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/connectsphere/connectsphere/internal/models"
	"github.com/connectsphere/connectsphere/internal/realtime"
)

var (
	ErrInvalidChatID  = errors.New("invalid chat id")
	ErrNotParticipant = errors.New("user is not a participant of this conversation")
	ErrInvalidMessage = errors.New("invalid message")
	ErrMessageTooLong = errors.New("message text too long")
)

const maxMessageLength = 4096

// ChatID derives the deterministic conversation identifier for an unordered
// pair of users: the lexicographically smaller id first, joined by an
// underscore. ChatID(a, b) == ChatID(b, a) always.
func ChatID(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if x < y {
		return x + "_" + y
	}
	return y + "_" + x
}

// ParseChatID recovers the two participants. Underscore is safe as a
// separator because UUID strings never contain one.
func ParseChatID(chatID string) (uuid.UUID, uuid.UUID, error) {
	parts := strings.Split(chatID, "_")
	if len(parts) != 2 {
		return uuid.Nil, uuid.Nil, ErrInvalidChatID
	}
	a, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrInvalidChatID
	}
	b, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrInvalidChatID
	}
	if a == b || parts[0] > parts[1] {
		return uuid.Nil, uuid.Nil, ErrInvalidChatID
	}
	return a, b, nil
}

type ChatService struct {
	db     DBConn
	events EventPublisher
}

func NewChatService(db DBConn, events EventPublisher) *ChatService {
	return &ChatService{db: db, events: events}
}

// Send appends to the conversation log and then overwrites the summary
// pointer. The two writes are deliberately independent statements: a failure
// between them leaves a stale summary that the next successful send repairs.
// Both the message id and the timestamp come from the database, never from
// the client.
func (s *ChatService) Send(ctx context.Context, chatID string, draft models.MessageDraft) (*models.Message, error) {
	userA, userB, err := ParseChatID(chatID)
	if err != nil {
		return nil, err
	}
	if draft.SenderID != userA && draft.SenderID != userB {
		return nil, ErrNotParticipant
	}
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ChatID:   chatID,
		SenderID: draft.SenderID,
		Type:     draft.Type,
		Text:     draft.Text,
		ImageURL: draft.ImageURL,
		AudioURL: draft.AudioURL,
	}
	err = s.db.QueryRow(ctx,
		`INSERT INTO messages (chat_id, sender_id, type, text, image_url, audio_url)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, seen, created_at`,
		chatID, draft.SenderID, string(draft.Type), draft.Text, draft.ImageURL, draft.AudioURL,
	).Scan(&msg.ID, &msg.Seen, &msg.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("appending message: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO conversations (chat_id, user_a, user_b, last_type, last_sender_id, last_text, last_seen, last_timestamp, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, false, $7, NOW())
		 ON CONFLICT (chat_id) DO UPDATE SET
		   last_type = EXCLUDED.last_type,
		   last_sender_id = EXCLUDED.last_sender_id,
		   last_text = EXCLUDED.last_text,
		   last_seen = EXCLUDED.last_seen,
		   last_timestamp = EXCLUDED.last_timestamp,
		   updated_at = NOW()`,
		chatID, userA, userB, string(msg.Type), msg.SenderID, msg.Text, msg.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("updating conversation summary: %w", err)
	}

	s.publish(ctx, realtime.ChatTopic(chatID), "message", msg)
	return msg, nil
}

// Messages returns the full current log for a conversation, ordered by the
// server-assigned timestamp ascending. Storage order is not trusted: the set
// is re-sorted after the fetch, the same discipline a subscriber applies to
// every snapshot it receives.
func (s *ChatService) Messages(ctx context.Context, chatID string) ([]models.Message, error) {
	if _, _, err := ParseChatID(chatID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, chat_id, sender_id, type, text, image_url, audio_url, seen, created_at
		 FROM messages WHERE chat_id = $1`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var mType string
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &mType, &m.Text, &m.ImageURL, &m.AudioURL, &m.Seen, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Type = models.MessageType(mType)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading messages: %w", err)
	}

	SortMessages(messages)

	if messages == nil {
		messages = []models.Message{}
	}
	return messages, nil
}

// SortMessages orders a snapshot by timestamp ascending, falling back to id
// so equal timestamps still sort deterministically.
func SortMessages(messages []models.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].Timestamp.Equal(messages[j].Timestamp) {
			return messages[i].ID.String() < messages[j].ID.String()
		}
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
}

// MarkSeen flips the seen flag on everything the other participant sent.
// This is the only mutation the log permits.
func (s *ChatService) MarkSeen(ctx context.Context, chatID string, readerID uuid.UUID) error {
	userA, userB, err := ParseChatID(chatID)
	if err != nil {
		return err
	}
	if readerID != userA && readerID != userB {
		return ErrNotParticipant
	}

	if _, err := s.db.Exec(ctx,
		"UPDATE messages SET seen = true WHERE chat_id = $1 AND sender_id <> $2 AND seen = false",
		chatID, readerID,
	); err != nil {
		return fmt.Errorf("marking messages seen: %w", err)
	}

	if _, err := s.db.Exec(ctx,
		"UPDATE conversations SET last_seen = true WHERE chat_id = $1 AND last_sender_id <> $2",
		chatID, readerID,
	); err != nil {
		return fmt.Errorf("marking summary seen: %w", err)
	}

	s.publish(ctx, realtime.ChatTopic(chatID), "seen", map[string]string{"reader_id": readerID.String()})
	return nil
}

// Summaries returns the denormalized conversation list for a user, most
// recent activity first.
func (s *ChatService) Summaries(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	rows, err := s.db.Query(ctx,
		`SELECT chat_id, user_a, user_b, last_type, last_sender_id, last_text, last_seen, last_timestamp
		 FROM conversations
		 WHERE user_a = $1 OR user_b = $1
		 ORDER BY last_timestamp DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var summaries []models.ConversationSummary
	for rows.Next() {
		var c models.ConversationSummary
		var lastType string
		if err := rows.Scan(&c.ChatID, &c.UserA, &c.UserB, &lastType, &c.LastSenderID, &c.LastText, &c.LastSeen, &c.LastTimestamp); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		c.LastType = models.MessageType(lastType)
		summaries = append(summaries, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading conversations: %w", err)
	}

	if summaries == nil {
		summaries = []models.ConversationSummary{}
	}
	return summaries, nil
}

func validateDraft(draft models.MessageDraft) error {
	if !draft.Type.Valid() {
		return ErrInvalidMessage
	}
	if len(draft.Text) > maxMessageLength {
		return ErrMessageTooLong
	}
	switch draft.Type {
	case models.MessageTypeText:
		if strings.TrimSpace(draft.Text) == "" {
			return ErrInvalidMessage
		}
	case models.MessageTypeImage:
		if draft.ImageURL == "" {
			return ErrInvalidMessage
		}
	case models.MessageTypeAudio:
		if draft.AudioURL == "" {
			return ErrInvalidMessage
		}
	}
	return nil
}

func (s *ChatService) publish(ctx context.Context, topic, kind string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, topic, kind, payload); err != nil {
		logPublishFailure(topic, err)
	}
}
