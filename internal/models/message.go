package models

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeAudio MessageType = "audio"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeAudio:
		return true
	}
	return false
}

// Message is one entry in a conversation's append-only log. The id and
// timestamp are assigned by the database, never by the sending client, so
// ordering stays consistent across clients with skewed clocks. Seen is the
// only field ever mutated after insert.
type Message struct {
	ID        uuid.UUID   `json:"id"`
	ChatID    string      `json:"chat_id"`
	SenderID  uuid.UUID   `json:"sender_id"`
	Type      MessageType `json:"type"`
	Text      string      `json:"text,omitempty"`
	ImageURL  string      `json:"image_url,omitempty"`
	AudioURL  string      `json:"audio_url,omitempty"`
	Seen      bool        `json:"seen"`
	Timestamp time.Time   `json:"timestamp"`
}

// MessageDraft is the client-supplied part of a message.
type MessageDraft struct {
	SenderID uuid.UUID   `json:"sender_id"`
	Type     MessageType `json:"type"`
	Text     string      `json:"text,omitempty"`
	ImageURL string      `json:"image_url,omitempty"`
	AudioURL string      `json:"audio_url,omitempty"`
}

// ConversationSummary is the denormalized last-message pointer used to render
// chat lists without fetching full logs. It is overwritten on every send and
// may transiently trail the log if two sends race.
type ConversationSummary struct {
	ChatID        string      `json:"chat_id"`
	UserA         uuid.UUID   `json:"user_a"`
	UserB         uuid.UUID   `json:"user_b"`
	LastType      MessageType `json:"last_type"`
	LastSenderID  uuid.UUID   `json:"last_sender_id"`
	LastText      string      `json:"last_text,omitempty"`
	LastSeen      bool        `json:"last_seen"`
	LastTimestamp time.Time   `json:"last_timestamp"`
}

// Other returns the participant that is not uid.
func (c *ConversationSummary) Other(uid uuid.UUID) uuid.UUID {
	if c.UserA == uid {
		return c.UserB
	}
	return c.UserA
}
