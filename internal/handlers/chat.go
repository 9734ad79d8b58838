package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/connectsphere/connectsphere/internal/models"
	"github.com/connectsphere/connectsphere/internal/services"
)

type ChatHandler struct {
	chatService   services.ChatServiceInterface
	friendService services.FriendServiceInterface
}

func NewChatHandler(chatService services.ChatServiceInterface, friendService services.FriendServiceInterface) *ChatHandler {
	return &ChatHandler{
		chatService:   chatService,
		friendService: friendService,
	}
}

// ListSummaries returns the caller's conversation list, most recent first.
func (h *ChatHandler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	summaries, err := h.chatService.Summaries(r.Context(), user.ID)
	if err != nil {
		log.Printf("Error listing conversations: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"conversations": summaries})
}

// ListMessages returns the full log of the conversation with another user.
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	otherID, err := uuid.Parse(r.PathValue("userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	chatID := services.ChatID(user.ID, otherID)
	messages, err := h.chatService.Messages(r.Context(), chatID)
	if err != nil {
		log.Printf("Error listing messages: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"chat_id":  chatID,
		"messages": messages,
	})
}

type SendMessageRequest struct {
	Type     models.MessageType `json:"type"`
	Text     string             `json:"text,omitempty"`
	ImageURL string             `json:"image_url,omitempty"`
	AudioURL string             `json:"audio_url,omitempty"`
}

// SendMessage appends a message to the conversation with another user.
// Sending requires an existing friendship.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	otherID, err := uuid.Parse(r.PathValue("userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	friends, err := h.friendService.AreFriends(r.Context(), user.ID, otherID)
	if err != nil {
		log.Printf("Error checking friendship: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !friends {
		writeError(w, http.StatusForbidden, "You can only message friends")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	chatID := services.ChatID(user.ID, otherID)
	message, err := h.chatService.Send(r.Context(), chatID, models.MessageDraft{
		SenderID: user.ID,
		Type:     req.Type,
		Text:     req.Text,
		ImageURL: req.ImageURL,
		AudioURL: req.AudioURL,
	})
	if errors.Is(err, services.ErrInvalidMessage) {
		writeError(w, http.StatusBadRequest, "Message content does not match its type")
		return
	}
	if errors.Is(err, services.ErrMessageTooLong) {
		writeError(w, http.StatusBadRequest, "Message is too long")
		return
	}
	if errors.Is(err, services.ErrNotParticipant) {
		writeError(w, http.StatusForbidden, "Not a participant in this conversation")
		return
	}
	if err != nil {
		log.Printf("Error sending message: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, message)
}

// MarkSeen marks every message from the other participant as read.
func (h *ChatHandler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	otherID, err := uuid.Parse(r.PathValue("userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	chatID := services.ChatID(user.ID, otherID)
	if err := h.chatService.MarkSeen(r.Context(), chatID, user.ID); err != nil {
		log.Printf("Error marking messages seen: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Messages marked as seen"})
}
