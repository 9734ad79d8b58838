package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/connectsphere/connectsphere/internal/models"
	"github.com/connectsphere/connectsphere/internal/services"
)

var shortIDPattern = regexp.MustCompile(`^[0-9]{4}$`)

type UserHandler struct {
	userService services.UserServiceInterface
}

func NewUserHandler(userService services.UserServiceInterface) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetProfile returns another user's public profile by id.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if errors.Is(err, services.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		log.Printf("Error getting user: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, user.Public())
}

// Lookup finds a user by their four digit code. Used on the add-friend
// screen, so it returns only the public profile.
func (h *UserHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("short_id"))
	if !shortIDPattern.MatchString(code) {
		writeError(w, http.StatusBadRequest, "Short ID must be exactly 4 digits")
		return
	}

	user, err := h.userService.GetByShortID(r.Context(), code)
	if errors.Is(err, services.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "No user with that ID")
		return
	}
	if err != nil {
		log.Printf("Error looking up short id: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, user.Public())
}

type UpdateProfileRequest struct {
	Username *string `json:"username"`
	PhotoURL *string `json:"photo_url"`
}

// UpdateProfile changes the caller's own username or photo.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Username != nil {
		trimmed := strings.TrimSpace(*req.Username)
		if len(trimmed) < 2 || len(trimmed) > 100 {
			writeError(w, http.StatusBadRequest, "Username must be between 2 and 100 characters")
			return
		}
		req.Username = &trimmed
	}

	updated, err := h.userService.UpdateProfile(r.Context(), user.ID, models.UpdateProfileParams{
		Username: req.Username,
		PhotoURL: req.PhotoURL,
	})
	if errors.Is(err, services.ErrNothingToUpdate) {
		writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}
	if errors.Is(err, services.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		log.Printf("Error updating profile: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{User: updated})
}
