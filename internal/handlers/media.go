package handlers

import (
	"log"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/connectsphere/connectsphere/internal/services"
)

// maxUploadBytes bounds a single attachment. Voice notes and photos from
// phone cameras fit comfortably under this.
const maxUploadBytes = 15 << 20

var allowedUploadTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"audio/webm": ".webm",
	"audio/mpeg": ".mp3",
	"audio/ogg":  ".ogg",
	"audio/mp4":  ".m4a",
}

type MediaHandler struct {
	store services.MediaStoreInterface
}

func NewMediaHandler(store services.MediaStoreInterface) *MediaHandler {
	return &MediaHandler{store: store}
}

type UploadResponse struct {
	URL string `json:"url"`
}

// Upload accepts a multipart file field named "file" and returns the public
// URL to embed in a message.
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Media uploads are not enabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "File is too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	ext, ok := allowedUploadTypes[strings.ToLower(contentType)]
	if !ok {
		writeError(w, http.StatusUnsupportedMediaType, "Unsupported file type")
		return
	}

	objectPath := path.Join(user.ID.String(), uuid.New().String()+ext)
	url, err := h.store.Upload(r.Context(), objectPath, file, header.Size, contentType)
	if err != nil {
		log.Printf("Error uploading media: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{URL: url})
}
