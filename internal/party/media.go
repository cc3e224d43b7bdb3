package party

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cinesync/cinesync/internal/httputil"
	"github.com/cinesync/cinesync/internal/storage"
	"github.com/cinesync/cinesync/internal/validate"
)

const (
	uploadURLExpiry   = 30 * time.Minute
	downloadURLExpiry = 4 * time.Hour
)

type mediaRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

type mediaResponse struct {
	Key       string `json:"key"`
	UploadURL string `json:"uploadUrl"`
	Locator   string `json:"locator"`
}

// CreateMedia registers a shared upload for the party and returns a presigned
// PUT URL. The locator is what the host publishes as the video source.
func (h *Handler) CreateMedia(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "media sharing is not enabled")
		return
	}
	partyID := chi.URLParam(r, "id")

	var req mediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validate.Filename(req.Filename); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if req.SizeBytes <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, "sizeBytes must be positive")
		return
	}
	if err := storage.CheckUpload(req.ContentType, req.SizeBytes, h.media.MaxUploadBytes()); err != nil {
		switch {
		case errors.Is(err, storage.ErrTooLarge):
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, "file too large")
		default:
			httputil.WriteError(w, http.StatusBadRequest, "unsupported media type")
		}
		return
	}

	key := storage.MediaKey(partyID, req.Filename)
	if _, err := h.db.Exec(r.Context(),
		`INSERT INTO party_media (object_key, party_id, filename, content_type, size_bytes) VALUES ($1, $2, $3, $4, $5)`,
		key, partyID, req.Filename, req.ContentType, req.SizeBytes,
	); err != nil {
		slog.Error("party: failed to record media", "party_id", partyID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create upload")
		return
	}

	uploadURL, err := h.media.GenerateUploadURL(r.Context(), key, req.ContentType, req.SizeBytes, uploadURLExpiry)
	if err != nil {
		slog.Error("party: failed to presign upload", "party_id", partyID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create upload")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, mediaResponse{
		Key:       key,
		UploadURL: uploadURL,
		Locator:   "/api/media/" + key,
	})
}

// ServeMedia redirects a media locator to a short-lived download URL.
func (h *Handler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "media sharing is not enabled")
		return
	}
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if _, ok := storage.PartyFromKey(key); !ok {
		httputil.WriteError(w, http.StatusNotFound, "media not found")
		return
	}

	var exists bool
	if err := h.db.QueryRow(r.Context(),
		`SELECT EXISTS(SELECT 1 FROM party_media WHERE object_key = $1)`,
		key,
	).Scan(&exists); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load media")
		return
	}
	if !exists {
		httputil.WriteError(w, http.StatusNotFound, "media not found")
		return
	}

	url, err := h.media.GenerateDownloadURL(r.Context(), key, downloadURLExpiry)
	if err != nil {
		slog.Error("party: failed to presign download", "key", key, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load media")
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}
