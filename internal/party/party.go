package party

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cinesync/cinesync/internal/auth"
	"github.com/cinesync/cinesync/internal/httputil"
	"github.com/cinesync/cinesync/internal/syncchannel"
	"github.com/cinesync/cinesync/internal/validate"
)

const PasscodeHeader = syncchannel.PasscodeHeader

const listLimit = 100

var ErrPartyNotFound = errors.New("party not found")

type createRequest struct {
	Title       string `json:"title"`
	Theme       string `json:"theme"`
	ScheduledAt string `json:"scheduledAt"`
	Passcode    string `json:"passcode"`
}

type partyResponse struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Theme             string `json:"theme"`
	ScheduledAt       string `json:"scheduledAt"`
	CreatedAt         string `json:"createdAt"`
	PasscodeProtected bool   `json:"passcodeProtected"`
	InviteURL         string `json:"inviteUrl"`
}

type createResponse struct {
	partyResponse
	HostToken string `json:"hostToken"`
}

type partyRow struct {
	id           string
	title        string
	theme        string
	scheduledAt  time.Time
	createdAt    time.Time
	passcodeHash string
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	title := strings.TrimSpace(req.Title)
	theme := req.Theme
	if theme == "" {
		theme = "default"
	}
	if msg := firstError(validate.PartyTitle(title), validate.Theme(theme), validate.Passcode(req.Passcode)); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	scheduledAt := time.Now().UTC()
	if req.ScheduledAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "scheduledAt must be an RFC 3339 timestamp")
			return
		}
		scheduledAt = parsed.UTC()
	}

	hash, err := auth.HashPasscode(req.Passcode)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create party")
		return
	}
	var passcodeHash *string
	if hash != "" {
		passcodeHash = &hash
	}

	id := uuid.NewString()
	var createdAt time.Time
	if err := h.db.QueryRow(r.Context(),
		`INSERT INTO parties (id, title, theme, scheduled_at, passcode_hash) VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		id, title, theme, scheduledAt, passcodeHash,
	).Scan(&createdAt); err != nil {
		slog.Error("party: create failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create party")
		return
	}

	token, err := auth.GenerateHostToken(h.jwtSecret, id)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create party")
		return
	}
	h.metrics.PartyCreated()
	slog.Info("party created", "party_id", id, "theme", theme)

	row := partyRow{id: id, title: title, theme: theme, scheduledAt: scheduledAt, createdAt: createdAt, passcodeHash: hash}
	httputil.WriteJSON(w, http.StatusCreated, createResponse{
		partyResponse: h.toResponse(row),
		HostToken:     token,
	})
}

// List returns upcoming and past parties, latest scheduled first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.Query(r.Context(),
		`SELECT id, title, theme, scheduled_at, created_at, COALESCE(passcode_hash, '')
		 FROM parties ORDER BY scheduled_at DESC LIMIT $1`,
		listLimit,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list parties")
		return
	}
	defer rows.Close()

	items := make([]partyResponse, 0)
	for rows.Next() {
		var row partyRow
		if err := rows.Scan(&row.id, &row.title, &row.theme, &row.scheduledAt, &row.createdAt, &row.passcodeHash); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to list parties")
			return
		}
		items = append(items, h.toResponse(row))
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list parties")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	row, ok := h.authorizedParty(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.toResponse(row))
}

// Delete removes a party and its shared media. Host only.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	partyID := chi.URLParam(r, "id")

	keys, err := h.mediaKeys(r.Context(), partyID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to delete party")
		return
	}

	tag, err := h.db.Exec(r.Context(), `DELETE FROM parties WHERE id = $1`, partyID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to delete party")
		return
	}
	if tag.RowsAffected() == 0 {
		httputil.WriteError(w, http.StatusNotFound, "party not found")
		return
	}

	if d, ok := h.syncStore.(syncchannel.Deleter); ok {
		d.Delete(partyID)
	}
	if h.media != nil {
		for _, key := range keys {
			if err := h.media.DeleteObject(r.Context(), key); err != nil {
				slog.Warn("party: failed to delete media object", "party_id", partyID, "key", key, "error", err)
			}
		}
	}
	slog.Info("party deleted", "party_id", partyID, "media_objects", len(keys))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) loadParty(ctx context.Context, partyID string) (partyRow, error) {
	row := partyRow{id: partyID}
	err := h.db.QueryRow(ctx,
		`SELECT title, theme, scheduled_at, created_at, COALESCE(passcode_hash, '') FROM parties WHERE id = $1`,
		partyID,
	).Scan(&row.title, &row.theme, &row.scheduledAt, &row.createdAt, &row.passcodeHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return partyRow{}, ErrPartyNotFound
	}
	if err != nil {
		return partyRow{}, err
	}
	return row, nil
}

// authorizedParty loads the {id} party and checks its passcode. The host
// token also opens protected parties. It writes the error response itself.
func (h *Handler) authorizedParty(w http.ResponseWriter, r *http.Request) (partyRow, bool) {
	partyID := chi.URLParam(r, "id")
	row, err := h.loadParty(r.Context(), partyID)
	if errors.Is(err, ErrPartyNotFound) {
		httputil.WriteError(w, http.StatusNotFound, "party not found")
		return partyRow{}, false
	}
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load party")
		return partyRow{}, false
	}

	if row.passcodeHash != "" && !auth.IsHostOf(h.jwtSecret, auth.TokenFromRequest(r), partyID) {
		passcode := r.Header.Get(PasscodeHeader)
		if passcode == "" {
			passcode = r.URL.Query().Get("passcode")
		}
		if !auth.CheckPasscode(row.passcodeHash, passcode) {
			httputil.WriteError(w, http.StatusForbidden, "invalid passcode")
			return partyRow{}, false
		}
	}
	return row, true
}

func (h *Handler) mediaKeys(ctx context.Context, partyID string) ([]string, error) {
	rows, err := h.db.Query(ctx, `SELECT object_key FROM party_media WHERE party_id = $1`, partyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (h *Handler) toResponse(row partyRow) partyResponse {
	return partyResponse{
		ID:                row.id,
		Title:             row.title,
		Theme:             row.theme,
		ScheduledAt:       row.scheduledAt.UTC().Format(time.RFC3339),
		CreatedAt:         row.createdAt.UTC().Format(time.RFC3339),
		PasscodeProtected: row.passcodeHash != "",
		InviteURL:         strings.TrimRight(h.baseURL, "/") + "/watch/" + row.id,
	}
}

func firstError(msgs ...string) string {
	for _, m := range msgs {
		if m != "" {
			return m
		}
	}
	return ""
}
