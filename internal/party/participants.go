package party

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"github.com/cinesync/cinesync/internal/httputil"
)

type participantResponse struct {
	ID       string  `json:"id"`
	Role     string  `json:"role"`
	Browser  string  `json:"browser"`
	OS       string  `json:"os"`
	Device   string  `json:"device"`
	Country  string  `json:"country"`
	City     string  `json:"city"`
	JoinedAt string  `json:"joinedAt"`
	LeftAt   *string `json:"leftAt"`
}

// ListParticipants returns who has joined the party, most recent first.
func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorizedParty(w, r); !ok {
		return
	}
	partyID := chi.URLParam(r, "id")

	rows, err := h.db.Query(r.Context(),
		`SELECT id, role, browser, os, device, country, city, joined_at, left_at
		 FROM party_participants WHERE party_id = $1 ORDER BY joined_at DESC LIMIT $2`,
		partyID, listLimit,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list participants")
		return
	}
	defer rows.Close()

	items := make([]participantResponse, 0)
	for rows.Next() {
		var p participantResponse
		var joinedAt time.Time
		var leftAt *time.Time
		if err := rows.Scan(&p.ID, &p.Role, &p.Browser, &p.OS, &p.Device, &p.Country, &p.City, &joinedAt, &leftAt); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to list participants")
			return
		}
		p.JoinedAt = joinedAt.UTC().Format(time.RFC3339)
		if leftAt != nil {
			s := leftAt.UTC().Format(time.RFC3339)
			p.LeftAt = &s
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list participants")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, items)
}

// recordJoin stores a participant row and returns its id. Failures are
// logged; a party still works without attendance records.
func (h *Handler) recordJoin(ctx context.Context, partyID, role string, r *http.Request) string {
	id := uuid.NewString()
	ua := r.UserAgent()
	loc := h.geo.Locate(httputil.ClientIP(r))

	if _, err := h.db.Exec(ctx,
		`INSERT INTO party_participants (id, party_id, role, browser, os, device, country, city) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, partyID, role, parseBrowser(ua), parseOS(ua), parseDevice(ua), loc.Country, loc.City,
	); err != nil {
		slog.Warn("party: failed to record participant", "party_id", partyID, "error", err)
	}
	return id
}

func (h *Handler) recordLeave(ctx context.Context, participantID string) {
	if _, err := h.db.Exec(ctx,
		`UPDATE party_participants SET left_at = now() WHERE id = $1`,
		participantID,
	); err != nil {
		slog.Warn("party: failed to record participant leave", "participant_id", participantID, "error", err)
	}
}

func parseBrowser(ua string) string {
	if ua == "" {
		return "Other"
	}
	if strings.Contains(ua, "Edg/") {
		return "Edge"
	}
	name, _ := useragent.New(ua).Browser()
	switch name {
	case "Chrome", "Firefox", "Safari", "Edge", "Opera":
		return name
	default:
		return "Other"
	}
}

func parseOS(ua string) string {
	if ua == "" {
		return "Other"
	}
	name := useragent.New(ua).OSInfo().Name
	switch {
	case name == "":
		return "Other"
	case strings.HasPrefix(name, "Windows"):
		return "Windows"
	case name == "Mac OS X":
		return "macOS"
	case name == "iPhone OS" || name == "CPU OS":
		return "iOS"
	default:
		return name
	}
}

func parseDevice(ua string) string {
	if strings.Contains(ua, "iPad") || (strings.Contains(ua, "Android") && !strings.Contains(ua, "Mobile")) {
		return "Tablet"
	}
	if ua != "" && useragent.New(ua).Mobile() {
		return "Mobile"
	}
	return "Desktop"
}
