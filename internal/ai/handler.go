package ai

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cinesync/cinesync/internal/httputil"
	"github.com/cinesync/cinesync/internal/validate"
)

// GenericError is the only AI failure message shown to users.
const GenericError = "Something went wrong with the AI. Please try again."

const maxRequestBytes = 64 * 1024

// Observer records the outcome of each AI flow.
type Observer interface {
	ObserveAI(flow string, err error)
}

type Handler struct {
	client   *Client
	observer Observer
}

// NewHandler serves the AI flows. A nil client answers every request with
// 503.
func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

func (h *Handler) SetObserver(o Observer) {
	h.observer = o
}

type discussionRequest struct {
	MovieTitle string `json:"movieTitle"`
}

type triviaRequest struct {
	MovieTitle string `json:"movieTitle"`
	Question   string `json:"question"`
}

type summaryRequest struct {
	ChatHistory string `json:"chatHistory"`
}

type recommendRequest struct {
	ViewingHistory string `json:"viewingHistory"`
	Preferences    string `json:"preferences"`
}

type searchRequest struct {
	MovieTitle string `json:"movieTitle"`
}

type soundtrackRequest struct {
	Description string `json:"description"`
}

type lyricsRequest struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

type posterRequest struct {
	MovieTitle       string `json:"movieTitle"`
	Title            string `json:"title"`
	ShortDescription string `json:"shortDescription"`
}

func (h *Handler) DiscussionStarters(w http.ResponseWriter, r *http.Request) {
	var req discussionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if msg := validate.MovieTitle(req.MovieTitle); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	h.run(w, r, "discussion_starters", func(ctx context.Context) (any, error) {
		questions, err := h.client.DiscussionStarters(ctx, req.MovieTitle)
		if err != nil {
			return nil, err
		}
		return DiscussionResult{Questions: questions}, nil
	})
}

func (h *Handler) Trivia(w http.ResponseWriter, r *http.Request) {
	var req triviaRequest
	if !h.decode(w, r, &req) {
		return
	}
	if msg := firstError(validate.MovieTitle(req.MovieTitle), validate.Question(req.Question)); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	h.run(w, r, "trivia", func(ctx context.Context) (any, error) {
		return h.client.AnswerTrivia(ctx, req.MovieTitle, req.Question)
	})
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if !h.decode(w, r, &req) {
		return
	}
	if msg := validate.ChatHistory(req.ChatHistory); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	h.run(w, r, "summary", func(ctx context.Context) (any, error) {
		return h.client.SummarizeChat(ctx, req.ChatHistory)
	})
}

func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if !h.decode(w, r, &req) {
		return
	}
	if msg := firstError(validate.ViewingHistory(req.ViewingHistory), validate.Preferences(req.Preferences)); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	h.run(w, r, "recommend", func(ctx context.Context) (any, error) {
		return h.client.RecommendFilm(ctx, req.ViewingHistory, req.Preferences)
	})
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !h.decode(w, r, &req) {
		return
	}
	if msg := validate.SearchTitle(req.MovieTitle); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	h.run(w, r, "search", func(ctx context.Context) (any, error) {
		return h.client.SearchFilm(ctx, req.MovieTitle)
	})
}

func (h *Handler) Soundtrack(w http.ResponseWriter, r *http.Request) {
	var req soundtrackRequest
	if !h.decode(w, r, &req) {
		return
	}
	if msg := validate.Description(req.Description); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	h.run(w, r, "soundtrack", func(ctx context.Context) (any, error) {
		return h.client.SuggestSoundtrack(ctx, req.Description)
	})
}

func (h *Handler) Lyrics(w http.ResponseWriter, r *http.Request) {
	var req lyricsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if msg := firstError(validate.SongTitle(req.Title), validate.Artist(req.Artist)); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	h.run(w, r, "lyrics", func(ctx context.Context) (any, error) {
		return h.client.GetLyrics(ctx, req.Title, req.Artist)
	})
}

// Poster serves both poster flows: a guess-the-movie poster when movieTitle
// is set, otherwise a poster for a described film.
func (h *Handler) Poster(w http.ResponseWriter, r *http.Request) {
	var req posterRequest
	if !h.decode(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.MovieTitle) != "" {
		if msg := validate.SearchTitle(req.MovieTitle); msg != "" {
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}
		h.run(w, r, "poster_game", func(ctx context.Context) (any, error) {
			return h.client.GeneratePosterForGame(ctx, req.MovieTitle)
		})
		return
	}

	if msg := firstError(validate.SearchTitle(req.Title), validate.Description(req.ShortDescription)); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	h.run(w, r, "poster", func(ctx context.Context) (any, error) {
		return h.client.GeneratePoster(ctx, req.Title, req.ShortDescription)
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if h.client == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "AI features are not enabled")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request, flow string, fn func(context.Context) (any, error)) {
	result, err := fn(r.Context())
	if h.observer != nil {
		h.observer.ObserveAI(flow, err)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		slog.Error("ai: flow failed", "flow", flow, "error", err)
		httputil.WriteError(w, http.StatusBadGateway, GenericError)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func firstError(msgs ...string) string {
	for _, m := range msgs {
		if m != "" {
			return m
		}
	}
	return ""
}
