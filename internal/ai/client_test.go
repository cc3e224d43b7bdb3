package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newChatServer answers every chat completion with content.
func newChatServer(t *testing.T, content string) (*httptest.Server, *chatRequest) {
	t.Helper()
	var received chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)

		resp := chatResponse{
			Choices: []chatChoice{
				{Message: chatMessage{Role: "assistant", Content: content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server, &received
}

func TestClient_DiscussionStarters(t *testing.T) {
	var receivedAuth, receivedPath string
	var received chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		receivedPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)

		resp := chatResponse{Choices: []chatChoice{{Message: chatMessage{
			Role:    "assistant",
			Content: `{"questions":["Was Cobb still dreaming?"," ","What does the totem mean?","Who is the real architect?"]}`,
		}}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "test-api-key", "gpt-4", "")
	questions, err := client.DiscussionStarters(context.Background(), "Inception")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(questions) != 3 {
		t.Fatalf("questions = %v, want 3 non-blank", questions)
	}
	if questions[0] != "Was Cobb still dreaming?" {
		t.Errorf("questions[0] = %q", questions[0])
	}
	if receivedAuth != "Bearer test-api-key" {
		t.Errorf("Authorization = %q", receivedAuth)
	}
	if receivedPath != "/v1/chat/completions" {
		t.Errorf("path = %q", receivedPath)
	}
	if received.Model != "gpt-4" || len(received.Messages) != 2 {
		t.Fatalf("request = %+v", received)
	}
	if !strings.Contains(received.Messages[1].Content, `"Inception"`) {
		t.Errorf("user prompt %q does not name the film", received.Messages[1].Content)
	}
}

func TestClient_DiscussionStartersEmpty(t *testing.T) {
	server, _ := newChatServer(t, `{"questions":[]}`)
	client := NewClient(server.URL, "", "m", "")

	if _, err := client.DiscussionStarters(context.Background(), "Inception"); err == nil {
		t.Fatal("expected error for empty question list")
	}
}

func TestClient_MarkdownFence(t *testing.T) {
	server, _ := newChatServer(t, "```json\n{\"answer\":\"Christopher Nolan.\"}\n```")
	client := NewClient(server.URL, "", "m", "")

	got, err := client.AnswerTrivia(context.Background(), "Inception", "Who directed it?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Answer != "Christopher Nolan." {
		t.Errorf("answer = %q", got.Answer)
	}
}

func TestClient_InvalidJSON(t *testing.T) {
	server, _ := newChatServer(t, "I think it was Nolan.")
	client := NewClient(server.URL, "", "m", "")

	if _, err := client.AnswerTrivia(context.Background(), "Inception", "Who?"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestClient_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "m", "")
	_, err := client.SummarizeChat(context.Background(), "a: hi")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("err = %v, want status 429", err)
	}
}

func TestClient_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "m", "")
	if _, err := client.SearchFilm(context.Background(), "Heat"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestClient_LyricsFallback(t *testing.T) {
	server, _ := newChatServer(t, `{"lyrics":"  "}`)
	client := NewClient(server.URL, "", "m", "")

	got, err := client.GetLyrics(context.Background(), "Unknown", "Nobody")
	if err != nil {
		t.Fatal(err)
	}
	if got.Lyrics != LyricsNotFound {
		t.Errorf("lyrics = %q, want %q", got.Lyrics, LyricsNotFound)
	}
}

func TestClient_SuggestSoundtrack(t *testing.T) {
	server, _ := newChatServer(t, `{"songs":[{"title":"Riders on the Storm","artist":"The Doors"}]}`)
	client := NewClient(server.URL, "", "m", "")

	got, err := client.SuggestSoundtrack(context.Background(), "rainy night drive")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Songs) != 1 || got.Songs[0].Artist != "The Doors" {
		t.Errorf("songs = %+v", got.Songs)
	}
}

func TestClient_RecommendFilmGeneratesPoster(t *testing.T) {
	var imageReq imageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		switch r.URL.Path {
		case "/v1/chat/completions":
			_ = json.NewEncoder(w).Encode(chatResponse{Choices: []chatChoice{{Message: chatMessage{
				Content: `{"title":"Heat","genre":"Crime","streamingService":"Max","shortDescription":"A heist thriller."}`,
			}}}})
		case "/v1/images/generations":
			_ = json.Unmarshal(body, &imageReq)
			_ = json.NewEncoder(w).Encode(imageResponse{Data: []imageData{{B64JSON: "aGVsbG8="}}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "m", "img-model")
	got, err := client.RecommendFilm(context.Background(), "Alien, Collateral", "tense")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Heat" || got.StreamingService != "Max" {
		t.Errorf("film = %+v", got.Film)
	}
	if got.PosterDataURI != "data:image/png;base64,aGVsbG8=" {
		t.Errorf("poster = %q", got.PosterDataURI)
	}
	if imageReq.Model != "img-model" || imageReq.ResponseFormat != "b64_json" {
		t.Errorf("image request = %+v", imageReq)
	}
	if !strings.Contains(imageReq.Prompt, `"Heat"`) {
		t.Errorf("poster prompt %q does not name the film", imageReq.Prompt)
	}
}

func TestClient_PosterForGame(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(imageResponse{Data: []imageData{{B64JSON: "eA=="}}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "m", "")
	got, err := client.GeneratePosterForGame(context.Background(), "Jaws")
	if err != nil {
		t.Fatal(err)
	}
	if got.MovieTitle != "Jaws" || !strings.HasPrefix(got.PosterDataURI, "data:image/png;base64,") {
		t.Errorf("poster = %+v", got)
	}
}

func TestClient_NoImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(imageResponse{})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "m", "")
	if _, err := client.GeneratePoster(context.Background(), "Heat", "A heist."); err == nil {
		t.Fatal("expected error when no image is returned")
	}
}

func TestClient_NilIsUnavailable(t *testing.T) {
	var client *Client
	if _, err := client.DiscussionStarters(context.Background(), "Heat"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
	if _, err := client.GeneratePoster(context.Background(), "Heat", "x"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestStripMarkdownFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no fences", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"single line fence", "```", "```"},
		{"whitespace", "  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := stripMarkdownFences(tt.input); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}
