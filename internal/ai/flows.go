package ai

import (
	"context"
	"fmt"
	"strings"
)

type TriviaAnswer struct {
	Answer string `json:"answer"`
}

type DiscussionResult struct {
	Questions []string `json:"questions"`
}

type ChatSummary struct {
	Summary string `json:"summary"`
}

type Film struct {
	Title            string `json:"title"`
	Genre            string `json:"genre"`
	StreamingService string `json:"streamingService"`
	ShortDescription string `json:"shortDescription"`
}

type Recommendation struct {
	Film
	PosterDataURI string `json:"posterDataUri"`
}

type Song struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

type Soundtrack struct {
	Songs []Song `json:"songs"`
}

type Lyrics struct {
	Lyrics string `json:"lyrics"`
}

type Poster struct {
	PosterDataURI string `json:"posterDataUri"`
	MovieTitle    string `json:"movieTitle,omitempty"`
}

const LyricsNotFound = "Lyrics not found for this song."

const triviaSystemPrompt = `You are a movie trivia expert integrated into a watch party chat. Provide a concise and friendly answer to the user's question.

Return ONLY a JSON object {"answer": string}, no markdown formatting.`

const discussionSystemPrompt = `You are a film club moderator. Generate 3 insightful, open-ended discussion questions to get the conversation started after the group finishes a film. Avoid simple yes/no questions.

Return ONLY a JSON object {"questions": [string, string, string]}, no markdown formatting.`

const summarySystemPrompt = `You are a helpful assistant in a movie watch party app. A user just joined and wants to know what they missed in the chat. Summarize the key points and funny moments from the chat conversation. Keep it brief and friendly.

Return ONLY a JSON object {"summary": string}, no markdown formatting.`

const recommendSystemPrompt = `You are a film expert. Given a user's viewing history and current preferences, recommend one film they might enjoy watching.

Return ONLY a JSON object with "title", "genre", "streamingService" and "shortDescription" string fields, no markdown formatting.`

const searchSystemPrompt = `You are a film expert. Given a movie title, find information about that specific movie. If you cannot find the movie, make your best guess based on the title.

Return ONLY a JSON object with "title", "genre", "streamingService" and "shortDescription" string fields, no markdown formatting.`

const soundtrackSystemPrompt = `You are a music expert and DJ. A user wants song recommendations for a specific vibe. Based on their description, suggest a list of 5 songs including the title and artist.

Return ONLY a JSON object {"songs": [{"title": string, "artist": string}]}, no markdown formatting.`

const lyricsSystemPrompt = `You are a music expert. Return the full lyrics of the requested song as a single block of text. Preserve choruses and verses with newlines. If you cannot find the lyrics, respond with "` + LyricsNotFound + `".

Return ONLY a JSON object {"lyrics": string}, no markdown formatting.`

// AnswerTrivia answers a chat question about the film being watched.
func (c *Client) AnswerTrivia(ctx context.Context, movieTitle, question string) (*TriviaAnswer, error) {
	var out TriviaAnswer
	user := fmt.Sprintf("The users are currently watching %q.\nA user has asked the following question: %q", movieTitle, question)
	if err := c.completeJSON(ctx, triviaSystemPrompt, user, &out); err != nil {
		return nil, fmt.Errorf("answer trivia: %w", err)
	}
	return &out, nil
}

// DiscussionStarters returns open-ended questions for a group that just
// finished movieTitle.
func (c *Client) DiscussionStarters(ctx context.Context, movieTitle string) ([]string, error) {
	var out DiscussionResult
	user := fmt.Sprintf("The group just finished watching %q.", movieTitle)
	if err := c.completeJSON(ctx, discussionSystemPrompt, user, &out); err != nil {
		return nil, fmt.Errorf("generate discussion starters: %w", err)
	}

	questions := make([]string, 0, len(out.Questions))
	for _, q := range out.Questions {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("generate discussion starters: no questions returned")
	}
	return questions, nil
}

func (c *Client) SummarizeChat(ctx context.Context, chatHistory string) (*ChatSummary, error) {
	var out ChatSummary
	if err := c.completeJSON(ctx, summarySystemPrompt, "Chat History:\n"+chatHistory, &out); err != nil {
		return nil, fmt.Errorf("summarize chat: %w", err)
	}
	return &out, nil
}

// RecommendFilm picks a film and generates a poster for it.
func (c *Client) RecommendFilm(ctx context.Context, viewingHistory, preferences string) (*Recommendation, error) {
	var film Film
	user := fmt.Sprintf("Viewing History: %s\nPreferences: %s", viewingHistory, preferences)
	if err := c.completeJSON(ctx, recommendSystemPrompt, user, &film); err != nil {
		return nil, fmt.Errorf("recommend film: %w", err)
	}

	poster, err := c.GeneratePoster(ctx, film.Title, film.ShortDescription)
	if err != nil {
		return nil, fmt.Errorf("recommend film: %w", err)
	}
	return &Recommendation{Film: film, PosterDataURI: poster.PosterDataURI}, nil
}

func (c *Client) SearchFilm(ctx context.Context, title string) (*Film, error) {
	var out Film
	if err := c.completeJSON(ctx, searchSystemPrompt, "Movie Title: "+title, &out); err != nil {
		return nil, fmt.Errorf("search film: %w", err)
	}
	return &out, nil
}

func (c *Client) SuggestSoundtrack(ctx context.Context, description string) (*Soundtrack, error) {
	var out Soundtrack
	user := fmt.Sprintf("User's Description: %q", description)
	if err := c.completeJSON(ctx, soundtrackSystemPrompt, user, &out); err != nil {
		return nil, fmt.Errorf("suggest soundtrack: %w", err)
	}
	return &out, nil
}

func (c *Client) GetLyrics(ctx context.Context, title, artist string) (*Lyrics, error) {
	var out Lyrics
	user := fmt.Sprintf("Find the full lyrics for the song %q by %q.", title, artist)
	if err := c.completeJSON(ctx, lyricsSystemPrompt, user, &out); err != nil {
		return nil, fmt.Errorf("get lyrics: %w", err)
	}
	if strings.TrimSpace(out.Lyrics) == "" {
		out.Lyrics = LyricsNotFound
	}
	return &out, nil
}

// GeneratePoster renders a text-free poster for a described film.
func (c *Client) GeneratePoster(ctx context.Context, title, shortDescription string) (*Poster, error) {
	prompt := fmt.Sprintf("Generate an artistic, high-quality movie poster for a film titled %q. The film is about: %q. The poster should be visually striking and capture the mood of the film. Do not include any text in the image.", title, shortDescription)
	uri, err := c.generateImage(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate poster: %w", err)
	}
	return &Poster{PosterDataURI: uri}, nil
}

// GeneratePosterForGame renders a poster for a well-known film with no title
// or text, for the guess-the-movie game.
func (c *Client) GeneratePosterForGame(ctx context.Context, movieTitle string) (*Poster, error) {
	prompt := fmt.Sprintf("Create a movie poster for the film %q. The poster should be visually representative of the movie's theme, characters, and setting, but MUST NOT include the movie title or any text at all. The goal is for someone to guess the movie just by looking at the poster.", movieTitle)
	uri, err := c.generateImage(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate game poster: %w", err)
	}
	return &Poster{PosterDataURI: uri, MovieTitle: movieTitle}, nil
}
