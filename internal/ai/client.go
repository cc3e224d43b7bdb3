// Package ai wraps an OpenAI-compatible chat and image API with the party's
// prompt flows.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUnavailable is returned by every flow when no AI backend is configured.
var ErrUnavailable = errors.New("AI is not configured")

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	imageModel string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey, model, imageModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		imageModel: imageModel,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type imageRequest struct {
	Model          string `json:"model,omitempty"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format"`
}

type imageData struct {
	B64JSON string `json:"b64_json"`
}

type imageResponse struct {
	Data []imageData `json:"data"`
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	if c == nil {
		return "", ErrUnavailable
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	var chatResp chatResponse
	if err := c.post(ctx, "/v1/chat/completions", reqBody, &chatResp); err != nil {
		return "", err
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("AI API returned empty choices")
	}
	return chatResp.Choices[0].Message.Content, nil
}

// completeJSON runs a chat completion whose reply must be a JSON object and
// decodes it into out.
func (c *Client) completeJSON(ctx context.Context, system, user string, out any) error {
	content, err := c.complete(ctx, system, user)
	if err != nil {
		return err
	}
	return parseJSONReply(content, out)
}

func (c *Client) generateImage(ctx context.Context, prompt string) (string, error) {
	if c == nil {
		return "", ErrUnavailable
	}

	reqBody := imageRequest{
		Model:          c.imageModel,
		Prompt:         prompt,
		N:              1,
		ResponseFormat: "b64_json",
	}

	var imgResp imageResponse
	if err := c.post(ctx, "/v1/images/generations", reqBody, &imgResp); err != nil {
		return "", err
	}
	if len(imgResp.Data) == 0 || imgResp.Data[0].B64JSON == "" {
		return "", fmt.Errorf("AI API returned no image")
	}
	return "data:image/png;base64," + imgResp.Data[0].B64JSON, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("AI API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func parseJSONReply(content string, out any) error {
	if err := json.Unmarshal([]byte(content), out); err == nil {
		return nil
	}

	stripped := stripMarkdownFences(content)
	if err := json.Unmarshal([]byte(stripped), out); err != nil {
		return fmt.Errorf("parse AI JSON: %w", err)
	}
	return nil
}

func stripMarkdownFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		firstNewline := strings.Index(trimmed, "\n")
		if firstNewline == -1 {
			return trimmed
		}
		trimmed = trimmed[firstNewline+1:]

		if idx := strings.LastIndex(trimmed, "```"); idx != -1 {
			trimmed = trimmed[:idx]
		}

		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
