package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// GenerateError is any failure to obtain a generated reply. The chatbot
// branch reacts by appending no reply at all; the user's message stays.
type GenerateError struct {
	Status  int
	Message string
}

func (e *GenerateError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("reply generation failed with status %d: %s", e.Status, e.Message)
	}
	return "reply generation failed: " + e.Message
}

// GeminiClient calls the Gemini generateContent endpoint. Request carries the
// conversation prompt and the user's text as two parts; the reply is
// candidates[0].content.parts[0].text.
type GeminiClient struct {
	APIKey  string
	BaseURL string
	Model   string
	HTTP    *http.Client
}

const (
	defaultGeminiBase  = "https://generativelanguage.googleapis.com"
	defaultGeminiModel = "gemini-2.0-flash"
)

func NewGeminiClient(apiKey string) *GeminiClient {
	return &GeminiClient{
		APIKey:  apiKey,
		BaseURL: defaultGeminiBase,
		Model:   defaultGeminiModel,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

func (c *GeminiClient) GenerateReply(ctx context.Context, prompt, text string) (string, error) {
	reqBody, err := json.Marshal(map[string]any{
		"contents": []map[string]any{
			{"parts": []geminiPart{{Text: prompt}, {Text: text}}},
		},
	})
	if err != nil {
		return "", &GenerateError{Message: err.Error()}
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.BaseURL, c.Model, c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", &GenerateError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", &GenerateError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &GenerateError{Status: resp.StatusCode, Message: string(body)}
	}

	var response struct {
		Candidates []struct {
			Content struct {
				Parts []geminiPart `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", &GenerateError{Message: "decode response: " + err.Error()}
	}
	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return "", &GenerateError{Message: "no candidates in response"}
	}
	return response.Candidates[0].Content.Parts[0].Text, nil
}
