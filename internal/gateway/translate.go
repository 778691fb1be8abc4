// Package gateway holds the HTTP clients for the external collaborators:
// text translation, generative replies and media upload. Each failure mode
// gets its own error type so callers can tell a degraded outcome apart from
// "nothing to do".
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

// TranslateError is any failure to obtain a translation. Status is zero for
// transport-level failures.
type TranslateError struct {
	Status  int
	Message string
}

func (e *TranslateError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("translation failed with status %d: %s", e.Status, e.Message)
	}
	return "translation failed: " + e.Message
}

// DeepTranslateClient calls the deep-translate REST API. The wire contract:
// POST {q, source, target} -> {"data":{"translations":{"translatedText":[...]}}}.
type DeepTranslateClient struct {
	APIKey  string
	BaseURL string
	Host    string
	HTTP    *http.Client
}

const (
	defaultTranslateBase = "https://deep-translate1.p.rapidapi.com"
	defaultTranslateHost = "deep-translate1.p.rapidapi.com"
)

func NewDeepTranslateClient(apiKey string) *DeepTranslateClient {
	return &DeepTranslateClient{
		APIKey:  apiKey,
		BaseURL: defaultTranslateBase,
		Host:    defaultTranslateHost,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Translate converts text from source to target. It must not be called when
// source == target; the orchestrator skips the round trip entirely in that
// case. The result is all-or-nothing: any failure returns *TranslateError
// and no text.
func (c *DeepTranslateClient) Translate(ctx context.Context, text, source, target string) (string, error) {
	reqBody, err := json.Marshal(map[string]string{
		"q":      text,
		"source": source,
		"target": target,
	})
	if err != nil {
		return "", &TranslateError{Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/language/translate/v2", bytes.NewReader(reqBody))
	if err != nil {
		return "", &TranslateError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-rapidapi-key", c.APIKey)
	req.Header.Set("x-rapidapi-host", c.Host)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", &TranslateError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &TranslateError{Status: resp.StatusCode, Message: string(body)}
	}

	var response struct {
		Data struct {
			Translations struct {
				TranslatedText []string `json:"translatedText"`
			} `json:"translations"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", &TranslateError{Message: "decode response: " + err.Error()}
	}
	if len(response.Data.Translations.TranslatedText) == 0 {
		return "", &TranslateError{Message: "empty translation in response"}
	}
	return response.Data.Translations.TranslatedText[0], nil
}
