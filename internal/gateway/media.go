package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// UploadError is any failure to store an attachment. The send proceeds
// without the attachment; the error is surfaced to the caller separately.
type UploadError struct {
	Status  int
	Message string
}

func (e *UploadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("media upload failed with status %d: %s", e.Status, e.Message)
	}
	return "media upload failed: " + e.Message
}

// MediaClient uploads binary blobs to a Cloudinary-style unsigned upload
// endpoint and returns the stable secure_url reference.
type MediaClient struct {
	UploadURL string
	Preset    string
	Folder    string
	HTTP      *http.Client
}

func NewMediaClient(uploadURL, preset, folder string) *MediaClient {
	return &MediaClient{
		UploadURL: uploadURL,
		Preset:    preset,
		Folder:    folder,
		HTTP:      &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *MediaClient) Upload(ctx context.Context, name string, blob []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return "", &UploadError{Message: err.Error()}
	}
	if _, err := part.Write(blob); err != nil {
		return "", &UploadError{Message: err.Error()}
	}
	_ = w.WriteField("upload_preset", c.Preset)
	if c.Folder != "" {
		_ = w.WriteField("folder", c.Folder)
	}
	if err := w.Close(); err != nil {
		return "", &UploadError{Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.UploadURL, &buf)
	if err != nil {
		return "", &UploadError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", &UploadError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &UploadError{Status: resp.StatusCode, Message: string(body)}
	}

	var response struct {
		SecureURL string `json:"secure_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", &UploadError{Message: "decode response: " + err.Error()}
	}
	if response.SecureURL == "" {
		return "", &UploadError{Message: "no secure_url in response"}
	}
	return response.SecureURL, nil
}
