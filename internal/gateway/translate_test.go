package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTranslateClient(srv *httptest.Server) *DeepTranslateClient {
	c := NewDeepTranslateClient("test-key")
	c.BaseURL = srv.URL
	c.HTTP = srv.Client()
	return c
}

func TestDeepTranslateClient(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/language/translate/v2", r.URL.Path)
			assert.Equal(t, "test-key", r.Header.Get("x-rapidapi-key"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "hello", body["q"])
			assert.Equal(t, "en", body["source"])
			assert.Equal(t, "hi", body["target"])

			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"translations": map[string]any{
						"translatedText": []string{"नमस्ते"},
					},
				},
			})
		}))
		defer srv.Close()

		out, err := newTranslateClient(srv).Translate(context.Background(), "hello", "en", "hi")
		require.NoError(t, err)
		assert.Equal(t, "नमस्ते", out)
	})

	t.Run("ServiceError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		_, err := newTranslateClient(srv).Translate(context.Background(), "hello", "en", "hi")
		var terr *TranslateError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, http.StatusTooManyRequests, terr.Status)
	})

	t.Run("EmptyTranslationIsFailure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"translations": map[string]any{"translatedText": []string{}}},
			})
		}))
		defer srv.Close()

		_, err := newTranslateClient(srv).Translate(context.Background(), "hello", "en", "hi")
		var terr *TranslateError
		assert.ErrorAs(t, err, &terr, "no partial or garbled output, failure is binary")
	})

	t.Run("TransportError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // refuse connections

		_, err := newTranslateClient(srv).Translate(context.Background(), "hello", "en", "hi")
		var terr *TranslateError
		require.ErrorAs(t, err, &terr)
		assert.Zero(t, terr.Status)
	})
}
