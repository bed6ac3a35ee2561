package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skinsight/review-console/internal/domain/ai"
)

func fakeServer(t *testing.T, status int, body string) (*httptest.Server, *map[string]any) {
	t.Helper()
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
	})
	return string(b)
}

func TestClient_Generate(t *testing.T) {
	srv, got := fakeServer(t, http.StatusOK, completion(`{"routine_summary":"Cleanse.","products":[{"title":"BHA"}],"remedies":[]}`))
	c := NewClient("sk-test", "gpt-4o-mini", srv.URL+"/v1")

	d, err := c.Generate(context.Background(), "Acne", ai.ChoiceAll)
	require.NoError(t, err)
	assert.Equal(t, "Cleanse.", d.RoutineSummary)
	require.Len(t, d.Products, 1)
	assert.Equal(t, "gpt-4o-mini", (*got)["model"])
	assert.EqualValues(t, maxTokens, (*got)["max_tokens"])
}

func TestClient_ReasoningModelUsesCompletionTokens(t *testing.T) {
	srv, got := fakeServer(t, http.StatusOK, completion(`{"routine_summary":"x"}`))
	c := NewClient("sk-test", "o3-mini", srv.URL+"/v1")

	_, err := c.Generate(context.Background(), "Acne", ai.ChoiceRemedy)
	require.NoError(t, err)
	assert.EqualValues(t, maxTokens, (*got)["max_completion_tokens"])
	assert.NotContains(t, *got, "max_tokens")
}

func TestClient_QuotaAndEmpty(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusTooManyRequests, `{"error":{"message":"quota","type":"insufficient_quota"}}`)
	_, err := NewClient("sk-test", "", srv.URL+"/v1").Generate(context.Background(), "Acne", ai.ChoiceAll)
	assert.ErrorIs(t, err, ai.ErrQuotaExceeded)

	srv, _ = fakeServer(t, http.StatusOK, `{"id":"x","choices":[]}`)
	_, err = NewClient("sk-test", "", srv.URL+"/v1").Generate(context.Background(), "Acne", ai.ChoiceAll)
	assert.ErrorIs(t, err, ai.ErrEmptyResponse)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() { close(release); srv.Close() })

	c := NewClient("sk-test", "", srv.URL+"/v1")
	c.Timeout = 50 * time.Millisecond
	_, err := c.Generate(context.Background(), "Acne", ai.ChoiceAll)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
