package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Purpose-arch/tgbotaimult/internal/config"
	"github.com/Purpose-arch/tgbotaimult/internal/usecase/chat"
)

func testConfig(baseURL string) config.Config {
	return config.Config{
		APIKey:     "sk-test",
		BaseURL:    baseURL,
		AppReferer: "https://example.org/bot",
		AppTitle:   "TestBot",
	}
}

func testRequest() chat.CompletionRequest {
	return chat.CompletionRequest{
		Model: "vendor/model:free",
		Messages: []chat.Message{
			{Role: "system", Text: "be brief"},
			{Role: "user", Text: "hi"},
		},
	}
}

func TestStream(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Stream   bool   `json:"stream"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "https://example.org/bot", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "TestBot", r.Header.Get("X-Title"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range []string{
			`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}`,
			`{"id":"1","object":"chat.completion.chunk","choices":[]}`,
			`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"lo"}}]}`,
		} {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	s, err := c.Stream(context.Background(), testRequest())
	require.NoError(t, err)
	defer s.Close()

	var deltas []string
	for {
		d, err := s.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		deltas = append(deltas, d)
	}

	assert.Equal(t, []string{"Hel", "lo"}, deltas)
	assert.Equal(t, "vendor/model:free", got.Model)
	assert.True(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "hi", got.Messages[1].Content)
}

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"pong"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	answer, err := NewClient(testConfig(srv.URL)).Complete(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "pong", answer)
}

func TestCompleteWithoutChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"1","object":"chat.completion","choices":[]}`)
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL)).Complete(context.Background(), testRequest())
	require.ErrorIs(t, err, chat.ErrProviderFault)
}

func TestErrorStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, chat.ErrRateLimited},
		{http.StatusBadGateway, chat.ErrUnavailable},
		{http.StatusServiceUnavailable, chat.ErrUnavailable},
		{http.StatusBadRequest, chat.ErrProviderFault},
		{http.StatusUnauthorized, chat.ErrProviderFault},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprintf(w, `{"error":{"message":"failure %d","code":%d}}`, tt.status, tt.status)
			}))
			defer srv.Close()

			_, err := NewClient(testConfig(srv.URL)).Stream(context.Background(), testRequest())
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(testConfig(url)).Complete(context.Background(), testRequest())
	require.ErrorIs(t, err, chat.ErrUnavailable)
}

func TestContextErrorsPassThrough(t *testing.T) {
	assert.Equal(t, context.Canceled, classifyError(context.Canceled))
	assert.ErrorIs(t, classifyError(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)), context.DeadlineExceeded)
	assert.NotErrorIs(t, classifyError(context.Canceled), chat.ErrProviderFault)
	assert.NoError(t, classifyError(nil))
	assert.ErrorIs(t, classifyError(io.ErrUnexpectedEOF), chat.ErrUnavailable)
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"id":"a/one:free","object":"model"},{"id":"b/two","object":"model"}]}`)
	}))
	defer srv.Close()

	ids, err := NewClient(testConfig(srv.URL)).ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a/one:free", "b/two"}, ids)
}
