package openai

import (
	"context"
	"errors"
	"io"
	"net/http"

	openaiapi "github.com/sashabaranov/go-openai"

	"github.com/Purpose-arch/tgbotaimult/internal/config"
	"github.com/Purpose-arch/tgbotaimult/internal/usecase/chat"
)

// Client talks to an OpenAI-compatible gateway such as OpenRouter.
type Client struct {
	api *openaiapi.Client
}

func NewClient(cfg config.Config) *Client {
	apiCfg := openaiapi.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	apiCfg.HTTPClient = &http.Client{
		Transport: &headerTransport{
			base: http.DefaultTransport,
			headers: map[string]string{
				"HTTP-Referer": cfg.AppReferer,
				"X-Title":      cfg.AppTitle,
			},
		},
	}

	return &Client{
		api: openaiapi.NewClientWithConfig(apiCfg),
	}
}

func (c *Client) Complete(ctx context.Context, req chat.CompletionRequest) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, toAPIRequest(req))
	if err != nil {
		return "", classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.Join(chat.ErrProviderFault, errors.New("gateway returned no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) Stream(ctx context.Context, req chat.CompletionRequest) (chat.Stream, error) {
	apiReq := toAPIRequest(req)
	apiReq.Stream = true

	s, err := c.api.CreateChatCompletionStream(ctx, apiReq)
	if err != nil {
		return nil, classifyError(err)
	}
	return &stream{s: s}, nil
}

// ListModels returns the IDs of every model the gateway serves.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	list, err := c.api.ListModels(ctx)
	if err != nil {
		return nil, classifyError(err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

type stream struct {
	s *openaiapi.ChatCompletionStream
}

// Recv skips chunks without choices, which gateways send for keep-alive
// and usage reports.
func (s *stream) Recv() (string, error) {
	for {
		resp, err := s.s.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", classifyError(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		return resp.Choices[0].Delta.Content, nil
	}
}

func (s *stream) Close() error {
	s.s.Close()
	return nil
}

func toAPIRequest(req chat.CompletionRequest) openaiapi.ChatCompletionRequest {
	return openaiapi.ChatCompletionRequest{
		Model:               req.Model,
		MaxCompletionTokens: req.MaxCompletionTokens,
		Messages:            toAPIMessages(req.Messages),
	}
}

func toAPIMessages(msgs []chat.Message) []openaiapi.ChatCompletionMessage {
	res := make([]openaiapi.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		res = append(res, openaiapi.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Text,
		})
	}
	return res
}

// headerTransport adds attribution headers to every gateway request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(req)
}
