package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	openaiapi "github.com/sashabaranov/go-openai"

	"github.com/Purpose-arch/tgbotaimult/internal/usecase/chat"
)

// classifyError wraps a gateway error with the chat sentinel that decides
// what the user is told. Context errors are returned unchanged.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	switch status := statusCode(err); {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", chat.ErrRateLimited, err)
	case status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable,
		status == http.StatusGatewayTimeout,
		status == http.StatusRequestTimeout:
		return fmt.Errorf("%w: %w", chat.ErrUnavailable, err)
	case status != 0:
		return fmt.Errorf("%w: %w", chat.ErrProviderFault, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", chat.ErrUnavailable, err)
	}
	return fmt.Errorf("%w: %w", chat.ErrProviderFault, err)
}

func statusCode(err error) int {
	var apiErr *openaiapi.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openaiapi.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
