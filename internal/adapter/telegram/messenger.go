package telegram

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Purpose-arch/tgbotaimult/internal/usecase/relay"
)

var retryAfterRe = regexp.MustCompile(`(?i)retry after (\d+)`)

// messenger is the relay's view of a Telegram chat.
type messenger struct {
	api *tgbotapi.BotAPI
}

func (m *messenger) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sent, err := m.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return 0, translateError(err)
	}
	return sent.MessageID, nil
}

func (m *messenger) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := m.api.Request(tgbotapi.NewEditMessageText(chatID, messageID, text))
	return translateError(err)
}

// translateError maps Telegram flood control and no-op edits to the relay's
// errors.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var (
		code       int
		message    string
		retryAfter int
	)
	var apiErr *tgbotapi.Error
	var apiErrVal tgbotapi.Error
	switch {
	case errors.As(err, &apiErr):
		code, message, retryAfter = apiErr.Code, apiErr.Message, apiErr.RetryAfter
	case errors.As(err, &apiErrVal):
		code, message, retryAfter = apiErrVal.Code, apiErrVal.Message, apiErrVal.RetryAfter
	default:
		message = err.Error()
	}

	if strings.Contains(strings.ToLower(message), "message is not modified") {
		return relay.ErrNotModified
	}

	if retryAfter <= 0 {
		if m := retryAfterRe.FindStringSubmatch(message); m != nil {
			retryAfter, _ = strconv.Atoi(m[1])
		}
	}
	if code == http.StatusTooManyRequests || retryAfter > 0 || strings.Contains(strings.ToLower(message), "too many requests") {
		return &relay.RateLimitError{RetryAfter: time.Duration(retryAfter) * time.Second}
	}
	return err
}
