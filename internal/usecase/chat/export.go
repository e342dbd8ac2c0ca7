package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Purpose-arch/tgbotaimult/internal/domain"
)

var ErrUnknownFormat = errors.New("unknown export format")

const (
	FormatText = "txt"
	FormatJSON = "json"
)

type exportedMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type exportedChat struct {
	Title      string            `json:"title"`
	Model      string            `json:"model"`
	ExportedAt time.Time         `json:"exported_at"`
	Messages   []exportedMessage `json:"messages"`
}

// Export renders the full stored history of the active chat.
func (s *Service) Export(ctx context.Context, userID int64, format string) (domain.Export, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatText
	}
	if format != FormatText && format != FormatJSON {
		return domain.Export{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	active, err := s.activeChat(ctx, userID)
	if err != nil {
		return domain.Export{}, err
	}
	msgs, err := s.store.Messages(ctx, active.ID)
	if err != nil {
		return domain.Export{}, fmt.Errorf("load history: %w", err)
	}
	if len(msgs) == 0 {
		return domain.Export{}, ErrEmptyHistory
	}

	now := s.now()
	name := fmt.Sprintf("chat-%s.%s", now.UTC().Format("20060102-150405"), format)

	if format == FormatJSON {
		data, err := renderJSON(active, msgs, now)
		if err != nil {
			return domain.Export{}, err
		}
		return domain.Export{FileName: name, ContentType: "application/json", Data: data}, nil
	}
	return domain.Export{FileName: name, ContentType: "text/plain", Data: renderText(active, msgs)}, nil
}

func renderText(c domain.Chat, msgs []domain.Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "Chat: %s\nModel: %s\n\n", c.Title, c.Model)
	for _, m := range msgs {
		fmt.Fprintf(&b, "[%s] %s:\n%s\n\n", m.Timestamp.UTC().Format("2006-01-02 15:04:05"), m.Role, m.Content)
	}
	return []byte(b.String())
}

func renderJSON(c domain.Chat, msgs []domain.Message, now time.Time) ([]byte, error) {
	out := exportedChat{
		Title:      c.Title,
		Model:      c.Model,
		ExportedAt: now.UTC(),
		Messages:   make([]exportedMessage, 0, len(msgs)),
	}
	for _, m := range msgs {
		out.Messages = append(out.Messages, exportedMessage{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.Timestamp.UTC(),
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return data, nil
}
