package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Purpose-arch/tgbotaimult/internal/domain"
	"github.com/Purpose-arch/tgbotaimult/internal/usecase/chat"
	"github.com/Purpose-arch/tgbotaimult/internal/usecase/relay"
)

const maxMessageLen = 4000

const refreshTimeLayout = "2006-01-02 15:04 MST"

const (
	textWelcome        = "🤖 Welcome to the neuro chat! Choose a model:"
	textAccessDenied   = "⛔ Access denied."
	textSlowDown       = "🐢 Too many messages, slow down a little."
	textBusy           = "⏳ Still working on your previous message."
	textChooseModel    = "Choose a model:"
	textChooseFirst    = "Choose a model first!"
	textUnknownModel   = "Unknown model. Pick one from the keyboard or send /model vendor/name."
	textNoFavorites    = "You have no favorite models yet. Use /fav in a chat to add its model."
	textFavorites      = "⭐ Your favorite models:"
	textNameChat       = "Send a title for the new chat, or press Skip."
	textRenameChat     = "Send a new title for this chat."
	textNoChats        = "You have no chats yet. Use /new to start one."
	textChooseChat     = "Your chats:"
	textUnknownChat    = "No such chat. Pick one from the keyboard."
	textEmptyTitle     = "The title cannot be empty."
	textCleared        = "🧹 History cleared."
	textNoActiveChat   = "You have no active chat. Use /new or choose a model."
	textEmptyHistory   = "Nothing to export yet."
	textExportFormat   = "Unknown format. Use /export txt or /export json."
	textCancelled      = "Cancelled."
	textTextOnly       = "I can only read text messages."
	textUnknownCommand = "Unknown command. See /help."
	textAdminOnly      = "This command is for admins only."

	textRateLimited   = "⚠️ The model is rate limited right now. Try again in a minute."
	textUnavailable   = "⚠️ Could not reach the model service. Try again later."
	textProviderFault = "⚠️ The model service returned an error. Try another model."
	textGenericError  = "⚠️ Something went wrong while processing the request."

	textHelp = `Commands:
/new [title] - start a new chat
/chats - switch between chats
/model [id] - choose the model of the current chat
/fav, /unfav - add or remove the current model from favorites
/favorites - pick a favorite model
/rename [title] - rename the current chat
/delete - delete the current chat
/clear - clear the current chat history
/export [txt|json] - download the current chat
/cancel - leave the current menu

Any other text is sent to the model.`
)

// userErrorText picks the static notice shown for a failed request.
func userErrorText(err error) string {
	switch {
	case errors.Is(err, chat.ErrRateLimited):
		return textRateLimited
	case errors.Is(err, chat.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return textUnavailable
	case errors.Is(err, chat.ErrProviderFault):
		return textProviderFault
	case errors.Is(err, domain.ErrNoActiveChat):
		return textNoActiveChat
	default:
		return textGenericError
	}
}

// reply sends text split into Telegram-sized chunks. The keyboard, when
// given, is attached to the last chunk.
func (b *Bot) reply(chatID int64, text string, markup interface{}) {
	chunks := splitText(text, maxMessageLen)
	for idx, chunk := range chunks {
		msg := tgbotapi.NewMessage(chatID, chunk)
		if idx == len(chunks)-1 && markup != nil {
			msg.ReplyMarkup = markup
		}
		if _, err := b.api.Send(msg); err != nil {
			b.log.Warn("send reply", "chat_id", chatID, "error", err)
		}
	}
}

func (b *Bot) sendChatAction(chatID int64, action string) {
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, action)); err != nil {
		b.log.Debug("send chat action", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) sendDocument(chatID int64, export domain.Export) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  export.FileName,
		Bytes: export.Data,
	})
	_, err := b.api.Send(doc)
	return err
}

// splitText cuts text into chunks of at most chunkSize UTF-16 units.
func splitText(text string, chunkSize int) []string {
	if chunkSize <= 0 || relay.TextLen(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	var b strings.Builder
	n := 0
	for _, r := range text {
		l := relay.TextLen(string(r))
		if n+l > chunkSize && b.Len() > 0 {
			chunks = append(chunks, b.String())
			b.Reset()
			n = 0
		}
		b.WriteRune(r)
		n += l
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}

	return chunks
}
