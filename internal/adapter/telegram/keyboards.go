package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Purpose-arch/tgbotaimult/internal/domain"
	"github.com/Purpose-arch/tgbotaimult/internal/usecase/session"
)

const (
	btnNewChat   = "💬 New chat"
	btnChats     = "📂 My chats"
	btnModel     = "🤖 Choose model"
	btnFavorites = "⭐ Favorites"
	btnClear     = "🧹 Clear history"
	btnExport    = "📤 Export"
	btnHelp      = "❓ Help"
	btnCancel    = "❌ Cancel"
	btnSkip      = "⏭ Skip"

	favoriteMark = "⭐ "
)

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnNewChat), tgbotapi.NewKeyboardButton(btnChats)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnModel), tgbotapi.NewKeyboardButton(btnFavorites)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnClear), tgbotapi.NewKeyboardButton(btnExport)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnHelp)),
	)
}

// modelKeyboard lists favorites first, then the rest of the catalog, one
// model per row.
func modelKeyboard(models, favorites []domain.Model) tgbotapi.ReplyKeyboardMarkup {
	seen := make(map[string]bool, len(favorites))
	rows := make([][]tgbotapi.KeyboardButton, 0, len(models)+len(favorites)+1)
	for _, m := range favorites {
		seen[m.ID] = true
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(favoriteMark+m.Label)))
	}
	for _, m := range models {
		if seen[m.ID] {
			continue
		}
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(m.Label)))
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancel)))
	return tgbotapi.NewReplyKeyboard(rows...)
}

func chatsKeyboard(chats []domain.Chat) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(chats)+1)
	for i, c := range chats {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(session.ButtonLabel(i, c))))
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancel)))
	return tgbotapi.NewReplyKeyboard(rows...)
}

func namingKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnSkip), tgbotapi.NewKeyboardButton(btnCancel)),
	)
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancel)),
	)
}

func stripFavoriteMark(label string) string {
	return strings.TrimPrefix(label, favoriteMark)
}
