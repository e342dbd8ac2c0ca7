package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Purpose-arch/tgbotaimult/internal/domain"
)

type handlerFunc func(ctx context.Context, msg *tgbotapi.Message, args string)

func (b *Bot) commands() map[string]handlerFunc {
	return map[string]handlerFunc{
		"start":     b.cmdStart,
		"help":      b.cmdHelp,
		"new":       b.cmdNew,
		"chats":     b.cmdChats,
		"model":     b.cmdModel,
		"fav":       b.cmdFav,
		"unfav":     b.cmdUnfav,
		"favorites": b.cmdFavorites,
		"rename":    b.cmdRename,
		"delete":    b.cmdDelete,
		"clear":     b.cmdClear,
		"export":    b.cmdExport,
		"cancel":    b.cmdCancel,
		"refresh":   b.cmdRefresh,
	}
}

func (b *Bot) menuButtons() map[string]handlerFunc {
	return map[string]handlerFunc{
		btnNewChat:   b.cmdNew,
		btnChats:     b.cmdChats,
		btnModel:     b.cmdModel,
		btnFavorites: b.cmdFavorites,
		btnClear:     b.cmdClear,
		btnExport:    b.cmdExport,
		btnHelp:      b.cmdHelp,
		btnCancel:    b.cmdCancel,
	}
}

// route picks the handler for a message: commands first, then menu
// buttons, then whatever the user's menu state expects.
func (b *Bot) route(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		b.reply(msg.Chat.ID, textTextOnly, nil)
		return
	}

	if msg.IsCommand() {
		h, ok := b.commands()[strings.ToLower(msg.Command())]
		if !ok {
			b.reply(msg.Chat.ID, textUnknownCommand, nil)
			return
		}
		h(ctx, msg, strings.TrimSpace(msg.CommandArguments()))
		return
	}

	if h, ok := b.menuButtons()[text]; ok {
		h(ctx, msg, "")
		return
	}

	switch b.states.State(msg.From.ID) {
	case domain.StateChoosingModel:
		b.pickModel(ctx, msg, text)
	case domain.StateNamingChat:
		b.nameChat(ctx, msg, text)
	case domain.StateChoosingChat:
		b.pickChat(ctx, msg, text)
	case domain.StateRenamingChat:
		b.renameChat(ctx, msg, text)
	default:
		b.ask(ctx, msg, text)
	}
}
