package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Purpose-arch/tgbotaimult/internal/domain"
	"github.com/Purpose-arch/tgbotaimult/internal/usecase/chat"
	"github.com/Purpose-arch/tgbotaimult/internal/usecase/relay"
	"github.com/Purpose-arch/tgbotaimult/internal/usecase/session"
)

func (b *Bot) cmdStart(ctx context.Context, msg *tgbotapi.Message, _ string) {
	b.showModels(ctx, msg, textWelcome)
}

func (b *Bot) cmdHelp(_ context.Context, msg *tgbotapi.Message, _ string) {
	b.reply(msg.Chat.ID, textHelp, mainMenuKeyboard())
}

func (b *Bot) cmdNew(ctx context.Context, msg *tgbotapi.Message, args string) {
	if args == "" {
		b.states.SetState(msg.From.ID, domain.StateNamingChat)
		b.reply(msg.Chat.ID, textNameChat, namingKeyboard())
		return
	}
	b.createChat(ctx, msg, args)
}

func (b *Bot) nameChat(ctx context.Context, msg *tgbotapi.Message, text string) {
	if text == btnSkip {
		text = ""
	}
	b.createChat(ctx, msg, text)
}

// createChat opens a chat that keeps the model of the current one.
func (b *Bot) createChat(ctx context.Context, msg *tgbotapi.Message, title string) {
	userID := msg.From.ID
	model := ""
	if active, err := b.sessions.Active(ctx, userID); err == nil {
		model = active.Model
	}

	c, err := b.sessions.Create(ctx, userID, title, model)
	if err != nil {
		b.fail(msg, "create chat", err)
		return
	}
	b.states.SetState(userID, domain.StateChatting)
	b.reply(msg.Chat.ID, fmt.Sprintf("💬 New chat %q with %s. Send your message!", c.Title, b.catalog.Label(c.Model)), mainMenuKeyboard())
}

func (b *Bot) cmdChats(ctx context.Context, msg *tgbotapi.Message, _ string) {
	chats, err := b.sessions.List(ctx, msg.From.ID)
	if err != nil {
		b.fail(msg, "list chats", err)
		return
	}
	if len(chats) == 0 {
		b.reply(msg.Chat.ID, textNoChats, mainMenuKeyboard())
		return
	}
	b.states.SetState(msg.From.ID, domain.StateChoosingChat)
	b.reply(msg.Chat.ID, textChooseChat, chatsKeyboard(chats))
}

func (b *Bot) pickChat(ctx context.Context, msg *tgbotapi.Message, text string) {
	c, err := b.sessions.SwitchByTitle(ctx, msg.From.ID, text)
	if errors.Is(err, session.ErrChatNotFound) {
		b.reply(msg.Chat.ID, textUnknownChat, nil)
		return
	}
	if err != nil {
		b.fail(msg, "switch chat", err)
		return
	}
	b.states.SetState(msg.From.ID, domain.StateChatting)
	b.reply(msg.Chat.ID, fmt.Sprintf("✅ Switched to %q (%s).", c.Title, b.catalog.Label(c.Model)), mainMenuKeyboard())
}

func (b *Bot) cmdModel(ctx context.Context, msg *tgbotapi.Message, args string) {
	if args == "" {
		b.showModels(ctx, msg, textChooseModel)
		return
	}
	m, ok := b.catalog.Lookup(args)
	if !ok {
		if !strings.Contains(args, "/") {
			b.reply(msg.Chat.ID, textUnknownModel, nil)
			return
		}
		m = domain.Model{ID: args, Label: b.catalog.Label(args)}
	}
	b.selectModel(ctx, msg, m)
}

func (b *Bot) showModels(ctx context.Context, msg *tgbotapi.Message, text string) {
	favs, err := b.favorites.List(ctx, msg.From.ID)
	if err != nil {
		b.log.Warn("list favorites", "user_id", msg.From.ID, "error", err)
	}
	b.states.SetState(msg.From.ID, domain.StateChoosingModel)
	b.reply(msg.Chat.ID, text, modelKeyboard(b.catalog.Models(), favs))
}

func (b *Bot) pickModel(ctx context.Context, msg *tgbotapi.Message, text string) {
	label := stripFavoriteMark(text)

	favs, err := b.favorites.List(ctx, msg.From.ID)
	if err != nil {
		b.log.Warn("list favorites", "user_id", msg.From.ID, "error", err)
	}
	for _, f := range favs {
		if f.Label == label || f.ID == label {
			b.selectModel(ctx, msg, f)
			return
		}
	}

	m, ok := b.catalog.Lookup(label)
	if !ok {
		b.reply(msg.Chat.ID, textUnknownModel, nil)
		return
	}
	b.selectModel(ctx, msg, m)
}

func (b *Bot) selectModel(ctx context.Context, msg *tgbotapi.Message, m domain.Model) {
	if _, err := b.sessions.SetModel(ctx, msg.From.ID, m.ID); err != nil {
		b.fail(msg, "set model", err)
		return
	}
	b.states.SetState(msg.From.ID, domain.StateChatting)
	b.reply(msg.Chat.ID, fmt.Sprintf("✅ Model selected: %s\nNow you can start chatting!", m.Label), mainMenuKeyboard())
}

// modelArg is the model named in args, or the model of the active chat.
func (b *Bot) modelArg(ctx context.Context, msg *tgbotapi.Message, args string) (string, bool) {
	if args != "" {
		if m, ok := b.catalog.Lookup(args); ok {
			return m.ID, true
		}
		return args, true
	}
	active, err := b.sessions.Active(ctx, msg.From.ID)
	if err != nil {
		b.reply(msg.Chat.ID, userErrorText(err), nil)
		return "", false
	}
	return active.Model, true
}

func (b *Bot) cmdFav(ctx context.Context, msg *tgbotapi.Message, args string) {
	model, ok := b.modelArg(ctx, msg, args)
	if !ok {
		return
	}
	already, err := b.favorites.IsFavorite(ctx, msg.From.ID, model)
	if err != nil {
		b.fail(msg, "check favorite", err)
		return
	}
	if already {
		b.reply(msg.Chat.ID, fmt.Sprintf("⭐ %s is already a favorite.", b.catalog.Label(model)), nil)
		return
	}
	if err := b.favorites.Add(ctx, msg.From.ID, model); err != nil {
		b.fail(msg, "add favorite", err)
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("⭐ %s added to favorites.", b.catalog.Label(model)), nil)
}

func (b *Bot) cmdUnfav(ctx context.Context, msg *tgbotapi.Message, args string) {
	model, ok := b.modelArg(ctx, msg, args)
	if !ok {
		return
	}
	if err := b.favorites.Remove(ctx, msg.From.ID, model); err != nil {
		b.fail(msg, "remove favorite", err)
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("%s removed from favorites.", b.catalog.Label(model)), nil)
}

func (b *Bot) cmdFavorites(ctx context.Context, msg *tgbotapi.Message, _ string) {
	favs, err := b.favorites.List(ctx, msg.From.ID)
	if err != nil {
		b.fail(msg, "list favorites", err)
		return
	}
	if len(favs) == 0 {
		b.reply(msg.Chat.ID, textNoFavorites, nil)
		return
	}
	b.states.SetState(msg.From.ID, domain.StateChoosingModel)
	b.reply(msg.Chat.ID, textFavorites, modelKeyboard(nil, favs))
}

func (b *Bot) cmdRename(ctx context.Context, msg *tgbotapi.Message, args string) {
	if args == "" {
		if _, err := b.sessions.Active(ctx, msg.From.ID); err != nil {
			b.reply(msg.Chat.ID, userErrorText(err), nil)
			return
		}
		b.states.SetState(msg.From.ID, domain.StateRenamingChat)
		b.reply(msg.Chat.ID, textRenameChat, cancelKeyboard())
		return
	}
	b.renameChat(ctx, msg, args)
}

func (b *Bot) renameChat(ctx context.Context, msg *tgbotapi.Message, title string) {
	c, err := b.sessions.Rename(ctx, msg.From.ID, title)
	switch {
	case errors.Is(err, session.ErrEmptyTitle):
		b.reply(msg.Chat.ID, textEmptyTitle, nil)
		return
	case err != nil:
		b.states.SetState(msg.From.ID, domain.StateIdle)
		b.reply(msg.Chat.ID, userErrorText(err), mainMenuKeyboard())
		return
	}
	b.states.SetState(msg.From.ID, domain.StateChatting)
	b.reply(msg.Chat.ID, fmt.Sprintf("✏️ Renamed to %q.", c.Title), mainMenuKeyboard())
}

func (b *Bot) cmdDelete(ctx context.Context, msg *tgbotapi.Message, _ string) {
	deleted, next, ok, err := b.sessions.Delete(ctx, msg.From.ID)
	if err != nil {
		b.reply(msg.Chat.ID, userErrorText(err), nil)
		if !errors.Is(err, domain.ErrNoActiveChat) {
			b.log.Error("delete chat", "user_id", msg.From.ID, "error", err)
		}
		return
	}
	if !ok {
		b.showModels(ctx, msg, fmt.Sprintf("🗑 Deleted %q. No chats left. %s", deleted.Title, textChooseModel))
		return
	}
	b.states.SetState(msg.From.ID, domain.StateChatting)
	b.reply(msg.Chat.ID, fmt.Sprintf("🗑 Deleted %q. Now in %q.", deleted.Title, next.Title), mainMenuKeyboard())
}

func (b *Bot) cmdClear(ctx context.Context, msg *tgbotapi.Message, _ string) {
	if err := b.chat.ClearHistory(ctx, msg.From.ID); err != nil {
		if errors.Is(err, domain.ErrNoActiveChat) {
			b.showModels(ctx, msg, textChooseFirst)
			return
		}
		b.fail(msg, "clear history", err)
		return
	}
	b.reply(msg.Chat.ID, textCleared, mainMenuKeyboard())
}

func (b *Bot) cmdExport(ctx context.Context, msg *tgbotapi.Message, args string) {
	export, err := b.chat.Export(ctx, msg.From.ID, args)
	switch {
	case errors.Is(err, chat.ErrUnknownFormat):
		b.reply(msg.Chat.ID, textExportFormat, nil)
		return
	case errors.Is(err, chat.ErrEmptyHistory):
		b.reply(msg.Chat.ID, textEmptyHistory, nil)
		return
	case errors.Is(err, domain.ErrNoActiveChat):
		b.reply(msg.Chat.ID, textNoActiveChat, nil)
		return
	case err != nil:
		b.fail(msg, "export history", err)
		return
	}

	b.sendChatAction(msg.Chat.ID, tgbotapi.ChatUploadDocument)
	if err := b.sendDocument(msg.Chat.ID, export); err != nil {
		b.fail(msg, "send export", err)
	}
}

func (b *Bot) cmdCancel(ctx context.Context, msg *tgbotapi.Message, _ string) {
	state := domain.StateIdle
	if _, err := b.sessions.Active(ctx, msg.From.ID); err == nil {
		state = domain.StateChatting
	}
	b.states.SetState(msg.From.ID, state)
	b.reply(msg.Chat.ID, textCancelled, mainMenuKeyboard())
}

func (b *Bot) cmdRefresh(ctx context.Context, msg *tgbotapi.Message, _ string) {
	if !b.cfg.IsAdmin(msg.From.ID) {
		b.reply(msg.Chat.ID, textAdminOnly, nil)
		return
	}
	if err := b.catalog.Refresh(ctx); err != nil {
		b.log.Warn("manual catalog refresh", "error", err)
		text := fmt.Sprintf("Refresh failed, keeping %d models.", len(b.catalog.Models()))
		if at := b.catalog.RefreshedAt(); !at.IsZero() {
			text += fmt.Sprintf(" Last refresh: %s.", at.UTC().Format(refreshTimeLayout))
		}
		b.reply(msg.Chat.ID, text, nil)
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("🔄 Catalog refreshed: %d models.", len(b.catalog.Models())), nil)
}

// ask relays text to the model of the active chat and streams the answer
// into a placeholder message.
func (b *Bot) ask(ctx context.Context, msg *tgbotapi.Message, text string) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if _, err := b.sessions.Active(ctx, userID); errors.Is(err, domain.ErrNoActiveChat) {
		b.showModels(ctx, msg, textChooseFirst)
		return
	}

	b.sendChatAction(chatID, tgbotapi.ChatTyping)

	reqCtx := ctx
	if b.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, b.cfg.RequestTimeout)
		defer cancel()
	}

	r := relay.New(b.out, chatID, b.relayOptions(), b.log)
	if err := r.Start(reqCtx); err != nil {
		b.log.Error("send placeholder", "chat_id", chatID, "error", err)
		return
	}

	started := b.now()
	answer, err := b.chat.HandleMessage(reqCtx, userID, text, r)
	if err != nil {
		b.log.Error("model request failed", "user_id", userID, "error", err, "partial_len", len(answer))
		// the notice must reach the user even when the request context ended
		if failErr := r.Fail(context.WithoutCancel(ctx), userErrorText(err)); failErr != nil {
			b.log.Warn("show error notice", "chat_id", chatID, "error", failErr)
		}
		return
	}

	if _, err := r.Finish(context.WithoutCancel(ctx)); err != nil {
		b.log.Warn("final edit failed", "chat_id", chatID, "error", err)
	}
	b.log.Info("answer relayed", "user_id", userID, "runes", len([]rune(answer)), "elapsed", b.now().Sub(started).String())
}

func (b *Bot) relayOptions() relay.Options {
	opts := relay.DefaultOptions()
	opts.EditInterval = b.cfg.StreamEditInterval
	opts.SmallChunk = b.cfg.StreamSmallChunk
	opts.MinGap = b.cfg.StreamMinGap
	opts.RetryWait = b.cfg.StreamRetryWait
	opts.MaxRetryWait = b.cfg.StreamMaxRetryWait
	opts.MaxMessageLen = maxMessageLen
	return opts
}

// fail logs err and shows the generic notice.
func (b *Bot) fail(msg *tgbotapi.Message, op string, err error) {
	b.log.Error(op, "user_id", msg.From.ID, "error", err)
	b.reply(msg.Chat.ID, textGenericError, nil)
}
