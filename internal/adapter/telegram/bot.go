package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/Purpose-arch/tgbotaimult/internal/config"
	"github.com/Purpose-arch/tgbotaimult/internal/domain"
	"github.com/Purpose-arch/tgbotaimult/internal/usecase/catalog"
	"github.com/Purpose-arch/tgbotaimult/internal/usecase/chat"
	"github.com/Purpose-arch/tgbotaimult/internal/usecase/session"
)

// Services are the use cases the bot routes messages to.
type Services struct {
	Chat      *chat.Service
	Sessions  *session.Service
	Catalog   *catalog.Catalog
	Favorites *catalog.Favorites
	States    domain.StateStore
}

type Bot struct {
	api       *tgbotapi.BotAPI
	cfg       config.Config
	chat      *chat.Service
	sessions  *session.Service
	catalog   *catalog.Catalog
	favorites *catalog.Favorites
	states    domain.StateStore
	out       *messenger
	log       *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	busy     map[int64]*sync.Mutex
	inflight sync.WaitGroup
}

func NewBot(cfg config.Config, svc Services, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := tgbotapi.SetLogger(apiLogger{log: logger.With("component", "telegram_api")}); err != nil {
		logger.Warn("redirect telegram library logs", "error", err)
	}

	var (
		api *tgbotapi.BotAPI
		err error
	)
	if cfg.TelegramAPIEndpoint != "" {
		api, err = tgbotapi.NewBotAPIWithAPIEndpoint(cfg.TelegramToken, cfg.TelegramAPIEndpoint)
	} else {
		api, err = tgbotapi.NewBotAPI(cfg.TelegramToken)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}

	return &Bot{
		api:       api,
		cfg:       cfg,
		chat:      svc.Chat,
		sessions:  svc.Sessions,
		catalog:   svc.Catalog,
		favorites: svc.Favorites,
		states:    svc.States,
		out:       &messenger{api: api},
		log:       logger,
		now:       time.Now,
		limiters:  make(map[int64]*rate.Limiter),
		busy:      make(map[int64]*sync.Mutex),
	}, nil
}

func (b *Bot) UserName() string {
	return b.api.Self.UserName
}

// Run receives updates by webhook when WEBHOOK_URL is set and by long
// polling otherwise. It returns after ctx ends and in-flight handlers
// finish.
func (b *Bot) Run(ctx context.Context) error {
	defer b.inflight.Wait()
	b.log.Info("telegram bot started", "username", b.UserName(), "webhook", b.cfg.WebhookURL != "")
	if b.cfg.WebhookURL != "" {
		return b.runWebhook(ctx)
	}
	return b.runPolling(ctx)
}

func (b *Bot) runPolling(ctx context.Context) error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		b.log.Warn("delete webhook", "error", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return ctx.Err()
			}
			b.dispatch(ctx, update)
		}
	}
}

// dispatch handles each message in its own goroutine.
func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		b.handleMessage(ctx, msg)
	}()
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if !b.cfg.IsAllowed(userID) {
		b.log.Info("access denied", "user_id", userID)
		b.reply(chatID, textAccessDenied, nil)
		return
	}
	if !b.allowRequest(userID) {
		b.reply(chatID, textSlowDown, nil)
		return
	}

	lock := b.userLock(userID)
	if !lock.TryLock() {
		b.reply(chatID, textBusy, nil)
		return
	}
	defer lock.Unlock()

	b.route(ctx, msg)
}

// allowRequest checks the per-user rate limiter.
func (b *Bot) allowRequest(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	rl, ok := b.limiters[userID]
	if !ok {
		limit := rate.Limit(b.cfg.UserRateLimit)
		if b.cfg.UserRateLimit <= 0 {
			limit = rate.Inf
		}
		rl = rate.NewLimiter(limit, b.cfg.UserRateBurst)
		b.limiters[userID] = rl
	}
	return rl.Allow()
}

// userLock serializes handling per user so a second message does not race
// the answer still being streamed.
func (b *Bot) userLock(userID int64) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.busy[userID]
	if !ok {
		l = &sync.Mutex{}
		b.busy[userID] = l
	}
	return l
}
