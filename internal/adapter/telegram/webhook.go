package telegram

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const webhookPath = "/telegram/"

func (b *Bot) runWebhook(ctx context.Context) error {
	link := strings.TrimRight(b.cfg.WebhookURL, "/") + webhookPath + b.cfg.WebhookSecret
	wh, err := tgbotapi.NewWebhook(link)
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}
	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("register webhook: %w", err)
	}

	srv := &http.Server{
		Addr:              b.cfg.ListenAddr,
		Handler:           b.webhookRouter(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		b.log.Info("webhook server listening", "addr", b.cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("webhook server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		b.log.Warn("webhook server shutdown", "error", err)
	}
	return ctx.Err()
}

// webhookRouter serves Telegram updates under a secret path. Updates are
// handled with ctx, not the request context, so answers outlive the
// webhook call.
func (b *Bot) webhookRouter(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post(webhookPath+"{secret}", func(w http.ResponseWriter, req *http.Request) {
		secret := chi.URLParam(req, "secret")
		if subtle.ConstantTimeCompare([]byte(secret), []byte(b.cfg.WebhookSecret)) != 1 {
			http.NotFound(w, req)
			return
		}

		update, err := b.api.HandleUpdate(req)
		if err != nil {
			b.log.Warn("bad webhook update", "request_id", middleware.GetReqID(req.Context()), "error", err)
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		b.dispatch(ctx, *update)
		w.WriteHeader(http.StatusOK)
	})

	return r
}
