package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Purpose-arch/tgbotaimult/internal/adapter/telegram"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the Telegram bot (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.setup()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(),
				syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			go a.catalog.Run(ctx, cfg.ModelsRefreshInterval)

			bot, err := telegram.NewBot(cfg, telegram.Services{
				Chat:      a.chat,
				Sessions:  a.sessions,
				Catalog:   a.catalog,
				Favorites: a.favorites,
				States:    a.states,
			}, logger.With("component", "telegram"))
			if err != nil {
				return err
			}

			if err := bot.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			logger.Info("shutdown complete")
			return nil
		},
	}
}
