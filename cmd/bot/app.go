package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Purpose-arch/tgbotaimult/internal/adapter/memory"
	"github.com/Purpose-arch/tgbotaimult/internal/adapter/openai"
	"github.com/Purpose-arch/tgbotaimult/internal/adapter/sqlstore"
	"github.com/Purpose-arch/tgbotaimult/internal/config"
	"github.com/Purpose-arch/tgbotaimult/internal/domain"
	"github.com/Purpose-arch/tgbotaimult/internal/usecase/catalog"
	"github.com/Purpose-arch/tgbotaimult/internal/usecase/chat"
	"github.com/Purpose-arch/tgbotaimult/internal/usecase/session"
)

// app wires the adapters and use cases every subcommand shares.
type app struct {
	cfg       config.Config
	log       *slog.Logger
	store     domain.Store
	states    domain.StateStore
	catalog   *catalog.Catalog
	chat      *chat.Service
	sessions  *session.Service
	favorites *catalog.Favorites
}

func newApp(cfg config.Config, logger *slog.Logger) (*app, error) {
	seed, err := config.LoadModels(cfg.ModelsFile)
	if err != nil {
		return nil, fmt.Errorf("load models: %w", err)
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	client := openai.NewClient(cfg)
	cat := catalog.New(client, seed, catalog.Options{
		Filter: cfg.ModelsFilter,
		Limit:  cfg.ModelsLimit,
	}, logger.With("component", "catalog"))

	return &app{
		cfg:       cfg,
		log:       logger,
		store:     store,
		states:    memory.NewStateStore(),
		catalog:   cat,
		chat:      chat.NewService(store, client, cfg, logger.With("component", "chat")),
		sessions:  session.NewService(store, cfg.DefaultModel, logger.With("component", "session")),
		favorites: catalog.NewFavorites(store, cat),
	}, nil
}

func openStore(cfg config.Config, logger *slog.Logger) (domain.Store, error) {
	switch strings.ToLower(cfg.DatabaseDriver) {
	case config.DriverMemory:
		logger.Warn("using in-memory storage, chats are lost on restart")
		return memory.NewStore(), nil
	default:
		s, err := sqlstore.Open(strings.ToLower(cfg.DatabaseDriver), cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		return s, nil
	}
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("close storage", "error", err)
	}
}
