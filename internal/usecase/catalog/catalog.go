// Package catalog keeps the list of models offered to users and their
// favorites.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/Purpose-arch/tgbotaimult/internal/domain"
)

var ErrEmptyCatalog = errors.New("provider returned no matching models")

// Lister returns the model IDs the provider currently serves.
type Lister interface {
	ListModels(ctx context.Context) ([]string, error)
}

type Options struct {
	// Filter keeps only IDs containing it. Empty keeps everything.
	Filter string
	// Limit caps the list. Zero means no cap.
	Limit int
}

type Catalog struct {
	lister Lister
	seed   []domain.Model
	opts   Options
	log    *slog.Logger

	mu          sync.RWMutex
	models      []domain.Model
	refreshedAt time.Time
}

// New starts with the seed models until the first successful Refresh.
func New(lister Lister, seed []domain.Model, opts Options, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		lister: lister,
		seed:   append([]domain.Model(nil), seed...),
		opts:   opts,
		log:    logger,
		models: append([]domain.Model(nil), seed...),
	}
}

// Refresh replaces the list with the provider's models. The current list
// is kept when listing fails or nothing matches.
func (c *Catalog) Refresh(ctx context.Context) error {
	ids, err := c.lister.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}

	models := c.build(ids)
	if len(models) == 0 {
		return ErrEmptyCatalog
	}

	c.mu.Lock()
	c.models = models
	c.refreshedAt = time.Now()
	c.mu.Unlock()

	c.log.Info("model catalog refreshed", "models", len(models), "listed", len(ids))
	return nil
}

func (c *Catalog) build(ids []string) []domain.Model {
	available := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || (c.opts.Filter != "" && !strings.Contains(id, c.opts.Filter)) {
			continue
		}
		available[id] = true
	}

	models := make([]domain.Model, 0, len(available))
	for _, m := range c.seed {
		if available[m.ID] {
			models = append(models, m)
			delete(available, m.ID)
		}
	}

	seeded := len(models)
	rest := make([]domain.Model, 0, len(available))
	for id := range available {
		rest = append(rest, domain.Model{ID: id, Label: Humanize(id)})
	}
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].Label != rest[j].Label {
			return rest[i].Label < rest[j].Label
		}
		return rest[i].ID < rest[j].ID
	})
	models = append(models, rest...)

	if c.opts.Limit > 0 && len(models) > c.opts.Limit {
		models = models[:c.opts.Limit]
	}
	disambiguate(models, seeded)
	return models
}

// disambiguate makes labels unique. The first seeded entries keep their
// labels. A colliding derived label gets the vendor appended, or becomes
// the ID when that is still taken.
func disambiguate(models []domain.Model, seeded int) {
	seeded = min(seeded, len(models))
	count := make(map[string]int, len(models))
	for _, m := range models {
		count[m.Label]++
	}

	taken := make(map[string]bool, len(models))
	for _, m := range models[:seeded] {
		taken[m.Label] = true
	}
	for i := seeded; i < len(models); i++ {
		m := &models[i]
		if count[m.Label] > 1 || taken[m.Label] {
			if vendor, _, ok := strings.Cut(m.ID, "/"); ok && vendor != "" {
				m.Label = fmt.Sprintf("%s · %s", m.Label, vendor)
			}
		}
		if taken[m.Label] {
			m.Label = m.ID
		}
		taken[m.Label] = true
	}
}

// Run refreshes immediately and then every interval until ctx ends.
func (c *Catalog) Run(ctx context.Context, interval time.Duration) {
	c.refreshLogged(ctx)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refreshLogged(ctx)
		}
	}
}

func (c *Catalog) refreshLogged(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
		c.log.Warn("model catalog refresh failed, keeping current list", "error", err)
	}
}

func (c *Catalog) Models() []domain.Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Model(nil), c.models...)
}

func (c *Catalog) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}

// Lookup finds a model by its button label or its ID.
func (c *Catalog) Lookup(labelOrID string) (domain.Model, bool) {
	key := strings.TrimSpace(labelOrID)
	if key == "" {
		return domain.Model{}, false
	}
	models := c.Models()
	for _, m := range models {
		if m.ID == key {
			return m, true
		}
	}
	for _, m := range models {
		if m.Label == key {
			return m, true
		}
	}
	for _, m := range c.seed {
		if m.Label == key || m.ID == key {
			return m, true
		}
	}
	return domain.Model{}, false
}

// Label returns the display name of id, derived from the ID when the model
// is not in the catalog.
func (c *Catalog) Label(id string) string {
	if m, ok := c.Lookup(id); ok && m.ID == id {
		return m.Label
	}
	return Humanize(id)
}

// Humanize turns "vendor/name:tier" into "name (Tier)".
func Humanize(id string) string {
	name := id
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name, tier, ok := strings.Cut(name, ":")
	if !ok || tier == "" {
		return name
	}
	r := []rune(tier)
	r[0] = unicode.ToUpper(r[0])
	return fmt.Sprintf("%s (%s)", name, string(r))
}
