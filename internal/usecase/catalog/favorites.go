package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Purpose-arch/tgbotaimult/internal/domain"
)

// Favorites bookmarks models per user.
type Favorites struct {
	store   domain.FavoriteStore
	catalog *Catalog
	now     func() time.Time
}

func NewFavorites(store domain.FavoriteStore, catalog *Catalog) *Favorites {
	return &Favorites{
		store:   store,
		catalog: catalog,
		now:     time.Now,
	}
}

// Add is a no-op when modelID is already a favorite.
func (f *Favorites) Add(ctx context.Context, userID int64, modelID string) error {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return fmt.Errorf("add favorite: empty model id")
	}
	err := f.store.AddFavorite(ctx, domain.Favorite{
		UserID:    userID,
		ModelID:   modelID,
		CreatedAt: f.now(),
	})
	if err != nil {
		return fmt.Errorf("add favorite: %w", err)
	}
	return nil
}

func (f *Favorites) Remove(ctx context.Context, userID int64, modelID string) error {
	if err := f.store.RemoveFavorite(ctx, userID, modelID); err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return nil
}

// List returns the user's favorites in the order they were added, labeled
// through the catalog.
func (f *Favorites) List(ctx context.Context, userID int64) ([]domain.Model, error) {
	favs, err := f.store.ListFavorites(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	models := make([]domain.Model, 0, len(favs))
	for _, fav := range favs {
		models = append(models, domain.Model{ID: fav.ModelID, Label: f.catalog.Label(fav.ModelID)})
	}
	return models, nil
}

func (f *Favorites) IsFavorite(ctx context.Context, userID int64, modelID string) (bool, error) {
	favs, err := f.store.ListFavorites(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("list favorites: %w", err)
	}
	for _, fav := range favs {
		if fav.ModelID == modelID {
			return true, nil
		}
	}
	return false, nil
}
