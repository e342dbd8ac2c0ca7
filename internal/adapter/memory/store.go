package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Purpose-arch/tgbotaimult/internal/domain"
)

// Store keeps chats, messages and favorites in process memory. Contents are
// lost on restart.
type Store struct {
	mu        sync.Mutex
	chats     map[uuid.UUID]domain.Chat
	messages  map[uuid.UUID][]domain.Message
	favorites map[int64][]domain.Favorite
	nextMsgID uint
}

func NewStore() *Store {
	return &Store{
		chats:     make(map[uuid.UUID]domain.Chat),
		messages:  make(map[uuid.UUID][]domain.Message),
		favorites: make(map[int64][]domain.Favorite),
	}
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) CreateChat(_ context.Context, chat *domain.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chat.ID == uuid.Nil {
		chat.ID = uuid.New()
	}
	s.chats[chat.ID] = *chat
	return nil
}

func (s *Store) GetChat(_ context.Context, userID int64, chatID uuid.UUID) (domain.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok || c.UserID != userID {
		return domain.Chat{}, domain.ErrNotFound
	}
	return c, nil
}

func (s *Store) ActiveChat(_ context.Context, userID int64) (domain.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		found  domain.Chat
		exists bool
	)
	for _, c := range s.chats {
		if c.UserID != userID || !c.Active {
			continue
		}
		if !exists || c.UpdatedAt.After(found.UpdatedAt) {
			found, exists = c, true
		}
	}
	if !exists {
		return domain.Chat{}, domain.ErrNotFound
	}
	return found, nil
}

func (s *Store) ListChats(_ context.Context, userID int64) ([]domain.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Chat, 0)
	for _, c := range s.chats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) SetActiveChat(_ context.Context, userID int64, chatID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.chats[chatID]
	if !ok || target.UserID != userID {
		return domain.ErrNotFound
	}
	for id, c := range s.chats {
		if c.UserID != userID {
			continue
		}
		c.Active = id == chatID
		s.chats[id] = c
	}
	return nil
}

func (s *Store) UpdateChat(_ context.Context, chat domain.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.chats[chat.ID]
	if !ok || cur.UserID != chat.UserID {
		return domain.ErrNotFound
	}
	cur.Model = chat.Model
	cur.Title = chat.Title
	cur.UpdatedAt = chat.UpdatedAt
	s.chats[chat.ID] = cur
	return nil
}

func (s *Store) DeleteChat(_ context.Context, userID int64, chatID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok || c.UserID != userID {
		return domain.ErrNotFound
	}
	delete(s.chats, chatID)
	delete(s.messages, chatID)
	return nil
}

func (s *Store) AddMessage(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextMsgID++
	msg.ID = s.nextMsgID
	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], *msg)
	return nil
}

func (s *Store) RecentMessages(_ context.Context, chatID uuid.UUID, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.messages[chatID]
	if len(history) == 0 {
		return nil, nil
	}
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return append([]domain.Message(nil), history...), nil
}

func (s *Store) Messages(_ context.Context, chatID uuid.UUID) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages[chatID]...), nil
}

func (s *Store) ClearMessages(_ context.Context, chatID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, chatID)
	return nil
}

func (s *Store) TrimMessages(_ context.Context, chatID uuid.UUID, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.messages[chatID]
	if keep <= 0 {
		delete(s.messages, chatID)
		return nil
	}
	if len(history) > keep {
		s.messages[chatID] = append([]domain.Message(nil), history[len(history)-keep:]...)
	}
	return nil
}

func (s *Store) AddFavorite(_ context.Context, fav domain.Favorite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.favorites[fav.UserID] {
		if f.ModelID == fav.ModelID {
			return nil
		}
	}
	s.favorites[fav.UserID] = append(s.favorites[fav.UserID], fav)
	return nil
}

func (s *Store) RemoveFavorite(_ context.Context, userID int64, modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	favs := s.favorites[userID]
	kept := favs[:0]
	for _, f := range favs {
		if f.ModelID != modelID {
			kept = append(kept, f)
		}
	}
	s.favorites[userID] = kept
	return nil
}

func (s *Store) ListFavorites(_ context.Context, userID int64) ([]domain.Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Favorite(nil), s.favorites[userID]...), nil
}
