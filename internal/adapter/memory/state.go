package memory

import (
	"sync"

	"github.com/Purpose-arch/tgbotaimult/internal/domain"
)

// StateStore remembers where each user is in the menu.
type StateStore struct {
	mu     sync.Mutex
	states map[int64]domain.State
}

func NewStateStore() *StateStore {
	return &StateStore{
		states: make(map[int64]domain.State),
	}
}

func (s *StateStore) State(userID int64) domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[userID]
}

func (s *StateStore) SetState(userID int64, state domain.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state == domain.StateIdle {
		delete(s.states, userID)
		return
	}
	s.states[userID] = state
}
