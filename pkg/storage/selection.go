package storage

import (
	"sync"

	"github.com/google/uuid"
)

// Selection is the globally selected collection and entry, shared by
// all stores of a registry.
type Selection struct {
	mu         sync.Mutex
	game       string
	collection uuid.UUID
	entry      uuid.UUID
	bus        *Bus
}

func NewSelection(bus *Bus) *Selection {
	return &Selection{bus: bus}
}

// Current returns the selected game, collection and entry. Zero uuids
// mean nothing is selected at that level.
func (s *Selection) Current() (string, uuid.UUID, uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game, s.collection, s.entry
}

func (s *Selection) Select(gameID string, collection, entry uuid.UUID) {
	s.mu.Lock()
	s.game, s.collection, s.entry = gameID, collection, entry
	s.mu.Unlock()
	s.bus.Publish(Event{Type: EventSelectionChanged, Game: gameID, Collection: collection, Entry: entry})
}

func (s *Selection) Clear() {
	s.mu.Lock()
	changed := s.game != "" || s.collection != uuid.Nil || s.entry != uuid.Nil
	s.game, s.collection, s.entry = "", uuid.Nil, uuid.Nil
	s.mu.Unlock()
	if changed {
		s.bus.Publish(Event{Type: EventSelectionChanged})
	}
}

// clearIf clears the selection when it points at id, either as the
// selected collection or the selected entry.
func (s *Selection) clearIf(gameID string, id uuid.UUID) bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	hit := s.game == gameID && id != uuid.Nil && (s.collection == id || s.entry == id)
	s.mu.Unlock()
	if hit {
		s.Clear()
	}
	return hit
}
