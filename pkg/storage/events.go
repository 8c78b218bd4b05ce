package storage

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// EventType names a store notification.
type EventType string

const (
	EventEntryInfoChanged  EventType = "entry_info_changed" // an async load published info
	EventEntryLoadFailed   EventType = "entry_load_failed"  // an async load failed, entry stays unloaded
	EventEntryRemoved      EventType = "entry_removed"      // entry deleted or moved away
	EventCollectionChanged EventType = "collection_changed" // entries, name or lastPlayed changed
	EventCollectionRemoved EventType = "collection_removed" // collection deleted, possibly by cascade
	EventSelectionChanged  EventType = "selection_changed"  // selection set or cleared
)

type Event struct {
	Type       EventType
	Game       string
	Collection uuid.UUID
	Entry      uuid.UUID
	Err        error
}

// Bus fans events out to subscribers. Publish never blocks: a
// subscriber whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel with room for buffer events and a cancel
// func that closes it.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("event dropped", "subscriber", id, "type", ev.Type, "game", ev.Game)
		}
	}
}
