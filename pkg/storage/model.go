package storage

import (
	"sync/atomic"
	"time"

	"github.com/dzjyyds666/pdxu/pkg/game"
	"github.com/google/uuid"
)

// =========================
// Entry
// =========================

type entryMeta struct {
	name     string
	date     string
	checksum string
}

// Entry is one imported savegame. UUID never changes. The other fields
// are swapped as whole snapshots so readers never see a torn value.
type Entry struct {
	UUID uuid.UUID

	meta atomic.Pointer[entryMeta]
	info atomic.Pointer[game.Info]
}

func newEntry(id uuid.UUID, name, date, checksum string) *Entry {
	e := &Entry{UUID: id}
	e.meta.Store(&entryMeta{name: name, date: date, checksum: checksum})
	return e
}

// Name is the user-given name, or the date when none was set.
func (e *Entry) Name() string {
	m := e.meta.Load()
	if m.name == "" {
		return m.date
	}
	return m.name
}

// CustomName is empty unless the user renamed the entry.
func (e *Entry) CustomName() string { return e.meta.Load().name }

func (e *Entry) Date() string { return e.meta.Load().date }

func (e *Entry) Checksum() string { return e.meta.Load().checksum }

// Info is nil until a load has published it.
func (e *Entry) Info() *game.Info { return e.info.Load() }

func (e *Entry) Loaded() bool { return e.info.Load() != nil }

func (e *Entry) update(fn func(m *entryMeta)) {
	m := *e.meta.Load()
	fn(&m)
	e.meta.Store(&m)
}

// =========================
// Collection
// =========================

type Kind uint8

const (
	KindCampaign Kind = iota
	KindFolder
)

func (k Kind) String() string {
	if k == KindFolder {
		return "folder"
	}
	return "campaign"
}

type collectionMeta struct {
	name       string
	date       string
	lastPlayed time.Time
}

// Collection is a campaign or a folder. Its entry list belongs to the
// store and is only touched under the store lock.
type Collection struct {
	UUID uuid.UUID
	Kind Kind

	meta    atomic.Pointer[collectionMeta]
	entries []*Entry
}

func newCollection(kind Kind, id uuid.UUID, name, date string, lastPlayed time.Time) *Collection {
	c := &Collection{UUID: id, Kind: kind}
	c.meta.Store(&collectionMeta{name: name, date: date, lastPlayed: lastPlayed})
	return c
}

func (c *Collection) Name() string { return c.meta.Load().name }

// Date is the latest in-game date of a campaign. Folders have none.
func (c *Collection) Date() string { return c.meta.Load().date }

func (c *Collection) LastPlayed() time.Time { return c.meta.Load().lastPlayed }

func (c *Collection) update(fn func(m *collectionMeta)) {
	m := *c.meta.Load()
	fn(&m)
	c.meta.Store(&m)
}

func (c *Collection) indexOf(e *Entry) int {
	for i, x := range c.entries {
		if x == e {
			return i
		}
	}
	return -1
}

func (c *Collection) remove(e *Entry) {
	if i := c.indexOf(e); i >= 0 {
		c.entries = append(c.entries[:i], c.entries[i+1:]...)
	}
}

// metadataFile is campaign.json or folder.json.
func (c *Collection) metadataFile() string {
	return c.Kind.String() + ".json"
}

func (c *Collection) backupFile() string {
	return c.Kind.String() + "_old.json"
}
