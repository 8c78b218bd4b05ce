package storage

// storage 包管理单个游戏的存档库：导入（校验和去重、熔解、解析）、按战役/文件夹组织、
// 异步加载、移动、删除、导出，以及带备份的 JSON 元数据持久化。

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dzjyyds666/pdxu/parse"
	"github.com/dzjyyds666/pdxu/parse/pdx"
	"github.com/dzjyyds666/pdxu/pkg"
	"github.com/dzjyyds666/pdxu/pkg/game"
	"github.com/dzjyyds666/pdxu/pkg/melter"
	"github.com/google/uuid"
)

type Options struct {
	Melter      melter.Melter // defaults to melter.None
	Executor    *Executor     // defaults to a private executor
	Bus         *Bus
	Selection   *Selection
	Guard       *MemoryGuard // nil disables the memory check
	Thumbnailer Thumbnailer  // nil writes no thumbnails
	Indent      string       // writer indent, defaults to a tab
	Logger      *slog.Logger
}

// Store is the savegame library of one game rooted at dir. Every
// mutation runs under mu, including its file I/O, so metadata and the
// filesystem change in lock-step. Different stores never share a lock.
type Store struct {
	game   *game.Game
	dir    string
	melter melter.Melter
	exec   *Executor
	bus    *Bus
	sel    *Selection
	guard  *MemoryGuard
	thumbs Thumbnailer
	indent string
	log    *slog.Logger

	ownExec bool

	mu          sync.Mutex
	collections []*Collection
	byUUID      map[uuid.UUID]*Collection
	owner       map[uuid.UUID]*Collection // entry uuid -> collection
	byChecksum  map[string]*Entry
}

// Open loads the store at dir, creating the directory if needed.
func Open(dir string, g *game.Game, opts Options) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ioErr("open", dir, err)
	}
	s := &Store{
		game:       g,
		dir:        dir,
		melter:     opts.Melter,
		exec:       opts.Executor,
		bus:        opts.Bus,
		sel:        opts.Selection,
		guard:      opts.Guard,
		thumbs:     opts.Thumbnailer,
		indent:     opts.Indent,
		log:        opts.Logger,
		byUUID:     make(map[uuid.UUID]*Collection),
		owner:      make(map[uuid.UUID]*Collection),
		byChecksum: make(map[string]*Entry),
	}
	if s.melter == nil {
		s.melter = melter.None{}
	}
	if s.exec == nil {
		s.exec = NewExecutor(0)
		s.ownExec = true
	}
	if s.sel == nil {
		s.sel = NewSelection(s.bus)
	}
	if s.indent == "" {
		s.indent = "\t"
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("game", g.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		if s.ownExec {
			s.exec.Close()
		}
		return nil, err
	}
	s.log.Debug("store opened", "dir", dir, "collections", len(s.collections))
	return s, nil
}

func (s *Store) Game() *game.Game { return s.game }

// Selection is the selection the store clears on deletes.
func (s *Store) Selection() *Selection { return s.sel }

// Flush waits for scheduled loads to finish.
func (s *Store) Flush() { s.exec.Flush() }

// Close saves the store and stops its executor when it owns one.
func (s *Store) Close() error {
	err := s.Save()
	if s.ownExec {
		s.exec.Close()
	}
	return err
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) publish(t EventType, c *Collection, e *Entry, err error) {
	ev := Event{Type: t, Game: s.game.ID, Err: err}
	if c != nil {
		ev.Collection = c.UUID
	}
	if e != nil {
		ev.Entry = e.UUID
	}
	s.bus.Publish(ev)
}

// =========================
// Index maintenance (callers hold mu)
// =========================

func (s *Store) addCollectionLocked(c *Collection) {
	s.collections = append(s.collections, c)
	s.byUUID[c.UUID] = c
	for _, e := range c.entries {
		s.owner[e.UUID] = c
		if sum := e.Checksum(); sum != "" {
			s.byChecksum[sum] = e
		}
	}
}

func (s *Store) dropCollectionLocked(c *Collection) {
	for i, x := range s.collections {
		if x == c {
			s.collections = append(s.collections[:i], s.collections[i+1:]...)
			break
		}
	}
	delete(s.byUUID, c.UUID)
	for _, e := range c.entries {
		s.forgetEntryLocked(e)
	}
}

func (s *Store) forgetEntryLocked(e *Entry) {
	delete(s.owner, e.UUID)
	if s.byChecksum[e.Checksum()] == e {
		delete(s.byChecksum, e.Checksum())
	}
}

// freshUUID returns a uuid no entry or collection of the store uses.
func (s *Store) freshUUID() uuid.UUID {
	for {
		id := uuid.New()
		if s.byUUID[id] == nil && s.owner[id] == nil {
			return id
		}
	}
}

// =========================
// Paths
// =========================

func (s *Store) collectionDir(c *Collection) string {
	return filepath.Join(s.dir, c.UUID.String())
}

func (s *Store) entryDir(c *Collection, e *Entry) string {
	return filepath.Join(s.collectionDir(c), e.UUID.String())
}

// EntryPath is the directory holding the entry's files.
func (s *Store) EntryPath(e *Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.ownerLocked(e)
	if err != nil {
		return "", err
	}
	return s.entryDir(c, e), nil
}

// SavegameFile is the stored raw savegame of e.
func (s *Store) SavegameFile(e *Entry) (string, error) {
	dir, err := s.EntryPath(e)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, s.game.SaveFileName()), nil
}

// ThumbnailPath is campaign.png of c. Folders have none.
func (s *Store) ThumbnailPath(c *Collection) string {
	if c.Kind != KindCampaign {
		return ""
	}
	return filepath.Join(s.collectionDir(c), "campaign.png")
}

// =========================
// Queries
// =========================

// Collections returns all collections, most recently played first.
func (s *Store) Collections() []*Collection {
	s.mu.Lock()
	out := append([]*Collection(nil), s.collections...)
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastPlayed().After(out[j].LastPlayed())
	})
	return out
}

// Entries returns a snapshot of c's entries in insertion order.
func (s *Store) Entries(c *Collection) []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Entry(nil), c.entries...)
}

func (s *Store) Collection(id uuid.UUID) (*Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.byUUID[id]
	if c == nil {
		return nil, fmt.Errorf("collection %s: %w", id, ErrNotFound)
	}
	return c, nil
}

func (s *Store) Entry(id uuid.UUID) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.owner[id]
	if c == nil {
		return nil, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	e := s.entryByID(c, id)
	if e == nil {
		return nil, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return e, nil
}

func (s *Store) entryByID(c *Collection, id uuid.UUID) *Entry {
	for _, e := range c.entries {
		if e.UUID == id {
			return e
		}
	}
	return nil
}

// Contains reports whether e is part of the store.
func (s *Store) Contains(e *Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.owner[e.UUID]
	return c != nil && c.indexOf(e) >= 0
}

func (s *Store) CollectionOf(e *Entry) (*Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownerLocked(e)
}

func (s *Store) ownerLocked(e *Entry) (*Collection, error) {
	c := s.owner[e.UUID]
	if c == nil || c.indexOf(e) < 0 {
		return nil, fmt.Errorf("entry %s: %w", e.UUID, ErrNotFound)
	}
	return c, nil
}

// EntryName is "<collection> (<entry>)".
func (s *Store) EntryName(e *Entry) string {
	c, err := s.CollectionOf(e)
	if err != nil {
		return e.Name()
	}
	return c.Name() + " (" + e.Name() + ")"
}

// ExportFileName is the file name an export of e gets by default.
func (s *Store) ExportFileName(e *Entry) string {
	name := strings.ReplaceAll(s.EntryName(e), ":", ".")
	return name + "." + s.game.Extension
}

// =========================
// Import
// =========================

// Imported describes the result of an import. Duplicate is set when
// identical content was already stored; Entry is then the existing one.
type Imported struct {
	Entry      *Entry
	Collection *Collection
	Duplicate  bool
}

// Import stores the savegame at path and selects it. Identical content is
// not stored twice: the existing entry is selected and loaded instead.
func (s *Store) Import(path string) (*Imported, error) {
	res, err := s.importFile(path)
	if err != nil {
		s.log.Warn("import failed", "path", path, "err", err)
		return nil, &ImportError{Path: path, Err: err}
	}
	s.sel.Select(s.game.ID, res.Collection.UUID, res.Entry.UUID)
	if res.Duplicate {
		s.LoadAsync(res.Entry)
	}
	return res, nil
}

func (s *Store) importFile(path string) (*Imported, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Check(st.Size()); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sum := parse.Checksum(data)
	if e := s.byChecksum[sum]; e != nil {
		s.log.Debug("duplicate content", "path", path, "entry", e.UUID, "checksum", sum)
		return &Imported{Entry: e, Collection: s.owner[e.UUID], Duplicate: true}, nil
	}

	info, err := s.summarize(path, data)
	if err != nil {
		return nil, err
	}

	c := s.byUUID[info.CampaignID]
	created := c == nil
	if created {
		c = newCollection(KindCampaign, info.CampaignID, s.game.DefaultCampaignName(info), info.Date.String(), time.Now())
	}
	e := newEntry(s.freshUUID(), "", info.Date.String(), sum)

	target := filepath.Join(s.entryDir(c, e), s.game.SaveFileName())
	if err := pkg.CopyFile(path, target); err != nil {
		pkg.RemoveDir(s.entryDir(c, e))
		if created {
			pkg.RemoveDir(s.collectionDir(c))
		}
		return nil, ioErr("copy", target, err)
	}
	e.info.Store(info)

	c.entries = append(c.entries, e)
	if created {
		s.addCollectionLocked(c)
		s.writeThumbnail(c, info)
	} else {
		s.owner[e.UUID] = c
		s.byChecksum[sum] = e
	}
	c.update(func(m *collectionMeta) {
		m.lastPlayed = time.Now()
		if d, err := pdx.ParseDate(m.date); err != nil || d.Before(info.Date) {
			m.date = info.Date.String()
		}
	})

	s.log.Debug("imported savegame", "path", path, "collection", c.UUID, "entry", e.UUID, "checksum", sum)
	if err := s.saveLocked(c); err != nil {
		return nil, err
	}
	s.publish(EventCollectionChanged, c, e, nil)
	return &Imported{Entry: e, Collection: c}, nil
}

func (s *Store) writeThumbnail(c *Collection, info *game.Info) {
	if s.thumbs == nil {
		return
	}
	img, err := s.thumbs.Thumbnail(info)
	if err == nil {
		err = pkg.WriteFileAtomic(s.ThumbnailPath(c), img)
	}
	if err != nil {
		s.log.Warn("thumbnail not written", "collection", c.UUID, "err", err)
	}
}

// summarize melts when needed, parses and extracts the listing info.
func (s *Store) summarize(path string, data []byte) (*game.Info, error) {
	melted := false
	if s.melter.IsBinary(data) {
		text, err := s.melter.Melt(path)
		if err != nil {
			return nil, err
		}
		data, melted = text, true
	}
	root, err := s.game.Parse(data)
	if err != nil {
		return nil, err
	}
	return s.game.Summarize(root, melted)
}

// =========================
// Loading
// =========================

// Load parses the stored savegame of e and publishes its info. It runs
// on the caller's goroutine and does not hold the store lock while
// parsing.
func (s *Store) Load(e *Entry) (*game.Info, error) {
	path, err := s.SavegameFile(e)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, ioErr("load", path, err)
	}
	if err := s.guard.Check(st.Size()); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ioErr("load", path, err)
	}
	info, err := s.summarize(path, data)
	if err != nil {
		return nil, err
	}
	e.info.Store(info)
	return info, nil
}

// LoadAsync schedules a background load unless info is already there.
// Two calls before the first load finishes may both parse; the results
// are identical and the later store wins.
func (s *Store) LoadAsync(e *Entry) {
	if e.Loaded() {
		return
	}
	err := s.exec.Submit(func() {
		if e.Loaded() {
			return
		}
		if _, err := s.Load(e); err != nil {
			s.log.Warn("loading entry failed", "entry", e.UUID, "err", err)
			s.publish(EventEntryLoadFailed, nil, e, err)
			return
		}
		s.publish(EventEntryInfoChanged, nil, e, nil)
	}, false)
	if err != nil {
		s.log.Warn("load not scheduled", "entry", e.UUID, "err", err)
	}
}

// Reload drops the cached info and loads again.
func (s *Store) Reload(e *Entry) {
	e.info.Store(nil)
	s.LoadAsync(e)
}

// Tree parses the stored savegame of e into a node tree.
func (s *Store) Tree(e *Entry) (*pdx.Array, error) {
	path, err := s.SavegameFile(e)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, ioErr("read", path, err)
	}
	if err := s.guard.Check(st.Size()); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ioErr("read", path, err)
	}
	if s.melter.IsBinary(data) {
		if data, err = s.melter.Melt(path); err != nil {
			return nil, err
		}
	}
	return s.game.Parse(data)
}

// WriteEntry replaces the stored savegame of e with root serialized in
// the game's dialect and container, then reloads the entry.
func (s *Store) WriteEntry(e *Entry, root *pdx.Array) error {
	s.mu.Lock()
	c, err := s.ownerLocked(e)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	path := filepath.Join(s.entryDir(c, e), s.game.SaveFileName())
	stored, err := os.ReadFile(path)
	if err != nil {
		s.mu.Unlock()
		return ioErr("read", path, err)
	}
	data, err := s.game.Encode(stored, root, s.indent)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	sum := parse.Checksum(data)
	if other := s.byChecksum[sum]; other != nil && other != e {
		s.mu.Unlock()
		return fmt.Errorf("content already stored as entry %s", other.UUID)
	}
	if err := pkg.WriteFileAtomic(path, data); err != nil {
		s.mu.Unlock()
		return ioErr("write", path, err)
	}
	s.forgetEntryLocked(e)
	e.update(func(m *entryMeta) { m.checksum = sum })
	s.owner[e.UUID] = c
	s.byChecksum[sum] = e
	err = s.saveLocked(c)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.Reload(e)
	return nil
}

// =========================
// Mutations
// =========================

// AddFolder creates an empty folder.
func (s *Store) AddFolder(name string) (*Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := newCollection(KindFolder, s.freshUUID(), name, "", time.Now())
	if err := os.MkdirAll(s.collectionDir(c), 0o755); err != nil {
		return nil, ioErr("mkdir", s.collectionDir(c), err)
	}
	s.addCollectionLocked(c)
	if err := s.saveLocked(c); err != nil {
		return nil, err
	}
	s.publish(EventCollectionChanged, c, nil, nil)
	return c, nil
}

// Move copies e into target, then removes it from its current
// collection. A failed copy changes nothing. The source collection is
// deleted when it becomes empty.
func (s *Store) Move(target *Collection, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := s.ownerLocked(e)
	if err != nil {
		return err
	}
	if s.byUUID[target.UUID] != target {
		return fmt.Errorf("collection %s: %w", target.UUID, ErrNotFound)
	}
	if src == target {
		return ErrSameCollection
	}

	from, to := s.entryDir(src, e), s.entryDir(target, e)
	if err := pkg.CopyDir(from, to); err != nil {
		return ioErr("copy", from, err)
	}

	target.entries = append(target.entries, e)
	s.owner[e.UUID] = target
	src.remove(e)
	if err := pkg.RemoveDir(from); err != nil {
		s.log.Warn("source directory left behind", "dir", from, "err", err)
	}
	s.publish(EventEntryRemoved, src, e, nil)
	s.publish(EventCollectionChanged, target, e, nil)

	if len(src.entries) == 0 {
		if err := s.deleteCollectionLocked(src); err != nil {
			return err
		}
		return s.saveLocked(target)
	}
	return s.saveLocked(src, target)
}

// DeleteEntry removes e from disk and the store. Removing the last entry
// removes its collection too.
func (s *Store) DeleteEntry(e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.ownerLocked(e)
	if err != nil {
		return err
	}
	dir := s.entryDir(c, e)
	if err := pkg.RemoveDir(dir); err != nil {
		return ioErr("delete", dir, err)
	}
	c.remove(e)
	s.forgetEntryLocked(e)
	s.sel.clearIf(s.game.ID, e.UUID)
	s.publish(EventEntryRemoved, c, e, nil)

	if len(c.entries) == 0 {
		return s.deleteCollectionLocked(c)
	}
	return s.saveLocked(c)
}

// DeleteCollection removes c and every entry in it.
func (s *Store) DeleteCollection(c *Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byUUID[c.UUID] != c {
		return fmt.Errorf("collection %s: %w", c.UUID, ErrNotFound)
	}
	return s.deleteCollectionLocked(c)
}

func (s *Store) deleteCollectionLocked(c *Collection) error {
	dir := s.collectionDir(c)
	if err := pkg.RemoveDir(dir); err != nil {
		return ioErr("delete", dir, err)
	}
	for _, e := range c.entries {
		s.sel.clearIf(s.game.ID, e.UUID)
	}
	s.dropCollectionLocked(c)
	s.sel.clearIf(s.game.ID, c.UUID)
	s.publish(EventCollectionRemoved, c, nil, nil)
	return s.saveIndexLocked()
}

func (s *Store) Rename(c *Collection, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byUUID[c.UUID] != c {
		return fmt.Errorf("collection %s: %w", c.UUID, ErrNotFound)
	}
	c.update(func(m *collectionMeta) { m.name = name })
	s.publish(EventCollectionChanged, c, nil, nil)
	return s.saveIndexLocked()
}

// RenameEntry sets a custom name. An empty name restores the date.
func (s *Store) RenameEntry(e *Entry, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.ownerLocked(e)
	if err != nil {
		return err
	}
	e.update(func(m *entryMeta) { m.name = name })
	s.publish(EventCollectionChanged, c, e, nil)
	return s.saveLocked(c)
}

// Touch marks c as played now.
func (s *Store) Touch(c *Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byUUID[c.UUID] != c {
		return fmt.Errorf("collection %s: %w", c.UUID, ErrNotFound)
	}
	c.update(func(m *collectionMeta) { m.lastPlayed = time.Now() })
	s.publish(EventCollectionChanged, c, nil, nil)
	return s.saveIndexLocked()
}

// Export copies the stored savegame of e to dest, creating parent
// directories, and stamps dest with the current time.
func (s *Store) Export(e *Entry, dest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.ownerLocked(e)
	if err != nil {
		return err
	}
	src := filepath.Join(s.entryDir(c, e), s.game.SaveFileName())
	if err := pkg.CopyFile(src, dest); err != nil {
		return ioErr("export", dest, err)
	}
	if err := pkg.Touch(dest); err != nil {
		return ioErr("touch", dest, err)
	}
	s.log.Debug("exported savegame", "entry", e.UUID, "dest", dest)
	return nil
}

// Select makes e the globally selected entry and loads it.
func (s *Store) Select(e *Entry) error {
	c, err := s.CollectionOf(e)
	if err != nil {
		return err
	}
	s.sel.Select(s.game.ID, c.UUID, e.UUID)
	s.LoadAsync(e)
	return nil
}

// IsNotFound reports whether err means an unknown entry or collection.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
