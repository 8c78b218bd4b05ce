package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dzjyyds666/pdxu/pkg"
	"github.com/google/uuid"
)

const (
	indexFileName   = "campaigns.json"
	indexBackupName = "campaigns_old.json"
)

// =========================
// On-disk records
// =========================

type campaignRecord struct {
	Name       string    `json:"name"`
	Date       string    `json:"date"`
	LastPlayed time.Time `json:"lastPlayed"`
	UUID       uuid.UUID `json:"uuid"`
}

type folderRecord struct {
	Name       string    `json:"name"`
	LastPlayed time.Time `json:"lastPlayed"`
	UUID       uuid.UUID `json:"uuid"`
}

type indexRecord struct {
	Campaigns []campaignRecord `json:"campaigns"`
	Folders   []folderRecord   `json:"folders,omitempty"`
}

type entryRecord struct {
	Name     *string   `json:"name"`
	Date     string    `json:"date"`
	Checksum string    `json:"checksum"`
	UUID     uuid.UUID `json:"uuid"`
}

type entriesRecord struct {
	Entries []entryRecord `json:"entries"`
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// writeJSON copies the current file to backup before replacing it.
func writeJSON(path, backup string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := pkg.BackupIfExists(path, backup); err != nil {
		return ioErr("backup", path, err)
	}
	return ioErr("write", path, pkg.WriteFileAtomic(path, data))
}

// =========================
// Load
// =========================

// load reads campaigns.json and every collection file. Collections or
// entries whose directory is gone are skipped.
func (s *Store) load() error {
	var idx indexRecord
	err := readJSON(filepath.Join(s.dir, indexFileName), &idx)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return ioErr("load", s.dir, err)
	}

	for _, r := range idx.Campaigns {
		s.loadCollection(newCollection(KindCampaign, r.UUID, r.Name, r.Date, r.LastPlayed))
	}
	for _, r := range idx.Folders {
		s.loadCollection(newCollection(KindFolder, r.UUID, r.Name, "", r.LastPlayed))
	}
	return nil
}

func (s *Store) loadCollection(c *Collection) {
	log := s.log.With("collection", c.UUID)
	if _, dup := s.byUUID[c.UUID]; dup || c.UUID == uuid.Nil {
		log.Warn("skipping duplicate collection")
		return
	}
	dir := s.collectionDir(c)
	if ok, _ := pkg.CheckFileExist(dir); !ok {
		log.Debug("skipping collection without directory")
		return
	}

	var rec entriesRecord
	if err := readJSON(filepath.Join(dir, c.metadataFile()), &rec); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("skipping unreadable collection", "err", err)
			return
		}
	}
	seen := make(map[uuid.UUID]bool, len(rec.Entries))
	for _, r := range rec.Entries {
		if r.UUID == uuid.Nil || seen[r.UUID] || s.owner[r.UUID] != nil ||
			(r.Checksum != "" && s.byChecksum[r.Checksum] != nil) {
			log.Warn("skipping duplicate entry", "entry", r.UUID)
			continue
		}
		if ok, _ := pkg.CheckFileExist(filepath.Join(dir, r.UUID.String())); !ok {
			log.Debug("skipping entry without directory", "entry", r.UUID)
			continue
		}
		seen[r.UUID] = true
		name := ""
		if r.Name != nil {
			name = *r.Name
		}
		c.entries = append(c.entries, newEntry(r.UUID, name, r.Date, r.Checksum))
	}

	if c.Kind == KindCampaign && len(c.entries) == 0 {
		log.Debug("dropping empty campaign")
		return
	}
	s.addCollectionLocked(c)
}

// =========================
// Save
// =========================

func (s *Store) saveIndexLocked() error {
	idx := indexRecord{Campaigns: []campaignRecord{}}
	for _, c := range s.collections {
		m := c.meta.Load()
		if c.Kind == KindCampaign {
			idx.Campaigns = append(idx.Campaigns, campaignRecord{Name: m.name, Date: m.date, LastPlayed: m.lastPlayed, UUID: c.UUID})
		} else {
			idx.Folders = append(idx.Folders, folderRecord{Name: m.name, LastPlayed: m.lastPlayed, UUID: c.UUID})
		}
	}
	return writeJSON(filepath.Join(s.dir, indexFileName), filepath.Join(s.dir, indexBackupName), idx)
}

func (s *Store) saveCollectionLocked(c *Collection) error {
	rec := entriesRecord{Entries: make([]entryRecord, 0, len(c.entries))}
	for _, e := range c.entries {
		m := e.meta.Load()
		r := entryRecord{Date: m.date, Checksum: m.checksum, UUID: e.UUID}
		if m.name != "" {
			name := m.name
			r.Name = &name
		}
		rec.Entries = append(rec.Entries, r)
	}
	dir := s.collectionDir(c)
	return writeJSON(filepath.Join(dir, c.metadataFile()), filepath.Join(dir, c.backupFile()), rec)
}

// saveLocked writes the index and the given collections. Collections
// that are no longer part of the store are skipped.
func (s *Store) saveLocked(changed ...*Collection) error {
	for _, c := range changed {
		if s.byUUID[c.UUID] != c {
			continue
		}
		if err := s.saveCollectionLocked(c); err != nil {
			return err
		}
	}
	return s.saveIndexLocked()
}

// Save writes every metadata file of the store.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.saveLocked(s.collections...)
	if err != nil {
		s.log.Error("saving store failed", "err", err)
	}
	return err
}
