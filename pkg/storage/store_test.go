package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dzjyyds666/pdxu/parse/pdx"
	"github.com/dzjyyds666/pdxu/pkg/game"
	"github.com/dzjyyds666/pdxu/pkg/melter"
	"github.com/google/uuid"
	"github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/mock"
)

type mockMelter struct {
	mock.Mock
}

func (m *mockMelter) IsBinary(data []byte) bool {
	return m.Called(data).Bool(0)
}

func (m *mockMelter) Melt(path string) ([]byte, error) {
	args := m.Called(path)
	out, _ := args.Get(0).([]byte)
	return out, args.Error(1)
}

func isBinary(data []byte) bool { return bytes.HasPrefix(data, []byte("EU4bin")) }

func newMelter() *mockMelter {
	m := &mockMelter{}
	m.On("IsBinary", mock.MatchedBy(isBinary)).Return(true)
	m.On("IsBinary", mock.MatchedBy(func(data []byte) bool { return !isBinary(data) })).Return(false)
	return m
}

func eu4Save(campaign uuid.UUID, date, tag string) []byte {
	return []byte(fmt.Sprintf("EU4txt\ndate=%s\nplayer=\"%s\"\ncampaign_id=\"%s\"\n", date, tag, campaign))
}

func writeSave(dir, name string, data []byte) string {
	path := filepath.Join(dir, name)
	convey.So(os.WriteFile(path, data, 0o644), convey.ShouldBeNil)
	return path
}

func openStore(dir string, m melter.Melter, bus *Bus) *Store {
	s, err := Open(dir, game.EU4, Options{Melter: m, Bus: bus, Thumbnailer: Swatch{Size: 4}})
	convey.So(err, convey.ShouldBeNil)
	return s
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestImport(t *testing.T) {
	convey.Convey("import stores the file under campaign and entry uuids", t, func() {
		root, src := t.TempDir(), t.TempDir()
		s := openStore(root, newMelter(), nil)
		defer s.Close()

		campaign := uuid.New()
		data := eu4Save(campaign, "1444.11.11", "FRA")
		res, err := s.Import(writeSave(src, "autosave.eu4", data))
		convey.So(err, convey.ShouldBeNil)
		convey.So(res.Duplicate, convey.ShouldBeFalse)
		convey.So(res.Collection.UUID, convey.ShouldEqual, campaign)
		convey.So(res.Collection.Name(), convey.ShouldEqual, "FRA")
		convey.So(res.Collection.Date(), convey.ShouldEqual, "1444.11.11")
		convey.So(res.Entry.Name(), convey.ShouldEqual, "1444.11.11")
		convey.So(res.Entry.Loaded(), convey.ShouldBeTrue)

		stored := filepath.Join(root, campaign.String(), res.Entry.UUID.String(), "savegame.eu4")
		got, err := os.ReadFile(stored)
		convey.So(err, convey.ShouldBeNil)
		convey.So(got, convey.ShouldResemble, data)
		convey.So(exists(filepath.Join(root, "campaigns.json")), convey.ShouldBeTrue)
		convey.So(exists(filepath.Join(root, campaign.String(), "campaign.json")), convey.ShouldBeTrue)
		convey.So(exists(s.ThumbnailPath(res.Collection)), convey.ShouldBeTrue)

		path, err := s.SavegameFile(res.Entry)
		convey.So(err, convey.ShouldBeNil)
		convey.So(path, convey.ShouldEqual, stored)

		g, c, e := s.Selection().Current()
		convey.So(g, convey.ShouldEqual, "eu4")
		convey.So(c, convey.ShouldEqual, campaign)
		convey.So(e, convey.ShouldEqual, res.Entry.UUID)
	})

	convey.Convey("identical content is stored once", t, func() {
		root, src := t.TempDir(), t.TempDir()
		m := newMelter()
		s := openStore(root, m, nil)
		defer s.Close()

		data := eu4Save(uuid.New(), "1444.11.11", "FRA")
		first, err := s.Import(writeSave(src, "a.eu4", data))
		convey.So(err, convey.ShouldBeNil)
		second, err := s.Import(writeSave(src, "renamed copy.eu4", data))
		convey.So(err, convey.ShouldBeNil)

		convey.So(second.Duplicate, convey.ShouldBeTrue)
		convey.So(second.Entry, convey.ShouldEqual, first.Entry)
		convey.So(len(s.Collections()), convey.ShouldEqual, 1)
		convey.So(len(s.Entries(first.Collection)), convey.ShouldEqual, 1)
		m.AssertNumberOfCalls(t, "IsBinary", 1)

		g, c, e := s.Selection().Current()
		convey.So(g, convey.ShouldEqual, "eu4")
		convey.So(c, convey.ShouldEqual, first.Collection.UUID)
		convey.So(e, convey.ShouldEqual, first.Entry.UUID)

		dirs, err := os.ReadDir(filepath.Join(root, first.Collection.UUID.String()))
		convey.So(err, convey.ShouldBeNil)
		n := 0
		for _, d := range dirs {
			if d.IsDir() {
				n++
			}
		}
		convey.So(n, convey.ShouldEqual, 1)
	})

	convey.Convey("binary saves are melted first", t, func() {
		root, src := t.TempDir(), t.TempDir()
		m := newMelter()
		path := writeSave(src, "ironman.eu4", []byte("EU4bin\x00\x01\x02"))
		m.On("Melt", path).Return(eu4Save(uuid.New(), "1500.1.1", "CAS"), nil)
		s := openStore(root, m, nil)
		defer s.Close()

		res, err := s.Import(path)
		convey.So(err, convey.ShouldBeNil)
		convey.So(res.Entry.Info().Melted, convey.ShouldBeTrue)
		convey.So(res.Entry.Info().Tag, convey.ShouldEqual, "CAS")
		m.AssertExpectations(t)
	})

	convey.Convey("failures leave the store untouched", t, func() {
		root, src := t.TempDir(), t.TempDir()
		m := newMelter()
		bad := writeSave(src, "broken.eu4", []byte("EU4bin\x00"))
		m.On("Melt", bad).Return(nil, melter.ErrMeltFailed)
		s := openStore(root, m, nil)
		defer s.Close()

		_, err := s.Import(bad)
		var ie *ImportError
		convey.So(errors.As(err, &ie), convey.ShouldBeTrue)
		convey.So(ie.Path, convey.ShouldEqual, bad)
		convey.So(errors.Is(err, melter.ErrMeltFailed), convey.ShouldBeTrue)

		_, err = s.Import(writeSave(src, "garbage.eu4", []byte("EU4txt\ndate={ 1 2 ")))
		var pe *pdx.ParseError
		convey.So(errors.As(err, &pe), convey.ShouldBeTrue)

		_, err = s.Import(filepath.Join(src, "missing.eu4"))
		convey.So(errors.As(err, &ie), convey.ShouldBeTrue)

		convey.So(len(s.Collections()), convey.ShouldEqual, 0)
		entries, _ := os.ReadDir(root)
		convey.So(len(entries), convey.ShouldEqual, 0)
	})

	convey.Convey("low memory aborts before copying", t, func() {
		root, src := t.TempDir(), t.TempDir()
		s, err := Open(root, game.EU4, Options{Melter: newMelter(), Guard: &MemoryGuard{Limit: 1, Factor: 1}})
		convey.So(err, convey.ShouldBeNil)
		defer s.Close()

		_, err = s.Import(writeSave(src, "a.eu4", eu4Save(uuid.New(), "1444.11.11", "FRA")))
		convey.So(errors.Is(err, ErrLowMemory), convey.ShouldBeTrue)
		convey.So(len(s.Collections()), convey.ShouldEqual, 0)
		entries, _ := os.ReadDir(root)
		convey.So(len(entries), convey.ShouldEqual, 0)
	})

	convey.Convey("uuids are unique across many imports", t, func() {
		root, src := t.TempDir(), t.TempDir()
		s := openStore(root, newMelter(), nil)
		defer s.Close()

		shared := uuid.New()
		seen := map[uuid.UUID]bool{}
		for i := 0; i < 20; i++ {
			campaign := shared
			if i%2 == 0 {
				campaign = uuid.New()
			}
			res, err := s.Import(writeSave(src, fmt.Sprintf("%d.eu4", i), eu4Save(campaign, fmt.Sprintf("1444.11.%d", i+1), "FRA")))
			convey.So(err, convey.ShouldBeNil)
			convey.So(seen[res.Entry.UUID], convey.ShouldBeFalse)
			seen[res.Entry.UUID] = true
		}
		collections := s.Collections()
		convey.So(len(collections), convey.ShouldEqual, 11)
		for _, c := range collections {
			convey.So(seen[c.UUID], convey.ShouldBeFalse)
			seen[c.UUID] = true
		}
		c, err := s.Collection(shared)
		convey.So(err, convey.ShouldBeNil)
		convey.So(c.Date(), convey.ShouldEqual, "1444.11.20")
	})
}

func TestDelete(t *testing.T) {
	convey.Convey("deleting entries cascades to the collection", t, func() {
		root, src := t.TempDir(), t.TempDir()
		bus := NewBus()
		events, cancel := bus.Subscribe(64)
		defer cancel()
		s := openStore(root, newMelter(), bus)
		defer s.Close()

		campaign := uuid.New()
		a, err := s.Import(writeSave(src, "a.eu4", eu4Save(campaign, "1444.11.11", "FRA")))
		convey.So(err, convey.ShouldBeNil)
		b, err := s.Import(writeSave(src, "b.eu4", eu4Save(campaign, "1450.1.1", "FRA")))
		convey.So(err, convey.ShouldBeNil)
		c := a.Collection

		convey.So(s.Select(a.Entry), convey.ShouldBeNil)
		convey.So(s.DeleteEntry(a.Entry), convey.ShouldBeNil)
		convey.So(s.Contains(a.Entry), convey.ShouldBeFalse)
		convey.So(exists(filepath.Join(root, campaign.String(), a.Entry.UUID.String())), convey.ShouldBeFalse)
		convey.So(len(s.Entries(c)), convey.ShouldEqual, 1)
		_, err = s.Collection(campaign)
		convey.So(err, convey.ShouldBeNil)
		g, _, _ := s.Selection().Current()
		convey.So(g, convey.ShouldBeEmpty)

		convey.So(s.DeleteEntry(b.Entry), convey.ShouldBeNil)
		_, err = s.Collection(campaign)
		convey.So(IsNotFound(err), convey.ShouldBeTrue)
		convey.So(exists(filepath.Join(root, campaign.String())), convey.ShouldBeFalse)

		err = s.DeleteEntry(b.Entry)
		convey.So(IsNotFound(err), convey.ShouldBeTrue)

		removed := false
		for len(events) > 0 {
			if ev := <-events; ev.Type == EventCollectionRemoved && ev.Collection == campaign {
				removed = true
			}
		}
		convey.So(removed, convey.ShouldBeTrue)
	})

	convey.Convey("deleting the selected collection clears the selection", t, func() {
		root, src := t.TempDir(), t.TempDir()
		s := openStore(root, newMelter(), nil)
		defer s.Close()

		res, err := s.Import(writeSave(src, "a.eu4", eu4Save(uuid.New(), "1444.11.11", "FRA")))
		convey.So(err, convey.ShouldBeNil)
		s.Selection().Select("eu4", res.Collection.UUID, uuid.Nil)
		convey.So(s.DeleteCollection(res.Collection), convey.ShouldBeNil)
		_, c, _ := s.Selection().Current()
		convey.So(c, convey.ShouldEqual, uuid.Nil)
		convey.So(s.Contains(res.Entry), convey.ShouldBeFalse)
		convey.So(len(s.Collections()), convey.ShouldEqual, 0)
	})

	convey.Convey("selection in another game is kept", t, func() {
		root, src := t.TempDir(), t.TempDir()
		s := openStore(root, newMelter(), nil)
		defer s.Close()

		res, err := s.Import(writeSave(src, "a.eu4", eu4Save(uuid.New(), "1444.11.11", "FRA")))
		convey.So(err, convey.ShouldBeNil)
		s.Selection().Select("hoi4", res.Collection.UUID, res.Entry.UUID)
		convey.So(s.DeleteEntry(res.Entry), convey.ShouldBeNil)
		g, _, _ := s.Selection().Current()
		convey.So(g, convey.ShouldEqual, "hoi4")
	})
}

func TestMove(t *testing.T) {
	convey.Convey("moving the last entry removes the source", t, func() {
		root, src := t.TempDir(), t.TempDir()
		s := openStore(root, newMelter(), nil)
		defer s.Close()

		res, err := s.Import(writeSave(src, "a.eu4", eu4Save(uuid.New(), "1444.11.11", "FRA")))
		convey.So(err, convey.ShouldBeNil)
		folder, err := s.AddFolder("favourites")
		convey.So(err, convey.ShouldBeNil)
		convey.So(folder.Kind, convey.ShouldEqual, KindFolder)

		convey.So(s.Move(folder, res.Entry), convey.ShouldBeNil)
		owner, err := s.CollectionOf(res.Entry)
		convey.So(err, convey.ShouldBeNil)
		convey.So(owner, convey.ShouldEqual, folder)
		convey.So(exists(filepath.Join(root, folder.UUID.String(), res.Entry.UUID.String(), "savegame.eu4")), convey.ShouldBeTrue)
		convey.So(exists(filepath.Join(root, res.Collection.UUID.String())), convey.ShouldBeFalse)
		convey.So(s.Collections(), convey.ShouldResemble, []*Collection{folder})
		convey.So(exists(filepath.Join(root, folder.UUID.String(), "folder.json")), convey.ShouldBeTrue)

		convey.So(s.Move(folder, res.Entry), convey.ShouldEqual, ErrSameCollection)
	})

	convey.Convey("a failed copy changes nothing", t, func() {
		root, src := t.TempDir(), t.TempDir()
		s := openStore(root, newMelter(), nil)
		defer s.Close()

		res, err := s.Import(writeSave(src, "a.eu4", eu4Save(uuid.New(), "1444.11.11", "FRA")))
		convey.So(err, convey.ShouldBeNil)
		folder, err := s.AddFolder("blocked")
		convey.So(err, convey.ShouldBeNil)
		blocker := filepath.Join(root, folder.UUID.String(), res.Entry.UUID.String())
		convey.So(os.MkdirAll(blocker, 0o755), convey.ShouldBeNil)

		err = s.Move(folder, res.Entry)
		var se *StorageError
		convey.So(errors.As(err, &se), convey.ShouldBeTrue)
		owner, err := s.CollectionOf(res.Entry)
		convey.So(err, convey.ShouldBeNil)
		convey.So(owner, convey.ShouldEqual, res.Collection)
		convey.So(len(s.Entries(folder)), convey.ShouldEqual, 0)
		convey.So(exists(filepath.Join(root, res.Collection.UUID.String(), res.Entry.UUID.String(), "savegame.eu4")), convey.ShouldBeTrue)
	})
}

func TestPersistence(t *testing.T) {
	convey.Convey("reopening restores collections and skips missing directories", t, func() {
		root, src := t.TempDir(), t.TempDir()
		s := openStore(root, newMelter(), nil)

		kept, gone := uuid.New(), uuid.New()
		a, err := s.Import(writeSave(src, "a.eu4", eu4Save(kept, "1444.11.11", "FRA")))
		convey.So(err, convey.ShouldBeNil)
		b, err := s.Import(writeSave(src, "b.eu4", eu4Save(kept, "1445.1.1", "FRA")))
		convey.So(err, convey.ShouldBeNil)
		_, err = s.Import(writeSave(src, "c.eu4", eu4Save(gone, "1444.11.11", "ENG")))
		convey.So(err, convey.ShouldBeNil)
		convey.So(s.RenameEntry(b.Entry, "before war"), convey.ShouldBeNil)
		folder, err := s.AddFolder("empty folder")
		convey.So(err, convey.ShouldBeNil)
		convey.So(s.Close(), convey.ShouldBeNil)

		convey.So(exists(filepath.Join(root, "campaigns_old.json")), convey.ShouldBeTrue)
		convey.So(exists(filepath.Join(root, kept.String(), "campaign_old.json")), convey.ShouldBeTrue)

		convey.So(os.RemoveAll(filepath.Join(root, kept.String(), a.Entry.UUID.String())), convey.ShouldBeNil)
		convey.So(os.RemoveAll(filepath.Join(root, gone.String())), convey.ShouldBeNil)

		again := openStore(root, newMelter(), nil)
		defer again.Close()
		c, err := again.Collection(kept)
		convey.So(err, convey.ShouldBeNil)
		entries := again.Entries(c)
		convey.So(len(entries), convey.ShouldEqual, 1)
		convey.So(entries[0].UUID, convey.ShouldEqual, b.Entry.UUID)
		convey.So(entries[0].Name(), convey.ShouldEqual, "before war")
		convey.So(entries[0].Checksum(), convey.ShouldEqual, b.Entry.Checksum())
		convey.So(entries[0].Loaded(), convey.ShouldBeFalse)

		_, err = again.Collection(gone)
		convey.So(IsNotFound(err), convey.ShouldBeTrue)
		f, err := again.Collection(folder.UUID)
		convey.So(err, convey.ShouldBeNil)
		convey.So(f.Name(), convey.ShouldEqual, "empty folder")

		again.LoadAsync(entries[0])
		again.Flush()
		convey.So(entries[0].Loaded(), convey.ShouldBeTrue)
		convey.So(entries[0].Info().Date.String(), convey.ShouldEqual, "1445.1.1")
	})

	convey.Convey("index without folders loads", t, func() {
		root := t.TempDir()
		id, entry := uuid.New(), uuid.New()
		convey.So(os.MkdirAll(filepath.Join(root, id.String(), entry.String()), 0o755), convey.ShouldBeNil)
		index := fmt.Sprintf(`{"campaigns":[{"name":"Old","date":"1444.11.11","lastPlayed":"2024-01-02T03:04:05Z","uuid":"%s"}]}`, id)
		entries := fmt.Sprintf(`{"entries":[{"name":null,"date":"1444.11.11","checksum":"abc","uuid":"%s"}]}`, entry)
		convey.So(os.WriteFile(filepath.Join(root, "campaigns.json"), []byte(index), 0o644), convey.ShouldBeNil)
		convey.So(os.WriteFile(filepath.Join(root, id.String(), "campaign.json"), []byte(entries), 0o644), convey.ShouldBeNil)

		s := openStore(root, newMelter(), nil)
		defer s.Close()
		c, err := s.Collection(id)
		convey.So(err, convey.ShouldBeNil)
		convey.So(c.LastPlayed().Year(), convey.ShouldEqual, 2024)
		e, err := s.Entry(entry)
		convey.So(err, convey.ShouldBeNil)
		convey.So(e.Name(), convey.ShouldEqual, "1444.11.11")
		convey.So(e.CustomName(), convey.ShouldBeEmpty)
	})
}

func TestLoadAsync(t *testing.T) {
	convey.Convey("concurrent loads publish one consistent info", t, func() {
		root, src := t.TempDir(), t.TempDir()
		bus := NewBus()
		events, cancel := bus.Subscribe(16)
		defer cancel()
		s := openStore(root, newMelter(), bus)
		defer s.Close()

		res, err := s.Import(writeSave(src, "a.eu4", eu4Save(uuid.New(), "1444.11.11", "FRA")))
		convey.So(err, convey.ShouldBeNil)
		res.Entry.info.Store(nil)

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.LoadAsync(res.Entry)
			}()
		}
		wg.Wait()
		s.Flush()

		info := res.Entry.Info()
		convey.So(info, convey.ShouldNotBeNil)
		convey.So(info.Tag, convey.ShouldEqual, "FRA")
		convey.So(info.Date.String(), convey.ShouldEqual, "1444.11.11")

		changed := 0
		for len(events) > 0 {
			if ev := <-events; ev.Type == EventEntryInfoChanged && ev.Entry == res.Entry.UUID {
				changed++
			}
		}
		convey.So(changed, convey.ShouldBeGreaterThanOrEqualTo, 1)
	})

	convey.Convey("a failed load leaves the entry unloaded", t, func() {
		root, src := t.TempDir(), t.TempDir()
		bus := NewBus()
		events, cancel := bus.Subscribe(16)
		defer cancel()
		s := openStore(root, newMelter(), bus)
		defer s.Close()

		res, err := s.Import(writeSave(src, "a.eu4", eu4Save(uuid.New(), "1444.11.11", "FRA")))
		convey.So(err, convey.ShouldBeNil)
		path, _ := s.SavegameFile(res.Entry)
		convey.So(os.WriteFile(path, []byte("EU4txt\n}"), 0o644), convey.ShouldBeNil)

		s.Reload(res.Entry)
		s.Flush()
		convey.So(res.Entry.Loaded(), convey.ShouldBeFalse)
		failed := false
		for len(events) > 0 {
			if ev := <-events; ev.Type == EventEntryLoadFailed {
				failed = ev.Err != nil
			}
		}
		convey.So(failed, convey.ShouldBeTrue)
	})
}

func TestEditing(t *testing.T) {
	convey.Convey("written trees replace the stored savegame", t, func() {
		root, src := t.TempDir(), t.TempDir()
		s := openStore(root, newMelter(), nil)
		defer s.Close()

		res, err := s.Import(writeSave(src, "a.eu4", eu4Save(uuid.New(), "1444.11.11", "FRA")))
		convey.So(err, convey.ShouldBeNil)
		before := res.Entry.Checksum()

		tree, err := s.Tree(res.Entry)
		convey.So(err, convey.ShouldBeNil)
		for i := range tree.Elems {
			if tree.Elems[i].KeyText() == "date" {
				tree.Elems[i].Node = pdx.NewDate(pdx.Date{Year: 1450, Month: 1, Day: 1})
			}
		}
		convey.So(s.WriteEntry(res.Entry, tree), convey.ShouldBeNil)
		s.Flush()

		convey.So(res.Entry.Checksum(), convey.ShouldNotEqual, before)
		convey.So(res.Entry.Info().Date.Year, convey.ShouldEqual, 1450)
		path, _ := s.SavegameFile(res.Entry)
		data, err := os.ReadFile(path)
		convey.So(err, convey.ShouldBeNil)
		convey.So(bytes.HasPrefix(data, []byte("EU4txt\n")), convey.ShouldBeTrue)

		// the old content is no longer a duplicate
		again, err := s.Import(writeSave(src, "b.eu4", eu4Save(res.Collection.UUID, "1444.11.11", "FRA")))
		convey.So(err, convey.ShouldBeNil)
		convey.So(again.Duplicate, convey.ShouldBeFalse)
	})
}

func TestNamesAndExport(t *testing.T) {
	convey.Convey("names, renames and export", t, func() {
		root, src := t.TempDir(), t.TempDir()
		s := openStore(root, newMelter(), nil)
		defer s.Close()

		data := eu4Save(uuid.New(), "1444.11.11", "FRA")
		res, err := s.Import(writeSave(src, "a.eu4", data))
		convey.So(err, convey.ShouldBeNil)
		convey.So(s.RenameEntry(res.Entry, "12:30 save"), convey.ShouldBeNil)
		convey.So(s.Rename(res.Collection, "France"), convey.ShouldBeNil)
		convey.So(s.EntryName(res.Entry), convey.ShouldEqual, "France (12:30 save)")
		convey.So(s.ExportFileName(res.Entry), convey.ShouldEqual, "France (12.30 save).eu4")

		dest := filepath.Join(t.TempDir(), "nested", "dir", s.ExportFileName(res.Entry))
		convey.So(s.Export(res.Entry, dest), convey.ShouldBeNil)
		got, err := os.ReadFile(dest)
		convey.So(err, convey.ShouldBeNil)
		convey.So(got, convey.ShouldResemble, data)
		st, err := os.Stat(dest)
		convey.So(err, convey.ShouldBeNil)
		convey.So(time.Since(st.ModTime()), convey.ShouldBeLessThan, time.Minute)
	})

	convey.Convey("collections are ordered by last played", t, func() {
		root, src := t.TempDir(), t.TempDir()
		s := openStore(root, newMelter(), nil)
		defer s.Close()

		a, err := s.Import(writeSave(src, "a.eu4", eu4Save(uuid.New(), "1444.11.11", "FRA")))
		convey.So(err, convey.ShouldBeNil)
		b, err := s.Import(writeSave(src, "b.eu4", eu4Save(uuid.New(), "1444.11.11", "ENG")))
		convey.So(err, convey.ShouldBeNil)
		a.Collection.update(func(m *collectionMeta) { m.lastPlayed = time.Now().Add(-time.Hour) })
		b.Collection.update(func(m *collectionMeta) { m.lastPlayed = time.Now().Add(-time.Minute) })
		convey.So(s.Collections()[0], convey.ShouldEqual, b.Collection)

		convey.So(s.Touch(a.Collection), convey.ShouldBeNil)
		convey.So(s.Collections()[0], convey.ShouldEqual, a.Collection)
	})
}

func TestRegistry(t *testing.T) {
	convey.Convey("one store per game sharing executor and selection", t, func() {
		root, src := t.TempDir(), t.TempDir()
		r, err := OpenRegistry(RegistryOptions{
			Root:   root,
			Games:  []*game.Game{game.EU4, game.HOI4},
			Melter: func(*game.Game) melter.Melter { return newMelter() },
		})
		convey.So(err, convey.ShouldBeNil)

		convey.So(len(r.Stores()), convey.ShouldEqual, 2)
		_, err = r.Store("ck3")
		convey.So(errors.Is(err, game.ErrUnknownGame), convey.ShouldBeTrue)

		eu4, err := r.Store("eu4")
		convey.So(err, convey.ShouldBeNil)
		convey.So(eu4.Dir(), convey.ShouldEqual, filepath.Join(root, "eu4"))
		convey.So(eu4.Selection(), convey.ShouldEqual, r.Selection)
		res, err := eu4.Import(writeSave(src, "a.eu4", eu4Save(uuid.New(), "1444.11.11", "FRA")))
		convey.So(err, convey.ShouldBeNil)

		convey.So(r.Close(), convey.ShouldBeNil)
		convey.So(exists(filepath.Join(root, "eu4", "campaigns.json")), convey.ShouldBeTrue)
		convey.So(exists(filepath.Join(root, "hoi4", "campaigns.json")), convey.ShouldBeTrue)
		convey.So(exists(filepath.Join(root, "eu4", res.Collection.UUID.String(), res.Entry.UUID.String())), convey.ShouldBeTrue)
	})
}
