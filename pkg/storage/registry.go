package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/dzjyyds666/pdxu/pkg/game"
	"github.com/dzjyyds666/pdxu/pkg/melter"
)

// RegistryOptions configures the stores a registry opens. Each game gets
// the directory <Root>/<game id>.
type RegistryOptions struct {
	Root        string
	Games       []*game.Game
	Melter      func(g *game.Game) melter.Melter
	Guard       *MemoryGuard
	Thumbnailer Thumbnailer
	Indent      string
	Logger      *slog.Logger
}

// Registry owns the stores of all enabled games together with the
// executor, event bus and selection they share.
type Registry struct {
	Executor  *Executor
	Bus       *Bus
	Selection *Selection

	stores map[string]*Store
}

func OpenRegistry(opts RegistryOptions) (*Registry, error) {
	bus := NewBus()
	r := &Registry{
		Executor:  NewExecutor(0),
		Bus:       bus,
		Selection: NewSelection(bus),
		stores:    make(map[string]*Store, len(opts.Games)),
	}
	for _, g := range opts.Games {
		var m melter.Melter
		if opts.Melter != nil {
			m = opts.Melter(g)
		}
		s, err := Open(filepath.Join(opts.Root, g.ID), g, Options{
			Melter:      m,
			Executor:    r.Executor,
			Bus:         r.Bus,
			Selection:   r.Selection,
			Guard:       opts.Guard,
			Thumbnailer: opts.Thumbnailer,
			Indent:      opts.Indent,
			Logger:      opts.Logger,
		})
		if err != nil {
			r.Executor.Close()
			return nil, fmt.Errorf("open %s store: %w", g.ID, err)
		}
		r.stores[g.ID] = s
	}
	return r, nil
}

// Store returns the store of the game with the given id.
func (r *Registry) Store(id string) (*Store, error) {
	s, ok := r.stores[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", game.ErrUnknownGame, id)
	}
	return s, nil
}

// Stores returns every store ordered by game id.
func (r *Registry) Stores() []*Store {
	out := make([]*Store, 0, len(r.stores))
	for _, s := range r.stores {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].game.ID < out[j].game.ID })
	return out
}

// Close waits for pending loads, then saves every store.
func (r *Registry) Close() error {
	r.Executor.Close()
	var errs []error
	for _, s := range r.Stores() {
		errs = append(errs, s.Save())
	}
	return errors.Join(errs...)
}
