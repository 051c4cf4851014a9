package asset

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/zeusync/metacore/internal/core/meta"
)

type entry struct {
	class *meta.Class
	asset Asset
}

// Table maps asset UUIDs to live assets and keeps one default instance per
// asset class for unresolved references.
type Table struct {
	mu       sync.RWMutex
	registry *meta.Registry
	byID     map[uuid.UUID]entry
	defaults map[*meta.Class]Asset
}

func NewTable(registry *meta.Registry) *Table {
	return &Table{
		registry: registry,
		byID:     make(map[uuid.UUID]entry),
		defaults: make(map[*meta.Class]Asset),
	}
}

func (t *Table) classOf(a Asset) (*meta.Class, error) {
	if a == nil {
		return nil, ErrNotAnAsset
	}
	return t.registry.ClassOf(a)
}

// Add registers a under its UUID, replacing any previous asset with the same
// UUID. Assets without a UUID get a fresh one.
func (t *Table) Add(a Asset) error {
	c, err := t.classOf(a)
	if err != nil {
		return err
	}
	if a.AssetID() == uuid.Nil {
		a.SetAssetID(uuid.New())
	}
	t.mu.Lock()
	t.byID[a.AssetID()] = entry{class: c, asset: a}
	t.mu.Unlock()
	return nil
}

func (t *Table) Remove(id uuid.UUID) {
	t.mu.Lock()
	delete(t.byID, id)
	t.mu.Unlock()
}

func (t *Table) Get(id uuid.UUID) (Asset, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.byID[id]
	return e.asset, ok
}

// Resolve returns the asset with the given UUID if it is of class c or a
// class embedding c.
func (t *Table) Resolve(c *meta.Class, id uuid.UUID) (Asset, error) {
	t.mu.RLock()
	e, ok := t.byID[id]
	t.mu.RUnlock()
	if !ok || id == uuid.Nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if c != nil && !e.class.IsA(c) {
		return nil, fmt.Errorf("%w: %s is a %s, not a %s", ErrClassMismatch, id, e.class.Name(), c.Name())
	}
	return e.asset, nil
}

// SetDefault makes a the fallback instance of class c.
func (t *Table) SetDefault(c *meta.Class, a Asset) {
	t.mu.Lock()
	t.defaults[c] = a
	t.mu.Unlock()
}

// Default returns the fallback instance of class c, constructing one on
// first use. It returns nil only when c does not describe an asset.
func (t *Table) Default(c *meta.Class) Asset {
	t.mu.RLock()
	a, ok := t.defaults[c]
	t.mu.RUnlock()
	if ok {
		return a
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if a, ok = t.defaults[c]; ok {
		return a
	}
	a, ok = As(c.Construct())
	if !ok {
		return nil
	}
	a.SetAssetName("Default" + c.Name())
	t.defaults[c] = a
	return a
}

// ByClass lists the assets of class c, or of classes embedding c, sorted by
// name.
func (t *Table) ByClass(c *meta.Class) []Asset {
	t.mu.RLock()
	var out []Asset
	for _, e := range t.byID {
		if e.class.IsA(c) {
			out = append(out, e.asset)
		}
	}
	t.mu.RUnlock()
	sortAssets(out)
	return out
}

// ByLoader lists the assets handled by the named loader, sorted by name.
func (t *Table) ByLoader(name string) []Asset {
	t.mu.RLock()
	var out []Asset
	for _, e := range t.byID {
		if LoaderName(e.asset) == name {
			out = append(out, e.asset)
		}
	}
	t.mu.RUnlock()
	sortAssets(out)
	return out
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

func sortAssets(as []Asset) {
	slices.SortFunc(as, func(a, b Asset) int {
		if c := strings.Compare(a.AssetName(), b.AssetName()); c != 0 {
			return c
		}
		ia, ib := a.AssetID(), b.AssetID()
		return strings.Compare(ia.String(), ib.String())
	})
}
