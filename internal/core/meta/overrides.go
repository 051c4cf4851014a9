package meta

import (
	"math/bits"
	"sync"
)

// OverrideSet is a bitset over the property ordinals of one class.
type OverrideSet struct {
	class *Class
	words []uint64
}

func newOverrideSet(c *Class) *OverrideSet {
	return &OverrideSet{class: c, words: make([]uint64, (len(c.props)+63)/64)}
}

func (s *OverrideSet) Class() *Class { return s.class }

func (s *OverrideSet) Has(ordinal int) bool {
	if ordinal < 0 || ordinal/64 >= len(s.words) {
		return false
	}
	return s.words[ordinal/64]&(1<<(ordinal%64)) != 0
}

func (s *OverrideSet) set(ordinal int) {
	s.words[ordinal/64] |= 1 << (ordinal % 64)
}

func (s *OverrideSet) unset(ordinal int) {
	s.words[ordinal/64] &^= 1 << (ordinal % 64)
}

func (s *OverrideSet) Count() int {
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Names lists overridden property names in ordinal order.
func (s *OverrideSet) Names() []string {
	var names []string
	for _, p := range s.class.props {
		if s.Has(p.ordinal) {
			names = append(names, p.name)
		}
	}
	return names
}

func (s *OverrideSet) clone() *OverrideSet {
	return &OverrideSet{class: s.class, words: append([]uint64(nil), s.words...)}
}

// OverrideTable records, per object instance, which properties diverge from
// the prototype the object was instantiated from. Objects are keyed by
// identity, so they must be pointers. The table is shared by every archiver
// and world built on it and is safe for concurrent use.
type OverrideTable struct {
	mu   sync.RWMutex
	sets map[Object]*OverrideSet
}

func NewOverrideTable() *OverrideTable {
	return &OverrideTable{sets: make(map[Object]*OverrideSet)}
}

func (t *OverrideTable) Set(obj Object, p *Property) {
	if obj == nil || p == nil || p.owner == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sets[obj]
	if !ok || s.class != p.owner {
		s = newOverrideSet(p.owner)
		t.sets[obj] = s
	}
	s.set(p.ordinal)
}

// SetByName marks the property called name on obj. Unknown names are
// ignored and reported as false.
func (t *OverrideTable) SetByName(obj Object, c *Class, name string) bool {
	p := c.Property(name)
	if p == nil {
		return false
	}
	t.Set(obj, p)
	return true
}

func (t *OverrideTable) Unset(obj Object, p *Property) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sets[obj]
	if !ok || s.class != p.owner {
		return
	}
	s.unset(p.ordinal)
	if s.Count() == 0 {
		delete(t.sets, obj)
	}
}

func (t *OverrideTable) Has(obj Object, p *Property) bool {
	if obj == nil || p == nil {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sets[obj]
	return ok && s.class == p.owner && s.Has(p.ordinal)
}

// Get returns a copy of the override set of obj, or nil.
func (t *OverrideTable) Get(obj Object) *OverrideSet {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.sets[obj]; ok {
		return s.clone()
	}
	return nil
}

// Names lists the overridden property names of obj.
func (t *OverrideTable) Names(obj Object) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.sets[obj]; ok {
		return s.Names()
	}
	return nil
}

// Replace swaps the overrides of obj for the named properties of c in one
// step. Unknown names are returned.
func (t *OverrideTable) Replace(obj Object, c *Class, names []string) (unknown []string) {
	s := newOverrideSet(c)
	for _, name := range names {
		p := c.Property(name)
		if p == nil {
			unknown = append(unknown, name)
			continue
		}
		s.set(p.ordinal)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if s.Count() == 0 {
		delete(t.sets, obj)
	} else {
		t.sets[obj] = s
	}
	return unknown
}

// Clear drops every override recorded for obj.
func (t *OverrideTable) Clear(obj Object) {
	t.mu.Lock()
	delete(t.sets, obj)
	t.mu.Unlock()
}

func (t *OverrideTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sets)
}
