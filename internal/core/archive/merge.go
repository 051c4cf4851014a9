package archive

import (
	"bytes"
	"fmt"

	"github.com/zeusync/metacore/internal/core/meta"
	"github.com/zeusync/metacore/pkg/bytebuffer"
)

// MergePolicy decides, property by property, which side of a merge wins.
type MergePolicy uint8

const (
	// AcceptSource copies every source value into dest.
	AcceptSource MergePolicy = iota
	// AcceptTarget copies every dest value back into source.
	AcceptTarget
	// AcceptMerge copies source values into dest except where dest carries
	// an override.
	AcceptMerge
)

func (m MergePolicy) String() string {
	switch m {
	case AcceptSource:
		return "AcceptSource"
	case AcceptTarget:
		return "AcceptTarget"
	case AcceptMerge:
		return "AcceptMerge"
	default:
		return fmt.Sprintf("MergePolicy(%d)", uint8(m))
	}
}

func (a *ObjectArchiver) sameClass(source, dest meta.Object) (*meta.Class, error) {
	sc, err := a.registry.ClassOf(source)
	if err != nil {
		return nil, err
	}
	dc, err := a.registry.ClassOf(dest)
	if err != nil {
		return nil, err
	}
	if sc != dc {
		return nil, fmt.Errorf("%w: %s and %s", ErrTypeMismatchOnMerge, sc.Name(), dc.Name())
	}
	return sc, nil
}

// ownedObject reports whether p holds a nested object its owner is
// responsible for.
func ownedObject(p *meta.Property) bool {
	return p.Category() == meta.CategoryObject && p.Ownership() == meta.Owned
}

// nestedPair returns the nested objects of p on both sides when both are set
// and share a class.
func (a *ObjectArchiver) nestedPair(source, dest meta.Object, p *meta.Property) (meta.Object, meta.Object, *meta.Class, bool) {
	sv, err := p.Get(source)
	if err != nil || sv == nil {
		return nil, nil, nil, false
	}
	dv, err := p.Get(dest)
	if err != nil || dv == nil {
		return nil, nil, nil, false
	}
	c, err := a.sameClass(sv, dv)
	if err != nil {
		return nil, nil, nil, false
	}
	return sv, dv, c, true
}

// Merge reconciles source and dest, which must share a class, under policy.
// Nested owned objects are merged property by property.
func (a *ObjectArchiver) Merge(source, dest meta.Object, policy MergePolicy) error {
	class, err := a.sameClass(source, dest)
	if err != nil {
		return err
	}
	return a.merge(source, dest, class, policy)
}

func (a *ObjectArchiver) merge(source, dest meta.Object, class *meta.Class, policy MergePolicy) error {
	for _, p := range class.Properties() {
		if p.Transient() {
			continue
		}
		if policy == AcceptMerge && a.overrides.Has(dest, p) {
			continue
		}
		if ownedObject(p) {
			if sv, dv, c, ok := a.nestedPair(source, dest, p); ok {
				if err := a.merge(sv, dv, c, policy); err != nil {
					return err
				}
				continue
			}
		}
		from, to := source, dest
		if policy == AcceptTarget {
			from, to = dest, source
		}
		if err := a.CopyProperty(from, to, p); err != nil {
			return err
		}
	}
	return nil
}

// CopyProperty copies the value of p from src to dst. Owned nested objects
// are cloned, references are shared.
func (a *ObjectArchiver) CopyProperty(src, dst meta.Object, p *meta.Property) error {
	if err := a.copyProperty(src, dst, p); err != nil {
		return &PropertyError{Class: p.Owner().Name(), Property: p.Name(), Err: err}
	}
	return nil
}

func (a *ObjectArchiver) copyValue(p *meta.Property, v any) (any, error) {
	if v == nil || p.Element().Category != meta.CategoryObject || p.Ownership() != meta.Owned {
		return v, nil
	}
	return a.Clone(v)
}

func (a *ObjectArchiver) copyProperty(src, dst meta.Object, p *meta.Property) error {
	switch p.Category() {
	case meta.CategoryArray:
		n, err := p.Len(src)
		if err != nil {
			return err
		}
		vals := make([]any, n)
		for i := range vals {
			v, err := p.Index(src, i)
			if err == nil {
				v, err = a.copyValue(p, v)
			}
			if err != nil {
				a.discard(p, vals)
				return err
			}
			vals[i] = v
		}
		return a.storeArray(dst, p, vals)
	case meta.CategoryMap:
		keys, err := p.Keys(src)
		if err != nil {
			return err
		}
		vals := make([]any, len(keys))
		for i, k := range keys {
			v, _, err := p.Lookup(src, k)
			if err == nil {
				v, err = a.copyValue(p, v)
			}
			if err != nil {
				a.discard(p, vals)
				return err
			}
			vals[i] = v
		}
		return a.storeMap(dst, p, keys, vals)
	default:
		v, err := p.Get(src)
		if err != nil {
			return err
		}
		old, err := p.Get(dst)
		if err != nil {
			return err
		}
		if v, err = a.copyValue(p, v); err != nil {
			return err
		}
		if err = p.Set(dst, v); err != nil {
			return err
		}
		if ownedObject(p) && old != nil && old != v {
			a.destroy(old)
		}
		return nil
	}
}

// RecordAllPropertyOverrides flags every property of dest whose value
// differs from source. Nested owned objects are compared property by
// property.
func (a *ObjectArchiver) RecordAllPropertyOverrides(source, dest meta.Object) error {
	class, err := a.sameClass(source, dest)
	if err != nil {
		return err
	}
	return a.recordOverrides(source, dest, class)
}

func (a *ObjectArchiver) recordOverrides(source, dest meta.Object, class *meta.Class) error {
	for _, p := range class.Properties() {
		if p.Transient() {
			continue
		}
		if ownedObject(p) {
			if sv, dv, c, ok := a.nestedPair(source, dest, p); ok {
				if err := a.recordOverrides(sv, dv, c); err != nil {
					return err
				}
				continue
			}
		}
		equal, err := a.equalProperty(source, dest, p)
		if err != nil {
			return &PropertyError{Class: class.Name(), Property: p.Name(), Err: err}
		}
		if !equal {
			a.overrides.Set(dest, p)
		}
	}
	return nil
}

func (a *ObjectArchiver) equalProperty(x, y meta.Object, p *meta.Property) (bool, error) {
	if !p.Category().IsContainer() && !ownedObject(p) {
		xv, err := p.Get(x)
		if err != nil {
			return false, err
		}
		yv, err := p.Get(y)
		if err != nil {
			return false, err
		}
		return xv == yv, nil
	}

	xb := bytebuffer.Acquire()
	defer bytebuffer.Release(xb)
	yb := bytebuffer.Acquire()
	defer bytebuffer.Release(yb)
	if err := a.writePayload(xb, x, p); err != nil {
		return false, err
	}
	if err := a.writePayload(yb, y, p); err != nil {
		return false, err
	}
	return bytes.Equal(xb.Bytes(), yb.Bytes()), nil
}

// ClearAllPropertyOverrides drops the overrides of obj and of every object it
// owns.
func (a *ObjectArchiver) ClearAllPropertyOverrides(obj meta.Object) {
	if meta.IsNil(obj) {
		return
	}
	a.overrides.Clear(obj)
	a.registry.WalkOwned(obj, a.ClearAllPropertyOverrides)
}

func (a *ObjectArchiver) property(obj meta.Object, name string) (*meta.Property, error) {
	class, err := a.registry.ClassOf(obj)
	if err != nil {
		return nil, err
	}
	p := class.Property(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s.%s", meta.ErrPropertyNotFound, class.Name(), name)
	}
	return p, nil
}

// SetOverride flags the named property of obj as locally changed.
func (a *ObjectArchiver) SetOverride(obj meta.Object, name string) error {
	p, err := a.property(obj, name)
	if err != nil {
		return err
	}
	a.overrides.Set(obj, p)
	return nil
}

func (a *ObjectArchiver) ClearOverride(obj meta.Object, name string) error {
	p, err := a.property(obj, name)
	if err != nil {
		return err
	}
	a.overrides.Unset(obj, p)
	return nil
}

func (a *ObjectArchiver) IsOverridden(obj meta.Object, name string) bool {
	p, err := a.property(obj, name)
	return err == nil && a.overrides.Has(obj, p)
}
