// Package inspect renders reflected objects as generic maps and JSON for
// tooling. The output is informational and is never read back.
package inspect

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/zeusync/metacore/internal/core/asset"
	"github.com/zeusync/metacore/internal/core/meta"
)

// ClassKey holds the class name in every rendered object.
const ClassKey = "$class"

// EntityResolver maps a handle to the identity of a live entity.
type EntityResolver func(meta.EntityHandle) (uuid.UUID, bool)

type Option func(*Inspector)

// WithEntities renders entity references as identities instead of raw
// handles.
func WithEntities(fn EntityResolver) Option { return func(i *Inspector) { i.entities = fn } }

// WithHidden includes properties flagged hidden.
func WithHidden() Option { return func(i *Inspector) { i.hidden = true } }

type Inspector struct {
	registry *meta.Registry
	entities EntityResolver
	hidden   bool
}

func New(registry *meta.Registry, opts ...Option) *Inspector {
	i := &Inspector{registry: registry}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ToMap renders obj as property name to value, recursing into nested
// objects and containers.
func (i *Inspector) ToMap(obj meta.Object) (map[string]any, error) {
	class, err := i.registry.ClassOf(obj)
	if err != nil {
		return nil, err
	}
	out := map[string]any{ClassKey: class.Name()}
	for _, p := range class.Properties() {
		if p.Has(meta.FlagHidden) && !i.hidden {
			continue
		}
		v, err := i.property(obj, p)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", class.Name(), p.Name(), err)
		}
		out[p.Name()] = v
	}
	return out, nil
}

// JSON renders obj with ToMap and indents the result.
func (i *Inspector) JSON(obj meta.Object) ([]byte, error) {
	m, err := i.ToMap(obj)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(m, "", "  ")
}

func (i *Inspector) property(obj meta.Object, p *meta.Property) (any, error) {
	switch p.Category() {
	case meta.CategoryArray:
		n, err := p.Len(obj)
		if err != nil {
			return nil, err
		}
		out := make([]any, n)
		for k := range n {
			v, err := p.Index(obj, k)
			if err != nil {
				return nil, err
			}
			if out[k], err = i.value(p.Element().Category, v); err != nil {
				return nil, err
			}
		}
		return out, nil
	case meta.CategoryMap:
		keys, err := p.Keys(obj)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(keys))
		for _, key := range keys {
			v, _, err := p.Lookup(obj, key)
			if err != nil {
				return nil, err
			}
			if out[fmt.Sprint(key)], err = i.value(p.Element().Category, v); err != nil {
				return nil, err
			}
		}
		return out, nil
	default:
		v, err := p.Get(obj)
		if err != nil {
			return nil, err
		}
		return i.value(p.Category(), v)
	}
}

func (i *Inspector) value(c meta.Category, v any) (any, error) {
	switch c {
	case meta.CategoryObject:
		if meta.IsNil(v) {
			return nil, nil
		}
		return i.ToMap(v)
	case meta.CategoryAsset:
		if meta.IsNil(v) {
			return nil, nil
		}
		x, ok := asset.As(v)
		if !ok {
			return nil, fmt.Errorf("%w: %T", asset.ErrNotAnAsset, v)
		}
		return map[string]any{"id": x.AssetID().String(), "name": x.AssetName()}, nil
	case meta.CategoryEntity:
		h, _ := v.(meta.EntityHandle)
		if !h.Valid() {
			return nil, nil
		}
		if i.entities != nil {
			if id, ok := i.entities(h); ok {
				return id.String(), nil
			}
			return nil, nil
		}
		return fmt.Sprintf("%d:%d", h.Index, h.Generation), nil
	case meta.CategoryUUID:
		if id, ok := v.(uuid.UUID); ok {
			return id.String(), nil
		}
		return v, nil
	default:
		return v, nil
	}
}
