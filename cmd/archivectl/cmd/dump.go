package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/zeusync/metacore/internal/core/archive"
	"github.com/zeusync/metacore/internal/core/asset"
	"github.com/zeusync/metacore/internal/core/inspect"
	"github.com/zeusync/metacore/internal/core/meta"
	"github.com/zeusync/metacore/internal/core/world"
	"github.com/zeusync/metacore/internal/runtime"
	"github.com/zeusync/metacore/pkg/bytebuffer"
)

const (
	formatAsset  = "asset"
	formatBulk   = "bulk"
	formatEntity = "entity"
)

// toolchain holds what dump needs to decode blobs offline.
type toolchain struct {
	registry *meta.Registry
	assets   *archive.AssetArchiver
	entities *world.Archiver
	world    *world.World
	inspect  *inspect.Inspector
}

func newToolchain() (*toolchain, error) {
	r, err := runtime.ProvideRegistry()
	if err != nil {
		return nil, err
	}
	loaders, err := runtime.ProvideLoaders()
	if err != nil {
		return nil, err
	}
	overrides := meta.NewOverrideTable()
	objs := archive.NewObjectArchiver(r, asset.NewTable(r), archive.WithOverrides(overrides))
	w := world.NewWorld(r, world.WithOverrides(overrides))
	return &toolchain{
		registry: r,
		assets:   archive.NewAssetArchiver(objs, loaders),
		entities: world.NewArchiver(objs),
		world:    w,
		inspect: inspect.New(r, inspect.WithEntities(func(h meta.EntityHandle) (uuid.UUID, bool) {
			e, ok := w.Get(h)
			if !ok {
				return uuid.Nil, false
			}
			return e.ID(), true
		})),
	}, nil
}

func NewDumpCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:     "dump [file]",
		Short:   "Decode a blob file and print it as JSON",
		Example: "archivectl dump rock.easset\narchivectl dump --format entity level.eentity",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := newToolchain()
			if err != nil {
				return err
			}
			buf := bytebuffer.New()
			if err = buf.ReadFromFile(args[0]); err != nil {
				return err
			}
			var v any
			switch format {
			case formatAsset:
				v, err = tc.asset(buf)
			case formatBulk:
				v, err = tc.bulk(buf)
			case formatEntity:
				v, err = tc.entity(buf)
			default:
				return fmt.Errorf("unknown format %q", format)
			}
			if err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), v)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatAsset, "blob layout: asset, bulk or entity")
	return cmd
}

func write(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func (tc *toolchain) asset(buf *bytebuffer.ByteBuffer) (map[string]any, error) {
	x, err := tc.assets.DeserializeFrom(buf)
	if err != nil {
		return nil, err
	}
	return tc.renderAsset(x)
}

func (tc *toolchain) renderAsset(x asset.Asset) (map[string]any, error) {
	m, err := tc.inspect.ToMap(x)
	if err != nil {
		return nil, err
	}
	m["$id"] = x.AssetID().String()
	m["$name"] = x.AssetName()
	if a, ok := x.(*world.Archetype); ok && len(a.Data()) > 0 {
		// the raw bytes say little; show the tree they hold
		delete(m, "Data")
		tree, err := tc.entity(bytebuffer.FromBytes(a.Data()))
		if err != nil {
			return nil, fmt.Errorf("archetype %s: %w", a.AssetName(), err)
		}
		m["Tree"] = tree
	}
	return m, nil
}

func (tc *toolchain) bulk(buf *bytebuffer.ByteBuffer) (map[string][]map[string]any, error) {
	byClass, err := tc.assets.DeserializeBulk(buf)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]map[string]any, len(byClass))
	for class, xs := range byClass {
		sort.Slice(xs, func(i, j int) bool { return xs[i].AssetName() < xs[j].AssetName() })
		for _, x := range xs {
			m, err := tc.renderAsset(x)
			if err != nil {
				return nil, err
			}
			out[class.Name()] = append(out[class.Name()], m)
		}
	}
	return out, nil
}

func (tc *toolchain) entity(buf *bytebuffer.ByteBuffer) (map[string]any, error) {
	h, err := tc.entities.DeserializeFrom(tc.world, buf, world.RegenerateIdentity())
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tc.world.DestroyEntity(h)
		tc.world.Flush()
	}()
	return tc.renderEntity(h)
}

func (tc *toolchain) renderEntity(h meta.EntityHandle) (map[string]any, error) {
	e, ok := tc.world.Get(h)
	if !ok {
		return nil, world.ErrInvalidHandle
	}
	local := e.Local()
	m := map[string]any{
		"name":     e.Name(),
		"position": local.Position,
		"rotation": local.Rotation,
		"scale":    local.Scale,
	}
	if p, ok := tc.world.Get(e.Prototype()); ok {
		m["prototype"] = p.Name()
	}
	var cs []map[string]any
	for _, c := range e.Components() {
		cm, err := tc.inspect.ToMap(c)
		if err != nil {
			return nil, err
		}
		cs = append(cs, cm)
	}
	if len(cs) > 0 {
		m["components"] = cs
	}
	var children []map[string]any
	for _, ch := range e.Children() {
		cm, err := tc.renderEntity(ch)
		if err != nil {
			return nil, err
		}
		children = append(children, cm)
	}
	if len(children) > 0 {
		m["children"] = children
	}
	return m, nil
}
