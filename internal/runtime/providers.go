package runtime

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"github.com/zeusync/metacore/internal/core/archive"
	"github.com/zeusync/metacore/internal/core/asset"
	"github.com/zeusync/metacore/internal/core/assetstore"
	"github.com/zeusync/metacore/internal/core/components"
	"github.com/zeusync/metacore/internal/core/config"
	"github.com/zeusync/metacore/internal/core/events/bus"
	"github.com/zeusync/metacore/internal/core/meta"
	"github.com/zeusync/metacore/internal/core/observability/log"
	"github.com/zeusync/metacore/internal/core/world"
	"github.com/zeusync/metacore/internal/livelink"
)

// ProviderSet builds a Runtime from a Config.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	ProvideRegistry,
	bus.New,
	meta.NewOverrideTable,
	asset.NewTable,
	ProvideObjectArchiver,
	ProvideLoaders,
	archive.NewAssetArchiver,
	world.NewArchiver,
	ProvideWorld,
	livelink.NewScene,
	ProvideStore,
	ProvideLibrary,
	ProvideLiveLink,
	New,
)

func ProvideLogger(cfg config.Config) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return log.New(level), nil
}

// ProvideRegistry registers every class the runtime persists and freezes
// the registry.
func ProvideRegistry() (*meta.Registry, error) {
	r := meta.NewRegistry()
	for _, register := range []func(*meta.Registry) error{
		meta.RegisterBuiltins,
		world.RegisterClasses,
		components.Register,
	} {
		if err := register(r); err != nil {
			return nil, err
		}
	}
	if err := r.Freeze(); err != nil {
		return nil, err
	}
	return r, nil
}

func ProvideObjectArchiver(r *meta.Registry, table *asset.Table, overrides *meta.OverrideTable, l log.Log) *archive.ObjectArchiver {
	return archive.NewObjectArchiver(r, table, archive.WithOverrides(overrides), archive.WithLogger(l))
}

func ProvideLoaders() (*asset.Loaders, error) {
	return asset.NewLoaders(append(components.Loaders(), world.NewArchetypeLoader())...)
}

func ProvideWorld(r *meta.Registry, overrides *meta.OverrideTable, l log.Log) *world.World {
	return world.NewWorld(r, world.WithOverrides(overrides), world.WithLogger(l))
}

// ProvideStore opens the configured asset backend.
func ProvideStore(cfg config.Config) (assetstore.Store, func(), error) {
	switch cfg.Assets.Backend {
	case config.BackendFile:
		s, err := assetstore.NewFileStore(cfg.Assets.Root, cfg.Assets.Extension)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case config.BackendRedis:
		c := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return assetstore.NewRedisStore(c, cfg.Redis.Namespace), func() { _ = c.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("%w: backend %q", config.ErrInvalidConfig, cfg.Assets.Backend)
	}
}

func ProvideLibrary(cfg config.Config, store assetstore.Store, assets *archive.AssetArchiver, table *asset.Table, scene *livelink.Scene, events *bus.Bus, l log.Log) *assetstore.Library {
	return assetstore.NewLibrary(store, assets, table,
		assetstore.WithLogger(l),
		assetstore.WithEvents(events),
		assetstore.WithWorkers(cfg.Assets.Workers),
		assetstore.WithReloader(ArchetypeReloader(assets, scene)),
		assetstore.WithReloadGuard(func(fn func() error) error {
			return scene.Do(func(*world.World, *world.Archiver) error { return fn() })
		}),
	)
}

// ArchetypeReloader refreshes the instances of a changed archetype in the
// scene world instead of only replacing its stored definition.
func ArchetypeReloader(assets *archive.AssetArchiver, scene *livelink.Scene) assetstore.ReloadFunc {
	return func(ctx context.Context, x asset.Asset, blob []byte) (bool, error) {
		a, ok := x.(*world.Archetype)
		if !ok {
			return false, nil
		}
		fresh, err := assets.Deserialize(blob)
		if err != nil {
			return true, err
		}
		next, ok := fresh.(*world.Archetype)
		if !ok {
			return true, fmt.Errorf("%w: %s is no longer an archetype", archive.ErrClassMismatch, a.AssetName())
		}
		return true, scene.Do(func(w *world.World, ar *world.Archiver) error {
			a.SetAssetName(next.AssetName())
			return a.Reload(ctx, ar, w, next.Data())
		})
	}
}

func ProvideLiveLink(cfg config.Config, scene *livelink.Scene, events *bus.Bus, lib *assetstore.Library, l log.Log) (*livelink.Server, func()) {
	srv := livelink.NewServer(scene, cfg.LiveLink,
		livelink.WithLogger(l),
		livelink.WithEvents(events),
		livelink.WithArchetypes(ArchetypeResolver(lib)),
	)
	return srv, srv.Close
}

// ArchetypeResolver loads archetypes for the live link, reading them from
// the store when they are not live yet.
func ArchetypeResolver(lib *assetstore.Library) livelink.ArchetypeResolver {
	return func(ctx context.Context, id uuid.UUID) (*world.Archetype, error) {
		x, err := lib.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		a, ok := x.(*world.Archetype)
		if !ok {
			return nil, fmt.Errorf("%w: %s %q", livelink.ErrNotArchetype, id, x.AssetName())
		}
		return a, nil
	}
}
