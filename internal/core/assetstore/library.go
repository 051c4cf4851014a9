package assetstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/zeusync/metacore/internal/core/archive"
	"github.com/zeusync/metacore/internal/core/asset"
	"github.com/zeusync/metacore/internal/core/events/bus"
	"github.com/zeusync/metacore/internal/core/observability/log"
	"github.com/zeusync/metacore/pkg/bytebuffer"
	"github.com/zeusync/metacore/pkg/concurrent"
)

const DefaultWorkers = 4

// ReloadFunc refreshes a live asset from a changed blob. It reports false
// when it does not handle the asset, in which case the blob is decoded into
// the asset in place.
type ReloadFunc func(ctx context.Context, existing asset.Asset, blob []byte) (bool, error)

type Option func(*Library)

func WithLogger(l log.Log) Option { return func(lib *Library) { lib.log = l } }

// WithWorkers bounds the number of concurrent store reads.
func WithWorkers(n int) Option {
	return func(lib *Library) {
		if n > 0 {
			lib.workers = n
		}
	}
}

// WithEvents publishes saves, reloads and deletes on b.
func WithEvents(b *bus.Bus) Option { return func(lib *Library) { lib.events = b } }

// WithReloadGuard runs every in-place reload through guard, so live assets
// are not rewritten while something else reads them.
func WithReloadGuard(guard func(fn func() error) error) Option {
	return func(lib *Library) { lib.guard = guard }
}

func WithReloader(fn ReloadFunc) Option {
	return func(lib *Library) { lib.reloaders = append(lib.reloaders, fn) }
}

// Library ties a Store to the asset table: loaded assets are registered in
// the table and the digest of their last known blob is remembered, so saves
// of unchanged assets are skipped and Refresh only touches changed ones.
type Library struct {
	store     Store
	archiver  *archive.AssetArchiver
	table     *asset.Table
	log       log.Log
	workers   int
	reloaders []ReloadFunc
	events    *bus.Bus
	guard     func(fn func() error) error

	mu      sync.Mutex
	digests map[uuid.UUID]uint64
}

func NewLibrary(store Store, archiver *archive.AssetArchiver, table *asset.Table, opts ...Option) *Library {
	lib := &Library{
		store:    store,
		archiver: archiver,
		table:    table,
		log:      log.Nop(),
		workers:  DefaultWorkers,
		digests:  make(map[uuid.UUID]uint64),
	}
	for _, opt := range opts {
		opt(lib)
	}
	return lib
}

func (l *Library) Store() Store                     { return l.store }
func (l *Library) Archiver() *archive.AssetArchiver { return l.archiver }
func (l *Library) Table() *asset.Table              { return l.table }

func digest(data []byte) uint64 { return xxhash.Sum64(data) }

func (l *Library) known(id uuid.UUID) (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.digests[id]
	return d, ok
}

func (l *Library) remember(id uuid.UUID, d uint64) {
	l.mu.Lock()
	l.digests[id] = d
	l.mu.Unlock()
}

func (l *Library) forget(id uuid.UUID) {
	l.mu.Lock()
	delete(l.digests, id)
	l.mu.Unlock()
}

// Save serializes x, writes it to the store unless the blob is unchanged
// since the last load or save, and registers x in the table. It reports
// whether the store was written.
func (l *Library) Save(ctx context.Context, x asset.Asset) (bool, error) {
	if x.AssetID() == uuid.Nil {
		x.SetAssetID(uuid.New())
	}
	data, err := l.archiver.Serialize(x)
	if err != nil {
		return false, fmt.Errorf("serialize %s: %w", x.AssetName(), err)
	}
	if err = l.table.Add(x); err != nil {
		return false, err
	}
	d := digest(data)
	if old, ok := l.known(x.AssetID()); ok && old == d {
		return false, nil
	}
	if err = l.store.Save(ctx, x.AssetID(), data); err != nil {
		return false, err
	}
	l.remember(x.AssetID(), d)
	l.log.Debug("asset saved", log.Stringer("id", x.AssetID()), log.String("name", x.AssetName()))
	l.publish(bus.AssetSaved, x.AssetID(), x.AssetName())
	return true, nil
}

// Get returns a live asset without touching the store.
func (l *Library) Get(id uuid.UUID) (asset.Asset, bool) { return l.table.Get(id) }

// Load returns the live asset with the given id, reading and decoding it
// from the store when the table does not hold it yet.
func (l *Library) Load(ctx context.Context, id uuid.UUID) (asset.Asset, error) {
	if x, ok := l.table.Get(id); ok {
		return x, nil
	}
	data, err := l.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return l.decode(id, data)
}

func (l *Library) decode(id uuid.UUID, data []byte) (asset.Asset, error) {
	x, err := l.archiver.Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", id, err)
	}
	if x.AssetID() != id {
		return nil, fmt.Errorf("%w: blob stored as %s holds %s", bytebuffer.ErrCorruptData, id, x.AssetID())
	}
	if err = l.table.Add(x); err != nil {
		return nil, err
	}
	l.remember(id, digest(data))
	return x, nil
}

// LoadAll reads every stored asset missing from the table. Blobs are read
// concurrently; decoding runs on the calling goroutine in id order since
// loaders may resolve references to assets decoded earlier. Assets that fail
// to decode are skipped and their errors joined into the result.
func (l *Library) LoadAll(ctx context.Context) (int, error) {
	ids, err := l.store.List(ctx)
	if err != nil {
		return 0, err
	}
	missing := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := l.table.Get(id); !ok {
			missing = append(missing, id)
		}
	}
	blobs, err := concurrent.Map(ctx, missing, l.workers, l.store.Load)
	if err != nil {
		return 0, err
	}

	var errs []error
	loaded := 0
	for i, id := range missing {
		if _, err := l.decode(id, blobs[i]); err != nil {
			l.log.Warn("asset skipped", log.Stringer("id", id), log.Err(err))
			errs = append(errs, err)
			continue
		}
		loaded++
	}
	l.log.Info("assets loaded", log.Int("loaded", loaded), log.Int("stored", len(ids)))
	return loaded, errors.Join(errs...)
}

// Refresh compares the stored blob of every loaded asset against the digest
// it was loaded with and reloads the changed ones in place. It returns the
// ids of the reloaded assets.
func (l *Library) Refresh(ctx context.Context) ([]uuid.UUID, error) {
	l.mu.Lock()
	ids := make([]uuid.UUID, 0, len(l.digests))
	for id := range l.digests {
		ids = append(ids, id)
	}
	l.mu.Unlock()
	sortIDs(ids)

	type fetched struct {
		data []byte
		err  error
	}
	results, err := concurrent.Map(ctx, ids, l.workers, func(ctx context.Context, id uuid.UUID) (fetched, error) {
		data, err := l.store.Load(ctx, id)
		return fetched{data, err}, nil
	})
	if err != nil {
		return nil, err
	}

	var changed []uuid.UUID
	var errs []error
	for i, id := range ids {
		if err := results[i].err; err != nil {
			if errors.Is(err, ErrNotFound) {
				l.log.Warn("loaded asset no longer stored", log.Stringer("id", id))
				continue
			}
			errs = append(errs, err)
			continue
		}
		blob := results[i].data
		d := digest(blob)
		if old, _ := l.known(id); old == d {
			continue
		}
		x, ok := l.table.Get(id)
		if !ok {
			l.forget(id)
			continue
		}
		if err := l.reload(ctx, x, blob); err != nil {
			errs = append(errs, fmt.Errorf("reload %s: %w", x.AssetName(), err))
			continue
		}
		l.remember(id, d)
		changed = append(changed, id)
		l.publish(bus.AssetReloaded, id, x.AssetName())
	}
	if len(changed) > 0 {
		l.log.Info("assets refreshed", log.Int("changed", len(changed)))
	}
	return changed, errors.Join(errs...)
}

func (l *Library) reload(ctx context.Context, x asset.Asset, blob []byte) error {
	for _, fn := range l.reloaders {
		handled, err := fn(ctx, x, blob)
		if err != nil {
			return err
		}
		if handled {
			return nil
		}
	}
	reload := func() error { return l.archiver.Reload(bytebuffer.FromBytes(blob), x) }
	if l.guard != nil {
		return l.guard(reload)
	}
	return reload()
}

// Delete removes the asset from the store and the table.
func (l *Library) Delete(ctx context.Context, id uuid.UUID) error {
	if err := l.store.Delete(ctx, id); err != nil {
		return err
	}
	var name string
	if x, ok := l.table.Get(id); ok {
		name = x.AssetName()
	}
	l.table.Remove(id)
	l.forget(id)
	l.publish(bus.AssetDeleted, id, name)
	return nil
}

// publish reports handler failures without failing the operation that
// already reached the store.
func (l *Library) publish(typ string, id uuid.UUID, name string) {
	if err := l.events.Publish(bus.NewAssetEvent(typ, "assetstore", id, name)); err != nil {
		l.log.Warn("event handler failed", log.String("event", typ), log.Stringer("id", id), log.Err(err))
	}
}
