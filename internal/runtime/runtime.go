// Package runtime composes the archive service: registry, archivers, the
// shared world, the asset library and the editor link.
package runtime

import (
	"context"
	"time"

	"github.com/zeusync/metacore/internal/core/assetstore"
	"github.com/zeusync/metacore/internal/core/config"
	"github.com/zeusync/metacore/internal/core/events/bus"
	"github.com/zeusync/metacore/internal/core/meta"
	"github.com/zeusync/metacore/internal/core/observability/log"
	"github.com/zeusync/metacore/internal/livelink"
)

type Runtime struct {
	Config   config.Config
	Log      log.Log
	Registry *meta.Registry
	Events   *bus.Bus
	Library  *assetstore.Library
	Scene    *livelink.Scene
	LiveLink *livelink.Server
}

func New(cfg config.Config, l log.Log, r *meta.Registry, events *bus.Bus, lib *assetstore.Library, scene *livelink.Scene, srv *livelink.Server) *Runtime {
	return &Runtime{Config: cfg, Log: l, Registry: r, Events: events, Library: lib, Scene: scene, LiveLink: srv}
}

// Run loads the stored assets, serves the editor link and polls the store
// for changed assets until ctx is done.
func (rt *Runtime) Run(ctx context.Context) error {
	if _, err := rt.Library.LoadAll(ctx); err != nil {
		rt.Log.Warn("some assets failed to load", log.Err(err))
	}
	if err := rt.LiveLink.Start(ctx); err != nil {
		return err
	}

	var tick <-chan time.Time
	if d := rt.Config.Assets.RefreshInterval; d > 0 {
		t := time.NewTicker(d)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			stop, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return rt.LiveLink.Stop(stop)
		case <-tick:
			rt.refresh(ctx)
		}
	}
}

func (rt *Runtime) refresh(ctx context.Context) {
	changed, err := rt.Library.Refresh(ctx)
	if err != nil {
		rt.Log.Warn("asset refresh failed", log.Err(err))
	}
	for _, id := range changed {
		rt.Log.Debug("asset reloaded", log.Stringer("id", id))
	}
}
