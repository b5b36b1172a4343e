package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/facility-atlas/internal/gazetteer"
	"github.com/sells-group/facility-atlas/internal/model"
	"github.com/sells-group/facility-atlas/internal/pipeline"
	"github.com/sells-group/facility-atlas/internal/store"
)

// engineEnv holds the initialized store, resolver, and pipeline shared by
// the triangulate and serve commands.
type engineEnv struct {
	Store    store.Store // nil when the command runs storeless
	Resolver *gazetteer.Resolver
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the engine environment.
func (env *engineEnv) Close() {
	if env.Store != nil {
		_ = env.Store.Close()
	}
}

// initEngine assembles the resolver and pipeline. The store is opened and
// migrated only when the command needs it; anchors from the store table are
// merged in when gazetteer.from_store is set. Callers should defer
// env.Close().
func initEngine(ctx context.Context, openStore bool, extraAnchors []model.Anchor) (*engineEnv, error) {
	env := &engineEnv{}

	if openStore || cfg.Gazetteer.FromStore {
		st, err := initStore(ctx)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
		env.Store = st
	}

	resolver, err := buildResolver(ctx, env.Store, extraAnchors)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Resolver = resolver
	env.Pipeline = pipeline.New(cfg, resolver)

	return env, nil
}

// buildResolver layers anchors over the embedded table: the configured CSV
// first, then the store table, then any command-line extras. Later layers
// win on key collisions.
func buildResolver(ctx context.Context, st store.Store, extra []model.Anchor) (*gazetteer.Resolver, error) {
	opts := []gazetteer.Option{gazetteer.WithReverseCutoffKM(cfg.Gazetteer.ReverseCutoffKM)}

	if cfg.Gazetteer.File != "" {
		anchors, err := gazetteer.LoadCSVFile(cfg.Gazetteer.File)
		if err != nil {
			return nil, eris.Wrapf(err, "load gazetteer file %s", cfg.Gazetteer.File)
		}
		opts = append(opts, gazetteer.WithAnchors(anchors))
		zap.L().Info("gazetteer file loaded",
			zap.String("path", cfg.Gazetteer.File),
			zap.Int("anchors", len(anchors)),
		)
	}

	if cfg.Gazetteer.FromStore && st != nil {
		anchors, err := st.ListAnchors(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "load store anchors")
		}
		opts = append(opts, gazetteer.WithAnchors(anchors))
		zap.L().Info("store anchors loaded", zap.Int("anchors", len(anchors)))
	}

	if len(extra) > 0 {
		opts = append(opts, gazetteer.WithAnchors(extra))
	}

	return gazetteer.New(opts...)
}
