package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"pkt.systems/pslog"

	"github.com/fragmede/threadview/internal/api"
	"github.com/fragmede/threadview/internal/cache"
	"github.com/fragmede/threadview/internal/config"
	"github.com/fragmede/threadview/internal/thread"
)

// env holds the collaborators every command shares.
type env struct {
	cfg    config.Config
	log    pslog.Logger
	client *api.Client
	db     *cache.DB // nil when the cache is disabled
}

func newEnv(ctx context.Context, cfg config.Config, logger pslog.Logger) (*env, error) {
	e := &env{
		cfg: cfg,
		log: logger,
		client: api.NewClient(api.Options{
			BaseURL:       cfg.API.BaseURL,
			AlgoliaURL:    cfg.API.AlgoliaURL,
			Timeout:       time.Duration(cfg.API.TimeoutSeconds) * time.Second,
			MaxConcurrent: cfg.API.MaxConcurrent,
			Logger:        logger,
		}),
	}
	if !cfg.Cache.Enabled {
		return e, nil
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	db, err := cache.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	e.db = db
	if cfg.Cache.MaxAgeHours > 0 {
		cutoff := time.Now().Add(-time.Duration(cfg.Cache.MaxAgeHours) * time.Hour)
		if n, err := db.Prune(ctx, cutoff); err != nil {
			logger.Warn("cache prune failed", "error", err)
		} else if n > 0 {
			logger.Debug("cache pruned", "rows", n)
		}
	}
	return e, nil
}

func (e *env) Close() {
	if e.db != nil {
		_ = e.db.Close()
	}
}

// fetcher returns the page source for both orderings, behind the page
// cache when it is enabled.
func (e *env) fetcher() thread.Fetcher {
	var f thread.Fetcher = api.Router{
		Popular:       api.NewPopularSource(e.client, e.cfg.TreeTTL()),
		Chronological: api.NewChronologicalSource(e.client, e.cfg.TreeTTL()),
	}
	if e.db != nil {
		f = cache.NewPageCache(e.db, f, e.cfg.PageTTL(), e.log)
	}
	return f
}

// header loads the thread target item.
func (e *env) header(ctx context.Context, id int) (*api.Item, error) {
	if e.db != nil {
		return e.db.Header(ctx, e.client, id, e.cfg.ItemTTL())
	}
	return e.client.GetItem(ctx, id)
}

// threadOptions builds loader options for header. The caller supplies the
// scheduler and surface.
func (e *env) threadOptions(header *api.Item, order string) (thread.Options, error) {
	ordering := e.cfg.Loader.Ordering()
	if order != "" {
		o, ok := thread.ParseOrdering(strings.ToLower(order))
		if !ok {
			return thread.Options{}, fmt.Errorf("unknown order %q", order)
		}
		ordering = o
	}
	return thread.Options{
		Target:          api.FormatID(header.ID),
		Ordering:        ordering,
		Fetcher:         e.fetcher(),
		Logger:          e.log,
		RootPolicy:      e.cfg.Loader.Root.Policy(),
		ReplyPolicy:     e.cfg.Loader.Replies.Policy(),
		Padding:         e.cfg.Loader.PrefetchPadding,
		FallbackGuard:   e.cfg.Loader.FallbackGuard,
		SettleDelay:     e.cfg.SettleDelay(),
		SeedTotal:       len(header.Kids()),
		DisableBlending: !e.cfg.Loader.Blending,
	}, nil
}

// loadHeader parses arg and loads the item it names.
func (e *env) loadHeader(ctx context.Context, arg string) (*api.Item, error) {
	id, err := api.ParseID(thread.ID(strings.TrimSpace(arg)))
	if err != nil {
		return nil, err
	}
	header, err := e.header(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading item %d: %w", id, err)
	}
	return header, nil
}
