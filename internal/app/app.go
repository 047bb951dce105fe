// Package app wires configuration, discovery, caches and the launcher
// together at process start.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/0xADE/ade-launch/internal/cache"
	"github.com/0xADE/ade-launch/internal/config"
	"github.com/0xADE/ade-launch/internal/indexer"
	"github.com/0xADE/ade-launch/internal/launcher"
	"github.com/0xADE/ade-launch/internal/recent"
	"github.com/0xADE/ade-launch/internal/session"
)

// App holds the state shared by every session of a process.
type App struct {
	Config   *config.Config
	Index    *indexer.Index
	Recent   *recent.Store
	Launcher *launcher.Launcher
}

// Options adjust Open, mostly for tests.
type Options struct {
	Sources         []indexer.Source // nil means indexer.SourcesFromConfig
	LauncherOptions []launcher.Option
}

// Open loads or builds the index, loads the recent list and returns the
// shared state.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	// Launched programs run in the home directory
	if home, err := os.UserHomeDir(); err != nil || home == "" {
		return nil, fmt.Errorf("%w: %v", launcher.ErrNoHome, err)
	}

	idx, err := loadIndex(ctx, cfg, opts.Sources)
	if err != nil {
		return nil, err
	}

	db := cache.NewRecentDB(filepath.Join(cfg.CacheDir(), cache.RecentFileName))
	ids, err := db.LoadRecent()
	switch {
	case errors.Is(err, cache.ErrCorrupt):
		log.Printf("[WARN] Discarding recent list: %v", err)
		if err := db.Reset(); err != nil {
			return nil, err
		}
		ids = nil
	case err != nil:
		return nil, fmt.Errorf("loading recent list: %w", err)
	}

	store := recent.NewStore(cfg.RecentSize(), ids, db)
	log.Printf("[INFO] %d entries indexed, %d recent", idx.Len(), store.Len())

	return &App{
		Config:   cfg,
		Index:    idx,
		Recent:   store,
		Launcher: launcher.New(store, opts.LauncherOptions...),
	}, nil
}

func loadIndex(ctx context.Context, cfg *config.Config, sources []indexer.Source) (*indexer.Index, error) {
	file := cache.NewIndexFile(filepath.Join(cfg.CacheDir(), cache.IndexFileName))

	if !cfg.NoCache() {
		entries, err := file.Load()
		if err == nil {
			log.Printf("[DEBUG] Loaded index snapshot %s", file.Path())
			return indexer.NewIndex(entries), nil
		}
		if !errors.Is(err, cache.ErrNotFound) {
			log.Printf("[WARN] Rebuilding index: %v", err)
		}
	}

	if sources == nil {
		sources = indexer.SourcesFromConfig(cfg)
	}
	entries := indexer.Discover(ctx, sources, cfg.Workers())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx := indexer.NewIndex(entries)
	if idx.Len() == 0 {
		// Left unsaved so the next run discovers again
		log.Printf("[WARN] No entries discovered")
		return idx, nil
	}

	if err := file.Save(idx.Entries()); err != nil {
		log.Printf("[ERROR] Saving index snapshot: %v", err)
	}

	return idx, nil
}

// NewSession starts an interaction against the shared state.
func (a *App) NewSession() *session.Session {
	// Pick up launches made by other processes sharing the recent list
	if err := a.Recent.Refresh(); err != nil {
		log.Printf("[WARN] Refreshing recent list: %v", err)
	}
	return session.New(a.Index, a.Recent, a.Launcher, a.Config)
}
