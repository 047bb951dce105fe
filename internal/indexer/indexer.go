package indexer

import (
	"context"
	"log"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/0xADE/ade-launch/internal/config"
	"github.com/0xADE/ade-launch/internal/indexer/desktop"
	"github.com/0xADE/ade-launch/internal/indexer/executable"
)

// Source is one independent origin of entries, usually one directory.
type Source interface {
	Name() string
	Discover(ctx context.Context) ([]Entry, error)
}

// ExecutableSource adapts an executable directory scan to Source. The file
// name is both the display name and the command.
type ExecutableSource struct {
	executable.Source
}

// Discover implements Source
func (s ExecutableSource) Discover(ctx context.Context) ([]Entry, error) {
	infos, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, Entry{Name: info.Name, Exec: info.Name})
	}
	return entries, nil
}

// DesktopSource adapts a desktop entry directory scan to Source.
type DesktopSource struct {
	desktop.Source
}

// Discover implements Source
func (s DesktopSource) Discover(ctx context.Context) ([]Entry, error) {
	desks, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(desks))
	for _, desk := range desks {
		entries = append(entries, Entry{Name: desk.Name, Exec: desk.Exec})
	}
	return entries, nil
}

// SourcesFromConfig returns one source per configured directory.
func SourcesFromConfig(cfg *config.Config) []Source {
	var sources []Source
	for _, kind := range cfg.Sources() {
		switch kind {
		case config.SourceExec:
			for _, dir := range cfg.ExecDirs() {
				sources = append(sources, ExecutableSource{executable.Source{Dir: dir}})
			}
		case config.SourceDesktop:
			for _, dir := range cfg.DataDirs() {
				sources = append(sources, DesktopSource{desktop.Source{Dir: filepath.Clean(dir)}})
			}
		default:
			log.Printf("[WARN] Unknown source kind %q", kind)
		}
	}
	return sources
}

// Discover runs every source on a pool of at most workers goroutines and
// merges the results once all of them are done. A failing source is logged
// and contributes nothing.
func Discover(ctx context.Context, sources []Source, workers int) []Entry {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([][]Entry, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, src := range sources {
		g.Go(func() error {
			entries, err := src.Discover(gctx)
			if err != nil {
				log.Printf("[WARN] Skipping source %s: %v", src.Name(), err)
				return nil
			}
			log.Printf("[DEBUG] Source %s: %d entries", src.Name(), len(entries))
			results[i] = entries
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, entries := range results {
		total += len(entries)
	}

	merged := make([]Entry, 0, total)
	for _, entries := range results {
		merged = append(merged, entries...)
	}
	return merged
}
