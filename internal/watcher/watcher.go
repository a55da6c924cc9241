// Package watcher keeps a collection in sync with its directory by
// re-indexing documents as they change on disk.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/semchunk-mcp/internal/indexer"
	"github.com/dshills/semchunk-mcp/internal/logger"
)

// DefaultDebounce is how long a path must stay quiet before it is re-indexed
const DefaultDebounce = 500 * time.Millisecond

// Indexer is the part of *indexer.Indexer the watcher drives
type Indexer interface {
	IndexDirectory(ctx context.Context, rootPath string, cfg *indexer.Config) (*indexer.Statistics, error)
	IndexFile(ctx context.Context, collectionName, path string, cfg *indexer.Config) (*indexer.FileResult, error)
	RemoveFile(ctx context.Context, collectionName, path string) error
}

// Config controls a watch session
type Config struct {
	Index    *indexer.Config
	Debounce time.Duration

	// OnChange is called after each batch of changes has been applied
	OnChange func(changed []string)
}

// Watcher watches a directory tree and feeds changes to an Indexer
type Watcher struct {
	fs      *fsnotify.Watcher
	indexer Indexer
	logger  logger.Logger
	conf    Config

	mu        sync.Mutex
	pending   map[string]struct{}
	closeOnce sync.Once
}

// New creates a watcher. Call Run to start it and Close to release it.
func New(idx Indexer, cfg Config, log logger.Logger) (*Watcher, error) {
	if idx == nil {
		return nil, errors.New("indexer is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Index == nil {
		cfg.Index = &indexer.Config{}
	}
	if cfg.Index.Collection == "" {
		cfg.Index.Collection = indexer.DefaultCollection
	}
	if len(cfg.Index.Extensions) == 0 {
		cfg.Index.Extensions = indexer.DefaultExtensions
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{
		fs:      fsw,
		indexer: idx,
		logger:  log.With("component", "watcher"),
		conf:    cfg,
		pending: make(map[string]struct{}),
	}, nil
}

// Run indexes root once, then applies file changes until ctx is canceled
// or the watcher is closed.
func (w *Watcher) Run(ctx context.Context, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	stats, err := w.indexer.IndexDirectory(ctx, absRoot, w.conf.Index)
	if err != nil {
		return fmt.Errorf("initial index: %w", err)
	}
	w.logger.Info("initial index complete",
		"collection", stats.Collection,
		"indexed", stats.DocumentsIndexed,
		"skipped", stats.DocumentsSkipped)

	if err := w.addTree(absRoot); err != nil {
		return err
	}
	w.logger.Info("watching", "root", absRoot)

	timer := time.NewTimer(w.conf.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(event) {
				timer.Reset(w.conf.Debounce)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case <-timer.C:
			w.flush(ctx)
		}
	}
}

// handleEvent records a change and reports whether anything is now pending
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	if hidden(filepath.Base(event.Name)) {
		return false
	}

	// New directories are not covered by their parent's watch
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("failed to watch directory", "path", event.Name, "error", err)
			}
			return false
		}
	}

	if !indexer.Matches(event.Name, w.conf.Index.Extensions) {
		return false
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	w.mu.Lock()
	w.pending[event.Name] = struct{}{}
	w.mu.Unlock()
	return true
}

// flush applies every pending change. A path that still exists is
// re-indexed; one that is gone is removed from the collection.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if len(paths) == 0 {
		return
	}

	collection := w.conf.Index.Collection
	for _, p := range paths {
		if ctx.Err() != nil {
			return
		}
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			if err := w.indexer.RemoveFile(ctx, collection, p); err != nil {
				w.logger.Warn("failed to remove document", "path", p, "error", err)
			}
			continue
		}
		res, err := w.indexer.IndexFile(ctx, collection, p, w.conf.Index)
		if err != nil {
			w.logger.Warn("failed to index document", "path", p, "error", err)
			continue
		}
		if !res.Skipped {
			w.logger.Info("document reindexed", "path", res.Path, "chunks", res.Chunks)
		}
	}

	if w.conf.OnChange != nil {
		w.conf.OnChange(paths)
	}
}

// addTree watches dir and every non-hidden directory below it
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && hidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// Close stops the watcher
func (w *Watcher) Close() error {
	var closeErr error
	w.closeOnce.Do(func() {
		if err := w.fs.Close(); err != nil {
			closeErr = fmt.Errorf("failed to close watcher: %w", err)
		}
	})
	return closeErr
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
