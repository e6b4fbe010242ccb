// Package watcher ingests documents dropped into a watched directory so the
// knowledge base can be fed without going through the HTTP API.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Alroma79/data-flywheel-chatbot/internal/extract"
	"github.com/Alroma79/data-flywheel-chatbot/internal/knowledge"
)

// settleDelay is how long a file must stay quiet after its last write
// before ingestion. Editors and copies often write in bursts.
const settleDelay = 500 * time.Millisecond

// Watcher ingests supported files appearing in one directory. Duplicate
// content is harmless thanks to the store's fingerprint dedup, so re-writes
// of the same file never create multiple records.
type Watcher struct {
	store  *knowledge.Store
	dir    string
	logger *slog.Logger
	fs     *fsnotify.Watcher
}

// New creates a Watcher for dir, creating the directory if needed.
func New(store *knowledge.Store, dir string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating watch dir: %w", err)
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fs watcher: %w", err)
	}
	if err := fs.Add(dir); err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	return &Watcher{store: store, dir: dir, logger: logger, fs: fs}, nil
}

// Run ingests existing files, then processes events until ctx is canceled.
// It always returns after closing the underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fs.Close() }()

	if err := w.ingestExisting(ctx); err != nil {
		return err
	}

	// Writes are debounced per path so partially copied files are not
	// ingested mid-write.
	pending := make(map[string]*time.Timer)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	ingested := make(chan string, 16)
	for {
		select {
		case <-ctx.Done():
			return nil

		case path := <-ingested:
			delete(pending, path)
			w.ingest(ctx, path)

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !extract.SupportedFilename(event.Name) {
				continue
			}
			path := event.Name
			if t, exists := pending[path]; exists {
				t.Reset(settleDelay)
				continue
			}
			pending[path] = time.AfterFunc(settleDelay, func() {
				select {
				case ingested <- path:
				case <-ctx.Done():
				}
			})

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", slog.Any("error", err))
		}
	}
}

// ingestExisting picks up files already present when the watcher starts.
func (w *Watcher) ingestExisting(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("reading watch dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !extract.SupportedFilename(e.Name()) {
			continue
		}
		w.ingest(ctx, filepath.Join(w.dir, e.Name()))
	}
	return nil
}

// ingest stores one file. Failures are logged, never fatal to the watch
// loop.
func (w *Watcher) ingest(ctx context.Context, path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.logger.Warn("reading watched file", slog.String("path", path), slog.Any("error", err))
		}
		return
	}
	if len(raw) == 0 {
		return
	}

	f, duplicate, err := w.store.Put(ctx, raw, filepath.Base(path), "")
	if err != nil {
		w.logger.Warn("ingesting watched file", slog.String("path", path), slog.Any("error", err))
		return
	}
	if duplicate {
		w.logger.Debug("watched file already known",
			slog.String("path", path), slog.String("file_id", f.ID))
		return
	}
	w.logger.Info("watched file ingested",
		slog.String("path", path),
		slog.String("file_id", f.ID),
		slog.Int64("size", f.Size))
}
