package vault

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"cdr.dev/slog/v3"
	"github.com/fsnotify/fsnotify"
)

// Watcher delivers filesystem events one at a time.
type Watcher interface {
	Add(dir string) error
	Next(ctx context.Context) (*fsnotify.Event, error)
	Close() error
}

// ErrWatcherClosed is returned by Next after Close.
var ErrWatcherClosed = errors.New("watcher closed")

type fsnotifyWatcher struct {
	*fsnotify.Watcher
	closeOnce sync.Once
	closed    chan struct{}
}

// NewWatcher returns a Watcher backed by fsnotify.
func NewWatcher() (Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &fsnotifyWatcher{Watcher: w, closed: make(chan struct{})}, nil
}

func (w *fsnotifyWatcher) Next(ctx context.Context) (*fsnotify.Event, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-w.closed:
			return nil, ErrWatcherClosed
		case ev, ok := <-w.Events:
			if !ok {
				return nil, ErrWatcherClosed
			}
			return &ev, nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil, ErrWatcherClosed
			}
			return nil, fmt.Errorf("watcher: %w", err)
		}
	}
}

func (w *fsnotifyWatcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closed)
		err = w.Watcher.Close()
	})
	return err
}

// Watch reports writes to vault documents by calling changed with their
// vault-relative path. Folders created while watching are watched too. It
// returns when ctx is done or the watcher is closed.
func (v *Vault) Watch(ctx context.Context, w Watcher, logger slog.Logger, changed func(path string)) error {
	folders, err := v.Folders()
	if err != nil {
		return err
	}
	for _, dir := range folders {
		if err := w.Add(v.Abs(dir)); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	logger.Info(ctx, "watching vault", slog.F("root", v.root), slog.F("folders", len(folders)))

	for {
		ev, err := w.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrWatcherClosed) {
				return nil
			}
			logger.Warn(ctx, "watcher error", slog.Error(err))
			continue
		}
		if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
			continue
		}
		rel, ok := v.Rel(ev.Name)
		if !ok {
			continue
		}
		info, err := v.fs.Stat(rel)
		if err != nil {
			continue
		}
		if info.IsDir() {
			if err := w.Add(filepath.Clean(ev.Name)); err != nil {
				logger.Warn(ctx, "watch new folder", slog.F("path", rel), slog.Error(err))
			}
			continue
		}
		changed(rel)
	}
}
