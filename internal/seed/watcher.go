package seed

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/calden/knowld/internal/checksum"
)

// Watch starts an fsnotify watcher on the seed directory and imports
// changed files until ctx is cancelled. New subdirectories created at
// runtime are added to the watch list; rename events schedule a short
// reconciliation pass (a full Sync) to catch files that moved.
func (im *Importer) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, im.dir); err != nil {
		return err
	}

	im.logger.Info("seed watcher: started", slog.String("dir", im.dir))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			im.logger.Info("seed watcher: stopped")
			return nil

		case <-reconcileCh:
			if syncErr := im.Sync(ctx); syncErr != nil {
				im.logger.Warn("seed watcher: reconcile failed", slog.String("error", syncErr.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						im.logger.Warn("seed watcher: add new dir failed",
							slog.String("path", ev.Name), slog.String("error", addErr.Error()))
					}
					scheduleReconcile()
					continue
				}
			}

			id, validFile := fileID(ev.Name)
			if !validFile {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := os.ReadFile(ev.Name)
				if readErr != nil {
					im.logger.Warn("seed watcher: read failed",
						slog.String("path", ev.Name), slog.String("error", readErr.Error()))
					continue
				}
				if impErr := im.importFile(ctx, id, data, checksum.Sum(data)); impErr != nil {
					im.logger.Warn("seed watcher: import failed",
						slog.String("id", id), slog.String("error", impErr.Error()))
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := im.db.DeleteSeedChecksum(id); delErr != nil {
					im.logger.Warn("seed watcher: forget failed",
						slog.String("id", id), slog.String("error", delErr.Error()))
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only; the new
				// path arrives as a separate Create event when it stays
				// inside a watched dir. Reconcile shortly to settle.
				_ = im.db.DeleteSeedChecksum(id)
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			im.logger.Error("seed watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
