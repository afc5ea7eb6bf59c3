package transfer

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// inboxDebounce delays an import until the dropping writer has finished.
const inboxDebounce = 500 * time.Millisecond

// ImportCallback is called after each inbox-driven import attempt.
type ImportCallback func(path string, rep Report, err error)

// Watch monitors the inbox directory and imports any .json document
// dropped into it, then renames the file to *.imported so it is not
// re-processed. Runs until ctx is cancelled.
func Watch(ctx context.Context, w *Worker, inbox string, logger *slog.Logger, cb ImportCallback) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(inbox); err != nil {
		return err
	}

	logger.Info("inbox watcher: started", slog.String("dir", inbox))

	// pending debounces per-file events: every Create/Write resets the
	// file's timer, and the import only fires once the file goes quiet.
	pending := make(map[string]*time.Timer)
	fireCh := make(chan string, 16)

	for {
		select {
		case <-ctx.Done():
			for _, t := range pending {
				t.Stop()
			}
			logger.Info("inbox watcher: stopped")
			return nil

		case path := <-fireCh:
			delete(pending, path)
			rep, err := w.ImportFrom(ctx, path)
			if err != nil {
				logger.Warn("inbox watcher: import failed",
					slog.String("path", path), slog.String("error", err.Error()))
			} else if renameErr := os.Rename(path, path+".imported"); renameErr != nil {
				logger.Warn("inbox watcher: mark imported failed",
					slog.String("path", path), slog.String("error", renameErr.Error()))
			}
			if cb != nil {
				cb(path, rep, err)
			}

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !strings.HasSuffix(ev.Name, ".json") {
				continue
			}
			path := ev.Name
			if t, exists := pending[path]; exists {
				t.Reset(inboxDebounce)
				continue
			}
			pending[path] = time.AfterFunc(inboxDebounce, func() {
				select {
				case fireCh <- path:
				case <-ctx.Done():
				}
			})

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Error("inbox watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
