package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Writers that copy files into the watch directory emit a burst of write
// events; a file is imported once it has been quiet for this long.
const WATCH_SETTLE = 2 * time.Second

// DirWatcher imports audio files dropped into a directory. Files present
// at startup are imported immediately; new arrivals import after their
// writes settle. Non-audio files are ignored with a log line, same as the
// regular import path.
type DirWatcher struct {
	library *Library
	dir     string
}

func NewDirWatcher(library *Library, dir string) *DirWatcher {
	return &DirWatcher{library: library, dir: dir}
}

// Run watches until ctx is cancelled.
func (w *DirWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	w.importExisting(ctx)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				pending[event.Name] = time.Now()
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				delete(pending, event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logMsg(fmt.Sprintf("WARNING: Watcher error: %v", err))

		case <-ticker.C:
			for path, last := range pending {
				if time.Since(last) < WATCH_SETTLE {
					continue
				}
				delete(pending, path)
				w.importPath(ctx, path)
			}
		}
	}
}

// importExisting sweeps the files already in the directory.
func (w *DirWatcher) importExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		logMsg(fmt.Sprintf("WARNING: Could not scan %s: %v", w.dir, err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.importPath(ctx, filepath.Join(w.dir, entry.Name()))
	}
}

func (w *DirWatcher) importPath(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logMsg(fmt.Sprintf("WARNING: Could not read %s: %v", path, err))
		return
	}

	file := ImportFile{
		Name: filepath.Base(path),
		MIME: mime.TypeByExtension(filepath.Ext(path)),
		Data: data,
	}
	imported := w.library.ImportFiles(ctx, []ImportFile{file})
	for _, song := range imported {
		fmt.Printf("imported: %s - %s\n", song.Artist, song.Title)
	}
}
