package blocklist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/recents/pkg/logging"
)

// fileContents is the on-disk layout of a blocklist file.
type fileContents struct {
	Blocked []string `yaml:"blocked"`
}

// FileRegistry keeps blocked entries in a YAML file. A missing file is an
// empty blocklist. Watch reloads the file when it changes on disk.
type FileRegistry struct {
	path   string
	digits int
	logger logging.Logger

	mu      sync.RWMutex
	matcher *Matcher
}

// NewFileRegistry loads path and returns a registry over it.
func NewFileRegistry(path string, comparableDigits int, logger logging.Logger) (*FileRegistry, error) {
	if path == "" {
		return nil, fmt.Errorf("blocklist file path is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	r := &FileRegistry{
		path:   filepath.Clean(path),
		digits: comparableDigits,
		logger: logger.With(logging.Component("blocklist_file"), logging.F("path", path)),
	}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Path returns the file backing the registry.
func (r *FileRegistry) Path() string {
	return r.path
}

// IsBlocked reports whether number matches a blocked entry.
func (r *FileRegistry) IsBlocked(_ context.Context, number string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.matcher.Blocked(number), nil
}

// List returns the blocked entries.
func (r *FileRegistry) List(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.matcher.Entries(), nil
}

// Add blocks number and rewrites the file. It reports whether the entry was new.
func (r *FileRegistry) Add(_ context.Context, number string) (bool, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return false, fmt.Errorf("empty number")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.matcher.Entries()
	for _, e := range entries {
		if e == number {
			return false, nil
		}
	}
	entries = append(entries, number)
	if err := r.write(entries); err != nil {
		return false, err
	}
	r.matcher = NewMatcher(entries, r.digits)
	return true, nil
}

// Remove unblocks number and rewrites the file. It reports whether the entry existed.
func (r *FileRegistry) Remove(_ context.Context, number string) (bool, error) {
	number = strings.TrimSpace(number)

	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.matcher.Entries()
	kept := entries[:0]
	for _, e := range entries {
		if e != number {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return false, nil
	}
	if err := r.write(kept); err != nil {
		return false, err
	}
	r.matcher = NewMatcher(kept, r.digits)
	return true, nil
}

// Watch reloads the file whenever it is written, created or renamed into
// place. The directory is watched so editors that replace the file are seen.
// The watch stops when ctx is done.
func (r *FileRegistry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(r.path), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != r.path {
					continue
				}
				if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				if err := r.reload(); err != nil {
					r.logger.Warn("Blocklist reload failed, keeping previous entries", logging.Err(err))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Warn("Blocklist watcher error", logging.Err(err))
			}
		}
	}()
	return nil
}

func (r *FileRegistry) reload() error {
	entries, err := readFile(r.path)
	if err != nil {
		return err
	}
	m := NewMatcher(entries, r.digits)

	r.mu.Lock()
	r.matcher = m
	r.mu.Unlock()

	r.logger.Debug("Blocklist loaded", logging.F("entries", m.Len()))
	return nil
}

func readFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading blocklist: %w", err)
	}
	var contents fileContents
	if err := yaml.Unmarshal(data, &contents); err != nil {
		return nil, fmt.Errorf("parsing blocklist %s: %w", path, err)
	}
	return contents.Blocked, nil
}

// write replaces the file atomically. Callers hold r.mu.
func (r *FileRegistry) write(entries []string) error {
	data, err := yaml.Marshal(fileContents{Blocked: entries})
	if err != nil {
		return fmt.Errorf("encoding blocklist: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("creating blocklist directory: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing blocklist: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing blocklist: %w", err)
	}
	return nil
}
