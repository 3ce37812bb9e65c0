// Package ignorelist stores the package names a user excluded from scoring.
package ignorelist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"librefind/application/ports"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type fileFormat struct {
	Ignored []string `yaml:"ignored"`
}

// FileStore keeps the ignore list in a YAML file and notices edits made to
// the file by other processes.
type FileStore struct {
	path   string
	logger *zap.Logger

	mu       sync.RWMutex
	ignored  map[string]struct{}
	watchers *broadcaster
}

var _ ports.IgnoreListStore = (*FileStore)(nil)

// NewFileStore loads path, treating a missing file as an empty list.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &FileStore{
		path:     path,
		logger:   logger,
		ignored:  make(map[string]struct{}),
		watchers: newBroadcaster(),
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) reload() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read ignore list: %w", err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse ignore list: %w", err)
	}
	next := make(map[string]struct{}, len(f.Ignored))
	for _, pkg := range f.Ignored {
		next[pkg] = struct{}{}
	}

	s.mu.Lock()
	changed := !sameSet(s.ignored, next)
	s.ignored = next
	s.mu.Unlock()

	if changed {
		s.watchers.publish(copySet(next))
	}
	return nil
}

// Ignored returns a copy of the current set.
func (s *FileStore) Ignored(ctx context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySet(s.ignored), nil
}

func (s *FileStore) Ignore(ctx context.Context, packageName string) error {
	return s.mutate(func(set map[string]struct{}) { set[packageName] = struct{}{} })
}

func (s *FileStore) Restore(ctx context.Context, packageName string) error {
	return s.mutate(func(set map[string]struct{}) { delete(set, packageName) })
}

func (s *FileStore) mutate(change func(map[string]struct{})) error {
	s.mu.Lock()
	next := copySet(s.ignored)
	change(next)
	if sameSet(s.ignored, next) {
		s.mu.Unlock()
		return nil
	}
	if err := s.write(next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.ignored = next
	s.mu.Unlock()

	s.watchers.publish(copySet(next))
	return nil
}

// write replaces the file atomically. Must be called with s.mu held.
func (s *FileStore) write(set map[string]struct{}) error {
	list := make([]string, 0, len(set))
	for pkg := range set {
		list = append(list, pkg)
	}
	sort.Strings(list)

	data, err := yaml.Marshal(fileFormat{Ignored: list})
	if err != nil {
		return fmt.Errorf("failed to encode ignore list: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create ignore list directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write ignore list: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Watch implements ports.IgnoreListStore. Changes made through this store
// are delivered directly; edits by other processes arrive through fsnotify.
func (s *FileStore) Watch(ctx context.Context) <-chan map[string]struct{} {
	return s.watchers.subscribe(ctx)
}

// WatchFile follows external edits to the file until ctx ends.
func (s *FileStore) WatchFile(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory so atomic saves (rename over the file) are seen.
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to create ignore list directory: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch ignore list: %w", err)
	}

	go func() {
		defer watcher.Close()
		var debounce *time.Timer
		for {
			select {
			case <-ctx.Done():
				if debounce != nil {
					debounce.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(100*time.Millisecond, func() {
					if err := s.reload(); err != nil {
						s.logger.Warn("Failed to reload ignore list", zap.Error(err), zap.String("path", s.path))
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Error("Ignore list watcher error", zap.Error(err))
			}
		}
	}()
	s.logger.Info("Watching ignore list", zap.String("path", s.path))
	return nil
}

func copySet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}

func sameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
