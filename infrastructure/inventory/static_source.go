// Package inventory provides InventorySource implementations for hosts that
// cannot query a package manager directly.
package inventory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"librefind/application/ports"
	"librefind/domain/core/entities"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// settleDelay lets an editor finish writing before a change is reported.
const settleDelay = 100 * time.Millisecond

type inventoryFile struct {
	Packages []entities.InstalledPackage `yaml:"packages"`
}

// StaticSource serves a fixed package list.
type StaticSource struct {
	mu       sync.RWMutex
	packages []entities.InstalledPackage
}

var _ ports.InventorySource = (*StaticSource)(nil)

func NewStaticSource(packages ...entities.InstalledPackage) *StaticSource {
	return &StaticSource{packages: packages}
}

// Replace swaps the package list, as when the device reports an install.
func (s *StaticSource) Replace(packages []entities.InstalledPackage) {
	s.mu.Lock()
	s.packages = append([]entities.InstalledPackage(nil), packages...)
	s.mu.Unlock()
}

func (s *StaticSource) InstalledPackages(ctx context.Context) ([]entities.InstalledPackage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entities.InstalledPackage(nil), s.packages...), nil
}

// FileSource reads the inventory from a YAML export on every call:
//
//	packages:
//	  - package: com.whatsapp
//	    label: WhatsApp
//	  - package: org.fdroid.fdroid
//	    label: F-Droid
//	    foss: true
type FileSource struct {
	path string
}

var _ ports.InventorySource = (*FileSource)(nil)

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) InstalledPackages(ctx context.Context) ([]entities.InstalledPackage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory %s: %w", s.path, err)
	}
	return ParseInventory(data)
}

// Watch calls onChange after the inventory file is written, replaced or
// removed, until ctx ends. Bursts of events within settleDelay collapse into
// one call.
func (s *FileSource) Watch(ctx context.Context, onChange func(), logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	// The directory, not the file, so a save by rename is still seen.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch inventory: %w", err)
	}

	go func() {
		defer watcher.Close()
		var settle *time.Timer
		for {
			select {
			case <-ctx.Done():
				if settle != nil {
					settle.Stop()
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
				if settle != nil {
					settle.Stop()
				}
				settle = time.AfterFunc(settleDelay, func() {
					if ctx.Err() == nil {
						logger.Debug("Inventory changed", zap.String("path", s.path))
						onChange()
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("Inventory watcher error", zap.Error(err))
			}
		}
	}()
	logger.Info("Watching inventory", zap.String("path", s.path))
	return nil
}

// ParseInventory decodes a YAML inventory document. Entries without a
// package name are dropped and a missing label falls back to the package.
func ParseInventory(data []byte) ([]entities.InstalledPackage, error) {
	var f inventoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse inventory: %w", err)
	}
	out := make([]entities.InstalledPackage, 0, len(f.Packages))
	for _, p := range f.Packages {
		if p.PackageName == "" {
			continue
		}
		if p.Label == "" {
			p.Label = p.PackageName
		}
		out = append(out, p)
	}
	return out, nil
}
