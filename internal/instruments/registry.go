package instruments

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"paperledger/internal/logger"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// FileConfig maps the instruments file:
//
//	instruments:
//	  "600519.SH": Kweichow Moutai
type FileConfig struct {
	Instruments map[string]string `yaml:"instruments"`
}

// Snapshot is the set of names loaded by one (re)load.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Names    map[string]string
}

// Registry resolves instrument codes to display names and reloads its file
// whenever it changes on disk until Close is called.
type Registry struct {
	path string

	mu       sync.RWMutex
	snapshot Snapshot

	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// NewRegistry reads path and starts watching it.
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("instrument registry requires path")
	}
	r := &Registry{path: filepath.Clean(path)}
	if err := r.reload(); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch instruments file failed: %w", err)
	}
	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch instruments file failed: %w", err)
	}
	r.watcher = watcher
	r.done = make(chan struct{})
	go r.watch()
	return r, nil
}

func (r *Registry) watch() {
	defer close(r.done)
	for {
		select {
		case evt, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != r.path || !(evt.Has(fsnotify.Write) || evt.Has(fsnotify.Create)) {
				continue
			}
			if err := r.reload(); err != nil {
				logger.Errorf("[instruments] reload failed: %v", err)
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("[instruments] watch error: %v", err)
		}
	}
}

// Close stops watching the file. Lookups keep serving the last snapshot.
func (r *Registry) Close() error {
	if r == nil || r.watcher == nil {
		return nil
	}
	var err error
	r.closeOnce.Do(func() {
		err = r.watcher.Close()
		<-r.done
	})
	return err
}

// NewStatic builds a registry that never reloads.
func NewStatic(names map[string]string) *Registry {
	r := &Registry{}
	r.snapshot = Snapshot{Version: 1, LoadedAt: time.Now(), Names: normalizeNames(names)}
	return r
}

// DisplayName returns the configured name for code.
func (r *Registry) DisplayName(code string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.snapshot.Names[strings.ToUpper(strings.TrimSpace(code))]
	return name, ok
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make(map[string]string, len(r.snapshot.Names))
	for k, v := range r.snapshot.Names {
		names[k] = v
	}
	return Snapshot{Version: r.snapshot.Version, LoadedAt: r.snapshot.LoadedAt, Names: names}
}

func (r *Registry) reload() error {
	cfg, err := readFile(r.path)
	if err != nil {
		return err
	}
	names := normalizeNames(cfg.Instruments)
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Names:    names,
	}
	r.mu.Unlock()
	logger.Infof("[instruments] loaded %d names from %s", len(names), filepath.Base(r.path))
	return nil
}

func normalizeNames(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for code, name := range in {
		code = strings.ToUpper(strings.TrimSpace(code))
		name = strings.TrimSpace(name)
		if code == "" || name == "" {
			continue
		}
		out[code] = name
	}
	return out
}

func readFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read instruments file failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse instruments file failed: %w", err)
	}
	return cfg, nil
}
