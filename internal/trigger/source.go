package trigger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// rulesFile is the on-disk layout of a rules file.
type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads a YAML rules file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trigger rules: %w", err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse trigger rules %s: %w", path, err)
	}
	return f.Rules, nil
}

// FileSource serves rules from a YAML file and reloads them when the file
// changes. A reload that fails keeps the previous rules.
type FileSource struct {
	mu      sync.RWMutex
	path    string
	rules   []Rule
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
	onLoad  func([]Rule)
}

// NewFileSource loads path once. Call Start to follow later edits.
func NewFileSource(path string, logger *zap.Logger) (*FileSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve trigger rules path: %w", err)
	}
	rules, err := LoadRules(abs)
	if err != nil {
		return nil, err
	}
	return &FileSource{
		path:   abs,
		rules:  rules,
		logger: logger.Named("trigger.file"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// OnReload registers fn to be called with the new rules after each
// successful reload.
func (s *FileSource) OnReload(fn func([]Rule)) {
	s.mu.Lock()
	s.onLoad = fn
	s.mu.Unlock()
}

// Rules returns a snapshot of the current rules.
func (s *FileSource) Rules() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Rule(nil), s.rules...)
}

// Start watches the file's directory so editors that replace the file on save
// are followed too. It does not block.
func (s *FileSource) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		s.mu.Unlock()
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}
	s.watcher = watcher
	s.running = true
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

// Stop ends the watch and waits for the watch goroutine to exit.
func (s *FileSource) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh

	if err := s.watcher.Close(); err != nil {
		s.logger.Warn("closing trigger watcher", zap.Error(err))
	}
}

func (s *FileSource) run(ctx context.Context) {
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			s.reload()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("trigger watcher error", zap.Error(err))
		}
	}
}

func (s *FileSource) reload() {
	rules, err := LoadRules(s.path)
	if err != nil {
		s.logger.Warn("keeping previous trigger rules", zap.String("path", s.path), zap.Error(err))
		return
	}

	s.mu.Lock()
	s.rules = rules
	onLoad := s.onLoad
	s.mu.Unlock()

	s.logger.Info("trigger rules reloaded", zap.String("path", s.path), zap.Int("rules", len(rules)))
	if onLoad != nil {
		onLoad(rules)
	}
}
