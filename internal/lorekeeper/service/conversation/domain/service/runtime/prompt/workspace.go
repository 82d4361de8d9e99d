package prompt

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wyrdlab/reverie/pkg/logger"
)

// WorkspaceLoader watches a prompts directory and turns its markdown files
// into live-reloaded prompt sections. instructions.md overrides the built-in
// instruction block; any other .md file becomes an extra section appended
// after the instructions.
//
// Edits take effect on the next prompt assembly without a restart.
type WorkspaceLoader struct {
	dir     string
	mu      sync.RWMutex
	files   map[string]string // base name (no .md) -> content
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWorkspaceLoader scans dir and starts a background watcher. A missing
// directory is not an error; the loader stays empty, and because no watch
// is registered for it, files created there later are not picked up until
// a new loader is built.
func NewWorkspaceLoader(dir string) (*WorkspaceLoader, error) {
	wl := &WorkspaceLoader{
		dir:   dir,
		files: map[string]string{},
		done:  make(chan struct{}),
	}
	wl.scan()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	wl.watcher = watcher
	if err := watcher.Add(dir); err != nil {
		// Directory may not exist yet; keep the loader static in that case.
		logger.Debug("[WorkspaceLoader] not watching %s: %v", dir, err)
	}
	go wl.watchLoop()
	return wl, nil
}

// Close stops the watcher.
func (wl *WorkspaceLoader) Close() {
	close(wl.done)
	if wl.watcher != nil {
		_ = wl.watcher.Close()
	}
}

// Sections returns the current dynamic sections.
func (wl *WorkspaceLoader) Sections() []Section {
	wl.mu.RLock()
	defer wl.mu.RUnlock()

	var sections []Section
	for name, content := range wl.files {
		if name == "instructions" {
			sections = append(sections, &InstructionsSection{Override: content})
			continue
		}
		sections = append(sections, &workspaceSection{name: name, content: content})
	}
	return sections
}

func (wl *WorkspaceLoader) scan() {
	entries, err := os.ReadDir(wl.dir)
	if err != nil {
		return
	}

	files := map[string]string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(wl.dir, e.Name()))
		if err != nil {
			logger.Warn("[WorkspaceLoader] read %s: %v", e.Name(), err)
			continue
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			files[strings.TrimSuffix(e.Name(), ".md")] = text
		}
	}

	wl.mu.Lock()
	wl.files = files
	wl.mu.Unlock()
}

// watchLoop rescans on any write/create/remove, debounced.
func (wl *WorkspaceLoader) watchLoop() {
	var debounce *time.Timer
	for {
		select {
		case <-wl.done:
			return
		case event, ok := <-wl.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, func() {
				logger.Debug("[WorkspaceLoader] reloading prompt workspace %s", wl.dir)
				wl.scan()
			})
		case err, ok := <-wl.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("[WorkspaceLoader] watch error: %v", err)
		}
	}
}

// workspaceSection is a static extra section from a workspace file.
type workspaceSection struct {
	name    string
	content string
}

func (s *workspaceSection) Name() string  { return "workspace:" + s.name }
func (s *workspaceSection) Priority() int { return PriorityInstructions + 1 }

func (s *workspaceSection) Render(_ context.Context, _ *PromptContext) (string, error) {
	return s.content, nil
}
