package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/sari-dev/sari/internal/config"
	"github.com/sari-dev/sari/internal/logging"
)

// EventBus is the bounded filesystem-event ingress of §4.4: fsnotify
// feeds it, and `.git` activity or a checkout burst collapses into a
// single rescan after git_checkout_debounce.
type EventBus struct {
	cfg       *config.Config
	fsw       *fsnotify.Watcher
	coalesce  *CoalesceTable
	onEvent   func(path string, ev EventType)
	onRescan  func()
	root      string

	gitMu      sync.Mutex
	gitTimer   *time.Timer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEventBus builds a watcher bound to root. onEvent fires per
// debounced non-.git path; onRescan fires once per collapsed .git
// burst.
func NewEventBus(cfg *config.Config, root string, onEvent func(path string, ev EventType), onRescan func()) (*EventBus, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	bus := &EventBus{cfg: cfg, fsw: fsw, root: root, onEvent: onEvent, onRescan: onRescan}
	bus.coalesce = NewCoalesceTable(cfg, bus.flushPath)
	return bus, nil
}

// Start adds watches for every directory under root (skipping excluded
// ones) and begins processing events.
func (b *EventBus) Start(ctx context.Context) error {
	if !b.cfg.Ingest.WatchMode {
		return nil
	}
	if err := b.addWatches(b.root); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.wg.Add(1)
	go b.loop(ctx)
	logging.LogIngest("watcher: started for %s", b.root)
	return nil
}

func (b *EventBus) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	_ = b.fsw.Close()
	b.wg.Wait()
}

func (b *EventBus) addWatches(root string) error {
	visited := make(map[string]bool)
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}
		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[real] {
			return filepath.SkipDir
		}
		visited[real] = true

		if filepath.Base(path) == ".git" && filepath.Dir(path) == filepath.Clean(b.root) {
			if err := b.fsw.Add(path); err != nil {
				logging.LogIngest("watcher: failed to add watch for %s: %v", path, err)
			}
			return filepath.SkipDir
		}
		if b.shouldIgnoreDir(path) {
			return filepath.SkipDir
		}
		if err := b.fsw.Add(path); err != nil {
			logging.LogIngest("watcher: failed to add watch for %s: %v", path, err)
		}
		return nil
	})
}

func (b *EventBus) shouldIgnoreDir(path string) bool {
	rel, err := filepath.Rel(b.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range b.cfg.Exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, rel+"/"); matched {
			return true
		}
	}
	return false
}

func (b *EventBus) loop(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-b.fsw.Events:
			if !ok {
				return
			}
			b.handle(event)
		case err, ok := <-b.fsw.Errors:
			if !ok {
				return
			}
			logging.LogIngest("watcher: error: %v", err)
		}
	}
}

func (b *EventBus) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(b.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	if rel == ".git" || strings.HasPrefix(rel, ".git/") {
		b.scheduleGitRescan()
		return
	}

	var ev EventType
	switch {
	case event.Op&fsnotify.Remove != 0:
		ev = EventRemove
	case event.Op&fsnotify.Rename != 0:
		ev = EventRename
	case event.Op&fsnotify.Create != 0:
		ev = EventCreate
	default:
		ev = EventWrite
	}
	b.coalesce.Add(event.Name, ev)
}

// scheduleGitRescan collapses a burst of .git activity (checkout,
// branch switch, pull) into exactly one rescan after
// git_checkout_debounce, per §4.4.
func (b *EventBus) scheduleGitRescan() {
	b.gitMu.Lock()
	defer b.gitMu.Unlock()

	wait := time.Duration(b.cfg.Ingest.GitCheckoutDebounceMs) * time.Millisecond
	if b.gitTimer != nil {
		b.gitTimer.Stop()
	}
	b.gitTimer = time.AfterFunc(wait, func() {
		if b.onRescan != nil {
			b.onRescan()
		}
	})
}

func (b *EventBus) flushPath(path string, ev EventType) {
	if b.onEvent != nil {
		b.onEvent(path, ev)
	}
}
