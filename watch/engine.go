// Package watch regenerates stubs when project sources change. The
// engine owns serialization: editor save bursts coalesce into one
// batch, regenerations never overlap, and a quiet interval keeps rapid
// batches from stacking up.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/time/rate"

	"github.com/stubzen/stubzen/config"
	"github.com/stubzen/stubzen/errors"
	"github.com/stubzen/stubzen/logger"
	"github.com/stubzen/stubzen/manifest"
)

// Callback receives the batched set of changed paths once the debounce
// window closes.
type Callback func(changed []string) error

const (
	// DefaultDebounce is how long the engine waits after the last event
	// before regenerating.
	DefaultDebounce = 500 * time.Millisecond
	// DefaultQuietInterval is the minimum gap between regenerations.
	DefaultQuietInterval = 2 * time.Second
	// ownWriteWindow bounds how long a marked write suppresses its event.
	ownWriteWindow = 2 * time.Second

	heartbeatInterval = 5 * time.Minute
)

// Engine watches the configured paths and invokes callbacks with
// batched changes.
type Engine struct {
	root    string
	cfg     *config.Config
	session string
	started time.Time

	debounce time.Duration
	limiter  *rate.Limiter
	watcher  *fsnotify.Watcher

	mu          sync.Mutex
	callbacks   []Callback
	timer       *time.Timer
	pending     map[string]struct{}
	ownWrites   map[string]time.Time
	ownWriteTTL time.Duration
	cycles      int

	// runMu serializes regeneration cycles.
	runMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine prepares a watcher over the configured watch paths with the
// default quiet interval.
func NewEngine(root string, cfg *config.Config) (*Engine, error) {
	return NewEngineWithInterval(root, cfg, DefaultQuietInterval)
}

// NewEngineWithInterval overrides the minimum quiet interval between
// regenerations. Watch paths that do not exist are skipped with a
// warning; an engine with nothing to watch is an error.
func NewEngineWithInterval(root string, cfg *config.Config, quiet time.Duration) (*Engine, error) {
	root, err := normalizePath(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve watch root %s", root)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		root:        root,
		cfg:         cfg,
		session:     uuid.NewString(),
		debounce:    DefaultDebounce,
		limiter:     rate.NewLimiter(rate.Every(quiet), 1),
		watcher:     watcher,
		pending:     make(map[string]struct{}),
		ownWrites:   make(map[string]time.Time),
		ownWriteTTL: ownWriteWindow,
		ctx:         ctx,
		cancel:      cancel,
	}

	watching := 0
	for _, path := range e.watchRoots() {
		if _, err := os.Stat(path); err != nil {
			logger.Warnw("Watch path does not exist, skipping", "path", path)
			continue
		}
		added, err := e.addRecursive(path)
		if err != nil {
			watcher.Close()
			cancel()
			return nil, errors.Wrapf(err, "failed to watch %s", path)
		}
		watching += added
	}
	if watching == 0 {
		watcher.Close()
		cancel()
		return nil, errors.New("no watchable paths found")
	}

	logger.Debugw("Watch paths registered", "session", e.session, "directories", watching)
	return e, nil
}

// Session returns the engine's session identifier, stamped on every
// log line it emits.
func (e *Engine) Session() string {
	return e.session
}

// OnChange registers a callback for batched source changes.
func (e *Engine) OnChange(cb Callback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callbacks = append(e.callbacks, cb)
}

// MarkOwnWrite suppresses upcoming events for a path the generator
// just wrote, so regeneration does not retrigger itself.
func (e *Engine) MarkOwnWrite(path string) {
	if resolved, err := normalizePath(path); err == nil {
		path = resolved
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ownWrites[path] = time.Now()
}

// Start begins delivering batches. Stop releases the watcher.
func (e *Engine) Start() {
	e.started = time.Now()
	e.wg.Add(2)
	go e.eventLoop()
	go e.heartbeatLoop()
	logger.Infow("Watch engine started",
		"session", e.session,
		"root", e.root,
		"patterns", e.cfg.WatchGlobs())
}

// Stop shuts the engine down and waits for its loops to exit.
func (e *Engine) Stop() {
	e.cancel()
	e.watcher.Close()
	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
	}
	cycles := e.cycles
	e.mu.Unlock()
	e.wg.Wait()
	logger.Infow("Watch engine stopped", "session", e.session, "cycles", cycles)
}

// watchRoots resolves the configured watch paths against the project
// root, defaulting to the root itself.
func (e *Engine) watchRoots() []string {
	if len(e.cfg.WatchPaths) == 0 {
		return []string{e.root}
	}
	roots := make([]string, 0, len(e.cfg.WatchPaths))
	for _, rel := range e.cfg.WatchPaths {
		if filepath.IsAbs(rel) {
			roots = append(roots, rel)
			continue
		}
		roots = append(roots, filepath.Join(e.root, rel))
	}
	return roots
}

// addRecursive registers path and every directory under it, skipping
// excluded and generated trees. fsnotify does not recurse on its own.
func (e *Engine) addRecursive(path string) (int, error) {
	added := 0
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != path && e.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := e.watcher.Add(p); err != nil {
			return err
		}
		added++
		return nil
	})
	return added, err
}

// skipDir reports directories the watcher never descends into:
// excluded directories, generated output trees, and dot directories.
func (e *Engine) skipDir(name string) bool {
	if _, excluded := e.cfg.ExcludedDirSet()[name]; excluded {
		return true
	}
	switch name {
	case "stubs", "stubs-dist", manifest.Dir:
		return true
	}
	return strings.HasPrefix(name, ".")
}

func (e *Engine) eventLoop() {
	defer e.wg.Done()
	for {
		select {
		case event, ok := <-e.watcher.Events:
			if !ok {
				return
			}
			e.handleEvent(event)
		case err, ok := <-e.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnw("Watch error", "session", e.session, "error", err)
		case <-e.ctx.Done():
			return
		}
	}
}

func (e *Engine) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}

	// Directories created under a watched tree need watching too.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !e.skipDir(filepath.Base(event.Name)) {
				if _, err := e.addRecursive(event.Name); err != nil {
					logger.Warnw("Failed to watch new directory", "path", event.Name, "error", err)
				}
			}
			return
		}
	}

	path := event.Name
	if resolved, err := normalizePath(path); err == nil {
		path = resolved
	}
	if !e.matches(path) {
		return
	}
	if e.isOwnWrite(path) {
		logger.Debugw("Ignoring own write", "session", e.session, "file", path)
		return
	}

	logger.Debugw("Source change detected",
		"session", e.session,
		"file", path,
		"op", event.Op.String())

	e.mu.Lock()
	e.pending[path] = struct{}{}
	e.scheduleLocked()
	e.mu.Unlock()
}

// matches reports whether a path is a watched source file. Generated
// stubs and the writer's temp files never count.
func (e *Engine) matches(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".stubzen-") || strings.HasSuffix(base, ".pyi") {
		return false
	}
	for _, glob := range e.cfg.WatchGlobs() {
		if ok, err := filepath.Match(glob, base); err == nil && ok {
			return true
		}
	}
	return false
}

// isOwnWrite suppresses every event a marked path produces inside the
// TTL window; one write can surface as several events.
func (e *Engine) isOwnWrite(path string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	marked, ok := e.ownWrites[path]
	if !ok {
		return false
	}
	if time.Since(marked) > e.ownWriteTTL {
		delete(e.ownWrites, path)
		return false
	}
	return true
}

// scheduleLocked resets the debounce timer. Callers hold e.mu.
func (e *Engine) scheduleLocked() {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.debounce, e.flush)
}

// flush drains the pending batch and runs the callbacks. A batch that
// arrives inside the quiet interval stays pending and the timer re-arms.
func (e *Engine) flush() {
	select {
	case <-e.ctx.Done():
		return
	default:
	}

	e.mu.Lock()
	if len(e.pending) == 0 {
		e.mu.Unlock()
		return
	}
	if !e.limiter.Allow() {
		logger.Debugw("Watch regeneration rate limited, deferring batch",
			"session", e.session,
			"pending", len(e.pending))
		e.scheduleLocked()
		e.mu.Unlock()
		return
	}
	changed := make([]string, 0, len(e.pending))
	for path := range e.pending {
		changed = append(changed, path)
	}
	e.pending = make(map[string]struct{})
	sort.Strings(changed)
	callbacks := make([]Callback, len(e.callbacks))
	copy(callbacks, e.callbacks)
	e.cycles++
	cycle := e.cycles
	e.mu.Unlock()

	e.runMu.Lock()
	defer e.runMu.Unlock()

	logger.Infow("Sources changed, regenerating stubs",
		"session", e.session,
		"cycle", cycle,
		"changed", len(changed))
	for _, cb := range callbacks {
		if err := cb(changed); err != nil {
			logger.Warnw("Watch callback failed", "session", e.session, "error", err)
		}
	}
}

func (e *Engine) heartbeatLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.heartbeat()
		}
	}
}

func (e *Engine) heartbeat() {
	e.mu.Lock()
	cycles := e.cycles
	e.mu.Unlock()

	fields := []interface{}{
		"session", e.session,
		"uptime", time.Since(e.started).Round(time.Second).String(),
		"cycles", cycles,
	}
	if v, err := mem.VirtualMemory(); err == nil {
		fields = append(fields,
			"memory_used_percent", v.UsedPercent,
			"memory_available_mb", v.Available/1024/1024)
	}
	logger.Debugw("Watch session heartbeat", fields...)
}

// normalizePath resolves symlinks so event paths, marked writes, and
// watch roots compare equal. macOS temp directories are symlinked.
func normalizePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}
