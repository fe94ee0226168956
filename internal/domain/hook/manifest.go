package hook

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Manifest is the parsed shape of one HOOK.toml file.
type Manifest struct {
	Hook struct {
		Name     string `toml:"name"`
		Point    string `toml:"point"`
		Kind     string `toml:"kind"` // "void" | "modifying"
		Priority int    `toml:"priority"`
		Action   string `toml:"action"` // "shell" | "http" | "prompt_inject"
	} `toml:"hook"`

	Shell struct {
		Command string        `toml:"command"`
		Timeout time.Duration `toml:"timeout"`
	} `toml:"shell"`

	HTTP struct {
		URL     string        `toml:"url"`
		Method  string        `toml:"method"`
		Timeout time.Duration `toml:"timeout"`
	} `toml:"http"`

	PromptInject struct {
		Content  string `toml:"content"`
		Position string `toml:"position"` // "prepend" | "append"
	} `toml:"prompt_inject"`
}

func parseManifest(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if m.Hook.Name == "" || m.Hook.Point == "" || m.Hook.Action == "" {
		return nil, fmt.Errorf("%s: hook.name, hook.point and hook.action are required", path)
	}
	return &m, nil
}

func (m *Manifest) kind() Kind {
	if m.Hook.Kind == "modifying" {
		return Modifying
	}
	return Void
}

// toHandler builds the dynamic Handler an action manifest describes.
func (m *Manifest) toHandler(logger *zap.Logger) Handler {
	k := m.kind()
	switch m.Hook.Action {
	case "shell":
		timeout := m.Shell.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		cmdLine := m.Shell.Command
		return &funcHandler{
			name: m.Hook.Name, kind: k, priority: m.Hook.Priority, origin: Dynamic,
			fn: func(ctx context.Context, ev Event) Verdict {
				cctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()
				cmd := exec.CommandContext(cctx, "sh", "-c", cmdLine)
				out, err := cmd.CombinedOutput()
				if err != nil {
					logger.Warn("dynamic shell hook failed", zap.String("hook", m.Hook.Name), zap.Error(err))
					return Continue(ev.Value)
				}
				if k == Modifying {
					return Continue(string(bytes.TrimSpace(out)))
				}
				return Continue(ev.Value)
			},
		}
	case "http":
		timeout := m.HTTP.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		method := m.HTTP.Method
		if method == "" {
			method = http.MethodPost
		}
		url := m.HTTP.URL
		client := &http.Client{Timeout: timeout}
		return &funcHandler{
			name: m.Hook.Name, kind: k, priority: m.Hook.Priority, origin: Dynamic,
			fn: func(ctx context.Context, ev Event) Verdict {
				body, _ := ev.Value.(string)
				req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewBufferString(body))
				if err != nil {
					return Continue(ev.Value)
				}
				resp, err := client.Do(req)
				if err != nil {
					logger.Warn("dynamic http hook failed", zap.String("hook", m.Hook.Name), zap.Error(err))
					return Continue(ev.Value)
				}
				defer resp.Body.Close()
				return Continue(ev.Value)
			},
		}
	case "prompt_inject":
		content := m.PromptInject.Content
		position := m.PromptInject.Position
		return &funcHandler{
			name: m.Hook.Name, kind: Modifying, priority: m.Hook.Priority, origin: Dynamic,
			fn: func(_ context.Context, ev Event) Verdict {
				text, _ := ev.Value.(string)
				if position == "append" {
					return Continue(text + "\n" + content)
				}
				return Continue(content + "\n" + text)
			},
		}
	default:
		return &funcHandler{
			name: m.Hook.Name, kind: Void, priority: m.Hook.Priority, origin: Dynamic,
			fn: func(_ context.Context, ev Event) Verdict { return Continue(ev.Value) },
		}
	}
}

// Loader watches a directory of HOOK.toml manifests and keeps a Registry's
// dynamic handler set current. Reload is triggered both by fsnotify events
// (low latency) and by mtime-stamp polling (reliable fallback), mirroring
// the dual approach the rest of this codebase uses for config hot-reload.
type Loader struct {
	dir      string
	registry *Registry
	logger   *zap.Logger
	interval time.Duration

	mu       sync.Mutex
	lastScan map[string]time.Time // path -> mtime observed at last successful load

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// NewLoader creates a manifest loader rooted at dir.
func NewLoader(dir string, registry *Registry, interval time.Duration, logger *zap.Logger) *Loader {
	if interval == 0 {
		interval = 5 * time.Second
	}
	return &Loader{
		dir:      dir,
		registry: registry,
		logger:   logger.With(zap.String("component", "hook-loader")),
		interval: interval,
		lastScan: make(map[string]time.Time),
		stopCh:   make(chan struct{}),
	}
}

// LoadAll scans dir for *.toml manifests and installs the resulting
// handlers as the registry's dynamic set. A single malformed manifest is
// logged and skipped; it does not prevent the rest of the directory from
// loading (fail-open per manifest, not per directory).
func (l *Loader) LoadAll() error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create hooks dir: %w", err)
	}
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("read hooks dir: %w", err)
	}

	byPoint := make(map[Point][]Handler)
	seen := make(map[string]time.Time)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".toml" {
			continue
		}
		path := filepath.Join(l.dir, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}
		m, err := parseManifest(path)
		if err != nil {
			l.logger.Warn("skipping malformed hook manifest", zap.String("path", path), zap.Error(err))
			continue
		}
		h := m.toHandler(l.logger)
		byPoint[Point(m.Hook.Point)] = append(byPoint[Point(m.Hook.Point)], h)
		seen[path] = info.ModTime()
	}

	l.registry.ReplaceDynamic(byPoint)

	l.mu.Lock()
	l.lastScan = seen
	l.mu.Unlock()
	return nil
}

// Start begins the fsnotify watch (best-effort) plus mtime-poll fallback.
// Blocks until ctx is done.
func (l *Loader) Start(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		l.watcher = watcher
		if err := watcher.Add(l.dir); err == nil {
			go l.watchLoop(ctx)
		}
	} else {
		l.logger.Warn("fsnotify unavailable, falling back to polling only", zap.Error(err))
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if l.watcher != nil {
				l.watcher.Close()
			}
			return
		case <-ticker.C:
			if l.changed() {
				if err := l.LoadAll(); err != nil {
					l.logger.Warn("hook reload failed", zap.Error(err))
				}
			}
		}
	}
}

func (l *Loader) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != ".toml" {
				continue
			}
			if err := l.LoadAll(); err != nil {
				l.logger.Warn("hook reload failed", zap.Error(err))
			}
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error("hook watcher error", zap.Error(err))
		}
	}
}

// changed reports whether any *.toml file in dir has a newer mtime than
// what was observed at the last successful LoadAll.
func (l *Loader) changed() bool {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".toml" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(l.dir, e.Name())
		if prev, ok := l.lastScan[path]; !ok || info.ModTime().After(prev) {
			return true
		}
	}
	return len(entries) != len(l.lastScan) // catches deletions (cheap heuristic)
}
