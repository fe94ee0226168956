package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	domaintool "github.com/zeroclaw/gateway/internal/domain/tool"
	"github.com/zeroclaw/gateway/internal/infrastructure/config"
)

// ErrDuplicateServer is returned by AddServer when name is already
// registered, so callers can tell a name collision apart from a dial or
// tool-namespace-collision failure.
var ErrDuplicateServer = errors.New("mcp: duplicate server")

// ServerInfo is a read-only view of one managed server, for listing.
type ServerInfo struct {
	Name      string
	Command   string
	Enabled   bool
	Connected bool
	ToolCount int
}

// Registry is the single McpRegistry for the process: it owns every live
// server connection, assigns the mcp_<server>_<tool> namespace, and bumps a
// generation counter on any add/remove/refresh so AgentEngine can cheaply
// detect "my tool list is stale" without diffing.
//
// Lock discipline: mu guards only the servers map and the generation
// counter. All network I/O (dial, discover, call) happens outside mu —
// AddServer, RemoveServer and RefreshServer take a per-server reconnect
// lock (lockFor) so two concurrent calls for the same name serialize
// without blocking unrelated servers.
type Registry struct {
	mu         sync.RWMutex
	servers    map[string]*serverClient
	reconnect  map[string]*sync.Mutex
	generation atomic.Int64

	registry   domaintool.Registry
	configPath string
	logger     *zap.Logger
}

// NewRegistry creates an empty McpRegistry bound to a tool registry for
// built-in-name collision detection and a config path for persistence.
func NewRegistry(registry domaintool.Registry, configPath string, logger *zap.Logger) *Registry {
	return &Registry{
		servers:    make(map[string]*serverClient),
		reconnect:  make(map[string]*sync.Mutex),
		registry:   registry,
		configPath: configPath,
		logger:     logger.With(zap.String("component", "mcp-registry")),
	}
}

// Generation returns the current generation counter, bumped on every
// successful add/remove/refresh. AgentEngine compares this across turns to
// decide whether the MCP section of its system prompt needs rebuilding.
func (r *Registry) Generation() int64 {
	return r.generation.Load()
}

// InitFromConfig loads mcp.json and connects every enabled server. Servers
// that fail to connect are logged and skipped — one bad server config
// never blocks the others.
func (r *Registry) InitFromConfig() {
	cfg, err := config.LoadMCPConfigFile(r.configPath)
	if err != nil {
		r.logger.Warn("failed to load mcp.json, starting empty", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	for _, srv := range cfg.Servers {
		if !srv.Enabled {
			continue
		}
		if err := r.connectAndRegister(ctx, srv.Name, entryFromConfig(srv)); err != nil {
			r.logger.Error("mcp server init failed", zap.String("name", srv.Name), zap.Error(err))
		}
	}
}

func entryFromConfig(e config.MCPServerEntry) serverEntry {
	return serverEntry{Command: e.Command, Args: e.Args, Env: e.Env, SSEURL: e.SSEURL, Enabled: e.Enabled}
}

func (r *Registry) lockFor(name string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.reconnect[name]
	if !ok {
		l = &sync.Mutex{}
		r.reconnect[name] = l
	}
	return l
}

// AddServer connects a new server, registers its tools under the
// mcp_<name>_<tool> namespace (rejecting collisions with any already
// registered tool name — built-in or another server's), and persists the
// entry to mcp.json.
func (r *Registry) AddServer(ctx context.Context, name string, e serverEntry) error {
	lock := r.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	_, exists := r.servers[name]
	r.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %q", ErrDuplicateServer, name)
	}

	if err := r.connectAndRegister(ctx, name, e); err != nil {
		return err
	}
	return r.persistAdd(name, e)
}

func (r *Registry) connectAndRegister(ctx context.Context, name string, e serverEntry) error {
	sc, err := dial(ctx, name, e, r.logger)
	if err != nil {
		return err
	}
	if err := r.registerTools(name, sc); err != nil {
		_ = sc.close()
		return err
	}

	r.mu.Lock()
	r.servers[name] = sc
	r.mu.Unlock()
	r.generation.Add(1)

	r.logger.Info("mcp server connected", zap.String("name", name), zap.Int("tools", len(sc.tools)))
	return nil
}

// registerTools checks sc's advertised tools for a qualified-name collision
// against any already-registered tool (built-in or another server's) before
// registering any of them — a collision rejects the whole server, not just
// the offending tool, so the caller never ends up with a half-registered
// server in r.servers.
func (r *Registry) registerTools(name string, sc *serverClient) error {
	for _, t := range sc.tools {
		qualified := fmt.Sprintf("mcp_%s_%s", name, t.Name)
		if r.registry.Has(qualified) {
			return fmt.Errorf("tool name collision: %s already registered", qualified)
		}
	}
	for _, t := range sc.tools {
		qualified := fmt.Sprintf("mcp_%s_%s", name, t.Name)
		wrapped := newTool(r, name, t, qualified)
		if err := r.registry.Register(wrapped); err != nil {
			r.logger.Warn("failed to register mcp tool", zap.String("tool", qualified), zap.Error(err))
		}
	}
	return nil
}

// RemoveServer disconnects a server, unregisters its tools, and removes it
// from mcp.json.
func (r *Registry) RemoveServer(name string) error {
	lock := r.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	sc, exists := r.servers[name]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("mcp server %q not found", name)
	}
	delete(r.servers, name)
	r.mu.Unlock()

	for _, t := range sc.tools {
		_ = r.registry.Unregister(fmt.Sprintf("mcp_%s_%s", name, t.Name))
	}
	_ = sc.close()
	r.generation.Add(1)

	return r.persistRemove(name)
}

// RefreshServer re-runs tools/list against a live connection and swaps the
// registered tool set. Generation bumps even if the tool set is unchanged,
// since a refresh is itself a meaningful capability-check event.
func (r *Registry) RefreshServer(ctx context.Context, name string) error {
	lock := r.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	sc, exists := r.servers[name]
	r.mu.RUnlock()
	if !exists {
		return fmt.Errorf("mcp server %q not found", name)
	}

	for _, t := range sc.tools {
		_ = r.registry.Unregister(fmt.Sprintf("mcp_%s_%s", name, t.Name))
	}

	if err := sc.discover(ctx); err != nil {
		return err
	}
	for _, t := range sc.tools {
		qualified := fmt.Sprintf("mcp_%s_%s", name, t.Name)
		if err := r.registry.Register(newTool(r, name, t, qualified)); err != nil {
			r.logger.Warn("failed to re-register mcp tool", zap.String("tool", qualified), zap.Error(err))
		}
	}
	r.generation.Add(1)
	return nil
}

// ListServers returns the config-declared servers merged with their live
// connection state.
func (r *Registry) ListServers() []ServerInfo {
	cfg, err := config.LoadMCPConfigFile(r.configPath)
	if err != nil {
		return r.listFromMemory()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ServerInfo, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		info := ServerInfo{Name: s.Name, Command: s.Command, Enabled: s.Enabled}
		if sc, ok := r.servers[s.Name]; ok {
			info.Connected = true
			info.ToolCount = len(sc.tools)
		}
		infos = append(infos, info)
	}
	return infos
}

func (r *Registry) listFromMemory() []ServerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]ServerInfo, 0, len(r.servers))
	for name, sc := range r.servers {
		infos = append(infos, ServerInfo{Name: name, Command: sc.entry.Command, Enabled: true, Connected: true, ToolCount: len(sc.tools)})
	}
	return infos
}

// callTool looks up a server by name and invokes one of its tools; used by
// the Tool wrapper's Execute.
func (r *Registry) callTool(ctx context.Context, server, tool string, args map[string]interface{}) (string, error) {
	r.mu.RLock()
	sc, ok := r.servers[server]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("mcp server %q not connected", server)
	}
	return sc.call(ctx, tool, args, 30*time.Second)
}

func (r *Registry) persistAdd(name string, e serverEntry) error {
	cfg, _ := config.LoadMCPConfigFile(r.configPath)
	if cfg == nil {
		cfg = &config.MCPFileConfig{}
	}
	cfg.Servers = append(cfg.Servers, config.MCPServerEntry{
		Name: name, Command: e.Command, Args: e.Args, Env: e.Env, SSEURL: e.SSEURL, Enabled: true,
	})
	return config.SaveMCPConfig(r.configPath, cfg)
}

func (r *Registry) persistRemove(name string) error {
	cfg, _ := config.LoadMCPConfigFile(r.configPath)
	if cfg == nil {
		return nil
	}
	filtered := cfg.Servers[:0]
	for _, s := range cfg.Servers {
		if s.Name != name {
			filtered = append(filtered, s)
		}
	}
	cfg.Servers = filtered
	return config.SaveMCPConfig(r.configPath, cfg)
}

// Close disconnects every live server, e.g. on gateway shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, sc := range r.servers {
		if err := sc.close(); err != nil {
			r.logger.Warn("error closing mcp server", zap.String("name", name), zap.Error(err))
		}
	}
}
