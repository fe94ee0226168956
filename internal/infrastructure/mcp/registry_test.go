package mcp

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	domaintool "github.com/zeroclaw/gateway/internal/domain/tool"
	"go.uber.org/zap"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "mcp.json")
	return NewRegistry(domaintool.NewInMemoryRegistry(), cfgPath, zap.NewNop())
}

// MCP name collision rejected (spec.md §8 scenario 2, the registration
// half): a second server registered under a name already connected is
// rejected with ErrDuplicateServer, and the generation counter — which
// only ever advances on a successful add/remove/refresh — is untouched by
// the rejection.
func TestRegistry_AddServer_DuplicateNameRejected(t *testing.T) {
	r := newTestRegistry(t)

	// Simulate an already-connected "ops" server without dialing a real
	// process — AddServer's name check runs before any I/O.
	r.servers["ops"] = &serverClient{name: "ops", entry: serverEntry{Command: "true"}}
	r.generation.Store(1)

	err := r.AddServer(context.Background(), "ops", serverEntry{Command: "true"})
	if !errors.Is(err, ErrDuplicateServer) {
		t.Fatalf("AddServer error = %v, want ErrDuplicateServer", err)
	}
	if r.Generation() != 1 {
		t.Fatalf("Generation() = %d, want unchanged at 1 after a rejected add", r.Generation())
	}
}

// Tool-name-collision rejection: registerTools (the namespacing half of
// connectAndRegister, factored out so it's reachable without a live dial())
// must refuse a tool whose qualified name already exists in the
// built-in/cross-server registry, and must not register any of that
// server's other tools either — a collision rejects the whole server.
func TestRegistry_RegisterTools_ToolNameCollisionRejected(t *testing.T) {
	toolReg := domaintool.NewInMemoryRegistry()
	r := NewRegistry(toolReg, filepath.Join(t.TempDir(), "mcp.json"), zap.NewNop())

	// Pre-register the name an incoming MCP tool would be qualified to.
	_ = toolReg.Register(&fakeDomainTool{name: "mcp_ops_shell"})

	sc := &serverClient{
		name:  "ops",
		entry: serverEntry{Command: "true"},
		tools: []ToolInfo{
			{Name: "shell", Description: "run a shell command"},
			{Name: "list_files", Description: "list files"},
		},
	}

	err := r.registerTools("ops", sc)
	if err == nil {
		t.Fatal("registerTools() should reject a qualified-name collision")
	}
	if toolReg.Has("mcp_ops_list_files") {
		t.Fatal("registerTools() must not register any tool from a rejected server")
	}
}

type fakeDomainTool struct{ name string }

func (f *fakeDomainTool) Name() string                    { return f.name }
func (f *fakeDomainTool) Description() string             { return "fake" }
func (f *fakeDomainTool) Kind() domaintool.Kind            { return domaintool.KindExecute }
func (f *fakeDomainTool) Schema() map[string]interface{}   { return map[string]interface{}{} }
func (f *fakeDomainTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	return &domaintool.Result{Success: true}, nil
}

// RemoveServer bumps the generation counter exactly once per successful
// removal, and a second removal of the same name fails without bumping it.
func TestRegistry_RemoveServer_BumpsGenerationOnce(t *testing.T) {
	r := newTestRegistry(t)
	r.servers["ops"] = &serverClient{name: "ops", entry: serverEntry{Command: "true"}}

	if err := r.RemoveServer("ops"); err != nil {
		t.Fatalf("RemoveServer() error = %v", err)
	}
	if r.Generation() != 1 {
		t.Fatalf("Generation() = %d, want 1 after one successful removal", r.Generation())
	}
	if err := r.RemoveServer("ops"); err == nil {
		t.Fatal("RemoveServer() on an already-removed name should error")
	}
	if r.Generation() != 1 {
		t.Fatalf("Generation() = %d, want unchanged at 1 after a failed removal", r.Generation())
	}
}
