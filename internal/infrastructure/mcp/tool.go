package mcp

import (
	"context"
	"fmt"

	domaintool "github.com/zeroclaw/gateway/internal/domain/tool"
)

// wrappedTool adapts one discovered MCP tool to domaintool.Tool under its
// qualified mcp_<server>_<tool> name.
type wrappedTool struct {
	reg       *Registry
	server    string
	info      ToolInfo
	qualified string
}

func newTool(reg *Registry, server string, info ToolInfo, qualified string) *wrappedTool {
	return &wrappedTool{reg: reg, server: server, info: info, qualified: qualified}
}

var _ domaintool.Tool = (*wrappedTool)(nil)

func (t *wrappedTool) Name() string        { return t.qualified }
func (t *wrappedTool) Description() string  { return fmt.Sprintf("[mcp:%s] %s", t.server, t.info.Description) }
func (t *wrappedTool) Kind() domaintool.Kind { return domaintool.KindFetch }
func (t *wrappedTool) Schema() map[string]interface{} {
	if t.info.InputSchema != nil {
		return t.info.InputSchema
	}
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}

func (t *wrappedTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	out, err := t.reg.callTool(ctx, t.server, t.info.Name, args)
	if err != nil {
		return &domaintool.Result{Output: err.Error(), Success: false, Error: err.Error()}, nil
	}
	return &domaintool.Result{Output: out, Success: true}, nil
}
