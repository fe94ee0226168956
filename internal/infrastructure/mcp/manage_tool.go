package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	domaintool "github.com/zeroclaw/gateway/internal/domain/tool"
)

// ManageTool exposes add/remove/list/refresh as the mcp_manage tool. add is
// gated behind the highest autonomy level (it spawns an arbitrary
// subprocess); remove/list/refresh are unrestricted since they only affect
// servers already present in mcp.json.
type ManageTool struct {
	reg            *Registry
	highestAutonomy func() bool
}

// NewManageTool builds the mcp_manage tool. highestAutonomy reports whether
// the current session is permitted to run the "add" action.
func NewManageTool(reg *Registry, highestAutonomy func() bool) *ManageTool {
	return &ManageTool{reg: reg, highestAutonomy: highestAutonomy}
}

var _ domaintool.Tool = (*ManageTool)(nil)

func (t *ManageTool) Name() string         { return "mcp_manage" }
func (t *ManageTool) Kind() domaintool.Kind { return domaintool.KindFetch }
func (t *ManageTool) Description() string {
	return "Manage MCP servers: add, remove, list, or refresh. 'add' requires the highest autonomy level since it spawns a subprocess."
}

func (t *ManageTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action":  map[string]interface{}{"type": "string", "enum": []string{"add", "remove", "list", "refresh"}},
			"name":    map[string]interface{}{"type": "string"},
			"command": map[string]interface{}{"type": "string"},
			"args":    map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			"env":     map[string]interface{}{"type": "object"},
			"sse_url": map[string]interface{}{"type": "string"},
		},
		"required": []string{"action"},
	}
}

func (t *ManageTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	action, _ := args["action"].(string)
	switch action {
	case "add":
		return t.executeAdd(ctx, args)
	case "remove":
		return t.executeRemove(args)
	case "list":
		return t.executeList()
	case "refresh":
		return t.executeRefresh(ctx, args)
	default:
		return &domaintool.Result{Success: false, Error: fmt.Sprintf("unknown action: %s", action)}, nil
	}
}

func (t *ManageTool) executeAdd(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	if t.highestAutonomy != nil && !t.highestAutonomy() {
		return &domaintool.Result{Success: false, Error: "mcp_manage add requires the highest autonomy level"}, nil
	}
	name, _ := args["name"].(string)
	command, _ := args["command"].(string)
	sseURL, _ := args["sse_url"].(string)
	if name == "" || (command == "" && sseURL == "") {
		return &domaintool.Result{Success: false, Error: "name and (command or sse_url) are required"}, nil
	}

	var argv []string
	if raw, ok := args["args"].([]interface{}); ok {
		for _, a := range raw {
			if s, ok := a.(string); ok {
				argv = append(argv, s)
			}
		}
	}
	env := map[string]string{}
	if raw, ok := args["env"].(map[string]interface{}); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				env[k] = s
			}
		}
	}

	if err := t.reg.AddServer(ctx, name, serverEntry{Command: command, Args: argv, Env: env, SSEURL: sseURL, Enabled: true}); err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	return &domaintool.Result{Success: true, Output: fmt.Sprintf("mcp server %q added", name)}, nil
}

func (t *ManageTool) executeRemove(args map[string]interface{}) (*domaintool.Result, error) {
	name, _ := args["name"].(string)
	if name == "" {
		return &domaintool.Result{Success: false, Error: "name is required"}, nil
	}
	if err := t.reg.RemoveServer(name); err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	return &domaintool.Result{Success: true, Output: fmt.Sprintf("mcp server %q removed", name)}, nil
}

func (t *ManageTool) executeList() (*domaintool.Result, error) {
	infos := t.reg.ListServers()
	data, _ := json.Marshal(infos)
	return &domaintool.Result{Success: true, Output: string(data)}, nil
}

func (t *ManageTool) executeRefresh(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	name, _ := args["name"].(string)
	if name == "" {
		return &domaintool.Result{Success: false, Error: "name is required"}, nil
	}
	if err := t.reg.RefreshServer(ctx, name); err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	return &domaintool.Result{Success: true, Output: fmt.Sprintf("mcp server %q refreshed", name)}, nil
}
