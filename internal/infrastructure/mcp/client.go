// Package mcp implements the gateway's Model Context Protocol client
// registry: per-server stdio (primary) or SSE (optional) transport via
// github.com/mark3labs/mcp-go, a generation-counted snapshot-and-swap tool
// list, and mcp_<server>_<tool> namespacing that rejects collisions with
// built-in tool names.
package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

// ToolInfo mirrors one tool a connected server advertised.
type ToolInfo struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// serverClient wraps one live connection to one MCP server. Every method
// that touches cli performs its own locking at the Client layer (never
// here) — connect/discover/call are pure I/O, no lock is ever held across
// them.
type serverClient struct {
	name   string
	entry  serverEntry
	cli    client.MCPClient
	tools  []ToolInfo
	logger *zap.Logger
}

// serverEntry is the connection recipe for one server.
type serverEntry struct {
	Command string
	Args    []string
	Env     map[string]string
	SSEURL  string
	Enabled bool
}

func dial(ctx context.Context, name string, e serverEntry, logger *zap.Logger) (*serverClient, error) {
	var c client.MCPClient
	var err error

	if e.SSEURL != "" {
		c, err = client.NewSSEMCPClient(e.SSEURL)
	} else {
		env := make([]string, 0, len(e.Env))
		for k, v := range e.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		c, err = client.NewStdioMCPClient(e.Command, env, e.Args...)
	}
	if err != nil {
		return nil, fmt.Errorf("dial mcp server %s: %w", name, err)
	}

	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "zeroclaw-gateway", Version: "1.0.0"}
	if _, err := c.Initialize(initCtx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initialize mcp server %s: %w", name, err)
	}

	sc := &serverClient{name: name, entry: e, cli: c, logger: logger}
	if err := sc.discover(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return sc, nil
}

// discover paginates tools/list up to a bounded number of pages so a
// misbehaving server can't force unbounded memory growth.
func (s *serverClient) discover(ctx context.Context) error {
	const maxPages = 50
	var tools []ToolInfo
	cursor := ""
	for page := 0; page < maxPages; page++ {
		req := mcp.ListToolsRequest{}
		if cursor != "" {
			req.Params.Cursor = mcp.Cursor(cursor)
		}
		dctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		res, err := s.cli.ListTools(dctx, req)
		cancel()
		if err != nil {
			return fmt.Errorf("list tools for %s: %w", s.name, err)
		}
		for _, t := range res.Tools {
			schema := map[string]interface{}{"type": "object"}
			tools = append(tools, ToolInfo{Name: t.Name, Description: t.Description, InputSchema: schema})
		}
		if res.NextCursor == "" {
			break
		}
		cursor = string(res.NextCursor)
	}
	s.tools = tools
	return nil
}

// call invokes one tool with a per-call timeout. On a deadline it logs a
// warning and returns the wrapped error; no cancellation notification is
// sent to the server.
func (s *serverClient) call(ctx context.Context, toolName string, args map[string]interface{}, timeout time.Duration) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := mcp.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = args

	res, err := s.cli.CallTool(cctx, req)
	if err != nil {
		if cctx.Err() != nil {
			s.logger.Warn("mcp tool call timed out", zap.String("server", s.name), zap.String("tool", toolName))
		}
		return "", fmt.Errorf("call %s on %s: %w", toolName, s.name, err)
	}

	var out string
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			out += tc.Text
		}
	}
	if res.IsError {
		return out, fmt.Errorf("mcp tool %s reported an error", toolName)
	}
	return out, nil
}

func (s *serverClient) close() error {
	return s.cli.Close()
}
