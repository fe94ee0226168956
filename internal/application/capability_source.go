package application

import (
	"fmt"
	"strings"

	domainskill "github.com/zeroclaw/gateway/internal/domain/skill"
	"github.com/zeroclaw/gateway/internal/infrastructure/mcp"
)

// agentCapabilitySource adapts the process's mcp.Registry and skill.Store —
// both infrastructure types — to the service.CapabilitySource interface
// AgentLoop depends on, keeping the domain/service layer free of an
// infrastructure import.
type agentCapabilitySource struct {
	mcpRegistry *mcp.Registry
	skillStore  *domainskill.Store
}

func newAgentCapabilitySource(mcpRegistry *mcp.Registry, skillStore *domainskill.Store) *agentCapabilitySource {
	return &agentCapabilitySource{mcpRegistry: mcpRegistry, skillStore: skillStore}
}

func (s *agentCapabilitySource) Snapshot() (int64, bool) {
	var gen int64
	if s.mcpRegistry != nil {
		gen = s.mcpRegistry.Generation()
	}
	var dirty bool
	if s.skillStore != nil {
		dirty = s.skillStore.Dirty()
	}
	return gen, dirty
}

func (s *agentCapabilitySource) Render() string {
	var b strings.Builder
	b.WriteString("Live capabilities (auto-refreshed; do not hand-edit this block):\n")

	if s.mcpRegistry != nil {
		servers := s.mcpRegistry.ListServers()
		if len(servers) == 0 {
			b.WriteString("- MCP servers: none connected\n")
		} else {
			b.WriteString("- MCP servers:\n")
			for _, srv := range servers {
				status := "disconnected"
				if srv.Connected {
					status = "connected"
				}
				fmt.Fprintf(&b, "  - %s (%s, %d tools, mcp_%s_*)\n", srv.Name, status, srv.ToolCount, srv.Name)
			}
		}
	}

	if s.skillStore != nil {
		skills := s.skillStore.Enabled()
		s.skillStore.ClearDirty()
		if len(skills) == 0 {
			b.WriteString("- Skills: none enabled\n")
		} else {
			b.WriteString("- Skills:\n")
			for _, sk := range skills {
				desc := sk.Description
				if desc == "" {
					desc = "(no description)"
				}
				fmt.Fprintf(&b, "  - %s: %s\n", sk.Name, desc)
			}
		}
	}

	return b.String()
}
