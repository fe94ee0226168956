package tool

import (
	"os"
	"time"

	domainmemory "github.com/zeroclaw/gateway/internal/domain/memory"
	domainskill "github.com/zeroclaw/gateway/internal/domain/skill"
	"github.com/zeroclaw/gateway/internal/domain/service"
	domaintool "github.com/zeroclaw/gateway/internal/domain/tool"
	"github.com/zeroclaw/gateway/internal/infrastructure/mcp"
	"github.com/zeroclaw/gateway/internal/infrastructure/sandbox"
	skillinfra "github.com/zeroclaw/gateway/internal/infrastructure/skill"
	"go.uber.org/zap"
)

// ToolLayerDeps aggregates all external dependencies needed by the tool layer.
// This is the single configuration point for the entire tool subsystem.
type ToolLayerDeps struct {
	// Required
	Registry domaintool.Registry
	Logger   *zap.Logger

	// Infrastructure
	Sandbox   *sandbox.ProcessSandbox // nil = tools run unsandboxed
	SkillExec SkillExecutor           // nil = browser tools disabled

	// Paths
	PythonEnv string // conda/venv path for Python-based tools
	SkillsDir string // ~/.zeroclaw/skills

	// Research LLM (used by web_search/stock_analysis for summarization)
	ResearchLLMURL   string
	ResearchLLMKey   string
	ResearchLLMModel string

	// Code Intelligence
	Workspace string // LSP workspace root

	// MCP
	MCPRegistry     *mcp.Registry // nil = no MCP support
	HighestAutonomy func() bool   // gates mcp_manage's "add" action

	// Skills
	SkillStore         *domainskill.Store // nil = skill_manage not registered
	SkillsRequireAudit bool

	// Media (nil = media tools not registered, e.g. CLI mode)
	MediaSender MediaSender

	// Sub-Agent (nil = sub_agent tool not registered)
	SubAgent *SubAgentDeps

	// Parallel Sub-Agent graph (nil = spawn_agents tool not registered)
	ParallelSubAgents *ParallelSubAgentsDeps

	// Semantic memory (nil = remember/recall tools not registered)
	SemanticRecall *SemanticRecallDeps
}

// SubAgentDeps holds dependencies for the sub_agent tool.
type SubAgentDeps struct {
	LLMClient    service.LLMClient
	ToolExecutor service.ToolExecutor
	DefaultModel string
	MaxSteps     int
	Timeout      time.Duration
}

// ParallelSubAgentsDeps holds dependencies for the spawn_agents tool.
type ParallelSubAgentsDeps struct {
	LLMClient    service.LLMClient
	ToolExecutor service.ToolExecutor
	DefaultModel string
	MaxSteps     int
	Timeout      time.Duration
	MaxParallel  int
}

// RegisterAllTools registers all tools in one place. This is the ONLY
// tool registration entry point. Adding a new tool? Add it here.
//
// Registration order:
//  1. Core file operations (bash, read, write, edit, list, grep, glob)
//  2. Advanced (apply_patch, web_fetch)
//  3. Web & data (web_search, stock_analysis)
//  4. Browser (navigate, screenshot, click, type)
//  5. Code intelligence (repo_map, git, lint_fix, lsp)
//  6. Agent capabilities (save_memory, update_plan, sub_agent)
//  7. MCP management (mcp_manage + dynamic MCP server tools)
//  8. Skill management (skill_manage)
func RegisterAllTools(deps ToolLayerDeps) int {
	var tools []domaintool.Tool

	// ── 1. Core File Operations ──
	tools = append(tools,
		NewBashTool(deps.Sandbox, deps.Logger),
		NewReadFileTool(deps.Sandbox, deps.Logger),
		NewWriteFileTool(deps.Sandbox, deps.Logger),
		NewEditFileTool(deps.Sandbox, deps.Logger),
		NewListDirTool(deps.Sandbox, deps.Logger),
		NewSearchTool(deps.Sandbox, deps.Logger),
		NewGlobTool(deps.Sandbox, deps.Logger),
	)

	// ── 2. Advanced ──
	tools = append(tools,
		NewApplyPatchTool(deps.Sandbox, deps.Logger),
		NewWebFetchTool(deps.Sandbox, deps.Logger),
	)

	// ── 3. Web & Data ──
	tools = append(tools,
		NewWebSearchTool(deps.PythonEnv, deps.SkillsDir, deps.Logger),
		NewStockAnalysisTool(deps.PythonEnv, deps.SkillsDir, deps.Logger),
	)

	// ── 4. Browser (gRPC delegate) ──
	tools = append(tools,
		NewBrowserNavigateTool(deps.SkillExec, deps.Logger),
		NewBrowserScreenshotTool(deps.SkillExec, deps.Logger),
		NewBrowserClickTool(deps.SkillExec, deps.Logger),
		NewBrowserTypeTool(deps.SkillExec, deps.Logger),
	)

	// ── 5. Code Intelligence ──
	tools = append(tools, NewRepoMapTool(deps.Logger))

	workspace := deps.Workspace
	if workspace == "" {
		workspace, _ = os.Getwd()
	}
	tools = append(tools, NewLSPTool(workspace, deps.Logger))

	if deps.Sandbox != nil {
		tools = append(tools,
			NewGitTool(deps.Sandbox, deps.Logger),
			NewLintFixTool(deps.Sandbox, deps.Logger),
		)
	}

	// ── 6. Agent Capabilities ──
	tools = append(tools,
		NewSaveMemoryTool(deps.Logger),
		NewUpdatePlanTool(deps.Logger),
	)

	if deps.SemanticRecall != nil {
		manager := domainmemory.NewMemoryManager(deps.SemanticRecall.Store, deps.SemanticRecall.Embedder)
		tools = append(tools,
			NewRememberTool(manager, deps.Logger),
			NewRecallTool(manager, deps.Logger),
		)
	}

	// ── 6b. Media (TG only) ──
	if deps.MediaSender != nil {
		tools = append(tools,
			NewSendPhotoTool(deps.MediaSender, deps.Logger),
			NewSendDocumentTool(deps.MediaSender, deps.Logger),
		)
	}

	if deps.SubAgent != nil {
		sa := deps.SubAgent
		tools = append(tools, NewSubAgentTool(
			sa.LLMClient,
			sa.ToolExecutor,
			sa.DefaultModel,
			sa.MaxSteps,
			sa.Timeout,
			deps.Logger,
		))
	}

	if deps.ParallelSubAgents != nil {
		pa := deps.ParallelSubAgents
		tools = append(tools, NewParallelSubAgentsTool(
			pa.LLMClient,
			pa.ToolExecutor,
			pa.DefaultModel,
			pa.MaxSteps,
			pa.Timeout,
			pa.MaxParallel,
			deps.Logger,
		))
	}

	// ── 7. MCP Management ──
	if deps.MCPRegistry != nil {
		tools = append(tools, mcp.NewManageTool(deps.MCPRegistry, deps.HighestAutonomy))
	}

	// ── 8. Skill Management ──
	if deps.SkillStore != nil {
		tools = append(tools, skillinfra.NewManageTool(deps.SkillStore, deps.SkillsRequireAudit))
	}

	// ── Register everything ──
	registered := 0
	for _, t := range tools {
		if err := deps.Registry.Register(t); err != nil {
			deps.Logger.Warn("Failed to register tool",
				zap.String("tool", t.Name()),
				zap.Error(err),
			)
		} else {
			deps.Logger.Info("Registered tool", zap.String("tool", t.Name()))
			registered++
		}
	}

	// ── MCP servers (hot-plugged from mcp.json) ──
	if deps.MCPRegistry != nil {
		deps.MCPRegistry.InitFromConfig()
	}

	deps.Logger.Info("Tool layer initialized",
		zap.Int("total_registered", registered),
	)

	return registered
}
