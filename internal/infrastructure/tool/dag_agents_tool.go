package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	domainagent "github.com/zeroclaw/gateway/internal/domain/agent"
	"github.com/zeroclaw/gateway/internal/domain/service"
	domaintool "github.com/zeroclaw/gateway/internal/domain/tool"
	"go.uber.org/zap"
)

// ParallelSubAgentsTool runs several sub-agent tasks as one dependency
// graph, executing independent tasks concurrently and feeding a task's
// result forward as context once the tasks it depends on complete.
// spawn_agent (SubAgentTool) stays for the common one-off case; this is
// for a caller that already knows the whole task graph up front.
type ParallelSubAgentsTool struct {
	llm             service.LLMClient
	tools           service.ToolExecutor
	defaultModel    string
	defaultMaxSteps int
	timeout         time.Duration
	maxParallel     int
	logger          *zap.Logger
}

// NewParallelSubAgentsTool builds the spawn_agents tool over the same
// LLM client / tool executor pair SubAgentTool uses.
func NewParallelSubAgentsTool(llm service.LLMClient, tools service.ToolExecutor, defaultModel string, maxSteps int, timeout time.Duration, maxParallel int, logger *zap.Logger) *ParallelSubAgentsTool {
	if maxSteps <= 0 {
		maxSteps = 25
	}
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	if maxParallel <= 0 {
		maxParallel = 4
	}
	return &ParallelSubAgentsTool{
		llm:             llm,
		tools:           tools,
		defaultModel:    defaultModel,
		defaultMaxSteps: maxSteps,
		timeout:         timeout,
		maxParallel:     maxParallel,
		logger:          logger,
	}
}

func (t *ParallelSubAgentsTool) Name() string         { return "spawn_agents" }
func (t *ParallelSubAgentsTool) Kind() domaintool.Kind { return domaintool.KindExecute }

func (t *ParallelSubAgentsTool) Description() string {
	return "Run a batch of sub-agent tasks as a dependency graph. Each task gets its own id; " +
		"a task may list depends_on ids whose results are fed to it as prior context. Tasks with " +
		"no unresolved dependencies run concurrently (up to a parallelism cap). Use this instead of " +
		"repeated spawn_agent calls when the sub-tasks' ordering is known up front, e.g. research " +
		"three independent topics in parallel then have a fourth task synthesize them."
}

func (t *ParallelSubAgentsTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"agents": map[string]interface{}{
				"type":        "array",
				"description": "the task graph to execute",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id": map[string]interface{}{
							"type":        "string",
							"description": "unique id for this task, referenced by other tasks' depends_on",
						},
						"task": map[string]interface{}{
							"type":        "string",
							"description": "the sub-task description",
						},
						"system_prompt": map[string]interface{}{
							"type":        "string",
							"description": "optional system prompt for this task's agent",
						},
						"depends_on": map[string]interface{}{
							"type":        "array",
							"items":       map[string]interface{}{"type": "string"},
							"description": "ids of tasks that must complete before this one starts",
						},
					},
					"required": []string{"id", "task"},
				},
			},
		},
		"required": []string{"agents"},
	}
}

func (t *ParallelSubAgentsTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	rawAgents, ok := args["agents"].([]interface{})
	if !ok || len(rawAgents) == 0 {
		return &domaintool.Result{Success: false, Error: "agents is required and must be a non-empty array"}, nil
	}

	depth := 0
	if d, ok := ctx.Value(depthKey{}).(int); ok {
		depth = d
	}
	if depth >= 2 {
		return &domaintool.Result{Success: false, Error: "sub-agent nesting depth limit reached (max 2 levels)"}, nil
	}

	nodes := make([]*domainagent.DAGNode, 0, len(rawAgents))
	prompts := make(map[string]string, len(rawAgents))
	for i, raw := range rawAgents {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return &domaintool.Result{Success: false, Error: fmt.Sprintf("agents[%d] must be an object", i)}, nil
		}
		id, _ := m["id"].(string)
		task, _ := m["task"].(string)
		if id == "" || task == "" {
			return &domaintool.Result{Success: false, Error: fmt.Sprintf("agents[%d] requires id and task", i)}, nil
		}
		systemPrompt, _ := m["system_prompt"].(string)
		prompts[id] = systemPrompt

		var deps []string
		if rawDeps, ok := m["depends_on"].([]interface{}); ok {
			for _, d := range rawDeps {
				if s, ok := d.(string); ok && s != "" {
					deps = append(deps, s)
				}
			}
		}

		cfg := domainagent.DefaultSpawnConfig(id)
		cfg.SystemPrompt = systemPrompt
		cfg.Timeout = t.timeout
		nodes = append(nodes, &domainagent.DAGNode{
			ID:           id,
			AgentConfig:  cfg,
			Dependencies: deps,
			Metadata:     map[string]string{"input": task},
		})
	}

	spawner := domainagent.NewInMemorySpawner(t.logger, 3)
	subCtx := context.WithValue(ctx, depthKey{}, depth+1)

	executor := domainagent.NewDAGExecutor(spawner, t.runNode(prompts), domainagent.DAGConfig{
		MaxParallel: t.maxParallel,
	}, t.logger)

	t.logger.Info("Spawning parallel sub-agent graph", zap.Int("tasks", len(nodes)), zap.Int("depth", depth+1))

	results, err := executor.Execute(subCtx, nodes)
	if err != nil {
		return &domaintool.Result{Success: false, Error: fmt.Sprintf("dag execution aborted: %v", err)}, nil
	}

	var sb strings.Builder
	sb.WriteString("=== Parallel Sub-Agent Results ===\n\n")
	for _, n := range nodes {
		sb.WriteString(fmt.Sprintf("--- %s (%s) ---\n", n.ID, n.Status.String()))
		sb.WriteString(results[n.ID])
		sb.WriteString("\n\n")
	}

	return &domaintool.Result{
		Output:   sb.String(),
		Success:  true,
		Metadata: map[string]interface{}{"results": results},
	}, nil
}

// runNode adapts a DAG node execution onto AgentLoop, the same way
// SubAgentTool does for a single task — DAGExecutor only knows about
// the Spawner/SpawnedAgent abstraction, not AgentLoop itself.
func (t *ParallelSubAgentsTool) runNode(prompts map[string]string) func(ctx context.Context, agent *domainagent.SpawnedAgent, input string) (string, error) {
	return func(ctx context.Context, agent *domainagent.SpawnedAgent, input string) (string, error) {
		agent.SetStatus(domainagent.AgentStatusRunning)
		defer agent.SetStatus(domainagent.AgentStatusCompleted)

		cfg := service.AgentLoopConfig{
			DoomLoopThreshold: 3,
			MaxOutputChars:    32000,
			Temperature:       0.7,
			Model:             t.defaultModel,
			RunTimeout:        t.timeout,
		}
		loop := service.NewAgentLoop(t.llm, t.tools, cfg, t.logger.Named("dag-agent").With(zap.String("node", agent.Name)))

		runCtx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()

		result, eventCh := loop.Run(runCtx, prompts[agent.Name], input, nil, nil)
		for range eventCh {
			// drained, not streamed to the caller
		}
		return result.FinalContent, nil
	}
}
