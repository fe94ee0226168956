package service

import (
	"context"
	"strings"
	"testing"

	"github.com/zeroclaw/gateway/internal/domain/entity"
	"github.com/zeroclaw/gateway/internal/domain/hook"
	domaintool "github.com/zeroclaw/gateway/internal/domain/tool"
	"go.uber.org/zap"
)

// scriptedLLM replays one canned response per call, in order, ignoring the
// request content — enough to drive AgentLoop through a known turn shape
// without a real provider.
type scriptedLLM struct {
	responses []*LLMResponse
	calls     int
}

func (s *scriptedLLM) Generate(ctx context.Context, req *LLMRequest) (*LLMResponse, error) {
	if s.calls >= len(s.responses) {
		return &LLMResponse{Content: "done"}, nil
	}
	r := s.responses[s.calls]
	s.calls++
	return r, nil
}

func (s *scriptedLLM) GenerateStream(ctx context.Context, req *LLMRequest, deltaCh chan<- StreamChunk) (*LLMResponse, error) {
	return s.Generate(ctx, req)
}

// stubTools echoes its single "echo" tool's argument back as output.
type stubTools struct{}

func (stubTools) Execute(ctx context.Context, name string, args map[string]interface{}) (*domaintool.Result, error) {
	if name == "echo" {
		text, _ := args["text"].(string)
		return &domaintool.Result{Output: text, Success: true}, nil
	}
	return &domaintool.Result{Output: "", Success: true}, nil
}

func (stubTools) GetDefinitions() []domaintool.Definition {
	return []domaintool.Definition{{Name: "echo", Description: "echoes input"}}
}

func (stubTools) GetToolKind(name string) domaintool.Kind { return domaintool.KindExecute }

func drainEvents(ch <-chan entity.AgentEvent) []entity.AgentEvent {
	var events []entity.AgentEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

// Tool loop terminates (spec.md §8 scenario 1): one assistant message with
// one tool call, a tool result, then a final "done" — the turn ends with
// that text and every step is accounted for.
func TestAgentLoop_ToolLoopTerminates(t *testing.T) {
	llm := &scriptedLLM{responses: []*LLMResponse{
		{Content: "", ToolCalls: []entity.ToolCallInfo{{ID: "call_1", Name: "echo", Arguments: map[string]interface{}{"text": "hi"}}}},
		{Content: "done"},
	}}
	loop := NewAgentLoop(llm, stubTools{}, DefaultAgentLoopConfig(), zap.NewNop())

	result, eventCh := loop.Run(context.Background(), "sys", "hello", nil, "")
	drainEvents(eventCh)

	if result.FinalContent != "done" {
		t.Fatalf("FinalContent = %q, want %q", result.FinalContent, "done")
	}
	if result.TotalSteps != 2 {
		t.Fatalf("TotalSteps = %d, want 2", result.TotalSteps)
	}
	if len(result.ToolsUsed) != 1 || result.ToolsUsed[0] != "echo" {
		t.Fatalf("ToolsUsed = %v, want [echo]", result.ToolsUsed)
	}
}

// Draft clear sentinel (spec.md §8 scenario 3): the turn loop must emit
// EventDraftClear exactly once, immediately before EventDone, regardless of
// whether any text was streamed along the way.
func TestAgentLoop_DraftClearSentinel(t *testing.T) {
	llm := &scriptedLLM{responses: []*LLMResponse{{Content: "final text"}}}
	loop := NewAgentLoop(llm, stubTools{}, DefaultAgentLoopConfig(), zap.NewNop())

	_, eventCh := loop.Run(context.Background(), "sys", "hello", nil, "")
	events := drainEvents(eventCh)

	clearIdx, doneIdx, clearCount := -1, -1, 0
	for i, ev := range events {
		switch ev.Type {
		case entity.EventDraftClear:
			clearIdx = i
			clearCount++
		case entity.EventDone:
			doneIdx = i
		}
	}
	if clearIdx == -1 {
		t.Fatal("EventDraftClear was never emitted")
	}
	if doneIdx == -1 {
		t.Fatal("EventDone was never emitted")
	}
	if clearCount != 1 {
		t.Fatalf("EventDraftClear emitted %d times, want 1", clearCount)
	}
	if clearIdx != doneIdx-1 {
		t.Fatalf("EventDraftClear (idx %d) must immediately precede EventDone (idx %d)", clearIdx, doneIdx)
	}
}

// Hook cancels tool execution (spec.md §8 scenario 6): a before_tool_call
// hook that cancels for tool "danger" blocks only that tool; other tools in
// the same batch still run, and the turn still completes normally.
func TestAgentLoop_HookCancelsToolExecution(t *testing.T) {
	llm := &scriptedLLM{responses: []*LLMResponse{
		{Content: "", ToolCalls: []entity.ToolCallInfo{
			{ID: "call_1", Name: "danger", Arguments: map[string]interface{}{}},
			{ID: "call_2", Name: "echo", Arguments: map[string]interface{}{"text": "safe"}},
		}},
		{Content: "done"},
	}}
	loop := NewAgentLoop(llm, stubTools{}, DefaultAgentLoopConfig(), zap.NewNop())

	registry := hook.NewRegistry(zap.NewNop())
	registry.AddStaticAt(hook.BeforeToolCall, hook.NewStaticHandler(
		"block-danger", hook.Modifying, 0,
		func(ctx context.Context, ev hook.Event) hook.Verdict {
			call, ok := ev.Value.(hookToolCall)
			if ok && call.Name == "danger" {
				return hook.Cancel("dangerous tool")
			}
			return hook.Continue(ev.Value)
		},
	))
	loop.SetHookRegistry(registry)

	_, eventCh := loop.Run(context.Background(), "sys", "hello", nil, "")
	events := drainEvents(eventCh)

	var sawDangerResult, sawEchoResult bool
	for _, ev := range events {
		if ev.Type != entity.EventToolResult || ev.ToolCall == nil {
			continue
		}
		switch ev.ToolCall.Name {
		case "danger":
			sawDangerResult = true
			if ev.ToolCall.Success {
				t.Fatal("cancelled tool must not report success")
			}
		case "echo":
			sawEchoResult = true
			if !ev.ToolCall.Success || ev.ToolCall.Output != "safe" {
				t.Fatalf("echo result = %+v, want success with output %q", ev.ToolCall, "safe")
			}
		}
	}
	if !sawDangerResult {
		t.Fatal("expected a synthetic result for the cancelled 'danger' tool call")
	}
	if !sawEchoResult {
		t.Fatal("expected the sibling 'echo' tool call to still execute")
	}
}

// fakeCapabilitySource drives the Skill hot reload scenario (spec.md §8
// scenario 4) without depending on the real mcp/skill infrastructure
// packages — only the CapabilitySource seam AgentLoop depends on.
type fakeCapabilitySource struct {
	generation int64
	dirty      bool
	rendered   string
}

func (f *fakeCapabilitySource) Snapshot() (int64, bool) { return f.generation, f.dirty }
func (f *fakeCapabilitySource) Render() string          { return f.rendered }

func TestAgentLoop_SkillHotReloadCapabilityRefresh(t *testing.T) {
	llm := &scriptedLLM{responses: []*LLMResponse{{Content: "done"}}}
	loop := NewAgentLoop(llm, stubTools{}, DefaultAgentLoopConfig(), zap.NewNop())

	caps := &fakeCapabilitySource{generation: 0, dirty: true, rendered: "Skill: foo — Foo does things"}
	loop.SetCapabilitySource(caps)

	capturedReq := make(chan *LLMRequest, 1)
	wrapped := &capturingLLM{inner: llm, captured: capturedReq}
	loop.llm = wrapped

	_, eventCh := loop.Run(context.Background(), "base system prompt", "hello", nil, "")
	drainEvents(eventCh)

	select {
	case req := <-capturedReq:
		found := false
		for _, m := range req.Messages {
			if m.Role == "system" && strings.Contains(m.Content, "Foo") {
				found = true
			}
		}
		if !found {
			t.Fatalf("system prompt missing rendered capability text: %+v", req.Messages)
		}
	default:
		t.Fatal("LLM was never called")
	}
}

type capturingLLM struct {
	inner    LLMClient
	captured chan *LLMRequest
}

func (c *capturingLLM) Generate(ctx context.Context, req *LLMRequest) (*LLMResponse, error) {
	select {
	case c.captured <- req:
	default:
	}
	return c.inner.Generate(ctx, req)
}

func (c *capturingLLM) GenerateStream(ctx context.Context, req *LLMRequest, deltaCh chan<- StreamChunk) (*LLMResponse, error) {
	select {
	case c.captured <- req:
	default:
	}
	return c.inner.GenerateStream(ctx, req, deltaCh)
}
