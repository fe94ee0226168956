// Package hook implements the agent's lifecycle hook dispatch: a priority
// ordered chain of static (compiled-in) and dynamic (HOOK.toml-declared)
// handlers, fired at named points in the agent turn.
package hook

import (
	"context"
	"fmt"
)

// Point names a lifecycle point a hook can attach to.
type Point string

const (
	OnSessionStart  Point = "on_session_start"
	BeforePromptBuild Point = "before_prompt_build"
	BeforeLLMCall   Point = "before_llm_call"
	OnLLMOutput     Point = "on_llm_output"
	BeforeToolCall  Point = "before_tool_call"
	OnAfterToolCall Point = "on_after_tool_call"
	OnCronDelivery  Point = "on_cron_delivery"
	OnSessionEnd    Point = "on_session_end"
)

// Kind distinguishes hooks that may rewrite the value flowing through a
// point (Modifying) from those that only observe it (Void). A Void hook's
// return value is ignored even if the hook author still implements Run.
type Kind int

const (
	Void Kind = iota
	Modifying
)

// Origin records whether a hook came from compiled-in Go code or from a
// HOOK.toml manifest loaded at runtime.
type Origin int

const (
	Static Origin = iota
	Dynamic
)

// Event carries the payload a hook observes or rewrites at a given point.
// Value holds point-specific data (an *LLMRequest, a tool name+args pair,
// prompt text, ...); handlers type-assert on what they expect and ignore
// the rest.
type Event struct {
	Point     Point
	SessionID string
	Step      int
	Value     interface{}
}

// Verdict is what a hook returns from Run.
type Verdict struct {
	// Cancelled, when true, aborts the remaining chain for this point and
	// the operation the point guards (e.g. BeforeToolCall cancelling the
	// pending tool execution).
	Cancelled bool
	// Reason explains a cancellation; surfaced to the caller as a
	// *CancelledError returned by Registry.Dispatch.
	Reason string
	// Value is the (possibly rewritten) payload, used only for Modifying
	// hooks — the registry feeds it to the next handler in the chain and
	// returns it to the caller once the chain completes.
	Value interface{}
}

// Continue returns a non-cancelling verdict carrying value unchanged (or
// rewritten, for a Modifying hook).
func Continue(value interface{}) Verdict {
	return Verdict{Value: value}
}

// Cancel returns a verdict that stops the chain at this point.
func Cancel(reason string) Verdict {
	return Verdict{Cancelled: true, Reason: reason}
}

// Handler is a single hook implementation.
type Handler interface {
	Name() string
	Kind() Kind
	Priority() int // higher runs first
	Origin() Origin
	Run(ctx context.Context, ev Event) Verdict
}

// CancelledError is returned by Dispatch when a handler cancels the chain.
type CancelledError struct {
	Point   Point
	Handler string
	Reason  string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("hook %q cancelled %s: %s", e.Handler, e.Point, e.Reason)
}

// funcHandler adapts a plain function into a Handler, for compiled-in
// hooks that don't need their own type.
type funcHandler struct {
	name     string
	kind     Kind
	priority int
	origin   Origin
	fn       func(ctx context.Context, ev Event) Verdict
}

func (f *funcHandler) Name() string     { return f.name }
func (f *funcHandler) Kind() Kind       { return f.kind }
func (f *funcHandler) Priority() int    { return f.priority }
func (f *funcHandler) Origin() Origin   { return f.origin }
func (f *funcHandler) Run(ctx context.Context, ev Event) Verdict { return f.fn(ctx, ev) }

// NewStaticHandler builds a compiled-in Handler from a function.
func NewStaticHandler(name string, kind Kind, priority int, fn func(context.Context, Event) Verdict) Handler {
	return &funcHandler{name: name, kind: kind, priority: priority, origin: Static, fn: fn}
}
