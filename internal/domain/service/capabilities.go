package service

import (
	"fmt"
	"strings"
)

// CapabilitySource is the domain-facing view of whatever infrastructure owns
// MCP servers and skills. AgentLoop depends only on this interface — the
// concrete adapter (backed by mcp.Registry and skill.Store) lives in
// internal/application so the domain layer never imports infrastructure.
type CapabilitySource interface {
	// Snapshot reports the MCP generation counter and whether the skill
	// store has unconsumed changes, without clearing anything. AgentLoop
	// compares Generation against its last-seen value to decide whether a
	// refresh is needed at all.
	Snapshot() (mcpGeneration int64, skillsDirty bool)

	// Render builds the (unfenced) text describing the current MCP tool set
	// and enabled skills — AgentLoop sanitizes and wraps it in the fenced
	// sentinel itself. Render clears the skill store's dirty flag as a
	// side effect (mirroring the MCP registry's generation counter, which
	// only ever increases and needs no explicit ack).
	Render() string
}

const (
	capabilityBlockBegin = "<!-- zeroclaw:capabilities:begin -->"
	capabilityBlockEnd   = "<!-- zeroclaw:capabilities:end -->"

	maxCapabilityDescLen = 400
)

// spliceCapabilityBlock replaces any previously-injected capability block in
// prompt (located by its fixed sentinel pair) with block, or appends block if
// no sentinel is present yet. The sentinel pair gives refreshCapabilities an
// unambiguous span to cut regardless of what the agent-authored system
// prompt around it looks like.
func spliceCapabilityBlock(prompt, block string) string {
	start := strings.Index(prompt, capabilityBlockBegin)
	if start == -1 {
		if prompt == "" {
			return block
		}
		return prompt + "\n\n" + block
	}
	end := strings.Index(prompt[start:], capabilityBlockEnd)
	if end == -1 {
		// Malformed/truncated previous block — drop everything from the
		// opening sentinel onward and append a clean one.
		return strings.TrimRight(prompt[:start], "\n") + "\n\n" + block
	}
	end = start + end + len(capabilityBlockEnd)
	return strings.TrimRight(prompt[:start], "\n") + block + prompt[end:]
}

// sanitizeCapabilityText strips control characters that would break out of
// the fenced block (or confuse a model into thinking the block ended early)
// and truncates to maxLen.
func sanitizeCapabilityText(s string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' || r >= 0x20 {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if maxLen > 0 && len(out) > maxLen {
		out = out[:maxLen] + "..."
	}
	return out
}

// wrapCapabilityBlock wraps body in the fenced sentinel pair so it can be
// located and replaced on the next refresh.
func wrapCapabilityBlock(body string) string {
	return fmt.Sprintf("%s\n%s\n%s", capabilityBlockBegin, strings.TrimRight(body, "\n"), capabilityBlockEnd)
}

// refreshCapabilities splices a freshly-rendered capability block into
// systemPrompt when src reports a new MCP generation or a skill-store
// change since lastGeneration, returning the (possibly unchanged) prompt
// and the generation to remember for next time.
func refreshCapabilities(src CapabilitySource, systemPrompt string, lastGeneration int64) (prompt string, newGeneration int64) {
	if src == nil {
		return systemPrompt, lastGeneration
	}
	gen, dirty := src.Snapshot()
	if gen == lastGeneration && !dirty {
		return systemPrompt, lastGeneration
	}
	body := sanitizeCapabilityText(src.Render(), maxCapabilityDescLen*8)
	return spliceCapabilityBlock(systemPrompt, wrapCapabilityBlock(body)), gen
}
