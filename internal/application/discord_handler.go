package application

import (
	"context"
	"strings"
	"sync"

	"github.com/zeroclaw/gateway/internal/domain/entity"
	"github.com/zeroclaw/gateway/internal/domain/service"
	"github.com/zeroclaw/gateway/internal/infrastructure/prompt"
	"github.com/zeroclaw/gateway/internal/interfaces/discord"
	"go.uber.org/zap"
)

// maxDiscordHistoryPairs mirrors maxHistoryPairs for the Telegram handler —
// both channels cap conversation memory the same way.
const maxDiscordHistoryPairs = 30

// discordMessageHandler is the Discord ChannelDriver wiring: agentLoop.Run
// drives the turn, and its eventCh is forwarded onto discord.Driver's
// UpdateDraft/FinalizeDraft so replies stream via message edits.
type discordMessageHandler struct {
	agentLoop    *service.AgentLoop
	toolExec     service.ToolExecutor
	promptEngine *prompt.PromptEngine
	driver       *discord.Driver
	logger       *zap.Logger

	histories  sync.Map // map[string][]service.LLMMessage, keyed by channel ID
	activeRuns sync.Map // map[string]context.CancelFunc
}

func (h *discordMessageHandler) HandleMessage(ctx context.Context, msg *discord.IncomingMessage) {
	if oldCancel, ok := h.activeRuns.Load(msg.ChannelID); ok {
		oldCancel.(context.CancelFunc)()
	}
	runCtx, runCancel := context.WithCancel(ctx)
	h.activeRuns.Store(msg.ChannelID, runCancel)
	defer func() {
		runCancel()
		h.activeRuns.Delete(msg.ChannelID)
	}()

	_ = h.driver.StartTyping(runCtx, msg.ChannelID)

	toolNames := make([]string, 0)
	for _, d := range h.toolExec.GetDefinitions() {
		toolNames = append(toolNames, d.Name)
	}

	systemPrompt := ""
	if h.promptEngine != nil {
		systemPrompt = h.promptEngine.Assemble(prompt.PromptContext{
			RegisteredTools: toolNames,
			UserMessage:     msg.Content,
		})
	}

	history := h.getHistory(msg.ChannelID)
	result, eventCh := h.agentLoop.Run(runCtx, systemPrompt, msg.Content, history, "")

	if err := h.driver.StartTyping(runCtx, msg.ChannelID); err != nil {
		h.logger.Debug("discord typing indicator failed", zap.Error(err))
	}

	var seq int64
	var streamed strings.Builder
	for event := range eventCh {
		if runCtx.Err() != nil {
			break
		}
		switch event.Type {
		case entity.EventTextDelta:
			streamed.WriteString(event.Content)
			seq++
			_ = h.driver.UpdateDraft(runCtx, msg.ChannelID, seq, streamed.String(), false)
		case entity.EventDraftClear:
			seq++
			_ = h.driver.UpdateDraft(runCtx, msg.ChannelID, seq, "", true)
			streamed.Reset()
		}
	}

	finalText := strings.TrimSpace(result.FinalContent)
	if finalText == "" {
		finalText = strings.TrimSpace(streamed.String())
	}
	if finalText == "" {
		finalText = "(no output)"
	}

	if err := h.driver.FinalizeDraft(runCtx, msg.ChannelID, finalText); err != nil {
		h.logger.Error("discord finalize failed", zap.Error(err), zap.String("channel_id", msg.ChannelID))
	}

	h.appendHistory(msg.ChannelID, msg.Content, finalText)
}

func (h *discordMessageHandler) getHistory(channelID string) []service.LLMMessage {
	if v, ok := h.histories.Load(channelID); ok {
		return v.([]service.LLMMessage)
	}
	return nil
}

func (h *discordMessageHandler) appendHistory(channelID, userText, assistantText string) {
	history := h.getHistory(channelID)
	history = append(history,
		service.LLMMessage{Role: "user", Content: userText},
		service.LLMMessage{Role: "assistant", Content: assistantText},
	)
	if len(history) > maxDiscordHistoryPairs*2 {
		history = history[len(history)-maxDiscordHistoryPairs*2:]
	}
	h.histories.Store(channelID, history)
}
