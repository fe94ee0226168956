package application

import (
	"context"
	"strings"
	"sync"

	"github.com/zeroclaw/gateway/internal/domain/entity"
	"github.com/zeroclaw/gateway/internal/domain/service"
	"github.com/zeroclaw/gateway/internal/infrastructure/prompt"
	wshub "github.com/zeroclaw/gateway/internal/interfaces/websocket"
	"go.uber.org/zap"
)

// maxWSHistoryPairs mirrors maxDiscordHistoryPairs for the local web-chat
// channel.
const maxWSHistoryPairs = 30

// websocketMessageHandler is the local web-chat ChannelDriver wiring:
// agentLoop.Run drives the turn and its eventCh is forwarded onto
// wshub.Driver's UpdateDraft/FinalizeDraft, same shape as
// discordMessageHandler — target is the Hub client ID instead of a
// Discord channel ID.
type websocketMessageHandler struct {
	agentLoop    *service.AgentLoop
	toolExec     service.ToolExecutor
	promptEngine *prompt.PromptEngine
	driver       *wshub.Driver
	logger       *zap.Logger

	histories  sync.Map // map[string][]service.LLMMessage, keyed by client ID
	activeRuns sync.Map // map[string]context.CancelFunc
}

// HandleMessage is wired as the Hub's onMessage callback (see
// Hub.SetMessageHandler). Only MessageTypeChat carries a turn to run —
// ping/pong are handled inside the Hub's own read pump.
func (h *websocketMessageHandler) HandleMessage(client *wshub.Client, msg *wshub.WSMessage) {
	if msg.Type != wshub.MessageTypeChat {
		return
	}
	clientID := client.GetID()

	if oldCancel, ok := h.activeRuns.Load(clientID); ok {
		oldCancel.(context.CancelFunc)()
	}
	runCtx, runCancel := context.WithCancel(context.Background())
	h.activeRuns.Store(clientID, runCancel)
	defer func() {
		runCancel()
		h.activeRuns.Delete(clientID)
	}()

	_ = h.driver.StartTyping(runCtx, clientID)

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

	history := h.getHistory(clientID)
	result, eventCh := h.agentLoop.Run(runCtx, systemPrompt, msg.Content, history, "")

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
			_ = h.driver.UpdateDraft(runCtx, clientID, seq, streamed.String(), false)
		case entity.EventDraftClear:
			seq++
			_ = h.driver.UpdateDraft(runCtx, clientID, seq, "", true)
			streamed.Reset()
		}
	}
	_ = h.driver.StopTyping(runCtx, clientID)

	finalText := strings.TrimSpace(result.FinalContent)
	if finalText == "" {
		finalText = strings.TrimSpace(streamed.String())
	}
	if finalText == "" {
		finalText = "(no output)"
	}

	if err := h.driver.FinalizeDraft(runCtx, clientID, finalText); err != nil {
		h.logger.Error("websocket finalize failed", zap.Error(err), zap.String("client_id", clientID))
	}

	h.appendHistory(clientID, msg.Content, finalText)
}

func (h *websocketMessageHandler) getHistory(clientID string) []service.LLMMessage {
	if v, ok := h.histories.Load(clientID); ok {
		return v.([]service.LLMMessage)
	}
	return nil
}

func (h *websocketMessageHandler) appendHistory(clientID, userText, assistantText string) {
	history := h.getHistory(clientID)
	history = append(history,
		service.LLMMessage{Role: "user", Content: userText},
		service.LLMMessage{Role: "assistant", Content: assistantText},
	)
	if len(history) > maxWSHistoryPairs*2 {
		history = history[len(history)-maxWSHistoryPairs*2:]
	}
	h.histories.Store(clientID, history)
}
