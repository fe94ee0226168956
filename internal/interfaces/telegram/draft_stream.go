package telegram

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/zeroclaw/gateway/internal/domain/channel"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// DraftStream is the Telegram ChannelDriver: a single streamed message
// built by repeated edits, closed by a final edit (or a plain send if
// nothing was ever streamed).
type DraftStream struct {
	bot       *tgbotapi.BotAPI
	chatID    int64
	messageID int
	lastText  string
	parseMode string
	draft     *channel.DraftState
	mu        sync.Mutex
}

var _ channel.Driver = (*DraftStream)(nil)

// NewDraftStream creates a streaming message updater for chatID, throttled
// to one edit per 500ms by default.
func NewDraftStream(bot *tgbotapi.BotAPI, chatID int64) *DraftStream {
	return &DraftStream{
		bot:       bot,
		chatID:    chatID,
		parseMode: "Markdown",
		draft:     channel.NewDraftState(500 * time.Millisecond),
	}
}

// SetThrottle overrides the default 500ms edit throttle.
func (d *DraftStream) SetThrottle(ms int64) {
	d.draft = channel.NewDraftState(time.Duration(ms) * time.Millisecond)
}

// Send implements channel.Driver: a one-shot, non-streaming message.
func (d *DraftStream) Send(ctx context.Context, target string, text string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	msg := tgbotapi.NewMessage(d.chatID, text)
	if d.parseMode != "" {
		msg.ParseMode = d.parseMode
	}
	sent, err := d.bot.Send(msg)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(sent.MessageID), nil
}

// StartTyping sends Telegram's "typing" chat action.
func (d *DraftStream) StartTyping(ctx context.Context, target string) error {
	_, err := d.bot.Request(tgbotapi.NewChatAction(d.chatID, tgbotapi.ChatTyping))
	return err
}

// StopTyping is a no-op: Telegram's typing indicator expires on its own.
func (d *DraftStream) StopTyping(ctx context.Context, target string) error {
	return nil
}

// UpdateDraft implements channel.Driver's incremental edit. A stale seq
// (superseded by a later update already applied) is silently dropped.
// clear blanks the draft message without finalizing it.
func (d *DraftStream) UpdateDraft(ctx context.Context, target string, seq int64, text string, clear bool) error {
	if !d.draft.Accepts(seq) {
		return nil
	}
	if clear {
		text = ""
	}
	return d.Update(text)
}

// FinalizeDraft implements channel.Driver. An empty finalText closes the
// draft without replacing its already-streamed content.
func (d *DraftStream) FinalizeDraft(ctx context.Context, target string, finalText string) error {
	d.draft.Finalize()
	if finalText == "" {
		return nil
	}
	return d.Finalize(finalText)
}

// CancelDraft discards the in-flight draft; Telegram has no delete-in-place
// primitive for this other than deleting the message outright, which would
// surprise the user mid-conversation, so this only resets local state.
func (d *DraftStream) CancelDraft(ctx context.Context, target string) error {
	d.draft.Cancel()
	return nil
}

// Update pushes a throttled edit of the streamed message.
func (d *DraftStream) Update(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if text == d.lastText {
		return nil
	}
	return d.doUpdate(text)
}

// ForceUpdate edits the message immediately, ignoring the throttle.
func (d *DraftStream) ForceUpdate(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doUpdate(text)
}

func (d *DraftStream) doUpdate(text string) error {
	if d.messageID == 0 {
		msg := tgbotapi.NewMessage(d.chatID, text)
		if d.parseMode != "" {
			msg.ParseMode = d.parseMode
		}
		sent, err := d.bot.Send(msg)
		if err != nil {
			return err
		}
		d.messageID = sent.MessageID
	} else {
		editMsg := tgbotapi.NewEditMessageText(d.chatID, d.messageID, text)
		if d.parseMode != "" {
			editMsg.ParseMode = d.parseMode
		}
		if _, err := d.bot.Send(editMsg); err != nil && !isMessageNotModifiedError(err) {
			return err
		}
	}

	d.lastText = text
	return nil
}

// Finalize completes the stream with finalText.
func (d *DraftStream) Finalize(finalText string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.messageID == 0 {
		msg := tgbotapi.NewMessage(d.chatID, finalText)
		if d.parseMode != "" {
			msg.ParseMode = d.parseMode
		}
		sent, err := d.bot.Send(msg)
		if err != nil {
			return err
		}
		d.messageID = sent.MessageID
		d.lastText = finalText
		return nil
	}

	if finalText != d.lastText {
		editMsg := tgbotapi.NewEditMessageText(d.chatID, d.messageID, finalText)
		if d.parseMode != "" {
			editMsg.ParseMode = d.parseMode
		}
		if _, err := d.bot.Send(editMsg); err != nil && !isMessageNotModifiedError(err) {
			return err
		}
		d.lastText = finalText
	}

	return nil
}

// GetMessageID returns the underlying Telegram message ID.
func (d *DraftStream) GetMessageID() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.messageID
}

func isMessageNotModifiedError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return containsStr(errStr, "message is not modified") ||
		containsStr(errStr, "MESSAGE_NOT_MODIFIED")
}

func containsStr(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
