// Package discord implements the Discord ChannelDriver: unlike Telegram's
// polling adapter, this one is a thin wrapper over a single shared
// discordgo.Session — Discord's gateway connection is already a persistent
// session the caller owns, so the driver only needs message-edit semantics
// per channel.
package discord

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/zeroclaw/gateway/internal/domain/channel"
)

// Driver is the Discord ChannelDriver: target is a Discord channel ID.
// Discord supports message edits, so streamed turns get real incremental
// updates instead of the repeated-send a no-op driver would need.
type Driver struct {
	session *discordgo.Session

	mu      sync.Mutex
	drafts  map[string]*draftEntry
	throttle time.Duration
}

type draftEntry struct {
	state     *channel.DraftState
	messageID string
	lastText  string
}

var _ channel.Driver = (*Driver)(nil)

// NewDriver builds a Discord ChannelDriver over an already-connected
// session (the caller owns session lifecycle — Open/Close — via the bot
// process).
func NewDriver(session *discordgo.Session) *Driver {
	return &Driver{
		session:  session,
		drafts:   make(map[string]*draftEntry),
		throttle: 700 * time.Millisecond, // Discord's per-channel edit rate limit is stricter than Telegram's
	}
}

func (d *Driver) entry(target string) *draftEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.drafts[target]
	if !ok {
		e = &draftEntry{state: channel.NewDraftState(d.throttle)}
		d.drafts[target] = e
	}
	return e
}

// Send implements channel.Driver: a one-shot, non-streaming message.
func (d *Driver) Send(ctx context.Context, target string, text string) (string, error) {
	msg, err := d.session.ChannelMessageSend(target, text, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

// StartTyping sends Discord's typing indicator (auto-expires after ~10s,
// so callers should re-trigger it for long-running turns).
func (d *Driver) StartTyping(ctx context.Context, target string) error {
	return d.session.ChannelTyping(target, discordgo.WithContext(ctx))
}

// StopTyping is a no-op: Discord's typing indicator expires on its own.
func (d *Driver) StopTyping(ctx context.Context, target string) error {
	return nil
}

// UpdateDraft edits the streamed message in place, creating it on the first
// call for this target. A stale seq is dropped; clear blanks the message
// without finalizing the draft.
func (d *Driver) UpdateDraft(ctx context.Context, target string, seq int64, text string, clear bool) error {
	e := d.entry(target)
	if !e.state.Accepts(seq) {
		return nil
	}
	if clear {
		text = ""
	}
	return d.edit(ctx, e, target, text)
}

// FinalizeDraft closes the draft with its final content. An empty
// finalText leaves the last streamed edit in place.
func (d *Driver) FinalizeDraft(ctx context.Context, target string, finalText string) error {
	e := d.entry(target)
	e.state.Finalize()
	if finalText == "" {
		return nil
	}
	return d.edit(ctx, e, target, finalText)
}

// CancelDraft discards the in-flight draft's local bookkeeping. Discord has
// no "clear in place" primitive beyond editing to empty content, which
// UpdateDraft(clear=true) already covers, so this only resets state.
func (d *Driver) CancelDraft(ctx context.Context, target string) error {
	e := d.entry(target)
	e.state.Cancel()
	return nil
}

func (d *Driver) edit(ctx context.Context, e *draftEntry, target, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if text == e.lastText {
		return nil
	}
	if e.messageID == "" {
		msg, err := d.session.ChannelMessageSend(target, text, discordgo.WithContext(ctx))
		if err != nil {
			return err
		}
		e.messageID = msg.ID
		e.lastText = text
		return nil
	}
	if _, err := d.session.ChannelMessageEdit(target, e.messageID, text, discordgo.WithContext(ctx)); err != nil {
		return err
	}
	e.lastText = text
	return nil
}

// MessageID returns the Discord message ID backing target's current draft,
// or "" if nothing has been sent yet.
func (d *Driver) MessageID(target string) string {
	e := d.entry(target)
	d.mu.Lock()
	defer d.mu.Unlock()
	return e.messageID
}
