package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zeroclaw/gateway/internal/domain/channel"
)

// Driver is the local web-chat ChannelDriver: target is a Hub client ID
// (see Handler.ServeWS). Unlike Telegram/Discord there is no server-side
// message-edit primitive over this transport — "edit" is simply a new
// stream WSMessage carrying the draft's sequence number, and the browser
// client is expected to replace its displayed draft on each one rather
// than append, exactly like the teacher's original MessageTypeStream was
// already shaped to do.
type Driver struct {
	hub *Hub

	mu     sync.Mutex
	drafts map[string]*channel.DraftState
}

var _ channel.Driver = (*Driver)(nil)

// NewDriver builds a ChannelDriver over an already-running Hub (the
// caller owns Hub.Run's lifecycle).
func NewDriver(hub *Hub) *Driver {
	return &Driver{hub: hub, drafts: make(map[string]*channel.DraftState)}
}

func (d *Driver) state(target string) *channel.DraftState {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.drafts[target]
	if !ok {
		s = channel.NewDraftState(0)
		d.drafts[target] = s
	}
	return s
}

// Send implements channel.Driver: a one-shot, non-streaming chat message.
func (d *Driver) Send(ctx context.Context, target string, text string) (string, error) {
	id := fmt.Sprintf("%s-%d", target, time.Now().UnixNano())
	if err := d.hub.SendToClient(target, &WSMessage{Type: MessageTypeChat, ID: id, Content: text}); err != nil {
		return "", err
	}
	return id, nil
}

// StartTyping sends a typing indicator message; the browser client
// renders and clears it on its own, there's no server-tracked expiry.
func (d *Driver) StartTyping(ctx context.Context, target string) error {
	return d.hub.SendToClient(target, &WSMessage{
		Type:     MessageTypeTyping,
		Metadata: map[string]interface{}{"active": true},
	})
}

// StopTyping sends the typing-stopped counterpart to StartTyping.
func (d *Driver) StopTyping(ctx context.Context, target string) error {
	return d.hub.SendToClient(target, &WSMessage{
		Type:     MessageTypeTyping,
		Metadata: map[string]interface{}{"active": false},
	})
}

// UpdateDraft pushes a stream WSMessage carrying the sequence number; a
// stale seq (older than one already applied) is dropped.
func (d *Driver) UpdateDraft(ctx context.Context, target string, seq int64, text string, clear bool) error {
	s := d.state(target)
	if !s.Accepts(seq) {
		return nil
	}
	if clear {
		text = ""
	}
	return d.hub.SendToClient(target, &WSMessage{
		Type:    MessageTypeStream,
		Content: text,
		Metadata: map[string]interface{}{
			"seq":   seq,
			"clear": clear,
		},
	})
}

// FinalizeDraft closes the draft, sending finalText (if non-empty) as a
// stream message flagged final so the client stops expecting further
// sequence numbers for this turn.
func (d *Driver) FinalizeDraft(ctx context.Context, target string, finalText string) error {
	s := d.state(target)
	s.Finalize()
	if finalText == "" {
		return nil
	}
	return d.hub.SendToClient(target, &WSMessage{
		Type:     MessageTypeStream,
		Content:  finalText,
		Metadata: map[string]interface{}{"final": true},
	})
}

// CancelDraft discards local draft bookkeeping and tells the client to
// drop whatever it has displayed for this turn.
func (d *Driver) CancelDraft(ctx context.Context, target string) error {
	s := d.state(target)
	s.Cancel()
	return d.hub.SendToClient(target, &WSMessage{
		Type:     MessageTypeStream,
		Metadata: map[string]interface{}{"cancelled": true},
	})
}
