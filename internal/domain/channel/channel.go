// Package channel defines the ChannelDriver contract shared by every
// outbound messaging surface (Telegram, Lark, Discord, the local websocket
// hub) and the DraftState machine that governs streaming-message lifecycle
// across all of them.
package channel

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State is a position in the draft lifecycle. Transitions move forward
// (Idle -> Typing -> Streaming -> Finalized); Begin from Finalized starts a
// new draft, and Cancel returns any state to Idle.
type State int

const (
	Idle State = iota
	Typing
	Streaming
	Finalized
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Typing:
		return "typing"
	case Streaming:
		return "streaming"
	case Finalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Driver is the contract every outbound channel implements. target
// identifies the conversation (chat ID, card ID, connection ID, ...) in
// whatever form the underlying transport natively uses.
type Driver interface {
	// Send delivers a one-shot, non-streaming message and returns an
	// implementation-defined message handle.
	Send(ctx context.Context, target string, text string) (string, error)

	// StartTyping / StopTyping surface a typing indicator where the
	// channel supports one; a no-op implementation is valid.
	StartTyping(ctx context.Context, target string) error
	StopTyping(ctx context.Context, target string) error

	// UpdateDraft pushes an incremental edit to the in-flight draft
	// message, tagged with a monotonically increasing sequence number so
	// the driver can discard out-of-order deliveries. text == "" with
	// clear == true is the draft-clear sentinel: the driver should blank
	// the draft without closing it.
	UpdateDraft(ctx context.Context, target string, seq int64, text string, clear bool) error

	// FinalizeDraft closes the draft with its final content. An empty
	// finalText closes the draft without replacing its content (the
	// close-without-content case spec'd for multi-part replies that end
	// with a tool call rather than text).
	FinalizeDraft(ctx context.Context, target string, finalText string) error

	// CancelDraft discards the in-flight draft entirely (user-cancelled
	// or superseded turn).
	CancelDraft(ctx context.Context, target string) error
}

// DraftState tracks one target's draft lifecycle and sequence counter. It
// is transport-agnostic; each Driver implementation embeds or wraps one
// per active target.
type DraftState struct {
	mu         sync.Mutex
	state      State
	sequence   int64
	lastText   string
	lastUpdate time.Time
	throttle   time.Duration
}

// NewDraftState builds a DraftState starting Idle, throttling UpdateDraft
// calls to at most one per throttle (500ms if zero).
func NewDraftState(throttle time.Duration) *DraftState {
	if throttle <= 0 {
		throttle = 500 * time.Millisecond
	}
	return &DraftState{state: Idle, throttle: throttle}
}

// Begin transitions Idle or Finalized -> Typing, assigning sequence 0.
// Calling Begin from any other state returns an error and leaves the state
// unchanged.
func (d *DraftState) Begin() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Idle && d.state != Finalized {
		return fmt.Errorf("cannot begin draft from state %s", d.state)
	}
	d.state = Typing
	d.sequence = 0
	d.lastText = ""
	return nil
}

// NextUpdate advances to Streaming and returns the sequence number to use
// for this UpdateDraft call, along with whether the throttle permits
// sending now. The sequence counter always increments even when the
// caller ultimately skips sending, so out-of-order late deliveries can
// still be detected downstream.
func (d *DraftState) NextUpdate(text string) (seq int64, allowed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sequence++
	seq = d.sequence
	now := time.Now()

	if d.state == Finalized {
		return seq, false
	}
	d.state = Streaming

	if text == d.lastText {
		return seq, false
	}
	if now.Sub(d.lastUpdate) < d.throttle {
		return seq, false
	}
	d.lastText = text
	d.lastUpdate = now
	return seq, true
}

// Accepts reports whether seq is at least the latest sequence NextUpdate
// has handed out — drivers use this to drop stale deliveries that arrive
// out of order over an async transport.
func (d *DraftState) Accepts(seq int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return seq >= d.sequence
}

// Finalize transitions to Finalized unconditionally; any state can
// finalize, including Idle (a turn that produced no streamed tokens).
func (d *DraftState) Finalize() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = Finalized
}

// Cancel resets to Idle, discarding the current sequence and text.
func (d *DraftState) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = Idle
	d.sequence = 0
	d.lastText = ""
}

// CurrentState returns the draft's current lifecycle position.
func (d *DraftState) CurrentState() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}
