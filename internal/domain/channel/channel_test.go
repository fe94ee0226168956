package channel

import (
	"testing"
	"time"
)

func TestDraftState_BeginFromIdle(t *testing.T) {
	d := NewDraftState(0)
	if err := d.Begin(); err != nil {
		t.Fatalf("Begin from Idle should succeed: %v", err)
	}
	if d.CurrentState() != Typing {
		t.Fatalf("expected Typing after Begin, got %s", d.CurrentState())
	}
}

func TestDraftState_BeginFromStreamingFails(t *testing.T) {
	d := NewDraftState(0)
	_ = d.Begin()
	d.NextUpdate("partial")
	if err := d.Begin(); err == nil {
		t.Fatal("expected Begin to fail while already Streaming")
	}
}

func TestDraftState_NextUpdateThrottles(t *testing.T) {
	d := NewDraftState(time.Hour)
	_ = d.Begin()

	_, allowed := d.NextUpdate("first")
	if !allowed {
		t.Fatal("expected first update to be allowed")
	}
	_, allowed = d.NextUpdate("second")
	if allowed {
		t.Fatal("expected second update to be throttled")
	}
}

func TestDraftState_NextUpdateSkipsUnchangedText(t *testing.T) {
	d := NewDraftState(0)
	_ = d.Begin()
	d.NextUpdate("same")
	_, allowed := d.NextUpdate("same")
	if allowed {
		t.Fatal("expected identical text to be skipped")
	}
}

func TestDraftState_SequenceAlwaysIncrements(t *testing.T) {
	d := NewDraftState(time.Hour)
	_ = d.Begin()
	seq1, _ := d.NextUpdate("a")
	seq2, _ := d.NextUpdate("b")
	if seq2 <= seq1 {
		t.Fatalf("expected monotonically increasing sequence, got %d then %d", seq1, seq2)
	}
}

func TestDraftState_AcceptsRejectsStaleSequence(t *testing.T) {
	d := NewDraftState(0)
	_ = d.Begin()
	d.NextUpdate("a")
	seq2, _ := d.NextUpdate("b")
	if !d.Accepts(seq2) {
		t.Fatal("expected the latest sequence to be accepted")
	}
	if d.Accepts(seq2 - 1) {
		t.Fatal("expected a stale sequence to be rejected")
	}
}

func TestDraftState_FinalizeStopsFurtherUpdates(t *testing.T) {
	d := NewDraftState(0)
	_ = d.Begin()
	d.Finalize()
	if d.CurrentState() != Finalized {
		t.Fatalf("expected Finalized, got %s", d.CurrentState())
	}
	_, allowed := d.NextUpdate("too late")
	if allowed {
		t.Fatal("expected update after Finalize to be rejected")
	}
}

func TestDraftState_CancelResetsToIdle(t *testing.T) {
	d := NewDraftState(0)
	_ = d.Begin()
	d.NextUpdate("partial")
	d.Cancel()
	if d.CurrentState() != Idle {
		t.Fatalf("expected Idle after Cancel, got %s", d.CurrentState())
	}
	if err := d.Begin(); err != nil {
		t.Fatalf("expected Begin to succeed again after Cancel: %v", err)
	}
}

func TestDraftState_BeginAfterFinalizeStartsNewDraft(t *testing.T) {
	d := NewDraftState(0)
	_ = d.Begin()
	d.NextUpdate("first draft")
	d.Finalize()

	if err := d.Begin(); err != nil {
		t.Fatalf("expected Begin to succeed after Finalize: %v", err)
	}
	seq, _ := d.NextUpdate("second draft")
	if seq != 1 {
		t.Fatalf("expected sequence to reset for the new draft, got %d", seq)
	}
}
