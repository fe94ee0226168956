package larkws

import "testing"

func TestReassembler_SingleFragmentPassesThroughImmediately(t *testing.T) {
	r := newReassembler(0)
	f := &wireFrame{Payload: []byte("whole"), Headers: []wireHeader{
		{Key: headerEventType, Value: "im.message.receive_v1"},
	}}

	evt, payload, fragments, complete := r.add(f)
	if !complete {
		t.Fatal("single-fragment frame should complete immediately")
	}
	if evt != "im.message.receive_v1" || string(payload) != "whole" || fragments != 1 {
		t.Fatalf("got (%q, %q, %d), want (%q, %q, 1)", evt, payload, fragments, "im.message.receive_v1", "whole")
	}
}

func TestReassembler_WaitsForAllFragmentsInOrder(t *testing.T) {
	r := newReassembler(0)
	header := func(seq int) []wireHeader {
		return []wireHeader{
			{Key: headerEventType, Value: "drive.file.edit_v1"},
			{Key: headerMessageID, Value: "msg-1"},
			{Key: headerSum, Value: "3"},
			{Key: headerSeq, Value: itoa(seq)},
		}
	}

	_, _, _, complete := r.add(&wireFrame{Payload: []byte("AAA"), Headers: header(1)})
	if complete {
		t.Fatal("should not complete after 1 of 3 fragments")
	}
	_, _, _, complete = r.add(&wireFrame{Payload: []byte("BBB"), Headers: header(3)})
	if complete {
		t.Fatal("should not complete after 2 of 3 fragments, delivered out of order")
	}

	evt, payload, fragments, complete := r.add(&wireFrame{Payload: []byte("CCC"), Headers: header(2)})
	if !complete {
		t.Fatal("should complete once all 3 fragments have arrived")
	}
	if evt != "drive.file.edit_v1" || fragments != 3 {
		t.Fatalf("evt=%q fragments=%d, want drive.file.edit_v1, 3", evt, fragments)
	}
	if string(payload) != "AAACCCBBB" {
		t.Fatalf("payload = %q, want fragments concatenated in seq order %q", payload, "AAACCCBBB")
	}
}

func itoa(n int) string {
	digits := "0123456789"
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{digits[n%10]}, b...)
		n /= 10
	}
	return string(b)
}
