package larkws

import "testing"

func TestWireFrame_EncodeDecodeRoundTrip(t *testing.T) {
	original := &wireFrame{
		SeqID: 42,
		LogID: 7,
		Headers: []wireHeader{
			{Key: headerType, Value: frameTypeEvent},
			{Key: headerEventType, Value: "im.message.receive_v1"},
		},
		Payload: []byte(`{"hello":"world"}`),
	}

	encoded := encodeWireFrame(original)
	decoded, err := decodeWireFrame(encoded)
	if err != nil {
		t.Fatalf("decodeWireFrame() error = %v", err)
	}

	if decoded.SeqID != original.SeqID {
		t.Fatalf("SeqID = %d, want %d", decoded.SeqID, original.SeqID)
	}
	if string(decoded.Payload) != string(original.Payload) {
		t.Fatalf("Payload = %q, want %q", decoded.Payload, original.Payload)
	}
	typ, ok := decoded.header(headerType)
	if !ok || typ != frameTypeEvent {
		t.Fatalf("header(type) = %q, %v, want %q, true", typ, ok, frameTypeEvent)
	}
	evt, ok := decoded.header(headerEventType)
	if !ok || evt != "im.message.receive_v1" {
		t.Fatalf("header(event_type) = %q, %v, want %q, true", evt, ok, "im.message.receive_v1")
	}
}

func TestDecodeWireFrame_SkipsUnknownFields(t *testing.T) {
	known := encodeWireFrame(&wireFrame{SeqID: 1, Payload: []byte("x")})

	// Graft an unknown varint field (number 99) onto the end — a real
	// server may add fields this hub doesn't know about yet.
	extended := append(append([]byte(nil), known...), 0x98, 0x06, 0x01) // field 99, varint type, value 1

	decoded, err := decodeWireFrame(extended)
	if err != nil {
		t.Fatalf("decodeWireFrame() with trailing unknown field error = %v", err)
	}
	if decoded.SeqID != 1 || string(decoded.Payload) != "x" {
		t.Fatalf("decoded = %+v, want known fields preserved despite unknown trailing field", decoded)
	}
}
