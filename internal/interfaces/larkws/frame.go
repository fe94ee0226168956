package larkws

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// wireFrame mirrors the fields of the protobuf envelope Lark's event WS
// edge wraps every message in: a sequence number, a logical frame type
// carried in headers (ping/pong/event/ack), and — for events split across
// multiple WS frames — a message ID plus seq/sum headers used to
// reassemble the payload before it is handed to the JSON decoder.
type wireFrame struct {
	SeqID   uint64
	LogID   uint64
	Service int32
	Method  int32
	Headers []wireHeader
	Payload []byte
}

type wireHeader struct {
	Key   string
	Value string
}

func (f *wireFrame) header(key string) (string, bool) {
	for _, h := range f.Headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return "", false
}

const (
	fieldSeqID   = 1
	fieldLogID   = 2
	fieldService = 3
	fieldMethod  = 4
	fieldHeaders = 5
	fieldPayload = 8

	headerFieldKey   = 1
	headerFieldValue = 2
)

// decodeWireFrame parses one protobuf-framed message off the wire. Unknown
// field numbers are skipped rather than rejected, so a server-added field
// this hub doesn't yet know about never breaks decoding.
func decodeWireFrame(data []byte) (*wireFrame, error) {
	f := &wireFrame{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("larkws: malformed tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case fieldSeqID:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("larkws: malformed seq_id: %w", protowire.ParseError(n))
			}
			f.SeqID = v
			data = data[n:]
		case fieldLogID:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("larkws: malformed log_id: %w", protowire.ParseError(n))
			}
			f.LogID = v
			data = data[n:]
		case fieldService:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("larkws: malformed service: %w", protowire.ParseError(n))
			}
			f.Service = int32(v)
			data = data[n:]
		case fieldMethod:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("larkws: malformed method: %w", protowire.ParseError(n))
			}
			f.Method = int32(v)
			data = data[n:]
		case fieldHeaders:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("larkws: malformed header entry: %w", protowire.ParseError(n))
			}
			h, err := decodeWireHeader(v)
			if err != nil {
				return nil, err
			}
			f.Headers = append(f.Headers, h)
			data = data[n:]
		case fieldPayload:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("larkws: malformed payload: %w", protowire.ParseError(n))
			}
			f.Payload = append([]byte(nil), v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("larkws: malformed field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return f, nil
}

func decodeWireHeader(data []byte) (wireHeader, error) {
	var h wireHeader
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return h, fmt.Errorf("larkws: malformed header tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case headerFieldKey:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return h, fmt.Errorf("larkws: malformed header key: %w", protowire.ParseError(n))
			}
			h.Key = string(v)
			data = data[n:]
		case headerFieldValue:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return h, fmt.Errorf("larkws: malformed header value: %w", protowire.ParseError(n))
			}
			h.Value = string(v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return h, fmt.Errorf("larkws: malformed header field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return h, nil
}

// encodeWireFrame serializes an outbound frame — this hub only ever sends
// ack and pong frames back to the edge, both header-only with no payload.
func encodeWireFrame(f *wireFrame) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldSeqID, protowire.VarintType)
	b = protowire.AppendVarint(b, f.SeqID)
	b = protowire.AppendTag(b, fieldLogID, protowire.VarintType)
	b = protowire.AppendVarint(b, f.LogID)
	for _, h := range f.Headers {
		b = protowire.AppendTag(b, fieldHeaders, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeWireHeader(h))
	}
	if len(f.Payload) > 0 {
		b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, f.Payload)
	}
	return b
}

func encodeWireHeader(h wireHeader) []byte {
	var b []byte
	b = protowire.AppendTag(b, headerFieldKey, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(h.Key))
	b = protowire.AppendTag(b, headerFieldValue, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(h.Value))
	return b
}
