package entity

// LarkWsFrame is a decoded event off the Lark/Feishu WS event edge: the
// protobuf envelope has already been stripped and any split fragments
// reassembled by the time one of these exists.
type LarkWsFrame struct {
	eventType          string
	payload            []byte
	fragmentsAssembled int
}

// NewLarkWsFrame validates and builds a decoded frame. fragmentsAssembled
// is 1 for an event that arrived whole, >1 for one reassembled from split
// WS frames.
func NewLarkWsFrame(eventType string, payload []byte, fragmentsAssembled int) (*LarkWsFrame, error) {
	if eventType == "" {
		return nil, ErrInvalidEventType
	}
	if fragmentsAssembled < 1 {
		fragmentsAssembled = 1
	}
	return &LarkWsFrame{eventType: eventType, payload: payload, fragmentsAssembled: fragmentsAssembled}, nil
}

// EventType is the Lark event name, e.g. "im.message.receive_v1".
func (f *LarkWsFrame) EventType() string {
	return f.eventType
}

// Payload is the raw JSON event body.
func (f *LarkWsFrame) Payload() []byte {
	return f.payload
}

// FragmentsAssembled reports how many WS frames were concatenated to
// produce this event (1 if it arrived in a single frame).
func (f *LarkWsFrame) FragmentsAssembled() int {
	return f.fragmentsAssembled
}
