package larkws

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// Frame type values carried in the wireFrame "type" header.
const (
	frameTypePing  = "ping"
	frameTypePong  = "pong"
	frameTypeEvent = "event"
	frameTypeAck   = "ack"
)

const (
	headerType      = "type"
	headerEventType = "event_type"
	headerMessageID = "message_id"
	headerSeq       = "seq"
	headerSum       = "sum"
)

// reassembler buffers split event frames by message ID until every
// fragment has arrived, then concatenates their payloads in sequence
// order. Lark splits large events across multiple WS frames; most events
// arrive as a single fragment (sum=1) and pass through immediately.
type reassembler struct {
	mu      sync.Mutex
	pending map[string]*fragmentSet
	ttl     time.Duration
}

type fragmentSet struct {
	eventType string
	sum       int
	parts     map[int][]byte
	firstSeen time.Time
}

func newReassembler(ttl time.Duration) *reassembler {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &reassembler{pending: make(map[string]*fragmentSet), ttl: ttl}
}

// add folds one wire frame's worth of payload in. It returns the fully
// assembled event payload and fragment count once the last piece of a
// message arrives, or (nil, 0, false) while more fragments are still
// outstanding.
func (r *reassembler) add(f *wireFrame) (eventType string, payload []byte, fragments int, complete bool) {
	eventType, _ = f.header(headerEventType)
	msgID, hasMsgID := f.header(headerMessageID)
	sum := headerInt(f, headerSum, 1)
	seq := headerInt(f, headerSeq, 1)

	if !hasMsgID || sum <= 1 {
		return eventType, f.Payload, 1, true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictStale()

	set, ok := r.pending[msgID]
	if !ok {
		set = &fragmentSet{eventType: eventType, sum: sum, parts: make(map[int][]byte), firstSeen: time.Now()}
		r.pending[msgID] = set
	}
	set.parts[seq] = f.Payload

	if len(set.parts) < set.sum {
		return "", nil, 0, false
	}

	delete(r.pending, msgID)
	seqs := make([]int, 0, len(set.parts))
	for s := range set.parts {
		seqs = append(seqs, s)
	}
	sort.Ints(seqs)

	var assembled []byte
	for _, s := range seqs {
		assembled = append(assembled, set.parts[s]...)
	}
	return set.eventType, assembled, set.sum, true
}

// evictStale drops fragment sets that never completed within ttl, so a
// dropped final fragment can't leak memory forever. Callers must hold mu.
func (r *reassembler) evictStale() {
	cutoff := time.Now().Add(-r.ttl)
	for id, set := range r.pending {
		if set.firstSeen.Before(cutoff) {
			delete(r.pending, id)
		}
	}
}

func headerInt(f *wireFrame, key string, def int) int {
	v, ok := f.header(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
