// Package larkws implements LarkWsHub (spec.md §4.6): one outbound
// WebSocket connection per (app ID, platform) to the Lark/Feishu event
// edge, decoding protobuf-framed events and fanning them out to bounded
// internal subscribers — the chat channel driver for im.message.receive_v1,
// the docs-sync module for drive.file.edit_v1, each filtering on its own.
//
// Grounded on internal/interfaces/websocket/handler.go's Hub: the
// register/unregister/broadcast channel shape carries over directly, but
// the direction inverts — that Hub fans one local event out to many
// externally connected client sockets, this one fans one externally
// connected socket out to many internal subscribers. The other
// deliberate departure is Subscriber's lag-don't-disconnect semantics
// (see subscriber.go), replacing that Hub's drop-on-full-channel
// broadcast case.
package larkws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zeroclaw/gateway/internal/domain/entity"
	"github.com/zeroclaw/gateway/internal/infrastructure/config"
)

// Negotiator resolves the app-id/platform pair to a dialable WS endpoint
// and an initial heartbeat interval — Lark's real edge requires a
// short-lived signed URL fetched over HTTP before the socket is opened.
// A caller that already has a fixed endpoint (e.g. in tests, or a fixed
// self-hosted edge) can use StaticNegotiator.
type Negotiator interface {
	Negotiate(ctx context.Context, appID, platform string) (wsURL string, heartbeat time.Duration, err error)
}

// StaticNegotiator always resolves to a fixed endpoint, skipping the
// HTTP negotiation step.
type StaticNegotiator struct {
	Endpoint  string
	Heartbeat time.Duration
}

func (s StaticNegotiator) Negotiate(ctx context.Context, appID, platform string) (string, time.Duration, error) {
	return s.Endpoint, s.Heartbeat, nil
}

// Hub owns the single upstream connection for one (app ID, platform) pair
// and the set of internal subscribers fed from it.
type Hub struct {
	appID    string
	platform   string
	cfg        config.LarkWSConfig
	negotiator Negotiator
	dialer     *websocket.Dialer
	logger     *zap.Logger

	reassembler *reassembler

	mu          sync.RWMutex
	conn        *websocket.Conn
	subscribers map[string]map[string]*Subscriber // topic -> subscriber id -> Subscriber
	nextSubID   int

	heartbeat time.Duration
}

// NewHub builds a LarkWsHub for one (app ID, platform) pair. negotiator
// resolves the dialable endpoint; pass StaticNegotiator{cfg.Endpoint, ...}
// when no HTTP negotiation step is needed.
func NewHub(appID, platform string, cfg config.LarkWSConfig, negotiator Negotiator, logger *zap.Logger) *Hub {
	return &Hub{
		appID:       appID,
		platform:    platform,
		cfg:         cfg,
		negotiator:  negotiator,
		dialer:      websocket.DefaultDialer,
		logger:      logger.With(zap.String("component", "lark-ws-hub"), zap.String("app_id", appID), zap.String("platform", platform)),
		reassembler: newReassembler(30 * time.Second),
		subscribers: make(map[string]map[string]*Subscriber),
		heartbeat:   cfg.HeartbeatInterval,
	}
}

// Subscribe registers a new bounded subscriber for topic (a Lark event
// type, e.g. "im.message.receive_v1"). The returned cancel func must be
// called once the subscriber is done to free its resources.
func (h *Hub) Subscribe(topic string) (*Subscriber, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextSubID++
	id := fmt.Sprintf("%s-%d", topic, h.nextSubID)
	sub := newSubscriber(id, topic, h.cfg.BroadcastCapacity)

	byTopic, ok := h.subscribers[topic]
	if !ok {
		byTopic = make(map[string]*Subscriber)
		h.subscribers[topic] = byTopic
	}
	byTopic[id] = sub

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if byTopic, ok := h.subscribers[topic]; ok {
			if s, ok := byTopic[id]; ok {
				delete(byTopic, id)
				s.close()
			}
		}
	}
	return sub, cancel
}

// Run dials the upstream socket and services it until ctx is cancelled,
// reconnecting with exponential backoff (base cfg.ReconnectBaseWait,
// capped at 1 minute) across transient failures.
func (h *Hub) Run(ctx context.Context) {
	backoff := h.cfg.ReconnectBaseWait
	if backoff <= 0 {
		backoff = time.Second
	}
	const maxBackoff = time.Minute

	for {
		if ctx.Err() != nil {
			return
		}
		if err := h.connectAndServe(ctx); err != nil {
			h.logger.Warn("lark ws session ended, reconnecting", zap.Error(err), zap.Duration("wait", backoff))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = h.cfg.ReconnectBaseWait
		if backoff <= 0 {
			backoff = time.Second
		}
	}
}

func (h *Hub) connectAndServe(ctx context.Context) error {
	wsURL, hb, err := h.negotiator.Negotiate(ctx, h.appID, h.platform)
	if err != nil {
		return fmt.Errorf("negotiate endpoint: %w", err)
	}
	if hb > 0 {
		h.heartbeat = hb
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := h.dialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	h.mu.Lock()
	h.conn = conn
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.conn = nil
		h.mu.Unlock()
	}()

	h.logger.Info("lark ws connected", zap.String("endpoint", wsURL))

	sessionCtx, sessionCancel := context.WithCancel(ctx)
	defer sessionCancel()

	go h.heartbeatLoop(sessionCtx, conn)

	for {
		if sessionCtx.Err() != nil {
			return sessionCtx.Err()
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if err := h.handleFrame(sessionCtx, conn, data); err != nil {
			h.logger.Warn("dropping malformed lark ws frame", zap.Error(err))
		}
	}
}

func (h *Hub) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	interval := h.heartbeat
	if interval <= 0 {
		interval = 90 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ping := encodeWireFrame(&wireFrame{Headers: []wireHeader{{Key: headerType, Value: frameTypePing}}})
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.BinaryMessage, ping); err != nil {
				h.logger.Warn("lark ws heartbeat write failed", zap.Error(err))
				return
			}
		}
	}
}

func (h *Hub) handleFrame(ctx context.Context, conn *websocket.Conn, data []byte) error {
	f, err := decodeWireFrame(data)
	if err != nil {
		return err
	}

	typ, _ := f.header(headerType)
	switch typ {
	case frameTypePong:
		if interval, ok := f.header("heartbeat_interval_ms"); ok {
			if ms := headerMillis(interval); ms > 0 {
				h.heartbeat = ms
			}
		}
		return nil
	case frameTypePing:
		pong := encodeWireFrame(&wireFrame{SeqID: f.SeqID, Headers: []wireHeader{{Key: headerType, Value: frameTypePong}}})
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		return conn.WriteMessage(websocket.BinaryMessage, pong)
	}

	eventType, payload, fragments, complete := h.reassembler.add(f)
	if !complete {
		return nil
	}

	frame, err := entity.NewLarkWsFrame(eventType, payload, fragments)
	if err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	h.broadcast(frame)

	ack := encodeWireFrame(&wireFrame{SeqID: f.SeqID, Headers: []wireHeader{{Key: headerType, Value: frameTypeAck}}})
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.BinaryMessage, ack)
}

// broadcast fans frame out to every subscriber registered for its event
// type. A lagging subscriber never blocks or drops others — see
// Subscriber.deliver.
func (h *Hub) broadcast(frame *entity.LarkWsFrame) {
	h.mu.RLock()
	byTopic := h.subscribers[frame.EventType()]
	targets := make([]*Subscriber, 0, len(byTopic))
	for _, s := range byTopic {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.deliver(SubscriberEvent{EventType: frame.EventType(), Payload: frame.Payload()})
	}
}

func headerMillis(v string) time.Duration {
	var ms int64
	if _, err := fmt.Sscanf(v, "%d", &ms); err != nil || ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
