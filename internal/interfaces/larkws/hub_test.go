package larkws

import (
	"testing"

	"go.uber.org/zap"

	"github.com/zeroclaw/gateway/internal/domain/entity"
	"github.com/zeroclaw/gateway/internal/infrastructure/config"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	cfg := config.LarkWSConfig{BroadcastCapacity: 8}
	return NewHub("app-1", "lark", cfg, StaticNegotiator{Endpoint: "wss://example.invalid/ws"}, zap.NewNop())
}

// broadcast must fan an event out only to subscribers of its own topic —
// the chat channel (im.message.receive_v1) and the docs-sync module
// (drive.file.edit_v1) never see each other's events.
func TestHub_BroadcastRoutesByTopic(t *testing.T) {
	h := newTestHub(t)

	chatSub, cancelChat := h.Subscribe("im.message.receive_v1")
	defer cancelChat()
	docsSub, cancelDocs := h.Subscribe("drive.file.edit_v1")
	defer cancelDocs()

	frame, err := entity.NewLarkWsFrame("im.message.receive_v1", []byte(`{"text":"hi"}`), 1)
	if err != nil {
		t.Fatalf("NewLarkWsFrame() error = %v", err)
	}
	h.broadcast(frame)

	select {
	case ev := <-chatSub.Events():
		if ev.EventType != "im.message.receive_v1" {
			t.Fatalf("chat subscriber got event type %q", ev.EventType)
		}
	default:
		t.Fatal("chat subscriber should have received the im.message.receive_v1 event")
	}

	select {
	case ev := <-docsSub.Events():
		t.Fatalf("docs-sync subscriber should not see a chat event, got %+v", ev)
	default:
	}
}

func TestHub_SubscribeAfterCancelStopsDelivery(t *testing.T) {
	h := newTestHub(t)
	sub, cancel := h.Subscribe("im.message.receive_v1")
	cancel()

	frame, _ := entity.NewLarkWsFrame("im.message.receive_v1", []byte("{}"), 1)
	h.broadcast(frame)

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Fatal("cancelled subscriber should not receive further events")
		}
	default:
		t.Fatal("cancelled subscriber's channel should be closed, not merely empty")
	}
}
