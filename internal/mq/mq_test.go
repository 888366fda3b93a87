package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/boogle-events/apiserver/config"
	"github.com/nats-io/nats.go"
	amqp "github.com/rabbitmq/amqp091-go"
)

type recordingBackend struct {
	channel string
	data    []byte
	attrs   map[string]string
}

func (r *recordingBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	r.channel = channel
	r.data = data
	r.attrs = attrs
	return "msg-1", nil
}

func (r *recordingBackend) Subscribe(context.Context, string, Handler) error { return nil }
func (r *recordingBackend) Close() error                                      { return nil }

func TestPublishJSON(t *testing.T) {
	backend := &recordingBackend{}
	bus := New(backend)

	id, err := bus.PublishJSON(context.Background(), "events.created", map[string]string{"event_id": "evt_1"})
	if err != nil {
		t.Fatalf("PublishJSON: %v", err)
	}
	if id != "msg-1" || backend.channel != "events.created" {
		t.Fatalf("unexpected publish id=%q channel=%q", id, backend.channel)
	}
	var got map[string]string
	if err := json.Unmarshal(backend.data, &got); err != nil || got["event_id"] != "evt_1" {
		t.Fatalf("unexpected payload %s (%v)", backend.data, err)
	}
	if contentType(backend.attrs) != "application/json" {
		t.Fatalf("unexpected content type attrs %v", backend.attrs)
	}
}

func TestPublishJSONRejectsUnencodable(t *testing.T) {
	bus := New(&recordingBackend{})
	if _, err := bus.PublishJSON(context.Background(), "events.created", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestOpenDefaultsToNoop(t *testing.T) {
	bus, err := Open(context.Background(), config.MQConfig{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := bus.Publish(context.Background(), "events.created", []byte("{}"), nil); err != nil {
		t.Fatalf("noop publish: %v", err)
	}
	if err := bus.Subscribe(context.Background(), "events.created", nil); !errors.Is(err, ErrNoBackend) {
		t.Fatalf("expected ErrNoBackend, got %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("noop close: %v", err)
	}
}

func TestOpenValidatesBackends(t *testing.T) {
	for _, cfg := range []config.MQConfig{
		{Backend: "kafka"},
		{Backend: "rabbitmq"},
		{Backend: "pubsub"},
		{Backend: "nats"},
	} {
		if _, err := Open(context.Background(), cfg); err == nil {
			t.Errorf("Open(%q) expected error", cfg.Backend)
		}
	}
}

func TestContentTypeDefault(t *testing.T) {
	if got := contentType(nil); got != "application/octet-stream" {
		t.Fatalf("unexpected default %q", got)
	}
}

func TestHeadersToAttributes(t *testing.T) {
	attrs := headersToAttributes(amqp.Table{"a": "x", "b": []byte("y"), "c": int32(3)})
	if attrs["a"] != "x" || attrs["b"] != "y" || attrs["c"] != "3" {
		t.Fatalf("unexpected attrs %v", attrs)
	}
	if headersToAttributes(nil) != nil {
		t.Fatal("expected nil attrs for empty headers")
	}
}

func TestNATSHeaderToAttributes(t *testing.T) {
	header := nats.Header{}
	header.Set(nats.MsgIdHdr, "id-1")
	header.Set("Content-Type", "application/json")
	attrs := natsHeaderToAttributes(header)
	if len(attrs) != 1 || attrs["content-type"] != "application/json" {
		t.Fatalf("unexpected attrs %v", attrs)
	}
}

type keyedPayload struct {
	EventID string `json:"event_id"`
}

func (k keyedPayload) MessageKey() string { return k.EventID }

func TestPublishJSONAttachesKey(t *testing.T) {
	backend := &recordingBackend{}
	bus := New(backend)

	if _, err := bus.PublishJSON(context.Background(), "events.updated", keyedPayload{EventID: "evt_9"}); err != nil {
		t.Fatalf("PublishJSON: %v", err)
	}
	if backend.attrs[AttrKey] != "evt_9" {
		t.Fatalf("expected key attr, got %v", backend.attrs)
	}

	if _, err := bus.PublishJSON(context.Background(), "events.updated", keyedPayload{}); err != nil {
		t.Fatalf("PublishJSON: %v", err)
	}
	if _, ok := backend.attrs[AttrKey]; ok {
		t.Fatalf("empty key should not be attached, got %v", backend.attrs)
	}
}

func TestRabbitPublishing(t *testing.T) {
	attrs := map[string]string{AttrContentType: "application/json", AttrKey: "evt_1"}

	msg := rabbitPublishing([]byte("{}"), attrs, true)
	if msg.DeliveryMode != amqp.Persistent {
		t.Fatalf("expected persistent delivery, got %d", msg.DeliveryMode)
	}
	if msg.CorrelationId != "evt_1" || msg.ContentType != "application/json" {
		t.Fatalf("unexpected publishing %+v", msg)
	}
	if msg.MessageId == "" || msg.Timestamp.IsZero() || msg.AppId != rabbitAppID {
		t.Fatalf("missing publishing metadata %+v", msg)
	}

	if got := rabbitPublishing(nil, nil, false).DeliveryMode; got != amqp.Transient {
		t.Fatalf("expected transient delivery, got %d", got)
	}
}

func TestDeliveryMessageRestoresKey(t *testing.T) {
	msg := deliveryMessage(amqp.Delivery{MessageId: "m1", CorrelationId: "evt_2", Body: []byte("x")})
	if msg.ID != "m1" || msg.Attributes[AttrKey] != "evt_2" {
		t.Fatalf("unexpected message %+v", msg)
	}

	msg = deliveryMessage(amqp.Delivery{Headers: amqp.Table{AttrKey: "evt_3"}, CorrelationId: "evt_4"})
	if msg.Attributes[AttrKey] != "evt_3" {
		t.Fatalf("header key should win, got %v", msg.Attributes)
	}
}

func TestCloneAttrs(t *testing.T) {
	src := map[string]string{"a": "1"}
	out := cloneAttrs(src)
	out["b"] = "2"
	if _, ok := src["b"]; ok {
		t.Fatal("clone shares storage with source")
	}
	if len(cloneAttrs(nil)) != 0 {
		t.Fatal("expected empty clone")
	}
}
