package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/boogle-events/apiserver/config"
)

// Message attributes understood by every backend.
const (
	// AttrContentType carries the payload media type.
	AttrContentType = "content-type"
	// AttrKey carries the ordering key. Messages sharing a key are
	// delivered in publish order where the backend supports it.
	AttrKey = "key"
)

// Keyed is implemented by payloads that belong to an ordered stream, such
// as all notifications about one event.
type Keyed interface {
	MessageKey() string
}

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open connects to the backend selected by cfg.Backend. An empty backend
// yields a bus that drops every message.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	var backend Backend
	var err error
	switch cfg.Backend {
	case "", "none", "noop":
		backend = Noop{}
	case "rabbitmq":
		backend, err = NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		backend, err = NewPubSubClient(ctx, cfg.PubSub)
	case "nats":
		backend, err = NewNATSClient(cfg.NATS)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s mq: %w", cfg.Backend, err)
	}
	return New(backend), nil
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// PublishJSON encodes v as JSON and sends it to the named channel. When v
// is Keyed its key is attached as AttrKey.
func (m *MQ) PublishJSON(ctx context.Context, channel string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	attrs := map[string]string{AttrContentType: "application/json"}
	if keyed, ok := v.(Keyed); ok {
		if key := keyed.MessageKey(); key != "" {
			attrs[AttrKey] = key
		}
	}
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe consumes messages from the named channel.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}

func contentType(attrs map[string]string) string {
	if ct := attrs[AttrContentType]; ct != "" {
		return ct
	}
	return "application/octet-stream"
}
