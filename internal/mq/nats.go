package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/boogle-events/apiserver/config"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// NATSClient publishes to and subscribes on NATS subjects. Channels map
// one-to-one onto subjects, so wildcards such as "events.>" work for
// subscribers.
type NATSClient struct {
	conn *nats.Conn
}

// NewNATSClient connects to NATS with automatic reconnection.
func NewNATSClient(cfg config.NATSConfig) (*NATSClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("nats url is required")
	}
	nc, err := nats.Connect(cfg.URL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.URL, err)
	}
	return &NATSClient{conn: nc}, nil
}

// Publish sends a message to the named subject.
func (n *NATSClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("nats channel is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	messageID := uuid.NewString()
	msg := nats.NewMsg(channel)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, messageID)
	for key, value := range attrs {
		msg.Header.Set(key, value)
	}
	if err := n.conn.PublishMsg(msg); err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe consumes messages from the named subject until ctx is done.
// Core NATS has no redelivery, so handler errors are only logged.
func (n *NATSClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("nats channel is required")
	}

	msgs := make(chan *nats.Msg, 64)
	sub, err := n.conn.ChanSubscribe(channel, msgs)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", channel, err)
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()
	if err := n.conn.Flush(); err != nil {
		return fmt.Errorf("flushing subscription: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-msgs:
			message := Message{
				ID:         msg.Header.Get(nats.MsgIdHdr),
				Data:       msg.Data,
				Attributes: natsHeaderToAttributes(msg.Header),
			}
			if err := handler(ctx, message); err != nil {
				slog.Warn("nats handler failed", "subject", msg.Subject, "error", err)
			}
		}
	}
}

// Close closes the NATS connection.
func (n *NATSClient) Close() error {
	n.conn.Close()
	return nil
}

func natsHeaderToAttributes(header nats.Header) map[string]string {
	if len(header) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(header))
	for key := range header {
		if key == nats.MsgIdHdr {
			continue
		}
		attrs[strings.ToLower(key)] = header.Get(key)
	}
	return attrs
}
