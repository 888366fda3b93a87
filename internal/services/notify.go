package services

import (
	"context"
	"log/slog"
	"time"
)

// Notification channels published after successful event mutations.
const (
	ChannelEventCreated       = "events.created"
	ChannelEventUpdated       = "events.updated"
	ChannelEventDeleted       = "events.deleted"
	ChannelAttendeeRegistered = "events.attendee_registered"
	ChannelTicketPurchased    = "events.ticket_purchased"
)

// Channels lists every notification channel.
var Channels = []string{
	ChannelEventCreated,
	ChannelEventUpdated,
	ChannelEventDeleted,
	ChannelAttendeeRegistered,
	ChannelTicketPurchased,
}

// Publisher delivers JSON notifications to a message bus.
type Publisher interface {
	PublishJSON(ctx context.Context, channel string, v any) (string, error)
}

// Notification is the payload of every event notification.
type Notification struct {
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id,omitempty"`
	TicketType string    `json:"ticket_type,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// MessageKey orders notifications per event on the bus.
func (n Notification) MessageKey() string {
	return n.EventID
}

// notify publishes best-effort. A bus failure never fails the request that
// already committed.
func notify(ctx context.Context, pub Publisher, channel string, n Notification) {
	if pub == nil {
		return
	}
	if _, err := pub.PublishJSON(ctx, channel, n); err != nil {
		slog.WarnContext(ctx, "failed to publish notification", "channel", channel, "event_id", n.EventID, "error", err)
	}
}
