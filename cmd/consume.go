/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/boogle-events/apiserver/internal/mq"
	"github.com/boogle-events/apiserver/internal/services"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// consumeCmd tails notification channels on the configured bus.
var consumeCmd = &cobra.Command{
	Use:   "consume [channel...]",
	Short: "Log event notifications from the message bus",
	Long: `Subscribes to notification channels and logs every message received.
Without arguments every event channel is consumed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		channels := args
		if len(channels) == 0 {
			channels = services.Channels
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		bus, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		defer bus.Close()

		g, gctx := errgroup.WithContext(ctx)
		for _, channel := range channels {
			g.Go(func() error {
				err := bus.Subscribe(gctx, channel, logNotification(channel))
				if err != nil && !errors.Is(err, context.Canceled) {
					return fmt.Errorf("subscribe %s: %w", channel, err)
				}
				return nil
			})
		}
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(consumeCmd)
}

func logNotification(channel string) mq.Handler {
	return func(ctx context.Context, msg mq.Message) error {
		var n services.Notification
		if err := json.Unmarshal(msg.Data, &n); err != nil {
			slog.WarnContext(ctx, "undecodable notification", "channel", channel, "id", msg.ID, "error", err)
			return nil
		}
		slog.InfoContext(ctx, "notification",
			"channel", channel,
			"id", msg.ID,
			"event_id", n.EventID,
			"user_id", n.UserID,
			"ticket_type", n.TicketType,
			"occurred_at", n.OccurredAt,
		)
		return nil
	}
}
