package services

import (
	"context"

	"github.com/boogle-events/apiserver/types"
	"golang.org/x/sync/errgroup"
)

// DashboardRepository lists the events related to a user.
type DashboardRepository interface {
	ListByOrganizer(ctx context.Context, userID string) ([]types.Event, error)
	ListByAttendee(ctx context.Context, userID string) ([]types.Event, error)
}

// DashboardService aggregates a user's organized and attended events.
type DashboardService struct {
	repo DashboardRepository
}

func NewDashboardService(repo DashboardRepository) *DashboardService {
	return &DashboardService{repo: repo}
}

// Stats loads both event sets concurrently and enriches every event with
// its sales figures and the ticket type userID holds. TotalEvents is the
// plain sum of both counts, so an event the user organizes and attends is
// counted twice.
func (s *DashboardService) Stats(ctx context.Context, userID string) (types.DashboardStats, error) {
	var created, attending []types.Event

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		events, err := s.repo.ListByOrganizer(gctx, userID)
		created = events
		return err
	})
	g.Go(func() error {
		events, err := s.repo.ListByAttendee(gctx, userID)
		attending = events
		return err
	})
	if err := g.Wait(); err != nil {
		return types.DashboardStats{}, err
	}

	stats := types.DashboardStats{
		CreatedEvents:   enrichAll(created, userID),
		AttendingEvents: enrichAll(attending, userID),
	}
	stats.CreatedEventsLength = len(stats.CreatedEvents)
	stats.AttendingEventsLength = len(stats.AttendingEvents)
	stats.TotalEvents = stats.CreatedEventsLength + stats.AttendingEventsLength
	return stats, nil
}

func enrichAll(events []types.Event, userID string) []types.DashboardEvent {
	out := make([]types.DashboardEvent, 0, len(events))
	for _, event := range events {
		out = append(out, Enrich(event, userID))
	}
	return out
}

// Enrich computes the dashboard figures of a single event for userID.
// The event's attendees must already be normalized.
func Enrich(event types.Event, userID string) types.DashboardEvent {
	enriched := types.DashboardEvent{Event: event}
	for _, tier := range event.Tickets {
		enriched.TotalSold += tier.Sold
		enriched.Revenue += tier.Price * float64(tier.Sold)
	}
	if attendee, ok := event.Attendance(userID); ok {
		ticketType := attendee.TicketType
		enriched.UserTicketType = &ticketType
	}
	return enriched
}
