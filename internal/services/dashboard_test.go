package services

import (
	"context"
	"errors"
	"testing"

	"github.com/boogle-events/apiserver/types"
)

type failingDashboardRepo struct{ *fakeEventRepo }

func (failingDashboardRepo) ListByAttendee(context.Context, string) ([]types.Event, error) {
	return nil, errors.New("db down")
}

func TestDashboardService_Stats(t *testing.T) {
	t.Parallel()

	// usr_u organizes e1 and e2, attends e2 and e3 and e4.
	e1 := types.Event{ID: "evt_1", Organizer: "usr_u", Tickets: []types.TicketTier{
		{Type: "GA", Price: 10, Quantity: 10, Sold: 3},
		{Type: "VIP", Price: 20, Quantity: 5, Sold: 1},
	}}
	e2 := types.Event{ID: "evt_2", Organizer: "usr_u", Attendees: []types.Attendee{
		{User: "usr_u", TicketType: types.UnknownTicketType},
	}}
	e3 := types.Event{ID: "evt_3", Organizer: "usr_o", Attendees: []types.Attendee{
		{User: "usr_x", TicketType: "GA"},
		{User: "usr_u", TicketType: "VIP"},
	}}
	e4 := types.Event{ID: "evt_4", Organizer: "usr_o", Attendees: []types.Attendee{
		{User: "usr_u", TicketType: "GA"},
	}}
	e5 := types.Event{ID: "evt_5", Organizer: "usr_o"}

	svc := NewDashboardService(newFakeEventRepo(e1, e2, e3, e4, e5))

	stats, err := svc.Stats(context.Background(), "usr_u")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.CreatedEventsLength != 2 || stats.AttendingEventsLength != 3 || stats.TotalEvents != 5 {
		t.Fatalf("unexpected counts %d/%d/%d",
			stats.CreatedEventsLength, stats.AttendingEventsLength, stats.TotalEvents)
	}

	byID := map[string]types.DashboardEvent{}
	for _, e := range stats.CreatedEvents {
		byID[e.ID] = e
	}
	for _, e := range stats.AttendingEvents {
		byID[e.ID] = e
	}

	first := byID["evt_1"]
	if first.TotalSold != 4 || first.Revenue != 50 || first.UserTicketType != nil {
		t.Fatalf("unexpected figures for evt_1: %+v", first)
	}
	if got := byID["evt_2"].UserTicketType; got == nil || *got != types.UnknownTicketType {
		t.Fatalf("expected Unknown ticket type for evt_2, got %v", got)
	}
	if got := byID["evt_3"].UserTicketType; got == nil || *got != "VIP" {
		t.Fatalf("expected VIP ticket type for evt_3, got %v", got)
	}
	if _, ok := byID["evt_5"]; ok {
		t.Fatalf("unrelated event must not appear")
	}
}

func TestDashboardService_StatsDisjoint(t *testing.T) {
	t.Parallel()

	svc := NewDashboardService(newFakeEventRepo(
		types.Event{ID: "evt_a", Organizer: "usr_u"},
		types.Event{ID: "evt_b", Organizer: "usr_u"},
		types.Event{ID: "evt_c", Organizer: "usr_o", Attendees: []types.Attendee{{User: "usr_u", TicketType: "GA"}}},
		types.Event{ID: "evt_d", Organizer: "usr_o", Attendees: []types.Attendee{{User: "usr_u", TicketType: "VIP"}}},
	))

	stats, err := svc.Stats(context.Background(), "usr_u")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.CreatedEventsLength != 2 || stats.AttendingEventsLength != 2 || stats.TotalEvents != 4 {
		t.Fatalf("expected 2/2/4, got %d/%d/%d",
			stats.CreatedEventsLength, stats.AttendingEventsLength, stats.TotalEvents)
	}
}

func TestDashboardService_StatsEmpty(t *testing.T) {
	t.Parallel()

	stats, err := NewDashboardService(newFakeEventRepo()).Stats(context.Background(), "usr_none")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.CreatedEvents == nil || stats.AttendingEvents == nil {
		t.Fatalf("expected empty slices, got nil")
	}
	if stats.TotalEvents != 0 {
		t.Fatalf("expected no events, got %d", stats.TotalEvents)
	}
}

func TestDashboardService_StatsPropagatesErrors(t *testing.T) {
	t.Parallel()

	svc := NewDashboardService(failingDashboardRepo{newFakeEventRepo()})
	if _, err := svc.Stats(context.Background(), "usr_u"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestEnrich(t *testing.T) {
	t.Parallel()

	event := types.Event{
		Tickets: []types.TicketTier{
			{Type: "GA", Price: 12.5, Quantity: 100, Sold: 2},
			{Type: "Free", Price: 0, Quantity: 10, Sold: 7},
		},
		Attendees: []types.Attendee{{User: "usr_1", TicketType: "Free"}},
	}

	got := Enrich(event, "usr_1")
	if got.TotalSold != 9 || got.Revenue != 25 {
		t.Fatalf("unexpected totals %d/%v", got.TotalSold, got.Revenue)
	}
	if got.UserTicketType == nil || *got.UserTicketType != "Free" {
		t.Fatalf("unexpected user ticket type %v", got.UserTicketType)
	}
	if Enrich(event, "usr_2").UserTicketType != nil {
		t.Fatalf("expected nil ticket type for non-attendee")
	}
}
