package types

// DashboardEvent is an event enriched with sales figures and the caller's
// own ticket, as returned by the dashboard.
type DashboardEvent struct {
	Event

	// TotalSold is the number of tickets sold across all tiers.
	TotalSold int `json:"total_sold"`

	// Revenue is the sum of price times sold across all tiers.
	Revenue float64 `json:"revenue"`

	// UserTicketType is the ticket type held by the requesting user, or
	// nil when the user does not attend the event.
	UserTicketType *string `json:"user_ticket_type"`
}

// DashboardStats aggregates the events a user organizes and attends.
type DashboardStats struct {
	CreatedEvents         []DashboardEvent `json:"created_events"`
	AttendingEvents       []DashboardEvent `json:"attending_events"`
	CreatedEventsLength   int              `json:"created_events_length"`
	AttendingEventsLength int              `json:"attending_events_length"`

	// TotalEvents is CreatedEventsLength + AttendingEventsLength. An event
	// the user both organizes and attends is counted twice.
	TotalEvents int `json:"total_events"`
}
