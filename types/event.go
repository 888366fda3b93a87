package types

import "time"

// UnknownTicketType is recorded for attendees that registered without
// purchasing a specific ticket tier.
const UnknownTicketType = "Unknown"

// Event represents an organized event with ticket tiers and attendees.
type Event struct {
	// ID is the unique identifier of the event.
	ID string `json:"id" db:"id"`

	// Title is the human-readable name of the event.
	Title string `json:"title" db:"title"`

	// Description is the long-form description of the event.
	Description string `json:"description" db:"description"`

	// Date is when the event takes place.
	Date time.Time `json:"date" db:"date"`

	// Location is a free-form venue or address.
	Location string `json:"location" db:"location"`

	// Organizer is the ID of the user who created the event.
	// It never changes after creation.
	Organizer string `json:"organizer" db:"organizer_id"`

	// OrganizerInfo is a summary of the organizer's profile, attached on
	// reads that join the users table.
	OrganizerInfo *OrganizerInfo `json:"organizer_info,omitempty" db:"-"`

	// Tickets is the ordered list of ticket tiers on sale for the event.
	Tickets []TicketTier `json:"tickets" db:"tickets"`

	// Attendees holds one record per registered user. Only registration
	// and ticket purchase mutate this list.
	Attendees []Attendee `json:"attendees" db:"attendees"`

	// Image is the URL of the event's cover image.
	Image string `json:"image" db:"image"`

	// Category is an optional free-form category.
	Category string `json:"category" db:"category"`

	// Tags are free-form labels used for filtering.
	Tags []string `json:"tags" db:"tags"`

	// IsPublished reports whether the event is publicly announced.
	IsPublished bool `json:"is_published" db:"is_published"`

	// PublishedAt is when the event was last published, if it is published.
	PublishedAt *time.Time `json:"published_at" db:"published_at"`

	// Likes is a simple popularity counter.
	Likes int `json:"likes" db:"likes"`

	// CreatedAt is the timestamp at which the event was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the event.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// OrganizerInfo is the public subset of the organizing user's profile.
type OrganizerInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// TicketTier is a priced, capacity-limited class of tickets within an event.
// Type acts as the tier key and is unique within its event.
type TicketTier struct {
	// Type is the tier name, e.g. "GA" or "VIP".
	Type string `json:"type"`

	// Price is the non-negative unit price of a ticket.
	Price float64 `json:"price"`

	// Quantity is the total number of tickets that can be sold.
	Quantity int `json:"quantity"`

	// Sold is the number of tickets sold so far. Sold never exceeds Quantity.
	Sold int `json:"sold"`
}

// Available returns the number of tickets still for sale.
func (t TicketTier) Available() int {
	return t.Quantity - t.Sold
}

// Attendee is the canonical attendance record of a user for an event.
type Attendee struct {
	// User is the ID of the attending user.
	User string `json:"user"`

	// TicketType references the TicketTier.Type the user holds, or
	// UnknownTicketType when no tier applies.
	TicketType string `json:"ticket_type"`
}

// Ticket returns a pointer to the tier with the given type, or nil.
func (e *Event) Ticket(ticketType string) *TicketTier {
	for i := range e.Tickets {
		if e.Tickets[i].Type == ticketType {
			return &e.Tickets[i]
		}
	}
	return nil
}

// Attendance returns the attendance record for userID, if any.
func (e *Event) Attendance(userID string) (Attendee, bool) {
	for _, a := range e.Attendees {
		if a.User == userID {
			return a, true
		}
	}
	return Attendee{}, false
}
