package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/boogle-events/apiserver/internal/clock"
	"github.com/boogle-events/apiserver/internal/store"
	"github.com/boogle-events/apiserver/types"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// EventRepository defines persistence operations for events.
type EventRepository interface {
	Get(ctx context.Context, id string) (types.Event, error)
	List(ctx context.Context, filter store.EventFilter, offset, limit int) ([]types.Event, int, error)
	Create(ctx context.Context, event types.Event) (types.Event, error)
	// Mutate runs fn on the stored event under mutual exclusion with every
	// other Mutate of the same event and persists the result atomically.
	Mutate(ctx context.Context, id string, fn func(event *types.Event) error) (types.Event, error)
	Delete(ctx context.Context, id string) error
}

// EventService owns the event lifecycle and ticket inventory. Every write
// to an existing event goes through EventRepository.Mutate, so capacity
// and attendance checks hold when the write commits.
type EventService struct {
	repo      EventRepository
	media     *MediaService
	publisher Publisher
	clock     clock.Clock
}

func NewEventService(repo EventRepository, media *MediaService, publisher Publisher, clk clock.Clock) *EventService {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &EventService{
		repo:      repo,
		media:     media,
		publisher: publisher,
		clock:     clk,
	}
}

// EventInput is the payload of a new event.
type EventInput struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Date        time.Time          `json:"date"`
	Location    string             `json:"location"`
	Tickets     []types.TicketTier `json:"tickets"`
	Image       string             `json:"image"`
	Category    string             `json:"category"`
	Tags        []string           `json:"tags"`
	IsPublished bool               `json:"is_published"`

	// ImageUpload, when set, is hosted and replaces Image.
	ImageUpload *Upload `json:"-"`
}

// EventPatch is a partial update. Nil fields are left unchanged.
// Organizer and Attendees are only captured so that attempts to change
// them can be rejected.
type EventPatch struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Date        *time.Time          `json:"date"`
	Location    *string             `json:"location"`
	Tickets     *[]types.TicketTier `json:"tickets"`
	Image       *string             `json:"image"`
	Category    *string             `json:"category"`
	Tags        *[]string           `json:"tags"`
	IsPublished *bool               `json:"is_published"`

	Organizer json.RawMessage `json:"organizer"`
	Attendees json.RawMessage `json:"attendees"`
}

func (s *EventService) GetEvent(ctx context.Context, id string) (types.Event, error) {
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Event{}, notFound(err, ErrEventNotFound)
	}
	return event, nil
}

func (s *EventService) ListEvents(ctx context.Context, filter store.EventFilter, offset, limit int) ([]types.Event, int, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.List(ctx, filter, offset, limit)
}

// CreateEvent validates in and stores a new event organized by actor.
func (s *EventService) CreateEvent(ctx context.Context, actor Actor, in EventInput) (types.Event, error) {
	if err := RequireRole(actor, types.RoleOrganizer, types.RoleAdmin); err != nil {
		return types.Event{}, err
	}

	title := strings.TrimSpace(in.Title)
	location := strings.TrimSpace(in.Location)
	if title == "" || in.Date.IsZero() || location == "" {
		return types.Event{}, fmt.Errorf("%w: title, date and location are required", ErrValidation)
	}
	tickets, err := validateTiers(in.Tickets)
	if err != nil {
		return types.Event{}, err
	}
	if in.ImageUpload == nil {
		if err := validateImageURL(in.Image); err != nil {
			return types.Event{}, err
		}
	}

	image := strings.TrimSpace(in.Image)
	uploaded := false
	if in.ImageUpload != nil {
		image, err = s.media.UploadImage(ctx, FolderEvents, *in.ImageUpload)
		if err != nil {
			return types.Event{}, err
		}
		uploaded = true
	}

	event := types.Event{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Date:        in.Date.UTC(),
		Location:    location,
		Organizer:   actor.ID,
		Tickets:     tickets,
		Attendees:   []types.Attendee{},
		Image:       image,
		Category:    strings.TrimSpace(in.Category),
		Tags:        cleanTags(in.Tags),
		IsPublished: in.IsPublished,
	}
	if event.IsPublished {
		now := s.clock.Now()
		event.PublishedAt = &now
	}

	created, err := s.repo.Create(ctx, event)
	if err != nil {
		if uploaded {
			s.media.Discard(ctx, image)
		}
		return types.Event{}, err
	}

	notify(ctx, s.publisher, ChannelEventCreated, Notification{
		EventID:    created.ID,
		UserID:     actor.ID,
		OccurredAt: s.clock.Now(),
	})
	return created, nil
}

// UpdateEvent applies patch to the event. Only its organizer or an admin
// may update it, and organizer and attendees are never writable here.
func (s *EventService) UpdateEvent(ctx context.Context, actor Actor, id string, patch EventPatch) (types.Event, error) {
	if err := RequireRole(actor, types.RoleOrganizer, types.RoleAdmin); err != nil {
		return types.Event{}, err
	}
	if err := patch.validate(); err != nil {
		return types.Event{}, err
	}

	var replacedImage string
	updated, err := s.repo.Mutate(ctx, id, func(event *types.Event) error {
		if err := Authorize(actor.Role, event.Organizer, actor.ID); err != nil {
			return fmt.Errorf("%w: you can only update your own events", err)
		}

		if patch.Title != nil {
			event.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			event.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Date != nil {
			event.Date = patch.Date.UTC()
		}
		if patch.Location != nil {
			event.Location = strings.TrimSpace(*patch.Location)
		}
		if patch.Category != nil {
			event.Category = strings.TrimSpace(*patch.Category)
		}
		if patch.Tags != nil {
			event.Tags = cleanTags(*patch.Tags)
		}
		if patch.Image != nil {
			image := strings.TrimSpace(*patch.Image)
			if image != event.Image {
				replacedImage = event.Image
				event.Image = image
			}
		}
		if patch.Tickets != nil {
			tickets, err := mergeTiers(event.Tickets, *patch.Tickets)
			if err != nil {
				return err
			}
			event.Tickets = tickets
		}
		if patch.IsPublished != nil {
			switch {
			case *patch.IsPublished && !event.IsPublished:
				now := s.clock.Now()
				event.PublishedAt = &now
			case !*patch.IsPublished:
				event.PublishedAt = nil
			}
			event.IsPublished = *patch.IsPublished
		}
		return nil
	})
	if err != nil {
		return types.Event{}, notFound(err, ErrEventNotFound)
	}

	if replacedImage != "" {
		s.media.Discard(ctx, replacedImage)
	}
	notify(ctx, s.publisher, ChannelEventUpdated, Notification{
		EventID:    updated.ID,
		UserID:     actor.ID,
		OccurredAt: s.clock.Now(),
	})
	return updated, nil
}

// DeleteEvent removes the event if actor organizes it or is an admin.
func (s *EventService) DeleteEvent(ctx context.Context, actor Actor, id string) error {
	if err := RequireRole(actor, types.RoleOrganizer, types.RoleAdmin); err != nil {
		return err
	}

	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return notFound(err, ErrEventNotFound)
	}
	if err := Authorize(actor.Role, event.Organizer, actor.ID); err != nil {
		return fmt.Errorf("%w: you can only delete your own events", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFound(err, ErrEventNotFound)
	}

	s.media.Discard(ctx, event.Image)
	notify(ctx, s.publisher, ChannelEventDeleted, Notification{
		EventID:    id,
		UserID:     actor.ID,
		OccurredAt: s.clock.Now(),
	})
	return nil
}

// PurchaseTicket sells one ticket of ticketType to userID and records the
// attendance. It fails with ErrTicketUnavailable when the tier is missing
// or sold out and with ErrAlreadyRegistered when the user already attends.
func (s *EventService) PurchaseTicket(ctx context.Context, eventID, ticketType, userID string) (types.Event, error) {
	ticketType = strings.TrimSpace(ticketType)
	if ticketType == "" {
		return types.Event{}, fmt.Errorf("%w: ticket type is required", ErrValidation)
	}
	if userID == "" {
		return types.Event{}, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	event, err := s.repo.Mutate(ctx, eventID, func(event *types.Event) error {
		tier := event.Ticket(ticketType)
		if tier == nil || tier.Available() <= 0 {
			return ErrTicketUnavailable
		}
		if _, ok := event.Attendance(userID); ok {
			return ErrAlreadyRegistered
		}
		tier.Sold++
		event.Attendees = append(event.Attendees, types.Attendee{User: userID, TicketType: tier.Type})
		return nil
	})
	if err != nil {
		return types.Event{}, notFound(err, ErrEventNotFound)
	}

	notify(ctx, s.publisher, ChannelTicketPurchased, Notification{
		EventID:    event.ID,
		UserID:     userID,
		TicketType: ticketType,
		OccurredAt: s.clock.Now(),
	})
	return event, nil
}

// RegisterAttendee records userID as attending without a ticket tier.
func (s *EventService) RegisterAttendee(ctx context.Context, eventID, userID string) (types.Event, error) {
	if userID == "" {
		return types.Event{}, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	event, err := s.repo.Mutate(ctx, eventID, func(event *types.Event) error {
		if _, ok := event.Attendance(userID); ok {
			return ErrAlreadyRegistered
		}
		event.Attendees = append(event.Attendees, types.Attendee{User: userID, TicketType: types.UnknownTicketType})
		return nil
	})
	if err != nil {
		return types.Event{}, notFound(err, ErrEventNotFound)
	}

	notify(ctx, s.publisher, ChannelAttendeeRegistered, Notification{
		EventID:    event.ID,
		UserID:     userID,
		TicketType: types.UnknownTicketType,
		OccurredAt: s.clock.Now(),
	})
	return event, nil
}

func (p EventPatch) validate() error {
	if isSet(p.Organizer) || isSet(p.Attendees) {
		return fmt.Errorf("%w: organizer and attendees cannot be modified", ErrValidation)
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrValidation)
	}
	if p.Location != nil && strings.TrimSpace(*p.Location) == "" {
		return fmt.Errorf("%w: location cannot be empty", ErrValidation)
	}
	if p.Date != nil && p.Date.IsZero() {
		return fmt.Errorf("%w: date cannot be empty", ErrValidation)
	}
	if p.Image != nil {
		if err := validateImageURL(*p.Image); err != nil {
			return err
		}
	}
	if p.Tickets != nil {
		if _, err := validateTiers(*p.Tickets); err != nil {
			return err
		}
	}
	return nil
}

func isSet(raw json.RawMessage) bool {
	return len(raw) > 0
}

// validateTiers checks a tier list submitted by a client and returns a
// cleaned copy with Sold reset to zero.
func validateTiers(tiers []types.TicketTier) ([]types.TicketTier, error) {
	out := make([]types.TicketTier, 0, len(tiers))
	seen := make(map[string]struct{}, len(tiers))
	for _, tier := range tiers {
		tier.Type = strings.TrimSpace(tier.Type)
		if tier.Type == "" {
			return nil, fmt.Errorf("%w: ticket type is required", ErrValidation)
		}
		if _, dup := seen[tier.Type]; dup {
			return nil, fmt.Errorf("%w: duplicate ticket type %q", ErrValidation, tier.Type)
		}
		seen[tier.Type] = struct{}{}
		if tier.Price < 0 {
			return nil, fmt.Errorf("%w: price of ticket type %q cannot be negative", ErrValidation, tier.Type)
		}
		if tier.Quantity < 0 {
			return nil, fmt.Errorf("%w: quantity of ticket type %q cannot be negative", ErrValidation, tier.Type)
		}
		tier.Sold = 0
		out = append(out, tier)
	}
	return out, nil
}

// mergeTiers replaces current with next while carrying sold counts over by
// tier type. A tier cannot shrink below what it sold nor be removed once
// it sold anything.
func mergeTiers(current, next []types.TicketTier) ([]types.TicketTier, error) {
	merged, err := validateTiers(next)
	if err != nil {
		return nil, err
	}

	sold := make(map[string]int, len(current))
	for _, tier := range current {
		sold[tier.Type] = tier.Sold
	}
	kept := make(map[string]struct{}, len(merged))
	for i := range merged {
		n := sold[merged[i].Type]
		if merged[i].Quantity < n {
			return nil, fmt.Errorf("%w: quantity of ticket type %q cannot be below the %d already sold", ErrValidation, merged[i].Type, n)
		}
		merged[i].Sold = n
		kept[merged[i].Type] = struct{}{}
	}
	for _, tier := range current {
		if _, ok := kept[tier.Type]; !ok && tier.Sold > 0 {
			return nil, fmt.Errorf("%w: ticket type %q has sold tickets and cannot be removed", ErrValidation, tier.Type)
		}
	}
	return merged, nil
}

func validateImageURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%w: image is required", ErrValidation)
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: image must be an http(s) URL", ErrValidation)
	}
	return nil
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
