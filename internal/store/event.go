package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boogle-events/apiserver/internal/attendees"
	"github.com/boogle-events/apiserver/internal/db"
	"github.com/boogle-events/apiserver/internal/idgen"
	"github.com/boogle-events/apiserver/types"
	"github.com/lib/pq"
)

const eventColumns = `e.id, e.title, e.description, e.date, e.location, e.organizer_id, e.tickets, e.attendees,
	e.image, e.category, e.tags, e.is_published, e.published_at, e.likes, e.created_at, e.updated_at`

const eventWithOrganizerSelect = `
		SELECT ` + eventColumns + `, u.first_name, u.last_name, u.email
		FROM events e
		LEFT JOIN users u ON u.id = e.organizer_id`

// EventFilter narrows ListEvents results. Zero values are ignored.
type EventFilter struct {
	// Search matches title or description, case-insensitively.
	Search string
	// Category must match exactly.
	Category string
	// Location matches a substring, case-insensitively.
	Location string
	// Tags matches events carrying any of the tags.
	Tags []string
}

// EventRepository handles persistence for events. Ticket tiers and attendee
// lists are stored as JSON documents on the event row.
type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Get(ctx context.Context, id string) (types.Event, error) {
	const query = eventWithOrganizerSelect + `
		WHERE e.id = $1`
	event, err := scanEvent(r.db.QueryRowContext(ctx, query, id), true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Event{}, ErrNotFound
		}
		return types.Event{}, err
	}
	return event, nil
}

func (r *EventRepository) List(ctx context.Context, filter EventFilter, offset, limit int) ([]types.Event, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	where, args := filter.clause()

	countQuery := `SELECT COUNT(1) FROM events e` + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	listQuery := eventWithOrganizerSelect + where + fmt.Sprintf(`
		ORDER BY e.created_at DESC, e.id
		OFFSET $%d LIMIT $%d`, len(args)+1, len(args)+2)
	args = append(args, offset, limit)

	events, err := r.query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// ListByOrganizer returns every event organized by userID.
func (r *EventRepository) ListByOrganizer(ctx context.Context, userID string) ([]types.Event, error) {
	const query = eventWithOrganizerSelect + `
		WHERE e.organizer_id = $1
		ORDER BY e.created_at, e.id`
	return r.query(ctx, query, userID)
}

// attendeeMatch selects every stored attendee shape that can normalize to
// $id. It is a superset: numeric user references always match and records
// the normalizer would drop still pass, so callers filter the results.
const attendeeMatch = `jsonb_path_exists(e.attendees,
	'$[*] ? (@ == $id || @.user == $id || @.user._id == $id || @.user.id == $id || @.user."$oid" == $id || @.user.type() == "number")',
	jsonb_build_object('id', $1::text))`

// ListByAttendee returns every event whose normalized attendee list holds
// userID.
func (r *EventRepository) ListByAttendee(ctx context.Context, userID string) ([]types.Event, error) {
	const query = eventWithOrganizerSelect + `
		WHERE ` + attendeeMatch + `
		ORDER BY e.created_at, e.id`
	candidates, err := r.query(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	events := candidates[:0]
	for _, event := range candidates {
		if _, ok := event.Attendance(userID); ok {
			events = append(events, event)
		}
	}
	return events, nil
}

func (r *EventRepository) Create(ctx context.Context, event types.Event) (types.Event, error) {
	if event.ID == "" {
		id, err := idgen.New(idgen.PrefixEvent)
		if err != nil {
			return types.Event{}, err
		}
		event.ID = id
	}
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now

	docs, err := encodeDocuments(event)
	if err != nil {
		return types.Event{}, err
	}

	const query = `
		INSERT INTO events (
			id, title, description, date, location, organizer_id, tickets, attendees,
			image, category, tags, is_published, published_at, likes, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		event.ID,
		event.Title,
		event.Description,
		event.Date,
		event.Location,
		event.Organizer,
		docs.tickets,
		docs.attendees,
		event.Image,
		event.Category,
		docs.tags,
		event.IsPublished,
		nullTime(event.PublishedAt),
		event.Likes,
		event.CreatedAt,
		event.UpdatedAt,
	); err != nil {
		return types.Event{}, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

// Mutate applies fn to the event under a row lock and persists the result in
// the same transaction. Concurrent Mutate calls on one event are serialized,
// so checks made inside fn still hold when the write commits. An error from
// fn rolls the transaction back and is returned unchanged. The organizer
// column is never rewritten.
func (r *EventRepository) Mutate(ctx context.Context, id string, fn func(event *types.Event) error) (types.Event, error) {
	var event types.Event
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		const selectQuery = `
			SELECT ` + eventColumns + `
			FROM events e
			WHERE e.id = $1
			FOR UPDATE`
		locked, err := scanEvent(tx.QueryRowContext(ctx, selectQuery, id), false)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		if err := fn(&locked); err != nil {
			return err
		}
		locked.UpdatedAt = time.Now().UTC()
		if err := updateEvent(ctx, tx, locked); err != nil {
			return err
		}
		event = locked
		return nil
	})
	if err != nil {
		return types.Event{}, err
	}
	return event, nil
}

func updateEvent(ctx context.Context, tx *sql.Tx, event types.Event) error {
	docs, err := encodeDocuments(event)
	if err != nil {
		return err
	}

	const updateQuery = `
		UPDATE events
		SET title = $1,
			description = $2,
			date = $3,
			location = $4,
			tickets = $5,
			attendees = $6,
			image = $7,
			category = $8,
			tags = $9,
			is_published = $10,
			published_at = $11,
			likes = $12,
			updated_at = $13
		WHERE id = $14`
	_, err = tx.ExecContext(
		ctx,
		updateQuery,
		event.Title,
		event.Description,
		event.Date,
		event.Location,
		docs.tickets,
		docs.attendees,
		event.Image,
		event.Category,
		docs.tags,
		event.IsPublished,
		nullTime(event.PublishedAt),
		event.Likes,
		event.UpdatedAt,
		event.ID,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

func (r *EventRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM events WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *EventRepository) query(ctx context.Context, query string, args ...any) ([]types.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]types.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows, true)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (f EventFilter) clause() (string, []any) {
	var conds []string
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if search := strings.TrimSpace(f.Search); search != "" {
		p := next(likePattern(search))
		conds = append(conds, fmt.Sprintf("(e.title ILIKE %s OR e.description ILIKE %s)", p, p))
	}
	if category := strings.TrimSpace(f.Category); category != "" {
		conds = append(conds, "e.category = "+next(category))
	}
	if location := strings.TrimSpace(f.Location); location != "" {
		conds = append(conds, "e.location ILIKE "+next(likePattern(location)))
	}
	if len(f.Tags) > 0 {
		conds = append(conds, "e.tags ?| "+next(pq.Array(f.Tags)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "\n\t\tWHERE " + strings.Join(conds, " AND "), args
}

func likePattern(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(s) + "%"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner, withOrganizer bool) (types.Event, error) {
	var event types.Event
	var ticketsJSON, attendeesJSON, tagsJSON []byte
	var publishedAt sql.NullTime
	dest := []any{
		&event.ID,
		&event.Title,
		&event.Description,
		&event.Date,
		&event.Location,
		&event.Organizer,
		&ticketsJSON,
		&attendeesJSON,
		&event.Image,
		&event.Category,
		&tagsJSON,
		&event.IsPublished,
		&publishedAt,
		&event.Likes,
		&event.CreatedAt,
		&event.UpdatedAt,
	}
	var firstName, lastName, email sql.NullString
	if withOrganizer {
		dest = append(dest, &firstName, &lastName, &email)
	}
	if err := row.Scan(dest...); err != nil {
		return types.Event{}, err
	}

	if publishedAt.Valid {
		t := publishedAt.Time
		event.PublishedAt = &t
	}
	if firstName.Valid || email.Valid {
		event.OrganizerInfo = &types.OrganizerInfo{
			FirstName: firstName.String,
			LastName:  lastName.String,
			Email:     email.String,
		}
	}

	event.Tickets = []types.TicketTier{}
	if len(ticketsJSON) > 0 {
		if err := json.Unmarshal(ticketsJSON, &event.Tickets); err != nil {
			return types.Event{}, fmt.Errorf("decode tickets of event %s: %w", event.ID, err)
		}
		if event.Tickets == nil {
			event.Tickets = []types.TicketTier{}
		}
	}

	var rawAttendees []json.RawMessage
	if len(attendeesJSON) > 0 {
		if err := json.Unmarshal(attendeesJSON, &rawAttendees); err != nil {
			return types.Event{}, fmt.Errorf("decode attendees of event %s: %w", event.ID, err)
		}
	}
	event.Attendees = attendees.Normalize(rawAttendees)

	event.Tags = []string{}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &event.Tags); err != nil {
			return types.Event{}, fmt.Errorf("decode tags of event %s: %w", event.ID, err)
		}
	}
	if event.Tags == nil {
		event.Tags = []string{}
	}
	return event, nil
}

type eventDocuments struct {
	tickets   []byte
	attendees []byte
	tags      []byte
}

func encodeDocuments(event types.Event) (eventDocuments, error) {
	var docs eventDocuments
	var err error
	if docs.tickets, err = marshalList(event.Tickets); err != nil {
		return eventDocuments{}, fmt.Errorf("encode tickets: %w", err)
	}
	if docs.attendees, err = marshalList(event.Attendees); err != nil {
		return eventDocuments{}, fmt.Errorf("encode attendees: %w", err)
	}
	if docs.tags, err = marshalList(event.Tags); err != nil {
		return eventDocuments{}, fmt.Errorf("encode tags: %w", err)
	}
	return docs, nil
}

func marshalList[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
