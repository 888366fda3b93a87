package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/boogle-events/apiserver/internal/services"
	"github.com/boogle-events/apiserver/internal/store"
	"github.com/boogle-events/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const (
	formFieldTitle       = "title"
	formFieldDesc        = "description"
	formFieldDate        = "date"
	formFieldLocation    = "location"
	formFieldCategory    = "category"
	formFieldTags        = "tags"
	formFieldTickets     = "tickets"
	formFieldIsPublished = "is_published"
)

// EventService is the subset of services.EventService the handlers use.
type EventService interface {
	GetEvent(ctx context.Context, id string) (types.Event, error)
	ListEvents(ctx context.Context, filter store.EventFilter, offset, limit int) ([]types.Event, int, error)
	CreateEvent(ctx context.Context, actor services.Actor, in services.EventInput) (types.Event, error)
	UpdateEvent(ctx context.Context, actor services.Actor, id string, patch services.EventPatch) (types.Event, error)
	DeleteEvent(ctx context.Context, actor services.Actor, id string) error
	PurchaseTicket(ctx context.Context, eventID, ticketType, userID string) (types.Event, error)
	RegisterAttendee(ctx context.Context, eventID, userID string) (types.Event, error)
}

// EventHandler provides HTTP handlers for events.
type EventHandler struct {
	eventService EventService
}

func NewEventHandler(eventService EventService) *EventHandler {
	return &EventHandler{eventService: eventService}
}

// EventRouter registers event routes on the given router. Reads are
// public; every write goes through authMiddleware.
func EventRouter(r chi.Router, handler *EventHandler, authMiddleware func(http.Handler) http.Handler) {
	organizerOnly := RequireRole(types.RoleOrganizer, types.RoleAdmin)

	r.Get("/", handler.ListEvents)
	r.With(authMiddleware, organizerOnly).Post("/", handler.CreateEvent)
	r.Route("/{eventID}", func(r chi.Router) {
		r.Get("/", handler.GetEvent)
		r.With(authMiddleware, organizerOnly).Patch("/", handler.UpdateEvent)
		r.With(authMiddleware, organizerOnly).Delete("/", handler.DeleteEvent)
		r.With(authMiddleware).Post("/register", handler.RegisterAttendee)
		r.With(authMiddleware).Post("/tickets/{ticketType}", handler.PurchaseTicket)
	})
}

func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	filter := store.EventFilter{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Location: q.Get("location"),
		Tags:     parseTags(q.Get("tags")),
	}

	items, total, err := h.eventService.ListEvents(r.Context(), filter, offset, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, EventListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.eventService.GetEvent(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// CreateEvent accepts either a JSON body or a multipart form carrying an
// image file.
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var in services.EventInput
	if isMultipart(r) {
		in, err = parseEventForm(r)
	} else {
		err = decodeJSON(r, &in, false)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.eventService.CreateEvent(r.Context(), actor, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, EventResponse{Message: "Event created successfully", Event: event})
}

func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var patch services.EventPatch
	if err := decodeJSON(r, &patch, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.eventService.UpdateEvent(r.Context(), actor, chi.URLParam(r, "eventID"), patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, EventResponse{Message: "Event updated successfully", Event: event})
}

func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.eventService.DeleteEvent(r.Context(), actor, chi.URLParam(r, "eventID")); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Event deleted successfully"})
}

func (h *EventHandler) RegisterAttendee(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.targetUser(w, r)
	if !ok {
		return
	}

	event, err := h.eventService.RegisterAttendee(r.Context(), chi.URLParam(r, "eventID"), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, EventResponse{Message: "Successfully registered for event", Event: event})
}

func (h *EventHandler) PurchaseTicket(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.targetUser(w, r)
	if !ok {
		return
	}

	ticketType, err := url.PathUnescape(chi.URLParam(r, "ticketType"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ticket type")
		return
	}

	event, err := h.eventService.PurchaseTicket(r.Context(), chi.URLParam(r, "eventID"), ticketType, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, EventResponse{Message: "Ticket purchased successfully", Event: event})
}

// targetUser resolves the user a register or purchase request acts for and
// writes the error response itself when it cannot.
func (h *EventHandler) targetUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}

	var req AttendRequest
	if err := decodeStrictJSON(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	target, err := req.target()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}

	userID, err := services.ActingFor(actor, target)
	if err != nil {
		writeServiceError(w, r, err)
		return "", false
	}
	return userID, true
}

func parseEventForm(r *http.Request) (services.EventInput, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return services.EventInput{}, errors.New("invalid multipart form")
	}

	in := services.EventInput{
		Title:       r.FormValue(formFieldTitle),
		Description: r.FormValue(formFieldDesc),
		Location:    r.FormValue(formFieldLocation),
		Category:    r.FormValue(formFieldCategory),
		Image:       r.FormValue(formFieldImage),
		Tags:        parseTags(r.FormValue(formFieldTags)),
	}

	if raw := strings.TrimSpace(r.FormValue(formFieldDate)); raw != "" {
		date, err := parseDate(raw)
		if err != nil {
			return services.EventInput{}, errors.New("invalid date")
		}
		in.Date = date
	}

	if raw := strings.TrimSpace(r.FormValue(formFieldIsPublished)); raw != "" {
		published, err := strconv.ParseBool(raw)
		if err != nil {
			return services.EventInput{}, errors.New("invalid is_published")
		}
		in.IsPublished = published
	}

	if raw := strings.TrimSpace(r.FormValue(formFieldTickets)); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Tickets); err != nil {
			return services.EventInput{}, errors.New("invalid tickets")
		}
	}

	upload, err := formImage(r, formFieldImage)
	if err != nil {
		return services.EventInput{}, err
	}
	in.ImageUpload = upload
	return in, nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}

// AttendRequest is the optional body of register and purchase calls.
// userId is accepted as an alias of user_id.
type AttendRequest struct {
	UserID      string `json:"user_id"`
	UserIDAlias string `json:"userId"`
}

func (req AttendRequest) target() (string, error) {
	id := strings.TrimSpace(req.UserID)
	alias := strings.TrimSpace(req.UserIDAlias)
	switch {
	case id == "":
		return alias, nil
	case alias != "" && alias != id:
		return "", errors.New("user_id and userId disagree")
	}
	return id, nil
}

type EventResponse struct {
	Message string      `json:"message"`
	Event   types.Event `json:"event"`
}

// EventListResponse is the paginated list response payload.
type EventListResponse struct {
	Items []types.Event `json:"items"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
	Total int           `json:"total"`
}
