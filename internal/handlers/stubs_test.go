package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/boogle-events/apiserver/internal/services"
	"github.com/boogle-events/apiserver/internal/store"
	"github.com/boogle-events/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const testSecret = "test-secret"

var testUsers = map[string]types.User{
	"usr_user":  {ID: "usr_user", Email: "user@example.com", Role: types.RoleUser},
	"usr_org":   {ID: "usr_org", Email: "org@example.com", Role: types.RoleOrganizer},
	"usr_admin": {ID: "usr_admin", Email: "admin@example.com", Role: types.RoleAdmin},
}

type stubUserService struct {
	register     func(services.RegisterInput) (types.User, error)
	authenticate func(email, password string) (types.User, error)
	update       func(id string, patch services.ProfilePatch) (types.User, error)
	setAvatar    func(id string, upload services.Upload) (types.User, error)
}

func (s *stubUserService) GetByID(_ context.Context, id string) (types.User, error) {
	user, ok := testUsers[id]
	if !ok {
		return types.User{}, services.ErrUserNotFound
	}
	return user, nil
}

func (s *stubUserService) Register(_ context.Context, in services.RegisterInput) (types.User, error) {
	return s.register(in)
}

func (s *stubUserService) Authenticate(_ context.Context, email, password string) (types.User, error) {
	return s.authenticate(email, password)
}

func (s *stubUserService) UpdateProfile(_ context.Context, id string, patch services.ProfilePatch) (types.User, error) {
	return s.update(id, patch)
}

func (s *stubUserService) SetAvatar(_ context.Context, id string, upload services.Upload) (types.User, error) {
	return s.setAvatar(id, upload)
}

type purchaseCall struct {
	eventID    string
	ticketType string
	userID     string
}

type stubEventService struct {
	err error

	lastFilter store.EventFilter
	lastOffset int
	lastLimit  int
	lastInput  services.EventInput
	lastActor  services.Actor
	lastPatch  services.EventPatch
	purchases  []purchaseCall
	registered []string
}

func (s *stubEventService) event(id string) types.Event {
	return types.Event{ID: id, Title: "Launch", Organizer: "usr_org", Tickets: []types.TicketTier{}, Attendees: []types.Attendee{}}
}

func (s *stubEventService) GetEvent(_ context.Context, id string) (types.Event, error) {
	if s.err != nil {
		return types.Event{}, s.err
	}
	return s.event(id), nil
}

func (s *stubEventService) ListEvents(_ context.Context, filter store.EventFilter, offset, limit int) ([]types.Event, int, error) {
	s.lastFilter, s.lastOffset, s.lastLimit = filter, offset, limit
	if s.err != nil {
		return nil, 0, s.err
	}
	return []types.Event{s.event("evt_1")}, 41, nil
}

func (s *stubEventService) CreateEvent(_ context.Context, actor services.Actor, in services.EventInput) (types.Event, error) {
	s.lastActor, s.lastInput = actor, in
	if s.err != nil {
		return types.Event{}, s.err
	}
	event := s.event("evt_new")
	event.Title = in.Title
	event.Organizer = actor.ID
	return event, nil
}

func (s *stubEventService) UpdateEvent(_ context.Context, actor services.Actor, id string, patch services.EventPatch) (types.Event, error) {
	s.lastActor, s.lastPatch = actor, patch
	if s.err != nil {
		return types.Event{}, s.err
	}
	return s.event(id), nil
}

func (s *stubEventService) DeleteEvent(_ context.Context, actor services.Actor, _ string) error {
	s.lastActor = actor
	return s.err
}

func (s *stubEventService) PurchaseTicket(_ context.Context, eventID, ticketType, userID string) (types.Event, error) {
	s.purchases = append(s.purchases, purchaseCall{eventID, ticketType, userID})
	if s.err != nil {
		return types.Event{}, s.err
	}
	return s.event(eventID), nil
}

func (s *stubEventService) RegisterAttendee(_ context.Context, eventID, userID string) (types.Event, error) {
	s.registered = append(s.registered, userID)
	if s.err != nil {
		return types.Event{}, s.err
	}
	return s.event(eventID), nil
}

type stubDashboardService struct {
	stats    types.DashboardStats
	err      error
	lastUser string
}

func (s *stubDashboardService) Stats(_ context.Context, userID string) (types.DashboardStats, error) {
	s.lastUser = userID
	return s.stats, s.err
}

func newTestRouter(users UserService, events EventService, dashboard DashboardService) http.Handler {
	auth := NewAuthHandler(users, testSecret, time.Hour)
	router := chi.NewRouter()
	router.Get("/healthz", Healthz)
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, auth)
	})
	router.Route("/events", func(r chi.Router) {
		EventRouter(r, NewEventHandler(events), auth.RequireAuth)
	})
	router.Route("/dashboard", func(r chi.Router) {
		DashboardRouter(r, NewDashboardHandler(dashboard), auth.RequireAuth)
	})
	return router
}

func bearerFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := issueToken(userID, []byte(testSecret), time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + token
}

func assertContains(t *testing.T, body, want string) {
	t.Helper()
	if want != "" && !strings.Contains(body, want) {
		t.Fatalf("expected body to contain %q, got %s", want, body)
	}
}
