package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/boogle-events/apiserver/internal/store"
	"github.com/boogle-events/apiserver/types"
)

// fakeEventRepo keeps events in memory. Mutate holds a per-event lock for
// the duration of the callback, like the row lock of the real repository.
type fakeEventRepo struct {
	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	events map[string]types.Event
	nextID int
}

func newFakeEventRepo(events ...types.Event) *fakeEventRepo {
	repo := &fakeEventRepo{
		locks:  make(map[string]*sync.Mutex),
		events: make(map[string]types.Event),
	}
	for _, event := range events {
		repo.events[event.ID] = cloneEvent(event)
		repo.locks[event.ID] = &sync.Mutex{}
	}
	return repo
}

func (r *fakeEventRepo) Get(_ context.Context, id string) (types.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return types.Event{}, store.ErrNotFound
	}
	return cloneEvent(event), nil
}

func (r *fakeEventRepo) List(_ context.Context, _ store.EventFilter, offset, limit int) ([]types.Event, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]types.Event, 0, len(r.events))
	for _, event := range r.events {
		all = append(all, cloneEvent(event))
	}
	total := len(all)
	if offset > total {
		offset = total
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (r *fakeEventRepo) Create(_ context.Context, event types.Event) (types.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	event.ID = fmt.Sprintf("evt_%d", r.nextID)
	r.events[event.ID] = cloneEvent(event)
	r.locks[event.ID] = &sync.Mutex{}
	return event, nil
}

func (r *fakeEventRepo) Mutate(_ context.Context, id string, fn func(event *types.Event) error) (types.Event, error) {
	r.mu.Lock()
	lock, ok := r.locks[id]
	r.mu.Unlock()
	if !ok {
		return types.Event{}, store.ErrNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	event, ok := r.events[id]
	r.mu.Unlock()
	if !ok {
		return types.Event{}, store.ErrNotFound
	}
	event = cloneEvent(event)
	if err := fn(&event); err != nil {
		return types.Event{}, err
	}

	r.mu.Lock()
	r.events[id] = cloneEvent(event)
	r.mu.Unlock()
	return event, nil
}

func (r *fakeEventRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.events, id)
	delete(r.locks, id)
	return nil
}

func (r *fakeEventRepo) stored(id string) types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneEvent(r.events[id])
}

func (r *fakeEventRepo) ListByOrganizer(_ context.Context, userID string) ([]types.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []types.Event{}
	for _, event := range r.events {
		if event.Organizer == userID {
			out = append(out, cloneEvent(event))
		}
	}
	return out, nil
}

func (r *fakeEventRepo) ListByAttendee(_ context.Context, userID string) ([]types.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []types.Event{}
	for _, event := range r.events {
		if _, ok := event.Attendance(userID); ok {
			out = append(out, cloneEvent(event))
		}
	}
	return out, nil
}

func cloneEvent(event types.Event) types.Event {
	event.Tickets = append([]types.TicketTier(nil), event.Tickets...)
	event.Attendees = append([]types.Attendee(nil), event.Attendees...)
	event.Tags = append([]string(nil), event.Tags...)
	return event
}

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]types.User
	nextID int
}

func newFakeUserRepo(users ...types.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]types.User)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	user.ID = fmt.Sprintf("usr_%d", r.nextID)
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	r.users[user.ID] = user
	return user, nil
}

type publishedMessage struct {
	channel string
	payload Notification
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

func (p *fakePublisher) PublishJSON(_ context.Context, channel string, v any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	n, _ := v.(Notification)
	p.messages = append(p.messages, publishedMessage{channel: channel, payload: n})
	return fmt.Sprintf("msg-%d", len(p.messages)), nil
}

func (p *fakePublisher) channels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.messages))
	for _, m := range p.messages {
		out = append(out, m.channel)
	}
	return out
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

const fakeStorageBase = "https://media.test/bucket/"

func (s *fakeStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStorage) URL(key string) string {
	return fakeStorageBase + key
}

func (s *fakeStorage) KeyFromURL(rawURL string) (string, bool) {
	if !strings.HasPrefix(rawURL, fakeStorageBase) {
		return "", false
	}
	return strings.TrimPrefix(rawURL, fakeStorageBase), true
}
