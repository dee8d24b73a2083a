package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/task-manager/internal/model"
	"github.com/iliyamo/task-manager/internal/queue"
	"github.com/iliyamo/task-manager/internal/repository"
)

// memUsers is an in-memory user store whose Create enforces email
// uniqueness atomically, like the unique index does.
type memUsers struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]*model.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[uint64]*model.User{}}
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	m.nextID++
	u.ID = m.nextID
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) List(_ context.Context) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.User, 0, len(m.byID))
	for _, u := range m.byID {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memUsers) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memUsers) update(id uint64, fn func(u *model.User)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.byID[id])
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.UserEvent
}

func (p *recordingPublisher) PublishUserEvent(_ context.Context, ev queue.UserEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) all() []queue.UserEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.UserEvent(nil), p.events...)
}
