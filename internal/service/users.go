package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/task-manager/internal/logger"
	"github.com/iliyamo/task-manager/internal/model"
	"github.com/iliyamo/task-manager/internal/queue"
)

// UserAdminStore is the part of the user repository admin operations need.
type UserAdminStore interface {
	List(ctx context.Context) ([]*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	Delete(ctx context.Context, id uint64) error
}

// UserService implements the admin user operations.
type UserService struct {
	log    *slog.Logger
	users  UserAdminStore
	events EventPublisher
}

func NewUserService(log *slog.Logger, users UserAdminStore, events EventPublisher) *UserService {
	if events == nil {
		events = queue.NopPublisher{}
	}
	return &UserService{log: log, users: users, events: events}
}

// List returns every user.
func (s *UserService) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.UserService.List: %w", err)
	}
	return users, nil
}

// Delete removes the user with the given id on behalf of actor. It returns
// repository.ErrUserNotFound unwrapped so handlers can answer 404.
func (s *UserService) Delete(ctx context.Context, actor *model.User, id uint64) error {
	const op = "service.UserService.Delete"

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}

	var actorID uint64
	if actor != nil {
		actorID = actor.ID
	}
	s.log.Info("user deleted", slog.String("op", op), slog.Uint64("user_id", id), slog.Uint64("actor_id", actorID))

	ev := queue.UserEvent{
		Type:       queue.EventUserDeleted,
		UserID:     u.ID,
		Email:      u.Email,
		Role:       u.Role.String(),
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.events.PublishUserEvent(ctx, ev); err != nil {
		s.log.Warn("publish user event failed", slog.String("op", op), logger.Err(err))
	}
	return nil
}
