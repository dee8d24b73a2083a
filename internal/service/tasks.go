package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iliyamo/task-manager/internal/model"
	"github.com/iliyamo/task-manager/internal/repository"
)

// TaskStore is the task repository as seen by the service.
type TaskStore interface {
	Create(ctx context.Context, t *model.Task) error
	GetByID(ctx context.Context, id uint64) (*model.Task, error)
	List(ctx context.Context, f repository.TaskFilter) ([]*model.Task, error)
	Update(ctx context.Context, t *model.Task) error
	Delete(ctx context.Context, id uint64) error
}

// TaskInput carries the fields of a new task.
type TaskInput struct {
	Title       string
	Description *string
	Status      model.TaskStatus
	Priority    model.TaskPriority
	DueDate     *time.Time
}

// TaskPatch carries the fields to change; nil means unchanged. The
// nullable columns use Nullable so a caller can clear them.
type TaskPatch struct {
	Title       *string
	Description Nullable[string]
	Status      *model.TaskStatus
	Priority    *model.TaskPriority
	DueDate     Nullable[time.Time]
}

// Nullable tells an absent JSON key apart from an explicit null. Set is
// true when the key was present; Value is nil when it was null.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

// Of returns a Nullable set to v.
func Of[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: &v}
}

// Null returns a Nullable that clears the field.
func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

func (n *Nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// TaskService scopes task operations to the acting user. Admins reach every
// task; everyone else only their own, and a foreign task looks missing.
type TaskService struct {
	tasks TaskStore
}

func NewTaskService(tasks TaskStore) *TaskService {
	return &TaskService{tasks: tasks}
}

func (s *TaskService) Create(ctx context.Context, actor *model.User, in TaskInput) (*model.Task, error) {
	if in.Status == "" {
		in.Status = model.TaskStatusTodo
	}
	if in.Priority == "" {
		in.Priority = model.TaskPriorityMedium
	}
	owner := actor.ID
	t := &model.Task{
		UserID:      &owner,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
	}
	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("service.TaskService.Create: %w", err)
	}
	return t, nil
}

// Get returns repository.ErrTaskNotFound both for missing tasks and for
// tasks the actor may not see.
func (s *TaskService) Get(ctx context.Context, actor *model.User, id uint64) (*model.Task, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !t.OwnedBy(actor.ID) {
		return nil, repository.ErrTaskNotFound
	}
	return t, nil
}

// List forces the owner filter for non-admins.
func (s *TaskService) List(ctx context.Context, actor *model.User, f repository.TaskFilter) ([]*model.Task, error) {
	if !actor.IsAdmin() {
		uid := actor.ID
		f.UserID = &uid
	}
	return s.tasks.List(ctx, f)
}

func (s *TaskService) Update(ctx context.Context, actor *model.User, id uint64, p TaskPatch) (*model.Task, error) {
	t, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description.Set {
		t.Description = p.Description.Value
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate.Set {
		t.DueDate = p.DueDate.Value
	}
	if err := s.tasks.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TaskService) Delete(ctx context.Context, actor *model.User, id uint64) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	return s.tasks.Delete(ctx, id)
}
