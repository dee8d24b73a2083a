package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/task-manager/internal/middleware"
	"github.com/iliyamo/task-manager/internal/model"
	"github.com/iliyamo/task-manager/internal/repository"
	"github.com/iliyamo/task-manager/internal/service"
)

// TaskHandler serves /tasks for the authenticated user.
type TaskHandler struct {
	Tasks   *service.TaskService
	Timeout time.Duration
}

func NewTaskHandler(tasks *service.TaskService, timeout time.Duration) *TaskHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TaskHandler{Tasks: tasks, Timeout: timeout}
}

type createTaskReq struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	Status      string     `json:"status" validate:"omitempty,oneof=todo in_progress done"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate     *time.Time `json:"due_date"`
}

// updateTaskReq treats an explicit null on description or due_date as
// clearing the field.
type updateTaskReq struct {
	Title       *string                     `json:"title" validate:"omitnil,min=1,max=200"`
	Description service.Nullable[string]    `json:"description" validate:"omitempty,max=5000"`
	Status      *string                     `json:"status" validate:"omitempty,oneof=todo in_progress done"`
	Priority    *string                     `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate     service.Nullable[time.Time] `json:"due_date"`
}

type taskResp struct {
	ID          uint64             `json:"id"`
	UserID      *uint64            `json:"user_id"`
	Title       string             `json:"title"`
	Description *string            `json:"description"`
	Status      model.TaskStatus   `json:"status"`
	Priority    model.TaskPriority `json:"priority"`
	DueDate     *time.Time         `json:"due_date"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func toTaskResp(t *model.Task) taskResp {
	return taskResp{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		DueDate:     t.DueDate,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// actor returns the authenticated user; routes are always behind JWTAuth.
func actor(c echo.Context) (*model.User, error) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, middleware.MsgInvalidCredentials)
	}
	return u, nil
}

func taskError(err error) error {
	if errors.Is(err, repository.ErrTaskNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	}
	return internalError(err)
}

func (h *TaskHandler) Create(c echo.Context) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	var req createTaskReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	t, err := h.Tasks.Create(ctx, u, service.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      model.TaskStatus(req.Status),
		Priority:    model.TaskPriority(req.Priority),
		DueDate:     req.DueDate,
	})
	if err != nil {
		return internalError(err)
	}
	return c.JSON(http.StatusCreated, toTaskResp(t))
}

// List supports ?status=&priority=&sort_by=&order=&page=&page_size=.
func (h *TaskHandler) List(c echo.Context) error {
	u, err := actor(c)
	if err != nil {
		return err
	}

	f := repository.TaskFilter{
		SortBy: c.QueryParam("sort_by"),
		Order:  c.QueryParam("order"),
	}
	if s := c.QueryParam("status"); s != "" {
		switch model.TaskStatus(s) {
		case model.TaskStatusTodo, model.TaskStatusInProgress, model.TaskStatusDone:
			f.Status = model.TaskStatus(s)
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
		}
	}
	if p := c.QueryParam("priority"); p != "" {
		switch model.TaskPriority(p) {
		case model.TaskPriorityLow, model.TaskPriorityMedium, model.TaskPriorityHigh, model.TaskPriorityUrgent:
			f.Priority = model.TaskPriority(p)
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "invalid priority")
		}
	}
	if f.Page, err = queryInt(c, "page"); err != nil {
		return err
	}
	if f.PageSize, err = queryInt(c, "page_size"); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	tasks, err := h.Tasks.List(ctx, u, f)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidFilter) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return internalError(err)
	}
	out := make([]taskResp, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResp(t))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *TaskHandler) Get(c echo.Context) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	t, err := h.Tasks.Get(ctx, u, id)
	if err != nil {
		return taskError(err)
	}
	return c.JSON(http.StatusOK, toTaskResp(t))
}

// Update applies the fields present in the body. A null description or
// due_date clears it.
func (h *TaskHandler) Update(c echo.Context) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req updateTaskReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	patch := service.TaskPatch{Title: req.Title, Description: req.Description, DueDate: req.DueDate}
	if req.Status != nil {
		s := model.TaskStatus(*req.Status)
		patch.Status = &s
	}
	if req.Priority != nil {
		p := model.TaskPriority(*req.Priority)
		patch.Priority = &p
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	t, err := h.Tasks.Update(ctx, u, id, patch)
	if err != nil {
		return taskError(err)
	}
	return c.JSON(http.StatusOK, toTaskResp(t))
}

func (h *TaskHandler) Delete(c echo.Context) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	if err := h.Tasks.Delete(ctx, u, id); err != nil {
		return taskError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
