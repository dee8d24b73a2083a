package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/task-manager/internal/middleware"
	"github.com/iliyamo/task-manager/internal/repository"
	"github.com/iliyamo/task-manager/internal/service"
)

// AdminHandler serves the admin-only user management endpoints.
type AdminHandler struct {
	Users   *service.UserService
	Timeout time.Duration
}

func NewAdminHandler(users *service.UserService, timeout time.Duration) *AdminHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AdminHandler{Users: users, Timeout: timeout}
}

// ListUsers returns every user's projection.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	users, err := h.Users.List(ctx)
	if err != nil {
		return internalError(err)
	}
	out := make([]userResp, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResp(u))
	}
	return c.JSON(http.StatusOK, out)
}

// DeleteUser removes a user; the user's tasks remain with no owner.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	actor, _ := middleware.CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	if err := h.Users.Delete(ctx, actor, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return internalError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
