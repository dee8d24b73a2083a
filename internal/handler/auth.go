package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/task-manager/internal/middleware"
	"github.com/iliyamo/task-manager/internal/model"
	"github.com/iliyamo/task-manager/internal/service"
	"github.com/iliyamo/task-manager/internal/utils"
)

// AuthHandler serves the /auth endpoints and /users/me.
type AuthHandler struct {
	Auth    *service.AuthService
	Timeout time.Duration
}

func NewAuthHandler(auth *service.AuthService, timeout time.Duration) *AuthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AuthHandler{Auth: auth, Timeout: timeout}
}

// ----- DTOs -----

type registerReq struct {
	Email    string  `json:"email" validate:"required,email,max=255"`
	Username *string `json:"username" validate:"omitempty,max=100"`
	Password string  `json:"password" validate:"required,min=8,bcryptmax"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type tokenResp struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// userResp is the public projection of a user; it never includes the hash.
type userResp struct {
	ID        uint64     `json:"id"`
	Email     string     `json:"email"`
	Username  *string    `json:"username"`
	Role      model.Role `json:"role"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func toUserResp(u *model.User) userResp {
	return userResp{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toTokenResp(p service.TokenPair, now time.Time) tokenResp {
	return tokenResp{
		AccessToken:  p.Access.Raw,
		RefreshToken: p.Refresh.Raw,
		TokenType:    p.TokenType,
		ExpiresIn:    int64(p.Access.ExpiresAt.Sub(now).Round(time.Second) / time.Second),
	}
}

// unauthorized mirrors the gate's uniform 401 for credential failures.
func unauthorized(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": middleware.MsgInvalidCredentials})
}

// Register creates a user and returns its projection. Emails are stored as
// given apart from surrounding whitespace; matching is case-sensitive.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	req.Email = strings.TrimSpace(req.Email)

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	u, err := h.Auth.Register(ctx, service.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmailExists) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": service.ErrEmailExists.Error()})
		}
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": utils.ErrPasswordTooLong.Error()})
		}
		return internalError(err)
	}
	return c.JSON(http.StatusCreated, toUserResp(u))
}

// Login: verify credentials and return a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	pair, err := h.Auth.Login(ctx, strings.TrimSpace(req.Email), req.Password)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return unauthorized(c)
	case errors.Is(err, service.ErrInactiveUser):
		return c.JSON(http.StatusForbidden, echo.Map{"error": service.ErrInactiveUser.Error()})
	case err != nil:
		return internalError(err)
	}
	return c.JSON(http.StatusOK, toTokenResp(pair, time.Now()))
}

// Refresh exchanges a refresh token for a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return unauthorized(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	pair, err := h.Auth.Refresh(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return unauthorized(c)
		}
		return internalError(err)
	}
	return c.JSON(http.StatusOK, toTokenResp(pair, time.Now()))
}

// Me returns the authenticated user's projection.
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return unauthorized(c)
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}
