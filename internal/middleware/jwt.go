package middleware // middleware provides shared request processing for handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/task-manager/internal/logger"
	"github.com/iliyamo/task-manager/internal/model"
	"github.com/iliyamo/task-manager/internal/service"
)

// Context keys set by JWTAuth. user_id and role are plain strings so the
// rate limiter and access logs can read them without importing model.
const (
	ctxUserKey   = "auth_user"
	ctxUserIDKey = "user_id"
	ctxRoleKey   = "role"
)

// MsgInvalidCredentials is the single body returned for every
// authentication failure, whatever check actually failed.
const MsgInvalidCredentials = "could not validate credentials"

// Authenticator resolves a raw access token to the current user.
type Authenticator interface {
	Authenticate(ctx context.Context, rawAccess string) (*model.User, error)
}

// JWTAuth validates the Bearer access token and stores the resolved user
// in the echo context. Missing, malformed, expired, wrong-kind tokens and
// unknown or inactive users all produce the same 401.
func JWTAuth(auth Authenticator, log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return unauthorized(c)
			}

			u, err := auth.Authenticate(c.Request().Context(), raw)
			if err != nil {
				if errors.Is(err, service.ErrInvalidCredentials) {
					return unauthorized(c)
				}
				log.Error("authenticate request", slog.String("path", c.Path()), logger.Err(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
			}

			c.Set(ctxUserKey, u)
			c.Set(ctxUserIDKey, strconv.FormatUint(u.ID, 10))
			c.Set(ctxRoleKey, u.Role.String())
			return next(c)
		}
	}
}

// bearerToken extracts the token from an Authorization header. The scheme
// is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

func unauthorized(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": MsgInvalidCredentials})
}

// CurrentUser returns the user resolved by JWTAuth, if any.
func CurrentUser(c echo.Context) (*model.User, bool) {
	u, ok := c.Get(ctxUserKey).(*model.User)
	return u, ok && u != nil
}

// currentUserID returns the authenticated user id as a string, or "anon".
func currentUserID(c echo.Context) string {
	if s, ok := c.Get(ctxUserIDKey).(string); ok && s != "" {
		return s
	}
	return "anon"
}
