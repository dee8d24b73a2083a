package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/task-manager/internal/model"
)

// RequireRole rejects authenticated users whose role is not one of roles
// with 403. It must run after JWTAuth; without a resolved user it answers
// 401 like JWTAuth would.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := CurrentUser(c)
			if !ok {
				return unauthorized(c)
			}
			if !allowed[u.Role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "not enough privileges"})
			}
			return next(c)
		}
	}
}
