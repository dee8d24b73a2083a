package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/task-manager/internal/logger"
)

// ErrorHandler renders every error as {"error": message}. HTTPErrors keep
// their code and message; anything else is logged and answered with a
// generic 500 so internal details never reach the client.
func ErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		msg := "internal error"

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Internal != nil {
				log.Error("request failed", slog.String("path", c.Path()), logger.Err(he.Internal))
			}
			if m, ok := he.Message.(string); ok {
				msg = m
			} else if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		} else {
			log.Error("request failed", slog.String("path", c.Path()), logger.Err(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, echo.Map{"error": msg})
		}
		if err != nil {
			log.Error("write error response", logger.Err(err))
		}
	}
}

// internalError wraps err so ErrorHandler logs it and answers 500.
func internalError(err error) error {
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}
