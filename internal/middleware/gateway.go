package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pipeline-crm/internal/gateway"
)

// Gateway redirects page requests according to gateway.Decide before the
// page handler runs.
func Gateway() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d := gateway.Decide(c.Request().URL.Path, HasSession(c))
			if d.Action == gateway.Redirect {
				return c.Redirect(http.StatusFound, d.Location)
			}
			return next(c)
		}
	}
}
